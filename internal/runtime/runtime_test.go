package runtime

import (
	"context"
	"testing"

	"github.com/fathom-run/fathom/internal/config"
	"github.com/fathom-run/fathom/internal/session"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg := config.Default()
	cfg.Runtime.WorkspaceRoot = t.TempDir()
	cfg.Runtime.TaskRuntimeMs = 1
	r, err := New(cfg, "", nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestCreateSessionDedupsParticipantsAndSeedsProfiles(t *testing.T) {
	r := newTestRuntime(t)

	summary, err := r.CreateSession("agent-1", []string{"user-1", "user-2", "user-1"})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if summary.AgentID != "agent-1" {
		t.Fatalf("expected agent-1, got %q", summary.AgentID)
	}
	if len(summary.ParticipantUserIDs) != 2 {
		t.Fatalf("expected 2 deduped participants, got %d: %v", len(summary.ParticipantUserIDs), summary.ParticipantUserIDs)
	}
	if summary.AgentProfileCopy.SpecVersion != 1 {
		t.Fatalf("expected freshly seeded spec version 1, got %d", summary.AgentProfileCopy.SpecVersion)
	}

	if _, ok := r.FetchAgentProfile("agent-1"); !ok {
		t.Fatalf("expected agent profile to be stored")
	}
}

func TestGetSessionUnknownIDReturnsError(t *testing.T) {
	r := newTestRuntime(t)
	if _, err := r.GetSession("does-not-exist"); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestListSessionsReturnsSortedSummaries(t *testing.T) {
	r := newTestRuntime(t)
	if _, err := r.CreateSession("agent-b", nil); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := r.CreateSession("agent-a", nil); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	summaries, err := r.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(summaries))
	}
	if summaries[0].SessionID > summaries[1].SessionID {
		t.Fatalf("expected sorted session ids, got %q then %q", summaries[0].SessionID, summaries[1].SessionID)
	}
}

func TestEnqueueTriggerAgainstUnknownSessionFails(t *testing.T) {
	r := newTestRuntime(t)
	_, err := r.EnqueueTrigger(context.Background(), "missing", session.Trigger{Kind: session.TriggerHeartbeat})
	if err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestNewRejectsNonexistentWorkspaceRoot(t *testing.T) {
	cfg := config.Default()
	cfg.Runtime.WorkspaceRoot = "/does/not/exist/anywhere"
	if _, err := New(cfg, "", nil); err == nil {
		t.Fatalf("expected error for nonexistent workspace root")
	}
}
