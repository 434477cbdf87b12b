package agent

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fathom-run/fathom/internal/clock"
	"github.com/fathom-run/fathom/internal/llmclient"
	"github.com/fathom-run/fathom/internal/profile"
	"github.com/fathom-run/fathom/internal/retry"
)

func newOrchestrator(t *testing.T, server *httptest.Server) *Orchestrator {
	t.Helper()
	client := &llmclient.Client{
		HTTP:     server.Client(),
		Endpoint: server.URL,
		Model:    "test-model",
		APIKey:   "test-key",
		Policy:   retry.ConservativePolicy(),
		Clock:    clock.System{},
	}
	return New(client, "")
}

func testSnapshot() TurnSnapshot {
	return TurnSnapshot{
		SessionID:    "session-1",
		TurnID:       1,
		AgentProfile: profile.AgentProfile{AgentID: "agent-a"},
		Triggers:     []Trigger{{Kind: TriggerUserMessage, UserID: "user-a", Text: "hi"}},
	}
}

func TestRunTurnSucceedsOnFirstAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("data: {\"type\":\"response.function_call_arguments.done\",\"call_id\":\"call-1\",\"name\":\"schedule_heartbeat\",\"arguments\":\"{\\\"delay_ms\\\":1000}\"}\n\ndata: [DONE]\n\n"))
	}))
	defer server.Close()

	o := newOrchestrator(t, server)
	var invocations []ToolInvocation
	outcome := o.RunTurn(testSnapshot(), func(StreamNote) {}, func(inv ToolInvocation) { invocations = append(invocations, inv) })

	if outcome.Failed {
		t.Fatalf("expected success, got failure %q: %s", outcome.FailureCode, outcome.FailureMessage)
	}
	if outcome.ToolCallCount != 1 || len(invocations) != 1 {
		t.Fatalf("expected one tool call, got %+v", outcome)
	}
}

func TestRunTurnFailsAfterTwoEmptyAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	o := newOrchestrator(t, server)
	outcome := o.RunTurn(testSnapshot(), func(StreamNote) {}, func(ToolInvocation) {})

	if !outcome.Failed || outcome.FailureCode != "no_tool_call" {
		t.Fatalf("expected no_tool_call failure, got %+v", outcome)
	}
}

func TestRunTurnFailsFastOnInitError(t *testing.T) {
	o := New(nil, "missing api key")
	outcome := o.RunTurn(testSnapshot(), func(StreamNote) {}, func(ToolInvocation) {})
	if !outcome.Failed || outcome.FailureCode != "agent_init_error" {
		t.Fatalf("expected agent_init_error failure, got %+v", outcome)
	}
}
