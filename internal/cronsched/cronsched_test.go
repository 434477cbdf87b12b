package cronsched

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fathom-run/fathom/internal/agent"
)

type fakeEnqueuer struct {
	mu    sync.Mutex
	calls []agent.Trigger
	ids   []string
}

func (f *fakeEnqueuer) EnqueueTrigger(ctx context.Context, sessionID string, trig agent.Trigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, trig)
	f.ids = append(f.ids, sessionID)
	return nil
}

func (f *fakeEnqueuer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestRunOnceFiresDueEntry(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clockMu := sync.Mutex{}
	current := base
	now := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return current
	}

	fe := &fakeEnqueuer{}
	sched := New(fe, WithNow(now))
	if err := sched.AddEntry(Entry{Key: "nightly", Schedule: "* * * * *", SessionID: "session-1"}); err != nil {
		t.Fatalf("AddEntry() error = %v", err)
	}

	clockMu.Lock()
	current = base.Add(90 * time.Second)
	clockMu.Unlock()

	if n := sched.RunOnce(context.Background()); n != 1 {
		t.Fatalf("expected 1 due entry, got %d", n)
	}
	if fe.count() != 1 {
		t.Fatalf("expected 1 enqueued trigger, got %d", fe.count())
	}
	if fe.calls[0].Kind != agent.TriggerCron || fe.calls[0].CronKey != "nightly" {
		t.Fatalf("unexpected trigger: %+v", fe.calls[0])
	}
	if fe.ids[0] != "session-1" {
		t.Fatalf("expected session-1, got %q", fe.ids[0])
	}

	if n := sched.RunOnce(context.Background()); n != 0 {
		t.Fatalf("expected 0 due entries immediately after firing, got %d", n)
	}
}

func TestAddEntryRejectsInvalidSchedule(t *testing.T) {
	sched := New(&fakeEnqueuer{})
	if err := sched.AddEntry(Entry{Key: "bad", Schedule: "not a cron expression", SessionID: "session-1"}); err == nil {
		t.Fatalf("expected error for invalid schedule")
	}
}

func TestStartAndStopRunsTickLoop(t *testing.T) {
	fe := &fakeEnqueuer{}
	sched := New(fe, WithTickInterval(5*time.Millisecond))
	if err := sched.AddEntry(Entry{Key: "every-second", Schedule: "@every 1s", SessionID: "session-1"}); err != nil {
		t.Fatalf("AddEntry() error = %v", err)
	}

	// @every schedules fire on whole-second boundaries (robfig/cron rounds
	// shorter delays up to one second), so the first fire can be up to 1s
	// away; the context outlives that.
	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	sched.Start(ctx)
	<-ctx.Done()
	sched.Stop()

	if fe.count() == 0 {
		t.Fatalf("expected at least one trigger fired during tick loop")
	}
}
