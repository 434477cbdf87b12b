// Package cronsched turns the config-declared cron{} entries into a
// running producer: a tick loop that, when an entry's schedule comes
// due, enqueues a cron trigger into the named session. The Rust
// original only ever consumes a cron trigger once it's already in a
// session's queue; it has no opinion on how one gets there. This
// package supplies that missing producer half, grounded on the
// teacher's cron.Scheduler: robfig/cron/v3 is used purely for
// expression parsing and Next() computation, while the scheduling
// loop itself is hand-rolled around a time.Ticker.
package cronsched

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fathom-run/fathom/internal/agent"
	"github.com/fathom-run/fathom/internal/retry"
)

// enqueueRetry governs how hard cronsched tries to deliver a due
// trigger before giving up and logging a warning: a session's mailbox
// send can momentarily block if a prior command is still draining a
// long trigger queue, so a short retry absorbs that without dropping
// the scheduled fire.
var enqueueRetry = retry.Config{
	MaxAttempts:  3,
	InitialDelay: 20 * time.Millisecond,
	MaxDelay:     200 * time.Millisecond,
	Factor:       2.0,
	Jitter:       true,
}

var parser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// TriggerEnqueuer is the session-side dependency cronsched needs: a
// way to deliver a cron trigger into a named session's mailbox.
// internal/runtime.Runtime satisfies this through a thin adapter.
type TriggerEnqueuer interface {
	EnqueueTrigger(ctx context.Context, sessionID string, trig agent.Trigger) error
}

// Entry is one configured cron{} schedule: a key, a standard cron
// expression, and the session it fires into.
type Entry struct {
	Key       string
	Schedule  string
	SessionID string

	schedule cron.Schedule
	nextRun  time.Time
}

// Scheduler ticks over a fixed set of Entry schedules, firing a
// TriggerCron{CronKey: entry.Key} into entry.SessionID whenever the
// entry's schedule comes due.
type Scheduler struct {
	mu           sync.Mutex
	entries      []*Entry
	enqueuer     TriggerEnqueuer
	now          func() time.Time
	tickInterval time.Duration
	logger       *slog.Logger

	started bool
	wg      sync.WaitGroup
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithNow overrides the scheduler's time source, for deterministic tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithTickInterval overrides how often the scheduler checks for due entries.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithLogger overrides the scheduler's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds a Scheduler that enqueues due triggers through enqueuer.
func New(enqueuer TriggerEnqueuer, opts ...Option) *Scheduler {
	s := &Scheduler{
		enqueuer:     enqueuer,
		now:          time.Now,
		tickInterval: time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddEntry parses entry's cron expression and registers it, computing
// its first due time relative to the scheduler's current time.
func (s *Scheduler) AddEntry(entry Entry) error {
	parsed, err := parser.Parse(entry.Schedule)
	if err != nil {
		return fmt.Errorf("cronsched: invalid schedule for %q: %w", entry.Key, err)
	}
	entry.schedule = parsed
	now := s.now()
	entry.nextRun = parsed.Next(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entry)
	return nil
}

// Start runs the tick loop until ctx is canceled. Safe to call once;
// a second call is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runDue(ctx)
			}
		}
	}()
}

// Stop blocks until the tick loop goroutine has exited.
func (s *Scheduler) Stop() {
	s.wg.Wait()
}

// RunOnce fires every currently-due entry immediately, for tests.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	return s.runDue(ctx)
}

func (s *Scheduler) runDue(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	due := make([]*Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		if !now.Before(entry.nextRun) {
			due = append(due, entry)
			entry.nextRun = entry.schedule.Next(now)
		}
	}
	s.mu.Unlock()

	for _, entry := range due {
		trig := agent.Trigger{
			Kind:    agent.TriggerCron,
			CronKey: entry.Key,
		}
		result := retry.Do(ctx, enqueueRetry, func() error {
			return s.enqueuer.EnqueueTrigger(ctx, entry.SessionID, trig)
		})
		if result.Err != nil {
			s.logger.Warn("cronsched: failed to enqueue cron trigger",
				"key", entry.Key, "session_id", entry.SessionID,
				"attempts", result.Attempts, "error", result.Err)
		}
	}
	return len(due)
}
