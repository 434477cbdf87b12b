// Package runtime assembles the shared collaborators a fathomd process
// wires every session against, and owns the registry of running
// session actors. Grounded on fathom-server's src/runtime.rs: a
// RuntimeInner holding a profile store and a map of session handles
// behind a lock, plus the id sequences and the workspace-root
// canonicalization fathomd performs once at startup.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fathom-run/fathom/internal/agent"
	"github.com/fathom-run/fathom/internal/clock"
	"github.com/fathom-run/fathom/internal/config"
	"github.com/fathom-run/fathom/internal/cronsched"
	"github.com/fathom-run/fathom/internal/events"
	"github.com/fathom-run/fathom/internal/fsexec"
	"github.com/fathom-run/fathom/internal/llmclient"
	"github.com/fathom-run/fathom/internal/metrics"
	"github.com/fathom-run/fathom/internal/profile"
	"github.com/fathom-run/fathom/internal/session"
)

// ErrSessionNotFound is returned when a session id is unknown to the
// runtime's registry.
var ErrSessionNotFound = fmt.Errorf("runtime: session not found")

// Runtime is the top-level handle a CLI or server binds to: it builds
// the shared Deps once, canonicalizes the workspace root, and owns
// every session actor spawned against it.
type Runtime struct {
	cfg     *config.Config
	deps    session.Deps
	metrics *metrics.Metrics
	logger  *slog.Logger

	sessionSeq *clock.Sequence

	mu       sync.RWMutex
	sessions map[string]*session.Handle

	cron *cronsched.Scheduler
}

// New builds a Runtime from cfg: it canonicalizes the workspace root,
// constructs the profile store, fs executor, and LLM client, and wires
// a cron scheduler for cfg.Cron entries. Event hubs are built per
// session by session.Start. apiKey is
// read by the caller from cfg.LLM.APIKeyEnv and passed in explicitly
// so Runtime never touches the process environment for credentials.
func New(cfg *config.Config, apiKey string, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	workspaceRoot, err := canonicalizeWorkspaceRoot(cfg.Runtime.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}

	c := clock.System{}
	profileStore := profile.NewStore(c)
	fsExecutor := fsexec.NewExecutor(profileStore, workspaceRoot)

	m := metrics.New()

	var initError string
	var client *llmclient.Client
	if apiKey == "" {
		initError = fmt.Sprintf("no API key configured in %s", cfg.LLM.APIKeyEnv)
	} else {
		client = llmclient.New(apiKey)
		client.Endpoint = cfg.LLM.Endpoint
		client.Model = cfg.LLM.Model
		client.Logger = logger
		client.Metrics = m
		if cfg.LLM.TimeoutSeconds > 0 {
			client.HTTP.Timeout = time.Duration(cfg.LLM.TimeoutSeconds) * time.Second
		}
	}
	orchestrator := agent.New(client, initError)

	r := &Runtime{
		cfg: cfg,
		deps: session.Deps{
			Orchestrator:      orchestrator,
			FsExecutor:        fsExecutor,
			ProfileStore:      profileStore,
			Clock:             c,
			TaskSeq:           clock.NewSequence("task"),
			TriggerSeq:        clock.NewSequence("trigger"),
			TaskCapacity:      cfg.Runtime.TaskCapacity,
			TaskRuntimeMs:     cfg.Runtime.TaskRuntimeMs,
			Logger:            logger,
			Metrics:           m,
			EventBufferSize:   cfg.Runtime.EventBufferSize,
			HistoryWindowSize: cfg.Runtime.HistoryWindowSize,
		},
		metrics:    m,
		logger:     logger,
		sessionSeq: clock.NewSequence("session"),
		sessions:   make(map[string]*session.Handle),
	}

	r.cron = cronsched.New(runtimeTriggerAdapter{r}, cronsched.WithLogger(logger))
	for _, entry := range cfg.Cron {
		if err := r.cron.AddEntry(cronsched.Entry{Key: entry.Key, Schedule: entry.Schedule, SessionID: entry.SessionID}); err != nil {
			return nil, fmt.Errorf("runtime: cron entry %q: %w", entry.Key, err)
		}
	}

	return r, nil
}

// Metrics returns the runtime's Prometheus instrumentation set.
func (r *Runtime) Metrics() *metrics.Metrics { return r.metrics }

// StartCron starts the cron tick loop. Safe to call even with zero
// configured entries.
func (r *Runtime) StartCron(ctx context.Context) { r.cron.Start(ctx) }

// StopCron blocks until the cron tick loop has exited.
func (r *Runtime) StopCron() { r.cron.Stop() }

// runtimeTriggerAdapter lets cronsched.Scheduler address sessions by
// id without depending on the runtime package's full surface.
type runtimeTriggerAdapter struct{ r *Runtime }

func (a runtimeTriggerAdapter) EnqueueTrigger(ctx context.Context, sessionID string, trig agent.Trigger) error {
	_, err := a.r.EnqueueTrigger(ctx, sessionID, trig)
	return err
}

// CreateSession seeds agent/user profiles (creating them if new),
// dedups participantUserIDs, and spawns a session actor. Mirrors the
// original's create_session: participant ids are deduplicated in
// first-seen order before profile copies are resolved.
func (r *Runtime) CreateSession(agentID string, participantUserIDs []string) (session.Summary, error) {
	sessionID := r.sessionSeq.Next()
	dedupedUsers := dedupIDs(participantUserIDs)

	agentProfile := r.deps.ProfileStore.GetOrCreateAgent(agentID)
	participantProfiles := make(map[string]profile.UserProfile, len(dedupedUsers))
	for _, uid := range dedupedUsers {
		participantProfiles[uid] = r.deps.ProfileStore.GetOrCreateUser(uid)
	}

	h := session.Start(r.deps, sessionID, agentID, dedupedUsers, agentProfile, participantProfiles)

	r.mu.Lock()
	r.sessions[sessionID] = h
	r.mu.Unlock()
	r.metrics.SessionStarted()

	return h.GetSummary(context.Background())
}

// GetSession returns the session actor handle for sessionID.
func (r *Runtime) GetSession(sessionID string) (*session.Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return h, nil
}

// ListSessions returns every known session's summary, sorted by
// session id.
func (r *Runtime) ListSessions() ([]session.Summary, error) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	handles := make(map[string]*session.Handle, len(r.sessions))
	for id, h := range r.sessions {
		ids = append(ids, id)
		handles[id] = h
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	summaries := make([]session.Summary, 0, len(ids))
	for _, id := range ids {
		summary, err := handles[id].GetSummary(context.Background())
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// EnqueueTrigger delivers trigger into sessionID's mailbox, stamping an
// id and creation time if the caller left them unset.
func (r *Runtime) EnqueueTrigger(ctx context.Context, sessionID string, trig session.Trigger) (session.EnqueueTriggerResult, error) {
	h, err := r.GetSession(sessionID)
	if err != nil {
		return session.EnqueueTriggerResult{}, err
	}
	if trig.ID == "" {
		trig.ID = r.deps.TriggerSeq.Next()
	}
	if trig.CreatedAtMs == 0 {
		trig.CreatedAtMs = r.deps.now()
	}
	return h.EnqueueTrigger(ctx, trig)
}

// ListTasks returns sessionID's current task set.
func (r *Runtime) ListTasks(ctx context.Context, sessionID string) ([]session.Task, error) {
	h, err := r.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	return h.ListTasks(ctx)
}

// CancelTask cancels taskID within sessionID.
func (r *Runtime) CancelTask(ctx context.Context, sessionID, taskID string) (session.CancelTaskResult, error) {
	h, err := r.GetSession(sessionID)
	if err != nil {
		return session.CancelTaskResult{}, err
	}
	return h.CancelTask(ctx, taskID)
}

// UpsertAgentProfile stores p, bumping its spec version per
// profile.Store.UpsertAgent's rules.
func (r *Runtime) UpsertAgentProfile(p profile.AgentProfile) profile.AgentProfile {
	return r.deps.ProfileStore.UpsertAgent(p)
}

// UpsertUserProfile stores p, filling UpdatedAtMs per
// profile.Store.UpsertUser's rules (user profiles carry no spec version).
func (r *Runtime) UpsertUserProfile(p profile.UserProfile) profile.UserProfile {
	return r.deps.ProfileStore.UpsertUser(p)
}

// FetchAgentProfile returns the stored agent profile for id, if any.
func (r *Runtime) FetchAgentProfile(id string) (profile.AgentProfile, bool) {
	return r.deps.ProfileStore.FetchAgent(id)
}

// FetchUserProfile returns the stored user profile for id, if any.
func (r *Runtime) FetchUserProfile(id string) (profile.UserProfile, bool) {
	return r.deps.ProfileStore.FetchUser(id)
}

// SessionEvents returns sessionID's own event hub, matching spec.md's
// AttachSessionEvents(session_id): every session owns one broadcast
// channel, so a subscription against this hub never observes another
// session's events.
func (r *Runtime) SessionEvents(sessionID string) (*events.Hub, error) {
	h, err := r.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	return h.Events(), nil
}

func dedupIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// canonicalizeWorkspaceRoot resolves root to an absolute, symlink-free
// path and verifies it names an existing directory, matching the
// original's canonicalize_workspace_root.
func canonicalizeWorkspaceRoot(root string) (string, error) {
	if root == "" {
		root = "."
	}
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("workspace root %q does not exist: %w", root, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("workspace root %q is not accessible: %w", root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("workspace root %q is not a directory", root)
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", err
	}
	return abs, nil
}
