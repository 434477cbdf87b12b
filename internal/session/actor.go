package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fathom-run/fathom/internal/agent"
	"github.com/fathom-run/fathom/internal/clock"
	"github.com/fathom-run/fathom/internal/events"
	"github.com/fathom-run/fathom/internal/fsexec"
	"github.com/fathom-run/fathom/internal/metrics"
	"github.com/fathom-run/fathom/internal/profile"
)

// mailboxCapacity matches the original's SESSION_CMD_BUFFER_SIZE: a
// blocking send once full is the actor's only backpressure mechanism.
const mailboxCapacity = 128

// defaultHistoryWindowSize is used when Deps.HistoryWindowSize is left
// zero-valued (e.g. by tests that don't care about the window).
const defaultHistoryWindowSize = 80

// Deps are the shared collaborators every session actor is wired
// against; one instance is shared by every session a Runtime owns.
type Deps struct {
	Orchestrator  *agent.Orchestrator
	FsExecutor    *fsexec.Executor
	ProfileStore  *profile.Store
	Clock         clock.Clock
	TaskSeq       *clock.Sequence
	TriggerSeq    *clock.Sequence
	TaskCapacity  int
	TaskRuntimeMs int64
	Logger        *slog.Logger

	// EventBufferSize sizes the per-session event hub's retained ring.
	// Each session actor builds its own Hub in Start; zero falls back to
	// events.NewHub's own default.
	EventBufferSize int

	// HistoryWindowSize bounds how many recent history lines are folded
	// into a turn snapshot's prompt. Zero falls back to
	// defaultHistoryWindowSize.
	HistoryWindowSize int

	// Metrics is optional; nil disables instrumentation entirely.
	Metrics *metrics.Metrics
}

func (d Deps) taskGauges(sessionID string, st *state) {
	if d.Metrics == nil {
		return
	}
	d.Metrics.TaskQueueDepth.WithLabelValues(sessionID).Set(float64(len(st.pendingTaskIDs)))
	d.Metrics.RunningTasks.WithLabelValues(sessionID).Set(float64(len(st.runningTaskIDs)))
}

func (d Deps) now() int64 { return d.Clock.NowMs() }

func (d Deps) historyWindowSize() int {
	if d.HistoryWindowSize > 0 {
		return d.HistoryWindowSize
	}
	return defaultHistoryWindowSize
}

// Handle is the caller-facing reference to a running session actor: a
// mailbox send plus a typed request/response pair per command, mirroring
// the original's SessionRuntime{command_tx, events_tx}.
type Handle struct {
	SessionID string
	deps      Deps
	cmdCh     chan command
	eventsHub *events.Hub
}

// Start spawns a session actor goroutine and returns a Handle to it. Each
// session owns its own event hub, matching the original's one-broadcast-
// channel-per-SessionRuntime shape: a noisy session cannot evict another
// session's events from a shared ring or subscriber channel.
func Start(deps Deps, sessionID, agentID string, participantUserIDs []string, agentProfile profile.AgentProfile, participantProfiles map[string]profile.UserProfile) *Handle {
	st := newState(sessionID, agentID, participantUserIDs, agentProfile, participantProfiles, deps.now())
	hub := events.NewHub(deps.EventBufferSize, deps.Logger)
	if deps.Metrics != nil {
		hub.SetHooks(deps.Metrics.EventPublished, deps.Metrics.EventSubscriberLagged)
	}
	h := &Handle{
		SessionID: sessionID,
		deps:      deps,
		cmdCh:     make(chan command, mailboxCapacity),
		eventsHub: hub,
	}
	go h.run(st)
	return h
}

// Events returns the broadcast hub carrying this session's events.
func (h *Handle) Events() *events.Hub { return h.eventsHub }

// EnqueueTrigger submits trigger to the session and waits for the
// resulting queue depth. It also, as a side effect, drives any turns
// the trigger unblocks before the actor moves on to the next command.
func (h *Handle) EnqueueTrigger(ctx context.Context, trigger Trigger) (EnqueueTriggerResult, error) {
	respondTo := make(chan EnqueueTriggerResult, 1)
	if err := h.send(ctx, enqueueTriggerCmd{trigger: trigger, respondTo: respondTo}); err != nil {
		return EnqueueTriggerResult{}, err
	}
	select {
	case res := <-respondTo:
		return res, nil
	case <-ctx.Done():
		return EnqueueTriggerResult{}, ctx.Err()
	}
}

// GetSummary returns a point-in-time snapshot of session state.
func (h *Handle) GetSummary(ctx context.Context) (Summary, error) {
	respondTo := make(chan Summary, 1)
	if err := h.send(ctx, getSummaryCmd{respondTo: respondTo}); err != nil {
		return Summary{}, err
	}
	select {
	case res := <-respondTo:
		return res, nil
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	}
}

// ListTasks returns every task the session has ever recorded, sorted by
// task id.
func (h *Handle) ListTasks(ctx context.Context) ([]Task, error) {
	respondTo := make(chan []Task, 1)
	if err := h.send(ctx, listTasksCmd{respondTo: respondTo}); err != nil {
		return nil, err
	}
	select {
	case res := <-respondTo:
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CancelTask cancels a pending or running task. A task already in a
// terminal state returns Canceled=false with no error.
func (h *Handle) CancelTask(ctx context.Context, taskID string) (CancelTaskResult, error) {
	respondTo := make(chan cancelTaskResponse, 1)
	if err := h.send(ctx, cancelTaskCmd{taskID: taskID, respondTo: respondTo}); err != nil {
		return CancelTaskResult{}, err
	}
	select {
	case res := <-respondTo:
		return res.result, res.err
	case <-ctx.Done():
		return CancelTaskResult{}, ctx.Err()
	}
}

func (h *Handle) send(ctx context.Context, c command) error {
	select {
	case h.cmdCh <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// taskFinished is how the detached task completer reports back; it is
// fire-and-forget from the completer's side (matching the original's
// `let _ = command_tx.send(...)`), so it never blocks on a full mailbox
// beyond the standard channel send.
func (h *Handle) taskFinished(taskID string, succeeded bool, message string) {
	h.cmdCh <- taskFinishedCmd{taskID: taskID, succeeded: succeeded, message: message}
}

// run is the actor loop: the only goroutine that ever touches st.
func (h *Handle) run(st *state) {
	for c := range h.cmdCh {
		switch cmd := c.(type) {
		case enqueueTriggerCmd:
			depth := h.enqueueTrigger(st, cmd.trigger)
			triggerID := ""
			if n := len(st.triggerQueue); n > 0 {
				triggerID = st.triggerQueue[n-1].ID
			}
			cmd.respondTo <- EnqueueTriggerResult{TriggerID: triggerID, QueueDepth: depth}
			h.processTurns(st)

		case getSummaryCmd:
			cmd.respondTo <- st.toSummary()

		case listTasksCmd:
			tasks := make([]Task, 0, len(st.tasks))
			for _, t := range st.tasks {
				tasks = append(tasks, *t)
			}
			sortTasksByID(tasks)
			cmd.respondTo <- tasks

		case cancelTaskCmd:
			res, err := h.cancelTask(st, cmd.taskID)
			cmd.respondTo <- cancelTaskResponse{result: res, err: err}

		case taskFinishedCmd:
			h.handleFinishedTask(st, cmd.taskID, cmd.succeeded, cmd.message)
			h.processTurns(st)
		}
	}
}

func sortTasksByID(tasks []Task) {
	for i := 1; i < len(tasks); i++ {
		for j := i; j > 0 && tasks[j-1].TaskID > tasks[j].TaskID; j-- {
			tasks[j-1], tasks[j] = tasks[j], tasks[j-1]
		}
	}
}

// enqueueTrigger appends trigger to the queue and emits TriggerAccepted.
func (h *Handle) enqueueTrigger(st *state, trigger Trigger) uint64 {
	st.triggerQueue = append(st.triggerQueue, trigger)
	depth := uint64(len(st.triggerQueue))
	h.emitEvent(st, "trigger_accepted", map[string]any{
		"trigger":     trigger,
		"queue_depth": depth,
	})
	return depth
}

// processTurns drains the entire trigger queue into one turn at a time
// until empty, guarded by turnInProgress against reentrant calls (a
// TaskFinished arriving mid-drain must not start a second drain loop).
func (h *Handle) processTurns(st *state) {
	if st.turnInProgress {
		return
	}
	st.turnInProgress = true
	defer func() { st.turnInProgress = false }()

	for len(st.triggerQueue) > 0 {
		st.turnSeq++
		turnID := st.turnSeq

		turnTriggers := st.triggerQueue
		st.triggerQueue = nil

		h.emitEvent(st, "turn_started", map[string]any{
			"turn_id":       turnID,
			"trigger_count": uint64(len(turnTriggers)),
		})

		var assistantOutputs []string
		var agentTriggers []Trigger

		for _, trig := range turnTriggers {
			if trig.Kind == TriggerRefreshProfile {
				refreshed := h.applyProfileRefresh(st, trig)
				h.emitEvent(st, "profile_refreshed", map[string]any{
					"scope":              trig.Scope,
					"refreshed_user_ids": refreshed,
					"agent_spec_version": st.agentProfileCopy.SpecVersion,
				})
				assistantOutputs = append(assistantOutputs, "profile copies refreshed for this session")
				continue
			}
			agentTriggers = append(agentTriggers, trig)
		}

		if len(agentTriggers) > 0 {
			assistantOutputs = h.runAgentTurn(st, turnID, agentTriggers, assistantOutputs)
		}

		for _, output := range assistantOutputs {
			h.emitEvent(st, "assistant_output", map[string]any{"content": output})
		}

		h.flushHistory(st, turnTriggers, assistantOutputs)

		h.emitEvent(st, "turn_ended", map[string]any{
			"turn_id":      turnID,
			"reason":       fmt.Sprintf("processed %d trigger(s)", len(turnTriggers)),
			"history_size": uint64(len(st.history)),
		})
	}
}

// runAgentTurn builds a snapshot, drives the orchestrator through one
// turn, and queues a task for every tool invocation it emits.
func (h *Handle) runAgentTurn(st *state, turnID uint64, agentTriggers []Trigger, assistantOutputs []string) []string {
	snapshot := h.buildTurnSnapshot(st, turnID, agentTriggers)
	startedAtMs := h.deps.now()

	outcome := h.deps.Orchestrator.RunTurn(snapshot,
		func(note agent.StreamNote) {
			h.emitEvent(st, "agent_stream", map[string]any{
				"phase":              note.Phase,
				"detail":             note.Detail,
				"created_at_unix_ms": h.deps.now(),
			})
		},
		func(inv agent.ToolInvocation) {
			task := h.queueTask(st, inv.ToolName, inv.ArgsJSON)
			if h.deps.Metrics != nil {
				h.deps.Metrics.ToolInvoked(inv.ToolName)
			}
			callSuffix := ""
			if inv.CallID != "" {
				callSuffix = " call_id=" + inv.CallID
			}
			assistantOutputs = append(assistantOutputs, fmt.Sprintf(
				"queued tool `%s` as %s (%s)%s", task.ToolName, task.TaskID, task.Status.Label(), callSuffix,
			))
		},
	)

	assistantOutputs = append(assistantOutputs, outcome.Diagnostics...)
	durationSeconds := float64(h.deps.now()-startedAtMs) / 1000

	if outcome.Failed {
		if h.deps.Metrics != nil {
			h.deps.Metrics.TurnFailed(outcome.FailureCode, durationSeconds)
		}
		h.emitEvent(st, "turn_failure", map[string]any{
			"turn_id":     turnID,
			"reason_code": outcome.FailureCode,
			"message":     outcome.FailureMessage,
		})
		assistantOutputs = append(assistantOutputs, fmt.Sprintf("turn failed [%s]: %s", outcome.FailureCode, outcome.FailureMessage))
		return assistantOutputs
	}

	if h.deps.Metrics != nil {
		h.deps.Metrics.TurnCompleted(durationSeconds)
	}
	assistantOutputs = append(assistantOutputs, fmt.Sprintf("agent dispatched %d tool call(s)", outcome.ToolCallCount))
	return assistantOutputs
}

func (h *Handle) buildTurnSnapshot(st *state, turnID uint64, triggers []Trigger) agent.TurnSnapshot {
	history := st.history
	if window := h.deps.historyWindowSize(); len(history) > window {
		history = history[len(history)-window:]
	}
	recentHistory := append([]string{}, history...)

	profiles := make([]profile.UserProfile, 0, len(st.participantUserIDs))
	for _, id := range st.participantUserIDs {
		if p, ok := st.participantProfiles[id]; ok {
			profiles = append(profiles, p)
		}
	}

	return agent.TurnSnapshot{
		SessionID:           st.sessionID,
		TurnID:              turnID,
		AgentProfile:        st.agentProfileCopy,
		ParticipantProfiles: profiles,
		Triggers:            triggers,
		RecentHistory:       recentHistory,
	}
}

// queueTask allocates a task id, admits it immediately if under
// task_capacity else parks it pending, and for an admitted task spawns
// the detached completer.
func (h *Handle) queueTask(st *state, toolName, argsJSON string) Task {
	taskID := h.deps.TaskSeq.Next()
	now := h.deps.now()
	shouldRunNow := len(st.runningTaskIDs) < h.deps.TaskCapacity

	status := StatusPending
	if shouldRunNow {
		status = StatusRunning
	}

	task := Task{
		TaskID:      taskID,
		SessionID:   st.sessionID,
		ToolName:    toolName,
		ArgsJSON:    argsJSON,
		Status:      status,
		CreatedAtMs: now,
		UpdatedAtMs: now,
	}
	st.tasks[taskID] = &task

	if shouldRunNow {
		st.runningTaskIDs[taskID] = struct{}{}
		h.spawnTaskCompletion(taskID, toolName, argsJSON)
	} else {
		st.pendingTaskIDs = append(st.pendingTaskIDs, taskID)
	}

	h.deps.taskGauges(st.sessionID, st)
	h.emitEvent(st, "task_state_changed", map[string]any{"task": task})
	return task
}

// cancelTask cancels a task unless it's already in a terminal state.
func (h *Handle) cancelTask(st *state, taskID string) (CancelTaskResult, error) {
	task, ok := st.tasks[taskID]
	if !ok {
		return CancelTaskResult{}, ErrNotFound
	}

	if task.Status.isTerminal() {
		return CancelTaskResult{Canceled: false, Task: *task}, nil
	}

	switch task.Status {
	case StatusPending:
		st.pendingTaskIDs = removeString(st.pendingTaskIDs, taskID)
	case StatusRunning:
		delete(st.runningTaskIDs, taskID)
	}

	task.Status = StatusCanceled
	task.ResultMessage = "canceled by request"
	task.UpdatedAtMs = h.deps.now()
	snapshot := *task

	if h.deps.Metrics != nil {
		h.deps.Metrics.TaskTerminal("canceled")
	}
	h.deps.taskGauges(st.sessionID, st)
	h.emitEvent(st, "task_state_changed", map[string]any{"task": snapshot})
	h.maybeStartPendingTasks(st)

	return CancelTaskResult{Canceled: true, Task: snapshot}, nil
}

// handleFinishedTask applies a TaskFinished report from the detached
// completer, ignoring anything the mailbox can no longer act on (task
// unknown, already canceled, or no longer active).
func (h *Handle) handleFinishedTask(st *state, taskID string, succeeded bool, message string) {
	task, ok := st.tasks[taskID]
	if !ok {
		return
	}
	if task.Status == StatusCanceled {
		return
	}
	if task.Status != StatusRunning && task.Status != StatusPending {
		return
	}

	delete(st.runningTaskIDs, taskID)

	if succeeded {
		task.Status = StatusSucceeded
	} else {
		task.Status = StatusFailed
	}
	task.ResultMessage = message
	task.UpdatedAtMs = h.deps.now()
	snapshot := *task

	if h.deps.Metrics != nil {
		h.deps.Metrics.TaskTerminal(snapshot.Status.Label())
	}
	h.deps.taskGauges(st.sessionID, st)
	h.emitEvent(st, "task_state_changed", map[string]any{"task": snapshot})

	trigger := Trigger{
		ID:            h.deps.TriggerSeq.Next(),
		CreatedAtMs:   h.deps.now(),
		Kind:          TriggerTaskDone,
		TaskID:        snapshot.TaskID,
		Status:        snapshot.Status.Label(),
		ResultMessage: snapshot.ResultMessage,
	}
	h.enqueueTrigger(st, trigger)
	h.maybeStartPendingTasks(st)
}

// maybeStartPendingTasks promotes queued tasks in FIFO order while
// there's spare running capacity.
func (h *Handle) maybeStartPendingTasks(st *state) {
	for len(st.runningTaskIDs) < h.deps.TaskCapacity {
		if len(st.pendingTaskIDs) == 0 {
			break
		}
		taskID := st.pendingTaskIDs[0]
		st.pendingTaskIDs = st.pendingTaskIDs[1:]

		task, ok := st.tasks[taskID]
		if !ok || task.Status != StatusPending {
			continue
		}

		task.Status = StatusRunning
		task.UpdatedAtMs = h.deps.now()
		toolName := task.ToolName
		argsJSON := task.ArgsJSON
		snapshot := *task

		st.runningTaskIDs[taskID] = struct{}{}
		h.deps.taskGauges(st.sessionID, st)
		h.emitEvent(st, "task_state_changed", map[string]any{"task": snapshot})
		h.spawnTaskCompletion(taskID, toolName, argsJSON)
	}
}

// spawnTaskCompletion is the sole cross-goroutine touch of session
// state: a detached goroutine sleeps task_runtime_ms, performs the real
// work for fs_* tools (the only tools with a live side effect) or a
// simulated completion for the rest, then reports back through the
// mailbox.
func (h *Handle) spawnTaskCompletion(taskID, toolName, argsJSON string) {
	runtimeMs := h.deps.TaskRuntimeMs
	go func() {
		time.Sleep(time.Duration(runtimeMs) * time.Millisecond)

		succeeded := true
		message := fmt.Sprintf("tool `%s` completed", toolName)
		if h.deps.FsExecutor != nil {
			if outcome, handled := h.deps.FsExecutor.Execute(toolName, argsJSON); handled {
				succeeded = outcome.Succeeded
				message = outcome.Message
			}
		}

		h.taskFinished(taskID, succeeded, message)
	}()
}

// applyProfileRefresh refreshes the session's in-memory profile copies
// from the shared store, returning the user ids actually refreshed.
func (h *Handle) applyProfileRefresh(st *state, trig Trigger) []string {
	scope := parseRefreshScope(trig.Scope)
	var refreshedUserIDs []string

	if scope == RefreshAgent || scope == RefreshAll {
		if p, ok := h.deps.ProfileStore.FetchAgent(st.agentID); ok {
			st.agentProfileCopy = p
		}
	}

	if scope == RefreshUser || scope == RefreshAll {
		if scope == RefreshUser && trig.UserID != "" {
			if p, ok := h.deps.ProfileStore.FetchUser(trig.UserID); ok {
				st.participantProfiles[trig.UserID] = p
				refreshedUserIDs = append(refreshedUserIDs, trig.UserID)
			}
		} else {
			for _, userID := range st.participantUserIDs {
				if p, ok := h.deps.ProfileStore.FetchUser(userID); ok {
					st.participantProfiles[userID] = p
					refreshedUserIDs = append(refreshedUserIDs, userID)
				}
			}
		}
	}

	return refreshedUserIDs
}

func parseRefreshScope(s string) RefreshScope {
	switch s {
	case "agent":
		return RefreshAgent
	case "user":
		return RefreshUser
	case "all":
		return RefreshAll
	default:
		return RefreshAll
	}
}

// flushHistory appends one history line per trigger the turn consumed,
// then one per assistant output it produced.
func (h *Handle) flushHistory(st *state, turnTriggers []Trigger, assistantOutputs []string) {
	for _, trig := range turnTriggers {
		st.history = append(st.history, fmt.Sprintf("%d trigger %s", trig.CreatedAtMs, triggerToHistoryText(trig)))
	}
	for _, output := range assistantOutputs {
		st.history = append(st.history, fmt.Sprintf("%d assistant %s", h.deps.now(), output))
	}
}

// triggerToHistoryText renders a trigger for the history log. This is
// intentionally distinct wording from agent.triggerText, which renders
// triggers for the prompt instead.
func triggerToHistoryText(t Trigger) string {
	switch t.Kind {
	case TriggerUserMessage:
		return fmt.Sprintf("user:%s %s", t.UserID, t.Text)
	case TriggerTaskDone:
		return fmt.Sprintf("task:%s %s %s", t.TaskID, t.Status, t.ResultMessage)
	case TriggerHeartbeat:
		return "heartbeat"
	case TriggerCron:
		return fmt.Sprintf("cron:%s", t.CronKey)
	case TriggerRefreshProfile:
		return fmt.Sprintf("refresh:%s:%s", t.Scope, t.UserID)
	default:
		return "unknown trigger"
	}
}

// emitEvent publishes kind to the session's hub, logging (not erroring)
// when there are no subscribers attached to receive it.
func (h *Handle) emitEvent(st *state, kind string, payload map[string]any) {
	if h.eventsHub.SubscriberCount() == 0 {
		h.deps.Logger.Warn("dropping event because no subscribers are attached", "session_id", st.sessionID, "kind", kind)
	}
	h.eventsHub.Publish(kind, h.deps.now(), payload)
}

func removeString(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
