// Package session implements one session's actor: a single-consumer
// command mailbox that serializes trigger intake, turn execution, and
// bounded background task scheduling for that session, grounded on
// fathom-server's session actor (src/session/engine.rs, src/session/state.rs).
package session

import (
	"github.com/fathom-run/fathom/internal/agent"
	"github.com/fathom-run/fathom/internal/profile"
)

// TaskStatus mirrors the original's pb.TaskStatus enum.
type TaskStatus int

const (
	StatusUnspecified TaskStatus = iota
	StatusPending
	StatusRunning
	StatusSucceeded
	StatusFailed
	StatusCanceled
)

// Label renders the status the way the original's task_status_label does.
func (s TaskStatus) Label() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	default:
		return "unspecified"
	}
}

func (s TaskStatus) isTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// RefreshScope selects which profile copies a refresh_profile trigger
// updates.
type RefreshScope int

const (
	RefreshUnspecified RefreshScope = iota
	RefreshAgent
	RefreshUser
	RefreshAll
)

// Label renders the scope the way the original's refresh_scope_label does.
func (s RefreshScope) Label() string {
	switch s {
	case RefreshAgent:
		return "agent"
	case RefreshUser:
		return "user"
	case RefreshAll:
		return "all"
	default:
		return "unspecified"
	}
}

// Task is a server-managed background job dispatched as a side effect
// of a tool call.
type Task struct {
	TaskID        string
	SessionID     string
	ToolName      string
	ArgsJSON      string
	Status        TaskStatus
	ResultMessage string
	CreatedAtMs   int64
	UpdatedAtMs   int64
}

// Summary is a point-in-time read-only view of a session, returned by
// GetSummary and by CreateSession.
type Summary struct {
	SessionID                     string
	CreatedAtMs                   int64
	AgentID                       string
	ParticipantUserIDs            []string
	AgentProfileCopy              profile.AgentProfile
	ParticipantUserProfilesCopy   []profile.UserProfile
	QueuedTriggerCount            uint64
	HistoryEntryCount             uint64
	PendingTaskCount              uint64
	RunningTaskCount              uint64
}

// Trigger is re-exported from the agent package: both the prompt
// builder and the session mailbox operate on the same tagged union of
// inputs.
type Trigger = agent.Trigger

const (
	TriggerUserMessage   = agent.TriggerUserMessage
	TriggerTaskDone      = agent.TriggerTaskDone
	TriggerHeartbeat     = agent.TriggerHeartbeat
	TriggerCron          = agent.TriggerCron
	TriggerRefreshProfile = agent.TriggerRefreshProfile
)
