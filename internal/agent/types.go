// Package agent builds turn prompts from a session snapshot and drives
// the LLM streaming client through the exact 2-attempt retry loop
// fathom-server's orchestrator uses, dispatching validated tool calls
// back to the caller.
package agent

import (
	"github.com/fathom-run/fathom/internal/profile"
)

// SummaryBlockRef is a reference to a compacted history range. Compaction
// itself is not performed by anything in this module; the type exists so
// a snapshot can carry and render one if a component populates it.
type SummaryBlockRef struct {
	ID               string
	SourceRangeStart uint64
	SourceRangeEnd   uint64
	SummaryText      string
	CreatedAtMs      int64
}

// CompactionSnapshot is the session's compaction state as of a turn.
type CompactionSnapshot struct {
	LastCompactedHistoryIndex uint64
	SummaryBlocks             []SummaryBlockRef
}

// TriggerKind tags a Trigger's variant.
type TriggerKind int

const (
	TriggerUserMessage TriggerKind = iota
	TriggerTaskDone
	TriggerHeartbeat
	TriggerCron
	TriggerRefreshProfile
)

// Trigger is the tagged union of inputs that can start or feed a turn.
type Trigger struct {
	ID          string
	CreatedAtMs int64
	Kind        TriggerKind

	// TriggerUserMessage
	UserID string
	Text   string

	// TriggerTaskDone
	TaskID        string
	Status        string
	ResultMessage string

	// TriggerCron
	CronKey string

	// TriggerRefreshProfile
	Scope string // agent | user | all
	// UserID is reused for refresh_profile{scope=user}.
}

// TurnSnapshot is the immutable view of session state a single turn's
// prompt is built from.
type TurnSnapshot struct {
	SessionID           string
	TurnID              uint64
	AgentProfile        profile.AgentProfile
	ParticipantProfiles []profile.UserProfile
	Triggers            []Trigger
	RecentHistory       []string
	Compaction          CompactionSnapshot
}

// ToolInvocation is one fully-assembled, validated tool call emitted
// during a turn.
type ToolInvocation struct {
	ToolName string
	ArgsJSON string
	CallID   string
}

// StreamNote is a diagnostic note surfaced while a turn is in progress.
type StreamNote struct {
	Phase  string
	Detail string
}

// TurnOutcome is the result of running one turn to completion.
type TurnOutcome struct {
	ToolCallCount  int
	Diagnostics    []string
	Failed         bool
	FailureCode    string
	FailureMessage string
}

func successOutcome(toolCallCount int, diagnostics []string) TurnOutcome {
	return TurnOutcome{ToolCallCount: toolCallCount, Diagnostics: diagnostics}
}

func failureOutcome(code, message string, diagnostics []string) TurnOutcome {
	return TurnOutcome{Failed: true, FailureCode: code, FailureMessage: message, Diagnostics: diagnostics}
}
