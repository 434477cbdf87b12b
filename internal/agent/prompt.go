package agent

import (
	"fmt"
	"strings"
)

// buildToolOnlyPrompt renders a TurnSnapshot into the fixed-section
// plaintext prompt the LLM streaming client sends as `input`. Section
// order, headers, and field selection are load-bearing: this must match
// what fathom-server's prompt builder produces line for line.
func buildToolOnlyPrompt(snapshot TurnSnapshot, retryFeedback string) string {
	var lines []string
	lines = append(lines,
		"You are Fathom's session agent.",
		"You must respond using one or more tool calls only.",
		"Never emit plain assistant text as the final answer for this turn.",
		"If no action is needed, call schedule_heartbeat with a short delay.",
		"All tools are server-managed background jobs.",
		"Use fs_list/fs_read/fs_write/fs_replace for file operations.",
		"Task results arrive as JSON text in task_done.result_message.",
		"",
	)

	lines = append(lines,
		"## Session",
		fmt.Sprintf("session_id: %s", snapshot.SessionID),
		fmt.Sprintf("turn_id: %d", snapshot.TurnID),
		"",
	)

	ap := snapshot.AgentProfile
	lines = append(lines,
		"## Agent Profile Copy",
		fmt.Sprintf("display_name: %s", ap.DisplayName),
		"SOUL.md:",
		ap.SoulMd,
		"IDENTITY.md:",
		ap.IdentityMd,
		"AGENTS.md:",
		ap.AgentsMd,
		"guidelines:",
		ap.GuidelinesMd,
		"",
	)

	lines = append(lines, "## Participant User Profiles")
	if len(snapshot.ParticipantProfiles) == 0 {
		lines = append(lines, "(none)")
	} else {
		for _, up := range snapshot.ParticipantProfiles {
			lines = append(lines,
				fmt.Sprintf("- user_id: %s", up.UserID),
				fmt.Sprintf("  name: %s", up.Name),
				fmt.Sprintf("  nickname: %s", up.Nickname),
				fmt.Sprintf("  preferences_json: %s", up.PreferencesJS),
				"  USER.md:",
				up.UserMd,
			)
		}
	}
	lines = append(lines, "")

	lines = append(lines, "## Recent History")
	if len(snapshot.RecentHistory) == 0 {
		lines = append(lines, "(empty)")
	} else {
		lines = append(lines, snapshot.RecentHistory...)
	}
	lines = append(lines, "")

	lines = append(lines,
		"## Compaction State (modeled, not actively updated yet)",
		fmt.Sprintf("last_compacted_history_index: %d", snapshot.Compaction.LastCompactedHistoryIndex),
	)
	if len(snapshot.Compaction.SummaryBlocks) == 0 {
		lines = append(lines, "summary_blocks: []")
	} else {
		for _, b := range snapshot.Compaction.SummaryBlocks {
			lines = append(lines, fmt.Sprintf(
				"summary_block: id=%s range=[%d, %d] created_at=%d text=%s",
				b.ID, b.SourceRangeStart, b.SourceRangeEnd, b.CreatedAtMs, b.SummaryText,
			))
		}
	}
	lines = append(lines, "")

	lines = append(lines, "## Trigger Snapshot For This Turn")
	for _, trig := range snapshot.Triggers {
		lines = append(lines, "- "+triggerText(trig))
	}
	lines = append(lines, "")

	if retryFeedback != "" {
		lines = append(lines, "## Retry Feedback", retryFeedback, "")
	}

	return strings.Join(lines, "\n")
}

func triggerText(t Trigger) string {
	switch t.Kind {
	case TriggerUserMessage:
		return fmt.Sprintf("user_message user=%s text=%s", t.UserID, t.Text)
	case TriggerTaskDone:
		return fmt.Sprintf("task_done task_id=%s result=%s", t.TaskID, t.ResultMessage)
	case TriggerHeartbeat:
		return "heartbeat"
	case TriggerCron:
		return fmt.Sprintf("cron key=%s", t.CronKey)
	case TriggerRefreshProfile:
		return fmt.Sprintf("refresh_profile scope=%s user_id=%s", t.Scope, t.UserID)
	default:
		return "unknown_trigger"
	}
}
