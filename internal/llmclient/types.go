// Package llmclient is a hand-rolled streaming client for the
// Responses-style tool-calling LLM endpoint the agent orchestrator talks
// to. The wire format (response.output_item.*, response.function_call_
// arguments.delta/.done, response.error, newline-delimited `data:` frames
// terminated by `data: [DONE]`) doesn't match any real provider SDK's
// event model, so this parses raw SSE frames over net/http + bufio rather
// than wrapping an existing client.
package llmclient

// StreamNote is a diagnostic event surfaced as the stream progresses:
// attempt starts, retries, reasoning-effort fallbacks, and individual
// upstream event types. Callers typically fold these into AgentStream
// events (see internal/agent).
type StreamNote struct {
	Phase  string
	Detail string
}

// ToolInvocation is one fully-assembled, validated tool call extracted
// from the stream.
type ToolInvocation struct {
	ToolName string
	ArgsJSON string
	CallID   string // empty when the upstream event carried none
}

// StreamOutcome summarizes a completed stream_tool_calls call.
type StreamOutcome struct {
	ToolCallCount int
	Diagnostics   []string
}

// ToolRegistry is the subset of tooldef.Registry the client needs: tool
// definitions to send upstream, and argument validation before dispatch.
type ToolRegistry interface {
	Definitions() []map[string]any
	Validate(toolName string, args map[string]any) error
}
