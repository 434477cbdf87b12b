package agent

import (
	"fmt"

	"github.com/fathom-run/fathom/internal/llmclient"
	"github.com/fathom-run/fathom/internal/tooldef"
)

const retryFeedbackText = "No valid executable tool call was produced. You MUST emit at least " +
	"one valid tool call using the provided tool schemas."

// Orchestrator builds prompts from turn snapshots and drives them through
// the LLM client's streaming tool-call API.
type Orchestrator struct {
	client    *llmclient.Client
	initError string
	tools     *tooldef.Registry
}

// New constructs an Orchestrator. client may be nil to model a failed
// upstream client construction (e.g. missing API key wiring at startup);
// every RunTurn call then fails fast with agent_init_error, matching the
// original's Option<OpenAiClient> + init_error pairing.
func New(client *llmclient.Client, initError string) *Orchestrator {
	return &Orchestrator{client: client, initError: initError, tools: tooldef.NewRegistry()}
}

// RunTurn drives snapshot through up to 2 semantic attempts: if the first
// produces no tool call, a retry-feedback block is appended to the prompt
// and a second attempt runs; a second empty attempt fails the turn.
func (o *Orchestrator) RunTurn(snapshot TurnSnapshot, onStream func(StreamNote), onTool func(ToolInvocation)) TurnOutcome {
	if o.initError != "" {
		return failureOutcome("agent_init_error", fmt.Sprintf("agent initialization failed: %s", o.initError), nil)
	}
	if o.client == nil {
		return failureOutcome("agent_init_error", "agent initialization failed: LLM client is unavailable", nil)
	}

	var diagnostics []string
	retryFeedback := ""

	for semanticAttempt := 0; semanticAttempt <= 1; semanticAttempt++ {
		onStream(StreamNote{Phase: "agent.turn.attempt", Detail: fmt.Sprintf("semantic_attempt=%d", semanticAttempt+1)})

		prompt := buildToolOnlyPrompt(snapshot, retryFeedback)
		outcome, err := o.client.StreamToolCalls(prompt, o.tools, func(n llmclient.StreamNote) {
			onStream(StreamNote{Phase: n.Phase, Detail: n.Detail})
		}, func(inv llmclient.ToolInvocation) {
			onTool(ToolInvocation{ToolName: inv.ToolName, ArgsJSON: inv.ArgsJSON, CallID: inv.CallID})
		})

		if err != nil {
			diagnostics = append(diagnostics, fmt.Sprintf("llm request failed: %v", err))
			return failureOutcome("openai_error", err.Error(), diagnostics)
		}

		if outcome.ToolCallCount > 0 {
			diagnostics = append(diagnostics, outcome.Diagnostics...)
			diagnostics = append(diagnostics, fmt.Sprintf("tool_calls_dispatched=%d on attempt %d", outcome.ToolCallCount, semanticAttempt+1))
			return successOutcome(outcome.ToolCallCount, diagnostics)
		}

		diagnostics = append(diagnostics, outcome.Diagnostics...)
		diagnostics = append(diagnostics, fmt.Sprintf("no tool call generated on attempt %d", semanticAttempt+1))

		if semanticAttempt == 0 {
			retryFeedback = retryFeedbackText
			continue
		}

		return failureOutcome("no_tool_call", "agent produced no executable tool call after retry", diagnostics)
	}

	return failureOutcome("agent_unreachable", "unexpected agent loop termination", diagnostics)
}
