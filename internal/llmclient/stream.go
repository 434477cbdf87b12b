package llmclient

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

type partialToolCall struct {
	callID    string
	name      string
	arguments string
}

// parseStream reads newline-delimited `data:` SSE frames from body until
// `data: [DONE]` or EOF, dispatching fully-assembled, validated tool
// calls to onTool exactly once per call id (falling back to item id when
// no call id is present).
func (c *Client) parseStream(body io.Reader, tools ToolRegistry, onStream func(StreamNote), onTool func(ToolInvocation)) (StreamOutcome, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	partials := make(map[string]*partialToolCall)
	dispatched := make(map[string]bool)
	var toolCallCount int
	var diagnostics []string

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(line[len("data:"):])
		if payload == "[DONE]" {
			return StreamOutcome{ToolCallCount: toolCallCount, Diagnostics: diagnostics}, nil
		}

		var event map[string]any
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return StreamOutcome{}, fmt.Errorf("invalid stream json payload: %w", err)
		}

		if err := c.handleStreamEvent(event, tools, onStream, onTool, partials, dispatched, &toolCallCount, &diagnostics); err != nil {
			return StreamOutcome{}, err
		}
	}
	if err := scanner.Err(); err != nil {
		return StreamOutcome{}, fmt.Errorf("stream read error: %w", err)
	}

	return StreamOutcome{ToolCallCount: toolCallCount, Diagnostics: diagnostics}, nil
}

func (c *Client) handleStreamEvent(
	event map[string]any,
	tools ToolRegistry,
	onStream func(StreamNote),
	onTool func(ToolInvocation),
	partials map[string]*partialToolCall,
	dispatched map[string]bool,
	toolCallCount *int,
	diagnostics *[]string,
) error {
	eventType, _ := event["type"].(string)
	if eventType == "" {
		eventType = "unknown"
	}
	onStream(StreamNote{Phase: "llm.stream.event", Detail: eventType})

	switch eventType {
	case "response.output_item.added", "response.output_item.done":
		item, _ := event["item"].(map[string]any)
		if item != nil {
			return maybeFinalizeItem(item, tools, onTool, partials, dispatched, toolCallCount, diagnostics)
		}
		return nil

	case "response.function_call_arguments.delta":
		key := orUnknownCall(extractCallKey(event))
		delta, _ := event["delta"].(string)
		p := getOrInsertPartial(partials, key, event)
		p.arguments += delta
		return nil

	case "response.function_call_arguments.done":
		key := orUnknownCall(extractCallKey(event))
		arguments, _ := event["arguments"].(string)
		p := getOrInsertPartial(partials, key, event)
		p.arguments = arguments
		if p.name != "" {
			return maybeDispatchPartial(key, p.name, p.arguments, p.callID, tools, onTool, dispatched, toolCallCount, diagnostics)
		}
		return nil

	case "response.error":
		b, _ := json.Marshal(event)
		return fmt.Errorf("LLM stream error payload: %s", string(b))

	default:
		return nil
	}
}

func getOrInsertPartial(partials map[string]*partialToolCall, key string, event map[string]any) *partialToolCall {
	p, ok := partials[key]
	if !ok {
		callID, _ := event["call_id"].(string)
		name, _ := event["name"].(string)
		p = &partialToolCall{callID: callID, name: name}
		partials[key] = p
	}
	return p
}

func maybeFinalizeItem(
	item map[string]any,
	tools ToolRegistry,
	onTool func(ToolInvocation),
	partials map[string]*partialToolCall,
	dispatched map[string]bool,
	toolCallCount *int,
	diagnostics *[]string,
) error {
	if t, _ := item["type"].(string); t != "function_call" {
		return nil
	}

	key, _ := item["id"].(string)
	if key == "" {
		key, _ = item["call_id"].(string)
	}
	if key == "" {
		key = "unknown_call"
	}

	entry, ok := partials[key]
	if !ok {
		callID, _ := item["call_id"].(string)
		name, _ := item["name"].(string)
		entry = &partialToolCall{callID: callID, name: name}
		partials[key] = entry
	}
	if name, _ := item["name"].(string); name != "" {
		entry.name = name
	}
	if args, _ := item["arguments"].(string); args != "" {
		entry.arguments = args
	}

	if entry.name != "" {
		return maybeDispatchPartial(key, entry.name, entry.arguments, entry.callID, tools, onTool, dispatched, toolCallCount, diagnostics)
	}
	return nil
}

// maybeDispatchPartial validates and emits a tool call exactly once per
// dispatch key (call id when present, else the stream's item/call key).
func maybeDispatchPartial(
	key, toolName, argumentsRaw, callID string,
	tools ToolRegistry,
	onTool func(ToolInvocation),
	dispatched map[string]bool,
	toolCallCount *int,
	diagnostics *[]string,
) error {
	if strings.TrimSpace(argumentsRaw) == "" {
		return nil
	}

	dispatchKey := callID
	if dispatchKey == "" {
		dispatchKey = key
	}
	if dispatched[dispatchKey] {
		return nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(argumentsRaw), &args); err != nil {
		return fmt.Errorf("invalid arguments JSON for tool `%s`: %w; payload=%s", toolName, err, argumentsRaw)
	}
	if err := tools.Validate(toolName, args); err != nil {
		return fmt.Errorf("tool validation failed: %w", err)
	}

	canonical, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to canonicalize tool args: %w", err)
	}

	onTool(ToolInvocation{ToolName: toolName, ArgsJSON: string(canonical), CallID: callID})
	*diagnostics = append(*diagnostics, fmt.Sprintf("dispatched tool_call=%s name=%s", dispatchKey, toolName))
	dispatched[dispatchKey] = true
	*toolCallCount++
	return nil
}

func orUnknownCall(key string) string {
	if key == "" {
		return "unknown_call"
	}
	return key
}

func extractCallKey(event map[string]any) string {
	if v, _ := event["item_id"].(string); v != "" {
		return v
	}
	if v, _ := event["call_id"].(string); v != "" {
		return v
	}
	return ""
}
