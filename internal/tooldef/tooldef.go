// Package tooldef defines the 7 tools exposed to the agent orchestrator's
// LLM calls and validates their arguments against a compiled JSON schema
// per tool, the same way the teacher validates gateway wire frames and
// plugin configs against github.com/santhosh-tekuri/jsonschema/v5.
package tooldef

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Spec is one tool's name, description, and JSON-schema-style parameters
// block, shaped to match the Responses-style "function" tool definitions
// the LLM endpoint expects.
type Spec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Registry holds the fixed set of tools available to every turn, plus
// each tool's argument schema compiled once at construction time.
type Registry struct {
	tools   []Spec
	byName  map[string]Spec
	schemas map[string]*jsonschema.Schema
	initErr error
}

func NewRegistry() *Registry {
	tools := []Spec{
		{
			Name:        "memory_append",
			Description: "Append a durable note to agent or user long-term memory.",
			Parameters: objectSchema(map[string]any{
				"target":    enumString("agent", "user"),
				"target_id": nonEmptyStringSchema(),
				"note":      nonEmptyStringSchema(),
			}, []string{"target", "target_id", "note"}),
		},
		{
			Name:        "refresh_profile",
			Description: "Refresh the session-local immutable profile copy for agent/user/all.",
			Parameters:  refreshProfileParameters(),
		},
		{
			Name:        "schedule_heartbeat",
			Description: "Schedule a heartbeat-style background job for the current session.",
			Parameters: objectSchema(map[string]any{
				"delay_ms": map[string]any{"type": "integer", "minimum": 0},
			}, []string{"delay_ms"}),
		},
		{
			Name:        "fs_list",
			Description: "List entries under a managed:// or fs:// path.",
			Parameters: objectSchema(map[string]any{
				"path": pathStringSchema(),
			}, []string{"path"}),
		},
		{
			Name:        "fs_read",
			Description: "Read the content addressed by a managed:// or fs:// path.",
			Parameters: objectSchema(map[string]any{
				"path": pathStringSchema(),
			}, []string{"path"}),
		},
		{
			Name:        "fs_write",
			Description: "Write content to a managed:// or fs:// path.",
			Parameters: objectSchema(map[string]any{
				"path": pathStringSchema(),
				// content may legitimately be empty (fs_write clears a file).
				"content":        stringSchema(),
				"allow_override": map[string]any{"type": "boolean"},
			}, []string{"path", "content", "allow_override"}),
		},
		{
			Name:        "fs_replace",
			Description: "Replace occurrences of a substring at a managed:// or fs:// path.",
			Parameters: objectSchema(map[string]any{
				"path": pathStringSchema(),
				"old":  nonEmptyStringSchema(),
				// new may legitimately be empty (fs_replace deletes matched text).
				"new":  stringSchema(),
				"mode": enumString("first", "all"),
			}, []string{"path", "old", "new", "mode"}),
		},
	}

	r := &Registry{
		tools:   tools,
		byName:  make(map[string]Spec, len(tools)),
		schemas: make(map[string]*jsonschema.Schema, len(tools)),
	}
	for _, t := range tools {
		r.byName[t.Name] = t
		raw, err := json.Marshal(t.Parameters)
		if err != nil {
			r.initErr = fmt.Errorf("marshal schema for tool `%s`: %w", t.Name, err)
			return r
		}
		compiled, err := jsonschema.CompileString(t.Name+".schema.json", string(raw))
		if err != nil {
			r.initErr = fmt.Errorf("compile schema for tool `%s`: %w", t.Name, err)
			return r
		}
		r.schemas[t.Name] = compiled
	}
	return r
}

// refreshProfileParameters adds an if/then clause on top of objectSchema's
// shape: user_id is only required when scope is "user", matching
// spec.md's refresh_profile semantics without a hand-rolled switch branch.
func refreshProfileParameters() map[string]any {
	params := objectSchema(map[string]any{
		"scope":   enumString("agent", "user", "all"),
		"user_id": nonEmptyStringSchema(),
	}, []string{"scope"})
	params["if"] = map[string]any{
		"properties": map[string]any{"scope": map[string]any{"const": "user"}},
	}
	params["then"] = map[string]any{"required": []string{"scope", "user_id"}}
	return params
}

// Definitions returns the tool list shaped for the LLM's tool-calling API.
func (r *Registry) Definitions() []map[string]any {
	defs := make([]map[string]any, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, map[string]any{
			"type":        "function",
			"name":        t.Name,
			"description": t.Description,
			"parameters":  t.Parameters,
			"strict":      true,
		})
	}
	return defs
}

// Validate checks args against toolName's compiled JSON schema. Returns a
// descriptive error; internal/llmclient treats it as a stream failure and
// retries the request, so once retries run out the turn fails with
// openai_error.
func (r *Registry) Validate(toolName string, args map[string]any) error {
	if r.initErr != nil {
		return r.initErr
	}
	if _, ok := r.byName[toolName]; !ok {
		return fmt.Errorf("unknown tool `%s`", toolName)
	}
	if err := r.schemas[toolName].Validate(args); err != nil {
		return fmt.Errorf("tool `%s` arguments invalid: %w", toolName, err)
	}
	return nil
}
