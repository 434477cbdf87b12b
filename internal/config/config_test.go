package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fathomd.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadWithNoPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Runtime.TaskCapacity != 4 {
		t.Fatalf("expected default task_capacity 4, got %d", cfg.Runtime.TaskCapacity)
	}
	if cfg.LLM.Model != "gpt-5.3-codex" {
		t.Fatalf("expected default model, got %q", cfg.LLM.Model)
	}
	if cfg.Runtime.HistoryWindowSize != 80 {
		t.Fatalf("expected default history_window_size 80, got %d", cfg.Runtime.HistoryWindowSize)
	}
}

func TestLoadOverridesDefaultsFromFile(t *testing.T) {
	path := writeConfig(t, `
runtime:
  task_capacity: 8
  workspace_root: /tmp/fathom-workspace
llm:
  model: custom-model
cron:
  - key: nightly
    schedule: "0 2 * * *"
    session_id: session-1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Runtime.TaskCapacity != 8 {
		t.Fatalf("expected task_capacity 8, got %d", cfg.Runtime.TaskCapacity)
	}
	if cfg.Runtime.TaskRuntimeMs != 500 {
		t.Fatalf("expected untouched default task_runtime_ms 500, got %d", cfg.Runtime.TaskRuntimeMs)
	}
	if cfg.LLM.Model != "custom-model" {
		t.Fatalf("expected overridden model, got %q", cfg.LLM.Model)
	}
	if len(cfg.Cron) != 1 || cfg.Cron[0].Key != "nightly" {
		t.Fatalf("expected one cron entry, got %+v", cfg.Cron)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
runtime:
  task_capacity: 2
  extra_unknown_field: true
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("FATHOM_TEST_MODEL", "env-model")
	path := writeConfig(t, `
llm:
  model: ${FATHOM_TEST_MODEL}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Model != "env-model" {
		t.Fatalf("expected env-expanded model, got %q", cfg.LLM.Model)
	}
}

func TestLoadResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.yaml")
	mainPath := filepath.Join(dir, "fathomd.yaml")

	if err := os.WriteFile(basePath, []byte("runtime:\n  task_capacity: 6\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(mainPath, []byte("$include: base.yaml\nllm:\n  model: included-model\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(mainPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Runtime.TaskCapacity != 6 {
		t.Fatalf("expected included task_capacity 6, got %d", cfg.Runtime.TaskCapacity)
	}
	if cfg.LLM.Model != "included-model" {
		t.Fatalf("expected main file's model, got %q", cfg.LLM.Model)
	}
}
