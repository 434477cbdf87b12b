// Package config loads fathomd's runtime configuration: task scheduling
// limits, the workspace root, cron schedules, and the LLM endpoint
// settings, using the same $include + env-expansion + yaml/json5
// loader shape the teacher uses for its much larger configuration tree.
package config

// Config is the top-level configuration for a fathomd process.
type Config struct {
	Runtime RuntimeConfig `yaml:"runtime"`
	LLM     LLMConfig     `yaml:"llm"`
	Cron    []CronEntry   `yaml:"cron"`
	Logging LoggingConfig `yaml:"logging"`
}

// RuntimeConfig controls session scheduling limits.
type RuntimeConfig struct {
	// TaskCapacity bounds how many tasks a session may run concurrently.
	TaskCapacity int `yaml:"task_capacity"`

	// TaskRuntimeMs is how long the detached task completer sleeps
	// before finishing a tool task: fs_* tasks execute after the sleep,
	// every other tool reports a simulated completion.
	TaskRuntimeMs int64 `yaml:"task_runtime_ms"`

	// WorkspaceRoot is the directory fs:// paths are resolved against.
	// Must exist and be a directory; canonicalized at startup.
	WorkspaceRoot string `yaml:"workspace_root"`

	// EventBufferSize bounds each session's retained event ring.
	EventBufferSize int `yaml:"event_buffer_size"`

	// SessionCommandBufferSize is decoded and merged but not passed to
	// the session actors: each session's command mailbox holds a fixed
	// 128 commands regardless of this value.
	SessionCommandBufferSize int `yaml:"session_command_buffer_size"`

	// HistoryWindowSize bounds how many recent history lines are folded
	// into a turn snapshot's prompt.
	HistoryWindowSize int `yaml:"history_window_size"`
}

// LLMConfig configures the streaming tool-call client. The API
// credential itself is read from process environment, never from this
// file, matching the original's env-only credential handling.
type LLMConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Model           string `yaml:"model"`
	ReasoningEffort string `yaml:"reasoning_effort"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	APIKeyEnv       string `yaml:"api_key_env"`
}

// CronEntry schedules a recurring cron{key} trigger into a session.
type CronEntry struct {
	Key       string `yaml:"key"`
	Schedule  string `yaml:"schedule"`
	SessionID string `yaml:"session_id"`
}

// LoggingConfig is decoded and merged but not applied: cmd/fathomd
// installs a fixed text handler at info level and does not read this
// section.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the configuration fathomd runs with when no config
// file is supplied.
func Default() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			TaskCapacity:             4,
			TaskRuntimeMs:            500,
			WorkspaceRoot:            ".",
			EventBufferSize:          256,
			SessionCommandBufferSize: 128,
			HistoryWindowSize:        80,
		},
		LLM: LLMConfig{
			Endpoint:        "https://api.openai.com/v1/responses",
			Model:           "gpt-5.3-codex",
			ReasoningEffort: "extra_high",
			TimeoutSeconds:  45,
			APIKeyEnv:       "FATHOM_LLM_API_KEY",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads, resolves includes for, and decodes the config file at
// path. Fields absent from the file keep Default's values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	parsed, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	merged := mergeDefaults(cfg, parsed)
	return merged, nil
}

func mergeDefaults(base, override *Config) *Config {
	if override.Runtime.TaskCapacity != 0 {
		base.Runtime.TaskCapacity = override.Runtime.TaskCapacity
	}
	if override.Runtime.TaskRuntimeMs != 0 {
		base.Runtime.TaskRuntimeMs = override.Runtime.TaskRuntimeMs
	}
	if override.Runtime.WorkspaceRoot != "" {
		base.Runtime.WorkspaceRoot = override.Runtime.WorkspaceRoot
	}
	if override.Runtime.EventBufferSize != 0 {
		base.Runtime.EventBufferSize = override.Runtime.EventBufferSize
	}
	if override.Runtime.SessionCommandBufferSize != 0 {
		base.Runtime.SessionCommandBufferSize = override.Runtime.SessionCommandBufferSize
	}
	if override.Runtime.HistoryWindowSize != 0 {
		base.Runtime.HistoryWindowSize = override.Runtime.HistoryWindowSize
	}
	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.ReasoningEffort != "" {
		base.LLM.ReasoningEffort = override.LLM.ReasoningEffort
	}
	if override.LLM.TimeoutSeconds != 0 {
		base.LLM.TimeoutSeconds = override.LLM.TimeoutSeconds
	}
	if override.LLM.APIKeyEnv != "" {
		base.LLM.APIKeyEnv = override.LLM.APIKeyEnv
	}
	if len(override.Cron) > 0 {
		base.Cron = override.Cron
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}
	return base
}
