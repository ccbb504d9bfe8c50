// Package config loads and validates the process configuration for
// hypergraphd: YAML merged over built-in defaults with environment-variable
// expansion.
package config

import "time"

// Config is the fully resolved, validated configuration a running process
// builds its dependency graph from. Treat it as immutable after Initialize
// returns it.
type Config struct {
	configDir string

	WorkspaceDir string `yaml:"workspace_dir"`

	Server ServerConfig `yaml:"server"`

	// Orchestrator is the model backend driving the interactive chat loop.
	// Checker and Evaluator are the isolated judge backends, kept separate
	// so a deployment can point judges at a cheaper or stricter model than
	// the orchestrator.
	Orchestrator LLMBackendConfig `yaml:"orchestrator"`
	Checker      LLMBackendConfig `yaml:"checker"`
	Evaluator    LLMBackendConfig `yaml:"evaluator"`

	AutoMode AutoModeConfig `yaml:"auto_mode"`
	Fanout   FanoutConfig   `yaml:"fanout"`

	// Available records which LLM backends had their API key environment
	// variable set, computed by Validator.ValidateAll. A missing key is not
	// a fatal config error — the affected backend's tool is disabled at
	// startup and the rest of the process degrades cleanly.
	Available BackendAvailability `yaml:"-"`
}

// BackendAvailability reports, per LLM backend, whether its API key was
// present in the environment at startup.
type BackendAvailability struct {
	Orchestrator bool
	Checker      bool
	Evaluator    bool
}

// ServerConfig configures the HTTP/WebSocket surface.
type ServerConfig struct {
	Addr             string   `yaml:"addr"`
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
}

// LLMBackendConfig configures one model-provider backend.
type LLMBackendConfig struct {
	// APIKeyEnv names the environment variable holding the API key, not the
	// key itself — config files are checked into version control.
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url,omitempty"`
	Model     string `yaml:"model"`
}

// AutoModeConfig bounds the Auto Mode Supervisor.
type AutoModeConfig struct {
	MaxTurns    int           `yaml:"max_turns"`
	TurnTimeout time.Duration `yaml:"turn_timeout"`

	// OnFixpoint chooses what the supervisor does when no further action is
	// selectable: "idle" or "stop".
	OnFixpoint string `yaml:"on_fixpoint"`
}

// FanoutConfig holds fan-out settings that Validator checks. The fanout
// package does not read them: ConnectionManager keeps a fixed 500 events
// per approach and Watcher uses a fixed 150ms debounce.
type FanoutConfig struct {
	RingBufferCapacity int           `yaml:"ring_buffer_capacity"`
	WatchDebounce      time.Duration `yaml:"watch_debounce"`
}

// Dir returns the directory this configuration was loaded from.
func (c *Config) Dir() string { return c.configDir }
