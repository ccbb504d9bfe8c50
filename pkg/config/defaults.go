package config

import "time"

// defaultConfig returns the built-in baseline every loaded YAML file is
// merged on top of — ship a config that runs out of the box, let YAML
// override only what it sets.
func defaultConfig() *Config {
	return &Config{
		WorkspaceDir: "./workspace",
		Server: ServerConfig{
			Addr:             ":8080",
			AllowedWSOrigins: nil,
		},
		Orchestrator: LLMBackendConfig{
			APIKeyEnv: "OPENAI_API_KEY",
			Model:     "gpt-4o",
		},
		Checker: LLMBackendConfig{
			APIKeyEnv: "OPENAI_API_KEY",
			Model:     "gpt-4o",
		},
		Evaluator: LLMBackendConfig{
			APIKeyEnv: "OPENAI_API_KEY",
			Model:     "gpt-4o",
		},
		AutoMode: AutoModeConfig{
			MaxTurns:    40,
			TurnTimeout: 2 * time.Minute,
			OnFixpoint:  "stop",
		},
		Fanout: FanoutConfig{
			RingBufferCapacity: 256,
			WatchDebounce:      150 * time.Millisecond,
		},
	}
}
