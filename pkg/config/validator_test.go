package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		WorkspaceDir: "./workspace",
		Server:       ServerConfig{Addr: ":8080"},
		Orchestrator: LLMBackendConfig{APIKeyEnv: "ORCH_KEY", Model: "gpt-4o"},
		Checker:      LLMBackendConfig{APIKeyEnv: "CHECK_KEY", Model: "gpt-4o"},
		Evaluator:    LLMBackendConfig{APIKeyEnv: "EVAL_KEY", Model: "gpt-4o"},
		AutoMode:     AutoModeConfig{MaxTurns: 10, TurnTimeout: time.Minute, OnFixpoint: "stop"},
		Fanout:       FanoutConfig{RingBufferCapacity: 8, WatchDebounce: time.Millisecond},
	}
}

func TestValidateAll_MissingBackendModelIsFatal(t *testing.T) {
	t.Setenv("ORCH_KEY", "k")
	t.Setenv("CHECK_KEY", "k")
	t.Setenv("EVAL_KEY", "k")
	cfg := validConfig()
	cfg.Orchestrator.Model = ""

	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "orchestrator", verr.Section)
}

func TestValidateAll_MissingAPIKeyEnvNameIsFatal(t *testing.T) {
	t.Setenv("ORCH_KEY", "k")
	t.Setenv("EVAL_KEY", "k")
	cfg := validConfig()
	cfg.Checker.APIKeyEnv = ""

	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
}

// A backend whose api_key_env is well-formed but whose environment
// variable is unset is NOT fatal: ValidateAll records it on cfg.Available
// and boots the rest of the process normally.
func TestValidateAll_MissingAPIKeyValueIsNonFatal(t *testing.T) {
	t.Setenv("ORCH_KEY", "k")
	t.Setenv("CHECK_KEY", "k")
	// EVAL_KEY intentionally left unset.
	cfg := validConfig()

	err := NewValidator(cfg).ValidateAll()
	require.NoError(t, err)
	assert.True(t, cfg.Available.Orchestrator)
	assert.True(t, cfg.Available.Checker)
	assert.False(t, cfg.Available.Evaluator)
}

func TestValidateAll_AllBackendKeysMissingStillBoots(t *testing.T) {
	cfg := validConfig()

	err := NewValidator(cfg).ValidateAll()
	require.NoError(t, err)
	assert.Equal(t, BackendAvailability{}, cfg.Available)
}
