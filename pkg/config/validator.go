package config

import (
	"fmt"
	"log/slog"
	"os"
)

// Validator validates a loaded Config comprehensively, failing fast on
// structural problems (bad bounds, a section missing its model/api_key_env
// name). A backend's API key being unset at runtime is not one of those
// problems: it should degrade the affected backend rather than abort the
// process, so ValidateAll instead records it on cfg.Available for callers
// to act on per backend.
type Validator struct {
	cfg *Config
}

// NewValidator constructs a Validator for cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll validates every section in dependency order: server, then the
// three LLM backends, then
// auto mode, then fan-out.
func (v *Validator) ValidateAll() error {
	if v.cfg.WorkspaceDir == "" {
		return NewValidationError("root", "workspace_dir", fmt.Errorf("required"))
	}

	if err := v.validateServer(); err != nil {
		return err
	}

	orchestratorOK, err := v.validateBackend("orchestrator", v.cfg.Orchestrator)
	if err != nil {
		return err
	}
	checkerOK, err := v.validateBackend("checker", v.cfg.Checker)
	if err != nil {
		return err
	}
	evaluatorOK, err := v.validateBackend("evaluator", v.cfg.Evaluator)
	if err != nil {
		return err
	}
	v.cfg.Available = BackendAvailability{Orchestrator: orchestratorOK, Checker: checkerOK, Evaluator: evaluatorOK}
	warnUnavailable("orchestrator", v.cfg.Orchestrator.APIKeyEnv, orchestratorOK)
	warnUnavailable("checker", v.cfg.Checker.APIKeyEnv, checkerOK)
	warnUnavailable("evaluator", v.cfg.Evaluator.APIKeyEnv, evaluatorOK)

	if err := v.validateAutoMode(); err != nil {
		return err
	}
	if err := v.validateFanout(); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validateServer() error {
	if v.cfg.Server.Addr == "" {
		return NewValidationError("server", "addr", fmt.Errorf("required"))
	}
	return nil
}

// validateBackend fails only on an authoring mistake (no model, no
// api_key_env name). Whether the named environment variable actually holds
// a key is reported back as a bool, not an error, so one missing key
// degrades the affected backend instead of aborting startup.
func (v *Validator) validateBackend(section string, b LLMBackendConfig) (bool, error) {
	if b.Model == "" {
		return false, NewValidationError(section, "model", fmt.Errorf("required"))
	}
	if b.APIKeyEnv == "" {
		return false, NewValidationError(section, "api_key_env", fmt.Errorf("required"))
	}
	return os.Getenv(b.APIKeyEnv) != "", nil
}

func warnUnavailable(section, envVar string, available bool) {
	if !available {
		slog.Warn("backend disabled: api key not set", "backend", section, "api_key_env", envVar)
	}
}

func (v *Validator) validateAutoMode() error {
	am := v.cfg.AutoMode
	if am.MaxTurns < 1 {
		return NewValidationError("auto_mode", "max_turns", fmt.Errorf("must be at least 1, got %d", am.MaxTurns))
	}
	if am.TurnTimeout <= 0 {
		return NewValidationError("auto_mode", "turn_timeout", fmt.Errorf("must be positive, got %v", am.TurnTimeout))
	}
	switch am.OnFixpoint {
	case "idle", "stop":
	default:
		return NewValidationError("auto_mode", "on_fixpoint", fmt.Errorf("must be %q or %q, got %q", "idle", "stop", am.OnFixpoint))
	}
	return nil
}

func (v *Validator) validateFanout() error {
	f := v.cfg.Fanout
	if f.RingBufferCapacity < 1 {
		return NewValidationError("fanout", "ring_buffer_capacity", fmt.Errorf("must be at least 1, got %d", f.RingBufferCapacity))
	}
	if f.WatchDebounce <= 0 {
		return NewValidationError("fanout", "watch_debounce", fmt.Errorf("must be positive, got %v", f.WatchDebounce))
	}
	return nil
}
