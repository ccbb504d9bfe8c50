package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Initialize loads, merges, and validates configuration from configDir's
// hypergraphd.yaml, returning ready-to-use configuration. This is the
// primary entry point cmd/hypergraphd calls.
//
// Steps:
//  1. Start from the built-in defaults.
//  2. Load hypergraphd.yaml if present (expanding ${VAR} references first).
//  3. Merge the loaded file over the defaults (file values win).
//  4. Validate (fail fast on bad bounds; a missing provider key is recorded
//     in Available rather than failing).
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("loading configuration")

	cfg := defaultConfig()
	cfg.configDir = configDir

	path := filepath.Join(configDir, "hypergraphd.yaml")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		data = ExpandEnv(data)
		var fromFile Config
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
		if err := mergo.Merge(cfg, &fromFile, mergo.WithOverride); err != nil {
			return nil, NewLoadError(path, fmt.Errorf("merge over defaults: %w", err))
		}
	case os.IsNotExist(err):
		log.Info("no hypergraphd.yaml found, using built-in defaults", "path", path)
	default:
		return nil, NewLoadError(path, err)
	}

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	log.Info("configuration loaded", "workspace_dir", cfg.WorkspaceDir, "server_addr", cfg.Server.Addr)
	return cfg, nil
}
