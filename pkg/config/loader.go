package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// yamlConfig mirrors the on-disk ambientd.yaml file structure. All fields
// are optional — anything left unset falls back to the built-in default
// via mergo.Merge.
type yamlConfig struct {
	Curiosity    *CuriosityConfig    `yaml:"curiosity"`
	Orchestrator *OrchestratorConfig `yaml:"orchestrator"`
	Summary      *SummaryConfig      `yaml:"summary"`
	Queue        *QueueConfig        `yaml:"queue"`
	Presence     *PresenceConfig     `yaml:"presence"`
	Retention    *RetentionConfig    `yaml:"retention"`
}

// Initialize loads, merges, and validates configuration.
//
// Steps:
//  1. Read <configDir>/ambientd.yaml (missing file is not an error — built-in
//     defaults apply).
//  2. Expand environment variables in the raw YAML text.
//  3. Parse into a yamlConfig overlay.
//  4. Merge onto the built-in defaults (user values win).
//  5. Validate.
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg := defaultConfig()
	cfg.configDir = configDir

	path := filepath.Join(configDir, "ambientd.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info("No ambientd.yaml found, using built-in defaults", "path", path)
			return cfg, ValidateAll(cfg)
		}
		return nil, NewLoadError(path, err)
	}

	expanded := ExpandEnv(raw)

	var overlay yamlConfig
	if err := yaml.Unmarshal(expanded, &overlay); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidYAML, path, err)
	}

	if overlay.Curiosity != nil {
		if err := mergo.Merge(overlay.Curiosity, cfg.Curiosity); err != nil {
			return nil, fmt.Errorf("merging curiosity config: %w", err)
		}
		cfg.Curiosity = overlay.Curiosity
	}
	if overlay.Orchestrator != nil {
		if err := mergo.Merge(overlay.Orchestrator, cfg.Orchestrator); err != nil {
			return nil, fmt.Errorf("merging orchestrator config: %w", err)
		}
		cfg.Orchestrator = overlay.Orchestrator
	}
	if overlay.Summary != nil {
		if err := mergo.Merge(overlay.Summary, cfg.Summary); err != nil {
			return nil, fmt.Errorf("merging summary config: %w", err)
		}
		cfg.Summary = overlay.Summary
	}
	if overlay.Queue != nil {
		if err := mergo.Merge(overlay.Queue, cfg.Queue); err != nil {
			return nil, fmt.Errorf("merging queue config: %w", err)
		}
		cfg.Queue = overlay.Queue
	}
	if overlay.Presence != nil {
		if err := mergo.Merge(overlay.Presence, cfg.Presence); err != nil {
			return nil, fmt.Errorf("merging presence config: %w", err)
		}
		cfg.Presence = overlay.Presence
	}
	if overlay.Retention != nil {
		if err := mergo.Merge(overlay.Retention, cfg.Retention); err != nil {
			return nil, fmt.Errorf("merging retention config: %w", err)
		}
		cfg.Retention = overlay.Retention
	}

	if err := ValidateAll(cfg); err != nil {
		return nil, err
	}

	log.Info("Configuration initialized",
		"worker_count", cfg.Queue.WorkerCount,
		"check_interval_minutes", cfg.Orchestrator.CheckIntervalMinutes)

	return cfg, nil
}
