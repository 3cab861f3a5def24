package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Config is the fully loaded and validated process configuration.
type Config struct {
	System   *System
	Settings Settings
}

// builtinSystem returns the built-in system defaults merged under the
// user-provided YAML.
func builtinSystem() *System {
	return &System{
		HTTPPort:  "8081",
		StatePath: "./warden-state.json",
		Oracle: &OracleYAMLConfig{
			BaseURL:    "http://localhost:9090",
			VerdictTTL: "60s",
		},
	}
}

// Initialize loads, merges, and validates configuration from configDir.
//
// Steps performed:
//  1. Read warden.yaml (missing file falls back to built-in defaults)
//  2. Expand environment variables
//  3. Parse YAML
//  4. Merge user config over built-in defaults
//  5. Validate
func Initialize(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg := &Config{
		System:   builtinSystem(),
		Settings: DefaultSettings(),
	}

	path := filepath.Join(configDir, "warden.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("No warden.yaml found, using built-in defaults", "path", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var fileCfg struct {
		System   *System   `yaml:"system"`
		Settings *Settings `yaml:"settings"`
	}
	if err := yaml.Unmarshal(expandEnv(data), &fileCfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidYAML, path, err)
	}

	if fileCfg.System != nil {
		if err := mergo.Merge(fileCfg.System, cfg.System); err != nil {
			return nil, fmt.Errorf("merge system config: %w", err)
		}
		cfg.System = fileCfg.System
	}
	if fileCfg.Settings != nil {
		if err := mergo.Merge(fileCfg.Settings, cfg.Settings); err != nil {
			return nil, fmt.Errorf("merge settings: %w", err)
		}
		cfg.Settings = *fileCfg.Settings
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Info("Configuration initialized",
		"http_port", cfg.System.HTTPPort,
		"oracle_url", cfg.System.Oracle.BaseURL,
		"state_path", cfg.System.StatePath)
	return cfg, nil
}

func (c *Config) validate() error {
	if c.System.HTTPPort == "" {
		return &ValidationError{Field: "system.http_port", Err: ErrMissingRequiredField}
	}
	if c.System.Oracle == nil || c.System.Oracle.BaseURL == "" {
		return &ValidationError{Field: "system.oracle.base_url", Err: ErrMissingRequiredField}
	}
	if c.System.StatePath == "" {
		return &ValidationError{Field: "system.state_path", Err: ErrMissingRequiredField}
	}
	return c.Settings.Validate()
}
