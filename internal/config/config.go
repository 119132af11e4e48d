// Package config loads the optional user configuration file.
//
// Configuration is layered: built-in defaults, then ~/.cookbook/config.yaml,
// then environment variables. Command-line flags override everything and are
// handled by the CLI layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the cookbook user configuration.
type Config struct {
	// Database is the catalog database path.
	Database string `yaml:"database"`

	Index   IndexConfig   `yaml:"index"`
	Logging LoggingConfig `yaml:"logging"`
}

// IndexConfig holds indexing defaults, overridable per-run by flags.
type IndexConfig struct {
	// Jobs is the number of parallel extraction workers (0 = sequential).
	Jobs int `yaml:"jobs"`

	// Driver selects the dataset reader.
	Driver string `yaml:"driver"`

	// Pattern is the file-name glob matched during discovery.
	Pattern string `yaml:"pattern"`

	// FollowSymlinks descends into symlinked directories.
	FollowSymlinks bool `yaml:"follow_symlinks"`
}

// LoggingConfig holds the log file settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Driver:  "netcdf",
			Pattern: "*.nc",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// UserConfigPath returns the path of the user configuration file.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".cookbook", "config.yaml")
	}
	return filepath.Join(home, ".cookbook", "config.yaml")
}

// Load builds the effective configuration: defaults, overlaid with the user
// config file if present, overlaid with environment variables. A missing
// config file is not an error.
func Load() (*Config, error) {
	return load(UserConfigPath())
}

func load(path string) (*Config, error) {
	cfg := NewConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers environment variables over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("COSIMA_COOKBOOK_DB"); v != "" {
		c.Database = v
	}
	if v := os.Getenv("COSIMA_COOKBOOK_JOBS"); v != "" {
		if jobs, err := strconv.Atoi(v); err == nil {
			c.Index.Jobs = jobs
		}
	}
	if v := os.Getenv("COSIMA_COOKBOOK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.Index.Jobs < 0 {
		return fmt.Errorf("index.jobs must be non-negative, got %d", c.Index.Jobs)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB <= 0 {
		return fmt.Errorf("logging.max_size_mb must be positive, got %d", c.Logging.MaxSizeMB)
	}
	return nil
}

// WriteYAML writes the configuration to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
