// Package config loads flowd configuration from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/meikuraledutech/flow/internal/logger"
	"gopkg.in/yaml.v3"
)

// Config is the complete flowd configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Runner   RunnerConfig   `yaml:"runner"`
	Session  SessionConfig  `yaml:"session"`
	Layout   LayoutConfig   `yaml:"layout"`
	Log      logger.Config  `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// DatabaseConfig selects the store. An empty URL uses the in-memory store.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RunnerConfig points at the task-execution service.
type RunnerConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig tunes execution sessions.
type SessionConfig struct {
	HistoryLimit int `yaml:"history_limit"`
}

// LayoutConfig holds flowchart spacing.
type LayoutConfig struct {
	RankGap float64 `yaml:"rank_gap"`
	NodeGap float64 `yaml:"node_gap"`
	Padding float64 `yaml:"padding"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Address: ":3000"},
		Runner:  RunnerConfig{Timeout: 30 * time.Second},
		Session: SessionConfig{HistoryLimit: 10},
		Layout:  LayoutConfig{RankGap: 80, NodeGap: 48, Padding: 40},
		Log:     logger.Config{Level: "info", Format: "console", Output: "stdout"},
	}
}

// Load reads path (if not empty) over the defaults, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("DATABASE_URL"); ok {
		c.Database.URL = v
	}
	if v, ok := lookup("FLOW_ADDRESS"); ok {
		c.Server.Address = v
	}
	if v, ok := lookup("FLOW_RUNNER_URL"); ok {
		c.Runner.URL = v
	}
	if v, ok := lookup("FLOW_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookup("FLOW_HISTORY_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: FLOW_HISTORY_LIMIT: %w", err)
		}
		c.Session.HistoryLimit = n
	}
	return nil
}

// Validate checks values that would make the server misbehave.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("config: server.address is required")
	}
	if c.Session.HistoryLimit <= 0 {
		return fmt.Errorf("config: session.history_limit must be positive, got %d", c.Session.HistoryLimit)
	}
	if c.Runner.Timeout < 0 {
		return fmt.Errorf("config: runner.timeout must not be negative")
	}
	if (c.Log.Output == "file" || c.Log.Output == "both") && c.Log.FilePath == "" {
		return fmt.Errorf("config: log.file_path is required for log.output %q", c.Log.Output)
	}
	return nil
}
