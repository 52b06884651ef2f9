package config

import (
	"fmt"
	"strings"
)

// Config mirrors the gosh rc document structure.
type Config struct {
	Includes []string     `yaml:"includes"`
	Version  string       `yaml:"version"`
	Session  SessionSpec  `yaml:"session"`
	Logging  *LoggingSpec `yaml:"logging"`
	API      *APISpec     `yaml:"api"`
}

// SessionSpec configures the interactive session.
type SessionSpec struct {
	Prompt      string `yaml:"prompt"`
	HistoryFile string `yaml:"historyFile"`
	MaxJobs     int    `yaml:"maxJobs"`
}

// LoggingSpec configures the diagnostics log.
type LoggingSpec struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// APISpec configures the local introspection server.
type APISpec struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Default returns a configuration with all defaults applied, used when no
// rc file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Version) == "" {
		c.Version = "1"
	}
	if c.Session.Prompt == "" {
		c.Session.Prompt = "gosh> "
	}
	if c.Logging != nil && strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.API != nil && c.API.Enabled && strings.TrimSpace(c.API.Listen) == "" {
		c.API.Listen = "127.0.0.1:7663"
	}
}

// Validate enforces document invariants.
func (c *Config) Validate() error {
	if c.Version != "1" {
		return fmt.Errorf("%s: unsupported value %q (supported values: \"1\")", fieldPath("version"), c.Version)
	}
	if c.Session.MaxJobs < 0 {
		return fmt.Errorf("%s: must be non-negative", fieldPath("session", "maxJobs"))
	}
	if c.Logging != nil {
		switch c.Logging.Level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("%s: unsupported value %q (supported values: debug, info, warn, error)", fieldPath("logging", "level"), c.Logging.Level)
		}
	}
	if c.API != nil && c.API.Enabled {
		if strings.TrimSpace(c.API.Listen) == "" {
			return fmt.Errorf("%s: is required when api.enabled is true", fieldPath("api", "listen"))
		}
	}
	return nil
}

func fieldPath(parts ...string) string {
	return strings.Join(parts, ".")
}
