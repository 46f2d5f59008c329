// Package config loads the controller's TOML configuration: listener
// address, OpenFlow bind settings, and optional journal/metrics
// toggles.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the top-level controller configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Journal JournalConfig `toml:"journal"`
	Metrics MetricsConfig `toml:"metrics"`
}

// ServerConfig holds the southbound and northbound listener settings.
type ServerConfig struct {
	OpenFlowAddr string `toml:"openflow_addr"`
	HTTPAddr     string `toml:"http_addr"`
}

// JournalConfig controls the optional SQLite mutation audit log.
type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// MetricsConfig controls self-instrumentation exposure. Enabled
// defaults to true when the file does not mention it.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

const (
	// DefaultOpenFlowAddr is the standard OpenFlow 1.0 listener port.
	DefaultOpenFlowAddr = ":6633"
	DefaultHTTPAddr     = ":8080"
	DefaultJournalPath  = "sdnmpi-journal.db"
)

// Load reads and validates the controller configuration at path,
// filling in defaults for any field the file leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := &Config{}
	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	applyDefaults(cfg, meta)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config, meta toml.MetaData) {
	if cfg.Server.OpenFlowAddr == "" {
		cfg.Server.OpenFlowAddr = DefaultOpenFlowAddr
	}
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		cfg.Journal.Path = DefaultJournalPath
	}
	if !meta.IsDefined("metrics", "enabled") {
		cfg.Metrics.Enabled = true
	}
}

func validate(cfg *Config) error {
	if cfg.Server.OpenFlowAddr == "" {
		return fmt.Errorf("server.openflow_addr must not be empty")
	}
	if cfg.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr must not be empty")
	}
	if cfg.Journal.Enabled && cfg.Journal.Path == "" {
		return fmt.Errorf("journal.path must be set when journal.enabled is true")
	}
	return nil
}
