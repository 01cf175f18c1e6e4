package config

import (
	"path/filepath"
	"time"
)

const stateDBName = "state.db"

// Config holds runtime settings for the CLI client.
//
// Fields:
//   - ServerURL: base URL of the HTTP API, e.g. http://127.0.0.1:8000.
//   - StateDir: directory holding the local SQLite store.
//   - RequestTimeout: upper bound for every API call.
//   - LogLevel: level of the diagnostics written to stderr.
type Config struct {
	ServerURL      string
	StateDir       string
	RequestTimeout time.Duration
	LogLevel       string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8000"
	c.StateDir = ".benkyo"
	c.RequestTimeout = 10 * time.Second
	c.LogLevel = "warn"
}

// StateDBPath is the SQLite file inside StateDir.
func (c *Config) StateDBPath() string {
	return filepath.Join(c.StateDir, stateDBName)
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
