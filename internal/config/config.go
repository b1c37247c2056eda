package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultBaseURL is the built-in scenario service endpoint.
	DefaultBaseURL = "http://localhost:8081"

	// EnvBaseURL overrides the configured endpoint.
	EnvBaseURL = "FWE_API_BASE"

	// EnvHistoryDB overrides the history database path.
	EnvHistoryDB = "FWE_HISTORY_DB"

	// DirName is the per-workspace state directory.
	DirName = ".fwe"
)

// Config holds all fwe configuration.
type Config struct {
	// Scenario service
	API APIConfig `yaml:"api"`

	// Run history (SQLite)
	History HistoryConfig `yaml:"history"`

	// Interactive dashboard
	Dashboard DashboardConfig `yaml:"dashboard"`

	// PI sweeps
	Sweep SweepConfig `yaml:"sweep"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	baseURLSource Source
}

// APIConfig configures the scenario service client.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// HistoryConfig configures run history persistence.
type HistoryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"` // relative paths resolve against .fwe/
	RecentLimit  int    `yaml:"recent_limit"`
}

// DashboardConfig configures the interactive dashboard.
type DashboardConfig struct {
	AutoRun         bool   `yaml:"auto_run"`
	Debounce        string `yaml:"debounce"`
	AbortSuperseded bool   `yaml:"abort_superseded"`
}

// SweepConfig configures the sweep command.
type SweepConfig struct {
	Parallel int `yaml:"parallel"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: "30s",
		},

		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: "history.db",
			RecentLimit:  20,
		},

		Dashboard: DashboardConfig{
			AutoRun:         true,
			Debounce:        "300ms",
			AbortSuperseded: true,
		},

		Sweep: SweepConfig{
			Parallel: 4,
		},

		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			File:      "fwe.log",
			DebugMode: false,
		},

		baseURLSource: SourceDefault,
	}
}

// DefaultPath returns the config file location for a workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, DirName, "config.yaml")
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		cfg.API.BaseURL = ""
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if cfg.API.BaseURL == "" {
			cfg.API.BaseURL = DefaultBaseURL
		} else {
			cfg.baseURLSource = SourceFile
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// LoadDotEnv loads <workspace>/.env into the process environment. Variables
// already set are left alone and a missing file is not an error.
func LoadDotEnv(workspace string) error {
	path := filepath.Join(workspace, ".env")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if base := os.Getenv(EnvBaseURL); base != "" {
		c.API.BaseURL = base
		c.baseURLSource = SourceEnv
	}

	if path := os.Getenv(EnvHistoryDB); path != "" {
		c.History.DatabasePath = path
	}
}

// GetTimeout returns the per-call timeout as a duration.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetDebounce returns the dashboard auto-run debounce as a duration.
func (c *Config) GetDebounce() time.Duration {
	d, err := time.ParseDuration(c.Dashboard.Debounce)
	if err != nil || d < 0 {
		return 300 * time.Millisecond
	}
	return d
}

// GetSweepParallel returns the sweep concurrency limit, at least 1.
func (c *Config) GetSweepParallel() int {
	if c.Sweep.Parallel < 1 {
		return 1
	}
	return c.Sweep.Parallel
}

// HistoryPath resolves the history database path against the workspace.
func (c *Config) HistoryPath(workspace string) string {
	p := c.History.DatabasePath
	if p == "" {
		p = "history.db"
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, DirName, p)
}

// LogDir returns the directory log files are written to.
func (c *Config) LogDir(workspace string) string {
	return filepath.Join(workspace, DirName, "logs")
}

// Validate validates the configuration. api.base_url is not checked here:
// a --host flag may replace it, so callers check the resolved endpoint with
// ValidateBaseURL instead.
func (c *Config) Validate() error {
	var errs []error

	if c.API.Timeout != "" {
		if d, err := time.ParseDuration(c.API.Timeout); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("api.timeout: invalid duration %q", c.API.Timeout))
		}
	}
	if c.Dashboard.Debounce != "" {
		if _, err := time.ParseDuration(c.Dashboard.Debounce); err != nil {
			errs = append(errs, fmt.Errorf("dashboard.debounce: invalid duration %q", c.Dashboard.Debounce))
		}
	}
	if c.Sweep.Parallel < 0 {
		errs = append(errs, fmt.Errorf("sweep.parallel: must not be negative, got %d", c.Sweep.Parallel))
	}
	if c.History.RecentLimit < 0 {
		errs = append(errs, fmt.Errorf("history.recent_limit: must not be negative, got %d", c.History.RecentLimit))
	}

	validLevel := false
	for _, l := range ValidLevels {
		if c.Logging.Level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		errs = append(errs, fmt.Errorf("logging.level: invalid level %q (valid: %v)", c.Logging.Level, ValidLevels))
	}

	return errors.Join(errs...)
}

// ValidateBaseURL checks that raw is an absolute http(s) URL.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return nil
}
