// Package config loads and validates autodev settings.
//
// Settings live in .autodev/config.yaml under the project root. Missing files
// are not an error; defaults apply. CLI flags override file values via
// MergeWithFlags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// QuotaConfig configures provider quota polling.
type QuotaConfig struct {
	// PollInterval is how often provider quotas are refreshed during a run
	PollInterval time.Duration `yaml:"poll_interval"`

	// StatePath is where the quota snapshot persists across runs
	StatePath string `yaml:"state_path"`
}

// LearningConfig configures the model performance history store.
type LearningConfig struct {
	// Enabled turns attempt recording and routing advice on or off
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the SQLite learning database
	DBPath string `yaml:"db_path"`
}

// Config represents autodev configuration options.
type Config struct {
	// PreferredCLI is the globally preferred coding CLI (must be whitelisted)
	PreferredCLI string `yaml:"preferred_cli"`

	// CLIFallbackOrder is the global CLI fallback chain
	CLIFallbackOrder []string `yaml:"cli_fallback_order"`

	// ExecutionMode selects the model routing policy:
	// balanced, super-saver, or fast-delivery
	ExecutionMode string `yaml:"execution_mode"`

	// LogLevel sets logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// ArchiveDir is where completed PRDs are copied
	ArchiveDir string `yaml:"archive_dir"`

	// ProcessGracePeriod is how long Stop waits after SIGTERM before SIGKILL
	ProcessGracePeriod time.Duration `yaml:"process_grace_period"`

	// Quota contains provider quota polling configuration
	Quota QuotaConfig `yaml:"quota"`

	// Learning contains performance history configuration
	Learning LearningConfig `yaml:"learning"`

	// Extra retains unknown top-level keys for forward compatibility.
	// Application logic never reads these.
	Extra map[string]interface{} `yaml:",inline"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		PreferredCLI:       "",
		CLIFallbackOrder:   nil,
		ExecutionMode:      "balanced",
		LogLevel:           "info",
		ArchiveDir:         ".autodev/archive",
		ProcessGracePeriod: 5 * time.Second,
		Quota: QuotaConfig{
			PollInterval: 5 * time.Minute,
			StatePath:    ".autodev/quota.json",
		},
		Learning: LearningConfig{
			Enabled: true,
			DBPath:  ".autodev/learning.db",
		},
	}
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without error.
// If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations arrive as strings in YAML, so unmarshal through an aux struct.
	type yamlQuota struct {
		PollInterval string `yaml:"poll_interval"`
		StatePath    string `yaml:"state_path"`
	}
	// Enabled is a pointer so an absent key keeps the default instead of
	// reading as false (nil = unset, the MergeWithFlags convention).
	type yamlLearning struct {
		Enabled *bool  `yaml:"enabled"`
		DBPath  string `yaml:"db_path"`
	}
	type yamlConfig struct {
		PreferredCLI       string                 `yaml:"preferred_cli"`
		CLIFallbackOrder   []string               `yaml:"cli_fallback_order"`
		ExecutionMode      string                 `yaml:"execution_mode"`
		LogLevel           string                 `yaml:"log_level"`
		ArchiveDir         string                 `yaml:"archive_dir"`
		ProcessGracePeriod string                 `yaml:"process_grace_period"`
		Quota              *yamlQuota             `yaml:"quota"`
		Learning           *yamlLearning          `yaml:"learning"`
		Extra              map[string]interface{} `yaml:",inline"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.PreferredCLI != "" {
		cfg.PreferredCLI = yamlCfg.PreferredCLI
	}
	if len(yamlCfg.CLIFallbackOrder) > 0 {
		cfg.CLIFallbackOrder = yamlCfg.CLIFallbackOrder
	}
	if yamlCfg.ExecutionMode != "" {
		cfg.ExecutionMode = yamlCfg.ExecutionMode
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.ArchiveDir != "" {
		cfg.ArchiveDir = yamlCfg.ArchiveDir
	}
	if yamlCfg.ProcessGracePeriod != "" {
		grace, err := time.ParseDuration(yamlCfg.ProcessGracePeriod)
		if err != nil {
			return nil, fmt.Errorf("invalid process_grace_period %q: %w", yamlCfg.ProcessGracePeriod, err)
		}
		cfg.ProcessGracePeriod = grace
	}
	if yamlCfg.Quota != nil {
		if yamlCfg.Quota.PollInterval != "" {
			interval, err := time.ParseDuration(yamlCfg.Quota.PollInterval)
			if err != nil {
				return nil, fmt.Errorf("invalid quota.poll_interval %q: %w", yamlCfg.Quota.PollInterval, err)
			}
			cfg.Quota.PollInterval = interval
		}
		if yamlCfg.Quota.StatePath != "" {
			cfg.Quota.StatePath = yamlCfg.Quota.StatePath
		}
	}
	if yamlCfg.Learning != nil {
		if yamlCfg.Learning.Enabled != nil {
			cfg.Learning.Enabled = *yamlCfg.Learning.Enabled
		}
		if yamlCfg.Learning.DBPath != "" {
			cfg.Learning.DBPath = yamlCfg.Learning.DBPath
		}
	}
	if len(yamlCfg.Extra) > 0 {
		cfg.Extra = yamlCfg.Extra
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .autodev/config.yaml in the
// specified directory. Missing directory or file yields defaults.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".autodev", "config.yaml"))
}

// MergeWithFlags merges CLI flags into the configuration.
// Non-nil flag values override configuration values.
func (c *Config) MergeWithFlags(preferredCLI *string, executionMode *string, archiveDir *string, logLevel *string) {
	if preferredCLI != nil {
		c.PreferredCLI = *preferredCLI
	}
	if executionMode != nil {
		c.ExecutionMode = *executionMode
	}
	if archiveDir != nil {
		c.ArchiveDir = *archiveDir
	}
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	switch c.ExecutionMode {
	case "balanced", "super-saver", "fast-delivery":
	default:
		return fmt.Errorf("invalid execution_mode %q, must be one of: balanced, super-saver, fast-delivery", c.ExecutionMode)
	}

	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.ProcessGracePeriod < 0 {
		return fmt.Errorf("process_grace_period must be >= 0, got %v", c.ProcessGracePeriod)
	}

	if c.Quota.PollInterval < 0 {
		return fmt.Errorf("quota.poll_interval must be >= 0, got %v", c.Quota.PollInterval)
	}

	if c.Learning.Enabled && c.Learning.DBPath == "" {
		return fmt.Errorf("learning.db_path cannot be empty when learning is enabled")
	}

	return nil
}
