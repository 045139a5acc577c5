package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "balanced", cfg.ExecutionMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ".autodev/archive", cfg.ArchiveDir)
	assert.Equal(t, 5*time.Second, cfg.ProcessGracePeriod)
	assert.Equal(t, 5*time.Minute, cfg.Quota.PollInterval)
	assert.True(t, cfg.Learning.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "balanced", cfg.ExecutionMode)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
preferred_cli: aider
cli_fallback_order: [claude, codex]
execution_mode: super-saver
log_level: debug
process_grace_period: 10s
quota:
  poll_interval: 1m
learning:
  enabled: false
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "aider", cfg.PreferredCLI)
		assert.Equal(t, []string{"claude", "codex"}, cfg.CLIFallbackOrder)
		assert.Equal(t, "super-saver", cfg.ExecutionMode)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 10*time.Second, cfg.ProcessGracePeriod)
		assert.Equal(t, time.Minute, cfg.Quota.PollInterval)
		assert.False(t, cfg.Learning.Enabled)

		// Unset keys keep their defaults.
		assert.Equal(t, ".autodev/archive", cfg.ArchiveDir)
		assert.Equal(t, ".autodev/quota.json", cfg.Quota.StatePath)
	})

	t.Run("db_path only keeps learning enabled", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
learning:
  db_path: custom/learning.db
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.True(t, cfg.Learning.Enabled, "an unset enabled key must keep the default")
		assert.Equal(t, "custom/learning.db", cfg.Learning.DBPath)
	})

	t.Run("unknown keys land in Extra", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log_level: warn\nfuture_feature: 42\n"), 0644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.LogLevel)
		assert.Contains(t, cfg.Extra, "future_feature")
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log_level: [unclosed"), 0644))

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("bad duration is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("process_grace_period: soon\n"), 0644))

		_, err := LoadConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "process_grace_period")
	})
}

func TestLoadConfigFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".autodev"), 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, ".autodev", "config.yaml"),
		[]byte("execution_mode: fast-delivery\n"), 0644))

	cfg, err := LoadConfigFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "fast-delivery", cfg.ExecutionMode)
}

func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PreferredCLI = "claude"

	mode := "super-saver"
	level := "trace"
	cfg.MergeWithFlags(nil, &mode, nil, &level)

	assert.Equal(t, "claude", cfg.PreferredCLI, "nil flags leave values alone")
	assert.Equal(t, "super-saver", cfg.ExecutionMode)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.Equal(t, ".autodev/archive", cfg.ArchiveDir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default is valid", func(c *Config) {}, ""},
		{"bad mode", func(c *Config) { c.ExecutionMode = "ludicrous" }, "execution_mode"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"negative grace period", func(c *Config) { c.ProcessGracePeriod = -time.Second }, "process_grace_period"},
		{"negative poll interval", func(c *Config) { c.Quota.PollInterval = -time.Minute }, "poll_interval"},
		{"learning enabled without path", func(c *Config) { c.Learning.DBPath = "" }, "db_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
