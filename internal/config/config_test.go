package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPServer.Address)
	assert.Equal(t, 5*time.Second, cfg.HTTPServer.ReadTimeout)
	assert.Equal(t, "frankfurter", cfg.Provider.Default)
	assert.Equal(t, "https://api.frankfurter.app/latest", cfg.Provider.FrankfurterLatestURL)
	assert.Equal(t, 3, cfg.Resilience.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Resilience.BaseDelay)
	assert.Equal(t, 5, cfg.Resilience.AllowedFailuresBeforeBreak)
	assert.Equal(t, 30*time.Second, cfg.Resilience.BreakDuration)
	assert.Equal(t, time.Hour, cfg.Cache.CurrentRateTTL())
	assert.Equal(t, 30*time.Minute, cfg.Cache.HistoryTTL())
	assert.Equal(t, time.Hour, cfg.Scheduler.ImportInterval)
	assert.True(t, cfg.Scheduler.RunOnStart)
	assert.Equal(t, "INFO", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
http_server:
  address: ":9090"
storage:
  in_memory: true
cache:
  current_rate_ttl_minutes: 5
resilience:
  max_attempts: 4
  base_delay: 250ms
  break_duration: 1m
scheduler:
  import_interval: 15m
  run_on_start: false
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPServer.Address)
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, 5*time.Minute, cfg.Cache.CurrentRateTTL())
	assert.Equal(t, 4, cfg.Resilience.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Resilience.BaseDelay)
	assert.Equal(t, time.Minute, cfg.Resilience.BreakDuration)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.ImportInterval)
	assert.False(t, cfg.Scheduler.RunOnStart)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Unset values fall back to defaults
	assert.Equal(t, 5, cfg.Resilience.AllowedFailuresBeforeBreak)
	assert.Equal(t, 30*time.Minute, cfg.Cache.HistoryTTL())
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "resilience:\n  max_attempts: 4\n")
	t.Setenv("FX_RETRY_MAX_ATTEMPTS", "6")
	t.Setenv("FX_HTTP_ADDRESS", ":7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Resilience.MaxAttempts)
	assert.Equal(t, ":7070", cfg.HTTPServer.Address)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to find config file")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"Zero current TTL", func(c *Config) { c.Cache.CurrentRateTTLMinutes = 0 }, "current_rate_ttl_minutes"},
		{"Negative history TTL", func(c *Config) { c.Cache.HistoryTTLMinutes = -1 }, "history_ttl_minutes"},
		{"No attempts", func(c *Config) { c.Resilience.MaxAttempts = 0 }, "max_attempts"},
		{"No failures before break", func(c *Config) { c.Resilience.AllowedFailuresBeforeBreak = 0 }, "allowed_failures_before_break"},
		{"Zero break duration", func(c *Config) { c.Resilience.BreakDuration = 0 }, "break_duration"},
		{"Zero import interval", func(c *Config) { c.Scheduler.ImportInterval = 0 }, "import_interval"},
		{"Missing storage path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"Missing log file", func(c *Config) { c.Log.Output = "file"; c.Log.File = "" }, "log.file"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.field)
		})
	}

	t.Run("Valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("Disabled scheduler ignores interval", func(t *testing.T) {
		cfg := valid()
		cfg.Scheduler.Enabled = false
		cfg.Scheduler.ImportInterval = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := writeConfig(t, "resilience:\n  base_delay: -1s\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_delay")
}
