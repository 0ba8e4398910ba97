package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tripwire.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  tick_interval: 5ms
  settle_quiet_ticks: 3
log:
  level: debug
  format: json
journal:
  path: runs.db
metrics:
  addr: ":2112"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Millisecond, cfg.Engine.TickInterval)
	assert.Equal(t, 3, cfg.Engine.SettleQuietTicks)
	assert.Equal(t, 10*time.Second, cfg.Engine.SettleTimeout, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "runs.db", cfg.Journal.Path)
	assert.Equal(t, ":2112", cfg.Metrics.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tripwire.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  tick_interval: 5ms\n"), 0o644))

	t.Setenv("TRIPWIRE_ENGINE_TICK_INTERVAL", "7ms")
	t.Setenv("TRIPWIRE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Millisecond, cfg.Engine.TickInterval)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 10*time.Millisecond, cfg.Engine.TickInterval)
	assert.Equal(t, 2, cfg.Engine.SettleQuietTicks)
	assert.Equal(t, 10*time.Second, cfg.Engine.SettleTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"tick", func(c *Config) { c.Engine.TickInterval = -time.Millisecond }, "tick_interval"},
		{"quiet", func(c *Config) { c.Engine.SettleQuietTicks = -1 }, "settle_quiet_ticks"},
		{"timeout", func(c *Config) { c.Engine.SettleTimeout = -time.Second }, "settle_timeout"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "invalid log level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
