package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gracevcs/grace-server/pkg/types"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "/var/lib/grace", cfg.DataDir)
	assert.Equal(t, ":4317", cfg.HealthAddr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, types.DefaultRetentionPolicy(), cfg.DefaultRetention)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graced.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dataDir: /tmp/grace-test
healthAddr: ":9090"
log:
  level: debug
  json: false
reminderTick: 250ms
defaultRetention:
  saveDays: 3
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/grace-test", cfg.DataDir)
	assert.Equal(t, ":9090", cfg.HealthAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.JSON)
	assert.Equal(t, 250*time.Millisecond, cfg.ReminderTick.Std())
	assert.Equal(t, 3.0, cfg.DefaultRetention.SaveDays)
	// Untouched fields keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.CacheTTL.Std())
	assert.Equal(t, 20*time.Minute, cfg.ActorIdleAfter.Std())
}

func TestLoadBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graced.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reminderTick: soon\n"), 0o600))
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse duration")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero reminder tick", func(c *Config) { c.ReminderTick = 0 }},
		{"zero idle window", func(c *Config) { c.ActorIdleAfter = 0 }},
		{"zero cache ttl", func(c *Config) { c.CacheTTL = 0 }},
		{"negative retention", func(c *Config) { c.DefaultRetention.CheckpointDays = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
