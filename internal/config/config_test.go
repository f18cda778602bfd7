package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, 24.0, cfg.Progression.KFactor)
	assert.Equal(t, 150.0, cfg.Progression.BandWidth)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codequest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
progression:
  k_factor: 32
missions:
  timezone: Europe/London
jobs:
  expire_interval: 30s
`), 0o644))
	t.Setenv("CODEQUEST_RETRY_MAX_ATTEMPTS", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 32.0, cfg.Progression.KFactor)
	assert.Equal(t, 150.0, cfg.Progression.BandStep, "unset keys keep defaults")
	assert.Equal(t, 30*time.Second, cfg.Jobs.ExpireInterval)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, "Europe/London", cfg.Location().String())
}

func TestLoadWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"postgres without url", func(c *Config) { c.Database.Type = "postgres" }},
		{"unknown database", func(c *Config) { c.Database.Type = "oracle" }},
		{"zero k factor", func(c *Config) { c.Progression.KFactor = 0 }},
		{"band wider than max", func(c *Config) { c.Progression.MaxBand = 100 }},
		{"weak above mastered", func(c *Config) { c.Progression.WeakThreshold = 0.9 }},
		{"no attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"bad timezone", func(c *Config) { c.Missions.Timezone = "Mars/Olympus" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
