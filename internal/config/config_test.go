package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 20*time.Second, cfg.Lock.Timeout)
	assert.Equal(t, 30, cfg.Vote.MinUserIDLength)
	assert.Equal(t, 1, cfg.Vote.MaxActiveWarnings)
	assert.Equal(t, 16*time.Hour, cfg.Vote.WarningExpiry)
	assert.True(t, cfg.Redis.Enabled)
	assert.ElementsMatch(t, []string{"poi"}, cfg.Categories.Support["poi_highlight"])
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://other/db")
	t.Setenv("SEGVOTE_VOTE_MAXACTIVEWARNINGS", "3")
	t.Setenv("SEGVOTE_LOCK_TIMEOUT", "5s")
	t.Setenv("REDIS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "postgres://other/db", cfg.Database.URL)
	assert.Equal(t, 3, cfg.Vote.MaxActiveWarnings)
	assert.Equal(t, 5*time.Second, cfg.Lock.Timeout)
	assert.False(t, cfg.Redis.Enabled)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"missing database", func(c *Config) { c.Database.URL = "" }},
		{"redis enabled without url", func(c *Config) { c.Redis.URL = "" }},
		{"no categories", func(c *Config) { c.Categories.Support = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, base.Validate())
}
