package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.IdleTimeout)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Archive.Enabled)
	assert.Equal(t, "liveclass_affinity", cfg.Cluster.StickyCookie)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Address, cfg.Server.Address)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  address: ":9090"
sessions:
  idle_timeout: 10m
archive:
  enabled: true
  path: /tmp/archives
  retention_days: 7
  sweep_interval: 1h
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 10*time.Minute, cfg.Sessions.IdleTimeout)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, 7, cfg.Archive.RetentionDays)
	// Untouched sections keep their defaults.
	assert.Equal(t, 64, cfg.WebSocket.SendBufferSize)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
auth:
  jwt_secret: ""
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LIVECLASS_SERVER_ADDRESS", ":7070")
	t.Setenv("LIVECLASS_JWT_SECRET", "env-secret")
	t.Setenv("LIVECLASS_REDIS_ADDRESS", "redis:6379")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
}

func TestValidateCatchesBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty address", func(c *Config) { c.Server.Address = "" }, "server.address"},
		{"pong not after ping", func(c *Config) { c.WebSocket.PongTimeout = c.WebSocket.PingInterval }, "pong_timeout"},
		{"negative idle timeout", func(c *Config) { c.Sessions.IdleTimeout = -time.Minute }, "idle_timeout"},
		{"janitor without sweep", func(c *Config) { c.Sessions.SweepInterval = 0 }, "sweep_interval"},
		{"redis without address", func(c *Config) { c.Redis.Enabled = true; c.Redis.Address = "" }, "redis.address"},
		{"retry without attempts", func(c *Config) {
			c.Reliability.Retry.Enabled = true
			c.Reliability.Retry.MaxAttempts = 0
		}, "max_attempts"},
		{"archive without path", func(c *Config) { c.Archive.Enabled = true; c.Archive.Path = "" }, "archive.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
