package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.APIEnabled)
	assert.Equal(t, 100, cfg.RateLimitPerHour)
	assert.Equal(t, 90, cfg.LogRetentionDays)
	assert.True(t, cfg.EnableAutoCleanup)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.WebhookURL)
	// A JWT secret is always present, generated when not configured
	assert.Len(t, cfg.JWTSecret, 32)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RATE_LIMIT_PER_HOUR", "25")
	t.Setenv("API_ENABLED", "false")
	t.Setenv("WEBHOOK_URL", "https://hooks.example.test/pages")
	t.Setenv("JWT_SECRET", "configured-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 25, cfg.RateLimitPerHour)
	assert.False(t, cfg.APIEnabled)
	assert.Equal(t, "https://hooks.example.test/pages", cfg.WebhookURL)
	assert.Equal(t, "configured-secret", cfg.JWTSecret)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"port: 7000\nrate_limit_per_hour: 10\nwebhook_secret: from-file\n",
	), 0o600))

	t.Setenv("PAGEFORGE_CONFIG", path)
	t.Setenv("PORT", "7100")

	cfg, err := Load()
	require.NoError(t, err)

	// Env wins over the file; the file wins over defaults
	assert.Equal(t, 7100, cfg.Port)
	assert.Equal(t, 10, cfg.RateLimitPerHour)
	assert.Equal(t, "from-file", cfg.WebhookSecret)
}

func TestLoad_BadFile(t *testing.T) {
	t.Setenv("PAGEFORGE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidRateLimitFallsBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_HOUR", "-5")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.RateLimitPerHour)
}
