package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "memory", cfg.Storage)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Minute, cfg.AuthCodeTTL())
	assert.Equal(t, 24*time.Hour, cfg.AccessTokenTTL())
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTokenTTL())
	assert.Equal(t, time.Hour, cfg.SessionTTL())
	assert.Equal(t, 10*time.Second, cfg.UpstreamTimeout())
	assert.Empty(t, cfg.GoogleClientID)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("STORAGE", "mongo")
	t.Setenv("AUTH_CODE_TTL_MIN", "2")
	t.Setenv("GOOGLE_CLIENT_ID", "google-id")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.HTTPPort)
	assert.Equal(t, "mongo", cfg.Storage)
	assert.Equal(t, 2*time.Minute, cfg.AuthCodeTTL())
	assert.Equal(t, "google-id", cfg.GoogleClientID)
}
