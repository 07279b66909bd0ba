package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PORT", "3000")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, ":3000", cfg.ServerAddr)
	assert.Equal(t, "local", cfg.Broadcast)
	assert.Equal(t, 50, cfg.FanoutLimit)
	assert.Equal(t, 24*time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.LogJSON)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoadConfigProduction(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REALTIME_BROADCAST", "REDIS")
	t.Setenv("ACCESS_TOKEN_TTL", "2h")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "redis", cfg.Broadcast)
	assert.Equal(t, 2*time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	t.Setenv("REALTIME_BROADCAST", "kafka")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("REALTIME_BROADCAST", "local")
	t.Setenv("NOTIFY_FANOUT_LIMIT", "0")
	_, err = LoadConfig()
	assert.Error(t, err)
}
