package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("REFRESH_SECRET", "")
	t.Setenv("AUTO_MIGRATE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsDev())
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, devJWTSecret, cfg.JWTSecret)
	assert.Equal(t, defaultIdempotencyTTL, cfg.IdempotencyTTL)
	assert.Equal(t, ":8080", cfg.Address())
}

func TestLoadProductionRequiresBackends(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/chema")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "a")
	t.Setenv("REFRESH_SECRET", "b")
	t.Setenv("IDEMPOTENCY_TTL_SECONDS", "60")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("AUTO_MIGRATE", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.IdempotencyTTL)
	assert.Equal(t, 3*time.Second, cfg.ShutdownPeriod)
	assert.False(t, cfg.AutoMigrate)
}

func TestLoadRejectsBadDurations(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("ACCESS_TOKEN_TTL", "soon")
	_, err := Load()
	assert.Error(t, err)
}
