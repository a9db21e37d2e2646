package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_USER", "pos")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "buspos")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Store)
	assert.Equal(t, 5*time.Minute, cfg.SeatLockTTL)
	assert.Equal(t, "mysql", cfg.SeatLockBackend)
	assert.Equal(t, "0.01", cfg.CashTolerance.StringFixed(2))
	assert.False(t, cfg.EventsEnabled)
	assert.True(t, cfg.Migrate)
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SEAT_LOCK_TTL", "90s")
	t.Setenv("SEAT_LOCK_BACKEND", "REDIS")
	t.Setenv("CASH_TOLERANCE", "0.05")
	t.Setenv("EVENTS_ENABLED", "yes")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.SeatLockTTL)
	assert.Equal(t, "redis", cfg.SeatLockBackend)
	assert.Equal(t, "0.05", cfg.CashTolerance.StringFixed(2))
	assert.True(t, cfg.EventsEnabled)
}

func TestLoadReportsEveryProblem(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE", "memory")
	t.Setenv("SEAT_LOCK_BACKEND", "etcd")
	t.Setenv("CASH_TOLERANCE", "-1")

	_, err := Load()
	require.Error(t, err)
	for _, want := range []string{"APP_ENV", "JWT_SECRET", "SEAT_LOCK_BACKEND", "CASH_TOLERANCE"} {
		assert.Contains(t, err.Error(), want)
	}
	assert.NotContains(t, err.Error(), "DB_USER", "memory store needs no database")
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "10s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 50*time.Second, cfg.TTL)
}
