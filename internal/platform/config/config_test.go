package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Engine.MaxCategoryRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.Engine.RetryBaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Engine.CategoryTimeout)
	assert.Equal(t, 72*time.Hour, cfg.Engine.ExportHandleTTL)
	assert.Equal(t, 15*time.Minute, cfg.Engine.IdentityFreshness)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, time.Hour, cfg.Engine.SweepInterval)
	assert.False(t, cfg.Auth.Enabled())
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 120, cfg.Limits.Requests)
	assert.Equal(t, time.Minute, cfg.Limits.Window)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DSR_WORKERS", "8")
	t.Setenv("DSR_CATEGORY_TIMEOUT", "5s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("JWT_SIGNING_KEY", "secret")
	t.Setenv("DSR_RATE_LIMIT_REQUESTS", "0")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Engine.Workers)
	assert.Equal(t, 5*time.Second, cfg.Engine.CategoryTimeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Auth.Enabled())
	assert.Equal(t, "privacy_admin", cfg.Auth.AdminRole)
	assert.Zero(t, cfg.Limits.Requests)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	t.Setenv("DSR_SWEEP_INTERVAL", "hourly")
	t.Setenv("DSR_WORKERS", "0")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSR_SWEEP_INTERVAL")
	assert.Contains(t, err.Error(), "DSR_WORKERS")
}
