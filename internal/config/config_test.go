package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("s", 32))
	t.Setenv("APP_ENV", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("TIMEZONE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.True(t, cfg.UsingDefaultDSN())
	assert.True(t, cfg.SeedData)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Minute, cfg.Reports.CacheTTL)
	assert.Equal(t, 20, cfg.Reports.LowStockThreshold)
	assert.Equal(t, "UTC", cfg.TimeZone)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("s", 40))
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("REPORT_CACHE_TTL", "30s")
	t.Setenv("SEED_DATA", "false")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("TIMEZONE", "Asia/Karachi")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Second, cfg.Reports.CacheTTL)
	assert.False(t, cfg.SeedData)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "Asia/Karachi", cfg.TimeZone)
}

func TestValidate_TimeZone(t *testing.T) {
	cfg := &Config{AppEnv: "development", JWTSecret: "dev", TimeZone: "Mars/Olympus"}
	assert.Error(t, cfg.Validate())

	cfg.TimeZone = "Europe/Berlin"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_JWTSecret(t *testing.T) {
	cfg := &Config{AppEnv: "production"}
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "short"
	assert.Error(t, cfg.Validate())

	cfg.AppEnv = "development"
	assert.NoError(t, cfg.Validate())
}
