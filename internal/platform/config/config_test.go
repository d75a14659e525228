package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("SWEEP_INTERVAL", "")

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Database.URL)
	assert.Nil(t, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Minute, cfg.Expiry.SweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.Expiry.TemporaryHold)
	assert.Equal(t, 90*24*time.Hour, cfg.Expiry.ContractExch)
	assert.Less(t, cfg.Server.RequestTimeout, cfg.Server.WriteTimeout)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PROPIE_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RESERVATION_TTL_TEMPORARY_HOLD", "2h")
	t.Setenv("SWEEP_INTERVAL", "not-a-duration")
	t.Setenv("DATABASE_AUTO_MIGRATE", "false")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Hour, cfg.Expiry.TemporaryHold)
	assert.Equal(t, 5*time.Minute, cfg.Expiry.SweepInterval, "invalid values fall back to defaults")
	assert.False(t, cfg.Database.AutoMigrate)
}

func TestIsProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	assert.True(t, FromEnv().IsProduction())

	t.Setenv("ENVIRONMENT", "staging")
	assert.False(t, FromEnv().IsProduction())
}
