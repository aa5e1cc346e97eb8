package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("JWT_SIGNING_KEY", "secret")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, 5*time.Second, cfg.Postgres.TxTimeout)
		assert.Equal(t, 30*time.Second, cfg.Settings.CacheTTL)
		assert.Equal(t, "sharereg.audit", cfg.Kafka.AuditTopic)
		assert.Empty(t, cfg.Postgres.URL)
	})

	t.Run("splits brokers", func(t *testing.T) {
		t.Setenv("JWT_SIGNING_KEY", "secret")
		t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	})

	t.Run("requires signing key", func(t *testing.T) {
		t.Setenv("JWT_SIGNING_KEY", "")
		_, err := Load()
		require.Error(t, err)
	})
}
