package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "STORE_BACKEND", "MONGO_URI", "POSTGRES_DSN", "PAYMENT_PROVIDER", "STRIPE_SECRET_KEY",
		"CURRENCY", "JWT_SECRET", "KAFKA_BROKERS", "RETRY_BACKOFF", "PENDING_TTL", "RATE_LIMIT", "S3_ENDPOINT",
		"S3_PUBLIC_ENDPOINT", "S3_USE_SSL", "IDEMP_TTL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, PaymentsFake, cfg.PaymentProvider)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, 30*time.Minute, cfg.PendingTTL)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	assert.Equal(t, 10, cfg.RateLimit)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.True(t, cfg.IsDev())
}

func TestLoadParsesOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/bookings")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("CURRENCY", "eur")
	t.Setenv("RETRY_BACKOFF", "2s,10s")
	t.Setenv("S3_ENDPOINT", "minio:9000")
	t.Setenv("S3_USE_SSL", "yes")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.StoreBackend)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "EUR", cfg.Currency)
	assert.Equal(t, []time.Duration{2 * time.Second, 10 * time.Second}, cfg.RetryBackoff)
	assert.Equal(t, "minio:9000", cfg.S3PublicEndpoint)
	assert.True(t, cfg.S3UseSSL)
}

func TestLoadRejectsInvalidConfiguration(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"unknown backend":         {"STORE_BACKEND": "cassandra"},
		"mongo without uri":       {"STORE_BACKEND": "mongo"},
		"stripe without key":      {"PAYMENT_PROVIDER": "stripe"},
		"bad currency":            {"CURRENCY": "dollars"},
		"prod without jwt secret": {"APP_ENV": "prod"},
		"bad duration":            {"PENDING_TTL": "soon"},
		"bad backoff":             {"RETRY_BACKOFF": "1s,later"},
		"bad integer":             {"RATE_LIMIT": "many"},
		"bad bool":                {"S3_USE_SSL": "maybe"},
	} {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
