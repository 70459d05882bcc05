package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapEnv(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "purchase-topic", cfg.Kafka.Topic)
	assert.Equal(t, "purchase-group", cfg.Kafka.GroupID)
	assert.True(t, cfg.Kafka.RedeliverOnError)
	assert.Equal(t, "purchase.created", cfg.Kafka.DefaultEventType)
	assert.Equal(t, StoreDriverGorm, cfg.Database.Driver)
}

func TestApplyEnv_Overrides(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(mapEnv(map[string]string{
		"KAFKA_BROKERS":            "k1:9092, k2:9092,",
		"KAFKA_TOPIC":              "orders",
		"KAFKA_REDELIVER_ON_ERROR": "false",
		"KAFKA_RETRY_BACKOFF":      "500ms",
		"KAFKA_DEFAULT_EVENT_TYPE": "order.placed",
		"STORE_DRIVER":             "sql",
		"OPERATOR_EMAIL":           "ops@example.com",
		"REDIS_DB":                 "3",
		"CACHE_TTL":                "1m",
		"TRIGGER_RATE_LIMIT":       "5",
		"MAIL_BREAKER_COOLDOWN":    "1m30s",
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "orders", cfg.Kafka.Topic)
	assert.False(t, cfg.Kafka.RedeliverOnError)
	assert.Equal(t, 500*time.Millisecond, cfg.Kafka.RetryBackoff)
	assert.Equal(t, "order.placed", cfg.Kafka.DefaultEventType)
	assert.Equal(t, StoreDriverSQL, cfg.Database.Driver)
	assert.Equal(t, "ops@example.com", cfg.Mail.OperatorEmail)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, 5, cfg.HTTP.TriggerRateLimit)
	assert.Equal(t, 90*time.Second, cfg.Mail.BreakerCooldown)
}

func TestApplyEnv_RejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bool", map[string]string{"KAFKA_REDELIVER_ON_ERROR": "sometimes"}},
		{"duration", map[string]string{"KAFKA_RETRY_BACKOFF": "soon"}},
		{"int", map[string]string{"REDIS_DB": "zero"}},
		{"tracing", map[string]string{"TRACING_ENABLED": "maybe"}},
		{"breaker", map[string]string{"MAIL_BREAKER_MAX_FAILURES": "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Default().applyEnv(mapEnv(tt.env)))
		})
	}
}

func TestApplyEnv_ReportsEveryMalformedValue(t *testing.T) {
	err := Default().applyEnv(mapEnv(map[string]string{
		"REDIS_DB":            "zero",
		"KAFKA_RETRY_BACKOFF": "soon",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_DB")
	assert.Contains(t, err.Error(), "KAFKA_RETRY_BACKOFF")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no brokers", func(c *Config) { c.Kafka.Brokers = nil }},
		{"no topic", func(c *Config) { c.Kafka.Topic = "" }},
		{"no group", func(c *Config) { c.Kafka.GroupID = "" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }},
		{"no operator", func(c *Config) { c.Mail.OperatorEmail = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
kafka:
  brokers: ["file:9092"]
  topic: file-topic
  group_id: file-group
  retry_backoff: 3s
mail:
  operator_email: file@example.com
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("KAFKA_TOPIC", "env-topic")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"file:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "env-topic", cfg.Kafka.Topic)
	assert.Equal(t, "file-group", cfg.Kafka.GroupID)
	assert.Equal(t, 3*time.Second, cfg.Kafka.RetryBackoff)
	assert.Equal(t, "file@example.com", cfg.Mail.OperatorEmail)
	// untouched sections keep their defaults
	assert.Equal(t, "purchasedb", cfg.Database.Name)
}

func TestLoad_UnknownFileField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kafka:\n  partitions: 3\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}
