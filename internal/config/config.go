package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tair/purchase-ingest/pkg/database"
)

// Store drivers
const (
	StoreDriverGorm = "gorm"
	StoreDriverSQL  = "sql"
)

// Config holds the purchase service configuration
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Mail     MailConfig     `yaml:"mail"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Tracing  TracingConfig  `yaml:"tracing"`
}

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
}

type HTTPConfig struct {
	Port string `yaml:"port"`
	// Requests per window allowed on the test trigger, per client. 0 disables.
	TriggerRateLimit  int           `yaml:"trigger_rate_limit"`
	TriggerRateWindow time.Duration `yaml:"trigger_rate_window"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

type KafkaConfig struct {
	Brokers          []string      `yaml:"brokers"`
	Topic            string        `yaml:"topic"`
	GroupID          string        `yaml:"group_id"`
	RedeliverOnError bool          `yaml:"redeliver_on_error"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
	DefaultEventType string        `yaml:"default_event_type"`
}

type MailConfig struct {
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	From           string `yaml:"from"`
	OperatorEmail  string `yaml:"operator_email"`
	Subject        string `yaml:"subject"`

	BreakerMaxFailures int           `yaml:"breaker_max_failures"`
	BreakerCooldown    time.Duration `yaml:"breaker_cooldown"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type TracingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "purchase-service",
			Environment: "development",
			LogLevel:    "info",
		},
		HTTP: HTTPConfig{
			Port:              "8084",
			TriggerRateLimit:  30,
			TriggerRateWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Driver:   StoreDriverGorm,
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			Name:     "purchasedb",
			SSLMode:  "disable",
		},
		Kafka: KafkaConfig{
			Brokers:          []string{"localhost:9092"},
			Topic:            "purchase-topic",
			GroupID:          "purchase-group",
			RedeliverOnError: true,
			RetryBackoff:     2 * time.Second,
			DefaultEventType: "purchase.created",
		},
		Mail: MailConfig{
			From:          "orders@purchase-service.local",
			OperatorEmail: "operator@purchase-service.local",
			Subject:       "New purchase received",

			BreakerMaxFailures: 5,
			BreakerCooldown:    30 * time.Second,
		},
		Redis: RedisConfig{
			CacheTTL: 10 * time.Minute,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Tracing: TracingConfig{
			Enabled:        true,
			JaegerEndpoint: "http://localhost:14268/api/traces",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("failed to decode config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("OTEL_SERVICE_NAME", &c.Service.Name)
	str("ENVIRONMENT", &c.Service.Environment)
	str("LOG_LEVEL", &c.Service.LogLevel)
	str("HTTP_PORT", &c.HTTP.Port)
	integer("TRIGGER_RATE_LIMIT", &c.HTTP.TriggerRateLimit)
	duration("TRIGGER_RATE_WINDOW", &c.HTTP.TriggerRateWindow)

	str("STORE_DRIVER", &c.Database.Driver)
	str("DB_HOST", &c.Database.Host)
	str("DB_PORT", &c.Database.Port)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_NAME", &c.Database.Name)
	str("DB_SSLMODE", &c.Database.SSLMode)

	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	str("KAFKA_TOPIC", &c.Kafka.Topic)
	str("KAFKA_GROUP_ID", &c.Kafka.GroupID)
	boolean("KAFKA_REDELIVER_ON_ERROR", &c.Kafka.RedeliverOnError)
	duration("KAFKA_RETRY_BACKOFF", &c.Kafka.RetryBackoff)
	str("KAFKA_DEFAULT_EVENT_TYPE", &c.Kafka.DefaultEventType)

	str("SENDGRID_API_KEY", &c.Mail.SendGridAPIKey)
	str("MAIL_FROM", &c.Mail.From)
	str("OPERATOR_EMAIL", &c.Mail.OperatorEmail)
	str("MAIL_SUBJECT", &c.Mail.Subject)
	integer("MAIL_BREAKER_MAX_FAILURES", &c.Mail.BreakerMaxFailures)
	duration("MAIL_BREAKER_COOLDOWN", &c.Mail.BreakerCooldown)

	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	integer("REDIS_DB", &c.Redis.DB)
	duration("CACHE_TTL", &c.Redis.CacheTTL)

	str("JWT_SECRET", &c.Auth.JWTSecret)
	duration("TOKEN_TTL", &c.Auth.TokenTTL)

	boolean("TRACING_ENABLED", &c.Tracing.Enabled)
	str("JAEGER_ENDPOINT", &c.Tracing.JaegerEndpoint)

	return errors.Join(errs...)
}

// Validate checks the settings the service cannot start without
func (c *Config) Validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka brokers required")
	}
	if c.Kafka.Topic == "" {
		return errors.New("kafka topic required")
	}
	if c.Kafka.GroupID == "" {
		return errors.New("kafka group id required")
	}
	switch c.Database.Driver {
	case StoreDriverGorm, StoreDriverSQL:
	default:
		return fmt.Errorf("unknown store driver %q", c.Database.Driver)
	}
	if c.Mail.OperatorEmail == "" {
		return errors.New("operator email required")
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Service.Environment == "development"
}

// DatabaseConnection converts to the connection settings used by pkg/database
func (c *Config) DatabaseConnection() database.Config {
	return database.Config{
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		DBName:   c.Database.Name,
		SSLMode:  c.Database.SSLMode,
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
