package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Log     LogConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	Auth    AuthConfig
	Reward  RewardConfig
	Tracing TracingConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
// In production, set DB_SSLMODE to "require" or "verify-full".
type DBConfig struct {
	Host        string `envconfig:"DB_HOST" default:"localhost"`
	Port        int    `envconfig:"DB_PORT" default:"5432"`
	User        string `envconfig:"DB_USER" default:"postgres"`
	Password    string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name        string `envconfig:"DB_NAME" default:"reward_db"`
	SSLMode     string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns    int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns    int    `envconfig:"DB_MIN_CONNS" default:"5"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d&pool_min_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns, c.MinConns)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// RedisConfig configures the reward config cache. An empty address disables it.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Username string        `envconfig:"REDIS_USERNAME"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"REDIS_CONFIG_TTL" default:"5m"`
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// KafkaConfig configures order events and notifications. No brokers disables
// notifications, and the reconciler binary refuses to start.
type KafkaConfig struct {
	Brokers           []string `envconfig:"KAFKA_BROKERS"`
	OrdersTopic       string   `envconfig:"KAFKA_ORDERS_TOPIC" default:"orders.placed"`
	NotificationTopic string   `envconfig:"KAFKA_NOTIFICATION_TOPIC" default:"reward.notifications"`
	GroupID           string   `envconfig:"KAFKA_GROUP_ID" default:"reward-reconciler"`
	Workers           int      `envconfig:"KAFKA_WORKERS" default:"5"`
}

// Enabled reports whether any broker is configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// AuthConfig configures bearer token verification.
// WARNING: Default secret is for local development only.
type AuthConfig struct {
	JWTSecret   string `envconfig:"AUTH_JWT_SECRET" default:"dev-secret"` // CHANGE IN PRODUCTION
	Issuer      string `envconfig:"AUTH_ISSUER"`
	InternalKey string `envconfig:"AUTH_INTERNAL_KEY"`
}

// RewardConfig tunes the spin wheel.
type RewardConfig struct {
	Timezone     string        `envconfig:"REWARD_TIMEZONE" default:"UTC"`
	CouponPrefix string        `envconfig:"REWARD_COUPON_PREFIX" default:"SPIN"`
	SpinTimeout  time.Duration `envconfig:"REWARD_SPIN_TIMEOUT" default:"5s"`
}

// Location resolves Timezone.
func (c RewardConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid REWARD_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// TracingConfig configures the OTLP exporter. An empty endpoint disables it.
type TracingConfig struct {
	Endpoint    string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string  `envconfig:"OTEL_SERVICE_NAME" default:"spin-reward-engine"`
	Insecure    bool    `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	SampleRatio float64 `envconfig:"OTEL_SAMPLE_RATIO" default:"1"`
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.Reward.Location(); err != nil {
		return nil, err
	}
	cfg.Reward.CouponPrefix = strings.ToUpper(strings.TrimSpace(cfg.Reward.CouponPrefix))
	return &cfg, nil
}
