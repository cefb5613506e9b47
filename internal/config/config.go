// Package config centralises configuration parsing for the activity planner.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config captures runtime configuration values for the activity planner.
type Config struct {
	HTTPAddress     string
	MetricsAddress  string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigin   string
	Store          string
	PostgresURL    string
	MigrateOnStart bool
	SeedFile       string
	DefaultLocale  string
	LogLevel       string
	LogFormat      string

	JWTSecret string
	JWTIssuer string

	KafkaBrokers       []string
	SchemaRegistryURL  string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	DLQPollInterval    time.Duration // Interval between DLQ polling iterations.
	DLQMaxRetries      int           // Maximum number of DLQ retry attempts before quarantine.
	DLQBaseDelay       time.Duration // Base delay used for exponential backoff.
	ConsumerGroupID    string
	ConsumerTopics     []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	StatsCacheTTL time.Duration

	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3PresignTTL   time.Duration
	S3UsePathStyle bool
}

// Load reads an optional .env file and the environment into Config, applying defaults for
// local development, then validates the result.
func Load() (Config, error) {
	// .env is optional when variables come from the environment.
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddress:        getEnv("HTTP_ADDRESS", ":8080"),
		MetricsAddress:     getEnv("METRICS_ADDRESS", ":9102"),
		ReadTimeout:        getDurationEnv("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       getDurationEnv("HTTP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:        getDurationEnv("HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:    getDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
		AllowedOrigin:      getEnv("CORS_ALLOWED_ORIGIN", "*"),
		Store:              strings.ToLower(getEnv("STORE", StoreMemory)),
		PostgresURL:        getEnv("POSTGRES_URL", ""),
		MigrateOnStart:     getBoolEnv("MIGRATE_ON_START", true),
		SeedFile:           getEnv("SEED_FILE", ""),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "vi"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:          getEnv("JWT_ISSUER", "activityplanner.identity"),
		KafkaBrokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "")),
		SchemaRegistryURL:  getEnv("SCHEMA_REGISTRY_URL", "http://schema-registry:8081"),
		OutboxPollInterval: getDurationEnv("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxBatchSize:    getIntEnv("OUTBOX_BATCH_SIZE", 25),
		DLQPollInterval:    getDurationEnv("DLQ_POLL_INTERVAL", 30*time.Second),
		DLQMaxRetries:      getIntEnv("DLQ_MAX_RETRIES", 5),
		DLQBaseDelay:       getDurationEnv("DLQ_BASE_DELAY", time.Minute),
		ConsumerGroupID:    getEnv("CONSUMER_GROUP_ID", "activity-event-log"),
		ConsumerTopics:     splitAndTrim(getEnv("CONSUMER_TOPICS", "activity_events,activity_state_changed,resolution_events")),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getIntEnv("REDIS_DB", 0),
		StatsCacheTTL:      getDurationEnv("STATS_CACHE_TTL", 5*time.Minute),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Region:           getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3AccessKey:        getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:        getEnv("S3_SECRET_KEY", ""),
		S3PresignTTL:       getDurationEnv("S3_PRESIGN_TTL", 15*time.Minute),
		S3UsePathStyle:     getBoolEnv("S3_USE_PATH_STYLE", false),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if strings.TrimSpace(c.PostgresURL) == "" {
			errs = append(errs, errors.New("config: POSTGRES_URL is required when STORE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown STORE %q (want memory or postgres)", c.Store))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("config: OUTBOX_BATCH_SIZE must be positive"))
	}
	if c.DLQMaxRetries <= 0 {
		errs = append(errs, errors.New("config: DLQ_MAX_RETRIES must be positive"))
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("config: JWT_SECRET must not be empty"))
	}
	return errors.Join(errs...)
}

// EventsEnabled reports whether lifecycle events are published to Kafka.
func (c Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
