// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"time"
)

// Storage and session backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	SessionMemory = "memory"
	SessionRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// StoreDriver picks the Rank Store: memory, sqlite or postgres.
	StoreDriver string `koanf:"store_driver"`
	SQLitePath  string `koanf:"sqlite_path"`
	PostgresDSN string `koanf:"postgres_dsn"`

	// SessionBackend picks where wizard sessions live: memory or redis.
	SessionBackend string        `koanf:"session_backend"`
	RedisAddr      string        `koanf:"redis_addr"`
	RedisDB        int           `koanf:"redis_db"`
	SessionTTL     time.Duration `koanf:"session_ttl"`

	// MinRankedForScore is the list size from which scores are shown.
	MinRankedForScore int `koanf:"min_ranked_for_score"`

	// WriterLanes and WriterQueueSize shape the single-writer lanes.
	WriterLanes     int `koanf:"writer_lanes"`
	WriterQueueSize int `koanf:"writer_queue_size"`

	// IdempotencySize bounds the remembered Idempotency-Key values.
	IdempotencySize int `koanf:"idempotency_size"`

	// AuditSchedule is a cron spec for the permutation audit; empty disables it.
	AuditSchedule string `koanf:"audit_schedule"`

	// JWTSecret enables bearer auth when set.
	JWTSecret string `koanf:"jwt_secret"`

	// MaxFavoredSides caps the favored list accepted per request.
	MaxFavoredSides int `koanf:"max_favored_sides"`

	// Tracing exports spans over OTLP when enabled.
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingExporter   string  `koanf:"tracing_exporter"`
	TracingEndpoint   string  `koanf:"tracing_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
	TracingInsecure   bool    `koanf:"tracing_insecure"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		ShutdownTimeout:   10 * time.Second,
		StoreDriver:       StoreMemory,
		SQLitePath:        "courtside.db",
		SessionBackend:    SessionMemory,
		RedisAddr:         "localhost:6379",
		MinRankedForScore: 6,
		WriterLanes:       8,
		WriterQueueSize:   1024,
		IdempotencySize:   10_000,
		AuditSchedule:     "@every 10m",
		MaxFavoredSides:   32,
		TracingExporter:   "otlp-http",
		TracingSampleRate: 1,
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	if c.Addr == "" {
		return invalid("addr must not be empty")
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return invalid("sqlite_path is required for store_driver=sqlite")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return invalid("postgres_dsn is required for store_driver=postgres")
		}
	default:
		return invalid("unknown store_driver %q", c.StoreDriver)
	}
	switch c.SessionBackend {
	case SessionMemory:
	case SessionRedis:
		if c.RedisAddr == "" {
			return invalid("redis_addr is required for session_backend=redis")
		}
	default:
		return invalid("unknown session_backend %q", c.SessionBackend)
	}
	if c.MinRankedForScore < 1 {
		return invalid("min_ranked_for_score must be >= 1, got %d", c.MinRankedForScore)
	}
	if c.WriterLanes < 1 || c.WriterQueueSize < 1 {
		return invalid("writer_lanes and writer_queue_size must be positive")
	}
	if c.SessionTTL < 0 {
		return invalid("session_ttl must not be negative")
	}
	if c.TracingEnabled {
		if c.TracingExporter != "otlp-http" && c.TracingExporter != "otlp-grpc" {
			return invalid("unknown tracing_exporter %q", c.TracingExporter)
		}
		if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
			return invalid("tracing_sample_rate must be within [0, 1], got %g", c.TracingSampleRate)
		}
	}
	return nil
}
