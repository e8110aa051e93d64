// Package config loads Flagwise settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv     string
	LogLevel   string
	LogFormat  string
	InstanceID string
	HTTPAddr   string

	// Database. An empty DatabaseURL selects the embedded SQLite store.
	DatabaseURL      string
	SQLitePath       string
	DatabaseMaxConns int

	// Redis. An empty RedisURL selects the in-process decision cache.
	RedisURL string

	// RabbitMQ. An empty RabbitMQURL disables invalidation broadcast.
	RabbitMQURL string

	// Decisions
	DecisionTTL      time.Duration
	StoreReadTimeout time.Duration
	CacheCapacity    int

	// Store circuit breaker
	BreakerFailures         int
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenRequests int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:     getEnv("APP_ENV", "development"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "text"),
		InstanceID: getEnv("FLAGWISE_INSTANCE_ID", defaultInstanceID()),
		HTTPAddr:   getEnv("FLAGWISE_HTTP_ADDR", "0.0.0.0:8080"),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		SQLitePath:       getEnv("FLAGWISE_SQLITE_PATH", ""),
		DatabaseMaxConns: getIntEnv("DATABASE_MAX_CONNS", 10),

		RedisURL:    getEnv("REDIS_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		DecisionTTL:      getDurationEnv("FLAGWISE_DECISION_TTL", 300*time.Second),
		StoreReadTimeout: getDurationEnv("FLAGWISE_STORE_READ_TIMEOUT", 50*time.Millisecond),
		CacheCapacity:    getIntEnv("FLAGWISE_CACHE_CAPACITY", 100_000),

		BreakerFailures:         getIntEnv("FLAGWISE_BREAKER_FAILURES", 5),
		BreakerOpenTimeout:      getDurationEnv("FLAGWISE_BREAKER_OPEN_TIMEOUT", 10*time.Second),
		BreakerHalfOpenRequests: getIntEnv("FLAGWISE_BREAKER_HALF_OPEN_REQUESTS", 1),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that would break the decision path.
func (c *Config) Validate() error {
	var errs []error
	if c.DecisionTTL <= 0 {
		errs = append(errs, fmt.Errorf("FLAGWISE_DECISION_TTL must be positive, got %s", c.DecisionTTL))
	}
	if c.StoreReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("FLAGWISE_STORE_READ_TIMEOUT must be positive, got %s", c.StoreReadTimeout))
	}
	if c.CacheCapacity < 0 {
		errs = append(errs, fmt.Errorf("FLAGWISE_CACHE_CAPACITY must not be negative, got %d", c.CacheCapacity))
	}
	if c.BreakerFailures < 1 {
		errs = append(errs, fmt.Errorf("FLAGWISE_BREAKER_FAILURES must be at least 1, got %d", c.BreakerFailures))
	}
	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// LocalMode reports whether flags live in the embedded SQLite database.
func (c *Config) LocalMode() bool {
	return c.DatabaseURL == ""
}

// ResolvedSQLitePath returns the SQLite file, defaulting to ~/.flagwise/flags.db.
func (c *Config) ResolvedSQLitePath() string {
	if c.SQLitePath != "" {
		return c.SQLitePath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".flagwise", "flags.db")
	}
	return filepath.Join(home, ".flagwise", "flags.db")
}

func defaultInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "flagwise"
	}
	return host
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
