// Package config loads process configuration from the environment once
// at startup, validated before anything else runs.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080" validate:"required"`

	// StoreBackend selects which store.EntryStore implementation backs
	// this process: "postgres" or "redis".
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres" validate:"required,oneof=postgres redis"`
	DatabaseURL  string `env:"DATABASE_URL" validate:"required_if=StoreBackend postgres"`
	// RedisAddr is required regardless of StoreBackend: both sink.Sink
	// reference implementations deliver through a Redis queue.
	RedisAddr string `env:"REDIS_ADDR" validate:"required"`

	// SinkBackend selects which sink.Sink reference implementation the
	// dispatch loop delivers through: "broker" or "simple".
	SinkBackend string `env:"SINK_BACKEND" envDefault:"simple" validate:"required,oneof=broker simple"`
	EntryPoint  string `env:"ENTRY_POINT" envDefault:"scheduler"`

	MaxIntervalSec int `env:"MAX_INTERVAL_SEC" envDefault:"5" validate:"min=1,max=3600"`
	LockTimeoutSec int `env:"LOCK_TIMEOUT_SEC" envDefault:"30" validate:"min=3,max=86400"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	JWTSecret string `env:"JWT_SECRET" validate:"required"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM" validate:"required_if=Env production,required_if=Env staging"`
	AlertTo      string `env:"ALERT_TO" validate:"required_if=Env production,required_if=Env staging"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) MaxInterval() time.Duration {
	return time.Duration(c.MaxIntervalSec) * time.Second
}

func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutSec) * time.Second
}
