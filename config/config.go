// Package config loads service configuration from the environment.
//
// Values are read from process environment variables; a .env file in the
// working directory is loaded first when present (existing variables win).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Store     StoreConfig
	Logging   LoggingConfig
	Tracing   TracingConfig
	Profiling ProfilingConfig
	Shutdown  ShutdownConfig
}

type ServiceConfig struct {
	Name    string `env:"SERVICE_NAME" envDefault:"session-service"`
	Version string `env:"SERVICE_VERSION" envDefault:"dev"`
	Env     string `env:"ENV" envDefault:"development"`
	Port    string `env:"PORT" envDefault:"8080"`
}

// DatabaseConfig selects the driver and connection string.
// Driver is one of postgres, mysql, sqlite.
type DatabaseConfig struct {
	Driver   string `env:"DB_DRIVER" envDefault:"postgres"`
	DSN      string `env:"DB_DSN"`
	MaxConns int32  `env:"DB_MAX_CONNS" envDefault:"10"`
}

// StoreConfig describes the session and user tables.
type StoreConfig struct {
	UserTable         string   `env:"STORE_USER_TABLE" envDefault:"user"`
	SessionTable      string   `env:"STORE_SESSION_TABLE" envDefault:"session"`
	SessionAttributes []string `env:"STORE_SESSION_ATTRIBUTES" envSeparator:","`
	UserAttributes    []string `env:"STORE_USER_ATTRIBUTES" envSeparator:","`
	// GCInterval controls how often expired sessions are purged. "0" disables it.
	GCInterval        string   `env:"STORE_GC_INTERVAL" envDefault:"10m"`
}

type LoggingConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

type TracingConfig struct {
	Enabled    bool    `env:"TRACING_ENABLED" envDefault:"false"`
	Endpoint   string  `env:"OTEL_COLLECTOR_ENDPOINT" envDefault:"localhost:4318"`
	SampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"0.1"`
}

type ProfilingConfig struct {
	Enabled  bool   `env:"PROFILING_ENABLED" envDefault:"false"`
	Endpoint string `env:"PYROSCOPE_ENDPOINT" envDefault:"http://localhost:4040"`
}

type ShutdownConfig struct {
	Timeout             string `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ReadinessDrainDelay string `env:"READINESS_DRAIN_DELAY" envDefault:"5s"`
}

// Load reads .env (if any) and parses the environment into a Config.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for values the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Service.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}

	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not one of postgres, mysql, sqlite", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	}
	if c.Database.MaxConns < 1 {
		errs = append(errs, fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.Database.MaxConns))
	}

	if strings.TrimSpace(c.Store.UserTable) == "" || strings.TrimSpace(c.Store.SessionTable) == "" {
		errs = append(errs, errors.New("STORE_USER_TABLE and STORE_SESSION_TABLE must not be empty"))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLE_RATE must be within [0, 1], got %v", c.Tracing.SampleRate))
	}

	for name, value := range map[string]string{
		"STORE_GC_INTERVAL":     c.Store.GCInterval,
		"SHUTDOWN_TIMEOUT":      c.Shutdown.Timeout,
		"READINESS_DRAIN_DELAY": c.Shutdown.ReadinessDrainDelay,
	} {
		if d, err := time.ParseDuration(value); err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, value))
		}
	}

	return errors.Join(errs...)
}

// GetGCIntervalDuration returns the expired-session purge interval.
// Zero means the purge loop is disabled.
func (c *Config) GetGCIntervalDuration() time.Duration {
	return parseDuration(c.Store.GCInterval, 10*time.Minute)
}

func (c *Config) GetShutdownTimeoutDuration() time.Duration {
	return parseDuration(c.Shutdown.Timeout, 10*time.Second)
}

func (c *Config) GetReadinessDrainDelayDuration() time.Duration {
	return parseDuration(c.Shutdown.ReadinessDrainDelay, 5*time.Second)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
