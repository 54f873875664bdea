package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/sessions")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "session-service", cfg.Service.Name)
	assert.Equal(t, "8080", cfg.Service.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, "user", cfg.Store.UserTable)
	assert.Equal(t, "session", cfg.Store.SessionTable)
	assert.Empty(t, cfg.Store.SessionAttributes)
	assert.Equal(t, 10*time.Minute, cfg.GetGCIntervalDuration())
	assert.Equal(t, 10*time.Second, cfg.GetShutdownTimeoutDuration())
	assert.Equal(t, 5*time.Second, cfg.GetReadinessDrainDelayDuration())
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "/tmp/sessions.db")
	t.Setenv("STORE_SESSION_TABLE", "auth_session")
	t.Setenv("STORE_SESSION_ATTRIBUTES", "role,ip_address")
	t.Setenv("STORE_GC_INTERVAL", "0s")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("OTEL_SAMPLE_RATE", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "auth_session", cfg.Store.SessionTable)
	assert.Equal(t, []string{"role", "ip_address"}, cfg.Store.SessionAttributes)
	assert.Equal(t, time.Duration(0), cfg.GetGCIntervalDuration())
	assert.True(t, cfg.Tracing.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("TRACING_ENABLED", "maybe")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Service:  ServiceConfig{Port: "8080"},
			Database: DatabaseConfig{Driver: "mysql", DSN: "user:pw@/db", MaxConns: 4},
			Store:    StoreConfig{UserTable: "user", SessionTable: "session", GCInterval: "1m"},
			Tracing:  TracingConfig{SampleRate: 0.5},
			Shutdown: ShutdownConfig{Timeout: "10s", ReadinessDrainDelay: "0s"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, "DB_DRIVER"},
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }, "DB_DSN"},
		{"no conns", func(c *Config) { c.Database.MaxConns = 0 }, "DB_MAX_CONNS"},
		{"empty table", func(c *Config) { c.Store.SessionTable = " " }, "STORE_SESSION_TABLE"},
		{"sample rate", func(c *Config) { c.Tracing.SampleRate = 2 }, "OTEL_SAMPLE_RATE"},
		{"bad interval", func(c *Config) { c.Store.GCInterval = "often" }, "STORE_GC_INTERVAL"},
		{"negative timeout", func(c *Config) { c.Shutdown.Timeout = "-1s" }, "SHUTDOWN_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
