package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/session-service/config"
	"github.com/duynhne/session-service/internal/core/domain"
	"github.com/duynhne/session-service/internal/core/repository"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver:   "sqlite",
			DSN:      filepath.Join(t.TempDir(), "sessions.db"),
			MaxConns: 2,
		},
		Store: config.StoreConfig{UserTable: "user", SessionTable: "session"},
	}
}

func TestConnectSQLite(t *testing.T) {
	ctx := context.Background()

	store, err := Connect(ctx, sqliteConfig(t))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	assert.Equal(t, "sqlite", store.Driver)
	assert.IsType(t, &repository.SQLSessionRepository{}, store.Adapter)
	assert.NoError(t, store.Ping(ctx))
}

func TestConnectRejectsReservedAttribute(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Store.SessionAttributes = []string{"user_id"}

	_, err := Connect(context.Background(), cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidSchema)
}

func TestConnectUnknownDriver(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Database.Driver = "oracle"

	_, err := Connect(context.Background(), cfg)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestConnectPostgresBadDSN(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = "postgres://%zz"

	_, err := Connect(context.Background(), cfg)
	assert.ErrorContains(t, err, "parse postgres dsn")
}
