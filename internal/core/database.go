// Package database opens the configured database and builds the session
// adapter on top of it.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/duynhne/session-service/config"
	"github.com/duynhne/session-service/internal/core/domain"
	"github.com/duynhne/session-service/internal/core/repository"
)

// Store pairs a session adapter with the connection it runs on.
// The connection belongs to Store, not to the adapter.
type Store struct {
	Adapter domain.SessionAdapter
	Driver  string

	ping  func(ctx context.Context) error
	close func()
}

// Ping checks the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Close releases the underlying connection.
func (s *Store) Close() {
	s.close()
}

// Connect opens the database named by cfg.Database and wraps it in the
// matching adapter.
func Connect(ctx context.Context, cfg *config.Config) (*Store, error) {
	opts := &repository.Opts{
		UserTable:         cfg.Store.UserTable,
		SessionTable:      cfg.Store.SessionTable,
		SessionAttributes: cfg.Store.SessionAttributes,
		UserAttributes:    cfg.Store.UserAttributes,
	}

	driver := strings.ToLower(cfg.Database.Driver)
	switch driver {
	case "postgres":
		return connectPostgres(ctx, cfg, opts)
	case "mysql":
		opts.Dialect = repository.MySQL
		return connectSQL(ctx, cfg, "mysql", opts)
	case "sqlite":
		opts.Dialect = repository.SQLite
		return connectSQL(ctx, cfg, "sqlite", opts)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func connectPostgres(ctx context.Context, cfg *config.Config, opts *repository.Opts) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	adapter, err := repository.NewPgxSessionRepository(pool, opts)
	if err != nil {
		pool.Close()
		return nil, err
	}

	log.Debug().
		Int32("max_conns", poolCfg.MaxConns).
		Str("host", poolCfg.ConnConfig.Host).
		Msg("Postgres pool ready")

	return &Store{
		Adapter: adapter,
		Driver:  "postgres",
		ping:    pool.Ping,
		close:   pool.Close,
	}, nil
}

func connectSQL(ctx context.Context, cfg *config.Config, driverName string, opts *repository.Opts) (*Store, error) {
	db, err := sql.Open(driverName, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	db.SetMaxOpenConns(int(cfg.Database.MaxConns))

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driverName, err)
	}

	adapter, err := repository.NewSQLSessionRepository(db, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug().
		Str("driver", driverName).
		Str("dialect", opts.Dialect.String()).
		Msg("SQL connection ready")

	return &Store{
		Adapter: adapter,
		Driver:  driverName,
		ping:    db.PingContext,
		close:   func() { _ = db.Close() },
	}, nil
}
