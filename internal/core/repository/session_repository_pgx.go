package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duynhne/session-service/internal/core/domain"
)

// PgxConn is the subset of pgx the adapter needs. It is satisfied by
// *pgx.Conn, *pgxpool.Pool and pgx.Tx.
type PgxConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var (
	_ PgxConn = (*pgx.Conn)(nil)
	_ PgxConn = (*pgxpool.Pool)(nil)
	_ PgxConn = (pgx.Tx)(nil)

	_ domain.SessionAdapter   = (*PgxSessionRepository)(nil)
	_ domain.ConsistentReader = (*PgxSessionRepository)(nil)
)

type pgxTxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PgxSessionRepository implements domain.SessionAdapter using pgx.
// Statements always use the PostgreSQL dialect regardless of Opts.Dialect.
type PgxSessionRepository struct {
	conn       PgxConn
	stmts      *statements
	concurrent bool
}

// NewPgxSessionRepository creates a new PgxSessionRepository.
func NewPgxSessionRepository(conn PgxConn, opts *Opts) (*PgxSessionRepository, error) {
	var o Opts
	if opts != nil {
		o = *opts
	}
	o.Dialect = PostgreSQL

	stmts, err := newStatements(&o)
	if err != nil {
		return nil, err
	}
	_, pooled := conn.(*pgxpool.Pool)
	return &PgxSessionRepository{conn: conn, stmts: stmts, concurrent: pooled}, nil
}

// GetSessionAndUser fetches the session row and the joined user row.
// Against a pool the two reads run concurrently and are not atomic.
func (r *PgxSessionRepository) GetSessionAndUser(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error) {
	return pairedRead(ctx, r.concurrent,
		func(ctx context.Context) (*domain.Session, error) { return r.getSession(ctx, r.conn, sessionID) },
		func(ctx context.Context) (*domain.User, error) { return r.getUserFromSessionID(ctx, r.conn, sessionID) },
	)
}

// GetSessionAndUserConsistent reads both rows inside one read-only transaction.
func (r *PgxSessionRepository) GetSessionAndUserConsistent(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error) {
	b, ok := r.conn.(pgxTxBeginner)
	if !ok {
		return nil, nil, domain.ErrTransactionsUnsupported
	}

	tx, err := b.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	session, user, err := pairedRead(ctx, false,
		func(ctx context.Context) (*domain.Session, error) { return r.getSession(ctx, tx, sessionID) },
		func(ctx context.Context) (*domain.User, error) { return r.getUserFromSessionID(ctx, tx, sessionID) },
	)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// GetUserSessions is not supported by this adapter.
func (r *PgxSessionRepository) GetUserSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	return nil, fmt.Errorf("get user sessions: %w", domain.ErrNotImplemented)
}

// SetSession inserts a new session row.
func (r *PgxSessionRepository) SetSession(ctx context.Context, session *domain.Session) error {
	query, args, err := r.stmts.insertSession(session)
	if err != nil {
		return err
	}
	_, err = r.conn.Exec(ctx, query, args...)
	return err
}

// UpdateSessionExpiration sets expires_at, truncated to whole seconds.
func (r *PgxSessionRepository) UpdateSessionExpiration(ctx context.Context, sessionID string, expiresAt time.Time) error {
	_, err := r.conn.Exec(ctx, r.stmts.updateExpiration, domain.UnixSeconds(expiresAt), sessionID)
	return err
}

// DeleteSession removes the session with the given id.
func (r *PgxSessionRepository) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := r.conn.Exec(ctx, r.stmts.deleteSession, sessionID)
	return err
}

// DeleteUserSessions removes every session of the given user.
func (r *PgxSessionRepository) DeleteUserSessions(ctx context.Context, userID string) error {
	_, err := r.conn.Exec(ctx, r.stmts.deleteUserSessions, userID)
	return err
}

// DeleteExpiredSessions removes sessions with expires_at <= now.
func (r *PgxSessionRepository) DeleteExpiredSessions(ctx context.Context) error {
	_, err := r.conn.Exec(ctx, r.stmts.deleteExpired, domain.UnixSeconds(r.stmts.now()))
	return err
}

func (r *PgxSessionRepository) getSession(ctx context.Context, q PgxConn, sessionID string) (*domain.Session, error) {
	row, err := collectFirstRow(ctx, q, r.stmts.getSession, sessionID)
	if err != nil || row == nil {
		return nil, err
	}
	return sessionFromRow(row)
}

func (r *PgxSessionRepository) getUserFromSessionID(ctx context.Context, q PgxConn, sessionID string) (*domain.User, error) {
	row, err := collectFirstRow(ctx, q, r.stmts.getUser, sessionID)
	if err != nil || row == nil {
		return nil, err
	}
	return userFromRow(row)
}

// collectFirstRow returns the first row as a column map.
// Returns (nil, nil) when the query matched nothing.
func collectFirstRow(ctx context.Context, q PgxConn, query string, args ...any) (map[string]any, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}
