package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/duynhne/session-service/internal/core/domain"
)

// SQLConn is the subset of database/sql the adapter needs. It is satisfied
// by *sql.DB, *sql.Conn and *sql.Tx.
type SQLConn interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var (
	_ SQLConn = (*sql.DB)(nil)
	_ SQLConn = (*sql.Conn)(nil)
	_ SQLConn = (*sql.Tx)(nil)

	_ domain.SessionAdapter   = (*SQLSessionRepository)(nil)
	_ domain.ConsistentReader = (*SQLSessionRepository)(nil)
)

type sqlTxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// SQLSessionRepository implements domain.SessionAdapter over a database/sql connection.
// The connection is owned by the caller; the adapter never opens or closes it.
type SQLSessionRepository struct {
	conn       SQLConn
	stmts      *statements
	concurrent bool
}

// NewSQLSessionRepository creates a new SQLSessionRepository.
// Table names are escaped here, once.
func NewSQLSessionRepository(conn SQLConn, opts *Opts) (*SQLSessionRepository, error) {
	stmts, err := newStatements(opts)
	if err != nil {
		return nil, err
	}
	_, pooled := conn.(*sql.DB)
	return &SQLSessionRepository{conn: conn, stmts: stmts, concurrent: pooled}, nil
}

// GetSessionAndUser fetches the session row and the joined user row.
// The two reads run concurrently against the pool and are not atomic.
func (r *SQLSessionRepository) GetSessionAndUser(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error) {
	return pairedRead(ctx, r.concurrent,
		func(ctx context.Context) (*domain.Session, error) { return r.getSession(ctx, r.conn, sessionID) },
		func(ctx context.Context) (*domain.User, error) { return r.getUserFromSessionID(ctx, r.conn, sessionID) },
	)
}

// GetSessionAndUserConsistent reads both rows inside one transaction.
func (r *SQLSessionRepository) GetSessionAndUserConsistent(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error) {
	b, ok := r.conn.(sqlTxBeginner)
	if !ok {
		return nil, nil, domain.ErrTransactionsUnsupported
	}

	// SQLite drivers reject or ignore read-only transactions.
	readOnly := r.stmts.dialect == PostgreSQL || r.stmts.dialect == MySQL
	tx, err := b.BeginTx(ctx, &sql.TxOptions{ReadOnly: readOnly})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	session, user, err := pairedRead(ctx, false,
		func(ctx context.Context) (*domain.Session, error) { return r.getSession(ctx, tx, sessionID) },
		func(ctx context.Context) (*domain.User, error) { return r.getUserFromSessionID(ctx, tx, sessionID) },
	)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// GetUserSessions is not supported by this adapter.
func (r *SQLSessionRepository) GetUserSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	return nil, fmt.Errorf("get user sessions: %w", domain.ErrNotImplemented)
}

// SetSession inserts a new session row.
func (r *SQLSessionRepository) SetSession(ctx context.Context, session *domain.Session) error {
	query, args, err := r.stmts.insertSession(session)
	if err != nil {
		return err
	}
	_, err = r.conn.ExecContext(ctx, query, args...)
	return err
}

// UpdateSessionExpiration sets expires_at, truncated to whole seconds.
func (r *SQLSessionRepository) UpdateSessionExpiration(ctx context.Context, sessionID string, expiresAt time.Time) error {
	_, err := r.conn.ExecContext(ctx, r.stmts.updateExpiration, domain.UnixSeconds(expiresAt), sessionID)
	return err
}

// DeleteSession removes the session with the given id.
func (r *SQLSessionRepository) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := r.conn.ExecContext(ctx, r.stmts.deleteSession, sessionID)
	return err
}

// DeleteUserSessions removes every session of the given user.
func (r *SQLSessionRepository) DeleteUserSessions(ctx context.Context, userID string) error {
	_, err := r.conn.ExecContext(ctx, r.stmts.deleteUserSessions, userID)
	return err
}

// DeleteExpiredSessions removes sessions with expires_at <= now.
func (r *SQLSessionRepository) DeleteExpiredSessions(ctx context.Context) error {
	_, err := r.conn.ExecContext(ctx, r.stmts.deleteExpired, domain.UnixSeconds(r.stmts.now()))
	return err
}

func (r *SQLSessionRepository) getSession(ctx context.Context, q SQLConn, sessionID string) (*domain.Session, error) {
	row, err := queryFirstRow(ctx, q, r.stmts.getSession, sessionID)
	if err != nil || row == nil {
		return nil, err
	}
	return sessionFromRow(row)
}

func (r *SQLSessionRepository) getUserFromSessionID(ctx context.Context, q SQLConn, sessionID string) (*domain.User, error) {
	row, err := queryFirstRow(ctx, q, r.stmts.getUser, sessionID)
	if err != nil || row == nil {
		return nil, err
	}
	return userFromRow(row)
}

// queryFirstRow returns the first row as a column map, or nil when the
// query matched nothing.
func queryFirstRow(ctx context.Context, q SQLConn, query string, args ...any) (map[string]any, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	row := make(map[string]any)
	if err := sqlx.MapScan(rows, row); err != nil {
		return nil, err
	}
	return row, nil
}
