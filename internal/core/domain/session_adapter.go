package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotImplemented is returned by operations an adapter deliberately does
// not support. Check with errors.Is.
var ErrNotImplemented = errors.New("not implemented")

// ErrTransactionsUnsupported is returned by consistent reads when the
// underlying connection cannot begin a transaction.
var ErrTransactionsUnsupported = errors.New("connection does not support transactions")

// ErrInvalidSchema is returned when declared attribute columns are unusable.
var ErrInvalidSchema = errors.New("invalid attribute schema")

// SessionAdapter defines the storage contract the authentication layer
// delegates session persistence to.
// Implementations live in internal/core/repository (Core layer).
type SessionAdapter interface {
	// GetSessionAndUser reads the session and its owner with two independent
	// queries. The reads are not atomic with respect to each other.
	// Returns (nil, nil, nil) when the session does not exist and
	// (session, nil, nil) when its user row is missing.
	GetSessionAndUser(ctx context.Context, sessionID string) (*Session, *User, error)

	// GetUserSessions always fails with ErrNotImplemented.
	GetUserSessions(ctx context.Context, userID string) ([]*Session, error)

	// SetSession inserts a new session row. A duplicate id fails with the
	// driver's constraint error.
	SetSession(ctx context.Context, session *Session) error

	// UpdateSessionExpiration sets expires_at for the session. Missing ids are a no-op.
	UpdateSessionExpiration(ctx context.Context, sessionID string, expiresAt time.Time) error

	// DeleteSession removes one session. Missing ids are a no-op.
	DeleteSession(ctx context.Context, sessionID string) error

	// DeleteUserSessions removes every session owned by the user.
	DeleteUserSessions(ctx context.Context, userID string) error

	// DeleteExpiredSessions removes every session with expires_at <= now.
	DeleteExpiredSessions(ctx context.Context) error
}

// ConsistentReader is implemented by adapters that can read a session and
// its user from a single transaction snapshot.
type ConsistentReader interface {
	GetSessionAndUserConsistent(ctx context.Context, sessionID string) (*Session, *User, error)
}
