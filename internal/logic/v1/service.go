package v1

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/session-service/internal/core/domain"
	"github.com/duynhne/session-service/internal/logger"
	"github.com/duynhne/session-service/middleware"
)

// SessionService implements session business rules on top of a
// domain.SessionAdapter. It MUST NOT access the database or SQL directly.
type SessionService struct {
	store domain.SessionAdapter
	now   func() time.Time
}

// NewSessionService creates a new SessionService backed by store.
func NewSessionService(store domain.SessionAdapter) *SessionService {
	return &SessionService{store: store, now: time.Now}
}

// begin opens a logic-layer span for one store operation. The returned
// function ends the span and records the operation metrics.
func (s *SessionService) begin(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span, func(error)) {
	start := time.Now()
	ctx, span := middleware.StartSpan(ctx, "session."+operation, trace.WithAttributes(
		append([]attribute.KeyValue{attribute.String("layer", "logic")}, attrs...)...,
	))
	return ctx, span, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		middleware.ObserveStoreOperation(operation, start, err)
		span.End()
	}
}

// CreateSession validates the request and inserts a new session.
func (s *SessionService) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (*domain.Session, error) {
	if strings.TrimSpace(req.UserID) == "" || req.ExpiresAt.IsZero() {
		return nil, fmt.Errorf("create session: %w", ErrInvalidSession)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	session := &domain.Session{
		ID:         id,
		UserID:     req.UserID,
		ExpiresAt:  req.ExpiresAt,
		Attributes: domain.Attributes(req.Attributes),
	}

	ctx, span, done := s.begin(ctx, "set", attribute.String("session.id", id), attribute.String("user.id", req.UserID))
	err := s.store.SetSession(ctx, session)
	if err == nil {
		span.AddEvent("session.created")
	}
	done(err)
	if err != nil {
		return nil, fmt.Errorf("insert session %q: %w", id, err)
	}

	// The store keeps whole seconds only.
	session.ExpiresAt = domain.FromUnixSeconds(domain.UnixSeconds(session.ExpiresAt))
	return session, nil
}

// GetSession returns the session and its user. The user is nil when the
// session is orphaned.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error) {
	return s.getSession(ctx, sessionID, false)
}

// GetSessionConsistent is GetSession with both rows read from one
// transaction snapshot. Fails with domain.ErrTransactionsUnsupported when
// the store cannot do that.
func (s *SessionService) GetSessionConsistent(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error) {
	return s.getSession(ctx, sessionID, true)
}

func (s *SessionService) getSession(ctx context.Context, sessionID string, consistent bool) (*domain.Session, *domain.User, error) {
	if sessionID == "" {
		return nil, nil, fmt.Errorf("get session: %w", ErrInvalidSession)
	}

	ctx, span, done := s.begin(ctx, "get", attribute.String("session.id", sessionID), attribute.Bool("consistent", consistent))

	var (
		session *domain.Session
		user    *domain.User
		err     error
	)
	if consistent {
		reader, ok := s.store.(domain.ConsistentReader)
		if !ok {
			err = domain.ErrTransactionsUnsupported
		} else {
			session, user, err = reader.GetSessionAndUserConsistent(ctx, sessionID)
		}
	} else {
		session, user, err = s.store.GetSessionAndUser(ctx, sessionID)
	}
	if session != nil {
		span.SetAttributes(
			attribute.Bool("session.expired", !s.now().Before(session.ExpiresAt)),
			attribute.Bool("user.found", user != nil),
		)
	}
	done(err)

	if err != nil {
		return nil, nil, fmt.Errorf("query session %q: %w", sessionID, err)
	}
	if session == nil {
		return nil, nil, fmt.Errorf("lookup session %q: %w", sessionID, ErrSessionNotFound)
	}
	return session, user, nil
}

// GetUserSessions is exposed for completeness; the store does not support it.
func (s *SessionService) GetUserSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	ctx, _, done := s.begin(ctx, "list_user", attribute.String("user.id", userID))
	sessions, err := s.store.GetUserSessions(ctx, userID)
	done(err)
	if err != nil {
		return nil, fmt.Errorf("list sessions of user %q: %w", userID, err)
	}
	return sessions, nil
}

// UpdateSessionExpiration moves the expiry of a session. Unknown ids are not an error.
func (s *SessionService) UpdateSessionExpiration(ctx context.Context, sessionID string, expiresAt time.Time) error {
	if sessionID == "" || expiresAt.IsZero() {
		return fmt.Errorf("update session: %w", ErrInvalidSession)
	}

	ctx, _, done := s.begin(ctx, "update_expiration", attribute.String("session.id", sessionID))
	err := s.store.UpdateSessionExpiration(ctx, sessionID, expiresAt)
	done(err)
	if err != nil {
		return fmt.Errorf("update session %q: %w", sessionID, err)
	}
	return nil
}

// DeleteSession removes a session. Unknown ids are not an error.
func (s *SessionService) DeleteSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("delete session: %w", ErrInvalidSession)
	}

	ctx, _, done := s.begin(ctx, "delete", attribute.String("session.id", sessionID))
	err := s.store.DeleteSession(ctx, sessionID)
	done(err)
	if err != nil {
		return fmt.Errorf("delete session %q: %w", sessionID, err)
	}
	return nil
}

// DeleteUserSessions removes every session of a user.
func (s *SessionService) DeleteUserSessions(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("delete user sessions: %w", ErrInvalidSession)
	}

	ctx, _, done := s.begin(ctx, "delete_user", attribute.String("user.id", userID))
	err := s.store.DeleteUserSessions(ctx, userID)
	done(err)
	if err != nil {
		return fmt.Errorf("delete sessions of user %q: %w", userID, err)
	}
	return nil
}

// DeleteExpiredSessions purges every expired session.
func (s *SessionService) DeleteExpiredSessions(ctx context.Context) error {
	ctx, _, done := s.begin(ctx, "delete_expired")
	err := s.store.DeleteExpiredSessions(ctx)
	done(err)
	if err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}
	return nil
}

// RunExpiredSessionGC purges expired sessions every interval in a
// background goroutine until ctx is cancelled.
func (s *SessionService) RunExpiredSessionGC(ctx context.Context, interval time.Duration) {
	log := logger.FromContext(ctx).With().Str("component", "session_gc").Logger()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info().AnErr("reason", ctx.Err()).Msg("Expired session purge stopped")
				return
			case <-ticker.C:
				if err := s.DeleteExpiredSessions(ctx); err != nil {
					log.Error().Err(err).Msg("Expired session purge failed")
					continue
				}
				log.Debug().Msg("Expired session purge completed")
			}
		}
	}()
}
