package v1

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/session-service/internal/core/domain"
)

// mockStore is a testify mock of domain.SessionAdapter.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetSessionAndUser(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error) {
	args := m.Called(ctx, sessionID)
	session, _ := args.Get(0).(*domain.Session)
	user, _ := args.Get(1).(*domain.User)
	return session, user, args.Error(2)
}

func (m *mockStore) GetUserSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	args := m.Called(ctx, userID)
	sessions, _ := args.Get(0).([]*domain.Session)
	return sessions, args.Error(1)
}

func (m *mockStore) SetSession(ctx context.Context, session *domain.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *mockStore) UpdateSessionExpiration(ctx context.Context, sessionID string, expiresAt time.Time) error {
	return m.Called(ctx, sessionID, expiresAt).Error(0)
}

func (m *mockStore) DeleteSession(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *mockStore) DeleteUserSessions(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockStore) DeleteExpiredSessions(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// consistentStore adds snapshot reads to mockStore.
type consistentStore struct {
	mockStore
}

func (m *consistentStore) GetSessionAndUserConsistent(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error) {
	args := m.Called(ctx, sessionID)
	session, _ := args.Get(0).(*domain.Session)
	user, _ := args.Get(1).(*domain.User)
	return session, user, args.Error(2)
}

var anyCtx = mock.Anything

func TestCreateSession(t *testing.T) {
	store := new(mockStore)
	svc := NewSessionService(store)

	expiresAt := time.Date(2024, 1, 1, 0, 0, 0, 500_000_000, time.UTC)
	store.On("SetSession", anyCtx, mock.MatchedBy(func(s *domain.Session) bool {
		return s.ID == "s1" && s.UserID == "u1" && s.ExpiresAt.Equal(expiresAt) && s.Attributes["role"] == "admin"
	})).Return(nil).Once()

	session, err := svc.CreateSession(context.Background(), domain.CreateSessionRequest{
		ID:         "s1",
		UserID:     "u1",
		ExpiresAt:  expiresAt,
		Attributes: map[string]any{"role": "admin"},
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", session.ID)
	assert.True(t, session.ExpiresAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	store.AssertExpectations(t)
}

func TestCreateSessionGeneratesID(t *testing.T) {
	store := new(mockStore)
	svc := NewSessionService(store)

	store.On("SetSession", anyCtx, mock.MatchedBy(func(s *domain.Session) bool {
		return len(s.ID) == 36
	})).Return(nil).Once()

	session, err := svc.CreateSession(context.Background(), domain.CreateSessionRequest{
		UserID:    "u1",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Len(t, session.ID, 36)
	store.AssertExpectations(t)
}

func TestCreateSessionValidation(t *testing.T) {
	store := new(mockStore)
	svc := NewSessionService(store)

	_, err := svc.CreateSession(context.Background(), domain.CreateSessionRequest{ExpiresAt: time.Now()})
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = svc.CreateSession(context.Background(), domain.CreateSessionRequest{UserID: "u1"})
	assert.ErrorIs(t, err, ErrInvalidSession)

	store.AssertNotCalled(t, "SetSession", mock.Anything, mock.Anything)
}

func TestCreateSessionPropagatesStoreError(t *testing.T) {
	store := new(mockStore)
	svc := NewSessionService(store)

	driverErr := errors.New("UNIQUE constraint failed: session.id")
	store.On("SetSession", anyCtx, mock.Anything).Return(driverErr)

	_, err := svc.CreateSession(context.Background(), domain.CreateSessionRequest{
		ID: "s1", UserID: "u1", ExpiresAt: time.Now(),
	})
	assert.ErrorIs(t, err, driverErr)
}

func TestGetSession(t *testing.T) {
	session := &domain.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	user := &domain.User{ID: "u1"}

	tests := []struct {
		name        string
		session     *domain.Session
		user        *domain.User
		storeErr    error
		wantErr     error
		wantSession bool
		wantUser    bool
	}{
		{name: "found", session: session, user: user, wantSession: true, wantUser: true},
		{name: "orphaned", session: session, wantSession: true},
		{name: "missing", wantErr: ErrSessionNotFound},
		{name: "store failure", storeErr: context.DeadlineExceeded, wantErr: context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(mockStore)
			store.On("GetSessionAndUser", anyCtx, "s1").Return(tt.session, tt.user, tt.storeErr)

			gotSession, gotUser, err := NewSessionService(store).GetSession(context.Background(), "s1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSession, gotSession != nil)
			assert.Equal(t, tt.wantUser, gotUser != nil)
		})
	}
}

func TestGetSessionConsistent(t *testing.T) {
	t.Run("supported", func(t *testing.T) {
		store := new(consistentStore)
		store.On("GetSessionAndUserConsistent", anyCtx, "s1").
			Return(&domain.Session{ID: "s1"}, &domain.User{ID: "u1"}, nil)

		session, user, err := NewSessionService(store).GetSessionConsistent(context.Background(), "s1")
		require.NoError(t, err)
		assert.Equal(t, "s1", session.ID)
		assert.Equal(t, "u1", user.ID)
		store.AssertNotCalled(t, "GetSessionAndUser", mock.Anything, mock.Anything)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, _, err := NewSessionService(new(mockStore)).GetSessionConsistent(context.Background(), "s1")
		assert.ErrorIs(t, err, domain.ErrTransactionsUnsupported)
	})
}

func TestGetUserSessionsNotImplemented(t *testing.T) {
	store := new(mockStore)
	store.On("GetUserSessions", anyCtx, "u1").
		Return(nil, fmt.Errorf("get user sessions: %w", domain.ErrNotImplemented))

	sessions, err := NewSessionService(store).GetUserSessions(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrNotImplemented)
	assert.Nil(t, sessions)
}

func TestMutations(t *testing.T) {
	ctx := context.Background()
	expiresAt := time.Now().Add(time.Hour)

	store := new(mockStore)
	store.On("UpdateSessionExpiration", anyCtx, "s1", expiresAt).Return(nil).Once()
	store.On("DeleteSession", anyCtx, "s1").Return(nil).Once()
	store.On("DeleteUserSessions", anyCtx, "u1").Return(nil).Once()
	store.On("DeleteExpiredSessions", anyCtx).Return(nil).Once()

	svc := NewSessionService(store)
	require.NoError(t, svc.UpdateSessionExpiration(ctx, "s1", expiresAt))
	require.NoError(t, svc.DeleteSession(ctx, "s1"))
	require.NoError(t, svc.DeleteUserSessions(ctx, "u1"))
	require.NoError(t, svc.DeleteExpiredSessions(ctx))
	store.AssertExpectations(t)

	assert.ErrorIs(t, svc.UpdateSessionExpiration(ctx, "", expiresAt), ErrInvalidSession)
	assert.ErrorIs(t, svc.UpdateSessionExpiration(ctx, "s1", time.Time{}), ErrInvalidSession)
	assert.ErrorIs(t, svc.DeleteSession(ctx, ""), ErrInvalidSession)
	assert.ErrorIs(t, svc.DeleteUserSessions(ctx, ""), ErrInvalidSession)
}

func TestRunExpiredSessionGC(t *testing.T) {
	store := new(mockStore)
	purged := make(chan struct{}, 8)
	store.On("DeleteExpiredSessions", anyCtx).
		Return(nil).
		Run(func(mock.Arguments) {
			select {
			case purged <- struct{}{}:
			default:
			}
		})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	NewSessionService(store).RunExpiredSessionGC(ctx, 10*time.Millisecond)

	for i := 0; i < 2; i++ {
		select {
		case <-purged:
		case <-time.After(2 * time.Second):
			t.Fatal("expired sessions were not purged")
		}
	}
}
