// Package storetest provides a compliance suite shared by every
// domain.SessionAdapter backend.
package storetest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duynhne/session-service/internal/core/domain"
)

// Fixture gives the suite raw access to the tables behind an adapter.
//
// The session table must have the columns id, user_id, expires_at (integer),
// role (text, DEFAULT 'guest') and note (nullable text). The user table must
// have id and name (text). Neither table may declare a foreign key.
type Fixture struct {
	DB *sql.DB
	// UserTable and SessionTable are already quoted for the dialect.
	UserTable    string
	SessionTable string
	// BindType is an sqlx bind type (sqlx.QUESTION, sqlx.DOLLAR, ...).
	BindType int
}

func (f Fixture) exec(t *testing.T, query string, args ...any) {
	t.Helper()
	_, err := f.DB.Exec(sqlx.Rebind(f.BindType, query), args...)
	require.NoError(t, err)
}

// Reset empties both tables.
func (f Fixture) Reset(t *testing.T) {
	t.Helper()
	f.exec(t, "DELETE FROM "+f.SessionTable)
	f.exec(t, "DELETE FROM "+f.UserTable)
}

// InsertUser adds a user row.
func (f Fixture) InsertUser(t *testing.T, id, name string) {
	t.Helper()
	f.exec(t, fmt.Sprintf("INSERT INTO %s (id, name) VALUES (?, ?)", f.UserTable), id, name)
}

// DeleteUser removes a user row without touching its sessions.
func (f Fixture) DeleteUser(t *testing.T, id string) {
	t.Helper()
	f.exec(t, fmt.Sprintf("DELETE FROM %s WHERE id = ?", f.UserTable), id)
}

// SessionColumn reads one column of a session row. found is false when the
// row does not exist.
func (f Fixture) SessionColumn(t *testing.T, sessionID, column string) (value any, found bool) {
	t.Helper()
	query := sqlx.Rebind(f.BindType, fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", column, f.SessionTable))
	err := f.DB.QueryRow(query, sessionID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	require.NoError(t, err)
	if b, ok := value.([]byte); ok {
		value = string(b)
	}
	return value, true
}

func (f Fixture) storedExpiry(t *testing.T, sessionID string) int64 {
	t.Helper()
	v, found := f.SessionColumn(t, sessionID, "expires_at")
	require.True(t, found, "session %s not stored", sessionID)
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case string:
		var out int64
		_, err := fmt.Sscan(n, &out)
		require.NoError(t, err)
		return out
	default:
		t.Fatalf("expires_at has unexpected type %T", v)
		return 0
	}
}

// RunComplianceTest runs the standard behaviours every adapter must show.
func RunComplianceTest(t *testing.T, store domain.SessionAdapter, f Fixture) {
	ctx := context.Background()
	t.Cleanup(func() { f.Reset(t) })

	t.Run("SetGetTruncatesExpiry", func(t *testing.T) {
		f.Reset(t)
		f.InsertUser(t, "u1", "Ada")

		expiresAt := time.Date(2024, 1, 1, 0, 0, 0, 500*int(time.Millisecond), time.UTC)
		err := store.SetSession(ctx, &domain.Session{
			ID:         "s1",
			UserID:     "u1",
			ExpiresAt:  expiresAt,
			Attributes: domain.Attributes{"role": "admin"},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1704067200), f.storedExpiry(t, "s1"))

		session, user, err := store.GetSessionAndUser(ctx, "s1")
		require.NoError(t, err)
		require.NotNil(t, session)
		require.NotNil(t, user)

		assert.Equal(t, "s1", session.ID)
		assert.Equal(t, "u1", session.UserID)
		assert.True(t, session.ExpiresAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
			"expires at %v", session.ExpiresAt)
		assert.Equal(t, domain.Attributes{"role": "admin", "note": nil}, session.Attributes)

		assert.Equal(t, "u1", user.ID)
		assert.Equal(t, domain.Attributes{"name": "Ada"}, user.Attributes)
	})

	t.Run("GetMissingSession", func(t *testing.T) {
		f.Reset(t)

		session, user, err := store.GetSessionAndUser(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, session)
		assert.Nil(t, user)
	})

	t.Run("GetOrphanedSession", func(t *testing.T) {
		f.Reset(t)
		f.InsertUser(t, "u1", "Ada")
		require.NoError(t, store.SetSession(ctx, &domain.Session{
			ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour),
		}))
		f.DeleteUser(t, "u1")

		session, user, err := store.GetSessionAndUser(ctx, "s1")
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, "s1", session.ID)
		assert.Nil(t, user)
	})

	t.Run("DuplicateSessionFails", func(t *testing.T) {
		f.Reset(t)
		s := &domain.Session{ID: "dup", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, store.SetSession(ctx, s))
		assert.Error(t, store.SetSession(ctx, s))
	})

	t.Run("UnsetAttributeIsOmitted", func(t *testing.T) {
		f.Reset(t)
		require.NoError(t, store.SetSession(ctx, &domain.Session{
			ID:         "s1",
			UserID:     "u1",
			ExpiresAt:  time.Now().Add(time.Hour),
			Attributes: domain.Attributes{"role": domain.Unset},
		}))

		role, found := f.SessionColumn(t, "s1", "role")
		require.True(t, found)
		assert.Equal(t, "guest", role)
	})

	t.Run("NilAttributeWritesNull", func(t *testing.T) {
		f.Reset(t)
		require.NoError(t, store.SetSession(ctx, &domain.Session{
			ID:         "s1",
			UserID:     "u1",
			ExpiresAt:  time.Now().Add(time.Hour),
			Attributes: domain.Attributes{"role": nil, "note": "hello"},
		}))

		role, _ := f.SessionColumn(t, "s1", "role")
		assert.Nil(t, role)
		note, _ := f.SessionColumn(t, "s1", "note")
		assert.Equal(t, "hello", note)
	})

	t.Run("UpdateSessionExpiration", func(t *testing.T) {
		f.Reset(t)
		require.NoError(t, store.SetSession(ctx, &domain.Session{
			ID: "s1", UserID: "u1", ExpiresAt: time.Unix(1000, 0),
		}))

		require.NoError(t, store.UpdateSessionExpiration(ctx, "s1", time.Unix(2000, 999_000_000)))
		assert.Equal(t, int64(2000), f.storedExpiry(t, "s1"))
	})

	t.Run("UpdateMissingSessionIsNoop", func(t *testing.T) {
		f.Reset(t)

		require.NoError(t, store.UpdateSessionExpiration(ctx, "missing", time.Now()))
		_, found := f.SessionColumn(t, "missing", "id")
		assert.False(t, found)
	})

	t.Run("DeleteSession", func(t *testing.T) {
		f.Reset(t)
		for _, id := range []string{"s1", "s2"} {
			require.NoError(t, store.SetSession(ctx, &domain.Session{
				ID: id, UserID: "u1", ExpiresAt: time.Now().Add(time.Hour),
			}))
		}

		require.NoError(t, store.DeleteSession(ctx, "s1"))
		require.NoError(t, store.DeleteSession(ctx, "missing"))

		_, found := f.SessionColumn(t, "s1", "id")
		assert.False(t, found)
		_, found = f.SessionColumn(t, "s2", "id")
		assert.True(t, found)
	})

	t.Run("DeleteUserSessions", func(t *testing.T) {
		f.Reset(t)
		sessions := map[string]string{"a1": "alice", "a2": "alice", "b1": "bob"}
		for id, userID := range sessions {
			require.NoError(t, store.SetSession(ctx, &domain.Session{
				ID: id, UserID: userID, ExpiresAt: time.Now().Add(time.Hour),
			}))
		}

		require.NoError(t, store.DeleteUserSessions(ctx, "alice"))
		require.NoError(t, store.DeleteUserSessions(ctx, "nobody"))

		for id, userID := range sessions {
			_, found := f.SessionColumn(t, id, "id")
			assert.Equal(t, userID != "alice", found, "session %s", id)
		}
	})

	t.Run("DeleteExpiredSessions", func(t *testing.T) {
		f.Reset(t)
		now := time.Now()
		require.NoError(t, store.SetSession(ctx, &domain.Session{
			ID: "expired", UserID: "u1", ExpiresAt: now.Add(-10 * time.Second),
		}))
		require.NoError(t, store.SetSession(ctx, &domain.Session{
			ID: "valid", UserID: "u1", ExpiresAt: now.Add(10 * time.Second),
		}))

		require.NoError(t, store.DeleteExpiredSessions(ctx))

		_, found := f.SessionColumn(t, "expired", "id")
		assert.False(t, found)
		_, found = f.SessionColumn(t, "valid", "id")
		assert.True(t, found)
	})

	t.Run("GetUserSessionsNotImplemented", func(t *testing.T) {
		sessions, err := store.GetUserSessions(ctx, "u1")
		assert.ErrorIs(t, err, domain.ErrNotImplemented)
		assert.Nil(t, sessions)
	})

	t.Run("ConsistentRead", testConsistentRead(store, f))
}

func testConsistentRead(store domain.SessionAdapter, f Fixture) func(t *testing.T) {
	return func(t *testing.T) {
		reader, ok := store.(domain.ConsistentReader)
		if !ok {
			t.Skip("adapter does not support consistent reads")
		}

		ctx := context.Background()
		f.Reset(t)
		f.InsertUser(t, "u1", "Ada")
		require.NoError(t, store.SetSession(ctx, &domain.Session{
			ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour),
		}))

		session, user, err := reader.GetSessionAndUserConsistent(ctx, "s1")
		require.NoError(t, err)
		require.NotNil(t, session)
		require.NotNil(t, user)
		assert.Equal(t, "u1", user.ID)

		session, user, err = reader.GetSessionAndUserConsistent(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, session)
		assert.Nil(t, user)
	}
}
