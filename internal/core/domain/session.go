package domain

import (
	"time"
)

// Reserved column names. Everything else in a row is an attribute.
const (
	ColumnID        = "id"
	ColumnUserID    = "user_id"
	ColumnExpiresAt = "expires_at"
)

// Attributes is the open set of extra columns stored next to the fixed ones.
// Values are one of: string, int64, float64, bool, time.Time, nil (NULL),
// or Unset on the write path.
type Attributes map[string]any

type unset struct{}

// Unset marks an attribute that must be left out of an INSERT entirely,
// so the column keeps its table default instead of receiving NULL.
var Unset = unset{}

// IsUnset reports whether v is the Unset marker.
func IsUnset(v any) bool {
	_, ok := v.(unset)
	return ok
}

// Session is a row of the session table.
type Session struct {
	ID         string
	UserID     string
	ExpiresAt  time.Time
	Attributes Attributes
}

// User is a row of the user table. The store only ever reads users.
type User struct {
	ID         string
	Attributes Attributes
}

// UnixSeconds converts t to the stored expires_at value, dropping
// sub-second precision.
func UnixSeconds(t time.Time) int64 {
	return t.Unix()
}

// FromUnixSeconds rebuilds a timestamp from a stored expires_at value.
func FromUnixSeconds(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
