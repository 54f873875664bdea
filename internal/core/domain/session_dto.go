package domain

import "time"

// CreateSessionRequest is the body of POST /api/v1/sessions.
// A missing ID is generated. Attribute keys left out are not written.
type CreateSessionRequest struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id" binding:"required"`
	ExpiresAt  time.Time      `json:"expires_at" binding:"required"`
	Attributes map[string]any `json:"attributes"`
}

// UpdateSessionExpirationRequest is the body of PATCH /api/v1/sessions/:id.
type UpdateSessionExpirationRequest struct {
	ExpiresAt time.Time `json:"expires_at" binding:"required"`
}

type SessionResponse struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Expired    bool           `json:"expired"`
	Attributes map[string]any `json:"attributes"`
}

type UserResponse struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
}

// SessionAndUserResponse is returned by GET /api/v1/sessions/:id.
// User is null when the session's user row no longer exists.
type SessionAndUserResponse struct {
	Session SessionResponse `json:"session"`
	User    *UserResponse   `json:"user"`
}
