package session

import (
	"time"

	"github.com/google/uuid"
)

// Session maps an opaque token to an optional user association. The token is
// the only thing that travels to the client; everything else stays in the
// store.
type Session struct {
	ID        uuid.UUID  `json:"id"`
	Token     string     `json:"token"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewSession creates an anonymous session with the given token and lifetime.
func NewSession(token string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New(),
		Token:     token,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// IsAuthenticated reports whether the session carries a user.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.UserID != nil
}

// IsExpired reports whether the session has passed its lifetime.
func (s *Session) IsExpired() bool {
	return s != nil && time.Now().After(s.ExpiresAt)
}

// SetUserID associates the session with a user.
func (s *Session) SetUserID(id uuid.UUID) {
	if s == nil {
		return
	}
	s.UserID = &id
}

// ClearUserID drops the user association. Calling it on an anonymous session
// is a no-op, which keeps logout idempotent.
func (s *Session) ClearUserID() {
	if s == nil {
		return
	}
	s.UserID = nil
}
