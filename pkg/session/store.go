package session

import "context"

// Store is the persistence interface for sessions.
type Store interface {
	// Create stores a new session.
	Create(ctx context.Context, s *Session) error

	// Get retrieves a session by token. Missing tokens return
	// ErrSessionNotFound, expired ones ErrSessionExpired.
	Get(ctx context.Context, token string) (*Session, error)

	// Update replaces an existing session.
	Update(ctx context.Context, s *Session) error

	// Delete removes a session by token. Deleting an absent token is not an
	// error.
	Delete(ctx context.Context, token string) error

	// DeleteExpired removes all expired sessions.
	DeleteExpired(ctx context.Context) error
}
