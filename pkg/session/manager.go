package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Config holds session layer configuration.
type Config struct {
	CookieName    string        `env:"SESSION_COOKIE_NAME" envDefault:"gk_session"`
	TTL           time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	SecureCookies bool          `env:"SESSION_SECURE_COOKIES" envDefault:"true"`
}

// Manager moves sessions between the cookie transport and the store.
type Manager struct {
	store  Store
	config Config
}

// NewManager creates a session manager over the given store.
func NewManager(store Store, cfg Config) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "gk_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	return &Manager{store: store, config: cfg}
}

// Get returns the session referenced by the request cookie, if any.
func (m *Manager) Get(ctx context.Context, r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.config.CookieName)
	if err != nil || c.Value == "" {
		return nil, ErrSessionNotFound
	}
	return m.store.Get(ctx, c.Value)
}

// Ensure returns the request's session, creating an anonymous one (and
// setting the cookie) when none exists.
func (m *Manager) Ensure(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	if s, err := m.Get(ctx, r); err == nil {
		return s, nil
	}
	return m.create(ctx, w, nil)
}

// Authenticate issues a fresh authenticated session for userID and discards
// the request's previous session. Rotating the token on privilege change
// prevents session fixation.
func (m *Manager) Authenticate(ctx context.Context, w http.ResponseWriter, r *http.Request, userID uuid.UUID) (*Session, error) {
	if old, err := m.Get(ctx, r); err == nil {
		_ = m.store.Delete(ctx, old.Token)
	}
	return m.create(ctx, w, &userID)
}

// Logout clears the user association from the request's session and expires
// the cookie. Idempotent: no session, an anonymous session, or a repeated
// call all succeed silently.
func (m *Manager) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	s, err := m.Get(ctx, r)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
			m.clearCookie(w)
			return nil
		}
		return err
	}

	s.ClearUserID()
	if err := m.store.Update(ctx, s); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	m.clearCookie(w)
	return nil
}

func (m *Manager) create(ctx context.Context, w http.ResponseWriter, userID *uuid.UUID) (*Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	s := NewSession(token, m.config.TTL)
	s.UserID = userID
	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.config.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return s, nil
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", ErrTokenGeneration
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
