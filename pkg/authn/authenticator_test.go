package authn

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAuthenticator_Register(t *testing.T) {
	t.Parallel()

	linker := newTestLinker(&MockUserStore{}, &MockAccountStore{}, &MockMailer{})

	t.Run("registers a valid strategy", func(t *testing.T) {
		t.Parallel()

		auth := New()
		require.NoError(t, auth.Register(NewFormStrategy(linker)))

		s, ok := auth.Strategy(StrategyForm)
		assert.True(t, ok)
		assert.Equal(t, StrategyForm, s.Name())
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		t.Parallel()

		auth := New()
		require.NoError(t, auth.Register(NewFormStrategy(linker)))
		assert.ErrorIs(t, auth.Register(NewFormStrategy(linker)), ErrStrategyRegistered)
	})

	t.Run("rejects misconfigured strategies at registration time", func(t *testing.T) {
		t.Parallel()

		auth := New()
		incomplete := NewOAuthStrategy(StrategyGitHub, OAuthConfig{ClientID: "only-this"}, &MockProviderClient{}, linker)

		err := auth.Register(incomplete)

		assert.ErrorIs(t, err, ErrMissingConfig)
		_, ok := auth.Strategy(StrategyGitHub)
		assert.False(t, ok)
	})

	t.Run("rejects nil strategy", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, New().Register(nil), ErrMissingConfig)
	})
}

func TestAuthenticator_Authenticate(t *testing.T) {
	t.Parallel()

	t.Run("unknown strategy name", func(t *testing.T) {
		t.Parallel()

		_, err := New().Authenticate(context.Background(), StrategyGitHub, Request{})
		assert.ErrorIs(t, err, ErrStrategyNotRegistered)
	})

	t.Run("delegates to the named strategy", func(t *testing.T) {
		t.Parallel()

		users := &MockUserStore{}
		accounts := &MockAccountStore{}
		users.On("GetUserByEmail", mock.Anything, "ghost@example.com").Return(nil, ErrNotFound).Once()

		auth := New()
		require.NoError(t, auth.Register(NewFormStrategy(newTestLinker(users, accounts, &MockMailer{}))))

		_, err := auth.Authenticate(context.Background(), StrategyForm, Request{
			Action: FormActionLogin, Email: "ghost@example.com", Password: "pw",
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

// stubSession records ClearUserID calls without a real session layer.
type stubSession struct {
	userID *uuid.UUID
	clears int
}

func (s *stubSession) ClearUserID() {
	s.userID = nil
	s.clears++
}

func TestAuthenticator_Logout(t *testing.T) {
	t.Parallel()

	auth := New()

	t.Run("clears the user association", func(t *testing.T) {
		t.Parallel()

		id := uuid.New()
		sess := &stubSession{userID: &id}

		auth.Logout(context.Background(), sess)

		assert.Nil(t, sess.userID)
	})

	t.Run("idempotent on repeated and empty logout", func(t *testing.T) {
		t.Parallel()

		sess := &stubSession{}
		auth.Logout(context.Background(), sess) // already logged out
		auth.Logout(context.Background(), sess) // and again

		assert.Nil(t, sess.userID)
		assert.Equal(t, 2, sess.clears)
	})

	t.Run("nil session is a no-op", func(t *testing.T) {
		t.Parallel()
		assert.NotPanics(t, func() { auth.Logout(context.Background(), nil) })
	})
}
