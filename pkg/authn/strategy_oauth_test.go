package authn

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func validOAuthConfig() OAuthConfig {
	return OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "https://app.test/auth/github/callback",
		StateSecret:  "state-secret",
		StateTTL:     10 * time.Minute,
	}
}

func TestOAuthStrategy_Validate(t *testing.T) {
	t.Parallel()

	linker := newTestLinker(&MockUserStore{}, &MockAccountStore{}, &MockMailer{})

	tests := []struct {
		name   string
		mutate func(*OAuthConfig)
	}{
		{"missing client id", func(c *OAuthConfig) { c.ClientID = "" }},
		{"missing client secret", func(c *OAuthConfig) { c.ClientSecret = "" }},
		{"missing redirect url", func(c *OAuthConfig) { c.RedirectURL = "" }},
		{"missing state secret", func(c *OAuthConfig) { c.StateSecret = "" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validOAuthConfig()
			tt.mutate(&cfg)
			strategy := NewOAuthStrategy(StrategyGitHub, cfg, &MockProviderClient{}, linker)
			assert.ErrorIs(t, strategy.Validate(), ErrMissingConfig)
		})
	}

	t.Run("complete config passes", func(t *testing.T) {
		t.Parallel()
		strategy := NewOAuthStrategy(StrategyGitHub, validOAuthConfig(), &MockProviderClient{}, linker)
		assert.NoError(t, strategy.Validate())
	})

	t.Run("missing provider client", func(t *testing.T) {
		t.Parallel()
		strategy := NewOAuthStrategy(StrategyGitHub, validOAuthConfig(), nil, linker)
		assert.ErrorIs(t, strategy.Validate(), ErrMissingConfig)
	})
}

func TestOAuthStrategy_AuthURL(t *testing.T) {
	t.Parallel()

	client := &MockProviderClient{}
	strategy := NewOAuthStrategy(StrategyGitHub, validOAuthConfig(), client, nil)

	var captured string
	client.On("AuthURL", mock.AnythingOfType("string")).Run(func(args mock.Arguments) {
		captured = args.String(0)
	}).Return("https://github.com/login/oauth/authorize?state=x", nil)

	url, err := strategy.AuthURL()

	require.NoError(t, err)
	assert.NotEmpty(t, url)
	// State must be a signed two-segment token the callback can verify.
	assert.Len(t, strings.Split(captured, "."), 2)
	require.NoError(t, strategy.checkState(captured))
}

func TestOAuthStrategy_Verify(t *testing.T) {
	t.Parallel()

	profile := ProviderProfile{
		Provider:          ProviderGitHub,
		ProviderAccountID: "42",
		Email:             "dev@example.com",
	}

	freshState := func(t *testing.T, s *OAuthStrategy) string {
		t.Helper()
		client := s.client.(*MockProviderClient)
		var captured string
		client.On("AuthURL", mock.AnythingOfType("string")).Run(func(args mock.Arguments) {
			captured = args.String(0)
		}).Return("ignored", nil).Once()
		_, err := s.AuthURL()
		require.NoError(t, err)
		return captured
	}

	t.Run("missing code", func(t *testing.T) {
		t.Parallel()
		strategy := NewOAuthStrategy(StrategyGitHub, validOAuthConfig(), &MockProviderClient{}, nil)
		_, err := strategy.Verify(context.Background(), Request{State: "whatever"})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing state", func(t *testing.T) {
		t.Parallel()
		strategy := NewOAuthStrategy(StrategyGitHub, validOAuthConfig(), &MockProviderClient{}, nil)
		_, err := strategy.Verify(context.Background(), Request{Code: "abc"})
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("tampered state", func(t *testing.T) {
		t.Parallel()
		strategy := NewOAuthStrategy(StrategyGitHub, validOAuthConfig(), &MockProviderClient{}, nil)
		state := freshState(t, strategy)
		_, err := strategy.Verify(context.Background(), Request{Code: "abc", State: state + "x"})
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("expired state", func(t *testing.T) {
		t.Parallel()

		cfg := validOAuthConfig()
		cfg.StateTTL = -time.Minute
		strategy := NewOAuthStrategy(StrategyGitHub, cfg, &MockProviderClient{}, nil)
		// The constructor clamps non-positive TTLs, so force it after.
		strategy.config.StateTTL = -time.Minute

		state := freshState(t, strategy)
		_, err := strategy.Verify(context.Background(), Request{Code: "abc", State: state})
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("exchange failure maps to provider error", func(t *testing.T) {
		t.Parallel()

		client := &MockProviderClient{}
		strategy := NewOAuthStrategy(StrategyGitHub, validOAuthConfig(), client, nil)
		state := freshState(t, strategy)

		client.On("Exchange", mock.Anything, "bad-code").
			Return(ProviderProfile{}, errors.New("502 from provider")).Once()

		_, err := strategy.Verify(context.Background(), Request{Code: "bad-code", State: state})

		assert.ErrorIs(t, err, ErrProvider)
		// Provider detail must not leak into the returned error.
		assert.NotContains(t, err.Error(), "502")
	})

	t.Run("incomplete profile rejected", func(t *testing.T) {
		t.Parallel()

		client := &MockProviderClient{}
		strategy := NewOAuthStrategy(StrategyGitHub, validOAuthConfig(), client, nil)
		state := freshState(t, strategy)

		client.On("Exchange", mock.Anything, "code").
			Return(ProviderProfile{Provider: ProviderGitHub, Email: "x@y.co"}, nil).Once()

		_, err := strategy.Verify(context.Background(), Request{Code: "code", State: state})
		assert.ErrorIs(t, err, ErrProvider)
	})

	t.Run("successful callback resolves user", func(t *testing.T) {
		t.Parallel()

		users := &MockUserStore{}
		accounts := &MockAccountStore{}
		client := &MockProviderClient{}
		strategy := NewOAuthStrategy(StrategyGitHub, validOAuthConfig(), client,
			newTestLinker(users, accounts, &MockMailer{}))
		state := freshState(t, strategy)

		existing := &User{ID: uuid.New(), Email: "dev@example.com"}
		client.On("Exchange", mock.Anything, "good-code").Return(profile, nil).Once()
		users.On("GetUserByEmail", mock.Anything, "dev@example.com").Return(existing, nil).Once()
		accounts.On("GetAccount", mock.Anything, ProviderGitHub, "42").
			Return(&Account{UserID: existing.ID}, nil).Once()

		outcome, err := strategy.Verify(context.Background(), Request{Code: "good-code", State: state})

		require.NoError(t, err)
		assert.Equal(t, StatusAuthenticated, outcome.Status)
		assert.Equal(t, existing.ID, outcome.User.ID)
	})
}
