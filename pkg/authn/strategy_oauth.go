package authn

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gatekit/gatekit/pkg/token"
)

// ProviderClient exchanges an authorization code for a normalized profile.
// It is the only coupling to a provider's wire protocol.
type ProviderClient interface {
	// AuthURL builds the provider authorization URL carrying the state token.
	AuthURL(state string) string

	// Exchange trades the callback code for a normalized profile. Exchange
	// failures are propagated, not retried; retries are a caller concern.
	Exchange(ctx context.Context, code string) (ProviderProfile, error)
}

// OAuthConfig is the per-provider registration config. All three values are
// mandatory; Validate runs at strategy registration so a missing credential
// stops the process at startup.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	StateSecret  string
	StateTTL     time.Duration
}

// Validate checks that every required field is present.
func (c OAuthConfig) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: client id", ErrMissingConfig)
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("%w: client secret", ErrMissingConfig)
	}
	if c.RedirectURL == "" {
		return fmt.Errorf("%w: redirect url", ErrMissingConfig)
	}
	if c.StateSecret == "" {
		return fmt.Errorf("%w: state secret", ErrMissingConfig)
	}
	return nil
}

type statePayload struct {
	Nonce    string `json:"n"`
	ExpireAt int64  `json:"exp"`
}

// OAuthStrategy drives the authorization-code flow for one provider:
// AuthURL issues the redirect, Verify handles the callback. The state
// parameter is a signed, self-expiring token, so no server-side state is kept
// between the two steps.
type OAuthStrategy struct {
	name   StrategyName
	config OAuthConfig
	client ProviderClient
	linker *AccountLinker
	logger *slog.Logger
}

// OAuthStrategyOption configures an OAuthStrategy during construction.
type OAuthStrategyOption func(*OAuthStrategy)

// WithOAuthLogger sets a custom logger for the strategy.
func WithOAuthLogger(l *slog.Logger) OAuthStrategyOption {
	return func(s *OAuthStrategy) {
		s.logger = l
	}
}

// NewOAuthStrategy constructs an OAuth strategy for the given provider name.
func NewOAuthStrategy(name StrategyName, cfg OAuthConfig, client ProviderClient, linker *AccountLinker, opts ...OAuthStrategyOption) *OAuthStrategy {
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = 10 * time.Minute
	}
	s := &OAuthStrategy{
		name:   name,
		config: cfg,
		client: client,
		linker: linker,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *OAuthStrategy) Name() StrategyName { return s.name }

func (s *OAuthStrategy) Validate() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	if s.client == nil {
		return fmt.Errorf("%w: %s: provider client", ErrMissingConfig, s.name)
	}
	if s.linker == nil {
		return fmt.Errorf("%w: %s: account linker", ErrMissingConfig, s.name)
	}
	return nil
}

// AuthURL issues a fresh signed state and returns the provider authorization
// URL to redirect the user to.
func (s *OAuthStrategy) AuthURL() (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}

	state, err := token.Sign(statePayload{
		Nonce:    base64.RawURLEncoding.EncodeToString(nonce),
		ExpireAt: time.Now().Add(s.config.StateTTL).Unix(),
	}, s.config.StateSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}

	return s.client.AuthURL(state), nil
}

// Verify handles the provider callback: it checks the state, exchanges the
// code for a profile, and hands the profile to the account linker.
func (s *OAuthStrategy) Verify(ctx context.Context, req Request) (Outcome, error) {
	if req.Code == "" {
		return Outcome{}, fmt.Errorf("%w: missing authorization code", ErrValidation)
	}
	if err := s.checkState(req.State); err != nil {
		return Outcome{}, err
	}

	profile, err := s.client.Exchange(ctx, req.Code)
	if err != nil {
		// Provider detail is logged, never returned: the caller shows a
		// generic message.
		s.logger.ErrorContext(ctx, "oauth exchange failed",
			slog.String("provider", string(s.name)),
			slog.Any("error", err),
		)
		return Outcome{}, ErrProvider
	}

	if profile.ProviderAccountID == "" || profile.Email == "" {
		return Outcome{}, fmt.Errorf("%w: incomplete provider profile", ErrProvider)
	}

	user, err := s.linker.ResolveOAuth(ctx, profile)
	if err != nil {
		return Outcome{}, err
	}
	return Authenticated(user), nil
}

func (s *OAuthStrategy) checkState(state string) error {
	if state == "" {
		return fmt.Errorf("%w: missing state", ErrInvalidState)
	}
	payload, err := token.Verify[statePayload](state, s.config.StateSecret)
	if err != nil {
		if errors.Is(err, token.ErrSignature) || errors.Is(err, token.ErrMalformed) {
			return ErrInvalidState
		}
		return fmt.Errorf("failed to verify state: %w", err)
	}
	if time.Now().Unix() > payload.ExpireAt {
		return fmt.Errorf("%w: state expired", ErrInvalidState)
	}
	return nil
}

var _ Strategy = (*OAuthStrategy)(nil)
