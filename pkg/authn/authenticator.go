package authn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// UserSession is the minimal contract the authenticator needs from the
// session layer: an opaque holder of an optional user association.
type UserSession interface {
	// ClearUserID drops the user association. Must be a no-op when no user
	// is set.
	ClearUserID()
}

// Authenticator dispatches authentication requests to registered strategies.
// The registry is populated once at startup and treated as immutable
// afterwards, so concurrent Authenticate calls need no locking.
type Authenticator struct {
	strategies map[StrategyName]Strategy
	logger     *slog.Logger
}

// AuthenticatorOption configures an Authenticator during construction.
type AuthenticatorOption func(*Authenticator)

// WithAuthLogger sets a custom logger for the authenticator.
func WithAuthLogger(l *slog.Logger) AuthenticatorOption {
	return func(a *Authenticator) {
		a.logger = l
	}
}

// New constructs an empty authenticator. Register every strategy before
// serving traffic; the registry is not safe for mutation after that.
func New(opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		strategies: make(map[StrategyName]Strategy),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register binds a strategy under its name. It fails if the name is taken or
// the strategy's required configuration is incomplete, so misconfiguration is
// caught at process start rather than at first use.
func (a *Authenticator) Register(s Strategy) error {
	if s == nil {
		return fmt.Errorf("%w: nil strategy", ErrMissingConfig)
	}
	if _, ok := a.strategies[s.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrStrategyRegistered, s.Name())
	}
	if err := s.Validate(); err != nil {
		return err
	}
	a.strategies[s.Name()] = s
	return nil
}

// Strategy returns the registered strategy for name, if any.
func (a *Authenticator) Strategy(name StrategyName) (Strategy, bool) {
	s, ok := a.strategies[name]
	return s, ok
}

// Authenticate looks up the named strategy and delegates verification. It
// never touches sessions; callers establish the session from the returned
// user. Failures come back as typed errors from the taxonomy in errors.go,
// never as raw store or network errors.
func (a *Authenticator) Authenticate(ctx context.Context, name StrategyName, req Request) (Outcome, error) {
	s, ok := a.strategies[name]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrStrategyNotRegistered, name)
	}

	outcome, err := s.Verify(ctx, req)
	if err != nil {
		a.logger.InfoContext(ctx, "authentication failed",
			slog.String("strategy", string(name)),
			slog.String("reason", failureKind(err)),
		)
		return Outcome{}, err
	}

	a.logger.InfoContext(ctx, "authentication succeeded",
		slog.String("strategy", string(name)),
		slog.String("status", string(outcome.Status)),
		slog.String("user_id", outcome.User.ID.String()),
	)
	return outcome, nil
}

// Logout clears the user association from the session. Idempotent: a nil
// session or one without a user is a no-op, never an error.
func (a *Authenticator) Logout(ctx context.Context, sess UserSession) {
	if sess == nil {
		return
	}
	sess.ClearUserID()
}

// failureKind maps an error to its taxonomy bucket for logging. User-facing
// surfaces do their own mapping; this is correlation context only.
func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUnverified):
		return "unverified"
	case errors.Is(err, ErrProvider):
		return "provider"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	default:
		return "internal"
	}
}
