package authn

import "errors"

// Configuration errors, surfaced at process start.
var (
	ErrStrategyRegistered    = errors.New("strategy already registered")
	ErrStrategyNotRegistered = errors.New("strategy not registered")
	ErrMissingConfig         = errors.New("missing required strategy configuration")
)

// Request-level errors, user-correctable.
var (
	ErrValidation = errors.New("invalid or missing input")
	ErrConflict   = errors.New("email already registered")
)

// Login errors. ErrNotFound and ErrInvalidCredentials are distinct for callers
// that need to log the difference; user-facing surfaces must map both to the
// same message to avoid account enumeration.
var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnverified         = errors.New("email not verified")
)

// Provider and token errors.
var (
	ErrProvider     = errors.New("provider exchange failed")
	ErrInvalidState = errors.New("invalid or expired state")
	ErrInvalidToken = errors.New("invalid verification token")
)
