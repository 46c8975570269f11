package authn

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies an authentication method bound to an account.
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderGoogle Provider = "google"
	ProviderEmail  Provider = "email"
)

// User is the canonical identity. A user may own several accounts, one per
// provider plus at most one email credential account.
type User struct {
	ID              uuid.UUID
	Email           string
	Name            string
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
}

// Verified reports whether the user has proven control of their email address.
func (u *User) Verified() bool {
	return u != nil && u.EmailVerifiedAt != nil
}

// Account binds one authentication method to a user. The pair
// (Provider, ProviderAccountID) is globally unique; it is the linking key that
// keeps repeated logins from forking identity.
type Account struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Provider          Provider
	ProviderAccountID string
	PasswordHash      []byte // email provider only
	VerificationToken string // empty once consumed
	CreatedAt         time.Time
}

// ProviderProfile is the provider-agnostic shape produced from a raw OAuth
// profile after code exchange.
type ProviderProfile struct {
	Provider          Provider
	ProviderAccountID string
	Email             string
	DisplayName       string
}

// FormAction selects the form strategy branch.
type FormAction string

const (
	FormActionLogin  FormAction = "login"
	FormActionSignup FormAction = "signup"
)

// FormSubmission is the normalized credential produced by the form strategy.
type FormSubmission struct {
	Action   FormAction
	Email    string
	Password string
}

// OutcomeStatus distinguishes a fully authenticated resolution from a signup
// that is waiting on email verification.
type OutcomeStatus string

const (
	StatusAuthenticated       OutcomeStatus = "authenticated"
	StatusPendingVerification OutcomeStatus = "pending_verification"
)

// Outcome is the result of a successful strategy verification. Failures are
// reported through the error return, never encoded here.
type Outcome struct {
	Status OutcomeStatus
	User   *User
}

// Authenticated wraps a fully resolved user.
func Authenticated(u *User) Outcome {
	return Outcome{Status: StatusAuthenticated, User: u}
}

// PendingVerification wraps a user whose signup succeeded but who must consume
// a verification token before logging in. Callers should render a
// "check your email" state rather than treating this as a failure.
func PendingVerification(u *User) Outcome {
	return Outcome{Status: StatusPendingVerification, User: u}
}

// Request carries the inbound proof handed to a strategy. OAuth strategies
// read Code and State; the form strategy reads Action, Email and Password.
type Request struct {
	Code  string
	State string

	Action   FormAction
	Email    string
	Password string
}
