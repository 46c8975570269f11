package authn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gatekit/gatekit/pkg/sanitize"
)

// AccountLinker resolves normalized credentials to a canonical user, creating
// or linking accounts as needed. It is the invariant-enforcement point of the
// system: the same email resolves to one user regardless of login path, and
// repeated resolutions never create duplicate rows.
//
// The linker holds no locks. Concurrent first logins race on
// lookup-then-create; the store's unique constraints are the authoritative
// guard, and the linker recovers from a losing create by re-reading the row
// the winner wrote.
type AccountLinker struct {
	users    UserStore
	accounts AccountStore
	hasher   PasswordHasher
	verifier *VerificationTokenService
	logger   *slog.Logger
}

// LinkerOption configures an AccountLinker during construction.
type LinkerOption func(*AccountLinker)

// WithLinkerLogger sets a custom logger for the linker.
func WithLinkerLogger(l *slog.Logger) LinkerOption {
	return func(al *AccountLinker) {
		al.logger = l
	}
}

// NewAccountLinker constructs an account linker. The verifier issues and sends
// verification tokens for email signups; it may be nil only if the form
// strategy is never registered.
func NewAccountLinker(users UserStore, accounts AccountStore, hasher PasswordHasher, verifier *VerificationTokenService, opts ...LinkerOption) *AccountLinker {
	al := &AccountLinker{
		users:    users,
		accounts: accounts,
		hasher:   hasher,
		verifier: verifier,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(al)
	}
	return al
}

// ResolveOAuth resolves a provider profile to a user, creating the user and
// the provider account on first login. Idempotent: a repeat login by the same
// provider identity is a pair of lookups, and a different provider reporting
// the same email links to the existing user instead of forking identity.
func (al *AccountLinker) ResolveOAuth(ctx context.Context, profile ProviderProfile) (*User, error) {
	email := sanitize.NormalizeEmail(profile.Email)

	user, err := al.resolveUser(ctx, email, profile.DisplayName)
	if err != nil {
		return nil, err
	}

	if _, err := al.accounts.GetAccount(ctx, profile.Provider, profile.ProviderAccountID); err == nil {
		return user, nil // already linked
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to check provider account: %w", err)
	}

	account := &Account{
		ID:                uuid.New(),
		UserID:            user.ID,
		Provider:          profile.Provider,
		ProviderAccountID: profile.ProviderAccountID,
		CreatedAt:         time.Now(),
	}
	if err := al.accounts.CreateAccount(ctx, account); err != nil {
		// A concurrent login linked the same provider identity first; the
		// outcome the caller wanted already exists.
		if errors.Is(err, ErrConflict) {
			return user, nil
		}
		return nil, fmt.Errorf("failed to link provider account: %w", err)
	}

	al.logger.InfoContext(ctx, "linked provider account",
		slog.String("provider", string(profile.Provider)),
		slog.String("user_id", user.ID.String()),
	)
	return user, nil
}

// ResolveForm implements the signup and login branches for email credentials.
func (al *AccountLinker) ResolveForm(ctx context.Context, sub FormSubmission) (Outcome, error) {
	email := sanitize.NormalizeEmail(sub.Email)

	switch sub.Action {
	case FormActionSignup:
		return al.signup(ctx, email, sub.Password)
	case FormActionLogin:
		return al.login(ctx, email, sub.Password)
	default:
		return Outcome{}, fmt.Errorf("%w: unknown action %q", ErrValidation, sub.Action)
	}
}

func (al *AccountLinker) signup(ctx context.Context, email, password string) (Outcome, error) {
	user, err := al.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		// Existing user: signing up again is a conflict only if an email
		// credential already exists. An OAuth-only user may add one.
		if _, err := al.accounts.GetAccountByUser(ctx, user.ID, ProviderEmail); err == nil {
			return Outcome{}, ErrConflict
		} else if !errors.Is(err, ErrNotFound) {
			return Outcome{}, fmt.Errorf("failed to check email account: %w", err)
		}
	case errors.Is(err, ErrNotFound):
		user, err = al.createUser(ctx, email, "")
		if err != nil {
			return Outcome{}, err
		}
	default:
		return Outcome{}, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := al.hasher.Hash(password)
	if err != nil {
		return Outcome{}, err
	}

	account := &Account{
		ID:                uuid.New(),
		UserID:            user.ID,
		Provider:          ProviderEmail,
		ProviderAccountID: email,
		PasswordHash:      hash,
		CreatedAt:         time.Now(),
	}
	if err := al.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, ErrConflict) {
			return Outcome{}, ErrConflict
		}
		return Outcome{}, fmt.Errorf("failed to create email account: %w", err)
	}

	tok, err := al.verifier.Issue(ctx, account.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to issue verification token: %w", err)
	}
	al.verifier.Send(ctx, email, tok)

	return PendingVerification(user), nil
}

func (al *AccountLinker) login(ctx context.Context, email, password string) (Outcome, error) {
	user, err := al.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Outcome{}, ErrNotFound
		}
		return Outcome{}, fmt.Errorf("failed to look up user: %w", err)
	}

	account, err := al.accounts.GetAccountByUser(ctx, user.ID, ProviderEmail)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Outcome{}, ErrNotFound
		}
		return Outcome{}, fmt.Errorf("failed to look up email account: %w", err)
	}

	if !user.Verified() {
		return Outcome{}, ErrUnverified
	}

	if !al.hasher.Verify(password, account.PasswordHash) {
		return Outcome{}, ErrInvalidCredentials
	}

	return Authenticated(user), nil
}

// resolveUser returns the user owning email, creating one if absent. A create
// that loses the unique-email race is retried as a lookup so the conflict is
// never surfaced to the caller.
func (al *AccountLinker) resolveUser(ctx context.Context, email, name string) (*User, error) {
	user, err := al.users.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return al.createUser(ctx, email, name)
}

func (al *AccountLinker) createUser(ctx context.Context, email, name string) (*User, error) {
	user := &User{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := al.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			// Lost the race; read the row the concurrent creation wrote.
			existing, lookupErr := al.users.GetUserByEmail(ctx, email)
			if lookupErr != nil {
				return nil, fmt.Errorf("failed to read user after conflict: %w", lookupErr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}
