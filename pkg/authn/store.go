package authn

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore abstracts persistence for canonical users. Implementations must
// enforce a unique constraint on Email and return ErrConflict when it is
// violated; the linker relies on that to serialize concurrent first logins.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	SetEmailVerified(ctx context.Context, id uuid.UUID, at time.Time) error
}

// AccountStore abstracts persistence for provider accounts. Implementations
// must enforce a unique constraint on (Provider, ProviderAccountID) and return
// ErrConflict when it is violated. Lookup misses return ErrNotFound.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, provider Provider, providerAccountID string) (*Account, error)
	GetAccountByUser(ctx context.Context, userID uuid.UUID, provider Provider) (*Account, error)
	SetVerificationToken(ctx context.Context, accountID uuid.UUID, token string) error

	// ConsumeVerificationToken atomically clears the token and returns the
	// owning account. Under concurrent consumption of the same token exactly
	// one call succeeds; the rest get ErrNotFound.
	ConsumeVerificationToken(ctx context.Context, token string) (*Account, error)
}
