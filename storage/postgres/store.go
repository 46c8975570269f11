// Package postgres implements the authentication stores on top of a pgx
// connection pool. The schema's unique constraints are the authoritative
// guard for the core's idempotent-linking semantics: violations surface as
// authn.ErrConflict, lookup misses as authn.ErrNotFound.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatekit/gatekit/pkg/authn"
	"github.com/gatekit/gatekit/pkg/pg"
)

// Store implements authn.UserStore and authn.AccountStore.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const insertUser = `
INSERT INTO users (id, email, name, email_verified_at, created_at)
VALUES ($1, $2, $3, $4, $5)`

func (s *Store) CreateUser(ctx context.Context, user *authn.User) error {
	_, err := s.pool.Exec(ctx, insertUser,
		user.ID, user.Email, user.Name, user.EmailVerifiedAt, user.CreatedAt)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return authn.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

const selectUser = `
SELECT id, email, name, email_verified_at, created_at
FROM users `

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*authn.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, selectUser+`WHERE id = $1`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*authn.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, selectUser+`WHERE email = $1`, email))
}

func (s *Store) SetEmailVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET email_verified_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("set email verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authn.ErrNotFound
	}
	return nil
}

const insertAccount = `
INSERT INTO accounts (id, user_id, provider, provider_account_id, password_hash, verification_token, created_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`

func (s *Store) CreateAccount(ctx context.Context, account *authn.Account) error {
	_, err := s.pool.Exec(ctx, insertAccount,
		account.ID, account.UserID, account.Provider, account.ProviderAccountID,
		account.PasswordHash, account.VerificationToken, account.CreatedAt)
	if err != nil {
		if pg.IsUniqueViolation(err) {
			return authn.ErrConflict
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

const selectAccount = `
SELECT id, user_id, provider, provider_account_id, password_hash, COALESCE(verification_token, ''), created_at
FROM accounts `

func (s *Store) GetAccount(ctx context.Context, provider authn.Provider, providerAccountID string) (*authn.Account, error) {
	return s.scanAccount(s.pool.QueryRow(ctx,
		selectAccount+`WHERE provider = $1 AND provider_account_id = $2`,
		provider, providerAccountID))
}

func (s *Store) GetAccountByUser(ctx context.Context, userID uuid.UUID, provider authn.Provider) (*authn.Account, error) {
	return s.scanAccount(s.pool.QueryRow(ctx,
		selectAccount+`WHERE user_id = $1 AND provider = $2`,
		userID, provider))
}

func (s *Store) SetVerificationToken(ctx context.Context, accountID uuid.UUID, token string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET verification_token = $2 WHERE id = $1`, accountID, token)
	if err != nil {
		return fmt.Errorf("set verification token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authn.ErrNotFound
	}
	return nil
}

// ConsumeVerificationToken clears the token and returns the owning account in
// one statement. The WHERE clause makes double consumption race-free: only
// one concurrent UPDATE matches the row, everyone else sees zero rows.
func (s *Store) ConsumeVerificationToken(ctx context.Context, token string) (*authn.Account, error) {
	return s.scanAccount(s.pool.QueryRow(ctx, `
UPDATE accounts SET verification_token = NULL
WHERE verification_token = $1
RETURNING id, user_id, provider, provider_account_id, password_hash, ''::text, created_at`,
		token))
}

type row interface {
	Scan(dest ...any) error
}

func (s *Store) scanUser(r row) (*authn.User, error) {
	var u authn.User
	err := r.Scan(&u.ID, &u.Email, &u.Name, &u.EmailVerifiedAt, &u.CreatedAt)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, authn.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (s *Store) scanAccount(r row) (*authn.Account, error) {
	var a authn.Account
	err := r.Scan(&a.ID, &a.UserID, &a.Provider, &a.ProviderAccountID,
		&a.PasswordHash, &a.VerificationToken, &a.CreatedAt)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, authn.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}

var (
	_ authn.UserStore    = (*Store)(nil)
	_ authn.AccountStore = (*Store)(nil)
)
