// Package memory implements the authentication stores in process memory with
// the same uniqueness semantics as the Postgres schema, so the core's
// conflict-retry paths behave identically in tests and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatekit/gatekit/pkg/authn"
)

type accountKey struct {
	provider          authn.Provider
	providerAccountID string
}

// Store implements authn.UserStore and authn.AccountStore.
type Store struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]*authn.User
	usersByEmail  map[string]uuid.UUID
	accounts      map[uuid.UUID]*authn.Account
	accountKeys   map[accountKey]uuid.UUID
	userProviders map[uuid.UUID]map[authn.Provider]uuid.UUID
	tokens        map[string]uuid.UUID
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:         make(map[uuid.UUID]*authn.User),
		usersByEmail:  make(map[string]uuid.UUID),
		accounts:      make(map[uuid.UUID]*authn.Account),
		accountKeys:   make(map[accountKey]uuid.UUID),
		userProviders: make(map[uuid.UUID]map[authn.Provider]uuid.UUID),
		tokens:        make(map[string]uuid.UUID),
	}
}

func (s *Store) CreateUser(ctx context.Context, user *authn.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[user.Email]; exists {
		return authn.ErrConflict
	}

	cp := *user
	s.users[user.ID] = &cp
	s.usersByEmail[user.Email] = user.ID
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*authn.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, authn.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*authn.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, authn.ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *Store) SetEmailVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return authn.ErrNotFound
	}
	t := at
	user.EmailVerifiedAt = &t
	return nil
}

func (s *Store) CreateAccount(ctx context.Context, account *authn.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := accountKey{account.Provider, account.ProviderAccountID}
	if _, exists := s.accountKeys[key]; exists {
		return authn.ErrConflict
	}
	if providers, ok := s.userProviders[account.UserID]; ok {
		if _, exists := providers[account.Provider]; exists {
			return authn.ErrConflict
		}
	}

	cp := *account
	s.accounts[account.ID] = &cp
	s.accountKeys[key] = account.ID
	if s.userProviders[account.UserID] == nil {
		s.userProviders[account.UserID] = make(map[authn.Provider]uuid.UUID)
	}
	s.userProviders[account.UserID][account.Provider] = account.ID
	if account.VerificationToken != "" {
		s.tokens[account.VerificationToken] = account.ID
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, provider authn.Provider, providerAccountID string) (*authn.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.accountKeys[accountKey{provider, providerAccountID}]
	if !ok {
		return nil, authn.ErrNotFound
	}
	cp := *s.accounts[id]
	return &cp, nil
}

func (s *Store) GetAccountByUser(ctx context.Context, userID uuid.UUID, provider authn.Provider) (*authn.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userProviders[userID][provider]
	if !ok {
		return nil, authn.ErrNotFound
	}
	cp := *s.accounts[id]
	return &cp, nil
}

func (s *Store) SetVerificationToken(ctx context.Context, accountID uuid.UUID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return authn.ErrNotFound
	}
	if account.VerificationToken != "" {
		delete(s.tokens, account.VerificationToken)
	}
	account.VerificationToken = token
	s.tokens[token] = accountID
	return nil
}

// ConsumeVerificationToken clears the token under the write lock, so exactly
// one concurrent consumer of the same token wins.
func (s *Store) ConsumeVerificationToken(ctx context.Context, token string) (*authn.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.tokens[token]
	if !ok {
		return nil, authn.ErrNotFound
	}
	delete(s.tokens, token)

	account := s.accounts[id]
	account.VerificationToken = ""
	cp := *account
	return &cp, nil
}

var (
	_ authn.UserStore    = (*Store)(nil)
	_ authn.AccountStore = (*Store)(nil)
)
