package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatekit/gatekit/pkg/authn"
	"github.com/gatekit/gatekit/pkg/mailer"
	"github.com/gatekit/gatekit/storage/memory"
)

// captureMailer records sent messages so tests can pull the verification
// token out of the email body flow without a real sender.
type captureMailer struct {
	mu       sync.Mutex
	messages []mailer.Message
}

func (c *captureMailer) Send(ctx context.Context, msg mailer.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

func (c *captureMailer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func newTestStack(t *testing.T) (*memory.Store, *authn.AccountLinker, *authn.VerificationTokenService, *captureMailer) {
	t.Helper()

	store := memory.NewStore()
	sender := &captureMailer{}
	verifier := authn.NewVerificationTokenService(store, store, sender, "https://auth.test")
	linker := authn.NewAccountLinker(store, store, authn.NewBcryptHasher(bcrypt.MinCost), verifier)
	return store, linker, verifier, sender
}

func githubProfile(email string) authn.ProviderProfile {
	return authn.ProviderProfile{
		Provider:          authn.ProviderGitHub,
		ProviderAccountID: "gh-" + email,
		Email:             email,
		DisplayName:       "GH User",
	}
}

func TestIdentityResolution(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("same email across providers resolves to one user", func(t *testing.T) {
		t.Parallel()

		store, linker, _, _ := newTestStack(t)

		first, err := linker.ResolveOAuth(ctx, githubProfile("one@example.com"))
		require.NoError(t, err)

		second, err := linker.ResolveOAuth(ctx, authn.ProviderProfile{
			Provider:          authn.ProviderGoogle,
			ProviderAccountID: "g-111",
			Email:             "one@example.com",
			DisplayName:       "G User",
		})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)

		gh, err := store.GetAccountByUser(ctx, first.ID, authn.ProviderGitHub)
		require.NoError(t, err)
		gg, err := store.GetAccountByUser(ctx, first.ID, authn.ProviderGoogle)
		require.NoError(t, err)
		assert.Equal(t, gh.UserID, gg.UserID)
	})

	t.Run("repeat logins do not fork identity", func(t *testing.T) {
		t.Parallel()

		_, linker, _, _ := newTestStack(t)

		first, err := linker.ResolveOAuth(ctx, githubProfile("repeat@example.com"))
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			again, err := linker.ResolveOAuth(ctx, githubProfile("repeat@example.com"))
			require.NoError(t, err)
			assert.Equal(t, first.ID, again.ID)
		}
	})

	t.Run("concurrent first logins converge on one user", func(t *testing.T) {
		t.Parallel()

		store, linker, _, _ := newTestStack(t)
		profile := githubProfile("race@example.com")

		const workers = 16
		results := make([]*authn.User, workers)
		errs := make([]error, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = linker.ResolveOAuth(ctx, profile)
			}()
		}
		wg.Wait()

		for i := 0; i < workers; i++ {
			require.NoError(t, errs[i])
			require.NotNil(t, results[i])
			assert.Equal(t, results[0].ID, results[i].ID)
		}

		user, err := store.GetUserByEmail(ctx, "race@example.com")
		require.NoError(t, err)
		assert.Equal(t, results[0].ID, user.ID)
	})
}

func TestSignupVerifyLogin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("full signup flow", func(t *testing.T) {
		t.Parallel()

		store, linker, verifier, sender := newTestStack(t)
		sub := authn.FormSubmission{Action: authn.FormActionSignup, Email: "new@example.com", Password: "hunter22"}

		outcome, err := linker.ResolveForm(ctx, sub)
		require.NoError(t, err)
		require.Equal(t, authn.StatusPendingVerification, outcome.Status)
		assert.Equal(t, 1, sender.count())

		// Login is blocked until the token is consumed.
		_, err = linker.ResolveForm(ctx, authn.FormSubmission{Action: authn.FormActionLogin, Email: "new@example.com", Password: "hunter22"})
		assert.ErrorIs(t, err, authn.ErrUnverified)

		account, err := store.GetAccountByUser(ctx, outcome.User.ID, authn.ProviderEmail)
		require.NoError(t, err)
		require.NotEmpty(t, account.VerificationToken)

		verified, err := verifier.Consume(ctx, account.VerificationToken)
		require.NoError(t, err)
		assert.Equal(t, outcome.User.ID, verified.ID)
		assert.True(t, verified.Verified())

		final, err := linker.ResolveForm(ctx, authn.FormSubmission{Action: authn.FormActionLogin, Email: "new@example.com", Password: "hunter22"})
		require.NoError(t, err)
		assert.Equal(t, authn.StatusAuthenticated, final.Status)
		assert.Equal(t, outcome.User.ID, final.User.ID)
	})

	t.Run("wrong password after verification", func(t *testing.T) {
		t.Parallel()

		store, linker, verifier, _ := newTestStack(t)
		outcome, err := linker.ResolveForm(ctx, authn.FormSubmission{Action: authn.FormActionSignup, Email: "pw@example.com", Password: "correct"})
		require.NoError(t, err)

		account, err := store.GetAccountByUser(ctx, outcome.User.ID, authn.ProviderEmail)
		require.NoError(t, err)
		_, err = verifier.Consume(ctx, account.VerificationToken)
		require.NoError(t, err)

		_, err = linker.ResolveForm(ctx, authn.FormSubmission{Action: authn.FormActionLogin, Email: "pw@example.com", Password: "wrong"})
		assert.ErrorIs(t, err, authn.ErrInvalidCredentials)
	})

	t.Run("duplicate signup conflicts", func(t *testing.T) {
		t.Parallel()

		_, linker, _, _ := newTestStack(t)
		sub := authn.FormSubmission{Action: authn.FormActionSignup, Email: "dup@example.com", Password: "secret11"}

		_, err := linker.ResolveForm(ctx, sub)
		require.NoError(t, err)

		_, err = linker.ResolveForm(ctx, sub)
		assert.ErrorIs(t, err, authn.ErrConflict)
	})
}

func TestVerificationTokenSingleUse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("second consume fails", func(t *testing.T) {
		t.Parallel()

		store, linker, verifier, _ := newTestStack(t)
		outcome, err := linker.ResolveForm(ctx, authn.FormSubmission{Action: authn.FormActionSignup, Email: "once@example.com", Password: "secret11"})
		require.NoError(t, err)

		account, err := store.GetAccountByUser(ctx, outcome.User.ID, authn.ProviderEmail)
		require.NoError(t, err)
		tok := account.VerificationToken

		_, err = verifier.Consume(ctx, tok)
		require.NoError(t, err)
		_, err = verifier.Consume(ctx, tok)
		assert.ErrorIs(t, err, authn.ErrInvalidToken)
	})

	t.Run("concurrent consumers have exactly one winner", func(t *testing.T) {
		t.Parallel()

		store, linker, verifier, _ := newTestStack(t)
		outcome, err := linker.ResolveForm(ctx, authn.FormSubmission{Action: authn.FormActionSignup, Email: "winner@example.com", Password: "secret11"})
		require.NoError(t, err)

		account, err := store.GetAccountByUser(ctx, outcome.User.ID, authn.ProviderEmail)
		require.NoError(t, err)
		tok := account.VerificationToken

		const workers = 16
		errs := make([]error, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = verifier.Consume(ctx, tok)
			}()
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, authn.ErrInvalidToken)
			}
		}
		assert.Equal(t, 1, wins)
	})
}

func TestStoreUniqueness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("concurrent user creation yields one row", func(t *testing.T) {
		t.Parallel()

		store := memory.NewStore()

		const workers = 16
		errs := make([]error, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[i] = store.CreateUser(ctx, &authn.User{
					ID:        uuid.New(),
					Email:     "unique@example.com",
					CreatedAt: time.Now(),
				})
			}()
		}
		wg.Wait()

		created := 0
		for _, err := range errs {
			if err == nil {
				created++
			} else {
				assert.True(t, errors.Is(err, authn.ErrConflict))
			}
		}
		assert.Equal(t, 1, created)
	})

	t.Run("provider account key is unique", func(t *testing.T) {
		t.Parallel()

		store := memory.NewStore()
		user := &authn.User{ID: uuid.New(), Email: "acct@example.com", CreatedAt: time.Now()}
		require.NoError(t, store.CreateUser(ctx, user))

		first := &authn.Account{ID: uuid.New(), UserID: user.ID, Provider: authn.ProviderGitHub, ProviderAccountID: "gh-1"}
		require.NoError(t, store.CreateAccount(ctx, first))

		dup := &authn.Account{ID: uuid.New(), UserID: uuid.New(), Provider: authn.ProviderGitHub, ProviderAccountID: "gh-1"}
		assert.ErrorIs(t, store.CreateAccount(ctx, dup), authn.ErrConflict)
	})

	t.Run("one account per provider per user", func(t *testing.T) {
		t.Parallel()

		store := memory.NewStore()
		user := &authn.User{ID: uuid.New(), Email: "per@example.com", CreatedAt: time.Now()}
		require.NoError(t, store.CreateUser(ctx, user))

		require.NoError(t, store.CreateAccount(ctx, &authn.Account{
			ID: uuid.New(), UserID: user.ID, Provider: authn.ProviderEmail, ProviderAccountID: "per@example.com",
		}))
		err := store.CreateAccount(ctx, &authn.Account{
			ID: uuid.New(), UserID: user.ID, Provider: authn.ProviderEmail, ProviderAccountID: "other@example.com",
		})
		assert.ErrorIs(t, err, authn.ErrConflict)
	})
}
