package authn

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gatekit/gatekit/pkg/mailer"
)

// VerificationTokenService issues, sends and consumes single-use email
// verification tokens. A token is an unguessable capability stored on the
// owning email account; consuming it marks the user's email verified and
// clears the field so replay fails.
//
// Tokens carry no expiry. They stay valid until consumed or reissued.
type VerificationTokenService struct {
	users    UserStore
	accounts AccountStore
	sender   mailer.Mailer
	baseURL  string
	logger   *slog.Logger
}

// VerificationOption configures a VerificationTokenService.
type VerificationOption func(*VerificationTokenService)

// WithVerificationLogger sets a custom logger for the service.
func WithVerificationLogger(l *slog.Logger) VerificationOption {
	return func(s *VerificationTokenService) {
		s.logger = l
	}
}

// NewVerificationTokenService constructs the token service. baseURL is the
// externally reachable origin used to build verification links, e.g.
// "https://app.example.com".
func NewVerificationTokenService(users UserStore, accounts AccountStore, sender mailer.Mailer, baseURL string, opts ...VerificationOption) *VerificationTokenService {
	s := &VerificationTokenService{
		users:    users,
		accounts: accounts,
		sender:   sender,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue generates a cryptographically random token and stores it on the
// account, replacing any previous one.
func (s *VerificationTokenService) Issue(ctx context.Context, accountID uuid.UUID) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate verification token: %w", err)
	}
	tok := base64.RawURLEncoding.EncodeToString(buf)

	if err := s.accounts.SetVerificationToken(ctx, accountID, tok); err != nil {
		return "", fmt.Errorf("failed to store verification token: %w", err)
	}
	return tok, nil
}

// Send delivers the verification link to the given address. Delivery is
// best-effort: a send failure is logged and swallowed so signup still
// succeeds, and the token can be reissued later.
func (s *VerificationTokenService) Send(ctx context.Context, email, tok string) {
	msg := mailer.Message{
		To:      email,
		Subject: "Verify your email address",
		BodyHTML: fmt.Sprintf(
			`<p>Confirm your email address by opening the link below.</p><p><a href="%s">%s</a></p>`,
			s.VerificationURL(tok), s.VerificationURL(tok),
		),
		Tag: "email-verification",
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to send verification email",
			slog.String("email", email),
			slog.Any("error", err),
		)
	}
}

// VerificationURL builds the link embedded in verification emails. The token
// segment round-trips exactly as issued.
func (s *VerificationTokenService) VerificationURL(tok string) string {
	return s.baseURL + "/verify-email/" + tok
}

// Consume redeems a token: exactly one concurrent consumption of the same
// token succeeds, marks the owning user's email verified, and returns that
// user. Every other attempt gets ErrInvalidToken.
func (s *VerificationTokenService) Consume(ctx context.Context, tok string) (*User, error) {
	if tok == "" {
		return nil, ErrInvalidToken
	}

	account, err := s.accounts.ConsumeVerificationToken(ctx, tok)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to consume verification token: %w", err)
	}

	now := time.Now()
	if err := s.users.SetEmailVerified(ctx, account.UserID, now); err != nil {
		return nil, fmt.Errorf("failed to mark email verified: %w", err)
	}

	user, err := s.users.GetUserByID(ctx, account.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load verified user: %w", err)
	}

	s.logger.InfoContext(ctx, "email verified", slog.String("user_id", user.ID.String()))
	return user, nil
}
