// Package authweb mounts the authentication flows on an HTTP router. It is
// deliberately thin: handlers translate between the wire and the core,
// establish sessions on success, and express every failure as a redirect with
// a terse message. No pages are rendered here.
package authweb

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/gatekit/gatekit/pkg/authn"
	"github.com/gatekit/gatekit/pkg/session"
)

const (
	loginPath     = "/login"
	dashboardPath = "/dashboard"
)

// Handlers carries the collaborators the routes need.
type Handlers struct {
	auth     *authn.Authenticator
	sessions *session.Manager
	verifier *authn.VerificationTokenService
	logger   *slog.Logger
}

// Option configures Handlers.
type Option func(*Handlers)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handlers) {
		h.logger = l
	}
}

// New constructs the web handlers.
func New(auth *authn.Authenticator, sessions *session.Manager, verifier *authn.VerificationTokenService, opts ...Option) *Handlers {
	h := &Handlers{
		auth:     auth,
		sessions: sessions,
		verifier: verifier,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router mounts all authentication routes.
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	r.Post(loginPath, h.handleForm)
	r.Get("/auth/{provider}", h.handleOAuthStart)
	r.Get("/auth/{provider}/callback", h.handleOAuthCallback)
	r.Get("/verify-email/{token}", h.handleVerifyEmail)
	r.Post("/logout", h.handleLogout)

	return r
}

// handleForm serves both login and signup; the action field selects the
// branch, defaulting to login like the original form.
func (h *Handlers) handleForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirectError(w, r, "Invalid form submission")
		return
	}

	action := authn.FormAction(r.PostFormValue("action"))
	if action == "" {
		action = authn.FormActionLogin
	}

	outcome, err := h.auth.Authenticate(r.Context(), authn.StrategyForm, authn.Request{
		Action:   action,
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	})
	if err != nil {
		h.redirectError(w, r, userMessage(err))
		return
	}

	if outcome.Status == authn.StatusPendingVerification {
		http.Redirect(w, r, loginPath+"?notice="+url.QueryEscape("Check your email to verify your account"), http.StatusSeeOther)
		return
	}

	h.establishSession(w, r, outcome.User)
}

func (h *Handlers) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	strategy, ok := h.oauthStrategy(chi.URLParam(r, "provider"))
	if !ok {
		h.redirectError(w, r, "Unknown sign-in provider")
		return
	}

	authURL, err := strategy.AuthURL()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build auth url", slog.Any("error", err))
		h.redirectError(w, r, "Sign-in failed, please try again")
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *Handlers) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	name := authn.StrategyName(chi.URLParam(r, "provider"))

	outcome, err := h.auth.Authenticate(r.Context(), name, authn.Request{
		Code:  r.URL.Query().Get("code"),
		State: r.URL.Query().Get("state"),
	})
	if err != nil {
		h.redirectError(w, r, userMessage(err))
		return
	}

	h.establishSession(w, r, outcome.User)
}

// handleVerifyEmail consumes the token and, like the original flow, signs the
// user in directly: proving control of the email is an authentication event.
func (h *Handlers) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.Consume(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.redirectError(w, r, "Invalid verification link")
		return
	}

	h.establishSession(w, r, user)
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, err := h.sessions.Get(r.Context(), r); err == nil {
		h.auth.Logout(r.Context(), sess)
	}
	if err := h.sessions.Logout(r.Context(), w, r); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to clear session", slog.Any("error", err))
	}
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

func (h *Handlers) establishSession(w http.ResponseWriter, r *http.Request, user *authn.User) {
	if _, err := h.sessions.Authenticate(r.Context(), w, r, user.ID); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to establish session",
			slog.String("user_id", user.ID.String()),
			slog.Any("error", err),
		)
		h.redirectError(w, r, "Sign-in failed, please try again")
		return
	}
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

func (h *Handlers) redirectError(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, loginPath+"?error="+url.QueryEscape(msg), http.StatusSeeOther)
}

func (h *Handlers) oauthStrategy(provider string) (*authn.OAuthStrategy, bool) {
	s, ok := h.auth.Strategy(authn.StrategyName(provider))
	if !ok {
		return nil, false
	}
	oauth, ok := s.(*authn.OAuthStrategy)
	return oauth, ok
}

// userMessage maps a core failure to the terse message shown to the user.
// "User not found" and "wrong password" collapse into one message so login
// responses never reveal whether an account exists.
func userMessage(err error) string {
	switch {
	case errors.Is(err, authn.ErrNotFound), errors.Is(err, authn.ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, authn.ErrUnverified):
		return "Please verify your email address before logging in"
	case errors.Is(err, authn.ErrConflict):
		return "An account with this email already exists"
	case errors.Is(err, authn.ErrValidation):
		return "Please fill in all required fields"
	default:
		return "Sign-in failed, please try again"
	}
}
