// Package authn is the authentication orchestration core: a strategy
// dispatcher that turns heterogeneous credential proofs (OAuth authorization
// codes, email+password forms) into one canonical user identity.
//
// # Architecture
//
//   - Authenticator owns an immutable registry of strategies and is the single
//     entry point: Authenticate(ctx, name, req).
//   - Strategy implementations (OAuthStrategy, FormStrategy) validate a proof
//     and produce a normalized credential.
//   - AccountLinker resolves normalized credentials to a canonical User,
//     creating or linking Account records idempotently. The same email
//     resolves to the same user regardless of login path.
//   - VerificationTokenService manages single-use email verification tokens.
//
// Durable state lives behind the UserStore and AccountStore interfaces; their
// unique constraints are the only synchronization point. The core holds no
// locks and recovers from lost creation races by re-reading, so concurrent
// first-time logins never surface a conflict to the user.
//
// # Wiring
//
//	hasher := authn.NewBcryptHasher(bcrypt.DefaultCost)
//	verifier := authn.NewVerificationTokenService(users, accounts, mail, baseURL)
//	linker := authn.NewAccountLinker(users, accounts, hasher, verifier)
//
//	auth := authn.New()
//	if err := auth.Register(authn.NewFormStrategy(linker)); err != nil { ... }
//	if err := auth.Register(authn.NewOAuthStrategy(
//		authn.StrategyGitHub, oauthCfg, authn.NewGitHubClient(ghCfg), linker,
//	)); err != nil { ... }
//
//	outcome, err := auth.Authenticate(ctx, authn.StrategyForm, authn.Request{
//		Action: authn.FormActionLogin, Email: email, Password: password,
//	})
//
// Sessions are the caller's concern: on StatusAuthenticated, persist
// outcome.User.ID into the session and commit it before redirecting.
//
// # Failures
//
// Every failure is a sentinel from errors.go, matchable with errors.Is.
// ErrNotFound and ErrInvalidCredentials are distinct so operators can tell
// them apart in logs, but user-facing surfaces must render the same message
// for both to avoid account enumeration.
package authn
