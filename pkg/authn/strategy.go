package authn

import "context"

// StrategyName identifies a registered strategy. The set is closed: the three
// constants below are the only names the kit ships, which keeps dispatch a
// typed lookup instead of free-form string matching.
type StrategyName string

const (
	StrategyForm   StrategyName = "form"
	StrategyGitHub StrategyName = "github"
	StrategyGoogle StrategyName = "google"
)

// Strategy is a pluggable verifier for one authentication method. Verify
// turns an inbound proof into a resolved outcome or a typed failure; it never
// touches sessions.
type Strategy interface {
	Name() StrategyName

	// Validate reports whether the strategy has everything it needs to run.
	// The authenticator calls it at registration time so misconfiguration is
	// caught at process start, not at first use.
	Validate() error

	Verify(ctx context.Context, req Request) (Outcome, error)
}
