package authn

import (
	"context"
	"fmt"

	"github.com/gatekit/gatekit/pkg/sanitize"
)

// FormStrategy verifies email+password submissions. Single-shot: there is no
// multi-step state, only validation followed by the linker's signup or login
// branch.
type FormStrategy struct {
	linker *AccountLinker
}

// NewFormStrategy constructs the form strategy. It needs no external config.
func NewFormStrategy(linker *AccountLinker) *FormStrategy {
	return &FormStrategy{linker: linker}
}

func (s *FormStrategy) Name() StrategyName { return StrategyForm }

func (s *FormStrategy) Validate() error {
	if s.linker == nil {
		return fmt.Errorf("%w: form strategy requires an account linker", ErrMissingConfig)
	}
	return nil
}

func (s *FormStrategy) Verify(ctx context.Context, req Request) (Outcome, error) {
	if req.Email == "" || req.Password == "" || req.Action == "" {
		return Outcome{}, fmt.Errorf("%w: email, password and action are required", ErrValidation)
	}
	if req.Action != FormActionLogin && req.Action != FormActionSignup {
		return Outcome{}, fmt.Errorf("%w: unknown action %q", ErrValidation, req.Action)
	}
	if !sanitize.ValidEmail(sanitize.NormalizeEmail(req.Email)) {
		return Outcome{}, fmt.Errorf("%w: malformed email address", ErrValidation)
	}

	return s.linker.ResolveForm(ctx, FormSubmission{
		Action:   req.Action,
		Email:    req.Email,
		Password: req.Password,
	})
}

var _ Strategy = (*FormStrategy)(nil)
