package mailer

import (
	"context"
	"fmt"

	"github.com/gatekit/gatekit/pkg/sanitize"
)

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one outbound transactional email.
type Message struct {
	To       string // recipient address
	Subject  string
	BodyHTML string
	Tag      string // optional, for provider-side analytics
}

// Validate checks the message has everything a provider needs.
func (m Message) Validate() error {
	if !sanitize.ValidEmail(m.To) {
		return fmt.Errorf("%w: invalid recipient %q", ErrInvalidMessage, m.To)
	}
	if m.Subject == "" {
		return fmt.Errorf("%w: empty subject", ErrInvalidMessage)
	}
	if m.BodyHTML == "" {
		return fmt.Errorf("%w: empty body", ErrInvalidMessage)
	}
	return nil
}
