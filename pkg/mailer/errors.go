package mailer

import "errors"

var (
	ErrInvalidMessage = errors.New("mailer: invalid message")
	ErrInvalidConfig  = errors.New("mailer: invalid config")
	ErrSendFailed     = errors.New("mailer: failed to send email")
)
