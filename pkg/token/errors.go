package token

import "errors"

var (
	ErrMalformed = errors.New("malformed token")
	ErrSignature = errors.New("signature mismatch")
)
