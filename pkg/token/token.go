package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"strings"
)

// Sign encodes the payload as JSON and appends an HMAC-SHA256 signature
// truncated to 16 bytes. The result is URL-safe and self-contained, so no
// server-side state is needed to verify it later.
func Sign[T any](payload T, secret string) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	sig := mac.Sum(nil)[:16]

	return base64.RawURLEncoding.EncodeToString(data) + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Verify checks the token's signature in constant time and decodes the JSON
// payload into T. Expiry, if any, is the payload's concern; Verify only proves
// the token was produced with the same secret.
func Verify[T any](tok, secret string) (T, error) {
	var payload T

	encData, encSig, ok := strings.Cut(tok, ".")
	if !ok {
		return payload, ErrMalformed
	}

	data, err := base64.RawURLEncoding.DecodeString(encData)
	if err != nil {
		return payload, ErrMalformed
	}
	sig, err := base64.RawURLEncoding.DecodeString(encSig)
	if err != nil {
		return payload, ErrMalformed
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	want := mac.Sum(nil)[:16]

	if subtle.ConstantTimeCompare(sig, want) != 1 {
		return payload, ErrSignature
	}

	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, ErrMalformed
	}
	return payload, nil
}
