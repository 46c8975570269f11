// Package token provides compact HMAC-signed tokens for short-lived,
// stateless payloads such as OAuth state parameters.
//
// Tokens are two dot-separated base64url segments: the JSON payload and a
// truncated HMAC-SHA256 signature. They are not encrypted; never put secrets
// in the payload.
//
//	type statePayload struct {
//		Nonce    string `json:"n"`
//		ExpireAt int64  `json:"exp"`
//	}
//
//	tok, err := token.Sign(statePayload{Nonce: nonce, ExpireAt: exp}, secret)
//	...
//	payload, err := token.Verify[statePayload](tok, secret)
package token
