// Package sanitize normalizes untrusted user input before it reaches storage.
package sanitize

import (
	"regexp"
	"strings"
)

var consecutiveDots = regexp.MustCompile(`\.{2,}`)

// NormalizeEmail lowercases and trims an email address and collapses
// consecutive dots in the local part. Normalizing centrally prevents duplicate
// identities that differ only in casing or whitespace.
func NormalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))

	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return email
	}

	local = consecutiveDots.ReplaceAllString(local, ".")
	local = strings.Trim(local, ".")

	return local + "@" + domain
}

// ValidEmail reports whether the address has the minimal shape worth sending
// to the store. Full RFC validation is deliberately out of scope; the mailer
// and the provider are the authorities on deliverability.
func ValidEmail(email string) bool {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return false
	}
	return strings.Contains(domain, ".") && !strings.ContainsAny(email, " \t\n")
}
