// Package session maps opaque client tokens to an optional user association.
//
// The authentication core only ever writes a user ID into a session after a
// successful resolution; everything else here (cookie transport, stores,
// expiry) is session layer policy. Two stores ship with the package: an
// in-memory store for development and tests, and a Redis store for
// multi-instance deployments.
package session
