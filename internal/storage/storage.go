// Package storage defines the key/value port the client-state stores persist
// through.
package storage

import "context"

// TokenKey is where the session persists the shopper's bearer token.
const TokenKey = "token"

// Storage is a string key/value store that survives process restarts (or at
// least page reloads, for an embedded client). Values are never expired by
// the store itself.
type Storage interface {
	// Get returns the value under key. A missing key is ("", false, nil).
	Get(ctx context.Context, key string) (string, bool, error)

	// Set replaces the value under key.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}
