package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for missing or expired keys.
var ErrNotFound = errors.New("key not found")

// KV is the shared key-value store backing pairing entries, the
// permanent geocode cache and persistent API keys. Keys are
// namespaced by prefix ("pair:", "geocode:", ...); a zero TTL means
// the entry never expires.
//
// Deployments with more than one server instance must use the
// postgres backend; sqlite covers a single host and memory is for
// development and tests only.
type KV interface {
	// Get retrieves a value. Expired entries are reported as
	// ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes a value with the given lifetime. An existing
	// entry under the same key is replaced, TTL included.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Keys lists live keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	Close() error
}
