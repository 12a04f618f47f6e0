package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key does not exist or has expired.
var ErrMiss = errors.New("cache miss")

// KeyValueStore is the TTL-capable store behind attempt counters,
// one-time codes, cooldown markers and forced-logout flags. All of that
// state is ephemeral and never authoritative: losing it forces
// re-verification, it never fails open.
type KeyValueStore interface {
	// Increment atomically increments the integer at key, creating it
	// with the given TTL when absent. The window starts at the counter's
	// creation, not on each hit.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Get returns the value at key, or ErrMiss.
	Get(ctx context.Context, key string) (string, error)

	// SetWithTTL stores value at key with the given TTL, replacing any
	// existing value and its TTL.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// TTL returns the remaining lifetime of key, or ErrMiss.
	TTL(ctx context.Context, key string) (time.Duration, error)
}
