package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys that have already been claimed so that a
// repeated request is not processed twice.
type IdempotencyStore interface {
	// MarkProcessed claims a key for ttl.
	// Returns true if the key was newly claimed, false if it was already held.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether the key is currently held
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release drops a claim so the key can be used again
	Release(ctx context.Context, key string) error

	// Close releases resources held by the store
	Close() error
}
