package ratelimiter

import "context"

// Store defines the interface for rate limit storage backends.
type Store interface {
	// Hit decays the counter for key, adds one and returns the new value.
	// Implementations must make the read-modify-write atomic per key.
	Hit(ctx context.Context, key string, config Config) (count float64, err error)

	// Reset clears the rate limit state for the given key.
	Reset(ctx context.Context, key string) error
}
