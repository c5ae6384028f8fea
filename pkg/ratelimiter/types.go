package ratelimiter

import (
	"math"
	"time"
)

// Config defines the decaying counter configuration.
type Config struct {
	Threshold float64       `env:"THRESHOLD" envDefault:"5"`   // Highest counter value that is still allowed
	HalfLife  time.Duration `env:"HALF_LIFE" envDefault:"10m"` // Time for the counter to halve without hits
}

// Result contains the result of a rate limit check.
type Result struct {
	Limit float64 // Configured threshold
	Count float64 // Counter value after this hit
	// HalfLife is copied from the config so RetryAfter can be derived.
	HalfLife time.Duration
}

// Allowed returns whether the hit was admitted.
func (r *Result) Allowed() bool {
	return r.Count <= r.Limit
}

// RetryAfter returns how long the counter needs to decay back under the
// threshold. Returns 0 if the request was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() || r.Limit <= 0 {
		return 0
	}
	// Next hit adds one, so the counter must first fall to Limit-1.
	target := max(r.Limit-1, 0.5)
	return time.Duration(float64(r.HalfLife) * math.Log2(r.Count/target))
}

// decay returns count after elapsed time with the given half-life.
func decay(count float64, elapsed, halfLife time.Duration) float64 {
	if elapsed <= 0 || count == 0 {
		return count
	}
	return count * math.Exp2(-float64(elapsed)/float64(halfLife))
}
