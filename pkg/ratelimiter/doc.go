// Package ratelimiter provides decaying-counter admission control keyed by
// arbitrary strings (client IP, email address, ...).
//
// Each key owns a counter that grows by one per hit and decays toward zero
// with a fixed half-life:
//
//	count = count * 2^(-elapsed/halfLife) + 1
//
// A hit is allowed while the resulting count stays at or below the configured
// threshold. Rejected hits still count, so a client that keeps hammering stays
// locked out until it backs off. Nothing blocks: Allow answers immediately.
//
// # Usage
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//
//	limiter, err := ratelimiter.New(store, ratelimiter.Config{
//		Threshold: 5,
//		HalfLife:  10 * time.Minute,
//	})
//
//	res, err := limiter.Allow(ctx, clientIP)
//	if err != nil {
//		// store failure
//	}
//	if !res.Allowed() {
//		// reject, res.RetryAfter() tells how long until the next hit passes
//	}
//
// # Stores
//
// MemoryStore keeps counters in process memory behind a mutex and sweeps
// decayed keys in the background. RedisStore keeps them in Redis and updates
// them with a single Lua script, so several processes share one budget.
//
// # HTTP
//
// Middleware rejects requests with 429 Too Many Requests and a Retry-After
// header once the key returned by a KeyFunc is over budget.
package ratelimiter
