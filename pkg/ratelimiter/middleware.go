package ratelimiter

import (
	"math"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/authkit/pkg/clientip"
)

// KeyFunc extracts a rate limit key from the request.
// An empty key skips rate limiting for that request.
type KeyFunc func(r *http.Request) string

// ByIP keys requests by client IP address.
func ByIP(r *http.Request) string {
	return clientip.GetIP(r)
}

// Prefixed namespaces the key produced by fn so several limiters can share a store.
func Prefixed(prefix string, fn KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		key := fn(r)
		if key == "" {
			return ""
		}
		return prefix + key
	}
}

// Middleware creates an HTTP middleware for rate limiting.
func Middleware(rl RateLimiter, keyFunc KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := rl.Allow(r.Context(), key)
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatFloat(result.Limit, 'f', -1, 64))

			if !result.Allowed() {
				retryAfter := int(math.Ceil(result.RetryAfter().Seconds()))
				if retryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				}

				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
