package session

import "time"

// Config holds session transport and lookaside configuration.
type Config struct {
	SessionCookie string        `env:"SESSION_COOKIE_NAME" envDefault:"session-id"`
	UserCookie    string        `env:"SESSION_USER_COOKIE_NAME" envDefault:"user-id"`
	CookieDomain  string        `env:"SESSION_COOKIE_DOMAIN"`
	SecureCookies bool          `env:"SESSION_SECURE_COOKIES" envDefault:"false"` // Recommended in production
	KeepAlive     time.Duration `env:"SESSION_KEEP_ALIVE" envDefault:"720h"`      // Cookie lifetime, matches the storage keep-alive

	// Lookaside cache over the storage backend.
	CacheCapacity int           `env:"SESSION_CACHE_CAPACITY" envDefault:"10000"`
	CacheTTL      time.Duration `env:"SESSION_CACHE_TTL" envDefault:"5m"`
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		SessionCookie: "session-id",
		UserCookie:    "user-id",
		KeepAlive:     30 * 24 * time.Hour,
		CacheCapacity: 10000,
		CacheTTL:      5 * time.Minute,
	}
}
