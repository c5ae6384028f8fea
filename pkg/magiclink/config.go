package magiclink

import (
	"time"

	"github.com/dmitrymomot/authkit/pkg/ratelimiter"
)

// Config controls code issuance and the two request limiters.
type Config struct {
	BaseURL       string        `env:"MAGICLINK_BASE_URL" envDefault:"http://localhost:8080/auth/email"` // Redemption endpoint put into the email
	AppName       string        `env:"APP_NAME" envDefault:"authkit"`
	Subject       string        `env:"MAGICLINK_SUBJECT" envDefault:"Your sign-in link"`
	CodeTTL       time.Duration `env:"MAGICLINK_CODE_TTL" envDefault:"15m"`
	CodeBytes     int           `env:"MAGICLINK_CODE_BYTES" envDefault:"16"`
	CacheCapacity int           `env:"MAGICLINK_CACHE_CAPACITY" envDefault:"10000"`

	IPLimit    ratelimiter.Config `envPrefix:"MAGICLINK_IP_"`
	EmailLimit ratelimiter.Config `envPrefix:"MAGICLINK_EMAIL_"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "http://localhost:8080/auth/email",
		AppName:       "authkit",
		Subject:       "Your sign-in link",
		CodeTTL:       15 * time.Minute,
		CodeBytes:     16,
		CacheCapacity: 10000,
		IPLimit:       ratelimiter.Config{Threshold: 5, HalfLife: 10 * time.Minute},
		EmailLimit:    ratelimiter.Config{Threshold: 5, HalfLife: 10 * time.Minute},
	}
}
