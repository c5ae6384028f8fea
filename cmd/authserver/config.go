package main

import (
	"time"

	"github.com/dmitrymomot/authkit/pkg/clientip"
	"github.com/dmitrymomot/authkit/pkg/email"
	"github.com/dmitrymomot/authkit/pkg/httpserver"
	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/magiclink"
	"github.com/dmitrymomot/authkit/pkg/oauth"
	"github.com/dmitrymomot/authkit/pkg/pg"
	"github.com/dmitrymomot/authkit/pkg/ratelimiter"
	"github.com/dmitrymomot/authkit/pkg/redis"
	"github.com/dmitrymomot/authkit/pkg/session"
	"github.com/dmitrymomot/authkit/pkg/storage"
	"github.com/dmitrymomot/authkit/pkg/token"
)

// appConfig gathers every package config. Nested structs read their own
// env tags.
type appConfig struct {
	Log       logger.Config
	HTTP      httpserver.Config
	Token     token.Config
	Storage   storage.Config
	Postgres  pg.Config
	Redis     redis.Config
	Session   session.Config
	Email     email.Config
	MagicLink magiclink.Config
	OAuth     oauth.Config
	ClientIP  clientip.Config

	LimiterStore string `env:"RATELIMIT_STORE" envDefault:"memory"` // memory or redis

	// Coarse per-IP guard in front of code issuance. Kept well above the
	// flow's own limiters so their answer is the one users see.
	HTTPLimitThreshold float64       `env:"HTTP_RATELIMIT_THRESHOLD" envDefault:"30"`
	HTTPLimitHalfLife  time.Duration `env:"HTTP_RATELIMIT_HALF_LIFE" envDefault:"10m"`

	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1h"`
	HealthTimeout time.Duration `env:"HEALTHCHECK_TIMEOUT" envDefault:"2s"`
}

func (c appConfig) httpLimit() ratelimiter.Config {
	return ratelimiter.Config{Threshold: c.HTTPLimitThreshold, HalfLife: c.HTTPLimitHalfLife}
}

const (
	backendMemory   = "memory"
	backendPostgres = "postgres"
	backendRedis    = "redis"
)
