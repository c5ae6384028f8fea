package storage

import "time"

// DefaultKeepAlive is the session lifetime used when none is configured.
const DefaultKeepAlive = 30 * 24 * time.Hour

// Config is shared by every backend variant.
type Config struct {
	Backend   string        `env:"STORAGE_BACKEND" envDefault:"memory"` // memory, postgres or redis
	KeepAlive time.Duration `env:"SESSION_KEEP_ALIVE" envDefault:"720h"`
}

// Options are the resolved settings of a backend.
type Options struct {
	KeepAlive time.Duration
	Now       func() time.Time
}

// Option configures a backend.
type Option func(*Options)

// WithKeepAlive sets how long sessions stay valid after creation.
func WithKeepAlive(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.KeepAlive = d
		}
	}
}

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Now = now
		}
	}
}

// WithConfig applies cfg.
func WithConfig(cfg Config) Option {
	return WithKeepAlive(cfg.KeepAlive)
}

// NewOptions resolves opts over the defaults.
func NewOptions(opts ...Option) Options {
	o := Options{
		KeepAlive: DefaultKeepAlive,
		Now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Cutoff returns the creation time before which sessions are expired.
func (o Options) Cutoff() time.Time {
	return o.Now().Add(-o.KeepAlive)
}
