package ratelimiter

import (
	"context"
	"fmt"
)

// RateLimiter defines the interface for rate limiting implementations.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// Limiter implements a decaying counter rate limiter.
type Limiter struct {
	store  Store
	config Config
}

var _ RateLimiter = (*Limiter)(nil)

// New creates a new decaying counter rate limiter.
func New(store Store, config Config) (*Limiter, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &Limiter{
		store:  store,
		config: config,
	}, nil
}

// Allow registers one hit for key and reports whether it is admitted.
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	count, err := l.store.Hit(ctx, key, l.config)
	if err != nil {
		return nil, err
	}

	return &Result{
		Limit:    l.config.Threshold,
		Count:    count,
		HalfLife: l.config.HalfLife,
	}, nil
}

// Reset forgets every hit recorded for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Reset(ctx, key)
}

// Config returns the limiter configuration.
func (l *Limiter) Config() Config {
	return l.config
}

func (c Config) validate() error {
	if c.Threshold < 1 {
		return fmt.Errorf("%w: threshold must be at least 1, got %v", ErrInvalidConfig, c.Threshold)
	}
	if c.HalfLife <= 0 {
		return fmt.Errorf("%w: half-life must be positive, got %v", ErrInvalidConfig, c.HalfLife)
	}
	return nil
}
