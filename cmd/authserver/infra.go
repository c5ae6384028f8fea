package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/authkit/pkg/httpserver"
	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/pg"
	"github.com/dmitrymomot/authkit/pkg/ratelimiter"
	"github.com/dmitrymomot/authkit/pkg/redis"
	"github.com/dmitrymomot/authkit/pkg/storage"
	"github.com/dmitrymomot/authkit/pkg/storage/memstore"
	"github.com/dmitrymomot/authkit/pkg/storage/pgstore"
	"github.com/dmitrymomot/authkit/pkg/storage/redisstore"
)

// infra owns the storage backend, the limiter stores and every connection
// they need.
type infra struct {
	backend storage.Backend
	sweeper storage.Sweeper
	checks  []httpserver.Check

	redis        goredis.UniversalClient
	redisPrefix  string
	sharedLimits bool
	memStores    []*ratelimiter.MemoryStore
	closers      []func()
}

func openInfra(ctx context.Context, cfg appConfig, minter storage.TokenMinter, log *slog.Logger) (*infra, error) {
	in := &infra{redisPrefix: cfg.Redis.KeyPrefix}
	storeOpts := []storage.Option{storage.WithConfig(cfg.Storage)}

	backend := strings.ToLower(cfg.Storage.Backend)
	limiterStore := strings.ToLower(cfg.LimiterStore)

	if backend == backendRedis || limiterStore == backendRedis {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		in.redis = client
		in.closers = append(in.closers, func() { _ = client.Close() })
		in.checks = append(in.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
	}

	switch backend {
	case backendMemory:
		s := memstore.New(minter, storeOpts...)
		in.backend, in.sweeper = s, s
	case backendPostgres:
		pool, err := pg.Connect(ctx, cfg.Postgres)
		if err != nil {
			in.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		in.closers = append(in.closers, pool.Close)
		if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg.Postgres,
			log.With(logger.Component("migrations"))); err != nil {
			in.Close()
			return nil, err
		}
		s := pgstore.New(pool, minter, storeOpts...)
		in.backend, in.sweeper = s, s
		in.checks = append(in.checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})
	case backendRedis:
		// Session keys expire on their own, so no sweeper.
		in.backend = redisstore.New(in.redis, minter, storeOpts, redisstore.WithPrefix(cfg.Redis.KeyPrefix))
	default:
		in.Close()
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if limiterStore != backendMemory && limiterStore != backendRedis {
		in.Close()
		return nil, fmt.Errorf("unknown rate limit store %q", cfg.LimiterStore)
	}
	in.sharedLimits = limiterStore == backendRedis

	log.InfoContext(ctx, "storage ready", slog.String("backend", backend), slog.String("limiter_store", limiterStore))
	return in, nil
}

// limiterStore returns a counter store private to the named limiter, so
// limiters keyed by the same value do not share counters.
func (in *infra) limiterStore(name string) ratelimiter.Store {
	if in.sharedLimits {
		return ratelimiter.NewRedisStore(in.redis, ratelimiter.WithKeyPrefix(in.redisPrefix+"ratelimit:"+name+":"))
	}
	ms := ratelimiter.NewMemoryStore()
	in.memStores = append(in.memStores, ms)
	return ms
}

// Close releases resources in reverse order of acquisition.
func (in *infra) Close() {
	for _, ms := range in.memStores {
		ms.Close()
	}
	for i := len(in.closers) - 1; i >= 0; i-- {
		in.closers[i]()
	}
}
