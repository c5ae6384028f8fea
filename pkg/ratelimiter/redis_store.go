package ratelimiter

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitScript decays and increments a counter hash {c, t} atomically.
// KEYS[1] counter key; ARGV[1] now (ms), ARGV[2] half-life (ms), ARGV[3] key ttl (ms).
var hitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local hl = tonumber(ARGV[2])
local state = redis.call('HMGET', KEYS[1], 'c', 't')
local c = tonumber(state[1]) or 0
local t = tonumber(state[2]) or now
if now > t then
  c = c * math.pow(2, -(now - t) / hl)
end
c = c + 1
redis.call('HSET', KEYS[1], 'c', tostring(c), 't', tostring(now))
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return tostring(c)
`)

// RedisStore implements Store on top of Redis so limits hold across processes.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix namespaces counter keys. Defaults to "ratelimit:".
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(rs *RedisStore) {
		rs.prefix = prefix
	}
}

// WithRedisClock replaces time.Now. Intended for tests.
func WithRedisClock(now func() time.Time) RedisStoreOption {
	return func(rs *RedisStore) {
		if now != nil {
			rs.now = now
		}
	}
}

// NewRedisStore creates a Redis-backed counter store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	rs := &RedisStore{
		client: client,
		prefix: "ratelimit:",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

// Hit runs the decay-and-increment script for key.
func (rs *RedisStore) Hit(ctx context.Context, key string, config Config) (float64, error) {
	// Ten half-lives leave less than 0.1% of any counter.
	ttl := 10 * config.HalfLife

	res, err := hitScript.Run(ctx, rs.client,
		[]string{rs.prefix + key},
		rs.now().UnixMilli(),
		config.HalfLife.Milliseconds(),
		ttl.Milliseconds(),
	).Text()
	if err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}

	count, err := strconv.ParseFloat(res, 64)
	if err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}
	return count, nil
}

// Reset deletes the counter for key.
func (rs *RedisStore) Reset(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, rs.prefix+key).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
