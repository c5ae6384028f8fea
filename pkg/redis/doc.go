// Package redis connects the service to Redis.
//
// Redis backs two components: the key-value session store
// (pkg/storage/redisstore) and the shared rate limiter counters
// (ratelimiter.RedisStore). This package only owns the connection lifecycle:
//
//   - Connect parses REDIS_URL and retries PING until the server is ready.
//   - Healthcheck returns a probe usable by the /health endpoint.
//
// Configuration is read from the environment through Config:
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package redis
