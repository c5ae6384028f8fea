package redis

import "errors"

var (
	ErrEmptyConnectionURL           = errors.New("redis: REDIS_URL is empty")
	ErrFailedToParseRedisConnString = errors.New("redis: invalid connection url")
	// ErrRedisNotReady is returned when no PING succeeded within ConnectTimeout.
	ErrRedisNotReady     = errors.New("redis: server not ready")
	ErrHealthcheckFailed = errors.New("redis: healthcheck failed")
)
