package magiclink

import "errors"

// User-facing errors. Their messages are safe to show as-is.
var (
	ErrInvalidEmail   = errors.New("invalid email")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrDeliveryFailed = errors.New("server error")
	ErrInvalidCode    = errors.New("invalid or expired code")
)

var ErrInvalidConfig = errors.New("magiclink: invalid config")
