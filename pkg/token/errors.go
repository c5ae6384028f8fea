package token

import "errors"

var (
	ErrMissingSecret     = errors.New("token: signing secret is required")
	ErrInvalidPrefixSize = errors.New("token: prefix size is too small")
	ErrRandomSource      = errors.New("token: failed to read random bytes")
)
