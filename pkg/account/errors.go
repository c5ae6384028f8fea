package account

import "errors"

var (
	ErrMissingSub      = errors.New("account: profile has no subject")
	ErrInvalidProvider = errors.New("account: unsupported provider")
	ErrRandomSource    = errors.New("account: failed to read random id")
)
