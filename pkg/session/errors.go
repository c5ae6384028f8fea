package session

import "errors"

var (
	// ErrNoSession indicates the request carries no usable session
	ErrNoSession = errors.New("session.not_found")

	// ErrInvalidSession indicates the token does not verify for the claimed user
	ErrInvalidSession = errors.New("session.invalid")

	// ErrInvalidConfig indicates a missing dependency or bad setting
	ErrInvalidConfig = errors.New("session.invalid_config")
)
