package storage

import "errors"

var (
	ErrNotFound         = errors.New("storage: record not found")
	ErrUnknownProvider  = errors.New("storage: unknown identity provider")
	ErrSessionCollision = errors.New("storage: could not allocate a unique session id")
	ErrInvalidAccount   = errors.New("storage: invalid account")
	ErrInvalidSub       = errors.New("storage: invalid provider subject")
)
