package email

import "errors"

var (
	ErrFailedToSendEmail   = errors.New("email: failed to send email")
	ErrInvalidConfig       = errors.New("email: invalid config")
	ErrInvalidParams       = errors.New("email: invalid params")
	ErrInvalidAddress      = errors.New("email: invalid address")
	ErrAllTransportsFailed = errors.New("email: all transports failed")
	ErrUnknownTransport    = errors.New("email: unknown transport")
)
