package oauth

import "errors"

var (
	ErrInvalidState          = errors.New("oauth: invalid or expired state")
	ErrInvalidCode           = errors.New("oauth: invalid authorization code")
	ErrProviderNotConfigured = errors.New("oauth: provider not configured")
	ErrProfileUnavailable    = errors.New("oauth: failed to fetch provider profile")
	ErrInvalidConfig         = errors.New("oauth: invalid config")
)
