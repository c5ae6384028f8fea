package storage

import (
	"fmt"
	"strings"
)

// Provider identifies where an identity comes from.
type Provider string

const (
	ProviderEmail  Provider = "email"
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

// Providers lists every supported provider.
func Providers() []Provider {
	return []Provider{ProviderEmail, ProviderGoogle, ProviderGitHub}
}

// ParseProvider maps a configuration or URL value onto a Provider.
// Unknown names are rejected with ErrUnknownProvider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
	return p, nil
}

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderEmail, ProviderGoogle, ProviderGitHub:
		return true
	}
	return false
}

func (p Provider) String() string {
	return string(p)
}
