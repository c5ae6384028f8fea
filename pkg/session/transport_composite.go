package session

import (
	"errors"
	"net/http"
	"time"
)

// CompositeTransport tries multiple transports in order
type CompositeTransport struct {
	transports []Transport
}

// NewCompositeTransport creates a composite transport that tries multiple transports
func NewCompositeTransport(transports ...Transport) *CompositeTransport {
	return &CompositeTransport{
		transports: transports,
	}
}

// Credentials returns the first credentials any transport finds.
func (t *CompositeTransport) Credentials(r *http.Request) (Credentials, error) {
	for _, transport := range t.transports {
		if creds, err := transport.Credentials(r); err == nil {
			return creds, nil
		}
	}
	return Credentials{}, ErrNoSession
}

// Issue sends credentials via all configured transports
func (t *CompositeTransport) Issue(w http.ResponseWriter, creds Credentials, ttl time.Duration) error {
	var errs []error
	for _, transport := range t.transports {
		if err := transport.Issue(w, creds, ttl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear removes credentials from all configured transports
func (t *CompositeTransport) Clear(w http.ResponseWriter) error {
	var errs []error
	for _, transport := range t.transports {
		if err := transport.Clear(w); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
