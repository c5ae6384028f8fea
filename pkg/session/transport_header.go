package session

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Default header names for API clients.
const (
	DefaultTokenHeader  = "Authorization"
	DefaultUserIDHeader = "X-User-ID"
)

// HeaderTransport carries the token as a bearer credential and the user id
// in a companion header, for non-browser clients.
type HeaderTransport struct {
	tokenHeader string
	userHeader  string
	prefix      string
}

// NewHeaderTransport creates a new header-based transport
func NewHeaderTransport(opts ...HeaderOption) *HeaderTransport {
	t := &HeaderTransport{
		tokenHeader: DefaultTokenHeader,
		userHeader:  DefaultUserIDHeader,
		prefix:      "Bearer ",
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// HeaderOption is a functional option for HeaderTransport
type HeaderOption func(*HeaderTransport)

// WithHeaderNames overrides the token and user id header names.
func WithHeaderNames(token, user string) HeaderOption {
	return func(t *HeaderTransport) {
		t.tokenHeader = token
		t.userHeader = user
	}
}

// WithHeaderPrefix sets a custom prefix for the token header value
func WithHeaderPrefix(prefix string) HeaderOption {
	return func(t *HeaderTransport) {
		t.prefix = prefix
	}
}

func (t *HeaderTransport) Credentials(r *http.Request) (Credentials, error) {
	value := r.Header.Get(t.tokenHeader)
	if t.prefix != "" {
		if !strings.HasPrefix(value, t.prefix) {
			return Credentials{}, ErrNoSession
		}
		value = strings.TrimPrefix(value, t.prefix)
	}
	if value == "" {
		return Credentials{}, ErrNoSession
	}

	uid, err := strconv.ParseInt(r.Header.Get(t.userHeader), 10, 64)
	if err != nil || uid < 0 {
		return Credentials{}, ErrNoSession
	}
	return Credentials{Token: value, UserID: uid}, nil
}

// Issue echoes the credentials in response headers so API clients can store them.
func (t *HeaderTransport) Issue(w http.ResponseWriter, creds Credentials, ttl time.Duration) error {
	w.Header().Set(t.tokenHeader, t.prefix+creds.Token)
	w.Header().Set(t.userHeader, strconv.FormatInt(creds.UserID, 10))
	if ttl > 0 {
		w.Header().Set(t.tokenHeader+"-Expires", time.Now().Add(ttl).Format(time.RFC3339))
	}
	return nil
}

func (t *HeaderTransport) Clear(w http.ResponseWriter) error {
	w.Header().Del(t.tokenHeader)
	w.Header().Del(t.userHeader)
	w.Header().Del(t.tokenHeader + "-Expires")
	return nil
}
