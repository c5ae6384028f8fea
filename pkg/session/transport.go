package session

import (
	"net/http"
	"time"
)

// Credentials are the claimed session id and owner carried by a request.
// Neither is trusted until the token verifies for the user id.
type Credentials struct {
	Token  string
	UserID int64
}

// Transport defines how session credentials travel between client and server
type Transport interface {
	// Credentials extracts the session credentials from the request
	Credentials(r *http.Request) (Credentials, error)

	// Issue sends the session credentials in the response
	Issue(w http.ResponseWriter, creds Credentials, ttl time.Duration) error

	// Clear removes the session credentials from the response
	Clear(w http.ResponseWriter) error
}
