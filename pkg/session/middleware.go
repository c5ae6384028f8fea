package session

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/authkit/pkg/logger"
)

// Middleware attaches the request's session to its context. It fails open:
// a backend error leaves the request anonymous instead of rejecting it.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Get(r.Context(), r)
		if err != nil {
			if !errors.Is(err, ErrNoSession) && !errors.Is(err, ErrInvalidSession) {
				m.log.ErrorContext(r.Context(), "session lookup failed", logger.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

// RequireAuth rejects requests without a session attached by Middleware.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
