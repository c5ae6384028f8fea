package session

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/storage"
)

type sessionContextKey struct{}

// WithSession adds a session to the context
func WithSession(ctx context.Context, session *storage.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

// FromContext retrieves a session from the context
func FromContext(ctx context.Context) (*storage.Session, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(*storage.Session)
	return session, ok && session != nil
}

// MustFromContext retrieves a session from the context or panics
func MustFromContext(ctx context.Context) *storage.Session {
	session, ok := FromContext(ctx)
	if !ok {
		panic("session: not found in context")
	}
	return session
}

// UserIDFromContext retrieves the user ID from the session in context
func UserIDFromContext(ctx context.Context) (int64, bool) {
	session, ok := FromContext(ctx)
	if !ok {
		return 0, false
	}
	return session.User.ID, true
}

// LogUserID is a logger.ContextExtractor adding the signed-in user id.
func LogUserID(ctx context.Context) (slog.Attr, bool) {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return logger.UserID(id), true
}

var _ logger.ContextExtractor = LogUserID
