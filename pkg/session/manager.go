package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/authkit/pkg/cache"
	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/metrics"
	"github.com/dmitrymomot/authkit/pkg/storage"
)

// Verifier checks that a token was minted for a user. token.Codec implements it.
type Verifier interface {
	Verify(token string, userID int64) bool
}

// Lookup loads a stored session. account.Manager implements it.
type Lookup interface {
	QuerySession(ctx context.Context, sessionID string, userID int64) (*storage.Session, error)
}

// Manager resolves request credentials to sessions. Tokens are verified
// before anything is looked up; verified sessions are served from an LRU
// lookaside and otherwise loaded from the backend.
type Manager struct {
	verifier  Verifier
	lookup    Lookup
	transport Transport
	cache     *cache.LRUCache[string, storage.Session]
	config    Config
	now       func() time.Time
	log       *slog.Logger
	metrics   metrics.Recorder
}

// Option configures a Manager.
type Option func(*Manager)

// WithTransport replaces the default cookie pair transport.
func WithTransport(t Transport) Option {
	return func(m *Manager) {
		if t != nil {
			m.transport = t
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.metrics = r
		}
	}
}

// WithClock replaces time.Now for expiry checks. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a session manager.
func New(cfg Config, verifier Verifier, lookup Lookup, opts ...Option) (*Manager, error) {
	if verifier == nil || lookup == nil {
		return nil, fmt.Errorf("%w: verifier and lookup are required", ErrInvalidConfig)
	}
	if cfg.CacheCapacity < 1 {
		return nil, fmt.Errorf("%w: cache capacity must be positive", ErrInvalidConfig)
	}
	if cfg.SessionCookie == "" || cfg.UserCookie == "" || cfg.SessionCookie == cfg.UserCookie {
		return nil, fmt.Errorf("%w: two distinct cookie names are required", ErrInvalidConfig)
	}

	m := &Manager{
		verifier: verifier,
		lookup:   lookup,
		config:   cfg,
		now:      time.Now,
		log:      logger.Discard(),
		metrics:  metrics.Nop{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.transport == nil {
		m.transport = NewCookieTransport(cfg)
	}
	m.cache = cache.NewLRUCache[string, storage.Session](cfg.CacheCapacity,
		cache.WithTTL[string, storage.Session](cfg.CacheTTL),
		cache.WithClock[string, storage.Session](m.now),
	)
	return m, nil
}

// Get resolves the session carried by r. It returns ErrNoSession or
// ErrInvalidSession for anonymous requests, or the backend error.
func (m *Manager) Get(ctx context.Context, r *http.Request) (*storage.Session, error) {
	creds, err := m.transport.Credentials(r)
	if err != nil {
		return nil, ErrNoSession
	}
	if !m.verifier.Verify(creds.Token, creds.UserID) {
		m.metrics.RecordSessionLookup(metrics.LookupMiss)
		return nil, ErrInvalidSession
	}

	if s, ok := m.cache.Get(creds.Token); ok {
		if s.User.ID == creds.UserID && !m.expired(&s) {
			m.metrics.RecordSessionLookup(metrics.LookupCache)
			return &s, nil
		}
		m.cache.Remove(creds.Token)
	}

	s, err := m.lookup.QuerySession(ctx, creds.Token, creds.UserID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		m.metrics.RecordSessionLookup(metrics.LookupMiss)
		return nil, ErrNoSession
	case err != nil:
		m.metrics.RecordSessionLookup(metrics.LookupError)
		return nil, fmt.Errorf("query session: %w", err)
	}

	m.metrics.RecordSessionLookup(metrics.LookupBackend)
	m.cache.Put(creds.Token, *s)
	return s, nil
}

// Login sends the session credentials to the client and primes the lookaside.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, s *storage.Session) {
	if err := m.transport.Issue(w, Credentials{Token: s.ID, UserID: s.User.ID}, m.config.KeepAlive); err != nil {
		m.log.ErrorContext(r.Context(), "failed to issue session", logger.UserID(s.User.ID), logger.Error(err))
		return
	}
	m.cache.Put(s.ID, *s)
}

// Logout clears the client credentials and evicts the lookaside entry.
// The stored session itself expires with the backend keep-alive.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	if creds, err := m.transport.Credentials(r); err == nil {
		m.cache.Remove(creds.Token)
	}
	if err := m.transport.Clear(w); err != nil {
		m.log.WarnContext(r.Context(), "failed to clear session", logger.Error(err))
	}
}

// LogoutHandler serves POST /auth/logout.
func (m *Manager) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.Logout(w, r)
		w.WriteHeader(http.StatusNoContent)
	}
}

// CurrentUser reports the user id of the session attached by Middleware.
func (m *Manager) CurrentUser(r *http.Request) (int64, bool) {
	return UserIDFromContext(r.Context())
}

// Cached reports how many sessions the lookaside holds.
func (m *Manager) Cached() int {
	return m.cache.Len()
}

func (m *Manager) expired(s *storage.Session) bool {
	if m.config.KeepAlive <= 0 {
		return false
	}
	return !m.now().Before(s.ExpiresAt(m.config.KeepAlive))
}
