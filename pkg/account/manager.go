package account

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/metrics"
	"github.com/dmitrymomot/authkit/pkg/storage"
)

// Manager orchestrates account, session and token operations over a backend.
type Manager struct {
	backend storage.Backend
	logger  *slog.Logger
	metrics metrics.Recorder
	random  io.Reader
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to a discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics reports issued sessions to r.
func WithMetrics(r metrics.Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.metrics = r
		}
	}
}

// WithRandom replaces the source of new account ids. Intended for tests.
func WithRandom(r io.Reader) Option {
	return func(m *Manager) {
		if r != nil {
			m.random = r
		}
	}
}

// NewManager creates a Manager over backend.
func NewManager(backend storage.Backend, opts ...Option) *Manager {
	m := &Manager{
		backend: backend,
		logger:  logger.Discard(),
		metrics: metrics.Nop{},
		random:  rand.Reader,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logger.Component("account"))
	return m
}

// GetOrCreateAccount returns the account linked to (provider, profile.Sub).
//
// An existing account is returned unchanged; when token is non-nil it
// replaces the stored one. Otherwise a new account is created from profile
// and linked. DisplayName falls back to "<provider>-<sub>".
func (m *Manager) GetOrCreateAccount(ctx context.Context, provider storage.Provider, token *oauth2.Token, profile storage.OAuth2Profile) (*storage.UserAccount, error) {
	if !provider.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, provider)
	}
	if profile.Sub == "" {
		return nil, ErrMissingSub
	}
	if err := storage.ValidateSub(profile.Sub); err != nil {
		return nil, err
	}

	acc, err := m.backend.QueryOAuthMapping(ctx, provider, profile.Sub)
	switch {
	case err == nil:
		if token != nil {
			if err := m.backend.SaveToken(ctx, acc.ID, provider, profile.Sub, token); err != nil {
				m.logger.ErrorContext(ctx, "failed to refresh oauth token",
					logger.Provider(provider.String()), logger.UserID(acc.ID), logger.Error(err))
				return nil, fmt.Errorf("refresh token: %w", err)
			}
		}
		return acc, nil
	case !errors.Is(err, storage.ErrNotFound):
		m.logger.ErrorContext(ctx, "failed to query oauth mapping",
			logger.Provider(provider.String()), logger.Error(err))
		return nil, fmt.Errorf("query oauth mapping: %w", err)
	}

	id, err := m.newUserID()
	if err != nil {
		return nil, err
	}

	acc = accountFromProfile(id, provider, profile)

	if err := m.backend.CreateAccount(ctx, acc); err != nil {
		m.logger.ErrorContext(ctx, "failed to create account",
			logger.Provider(provider.String()), logger.Error(err))
		return nil, fmt.Errorf("create account: %w", err)
	}

	// The link is written even without a token: it is what finds this account next time.
	if err := m.backend.SaveToken(ctx, acc.ID, provider, profile.Sub, token); err != nil {
		m.logger.ErrorContext(ctx, "failed to link new account",
			logger.Provider(provider.String()), logger.UserID(acc.ID), logger.Error(err))
		return nil, fmt.Errorf("link account: %w", err)
	}

	m.logger.InfoContext(ctx, "account created",
		logger.Provider(provider.String()), logger.UserID(acc.ID))
	return acc, nil
}

// GenerateSession issues a new session for user.
func (m *Manager) GenerateSession(ctx context.Context, provider storage.Provider, user storage.UserAccount) (*storage.Session, error) {
	s, err := m.backend.GenerateSession(ctx, user)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to generate session", logger.UserID(user.ID), logger.Error(err))
		return nil, fmt.Errorf("generate session: %w", err)
	}
	m.metrics.RecordSessionIssued(provider.String())
	return s, nil
}

// QuerySession returns the session sessionID owned by userID (or storage.AnyUser).
func (m *Manager) QuerySession(ctx context.Context, sessionID string, userID int64) (*storage.Session, error) {
	return m.backend.QuerySessionData(ctx, sessionID, userID)
}

func (m *Manager) GetAccount(ctx context.Context, userID int64) (*storage.UserAccount, error) {
	return m.backend.GetAccountInfo(ctx, userID)
}

func (m *Manager) SaveToken(ctx context.Context, userID int64, provider storage.Provider, sub string, token *oauth2.Token) error {
	return m.backend.SaveToken(ctx, userID, provider, sub, token)
}

func (m *Manager) LoadToken(ctx context.Context, userID int64, provider storage.Provider) (*storage.TokenData, error) {
	return m.backend.LoadToken(ctx, userID, provider)
}

func (m *Manager) QueryToken(ctx context.Context, provider storage.Provider, sub string) (*storage.TokenData, error) {
	return m.backend.QueryToken(ctx, provider, sub)
}

func (m *Manager) QueryProfile(ctx context.Context, provider storage.Provider, userID int64) (*storage.OAuth2Profile, error) {
	return m.backend.QueryProfile(ctx, provider, userID)
}

// Disconnect unlinks provider from userID.
func (m *Manager) Disconnect(ctx context.Context, provider storage.Provider, userID int64) (bool, error) {
	ok, err := m.backend.Disconnect(ctx, provider, userID)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to disconnect provider",
			logger.Provider(provider.String()), logger.UserID(userID), logger.Error(err))
		return false, err
	}
	if ok {
		m.logger.InfoContext(ctx, "provider disconnected",
			logger.Provider(provider.String()), logger.UserID(userID))
	}
	return ok, nil
}

// accountFromProfile fits provider data into the stored widths. Values that
// cannot be shortened meaningfully (email, picture URL) are dropped; the
// display name is cut.
func accountFromProfile(id int64, provider storage.Provider, profile storage.OAuth2Profile) *storage.UserAccount {
	acc := &storage.UserAccount{ID: id}
	if utf8.RuneCountInString(profile.Email) <= storage.MaxFieldLen {
		acc.Email = profile.Email
		acc.EmailVerified = profile.Email != "" && profile.EmailVerified
	}
	if utf8.RuneCountInString(profile.Picture) <= storage.MaxPictureLen {
		acc.ProfilePic = profile.Picture
	}

	name := profile.Name
	if name == "" {
		name = provider.String() + "-" + profile.Sub
	}
	acc.DisplayName = storage.Truncate(name, storage.MaxFieldLen)
	return acc
}

// newUserID draws a uniform id in [0, 2^48).
func (m *Manager) newUserID() (int64, error) {
	var b [8]byte
	if _, err := io.ReadFull(m.random, b[2:]); err != nil {
		return 0, errors.Join(ErrRandomSource, err)
	}
	return int64(binary.BigEndian.Uint64(b[:])), nil
}
