package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/authkit/pkg/cache"
	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/storage"
)

// Accounts is the part of account.Manager the service needs.
type Accounts interface {
	GetOrCreateAccount(ctx context.Context, provider storage.Provider, token *oauth2.Token, profile storage.OAuth2Profile) (*storage.UserAccount, error)
	GenerateSession(ctx context.Context, provider storage.Provider, user storage.UserAccount) (*storage.Session, error)
	Disconnect(ctx context.Context, provider storage.Provider, userID int64) (bool, error)
}

// Service runs the authorization code flow for the configured providers.
type Service struct {
	accounts Accounts
	adapters map[storage.Provider]ProviderAdapter
	states   *cache.LRUCache[string, storage.Provider]
	cfg      Config

	random io.Reader
	now    func() time.Time
	log    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock sets the clock used to expire states.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRandom replaces the state source. Intended for tests.
func WithRandom(r io.Reader) Option {
	return func(s *Service) {
		if r != nil {
			s.random = r
		}
	}
}

// NewService creates a login service. Each adapter must be for a distinct
// OAuth provider; the email provider is rejected.
func NewService(cfg Config, accounts Accounts, adapters []ProviderAdapter, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, fmt.Errorf("%w: accounts are required", ErrInvalidConfig)
	}
	if cfg.StateCapacity < 1 {
		return nil, fmt.Errorf("%w: state capacity must be positive", ErrInvalidConfig)
	}

	s := &Service{
		accounts: accounts,
		adapters: make(map[storage.Provider]ProviderAdapter, len(adapters)),
		cfg:      cfg,
		random:   rand.Reader,
		now:      time.Now,
		log:      logger.Discard(),
	}
	for _, a := range adapters {
		p := a.Provider()
		if !p.Valid() || p == storage.ProviderEmail {
			return nil, fmt.Errorf("%w: %q", storage.ErrUnknownProvider, p)
		}
		if _, dup := s.adapters[p]; dup {
			return nil, fmt.Errorf("%w: duplicate adapter for %s", ErrInvalidConfig, p)
		}
		s.adapters[p] = a
	}
	for _, opt := range opts {
		opt(s)
	}

	s.states = cache.NewLRUCache[string, storage.Provider](cfg.StateCapacity,
		cache.WithTTL[string, storage.Provider](cfg.StateTTL),
		cache.WithClock[string, storage.Provider](s.now),
	)
	return s, nil
}

// Providers lists the configured providers.
func (s *Service) Providers() []storage.Provider {
	out := make([]storage.Provider, 0, len(s.adapters))
	for _, p := range storage.Providers() {
		if _, ok := s.adapters[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Begin issues a single-use state for provider and returns it together with
// the URL the user must be sent to.
func (s *Service) Begin(provider storage.Provider) (authURL, state string, err error) {
	a, err := s.adapter(provider)
	if err != nil {
		return "", "", err
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(s.random, b); err != nil {
		return "", "", fmt.Errorf("generate state: %w", err)
	}
	state = base64.RawURLEncoding.EncodeToString(b)
	s.states.Put(state, provider)

	return a.AuthURL(state), state, nil
}

// Complete consumes state, exchanges code and signs the user in, creating
// the account on first login.
func (s *Service) Complete(ctx context.Context, provider storage.Provider, state, code string) (*storage.Session, error) {
	a, err := s.adapter(provider)
	if err != nil {
		return nil, err
	}

	if _, ok := s.states.RemoveIf(state, func(p storage.Provider) bool { return p == provider }); !ok {
		return nil, ErrInvalidState
	}
	if code == "" {
		return nil, ErrInvalidCode
	}

	tok, err := a.Exchange(ctx, code)
	if err != nil {
		s.log.InfoContext(ctx, "oauth code exchange failed", logger.Provider(provider.String()), logger.Error(err))
		return nil, err
	}

	profile, err := a.Profile(ctx, tok)
	if err != nil {
		s.log.ErrorContext(ctx, "oauth profile fetch failed", logger.Provider(provider.String()), logger.Error(err))
		return nil, err
	}

	acc, err := s.accounts.GetOrCreateAccount(ctx, provider, tok, *profile)
	if err != nil {
		return nil, err
	}
	return s.accounts.GenerateSession(ctx, provider, *acc)
}

// Disconnect removes the link between userID and provider.
func (s *Service) Disconnect(ctx context.Context, provider storage.Provider, userID int64) (bool, error) {
	if _, err := s.adapter(provider); err != nil {
		return false, err
	}
	return s.accounts.Disconnect(ctx, provider, userID)
}

func (s *Service) adapter(p storage.Provider) (ProviderAdapter, error) {
	a, ok := s.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, p)
	}
	return a, nil
}

// AdaptersFromConfig builds an adapter for every provider with a client id.
func AdaptersFromConfig(cfg Config, opts ...AdapterOption) []ProviderAdapter {
	var out []ProviderAdapter
	if cfg.GoogleClientID != "" {
		out = append(out, NewGoogleAdapter(cfg, opts...))
	}
	if cfg.GitHubClientID != "" {
		out = append(out, NewGitHubAdapter(cfg, opts...))
	}
	return out
}
