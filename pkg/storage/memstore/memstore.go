// Package memstore keeps accounts, sessions and OAuth links in process memory.
package memstore

import (
	"context"
	"sync"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/authkit/pkg/storage"
)

type linkKey struct {
	provider storage.Provider
	sub      string
}

type ownerKey struct {
	provider storage.Provider
	userID   int64
}

// Store is a mutex guarded storage.Backend.
type Store struct {
	minter storage.TokenMinter
	opts   storage.Options

	mu       sync.RWMutex
	accounts map[int64]storage.UserAccount
	sessions map[string]storage.Session
	links    map[linkKey]int64
	tokens   map[ownerKey]storage.TokenData
}

var (
	_ storage.Backend = (*Store)(nil)
	_ storage.Sweeper = (*Store)(nil)
)

// New creates an empty store minting session ids with minter.
func New(minter storage.TokenMinter, opts ...storage.Option) *Store {
	return &Store{
		minter:   minter,
		opts:     storage.NewOptions(opts...),
		accounts: make(map[int64]storage.UserAccount),
		sessions: make(map[string]storage.Session),
		links:    make(map[linkKey]int64),
		tokens:   make(map[ownerKey]storage.TokenData),
	}
}

func (s *Store) QuerySessionData(_ context.Context, sessionID string, userID int64) (*storage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok || sess.Created.Before(s.opts.Cutoff()) {
		return nil, storage.ErrNotFound
	}
	if userID != storage.AnyUser && sess.User.ID != userID {
		return nil, storage.ErrNotFound
	}
	return &sess, nil
}

func (s *Store) SaveSessionData(_ context.Context, sess *storage.Session) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return false, nil
	}
	s.sessions[sess.ID] = *sess
	return true, nil
}

func (s *Store) GenerateSession(ctx context.Context, user storage.UserAccount) (*storage.Session, error) {
	return storage.GenerateSession(ctx, s, s.minter, user, s.opts.Now())
}

// DeleteExpiredSessions drops sessions older than the keep-alive.
func (s *Store) DeleteExpiredSessions(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.opts.Cutoff()
	var n int64
	for id, sess := range s.sessions {
		if sess.Created.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) QueryOAuthMapping(_ context.Context, provider storage.Provider, sub string) (*storage.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uid, ok := s.links[linkKey{provider, sub}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	acc, ok := s.accounts[uid]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &acc, nil
}

func (s *Store) GetAccountInfo(_ context.Context, userID int64) (*storage.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &acc, nil
}

func (s *Store) CreateAccount(_ context.Context, account *storage.UserAccount) error {
	if err := account.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[account.ID] = *account
	return nil
}

func (s *Store) SaveToken(_ context.Context, userID int64, provider storage.Provider, sub string, token *oauth2.Token) error {
	if err := storage.ValidateSub(sub); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Drop whatever this user held with provider and whoever held this sub.
	if prev, ok := s.tokens[ownerKey{provider, userID}]; ok {
		delete(s.links, linkKey{provider, prev.Sub})
	}
	if prevUID, ok := s.links[linkKey{provider, sub}]; ok {
		delete(s.tokens, ownerKey{provider, prevUID})
	}

	s.links[linkKey{provider, sub}] = userID
	s.tokens[ownerKey{provider, userID}] = storage.TokenData{Sub: sub, Token: copyToken(token)}
	return nil
}

func (s *Store) LoadToken(_ context.Context, userID int64, provider storage.Provider) (*storage.TokenData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	td, ok := s.tokens[ownerKey{provider, userID}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.TokenData{Sub: td.Sub, Token: copyToken(td.Token)}, nil
}

func (s *Store) QueryToken(ctx context.Context, provider storage.Provider, sub string) (*storage.TokenData, error) {
	s.mu.RLock()
	uid, ok := s.links[linkKey{provider, sub}]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.LoadToken(ctx, uid, provider)
}

func (s *Store) QueryProfile(_ context.Context, provider storage.Provider, userID int64) (*storage.OAuth2Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	td, ok := s.tokens[ownerKey{provider, userID}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	acc, ok := s.accounts[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return storage.ProfileOf(&acc, td.Sub), nil
}

func (s *Store) Disconnect(_ context.Context, provider storage.Provider, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	td, ok := s.tokens[ownerKey{provider, userID}]
	if !ok {
		return false, nil
	}
	delete(s.tokens, ownerKey{provider, userID})
	delete(s.links, linkKey{provider, td.Sub})
	return true, nil
}

func copyToken(t *oauth2.Token) *oauth2.Token {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
