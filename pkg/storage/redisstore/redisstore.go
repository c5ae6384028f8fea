// Package redisstore implements storage.Backend on Redis.
//
// Layout, all values JSON encoded:
//
//	session:{id}              storage.Session, expires after the keep-alive
//	account:{userID}          storage.UserAccount
//	oauth:{provider}:{sub}    user id
//	token:{provider}:{userID} storage.TokenData
//
// The two link keys are written inside WATCH/MULTI so they never disagree;
// superseded links are watched too before they are deleted.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/dmitrymomot/authkit/pkg/storage"
)

// maxTxRetries bounds optimistic transaction retries on concurrent link updates.
const maxTxRetries = 5

// ErrTxConflict is returned when link updates keep losing optimistic races.
var ErrTxConflict = errors.New("redisstore: too many concurrent link updates")

// Store is the key-value storage backend.
type Store struct {
	client redis.UniversalClient
	minter storage.TokenMinter
	prefix string
	opts   storage.Options
}

var _ storage.Backend = (*Store)(nil)

// Option configures a Store beyond the shared storage options.
type Option func(*Store)

// WithPrefix namespaces every key, for a keyspace shared with other services.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a store over client.
func New(client redis.UniversalClient, minter storage.TokenMinter, opts []storage.Option, storeOpts ...Option) *Store {
	s := &Store{
		client: client,
		minter: minter,
		opts:   storage.NewOptions(opts...),
	}
	for _, opt := range storeOpts {
		opt(s)
	}
	return s
}

func (s *Store) sessionKey(id string) string {
	return s.prefix + "session:" + id
}

func (s *Store) accountKey(userID int64) string {
	return s.prefix + "account:" + strconv.FormatInt(userID, 10)
}

func (s *Store) oauthKey(p storage.Provider, sub string) string {
	return s.prefix + "oauth:" + p.String() + ":" + sub
}

func (s *Store) tokenKey(p storage.Provider, userID int64) string {
	return s.prefix + "token:" + p.String() + ":" + strconv.FormatInt(userID, 10)
}

func (s *Store) QuerySessionData(ctx context.Context, sessionID string, userID int64) (*storage.Session, error) {
	var sess storage.Session
	if err := getJSON(ctx, s.client, s.sessionKey(sessionID), &sess); err != nil {
		return nil, wrap("query session", err)
	}
	// Key expiry follows wall time; the check below also honours injected clocks.
	if sess.Created.Before(s.opts.Cutoff()) {
		return nil, storage.ErrNotFound
	}
	if userID != storage.AnyUser && sess.User.ID != userID {
		return nil, storage.ErrNotFound
	}
	return &sess, nil
}

func (s *Store) SaveSessionData(ctx context.Context, sess *storage.Session) (bool, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return false, fmt.Errorf("encode session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.sessionKey(sess.ID), data, s.opts.KeepAlive).Result()
	if err != nil {
		return false, fmt.Errorf("save session: %w", err)
	}
	return ok, nil
}

func (s *Store) GenerateSession(ctx context.Context, user storage.UserAccount) (*storage.Session, error) {
	return storage.GenerateSession(ctx, s, s.minter, user, s.opts.Now())
}

func (s *Store) QueryOAuthMapping(ctx context.Context, provider storage.Provider, sub string) (*storage.UserAccount, error) {
	uid, err := s.lookupLink(ctx, s.client, provider, sub)
	if err != nil {
		return nil, wrap("query oauth mapping", err)
	}
	return s.GetAccountInfo(ctx, uid)
}

func (s *Store) GetAccountInfo(ctx context.Context, userID int64) (*storage.UserAccount, error) {
	var acc storage.UserAccount
	if err := getJSON(ctx, s.client, s.accountKey(userID), &acc); err != nil {
		return nil, wrap("get account", err)
	}
	return &acc, nil
}

func (s *Store) CreateAccount(ctx context.Context, account *storage.UserAccount) error {
	if err := account.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	if err := s.client.Set(ctx, s.accountKey(account.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// SaveToken rewrites both link keys atomically, dropping the mapping of the
// sub this user held before and the token record of whoever held sub before.
func (s *Store) SaveToken(ctx context.Context, userID int64, provider storage.Provider, sub string, token *oauth2.Token) error {
	if err := storage.ValidateSub(sub); err != nil {
		return err
	}
	data, err := json.Marshal(storage.TokenData{Sub: sub, Token: token})
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	oauthKey := s.oauthKey(provider, sub)
	tokenKey := s.tokenKey(provider, userID)

	err = s.watch(ctx, func(tx *redis.Tx) error {
		var prev storage.TokenData
		if err := getJSON(ctx, tx, tokenKey, &prev); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		prevUID, err := s.lookupLink(ctx, tx, provider, sub)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		hasPrevUID := err == nil

		// Keys about to be dropped join the WATCH set, and are dropped only
		// while they still point back at this link.
		var stale []string
		if prev.Sub != "" && prev.Sub != sub {
			key := s.oauthKey(provider, prev.Sub)
			if err := tx.Watch(ctx, key).Err(); err != nil {
				return err
			}
			uid, err := s.lookupLink(ctx, tx, provider, prev.Sub)
			switch {
			case err == nil && uid == userID:
				stale = append(stale, key)
			case err != nil && !errors.Is(err, storage.ErrNotFound):
				return err
			}
		}
		if hasPrevUID && prevUID != userID {
			key := s.tokenKey(provider, prevUID)
			if err := tx.Watch(ctx, key).Err(); err != nil {
				return err
			}
			var held storage.TokenData
			err := getJSON(ctx, tx, key, &held)
			switch {
			case err == nil && held.Sub == sub:
				stale = append(stale, key)
			case err != nil && !errors.Is(err, redis.Nil):
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(stale) > 0 {
				pipe.Del(ctx, stale...)
			}
			pipe.Set(ctx, oauthKey, strconv.FormatInt(userID, 10), 0)
			pipe.Set(ctx, tokenKey, data, 0)
			return nil
		})
		return err
	}, oauthKey, tokenKey)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *Store) LoadToken(ctx context.Context, userID int64, provider storage.Provider) (*storage.TokenData, error) {
	var td storage.TokenData
	if err := getJSON(ctx, s.client, s.tokenKey(provider, userID), &td); err != nil {
		return nil, wrap("load token", err)
	}
	return &td, nil
}

func (s *Store) QueryToken(ctx context.Context, provider storage.Provider, sub string) (*storage.TokenData, error) {
	uid, err := s.lookupLink(ctx, s.client, provider, sub)
	if err != nil {
		return nil, wrap("query token", err)
	}
	td, err := s.LoadToken(ctx, uid, provider)
	if err != nil {
		return nil, err
	}
	if td.Sub != sub {
		return nil, storage.ErrNotFound
	}
	return td, nil
}

func (s *Store) QueryProfile(ctx context.Context, provider storage.Provider, userID int64) (*storage.OAuth2Profile, error) {
	td, err := s.LoadToken(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	acc, err := s.GetAccountInfo(ctx, userID)
	if err != nil {
		return nil, err
	}
	return storage.ProfileOf(acc, td.Sub), nil
}

func (s *Store) Disconnect(ctx context.Context, provider storage.Provider, userID int64) (bool, error) {
	tokenKey := s.tokenKey(provider, userID)
	var removed bool

	err := s.watch(ctx, func(tx *redis.Tx) error {
		var td storage.TokenData
		if err := getJSON(ctx, tx, tokenKey, &td); err != nil {
			if errors.Is(err, redis.Nil) {
				removed = false
				return nil
			}
			return err
		}

		oauthKey := s.oauthKey(provider, td.Sub)
		owner, err := s.lookupLink(ctx, tx, provider, td.Sub)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		ownsLink := err == nil && owner == userID

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, tokenKey)
			if ownsLink {
				pipe.Del(ctx, oauthKey)
			}
			return nil
		})
		removed = err == nil
		return err
	}, tokenKey)
	if err != nil {
		return false, fmt.Errorf("disconnect: %w", err)
	}
	return removed, nil
}

// watch runs fn in an optimistic transaction, retrying while watched keys change.
func (s *Store) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for range maxTxRetries {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrTxConflict
}

// getter is satisfied by both the client and a watched *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) lookupLink(ctx context.Context, c getter, provider storage.Provider, sub string) (int64, error) {
	uid, err := c.Get(ctx, s.oauthKey(provider, sub)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, storage.ErrNotFound
	}
	return uid, err
}

func getJSON(ctx context.Context, c getter, key string, v any) error {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// wrap maps redis.Nil to storage.ErrNotFound and annotates everything else.
func wrap(op string, err error) error {
	if errors.Is(err, redis.Nil) || errors.Is(err, storage.ErrNotFound) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
