// Package pgstore implements storage.Backend on PostgreSQL.
//
// Optional account fields are stored as NULL when empty; session creation
// time is kept as epoch milliseconds and OAuth tokens as JSON text.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/oauth2"

	"github.com/dmitrymomot/authkit/pkg/pg"
	"github.com/dmitrymomot/authkit/pkg/storage"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the relational storage backend.
type Store struct {
	db     DB
	minter storage.TokenMinter
	opts   storage.Options
}

var (
	_ storage.Backend = (*Store)(nil)
	_ storage.Sweeper = (*Store)(nil)
)

// New creates a store over db. The schema must already be migrated
// (see pg.Migrate with Migrations).
func New(db DB, minter storage.TokenMinter, opts ...storage.Option) *Store {
	return &Store{
		db:     db,
		minter: minter,
		opts:   storage.NewOptions(opts...),
	}
}

const accountColumns = `a.id, COALESCE(a.email, ''), a.email_verified, COALESCE(a.picture, ''),
	COALESCE(a.display_name, ''), COALESCE(a.username, '')`

func scanAccount(row pgx.Row, extra ...any) (*storage.UserAccount, error) {
	var (
		acc      storage.UserAccount
		verified int16
	)
	dest := append([]any{&acc.ID, &acc.Email, &verified, &acc.ProfilePic, &acc.DisplayName, &acc.Username}, extra...)
	if err := row.Scan(dest...); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	acc.EmailVerified = verified != 0
	return &acc, nil
}

const querySession = `SELECT ` + accountColumns + `, s.id, s.created
	FROM sessions s JOIN accounts a ON a.id = s.user_id
	WHERE s.id = $1 AND ($2::BIGINT = -1 OR s.user_id = $2) AND s.created >= $3`

func (s *Store) QuerySessionData(ctx context.Context, sessionID string, userID int64) (*storage.Session, error) {
	var (
		sess    storage.Session
		created int64
	)
	acc, err := scanAccount(
		s.db.QueryRow(ctx, querySession, sessionID, userID, s.opts.Cutoff().UnixMilli()),
		&sess.ID, &created,
	)
	if err != nil {
		return nil, wrap("query session", err)
	}
	sess.User = *acc
	sess.Created = time.UnixMilli(created).UTC()
	return &sess, nil
}

func (s *Store) SaveSessionData(ctx context.Context, sess *storage.Session) (bool, error) {
	_, err := s.db.Exec(ctx,
		`INSERT INTO sessions (id, user_id, created) VALUES ($1, $2, $3)`,
		sess.ID, sess.User.ID, sess.Created.UnixMilli(),
	)
	if pg.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("save session: %w", err)
	}
	return true, nil
}

func (s *Store) GenerateSession(ctx context.Context, user storage.UserAccount) (*storage.Session, error) {
	return storage.GenerateSession(ctx, s, s.minter, user, s.opts.Now())
}

// DeleteExpiredSessions removes sessions created before the keep-alive window.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE created < $1`, s.opts.Cutoff().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) QueryOAuthMapping(ctx context.Context, provider storage.Provider, sub string) (*storage.UserAccount, error) {
	acc, err := scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM oauth o JOIN accounts a ON a.id = o.user_id
		WHERE o.provider = $1 AND o.sub = $2`,
		provider.String(), sub,
	))
	if err != nil {
		return nil, wrap("query oauth mapping", err)
	}
	return acc, nil
}

func (s *Store) GetAccountInfo(ctx context.Context, userID int64) (*storage.UserAccount, error) {
	acc, err := scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts a WHERE a.id = $1`, userID,
	))
	if err != nil {
		return nil, wrap("get account", err)
	}
	return acc, nil
}

func (s *Store) CreateAccount(ctx context.Context, account *storage.UserAccount) error {
	if err := account.Validate(); err != nil {
		return err
	}

	var verified int16
	if account.EmailVerified {
		verified = 1
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO accounts (id, email, email_verified, picture, display_name, username)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))`,
		account.ID, account.Email, verified, account.ProfilePic, account.DisplayName, account.Username,
	)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *Store) SaveToken(ctx context.Context, userID int64, provider storage.Provider, sub string, token *oauth2.Token) error {
	if err := storage.ValidateSub(sub); err != nil {
		return err
	}
	blob, err := encodeToken(token)
	if err != nil {
		return err
	}

	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		// One link per (provider, user): forget the sub this user used before.
		if _, err := tx.Exec(ctx,
			`DELETE FROM oauth WHERE provider = $1 AND user_id = $2 AND sub <> $3`,
			provider.String(), userID, sub,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO oauth (provider, sub, user_id, token) VALUES ($1, $2, $3, $4)
			ON CONFLICT (provider, sub) DO UPDATE SET user_id = EXCLUDED.user_id, token = EXCLUDED.token`,
			provider.String(), sub, userID, blob,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *Store) LoadToken(ctx context.Context, userID int64, provider storage.Provider) (*storage.TokenData, error) {
	td, err := scanToken(s.db.QueryRow(ctx,
		`SELECT sub, token FROM oauth WHERE user_id = $1 AND provider = $2`,
		userID, provider.String(),
	))
	if err != nil {
		return nil, wrap("load token", err)
	}
	return td, nil
}

func (s *Store) QueryToken(ctx context.Context, provider storage.Provider, sub string) (*storage.TokenData, error) {
	td, err := scanToken(s.db.QueryRow(ctx,
		`SELECT sub, token FROM oauth WHERE provider = $1 AND sub = $2`,
		provider.String(), sub,
	))
	if err != nil {
		return nil, wrap("query token", err)
	}
	return td, nil
}

func (s *Store) QueryProfile(ctx context.Context, provider storage.Provider, userID int64) (*storage.OAuth2Profile, error) {
	var sub string
	acc, err := scanAccount(s.db.QueryRow(ctx,
		`SELECT `+accountColumns+`, o.sub FROM oauth o JOIN accounts a ON a.id = o.user_id
		WHERE o.user_id = $1 AND o.provider = $2`,
		userID, provider.String(),
	), &sub)
	if err != nil {
		return nil, wrap("query profile", err)
	}
	return storage.ProfileOf(acc, sub), nil
}

func (s *Store) Disconnect(ctx context.Context, provider storage.Provider, userID int64) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM oauth WHERE provider = $1 AND user_id = $2`,
		provider.String(), userID,
	)
	if err != nil {
		return false, fmt.Errorf("disconnect: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanToken(row pgx.Row) (*storage.TokenData, error) {
	var (
		td   storage.TokenData
		blob *string
	)
	if err := row.Scan(&td.Sub, &blob); err != nil {
		if pg.IsNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if blob != nil {
		td.Token = new(oauth2.Token)
		if err := json.Unmarshal([]byte(*blob), td.Token); err != nil {
			return nil, fmt.Errorf("decode token: %w", err)
		}
	}
	return &td, nil
}

func encodeToken(t *oauth2.Token) (*string, error) {
	if t == nil {
		return nil, nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode token: %w", err)
	}
	s := string(b)
	return &s, nil
}

// wrap annotates transport errors and passes ErrNotFound through untouched.
func wrap(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
