package storage

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"golang.org/x/oauth2"
)

// AnyUser disables the owner check of QuerySessionData.
const AnyUser int64 = -1

// MaxUserID is the exclusive upper bound of generated account ids.
const MaxUserID int64 = 1 << 48

// Widths of the stored text columns, in characters. Every backend enforces
// them so variants accept exactly the same data.
const (
	MaxFieldLen   = 50 // email, display name, username, provider sub
	MaxPictureLen = 200
)

// UserAccount is a single human identity. Empty strings mean the field is absent.
type UserAccount struct {
	ID            int64  `json:"id"`
	Username      string `json:"username,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	ProfilePic    string `json:"profile_pic,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
}

// Session is an issued login. User is a snapshot, not a live reference.
type Session struct {
	ID      string      `json:"id"`
	User    UserAccount `json:"user"`
	Created time.Time   `json:"created"`
}

// Validate reports ErrInvalidAccount when a field exceeds its stored width.
func (a *UserAccount) Validate() error {
	if a == nil {
		return ErrInvalidAccount
	}
	for _, f := range []struct {
		name, value string
		max         int
	}{
		{"email", a.Email, MaxFieldLen},
		{"display name", a.DisplayName, MaxFieldLen},
		{"username", a.Username, MaxFieldLen},
		{"profile picture", a.ProfilePic, MaxPictureLen},
	} {
		if utf8.RuneCountInString(f.value) > f.max {
			return fmt.Errorf("%w: %s longer than %d characters", ErrInvalidAccount, f.name, f.max)
		}
	}
	return nil
}

// ValidateSub reports ErrInvalidSub for an empty or over-long provider subject.
func ValidateSub(sub string) error {
	if sub == "" || utf8.RuneCountInString(sub) > MaxFieldLen {
		return ErrInvalidSub
	}
	return nil
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// ExpiresAt returns the moment the session stops being valid.
func (s *Session) ExpiresAt(keepAlive time.Duration) time.Time {
	return s.Created.Add(keepAlive)
}

// OAuth2Profile is the identity a provider reports for a token.
type OAuth2Profile struct {
	Sub           string `json:"sub"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

// TokenData is the stored side of an OAuth link. Token is nil for
// identities without provider credentials, such as email logins.
type TokenData struct {
	Sub   string        `json:"sub"`
	Token *oauth2.Token `json:"token,omitempty"`
}

// TokenMinter creates session ids bound to a user id.
type TokenMinter interface {
	Mint(userID int64) (string, error)
}

// Backend persists accounts, sessions and OAuth links.
type Backend interface {
	// QuerySessionData returns the live session with the given id. When userID
	// is not AnyUser, a session owned by a different account is reported as
	// ErrNotFound.
	QuerySessionData(ctx context.Context, sessionID string, userID int64) (*Session, error)
	// SaveSessionData stores a new session. A duplicate id yields (false, nil).
	SaveSessionData(ctx context.Context, s *Session) (bool, error)
	// GenerateSession mints an id for user, persists and returns the session.
	GenerateSession(ctx context.Context, user UserAccount) (*Session, error)

	QueryOAuthMapping(ctx context.Context, provider Provider, sub string) (*UserAccount, error)
	GetAccountInfo(ctx context.Context, userID int64) (*UserAccount, error)
	CreateAccount(ctx context.Context, account *UserAccount) error

	// SaveToken links (provider, sub) to userID and stores token, replacing
	// any link userID previously held with provider.
	SaveToken(ctx context.Context, userID int64, provider Provider, sub string, token *oauth2.Token) error
	LoadToken(ctx context.Context, userID int64, provider Provider) (*TokenData, error)
	QueryToken(ctx context.Context, provider Provider, sub string) (*TokenData, error)
	QueryProfile(ctx context.Context, provider Provider, userID int64) (*OAuth2Profile, error)
	// Disconnect removes the provider link of userID, reporting whether one existed.
	Disconnect(ctx context.Context, provider Provider, userID int64) (bool, error)
}

// Sweeper is implemented by backends that need explicit removal of expired sessions.
type Sweeper interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}
