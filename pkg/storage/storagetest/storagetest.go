// Package storagetest holds the behavioural suite every storage.Backend
// variant must pass.
package storagetest

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/dmitrymomot/authkit/pkg/storage"
)

// KeepAlive is the session lifetime the suite configures.
const KeepAlive = time.Hour

// Factory builds a fresh backend configured with opts.
type Factory func(t *testing.T, opts ...storage.Option) storage.Backend

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at the current wall time truncated to milliseconds.
func NewClock() *Clock {
	return &Clock{now: time.UnixMilli(time.Now().UnixMilli()).UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Run executes the suite against backends produced by factory. Subtests run
// sequentially because relational variants may share one database.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	newBackend := func(t *testing.T) (storage.Backend, *Clock) {
		clock := NewClock()
		return factory(t, storage.WithClock(clock.Now), storage.WithKeepAlive(KeepAlive)), clock
	}

	t.Run("Accounts", func(t *testing.T) {
		b, _ := newBackend(t)
		testAccounts(t, b)
	})
	t.Run("Sessions", func(t *testing.T) {
		b, _ := newBackend(t)
		testSessions(t, b)
	})
	t.Run("SessionExpiry", func(t *testing.T) {
		b, clock := newBackend(t)
		testSessionExpiry(t, b, clock)
	})
	t.Run("OAuthLinks", func(t *testing.T) {
		b, _ := newBackend(t)
		testOAuthLinks(t, b)
	})
	t.Run("RelinkReplacesPreviousSub", func(t *testing.T) {
		b, _ := newBackend(t)
		testRelink(t, b)
	})
	t.Run("SubMovesBetweenAccounts", func(t *testing.T) {
		b, _ := newBackend(t)
		testSubMoves(t, b)
	})
	t.Run("Disconnect", func(t *testing.T) {
		b, _ := newBackend(t)
		testDisconnect(t, b)
	})
	t.Run("FieldWidths", func(t *testing.T) {
		b, _ := newBackend(t)
		testFieldWidths(t, b)
	})
}

// NewAccount creates and persists an account with a random id.
func NewAccount(t *testing.T, b storage.Backend) *storage.UserAccount {
	t.Helper()

	acc := &storage.UserAccount{
		ID:            rand.Int64N(storage.MaxUserID),
		DisplayName:   "Test User",
		Email:         uuid.NewString()[:8] + "@example.com",
		EmailVerified: true,
	}
	require.NoError(t, b.CreateAccount(context.Background(), acc))
	return acc
}

func newSub() string {
	return uuid.NewString()
}

func testAccounts(t *testing.T, b storage.Backend) {
	ctx := context.Background()

	full := &storage.UserAccount{
		ID:            rand.Int64N(storage.MaxUserID),
		Username:      "octocat",
		DisplayName:   "The Octocat",
		ProfilePic:    "https://example.com/octocat.png",
		Email:         "octo@example.com",
		EmailVerified: true,
	}
	require.NoError(t, b.CreateAccount(ctx, full))

	got, err := b.GetAccountInfo(ctx, full.ID)
	require.NoError(t, err)
	assert.Equal(t, full, got)

	sparse := &storage.UserAccount{ID: rand.Int64N(storage.MaxUserID), DisplayName: "google-123"}
	require.NoError(t, b.CreateAccount(ctx, sparse))

	got, err = b.GetAccountInfo(ctx, sparse.ID)
	require.NoError(t, err)
	assert.Equal(t, sparse, got, "absent optional fields stay empty")

	_, err = b.GetAccountInfo(ctx, storage.MaxUserID+1)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testFieldWidths(t *testing.T, b storage.Backend) {
	ctx := context.Background()

	// 50 characters: the widest value every backend must store.
	widest := strings.Repeat("a", storage.MaxFieldLen-len("@example.com")) + "@example.com"
	require.Len(t, widest, storage.MaxFieldLen)

	acc := &storage.UserAccount{
		ID:            rand.Int64N(storage.MaxUserID),
		Email:         widest,
		EmailVerified: true,
		DisplayName:   strings.Repeat("é", storage.MaxFieldLen),
		Username:      strings.Repeat("u", storage.MaxFieldLen),
		ProfilePic:    "https://example.com/" + strings.Repeat("p", storage.MaxPictureLen-len("https://example.com/")),
	}
	require.NoError(t, b.CreateAccount(ctx, acc))
	got, err := b.GetAccountInfo(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, acc, got)

	require.NoError(t, b.SaveToken(ctx, acc.ID, storage.ProviderEmail, widest, nil))
	linked, err := b.QueryOAuthMapping(ctx, storage.ProviderEmail, widest)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, linked.ID)

	tooLong := "x" + widest
	for name, bad := range map[string]storage.UserAccount{
		"email":        {Email: tooLong},
		"display name": {DisplayName: tooLong},
		"username":     {Username: tooLong},
		"picture":      {ProfilePic: strings.Repeat("p", storage.MaxPictureLen+1)},
	} {
		bad.ID = rand.Int64N(storage.MaxUserID)
		assert.ErrorIs(t, b.CreateAccount(ctx, &bad), storage.ErrInvalidAccount, name)
		_, err := b.GetAccountInfo(ctx, bad.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound, name)
	}

	assert.ErrorIs(t, b.SaveToken(ctx, acc.ID, storage.ProviderGoogle, tooLong, nil), storage.ErrInvalidSub)
	assert.ErrorIs(t, b.SaveToken(ctx, acc.ID, storage.ProviderGoogle, "", nil), storage.ErrInvalidSub)
	_, err = b.QueryOAuthMapping(ctx, storage.ProviderGoogle, tooLong)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testSessions(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	owner := NewAccount(t, b)
	other := NewAccount(t, b)

	s, err := b.GenerateSession(ctx, *owner)
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)
	assert.Equal(t, *owner, s.User)

	got, err := b.QuerySessionData(ctx, s.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, *owner, got.User)
	assert.True(t, s.Created.Equal(got.Created), "created round-trips at millisecond precision")

	got, err = b.QuerySessionData(ctx, s.ID, storage.AnyUser)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, got.User.ID)

	_, err = b.QuerySessionData(ctx, s.ID, other.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound, "owner mismatch must hide the session")

	_, err = b.QuerySessionData(ctx, "missing-"+newSub(), storage.AnyUser)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	ok, err := b.SaveSessionData(ctx, &storage.Session{ID: s.ID, User: *other, Created: s.Created})
	require.NoError(t, err)
	assert.False(t, ok, "duplicate id is reported, not raised")

	got, err = b.QuerySessionData(ctx, s.ID, owner.ID)
	require.NoError(t, err, "duplicate save leaves the original intact")
	assert.Equal(t, owner.ID, got.User.ID)

	manual := &storage.Session{ID: "manual-" + newSub(), User: *other, Created: s.Created}
	ok, err = b.SaveSessionData(ctx, manual)
	require.NoError(t, err)
	assert.True(t, ok)

	s2, err := b.GenerateSession(ctx, *owner)
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, s2.ID)
}

func testSessionExpiry(t *testing.T, b storage.Backend, clock *Clock) {
	ctx := context.Background()
	owner := NewAccount(t, b)

	s, err := b.GenerateSession(ctx, *owner)
	require.NoError(t, err)

	clock.Advance(KeepAlive - time.Minute)
	_, err = b.QuerySessionData(ctx, s.ID, owner.ID)
	require.NoError(t, err, "still within keep-alive")

	clock.Advance(2 * time.Minute)
	_, err = b.QuerySessionData(ctx, s.ID, owner.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	if sw, ok := b.(storage.Sweeper); ok {
		n, err := sw.DeleteExpiredSessions(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))

		clock.Advance(-time.Hour)
		_, err = b.QuerySessionData(ctx, s.ID, owner.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound, "swept sessions are gone for good")
	}
}

func testOAuthLinks(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	acc := NewAccount(t, b)
	sub := newSub()

	_, err := b.QueryOAuthMapping(ctx, storage.ProviderGoogle, sub)
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = b.LoadToken(ctx, acc.ID, storage.ProviderGoogle)
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = b.QueryToken(ctx, storage.ProviderGoogle, sub)
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = b.QueryProfile(ctx, storage.ProviderGoogle, acc.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	tok := &oauth2.Token{
		AccessToken:  "access-1",
		TokenType:    "Bearer",
		RefreshToken: "refresh-1",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, b.SaveToken(ctx, acc.ID, storage.ProviderGoogle, sub, tok))

	mapped, err := b.QueryOAuthMapping(ctx, storage.ProviderGoogle, sub)
	require.NoError(t, err)
	assert.Equal(t, acc, mapped)

	_, err = b.QueryOAuthMapping(ctx, storage.ProviderGitHub, sub)
	assert.ErrorIs(t, err, storage.ErrNotFound, "links are provider scoped")

	loaded, err := b.LoadToken(ctx, acc.ID, storage.ProviderGoogle)
	require.NoError(t, err)
	assertToken(t, sub, tok, loaded)

	queried, err := b.QueryToken(ctx, storage.ProviderGoogle, sub)
	require.NoError(t, err)
	assertToken(t, sub, tok, queried)

	profile, err := b.QueryProfile(ctx, storage.ProviderGoogle, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, &storage.OAuth2Profile{
		Sub:           sub,
		Email:         acc.Email,
		EmailVerified: acc.EmailVerified,
		Name:          acc.DisplayName,
	}, profile)

	// refresh on re-login
	refreshed := &oauth2.Token{AccessToken: "access-2", TokenType: "Bearer"}
	require.NoError(t, b.SaveToken(ctx, acc.ID, storage.ProviderGoogle, sub, refreshed))
	loaded, err = b.LoadToken(ctx, acc.ID, storage.ProviderGoogle)
	require.NoError(t, err)
	assertToken(t, sub, refreshed, loaded)

	// a second provider on the same account, without credentials
	email := acc.Email
	require.NoError(t, b.SaveToken(ctx, acc.ID, storage.ProviderEmail, email, nil))
	mapped, err = b.QueryOAuthMapping(ctx, storage.ProviderEmail, email)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, mapped.ID)
	loaded, err = b.LoadToken(ctx, acc.ID, storage.ProviderEmail)
	require.NoError(t, err)
	assert.Equal(t, email, loaded.Sub)
	assert.Nil(t, loaded.Token)

	loaded, err = b.LoadToken(ctx, acc.ID, storage.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, sub, loaded.Sub, "other provider links are untouched")
}

func testRelink(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	acc := NewAccount(t, b)
	oldSub, newSubID := newSub(), newSub()

	require.NoError(t, b.SaveToken(ctx, acc.ID, storage.ProviderGitHub, oldSub, &oauth2.Token{AccessToken: "old"}))
	require.NoError(t, b.SaveToken(ctx, acc.ID, storage.ProviderGitHub, newSubID, &oauth2.Token{AccessToken: "new"}))

	_, err := b.QueryOAuthMapping(ctx, storage.ProviderGitHub, oldSub)
	assert.ErrorIs(t, err, storage.ErrNotFound, "stale mapping removed")
	_, err = b.QueryToken(ctx, storage.ProviderGitHub, oldSub)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	loaded, err := b.LoadToken(ctx, acc.ID, storage.ProviderGitHub)
	require.NoError(t, err)
	assert.Equal(t, newSubID, loaded.Sub)
	assert.Equal(t, "new", loaded.Token.AccessToken)
}

func testSubMoves(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	first := NewAccount(t, b)
	second := NewAccount(t, b)
	sub := newSub()

	require.NoError(t, b.SaveToken(ctx, first.ID, storage.ProviderGoogle, sub, &oauth2.Token{AccessToken: "a"}))
	require.NoError(t, b.SaveToken(ctx, second.ID, storage.ProviderGoogle, sub, &oauth2.Token{AccessToken: "b"}))

	mapped, err := b.QueryOAuthMapping(ctx, storage.ProviderGoogle, sub)
	require.NoError(t, err)
	assert.Equal(t, second.ID, mapped.ID, "at most one account per (provider, sub)")

	_, err = b.LoadToken(ctx, first.ID, storage.ProviderGoogle)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testDisconnect(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	acc := NewAccount(t, b)
	sub := newSub()

	ok, err := b.Disconnect(ctx, storage.ProviderGoogle, acc.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.SaveToken(ctx, acc.ID, storage.ProviderGoogle, sub, &oauth2.Token{AccessToken: "x"}))
	require.NoError(t, b.SaveToken(ctx, acc.ID, storage.ProviderGitHub, sub, &oauth2.Token{AccessToken: "y"}))

	ok, err = b.Disconnect(ctx, storage.ProviderGoogle, acc.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = b.QueryOAuthMapping(ctx, storage.ProviderGoogle, sub)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = b.LoadToken(ctx, acc.ID, storage.ProviderGoogle)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = b.LoadToken(ctx, acc.ID, storage.ProviderGitHub)
	assert.NoError(t, err, "other providers stay linked")

	got, err := b.GetAccountInfo(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, acc, got, "the account itself survives")

	ok, err = b.Disconnect(ctx, storage.ProviderGoogle, acc.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func assertToken(t *testing.T, sub string, want *oauth2.Token, got *storage.TokenData) {
	t.Helper()

	require.NotNil(t, got)
	assert.Equal(t, sub, got.Sub)
	require.NotNil(t, got.Token)
	assert.Equal(t, want.AccessToken, got.Token.AccessToken)
	assert.Equal(t, want.TokenType, got.Token.TokenType)
	assert.Equal(t, want.RefreshToken, got.Token.RefreshToken)
	assert.True(t, want.Expiry.Equal(got.Token.Expiry))
}
