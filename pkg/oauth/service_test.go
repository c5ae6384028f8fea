package oauth_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authkit/pkg/account"
	"github.com/dmitrymomot/authkit/pkg/oauth"
	"github.com/dmitrymomot/authkit/pkg/storage"
	"github.com/dmitrymomot/authkit/pkg/storage/memstore"
	"github.com/dmitrymomot/authkit/pkg/token"
)

type serviceFixture struct {
	svc     *oauth.Service
	fp      *fakeProvider
	backend *memstore.Store

	mu  sync.Mutex
	now time.Time
}

func (f *serviceFixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *serviceFixture) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		fp:      newFakeProvider(t),
		backend: memstore.New(token.MustNewCodec("oauth-test-secret")),
		now:     time.Unix(1_700_000_000, 0),
	}
	cfg := testConfig()
	svc, err := oauth.NewService(cfg, account.NewManager(f.backend),
		oauth.AdaptersFromConfig(cfg, f.fp.options()...),
		oauth.WithClock(f.clock))
	require.NoError(t, err)
	f.svc = svc
	return f
}

func stateOf(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestNewService_Validation(t *testing.T) {
	t.Parallel()

	m := account.NewManager(memstore.New(token.MustNewCodec("s")))
	cfg := testConfig()

	_, err := oauth.NewService(cfg, nil, nil)
	assert.ErrorIs(t, err, oauth.ErrInvalidConfig)

	g := oauth.NewGoogleAdapter(cfg)
	_, err = oauth.NewService(cfg, m, []oauth.ProviderAdapter{g, g})
	assert.ErrorIs(t, err, oauth.ErrInvalidConfig)

	cfg.StateCapacity = 0
	_, err = oauth.NewService(cfg, m, nil)
	assert.ErrorIs(t, err, oauth.ErrInvalidConfig)
}

func TestService_BeginComplete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newServiceFixture(t)
	assert.Equal(t, []storage.Provider{storage.ProviderGoogle, storage.ProviderGitHub}, f.svc.Providers())

	authURL, state, err := f.svc.Begin(storage.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, state, stateOf(t, authURL))

	sess, err := f.svc.Complete(ctx, storage.ProviderGoogle, state, validCode)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", sess.User.Email)
	assert.Equal(t, "Alice", sess.User.DisplayName)

	td, err := f.backend.LoadToken(ctx, sess.User.ID, storage.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "g-42", td.Sub)
	assert.Equal(t, "refresh-456", td.Token.RefreshToken)

	// Same identity, second login: same account.
	_, state, err = f.svc.Begin(storage.ProviderGoogle)
	require.NoError(t, err)
	again, err := f.svc.Complete(ctx, storage.ProviderGoogle, state, validCode)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, again.User.ID)
}

func TestService_StateIsSingleUse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newServiceFixture(t)

	_, state, err := f.svc.Begin(storage.ProviderGitHub)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, storage.ProviderGitHub, state, validCode)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, storage.ProviderGitHub, state, validCode)
	assert.ErrorIs(t, err, oauth.ErrInvalidState)
	assert.EqualValues(t, 1, f.fp.exchanges.Load(), "replay never reaches the provider")
}

func TestService_StateBoundToProvider(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	_, state, err := f.svc.Begin(storage.ProviderGitHub)
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), storage.ProviderGoogle, state, validCode)
	assert.ErrorIs(t, err, oauth.ErrInvalidState)

	_, err = f.svc.Complete(context.Background(), storage.ProviderGitHub, state, validCode)
	assert.NoError(t, err, "mismatch leaves the state usable")
}

func TestService_StateExpires(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	_, state, err := f.svc.Begin(storage.ProviderGoogle)
	require.NoError(t, err)

	f.advance(11 * time.Minute)
	_, err = f.svc.Complete(context.Background(), storage.ProviderGoogle, state, validCode)
	assert.ErrorIs(t, err, oauth.ErrInvalidState)
}

func TestService_BadCode(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	_, state, err := f.svc.Begin(storage.ProviderGoogle)
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), storage.ProviderGoogle, state, "nope")
	assert.ErrorIs(t, err, oauth.ErrInvalidCode)
}

func TestService_UnconfiguredProvider(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.GitHubClientID = ""
	svc, err := oauth.NewService(cfg, account.NewManager(memstore.New(token.MustNewCodec("s"))),
		oauth.AdaptersFromConfig(cfg))
	require.NoError(t, err)

	_, _, err = svc.Begin(storage.ProviderGitHub)
	assert.ErrorIs(t, err, oauth.ErrProviderNotConfigured)

	_, _, err = svc.Begin(storage.ProviderEmail)
	assert.ErrorIs(t, err, oauth.ErrProviderNotConfigured)
}

func TestService_Disconnect(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newServiceFixture(t)
	_, state, err := f.svc.Begin(storage.ProviderGitHub)
	require.NoError(t, err)
	sess, err := f.svc.Complete(ctx, storage.ProviderGitHub, state, validCode)
	require.NoError(t, err)

	ok, err := f.svc.Disconnect(ctx, storage.ProviderGitHub, sess.User.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.Disconnect(ctx, storage.ProviderGitHub, sess.User.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.backend.QueryOAuthMapping(ctx, storage.ProviderGitHub, "7")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
