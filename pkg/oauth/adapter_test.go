package oauth_test

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authkit/pkg/oauth"
	"github.com/dmitrymomot/authkit/pkg/storage"
)

func TestGoogleAdapter(t *testing.T) {
	t.Parallel()

	fp := newFakeProvider(t)
	a := oauth.NewGoogleAdapter(testConfig(), fp.options()...)
	assert.Equal(t, storage.ProviderGoogle, a.Provider())

	u, err := url.Parse(a.AuthURL("st4te"))
	require.NoError(t, err)
	assert.Equal(t, "st4te", u.Query().Get("state"))
	assert.Equal(t, "google-id", u.Query().Get("client_id"))
	assert.Equal(t, "http://app.test/auth/google/callback", u.Query().Get("redirect_uri"))

	ctx := context.Background()
	tok, err := a.Exchange(ctx, validCode)
	require.NoError(t, err)
	assert.Equal(t, "access-123", tok.AccessToken)
	assert.Equal(t, "refresh-456", tok.RefreshToken)

	p, err := a.Profile(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, &storage.OAuth2Profile{
		Sub:           "g-42",
		Email:         "alice@example.com",
		EmailVerified: true,
		Name:          "Alice",
		Picture:       "https://img.example.com/alice.png",
	}, p)
}

func TestGitHubAdapter(t *testing.T) {
	t.Parallel()

	fp := newFakeProvider(t)
	a := oauth.NewGitHubAdapter(testConfig(), fp.options()...)
	assert.Equal(t, storage.ProviderGitHub, a.Provider())

	ctx := context.Background()
	tok, err := a.Exchange(ctx, validCode)
	require.NoError(t, err)

	p, err := a.Profile(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, "7", p.Sub)
	assert.Equal(t, "octocat", p.Name, "login is used when name is empty")
	assert.Equal(t, "octo@example.com", p.Email, "falls back to a verified address")
	assert.True(t, p.EmailVerified)
}

func TestAdapter_Errors(t *testing.T) {
	t.Parallel()

	fp := newFakeProvider(t)
	a := oauth.NewGitHubAdapter(testConfig(), fp.options()...)
	ctx := context.Background()

	_, err := a.Exchange(ctx, "bad-code")
	assert.ErrorIs(t, err, oauth.ErrInvalidCode)

	tok, err := a.Exchange(ctx, validCode)
	require.NoError(t, err)
	fp.failUser.Store(true)
	_, err = a.Profile(ctx, tok)
	assert.ErrorIs(t, err, oauth.ErrProfileUnavailable)
}

func TestAdaptersFromConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	assert.Len(t, oauth.AdaptersFromConfig(cfg), 2)

	cfg.GitHubClientID = ""
	adapters := oauth.AdaptersFromConfig(cfg)
	require.Len(t, adapters, 1)
	assert.Equal(t, storage.ProviderGoogle, adapters[0].Provider())
}
