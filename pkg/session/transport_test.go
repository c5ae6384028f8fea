package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authkit/pkg/session"
)

func TestCookieTransport(t *testing.T) {
	t.Parallel()

	cfg := session.DefaultConfig()
	cfg.SecureCookies = true
	tr := session.NewCookieTransport(cfg)

	rec := httptest.NewRecorder()
	require.NoError(t, tr.Issue(rec, session.Credentials{Token: "abc", UserID: 42}, time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.Equal(t, 3600, c.MaxAge)
		req.AddCookie(c)
	}

	creds, err := tr.Credentials(req)
	require.NoError(t, err)
	assert.Equal(t, session.Credentials{Token: "abc", UserID: 42}, creds)
}

func TestCookieTransport_Malformed(t *testing.T) {
	t.Parallel()

	tr := session.NewCookieTransport(session.DefaultConfig())
	cases := map[string][]*http.Cookie{
		"none":          nil,
		"token only":    {{Name: "session-id", Value: "abc"}},
		"bad user id":   {{Name: "session-id", Value: "abc"}, {Name: "user-id", Value: "x"}},
		"negative user": {{Name: "session-id", Value: "abc"}, {Name: "user-id", Value: "-1"}},
		"empty token":   {{Name: "session-id", Value: ""}, {Name: "user-id", Value: "1"}},
	}
	for name, cookies := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		_, err := tr.Credentials(req)
		assert.ErrorIs(t, err, session.ErrNoSession, name)
	}
}

func TestHeaderTransport(t *testing.T) {
	t.Parallel()

	tr := session.NewHeaderTransport()

	rec := httptest.NewRecorder()
	require.NoError(t, tr.Issue(rec, session.Credentials{Token: "abc", UserID: 7}, time.Hour))
	assert.Equal(t, "Bearer abc", rec.Header().Get("Authorization"))
	assert.Equal(t, "7", rec.Header().Get("X-User-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer abc")
	req.Header.Set("X-User-ID", "7")
	creds, err := tr.Credentials(req)
	require.NoError(t, err)
	assert.Equal(t, session.Credentials{Token: "abc", UserID: 7}, creds)

	req.Header.Set("Authorization", "Basic abc")
	_, err = tr.Credentials(req)
	assert.ErrorIs(t, err, session.ErrNoSession)

	require.NoError(t, tr.Clear(rec))
	assert.Empty(t, rec.Header().Get("Authorization"))
}

func TestCompositeTransport(t *testing.T) {
	t.Parallel()

	tr := session.NewCompositeTransport(
		session.NewCookieTransport(session.DefaultConfig()),
		session.NewHeaderTransport(),
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer from-header")
	req.Header.Set("X-User-ID", "9")
	creds, err := tr.Credentials(req)
	require.NoError(t, err)
	assert.Equal(t, "from-header", creds.Token)

	req.AddCookie(&http.Cookie{Name: "session-id", Value: "from-cookie"})
	req.AddCookie(&http.Cookie{Name: "user-id", Value: "9"})
	creds, err = tr.Credentials(req)
	require.NoError(t, err)
	assert.Equal(t, "from-cookie", creds.Token, "first transport wins")

	_, err = tr.Credentials(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, session.ErrNoSession)
}
