package oauth_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authkit/pkg/oauth"
	"github.com/dmitrymomot/authkit/pkg/storage"
)

func newRouter(f *serviceFixture, issued *[]*storage.Session, current int64) http.Handler {
	r := chi.NewRouter()
	r.Mount("/auth", f.svc.Routes(
		func(w http.ResponseWriter, r *http.Request, s *storage.Session) {
			*issued = append(*issued, s)
		},
		func(*http.Request) (int64, bool) { return current, current != 0 },
	))
	return r
}

func startLogin(t *testing.T, h http.Handler, provider string) (state string, cookie *http.Cookie) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/"+provider, nil))
	require.Equal(t, http.StatusFound, rec.Code)

	state = stateOf(t, rec.Header().Get("Location"))
	for _, c := range rec.Result().Cookies() {
		if c.Name == oauth.StateCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, state, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	return state, cookie
}

func callback(h http.Handler, provider, state, code string, cookie *http.Cookie) *httptest.ResponseRecorder {
	q := url.Values{"state": {state}, "code": {code}}
	req := httptest.NewRequest(http.MethodGet, "/auth/"+provider+"/callback?"+q.Encode(), nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_FullFlow(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	var issued []*storage.Session
	h := newRouter(f, &issued, 0)

	state, cookie := startLogin(t, h, "google")
	rec := callback(h, "google", state, validCode, cookie)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/me", rec.Header().Get("Location"))
	require.Len(t, issued, 1)
	assert.Equal(t, "alice@example.com", issued[0].User.Email)
}

func TestHandler_CallbackRejects(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	var issued []*storage.Session
	h := newRouter(f, &issued, 0)

	state, cookie := startLogin(t, h, "github")

	rec := callback(h, "github", state, validCode, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing state cookie")

	other := &http.Cookie{Name: oauth.StateCookie, Value: "forged"}
	rec = callback(h, "github", state, validCode, other)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "cookie does not match")

	rec = callback(h, "github", state, "bad", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "exchange fails")

	rec = callback(h, "github", state, validCode, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "state already consumed")
	assert.Empty(t, issued)
}

func TestHandler_UnknownProvider(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	var issued []*storage.Session
	h := newRouter(f, &issued, 0)

	for _, p := range []string{"email", "twitter"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/"+p, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, p)
	}
}

func TestHandler_Disconnect(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	var issued []*storage.Session
	h := newRouter(f, &issued, 0)

	state, cookie := startLogin(t, h, "github")
	require.Equal(t, http.StatusSeeOther, callback(h, "github", state, validCode, cookie).Code)
	userID := issued[0].User.ID

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/github/disconnect", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "anonymous")

	authed := newRouter(f, &issued, userID)
	rec = httptest.NewRecorder()
	authed.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/github/disconnect", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	authed.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/github/disconnect", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
