package magiclink_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authkit/pkg/magiclink"
	"github.com/dmitrymomot/authkit/pkg/storage"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHandler_RequestThenRedeem(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, magiclink.DefaultConfig())
	var loggedIn *storage.Session
	h := magiclink.Handler(fx.flow, func(w http.ResponseWriter, r *http.Request, s *storage.Session) {
		loggedIn = s
		w.Header().Set("X-Test-Login", "1")
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/email?email=a@b.com", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mailed", decode(t, rec)["status"])

	q := url.Values{"email": {"a@b.com"}, "code": {fx.outbox.lastCode(t)}}
	req = httptest.NewRequest(http.MethodGet, "/auth/email?"+q.Encode(), nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Test-Login"))
	require.NotNil(t, loggedIn)
	assert.EqualValues(t, loggedIn.User.ID, decode(t, rec)["user_id"])
}

func TestHandler_PostFormWithRedirect(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, magiclink.DefaultConfig())
	h := magiclink.Handler(fx.flow, nil, magiclink.WithRedirect("/welcome"))

	form := url.Values{"email": {"a@b.com"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/email", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	form.Set("code", fx.outbox.lastCode(t))
	req = httptest.NewRequest(http.MethodPost, "/auth/email", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/welcome", rec.Header().Get("Location"))
}

func TestHandler_Errors(t *testing.T) {
	t.Parallel()

	cfg := magiclink.DefaultConfig()
	cfg.EmailLimit.Threshold = 1
	fx := newFixture(t, cfg)
	h := magiclink.Handler(fx.flow, nil)

	tests := []struct {
		name   string
		method string
		target string
		status int
		msg    string
	}{
		{"invalid email", http.MethodGet, "/auth/email?email=bogus", http.StatusBadRequest, "invalid email"},
		{"first request", http.MethodGet, "/auth/email?email=x@y.com", http.StatusOK, ""},
		{"rate limited", http.MethodGet, "/auth/email?email=x@y.com", http.StatusTooManyRequests, "rate limit exceeded"},
		{"bad code", http.MethodGet, "/auth/email?email=x@y.com&code=00", http.StatusUnauthorized, "invalid or expired code"},
		{"method", http.MethodDelete, "/auth/email", http.StatusMethodNotAllowed, "Method Not Allowed"},
	}

	// Sequential: later cases depend on limiter state from earlier ones.
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
		assert.Equal(t, tt.status, rec.Code, tt.name)
		if tt.msg != "" {
			assert.Equal(t, tt.msg, decode(t, rec)["error"], tt.name)
		}
	}
}

func TestHandler_DeliveryFailureIsGeneric(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, magiclink.DefaultConfig())
	fx.outbox.fail = assert.AnError
	h := magiclink.Handler(fx.flow, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/email?email=a@b.com", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "server error", decode(t, rec)["error"])
}
