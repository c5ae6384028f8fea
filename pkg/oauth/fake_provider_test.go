package oauth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/authkit/pkg/oauth"
)

// fakeProvider serves the token endpoint plus Google and GitHub profile APIs.
type fakeProvider struct {
	srv       *httptest.Server
	exchanges atomic.Int32
	failUser  atomic.Bool
}

const validCode = "good-code"

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	fp := &fakeProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		fp.exchanges.Add(1)
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != validCode {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		writeJSON(w, map[string]any{
			"access_token":  "access-123",
			"refresh_token": "refresh-456",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("GET /v1/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		writeJSON(w, map[string]any{
			"sub":            "g-42",
			"email":          "alice@example.com",
			"email_verified": true,
			"name":           "Alice",
			"picture":        "https://img.example.com/alice.png",
		})
	})
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		if fp.failUser.Load() {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		if !authorized(w, r) {
			return
		}
		writeJSON(w, map[string]any{"id": 7, "login": "octocat", "avatar_url": "https://img.example.com/octo.png"})
	})
	mux.HandleFunc("GET /user/emails", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		writeJSON(w, []map[string]any{
			{"email": "unverified@example.com", "primary": true, "verified": false},
			{"email": "octo@example.com", "primary": false, "verified": true},
		})
	})

	fp.srv = httptest.NewServer(mux)
	t.Cleanup(fp.srv.Close)
	return fp
}

func (fp *fakeProvider) options() []oauth.AdapterOption {
	return []oauth.AdapterOption{
		oauth.WithEndpoint(oauth2.Endpoint{
			AuthURL:   fp.srv.URL + "/authorize",
			TokenURL:  fp.srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		}),
		oauth.WithAPIBaseURL(fp.srv.URL),
		oauth.WithHTTPClient(fp.srv.Client()),
	}
}

func authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer access-123" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testConfig() oauth.Config {
	return oauth.Config{
		RedirectBaseURL:    "http://app.test/auth",
		StateTTL:           10 * time.Minute,
		StateCapacity:      100,
		SuccessURL:         "/me",
		GoogleClientID:     "google-id",
		GoogleClientSecret: "google-secret",
		GoogleScopes:       []string{"openid", "email", "profile"},
		GitHubClientID:     "github-id",
		GitHubClientSecret: "github-secret",
		GitHubScopes:       []string{"read:user", "user:email"},
	}
}
