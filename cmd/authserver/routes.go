package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/authkit/pkg/account"
	"github.com/dmitrymomot/authkit/pkg/clientip"
	"github.com/dmitrymomot/authkit/pkg/httpserver"
	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/magiclink"
	"github.com/dmitrymomot/authkit/pkg/metrics"
	"github.com/dmitrymomot/authkit/pkg/oauth"
	"github.com/dmitrymomot/authkit/pkg/ratelimiter"
	"github.com/dmitrymomot/authkit/pkg/requestid"
	"github.com/dmitrymomot/authkit/pkg/session"
	"github.com/dmitrymomot/authkit/pkg/storage"
)

type routerDeps struct {
	log         *slog.Logger
	clientIP    *clientip.Resolver
	sessions    *session.Manager
	accounts    *account.Manager
	magic       *magiclink.Flow
	oauth       *oauth.Service
	httpLimiter ratelimiter.RateLimiter
	gatherer    prometheus.Gatherer
	checks      []httpserver.Check
	healthTTL   time.Duration
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(d.clientIP.Middleware)
	r.Use(d.sessions.Middleware)

	r.Get("/health", httpserver.HealthCheckHandler(d.log, d.healthTTL, d.checks...))
	r.Get("/health/live", httpserver.HealthCheckHandler(d.log, d.healthTTL))
	r.Method(http.MethodGet, "/metrics", metrics.Handler(d.gatherer))

	r.Route("/auth", func(r chi.Router) {
		r.With(ratelimiter.Middleware(d.httpLimiter, issuanceByIP)).
			HandleFunc("/email", magiclink.Handler(d.magic, d.sessions.Login))
		r.Post("/logout", d.sessions.LogoutHandler())
		r.Mount("/", d.oauth.Routes(d.sessions.Login, d.sessions.CurrentUser))
	})

	r.With(session.RequireAuth).Get("/me", meHandler(d.accounts, d.log))

	return r
}

// issuanceByIP keys code requests by client IP. Redemptions are not limited
// here, so a user who hit the issuance limit can still use a mailed code.
func issuanceByIP(r *http.Request) string {
	if r.FormValue("code") != "" {
		return ""
	}
	return ratelimiter.ByIP(r)
}

type meResponse struct {
	User    *storage.UserAccount `json:"user"`
	Session string               `json:"session_created"`
}

// meHandler returns the fresh account record, falling back to the snapshot
// carried by the session when the account is gone.
func meHandler(accounts *account.Manager, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := session.MustFromContext(r.Context())

		user, err := accounts.GetAccount(r.Context(), s.User.ID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			user = &s.User
		case err != nil:
			log.ErrorContext(r.Context(), "failed to load account", logger.UserID(s.User.ID), logger.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
			return
		}

		writeJSON(w, http.StatusOK, meResponse{
			User:    user,
			Session: s.Created.UTC().Format(time.RFC3339),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
