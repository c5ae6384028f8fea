package magiclink

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/authkit/pkg/clientip"
	"github.com/dmitrymomot/authkit/pkg/storage"
)

// LoginFunc attaches an issued session to the response, typically by
// writing the session cookies.
type LoginFunc func(w http.ResponseWriter, r *http.Request, session *storage.Session)

type handlerConfig struct {
	redirect string
}

// HandlerOption configures Handler.
type HandlerOption func(*handlerConfig)

// WithRedirect sends the browser to url after a successful redemption
// instead of answering with JSON.
func WithRedirect(url string) HandlerOption {
	return func(c *handlerConfig) {
		c.redirect = url
	}
}

type response struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
	UserID int64  `json:"user_id,omitempty"`
}

// Handler serves both halves of the flow on one endpoint: without a code
// parameter it mails a link, with one it redeems it.
func Handler(flow *Flow, login LoginFunc, opts ...HandlerOption) http.HandlerFunc {
	cfg := &handlerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			w.Header().Set("Allow", "GET, POST")
			writeJSON(w, http.StatusMethodNotAllowed, response{Error: http.StatusText(http.StatusMethodNotAllowed)})
			return
		}

		addr := r.FormValue("email")
		code := r.FormValue("code")
		ip := clientip.GetIP(r)

		if code == "" {
			if err := flow.Request(r.Context(), addr, ip); err != nil {
				writeJSON(w, statusOf(err), response{Error: publicMessage(err)})
				return
			}
			writeJSON(w, http.StatusOK, response{Status: "mailed"})
			return
		}

		sess, err := flow.Redeem(r.Context(), addr, ip, code)
		if err != nil {
			writeJSON(w, statusOf(err), response{Error: publicMessage(err)})
			return
		}
		if login != nil {
			login(w, r, sess)
		}
		if cfg.redirect != "" {
			http.Redirect(w, r, cfg.redirect, http.StatusSeeOther)
			return
		}
		writeJSON(w, http.StatusOK, response{Status: "ok", UserID: sess.User.ID})
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrInvalidEmail):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInvalidCode):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage never exposes wrapped causes.
func publicMessage(err error) string {
	for _, known := range []error{ErrInvalidEmail, ErrRateLimited, ErrInvalidCode} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ErrDeliveryFailed.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
