package oauth

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/authkit/pkg/storage"
)

// StateCookie binds an issued state to the browser that started the flow.
const StateCookie = "oauth-state"

// LoginFunc attaches an issued session to the response.
type LoginFunc func(w http.ResponseWriter, r *http.Request, session *storage.Session)

// UserFunc reports the signed-in user for a request.
type UserFunc func(r *http.Request) (int64, bool)

// Routes mounts the login, callback and disconnect endpoints under
// /{provider}. Mount the returned router at /auth.
func (s *Service) Routes(login LoginFunc, current UserFunc) chi.Router {
	r := chi.NewRouter()
	r.Get("/{provider}", s.LoginHandler())
	r.Get("/{provider}/callback", s.CallbackHandler(login))
	r.Post("/{provider}/disconnect", s.DisconnectHandler(current))
	return r
}

// LoginHandler redirects to the provider's consent page.
func (s *Service) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, ok := s.providerParam(w, r)
		if !ok {
			return
		}

		authURL, state, err := s.Begin(provider)
		if err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     StateCookie,
			Value:    state,
			Path:     "/",
			MaxAge:   int(s.cfg.StateTTL.Seconds()),
			HttpOnly: true,
			Secure:   s.cfg.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CallbackHandler finishes the flow and redirects to the configured success URL.
func (s *Service) CallbackHandler(login LoginFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, ok := s.providerParam(w, r)
		if !ok {
			return
		}

		state := r.URL.Query().Get("state")
		c, err := r.Cookie(StateCookie)
		if err != nil || state == "" || c.Value != state {
			http.Error(w, ErrInvalidState.Error(), http.StatusBadRequest)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: StateCookie, Value: "", Path: "/", MaxAge: -1})

		if e := r.URL.Query().Get("error"); e != "" {
			s.states.Remove(state)
			http.Error(w, "authorization denied", http.StatusUnauthorized)
			return
		}

		sess, err := s.Complete(r.Context(), provider, state, r.URL.Query().Get("code"))
		switch {
		case errors.Is(err, ErrInvalidState), errors.Is(err, ErrInvalidCode):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}

		if login != nil {
			login(w, r, sess)
		}
		http.Redirect(w, r, s.cfg.SuccessURL, http.StatusSeeOther)
	}
}

// DisconnectHandler unlinks the provider from the signed-in user.
func (s *Service) DisconnectHandler(current UserFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, ok := s.providerParam(w, r)
		if !ok {
			return
		}
		userID, ok := current(r)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		removed, err := s.Disconnect(r.Context(), provider, userID)
		if err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		if !removed {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Service) providerParam(w http.ResponseWriter, r *http.Request) (storage.Provider, bool) {
	p, err := storage.ParseProvider(chi.URLParam(r, "provider"))
	if err == nil {
		if _, ok := s.adapters[p]; ok {
			return p, true
		}
	}
	http.NotFound(w, r)
	return "", false
}
