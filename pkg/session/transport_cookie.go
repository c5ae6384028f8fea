package session

import (
	"net/http"
	"strconv"
	"time"
)

// CookieTransport carries the token and the user id in two cookies.
type CookieTransport struct {
	sessionCookie string
	userCookie    string
	domain        string
	secure        bool
}

// NewCookieTransport creates a cookie pair transport from cfg.
func NewCookieTransport(cfg Config) *CookieTransport {
	return &CookieTransport{
		sessionCookie: cfg.SessionCookie,
		userCookie:    cfg.UserCookie,
		domain:        cfg.CookieDomain,
		secure:        cfg.SecureCookies,
	}
}

// Credentials reads both cookies. A missing or malformed cookie means no session.
func (t *CookieTransport) Credentials(r *http.Request) (Credentials, error) {
	sc, err := r.Cookie(t.sessionCookie)
	if err != nil || sc.Value == "" {
		return Credentials{}, ErrNoSession
	}
	uc, err := r.Cookie(t.userCookie)
	if err != nil {
		return Credentials{}, ErrNoSession
	}
	uid, err := strconv.ParseInt(uc.Value, 10, 64)
	if err != nil || uid < 0 {
		return Credentials{}, ErrNoSession
	}
	return Credentials{Token: sc.Value, UserID: uid}, nil
}

// Issue sets both cookies with the same lifetime.
func (t *CookieTransport) Issue(w http.ResponseWriter, creds Credentials, ttl time.Duration) error {
	http.SetCookie(w, t.cookie(t.sessionCookie, creds.Token, int(ttl.Seconds())))
	http.SetCookie(w, t.cookie(t.userCookie, strconv.FormatInt(creds.UserID, 10), int(ttl.Seconds())))
	return nil
}

// Clear expires both cookies.
func (t *CookieTransport) Clear(w http.ResponseWriter) error {
	http.SetCookie(w, t.cookie(t.sessionCookie, "", -1))
	http.SetCookie(w, t.cookie(t.userCookie, "", -1))
	return nil
}

func (t *CookieTransport) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   t.domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.secure,
		SameSite: http.SameSiteLaxMode, // CSRF protection
	}
}
