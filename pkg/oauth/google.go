package oauth

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/dmitrymomot/authkit/pkg/storage"
)

const googleAPIBase = "https://openidconnect.googleapis.com"

// NewGoogleAdapter creates an adapter for Google sign-in.
func NewGoogleAdapter(cfg Config, opts ...AdapterOption) ProviderAdapter {
	return newAdapter(storage.ProviderGoogle, &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.CallbackURL(storage.ProviderGoogle.String()),
		Scopes:       cfg.GoogleScopes,
		Endpoint:     google.Endpoint,
	}, googleAPIBase, fetchGoogleProfile, opts)
}

type googleUser struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func fetchGoogleProfile(ctx context.Context, a *adapter, client *http.Client) (*storage.OAuth2Profile, error) {
	var u googleUser
	if err := getJSON(ctx, client, a.apiBase+"/v1/userinfo", &u); err != nil {
		return nil, err
	}
	if u.Sub == "" {
		return nil, errors.New("userinfo has no sub")
	}
	return &storage.OAuth2Profile{
		Sub:           u.Sub,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Name:          u.Name,
		Picture:       u.Picture,
	}, nil
}
