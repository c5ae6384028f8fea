package oauth

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/dmitrymomot/authkit/pkg/storage"
)

const githubAPIBase = "https://api.github.com"

// NewGitHubAdapter creates an adapter for GitHub sign-in.
func NewGitHubAdapter(cfg Config, opts ...AdapterOption) ProviderAdapter {
	return newAdapter(storage.ProviderGitHub, &oauth2.Config{
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		RedirectURL:  cfg.CallbackURL(storage.ProviderGitHub.String()),
		Scopes:       cfg.GitHubScopes,
		Endpoint:     github.Endpoint,
	}, githubAPIBase, fetchGitHubProfile, opts)
}

type ghUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type ghEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func fetchGitHubProfile(ctx context.Context, a *adapter, client *http.Client) (*storage.OAuth2Profile, error) {
	var u ghUser
	if err := getJSON(ctx, client, a.apiBase+"/user", &u); err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, errors.New("user has no id")
	}

	name := u.Name
	if name == "" {
		name = u.Login
	}
	p := &storage.OAuth2Profile{
		Sub:     strconv.FormatInt(u.ID, 10),
		Name:    name,
		Picture: u.AvatarURL,
	}

	// /user only exposes a public email, without verification status.
	var emails []ghEmail
	if err := getJSON(ctx, client, a.apiBase+"/user/emails", &emails); err != nil {
		return nil, err
	}
	p.Email, p.EmailVerified = pickGitHubEmail(emails)
	return p, nil
}

// pickGitHubEmail prefers the primary verified address, then any verified one.
func pickGitHubEmail(emails []ghEmail) (string, bool) {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, true
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, true
		}
	}
	return "", false
}
