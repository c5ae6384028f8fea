package oauth

import "time"

// Config lists client credentials per provider. A provider is enabled when
// its client id is set.
type Config struct {
	RedirectBaseURL string        `env:"OAUTH_REDIRECT_BASE_URL" envDefault:"http://localhost:8080/auth"` // Callback is <base>/<provider>/callback
	StateTTL        time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
	StateCapacity   int           `env:"OAUTH_STATE_CAPACITY" envDefault:"10000"`
	SuccessURL      string        `env:"OAUTH_SUCCESS_URL" envDefault:"/me"`
	SecureCookie    bool          `env:"OAUTH_SECURE_COOKIE" envDefault:"false"`

	GoogleClientID     string   `env:"GOOGLE_OAUTH_CLIENT_ID"`
	GoogleClientSecret string   `env:"GOOGLE_OAUTH_CLIENT_SECRET"`
	GoogleScopes       []string `env:"GOOGLE_OAUTH_SCOPES" envSeparator:"," envDefault:"openid,email,profile"`

	GitHubClientID     string   `env:"GITHUB_OAUTH_CLIENT_ID"`
	GitHubClientSecret string   `env:"GITHUB_OAUTH_CLIENT_SECRET"`
	GitHubScopes       []string `env:"GITHUB_OAUTH_SCOPES" envSeparator:"," envDefault:"read:user,user:email"`
}

// CallbackURL returns the redirect URL registered for provider.
func (c Config) CallbackURL(provider string) string {
	return c.RedirectBaseURL + "/" + provider + "/callback"
}
