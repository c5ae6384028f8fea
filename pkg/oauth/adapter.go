package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/authkit/pkg/storage"
)

// ProviderAdapter hides provider specifics from the login service.
type ProviderAdapter interface {
	Provider() storage.Provider
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Profile(ctx context.Context, token *oauth2.Token) (*storage.OAuth2Profile, error)
}

// AdapterOption configures a built-in adapter.
type AdapterOption func(*adapter)

// WithEndpoint overrides the authorization and token endpoints.
func WithEndpoint(ep oauth2.Endpoint) AdapterOption {
	return func(a *adapter) {
		a.conf.Endpoint = ep
	}
}

// WithAPIBaseURL overrides where profile data is fetched from.
func WithAPIBaseURL(url string) AdapterOption {
	return func(a *adapter) {
		a.apiBase = url
	}
}

// WithHTTPClient sets the client used for the token exchange and API calls.
func WithHTTPClient(c *http.Client) AdapterOption {
	return func(a *adapter) {
		if c != nil {
			a.httpClient = c
		}
	}
}

type adapter struct {
	provider   storage.Provider
	conf       *oauth2.Config
	apiBase    string
	httpClient *http.Client
	profile    func(ctx context.Context, a *adapter, client *http.Client) (*storage.OAuth2Profile, error)
}

func newAdapter(p storage.Provider, conf *oauth2.Config, apiBase string, fetch func(context.Context, *adapter, *http.Client) (*storage.OAuth2Profile, error), opts []AdapterOption) *adapter {
	a := &adapter{
		provider:   p,
		conf:       conf,
		apiBase:    apiBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		profile:    fetch,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *adapter) Provider() storage.Provider { return a.provider }

func (a *adapter) AuthURL(state string) string {
	return a.conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (a *adapter) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := a.conf.Exchange(a.withClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}
	return tok, nil
}

func (a *adapter) Profile(ctx context.Context, token *oauth2.Token) (*storage.OAuth2Profile, error) {
	client := a.conf.Client(a.withClient(ctx), token)
	p, err := a.profile(ctx, a, client)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProfileUnavailable, a.provider, err)
	}
	return p, nil
}

func (a *adapter) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
