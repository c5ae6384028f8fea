// Package oauth signs users in with OAuth2 providers.
//
// Provider specifics live behind ProviderAdapter; NewGoogleAdapter and
// NewGitHubAdapter wrap golang.org/x/oauth2 and fetch the user profile.
// Service keeps issued states in a TTL-bound LRU cache, consumes each one
// exactly once, and hands the exchanged token and profile to the account
// manager, which links or creates the account and issues a session.
//
// Routes exposes the flow over HTTP:
//
//	GET  /{provider}             redirect to the consent page
//	GET  /{provider}/callback    finish sign-in and set the session cookies
//	POST /{provider}/disconnect  unlink the provider from the current user
package oauth
