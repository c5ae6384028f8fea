// Package account links external identities to accounts and issues sessions.
//
// Manager is the single entry point the login flows use to reach the
// storage backend. Its central operation, GetOrCreateAccount, resolves a
// (provider, sub) pair to an existing account, refreshing the stored OAuth
// token on re-login, or creates a new account with a random 48-bit id.
//
// Two concurrent first logins for the same identity may both miss the
// lookup and create two accounts; the later link wins the (provider, sub)
// mapping and the other account is left orphaned.
package account
