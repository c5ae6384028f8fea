// Package magiclink implements passwordless sign-in by email.
//
// Request validates the address, consults an IP limiter and then an email
// limiter, stores a random code bound to the email and requesting IP, and
// mails a link carrying the code. Redeem accepts the code only from the
// same email and IP, removes it atomically, then resolves the account
// (provider "email", sub = address, verified) and issues a session.
//
// Pending codes live in an in-process LRU cache with a hard TTL, so a
// restart or eviction simply makes outstanding links invalid.
//
// Errors returned to users are ErrInvalidEmail, ErrRateLimited,
// ErrDeliveryFailed and ErrInvalidCode; their messages are deliberately
// generic and never reveal whether an account exists.
package magiclink
