// Package session resolves HTTP requests to authenticated sessions.
//
// A session travels as two values: the opaque token (cookie "session-id")
// and the id of the user it was minted for (cookie "user-id"). The token
// is verified against the claimed user id with the token codec before any
// lookup happens, so forged or mismatched pairs never reach storage.
// Verified sessions are served from an in-process LRU lookaside with a
// short TTL and otherwise loaded from the storage backend.
//
//	mgr, err := session.New(cfg, codec, accounts,
//	    session.WithLogger(log),
//	    session.WithMetrics(collector),
//	)
//	r.Use(mgr.Middleware)
//	r.Post("/auth/logout", mgr.LogoutHandler())
//	r.With(session.RequireAuth).Get("/me", me)
//
// Middleware fails open: when the backend is unavailable the request
// proceeds as anonymous. Login writes the credentials and primes the
// lookaside; Logout clears them and evicts the lookaside entry.
//
// Transports are pluggable. CookieTransport is the default, HeaderTransport
// serves API clients (Authorization: Bearer <token>, X-User-ID) and
// CompositeTransport accepts either.
package session
