// Package clientip resolves the originating client address of an HTTP
// request for rate limiting and code binding.
//
// Forwarding headers are only believed when the TCP peer falls inside one of
// the configured trusted proxy ranges. X-Forwarded-For is walked from the
// right, skipping trusted hops, so a client cannot spoof its address by
// prepending entries. Untrusted peers always resolve to their own address.
//
//	res, err := clientip.New(cfg)
//	if err != nil { ... }
//	r.Use(res.Middleware)
//	// downstream
//	ip := clientip.GetIP(req)
package clientip
