// Package token mints and verifies session identifiers bound to a user id.
//
// A token is hex(prefix) followed by hex(HMAC-SHA256(key, prefix || decimal(userID))).
// The prefix is random, so two tokens for the same user never collide, and the
// user id is not embedded: callers carry it separately (for example in a
// companion cookie) and pass it to Verify. A token verified against the wrong
// user id fails exactly like a corrupted one.
//
// # Usage
//
//	codec, err := token.NewCodec(cfg.Secret)
//	if err != nil {
//	    log.Fatal(err) // missing secret is a startup error
//	}
//
//	tok, err := codec.Mint(userID)
//	...
//	if !codec.Verify(tok, userID) {
//	    // anonymous
//	}
//
// Verify never returns an error: malformed hex, wrong length and MAC mismatch
// are indistinguishable to the caller.
package token
