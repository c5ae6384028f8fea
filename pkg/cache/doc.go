// Package cache provides a generic, thread-safe LRU (Least Recently Used) cache
// with optional per-entry expiry.
//
// The cache evicts the least recently used entry once it grows past its
// configured capacity. It backs two things in this module: the session
// lookaside in front of the storage backend, and the short-lived store of
// magic-link codes and OAuth states. Neither use writes back to durable
// storage; losing an entry only costs a backend read or a new login request.
//
// # Usage
//
//	sessions := cache.NewLRUCache[string, *storage.Session](10_000,
//		cache.WithTTL[string, *storage.Session](5*time.Minute),
//	)
//
//	sessions.Put(id, sess)
//	if s, ok := sessions.Get(id); ok { // promotes id to most recently used
//		...
//	}
//	sessions.Remove(id)
//
// # Expiry
//
// Without WithTTL entries live until capacity pressure or Remove. With it, an
// entry older than the TTL is treated as absent and dropped on the next access
// or when it reaches the back of the eviction list. Put refreshes the expiry.
//
// # Compare and remove
//
// RemoveIf deletes an entry only when a predicate over its value holds, under
// the same lock as the lookup. Two concurrent callers can never both remove
// the same entry, which is what single-use codes need:
//
//	req, ok := codes.RemoveIf(code, func(r loginRequest) bool {
//		return r.Email == email && r.IP == ip
//	})
//
// All operations are O(1).
package cache
