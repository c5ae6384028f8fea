// Package storage defines the persistence contract for accounts, sessions and
// OAuth identity links.
//
// A Backend is selected once at startup and injected into the account
// manager. Three variants ship with the module:
//
//   - pgstore: PostgreSQL through pgx, schema managed by embedded goose migrations.
//   - redisstore: Redis key-value layout with JSON values and native key expiry.
//   - memstore: process memory, for tests and single-node development.
//
// All variants satisfy the same behaviour, verified by the shared suite in
// storagetest. Absent records are reported as ErrNotFound; transport errors
// are returned wrapped and never swallowed, with the single exception of
// SaveSessionData, which reports a duplicate id as (false, nil).
//
// Session ids are minted by a TokenMinter (normally *token.Codec) and are
// bound to the owning user id, so QuerySessionData accepts the caller's
// claimed user id and refuses sessions that belong to someone else.
package storage
