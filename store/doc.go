// Package store persists the permit token ledger.
//
// A Store hands out transactions exposing the nonce tracker, the allowance
// table, the emergency-address registry, the consumed-signature ledger and
// the balance ledger. Three backends share the same key layout:
//
//   - NewMemoryStore: process-local maps with an undo journal
//   - NewRedisStore: optimistic WATCH/MULTI transactions on go-redis
//   - OpenSQLite: a single-writer SQLite database in WAL mode
//
// Keys are lower-case hex addresses; amounts are stored as decimal strings.
package store
