// Package presence implements the Presence Table: the bidirectional
// identity <-> connection mapping at the heart of the relay.
//
// Invariants:
//   - At most one connection handle per identity (last writer wins)
//   - At most one identity per connection handle
//   - An entry exists only after a successful Bind
//   - Release is guarded: a stale handle never evicts a newer binding
//
// A Table is not safe for concurrent use. The router owns exactly one
// Table and touches it only from its routing goroutine.
package presence
