// Package audit records presence transitions to PostgreSQL.
//
// The Writer is a router.PresenceObserver. Transitions are queued without
// blocking the routing goroutine and written in pgx batches to the
// presence_events table. Message content never passes through here.
package audit
