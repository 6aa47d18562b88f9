// Package metrics provides Prometheus metrics for monitoring the relay.
//
// Key metrics:
//   - Connected identities and open transport connections
//   - Message delivery outcomes (delivered / failed)
//   - Read receipts and typing signals (relayed / discarded)
//   - Protocol errors by reason
//   - Outbox overflow drops
//   - Presence audit writes
//
// All methods on *Relay are safe to call on a nil receiver, so components
// can be built without metrics in tests.
package metrics
