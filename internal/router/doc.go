// Package router implements the Connection Router component.
//
// The Connection Router:
//   - Owns the presence table (identity <-> connection)
//   - Handles connect, identify and guarded disconnect
//   - Routes opaque ciphertext between identified sessions with delivery receipts
//   - Relays read confirmations and typing signals, best effort
//   - Answers presence queries atomically
//
// Every operation is a command executed by a single routing goroutine per
// router instance. Commands submitted from one caller are handled in
// submission order. Handlers never block: outbound frames go through
// Conn.Send, which is non-blocking by contract.
package router
