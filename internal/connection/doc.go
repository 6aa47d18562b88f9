// Package connection implements the client side of the relay protocol.
//
// A Client dials the relay's WebSocket endpoint, answers the relay's pings,
// and exposes every inbound frame on a channel with its receive time. It is
// used by relayctl and by end-to-end tests; real chat clients live outside
// this repository.
package connection
