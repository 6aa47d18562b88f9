// Package queue provides a growable, optionally bounded FIFO used between
// goroutines that must never block the producer.
//
// The relay uses it for per-connection outboxes (the router hands frames to
// a session without waiting on the socket) and for the audit writer input.
// When a bounded queue is full, Send reports false and the caller decides
// what dropping means.
package queue
