// Package transport implements the server side of relay WebSocket sessions.
//
// Each accepted connection gets a Session with:
//   - A read loop that hands frames to the router in arrival order
//   - A bounded outbox drained by a dedicated write loop
//   - A ping loop; pongs extend the read deadline
//
// The router only ever calls Session.Send, which queues and returns. When
// the read loop ends the session is disconnected from the router first,
// then the outbox is flushed and the socket closed.
package transport
