// Package api provides the relay's HTTP surface and a client for it.
//
// Endpoints:
//   - GET  /status                    connected identity count and names
//   - GET  /users/:username/presence  online check for one identity
//   - POST /broadcast                 operator notice to every identified session
//   - GET  /health                    router and dependency health
//   - GET  /metrics                   Prometheus exposition
//   - GET  /ws                        WebSocket upgrade (see package transport)
//
// Every presence read goes through the router loop, so answers reflect the
// presence table at the moment of the call.
package api
