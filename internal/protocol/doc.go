// Package protocol defines the JSON event vocabulary spoken over relay
// WebSocket connections.
//
// Every frame is a text message of the form:
//
//	{"event": "<name>", "data": {...}}
//
// Payloads are plain structs; Decode and DecodeData turn inbound frames into
// them and Encode does the reverse. Message content is opaque ciphertext and
// is never inspected.
package protocol
