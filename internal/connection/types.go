package connection

import (
	"errors"
	"time"

	"github.com/rafi-haque/Secure-Chat/internal/protocol"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping from relay)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps one relay frame with its local receive time.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes
	ReceivedAt time.Time // Local time when ReadMessage returned
}

// Envelope decodes the frame's event envelope.
func (m TimestampedMessage) Envelope() (protocol.Envelope, error) {
	return protocol.Decode(m.Data)
}

// ClientConfig configures a relay WebSocket client.
type ClientConfig struct {
	URL              string        // e.g. ws://localhost:8080/ws
	Origin           string        // Optional Origin header
	UserAgent        string        // Optional User-Agent header
	HandshakeTimeout time.Duration // Dial + upgrade deadline
	PingTimeout      time.Duration // Max silence from the relay before the link is stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Inbound message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
// PingTimeout sits above the relay's default pong wait.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingTimeout:      75 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1024,
	}
}
