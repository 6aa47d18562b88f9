package router

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rafi-haque/Secure-Chat/internal/metrics"
)

// ErrStopped is returned by every operation once the router loop has exited.
var ErrStopped = errors.New("router stopped")

// Conn is the router's view of one open transport connection.
// The router never opens or closes connections; it only sends on them.
type Conn interface {
	// ID uniquely identifies the connection for its lifetime.
	ID() string

	// Send queues a frame without blocking. Returns false if the frame was
	// dropped (outbox full or connection closing).
	Send(frame []byte) bool
}

// Config holds configuration for the Connection Router.
type Config struct {
	CommandBufferSize int // Default: 1024

	// Now and NewID are overridable for tests.
	Now   func() time.Time // Default: time.Now
	NewID func() string    // Default: uuid.NewString

	// Observer is notified of every presence transition. Optional.
	Observer PresenceObserver

	// Metrics is optional; a nil value disables instrumentation.
	Metrics *metrics.Relay
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		CommandBufferSize: 1024,
		Now:               time.Now,
		NewID:             uuid.NewString,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CommandBufferSize <= 0 {
		c.CommandBufferSize = d.CommandBufferSize
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	if c.NewID == nil {
		c.NewID = d.NewID
	}
	return c
}

// Session describes one open connection as the router sees it.
type Session struct {
	ConnID       string
	Identity     string // empty until identified
	ConnectedAt  time.Time
	IdentifiedAt time.Time
}

// PresenceKind classifies a presence transition.
type PresenceKind string

const (
	PresenceBound    PresenceKind = "bound"    // identity now online
	PresenceReplaced PresenceKind = "replaced" // identity moved to a new connection
	PresenceReleased PresenceKind = "released" // identity went offline
)

// PresenceEvent is one change to the presence table.
type PresenceEvent struct {
	Kind           PresenceKind
	Identity       string
	ConnID         string
	PreviousConnID string // set for PresenceReplaced
	At             time.Time
}

// PresenceObserver receives presence transitions. It is called from the
// routing goroutine and must not block.
type PresenceObserver interface {
	PresenceChanged(ev PresenceEvent)
}

// PresenceObserverFunc adapts a function to PresenceObserver.
type PresenceObserverFunc func(PresenceEvent)

func (f PresenceObserverFunc) PresenceChanged(ev PresenceEvent) { f(ev) }

// Stats contains runtime statistics.
type Stats struct {
	EventsReceived        int64
	MessagesDelivered     int64
	MessagesFailed        int64
	ReadReceiptsRelayed   int64
	ReadReceiptsDiscarded int64
	TypingRelayed         int64
	TypingDiscarded       int64
	ValidationErrors      int64
	DroppedFrames         int64
	Broadcasts            int64
	Sessions              int64
	Identities            int64
}
