package router

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rafi-haque/Secure-Chat/internal/metrics"
	"github.com/rafi-haque/Secure-Chat/internal/presence"
)

// Router is the Connection Router.
type Router interface {
	// Start launches the routing goroutine.
	Start(ctx context.Context) error

	// Stop shuts the routing goroutine down. Pending commands are abandoned.
	Stop(ctx context.Context) error

	// Connect registers a new, unidentified connection.
	Connect(ctx context.Context, c Conn) error

	// Disconnect forgets c and releases its identity if c still owns it.
	// Returns once the router has processed the removal.
	Disconnect(ctx context.Context, c Conn) error

	// Dispatch handles one inbound frame from c.
	Dispatch(ctx context.Context, c Conn, frame []byte) error

	// ConnectedCount returns the number of identified sessions.
	ConnectedCount(ctx context.Context) (int, error)

	// ConnectedIdentities returns the identified usernames, sorted.
	ConnectedIdentities(ctx context.Context) ([]string, error)

	// IsOnline reports whether identity is currently bound.
	IsOnline(ctx context.Context, identity string) (bool, error)

	// Sessions returns a snapshot of every open connection.
	Sessions(ctx context.Context) ([]Session, error)

	// Broadcast sends a broadcast event to every identified session and
	// returns how many accepted the frame.
	Broadcast(ctx context.Context, message string) (int, error)

	// Stats returns current router statistics.
	Stats() Stats
}

// session is the router's per-connection state.
type session struct {
	conn         Conn
	identity     string
	connectedAt  time.Time
	identifiedAt time.Time
	logger       *slog.Logger
}

func (s *session) snapshot() Session {
	return Session{
		ConnID:       s.conn.ID(),
		Identity:     s.identity,
		ConnectedAt:  s.connectedAt,
		IdentifiedAt: s.identifiedAt,
	}
}

// router is the internal implementation.
type router struct {
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Relay
	observer PresenceObserver

	cmds chan command

	// Loop-owned state. Never touched outside routeLoop.
	table    *presence.Table[string]
	sessions map[string]*session

	// Lifecycle
	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	stats counters
}

type counters struct {
	received          atomic.Int64
	delivered         atomic.Int64
	failed            atomic.Int64
	receiptsRelayed   atomic.Int64
	receiptsDiscarded atomic.Int64
	typingRelayed     atomic.Int64
	typingDiscarded   atomic.Int64
	validationErrors  atomic.Int64
	droppedFrames     atomic.Int64
	broadcasts        atomic.Int64
	sessions          atomic.Int64
	identities        atomic.Int64
}

// NewRouter creates a new Connection Router. Call Start before use.
func NewRouter(cfg Config, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	return &router{
		cfg:      cfg,
		logger:   logger,
		metrics:  cfg.Metrics,
		observer: cfg.Observer,
		cmds:     make(chan command, cfg.CommandBufferSize),
		table:    presence.NewTable[string](),
		sessions: make(map[string]*session),
		done:     make(chan struct{}),
	}
}

// Start begins processing commands.
func (r *router) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return errors.New("router already started")
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	go r.routeLoop()

	r.logger.Info("connection router started",
		"command_buffer", r.cfg.CommandBufferSize,
	)
	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	if !r.started.Load() {
		return nil
	}
	r.logger.Info("stopping connection router")

	r.cancel()

	select {
	case <-r.done:
		r.logger.Info("connection router stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("connection router stop timed out")
		return ctx.Err()
	}
}

func (r *router) Connect(ctx context.Context, c Conn) error {
	return r.submit(ctx, connectCmd{conn: c})
}

func (r *router) Disconnect(ctx context.Context, c Conn) error {
	ack := make(chan struct{})
	if err := r.submit(ctx, disconnectCmd{conn: c, ack: ack}); err != nil {
		return err
	}
	return r.await(ctx, ack)
}

func (r *router) Dispatch(ctx context.Context, c Conn, frame []byte) error {
	return r.submit(ctx, eventCmd{conn: c, frame: frame})
}

func (r *router) ConnectedCount(ctx context.Context) (int, error) {
	return query(ctx, r, func(r *router) int { return r.table.Len() })
}

func (r *router) ConnectedIdentities(ctx context.Context) ([]string, error) {
	return query(ctx, r, func(r *router) []string { return r.table.Identities() })
}

func (r *router) IsOnline(ctx context.Context, identity string) (bool, error) {
	return query(ctx, r, func(r *router) bool { return r.table.Contains(identity) })
}

func (r *router) Sessions(ctx context.Context) ([]Session, error) {
	return query(ctx, r, func(r *router) []Session {
		out := make([]Session, 0, len(r.sessions))
		for _, s := range r.sessions {
			out = append(out, s.snapshot())
		}
		return out
	})
}

func (r *router) Broadcast(ctx context.Context, message string) (int, error) {
	return query(ctx, r, func(r *router) int { return r.broadcast(message) })
}

// Stats returns current statistics.
func (r *router) Stats() Stats {
	return Stats{
		EventsReceived:        r.stats.received.Load(),
		MessagesDelivered:     r.stats.delivered.Load(),
		MessagesFailed:        r.stats.failed.Load(),
		ReadReceiptsRelayed:   r.stats.receiptsRelayed.Load(),
		ReadReceiptsDiscarded: r.stats.receiptsDiscarded.Load(),
		TypingRelayed:         r.stats.typingRelayed.Load(),
		TypingDiscarded:       r.stats.typingDiscarded.Load(),
		ValidationErrors:      r.stats.validationErrors.Load(),
		DroppedFrames:         r.stats.droppedFrames.Load(),
		Broadcasts:            r.stats.broadcasts.Load(),
		Sessions:              r.stats.sessions.Load(),
		Identities:            r.stats.identities.Load(),
	}
}

// routeLoop is the routing goroutine. It is the only reader and writer of
// the presence table and the session map.
func (r *router) routeLoop() {
	defer close(r.done)

	for {
		select {
		case <-r.ctx.Done():
			return
		case cmd := <-r.cmds:
			cmd.apply(r)
		}
	}
}

// submit enqueues cmd, blocking only while the command buffer is full.
func (r *router) submit(ctx context.Context, cmd command) error {
	select {
	case <-r.done:
		return ErrStopped
	default:
	}

	select {
	case r.cmds <- cmd:
		return nil
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *router) await(ctx context.Context, ack <-chan struct{}) error {
	select {
	case <-ack:
		return nil
	case <-r.done:
		select {
		case <-ack:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// query runs fn on the routing goroutine and returns its result.
func query[T any](ctx context.Context, r *router, fn func(*router) T) (T, error) {
	var zero T
	reply := make(chan T, 1)
	if err := r.submit(ctx, queryCmd{run: func(r *router) { reply <- fn(r) }}); err != nil {
		return zero, err
	}

	select {
	case v := <-reply:
		return v, nil
	case <-r.done:
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrStopped
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// command is one unit of work for the routing goroutine.
type command interface {
	apply(r *router)
}

type connectCmd struct {
	conn Conn
}

func (c connectCmd) apply(r *router) { r.connect(c.conn) }

type disconnectCmd struct {
	conn Conn
	ack  chan struct{}
}

func (c disconnectCmd) apply(r *router) {
	r.disconnect(c.conn)
	close(c.ack)
}

type eventCmd struct {
	conn  Conn
	frame []byte
}

func (c eventCmd) apply(r *router) { r.dispatch(c.conn, c.frame) }

type queryCmd struct {
	run func(r *router)
}

func (c queryCmd) apply(r *router) { c.run(r) }
