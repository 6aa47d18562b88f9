package transport

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rafi-haque/Secure-Chat/internal/queue"
)

// Session is one accepted WebSocket connection. It implements router.Conn.
type Session struct {
	id     string
	cfg    Config
	conn   *websocket.Conn
	logger *slog.Logger

	outbox *queue.Queue[[]byte]

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newSession(id string, conn *websocket.Conn, cfg Config, logger *slog.Logger) *Session {
	return &Session{
		id:     id,
		cfg:    cfg,
		conn:   conn,
		logger: logger.With("conn_id", id),
		outbox: queue.NewBounded[[]byte](cfg.OutboxInitial, cfg.OutboxMax),
		done:   make(chan struct{}),
	}
}

// ID returns the connection ID.
func (s *Session) ID() string { return s.id }

// Send queues frame for the write loop. Never blocks.
func (s *Session) Send(frame []byte) bool {
	return s.outbox.Send(frame)
}

// Pending returns the number of frames waiting in the outbox.
func (s *Session) Pending() int { return s.outbox.Len() }

// start launches the write and ping loops.
func (s *Session) start() {
	s.wg.Add(2)
	go s.writeLoop()
	go s.pingLoop()
}

// readLoop delivers inbound frames to handle until the connection fails.
// Frames are handled strictly in arrival order.
func (s *Session) readLoop(handle func(frame []byte) error) {
	s.conn.SetReadLimit(s.cfg.ReadLimit)
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "error", err)
			} else {
				s.logger.Debug("websocket closed", "error", err)
			}
			return
		}

		if err := handle(data); err != nil {
			s.logger.Warn("dropping connection", "error", err)
			return
		}
	}
}

// writeLoop drains the outbox onto the socket. When the outbox is closed it
// flushes what is left and sends a close frame.
func (s *Session) writeLoop() {
	defer s.wg.Done()

	for {
		frame, ok := s.outbox.Receive()
		if !ok {
			s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.cfg.WriteTimeout),
			)
			return
		}

		s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			s.logger.Debug("websocket write failed", "error", err)
			// Unblocks readLoop; the handler tears the session down.
			s.conn.Close()
			return
		}
	}
}

// pingLoop keeps the client's read deadline honest.
func (s *Session) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// finish closes the outbox, waits for the write loop to flush, then closes
// the socket. Safe to call more than once.
func (s *Session) finish() {
	s.closeOnce.Do(func() {
		s.outbox.Close()
		close(s.done)

		flushed := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(flushed)
		}()

		select {
		case <-flushed:
		case <-time.After(s.cfg.WriteTimeout):
			s.logger.Warn("outbox flush timed out", "pending", s.outbox.Len())
		}
		s.conn.Close()
	})
}

// kick tells the client the relay is going away and closes the socket,
// which ends readLoop.
func (s *Session) kick() {
	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ErrShuttingDown.Error()),
		time.Now().Add(time.Second),
	)
	s.conn.Close()
}
