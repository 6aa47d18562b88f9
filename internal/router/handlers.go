package router

import (
	"strings"

	"github.com/rafi-haque/Secure-Chat/internal/protocol"
)

// Protocol error reasons, used as metric labels.
const (
	reasonInvalidFormat    = "invalid_format"
	reasonUnknownEvent     = "unknown_event"
	reasonNotAuthenticated = "not_authenticated"
	reasonMissingFields    = "missing_fields"
	reasonIdentityRequired = "identity_required"
	reasonIdentityConflict = "identity_conflict"
)

const (
	resultRelayed   = "relayed"
	resultDiscarded = "discarded"
)

func (r *router) connect(c Conn) {
	id := c.ID()
	if old, ok := r.sessions[id]; ok {
		r.logger.Warn("duplicate connection id, replacing session", "conn_id", id)
		r.releaseSession(old)
	}

	r.sessions[id] = &session{
		conn:        c,
		connectedAt: r.cfg.Now(),
		logger:      r.logger.With("conn_id", id),
	}
	r.stats.sessions.Store(int64(len(r.sessions)))
	r.logger.Debug("session connected", "conn_id", id, "sessions", len(r.sessions))
}

func (r *router) disconnect(c Conn) {
	s, ok := r.sessions[c.ID()]
	if !ok {
		return
	}
	delete(r.sessions, c.ID())
	r.stats.sessions.Store(int64(len(r.sessions)))
	r.releaseSession(s)
}

// releaseSession drops the session's presence binding if it still owns it.
func (r *router) releaseSession(s *session) {
	identity, removed := r.table.Release(s.conn.ID())
	if !removed {
		if s.identity != "" {
			s.logger.Debug("superseded session closed")
		}
		return
	}

	r.presenceChanged(PresenceEvent{
		Kind:     PresenceReleased,
		Identity: identity,
		ConnID:   s.conn.ID(),
		At:       r.cfg.Now(),
	})
	s.logger.Info("identity offline")
}

func (r *router) dispatch(c Conn, frame []byte) {
	r.stats.received.Add(1)

	s, ok := r.sessions[c.ID()]
	if !ok {
		r.logger.Warn("event from unknown connection dropped", "conn_id", c.ID())
		return
	}

	env, err := protocol.Decode(frame)
	if err != nil {
		s.logger.Debug("malformed frame", "error", err)
		r.sendError(s, reasonInvalidFormat, protocol.ErrMsgInvalidFormat)
		return
	}

	switch env.Event {
	case protocol.EventAuthenticate, protocol.EventIdentify:
		r.handleIdentify(s, env)
	case protocol.EventSendMessage:
		r.handleSendMessage(s, env)
	case protocol.EventMessageReceived:
		r.handleMessageReceived(s, env)
	case protocol.EventTyping:
		r.handleTyping(s, env)
	default:
		r.sendError(s, reasonUnknownEvent, protocol.UnknownEvent(env.Event))
	}
}

// handleIdentify binds the session's claimed identity. The claim is trusted.
// A connection keeps one identity for its lifetime; re-sending the same
// name re-binds it (and may reclaim it from a newer connection).
func (r *router) handleIdentify(s *session, env protocol.Envelope) {
	req, err := protocol.DecodeData[protocol.Authenticate](env)
	if err != nil {
		r.sendError(s, reasonInvalidFormat, protocol.ErrMsgInvalidFormat)
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		r.sendAuthError(s, reasonIdentityRequired, protocol.ErrMsgUsernameRequired)
		return
	}
	if s.identity != "" && s.identity != req.Username {
		r.sendAuthError(s, reasonIdentityConflict, protocol.AlreadyAuthenticated(s.identity))
		return
	}

	connID := s.conn.ID()
	now := r.cfg.Now()
	current, alreadyBound := r.table.Lookup(req.Username)

	previous, replaced := r.table.Bind(req.Username, connID)
	if s.identity == "" {
		s.identity = req.Username
		s.identifiedAt = now
		s.logger = s.logger.With("identity", req.Username)
	}

	switch {
	case replaced:
		r.presenceChanged(PresenceEvent{
			Kind:           PresenceReplaced,
			Identity:       req.Username,
			ConnID:         connID,
			PreviousConnID: previous,
			At:             now,
		})
		s.logger.Info("identity moved to new connection", "previous_conn_id", previous)
	case !alreadyBound || current != connID:
		r.presenceChanged(PresenceEvent{
			Kind:     PresenceBound,
			Identity: req.Username,
			ConnID:   connID,
			At:       now,
		})
		s.logger.Info("identity online")
	}

	r.emit(s, protocol.EventAuthenticated, protocol.Authenticated{
		Success:  true,
		Username: req.Username,
	})
}

// handleSendMessage forwards one ciphertext and reports the outcome to the
// sender. One attempt, no queuing.
func (r *router) handleSendMessage(s *session, env protocol.Envelope) {
	from, ok := r.table.IdentityOf(s.conn.ID())
	if !ok {
		r.sendError(s, reasonNotAuthenticated, protocol.ErrMsgNotAuthenticated)
		return
	}

	req, err := protocol.DecodeData[protocol.SendMessage](env)
	if err != nil {
		r.sendError(s, reasonInvalidFormat, protocol.ErrMsgInvalidFormat)
		return
	}
	if req.To == "" || req.EncryptedContent == "" {
		r.sendError(s, reasonMissingFields, protocol.ErrMsgMessageRequired)
		return
	}

	id := req.ID
	if id == "" {
		id = r.cfg.NewID()
	}
	now := r.cfg.Now()
	stamp := protocol.FormatTime(now)

	recipient, online := r.lookupSession(req.To)
	if !online {
		r.stats.failed.Add(1)
		r.metrics.MessageRouted(protocol.StatusFailed)
		s.logger.Debug("recipient offline", "to", req.To, "message_id", id)

		r.emit(s, protocol.EventMessageDelivered, protocol.MessageDelivered{
			MessageID: id,
			Status:    protocol.StatusFailed,
			Timestamp: stamp,
			Error:     protocol.ErrMsgRecipientOffline,
		})
		return
	}

	r.emit(recipient, protocol.EventMessage, protocol.Message{
		ID:          id,
		From:        from,
		To:          req.To,
		Content:     req.EncryptedContent,
		Timestamp:   protocol.StampOrPassThrough(req.Timestamp, now),
		DeliveredAt: stamp,
	})

	r.stats.delivered.Add(1)
	r.metrics.MessageRouted(protocol.StatusDelivered)
	s.logger.Debug("message delivered", "to", req.To, "message_id", id)

	r.emit(s, protocol.EventMessageDelivered, protocol.MessageDelivered{
		MessageID: id,
		Status:    protocol.StatusDelivered,
		Timestamp: stamp,
	})
}

// handleMessageReceived relays a read confirmation to the original sender.
// Anything that cannot be relayed is dropped without telling either side.
func (r *router) handleMessageReceived(s *session, env protocol.Envelope) {
	readBy, ok := r.table.IdentityOf(s.conn.ID())
	if !ok {
		r.discardReceipt(s, "confirming connection not identified")
		return
	}

	req, err := protocol.DecodeData[protocol.MessageReceived](env)
	if err != nil || req.MessageID == "" || req.From == "" {
		r.discardReceipt(s, "incomplete read confirmation")
		return
	}

	sender, online := r.lookupSession(req.From)
	if !online {
		r.discardReceipt(s, "original sender offline")
		return
	}

	r.stats.receiptsRelayed.Add(1)
	r.metrics.ReadReceipt(resultRelayed)
	r.emit(sender, protocol.EventMessageRead, protocol.MessageRead{
		MessageID: req.MessageID,
		ReadBy:    readBy,
		Timestamp: protocol.FormatTime(r.cfg.Now()),
	})
}

// handleTyping relays a typing indicator. Best effort, never errors.
func (r *router) handleTyping(s *session, env protocol.Envelope) {
	from, ok := r.table.IdentityOf(s.conn.ID())
	if !ok {
		r.discardTyping(s, "sender not identified")
		return
	}

	req, err := protocol.DecodeData[protocol.Typing](env)
	if err != nil || req.To == "" {
		r.discardTyping(s, "incomplete typing signal")
		return
	}

	recipient, online := r.lookupSession(req.To)
	if !online {
		r.discardTyping(s, "recipient offline")
		return
	}

	r.stats.typingRelayed.Add(1)
	r.metrics.TypingSignal(resultRelayed)
	r.emit(recipient, protocol.EventUserTyping, protocol.UserTyping{
		From:     from,
		IsTyping: req.IsTyping,
	})
}

func (r *router) broadcast(message string) int {
	frame, err := protocol.Encode(protocol.EventBroadcast, protocol.Broadcast{
		Message:   message,
		Timestamp: protocol.FormatTime(r.cfg.Now()),
	})
	if err != nil {
		r.logger.Error("failed to encode broadcast", "error", err)
		return 0
	}

	sent := 0
	r.table.Each(func(identity, connID string) {
		s, ok := r.sessions[connID]
		if !ok {
			return
		}
		if r.sendFrame(s, protocol.EventBroadcast, frame) {
			sent++
		}
	})

	r.stats.broadcasts.Add(1)
	r.logger.Info("broadcast sent", "recipients", sent)
	return sent
}

// lookupSession resolves an identity to its live session.
func (r *router) lookupSession(identity string) (*session, bool) {
	connID, ok := r.table.Lookup(identity)
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[connID]
	return s, ok
}

func (r *router) presenceChanged(ev PresenceEvent) {
	n := r.table.Len()
	r.stats.identities.Store(int64(n))
	r.metrics.SetConnectedIdentities(n)

	if r.observer != nil {
		r.observer.PresenceChanged(ev)
	}
}

func (r *router) discardReceipt(s *session, why string) {
	r.stats.receiptsDiscarded.Add(1)
	r.metrics.ReadReceipt(resultDiscarded)
	s.logger.Debug("read confirmation discarded", "reason", why)
}

func (r *router) discardTyping(s *session, why string) {
	r.stats.typingDiscarded.Add(1)
	r.metrics.TypingSignal(resultDiscarded)
	s.logger.Debug("typing signal discarded", "reason", why)
}

func (r *router) sendError(s *session, reason, text string) {
	r.stats.validationErrors.Add(1)
	r.metrics.ProtocolError(reason)
	r.emit(s, protocol.EventError, protocol.ErrorPayload{Error: text})
}

func (r *router) sendAuthError(s *session, reason, text string) {
	r.stats.validationErrors.Add(1)
	r.metrics.ProtocolError(reason)
	r.emit(s, protocol.EventAuthError, protocol.ErrorPayload{Error: text})
}

// emit encodes and sends one event to s.
func (r *router) emit(s *session, event string, payload any) bool {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		s.logger.Error("failed to encode event", "event", event, "error", err)
		return false
	}
	return r.sendFrame(s, event, frame)
}

func (r *router) sendFrame(s *session, event string, frame []byte) bool {
	if s.conn.Send(frame) {
		return true
	}
	r.stats.droppedFrames.Add(1)
	r.metrics.FrameDropped()
	s.logger.Warn("outbound frame dropped", "event", event)
	return false
}
