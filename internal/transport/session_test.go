package transport

import (
	"log/slog"
	"testing"
)

func TestSession_SendDropsWhenOutboxFull(t *testing.T) {
	cfg := Config{OutboxInitial: 1, OutboxMax: 2}.withDefaults()
	s := newSession("c1", nil, cfg, slog.Default())

	if !s.Send([]byte("a")) || !s.Send([]byte("b")) {
		t.Fatal("Send below OutboxMax returned false")
	}
	if s.Send([]byte("c")) {
		t.Error("Send beyond OutboxMax returned true")
	}
	if s.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", s.Pending())
	}
}

func TestSession_SendAfterCloseFails(t *testing.T) {
	s := newSession("c1", nil, DefaultConfig(), slog.Default())
	s.outbox.Close()

	if s.Send([]byte("late")) {
		t.Error("Send after outbox close returned true")
	}
	if s.ID() != "c1" {
		t.Errorf("ID() = %q, want c1", s.ID())
	}
}
