package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TimeLayout is RFC 3339 in UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrMalformed is returned when a frame is not a valid envelope.
var ErrMalformed = errors.New("malformed frame")

// Decode parses one frame into an Envelope.
// A frame without an event name is malformed.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event name", ErrMalformed)
	}
	return env, nil
}

// DecodeData unmarshals the envelope payload into T.
// An absent or null payload yields the zero value.
func DecodeData[T any](env Envelope) (T, error) {
	var v T
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %s data: %v", ErrMalformed, env.Event, err)
	}
	return v, nil
}

// Encode builds a frame for event with payload as its data.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// FormatTime renders t the way the relay stamps every outbound timestamp.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// StampOrPassThrough returns the client's raw timestamp when present,
// otherwise now encoded as a JSON string.
func StampOrPassThrough(raw json.RawMessage, now time.Time) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		return raw
	}
	b, _ := json.Marshal(FormatTime(now))
	return b
}
