package protocol

import "encoding/json"

// Client -> relay event names.
const (
	EventAuthenticate    = "authenticate"
	EventIdentify        = "identify" // alias of authenticate
	EventSendMessage     = "sendMessage"
	EventMessageReceived = "messageReceived"
	EventTyping          = "typing"
)

// Relay -> client event names.
const (
	EventAuthenticated    = "authenticated"
	EventAuthError        = "authError"
	EventMessage          = "message"
	EventMessageDelivered = "messageDelivered"
	EventMessageRead      = "messageRead"
	EventUserTyping       = "userTyping"
	EventError            = "error"
	EventBroadcast        = "broadcast"
)

// Delivery receipt statuses.
const (
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// Error strings carried on the wire. Clients match on these.
const (
	ErrMsgUsernameRequired   = "username is required"
	ErrMsgNotAuthenticated   = "not authenticated"
	ErrMsgMessageRequired    = "recipient and message content are required"
	ErrMsgInvalidFormat      = "invalid message format"
	ErrMsgRecipientOffline   = "recipient offline"
	errMsgAlreadyAuthPrefix  = "already authenticated as "
	errMsgUnknownEventPrefix = "unknown event: "
)

// AlreadyAuthenticated is the authError text for a connection that tries
// to switch identity.
func AlreadyAuthenticated(identity string) string {
	return errMsgAlreadyAuthPrefix + identity
}

// UnknownEvent is the error text for an unrecognised event name.
func UnknownEvent(name string) string {
	return errMsgUnknownEventPrefix + name
}

// Envelope is the frame wrapper for every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// --- client -> relay payloads ---

// Authenticate carries the identity claim. It is trusted as asserted.
type Authenticate struct {
	Username string `json:"username"`
}

// SendMessage asks the relay to forward an opaque ciphertext.
// Timestamp is the client's send time and is passed through untouched.
type SendMessage struct {
	To               string          `json:"to"`
	EncryptedContent string          `json:"encryptedContent"`
	Timestamp        json.RawMessage `json:"timestamp,omitempty"`
	ID               string          `json:"id,omitempty"`
}

// MessageReceived is the recipient's read confirmation for a message.
type MessageReceived struct {
	MessageID string `json:"messageId"`
	From      string `json:"from"`
}

// Typing toggles the typing indicator shown to To.
type Typing struct {
	To       string `json:"to"`
	IsTyping bool   `json:"isTyping"`
}

// --- relay -> client payloads ---

// Authenticated acknowledges a successful identify.
type Authenticated struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
}

// ErrorPayload is the body of both authError and error events.
type ErrorPayload struct {
	Error string `json:"error"`
}

// Message is a forwarded ciphertext as seen by the recipient.
type Message struct {
	ID          string          `json:"id"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Content     string          `json:"content"`
	Timestamp   json.RawMessage `json:"timestamp"`
	DeliveredAt string          `json:"deliveredAt"`
}

// MessageDelivered is the sender-scoped delivery receipt.
type MessageDelivered struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// MessageRead relays a read confirmation back to the original sender.
type MessageRead struct {
	MessageID string `json:"messageId"`
	ReadBy    string `json:"readBy"`
	Timestamp string `json:"timestamp"`
}

// UserTyping is the typing indicator as seen by the recipient.
type UserTyping struct {
	From     string `json:"from"`
	IsTyping bool   `json:"isTyping"`
}

// Broadcast is an operator-issued notice sent to every identified session.
type Broadcast struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}
