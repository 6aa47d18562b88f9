package api

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Status             string   `json:"status"`
	ConnectedUsers     int      `json:"connectedUsers"`
	ConnectedUsernames []string `json:"connectedUsernames"`
}

// PresenceResponse is returned by GET /users/:username/presence.
type PresenceResponse struct {
	Username  string `json:"username"`
	IsOnline  bool   `json:"isOnline"`
	CheckedAt string `json:"checkedAt"`
}

// BroadcastRequest is the body of POST /broadcast.
type BroadcastRequest struct {
	Message string `json:"message"`
}

// BroadcastResponse reports how many sessions accepted the broadcast.
type BroadcastResponse struct {
	Delivered int `json:"delivered"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string            `json:"status"` // "ok" or "degraded"
	Version    map[string]string `json:"version"`
	Components map[string]string `json:"components"`
	Router     RouterHealth      `json:"router"`
}

// RouterHealth is a subset of router statistics exposed for operators.
type RouterHealth struct {
	Sessions          int64 `json:"sessions"`
	Identities        int64 `json:"identities"`
	EventsReceived    int64 `json:"eventsReceived"`
	MessagesDelivered int64 `json:"messagesDelivered"`
	MessagesFailed    int64 `json:"messagesFailed"`
	DroppedFrames     int64 `json:"droppedFrames"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
