package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rafi-haque/Secure-Chat/internal/version"
)

// Client talks to a relay's HTTP surface.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a client for the relay at baseURL (e.g. http://localhost:8080).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: version.UserAgent("relayctl"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: 500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration for idempotent requests.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Status returns the relay's presence summary.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.get(ctx, "/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Presence reports whether username is connected.
func (c *Client) Presence(ctx context.Context, username string) (*PresenceResponse, error) {
	var resp PresenceResponse
	if err := c.get(ctx, "/users/"+url.PathEscape(username)+"/presence", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Broadcast sends message to every identified session. It is not retried:
// a 5xx may follow a partial fan-out.
func (c *Client) Broadcast(ctx context.Context, message string) (int, error) {
	var resp BroadcastResponse
	if err := c.post(ctx, "/broadcast", BroadcastRequest{Message: message}, &resp); err != nil {
		return 0, err
	}
	return resp.Delivered, nil
}

// Health returns the relay's health report. A degraded relay answers 503,
// which is returned as an *APIError whose Body holds the report.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/health", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
