// relayctl inspects and drives a running relay.
//
// Usage:
//
//	relayctl [flags] status
//	relayctl [flags] health
//	relayctl [flags] presence <username>
//	relayctl [flags] broadcast <message>
//	relayctl [flags] listen <username>
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rafi-haque/Secure-Chat/internal/api"
	"github.com/rafi-haque/Secure-Chat/internal/connection"
	"github.com/rafi-haque/Secure-Chat/internal/protocol"
	"github.com/rafi-haque/Secure-Chat/internal/version"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "relay base URL")
	wsPath := flag.String("ws-path", "/ws", "relay websocket path")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Usage = usage
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := api.NewClient(*baseURL, api.WithTimeout(*timeout), api.WithLogger(logger))

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "status":
		err = status(ctx, os.Stdout, client)
	case "health":
		err = health(ctx, os.Stdout, client)
	case "presence":
		if len(rest) != 1 {
			err = errors.New("usage: presence <username>")
			break
		}
		err = presence(ctx, os.Stdout, client, rest[0])
	case "broadcast":
		if len(rest) == 0 {
			err = errors.New("usage: broadcast <message>")
			break
		}
		err = broadcast(ctx, os.Stdout, client, strings.Join(rest, " "))
	case "listen":
		if len(rest) != 1 {
			err = errors.New("usage: listen <username>")
			break
		}
		var wsURL string
		if wsURL, err = websocketURL(*baseURL, *wsPath); err == nil {
			err = listen(ctx, os.Stdout, wsURL, rest[0], logger)
		}
	case "version":
		fmt.Println(version.String())
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "relayctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: relayctl [flags] status|health|presence <user>|broadcast <message>|listen <user>|version\n")
	flag.PrintDefaults()
}

func status(ctx context.Context, w io.Writer, c *api.Client) error {
	resp, err := c.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d connected\n", resp.Status, resp.ConnectedUsers)
	for _, name := range resp.ConnectedUsernames {
		fmt.Fprintf(w, "  %s\n", name)
	}
	return nil
}

func health(ctx context.Context, w io.Writer, c *api.Client) error {
	resp, err := c.Health(ctx)
	if err != nil {
		// A degraded relay still returns its report.
		var apiErr *api.APIError
		if !errors.As(err, &apiErr) || json.Unmarshal(apiErr.Body, &resp) != nil {
			return err
		}
	}
	return printJSON(w, resp)
}

func presence(ctx context.Context, w io.Writer, c *api.Client, username string) error {
	resp, err := c.Presence(ctx, username)
	if err != nil {
		return err
	}
	state := "offline"
	if resp.IsOnline {
		state = "online"
	}
	fmt.Fprintf(w, "%s is %s (checked %s)\n", resp.Username, state, resp.CheckedAt)
	return nil
}

func broadcast(ctx context.Context, w io.Writer, c *api.Client, message string) error {
	n, err := c.Broadcast(ctx, message)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "delivered to %d session(s)\n", n)
	return nil
}

// listen identifies as username and prints every frame the relay sends
// until ctx ends or the connection fails.
func listen(ctx context.Context, w io.Writer, wsURL, username string, logger *slog.Logger) error {
	cfg := connection.DefaultClientConfig()
	cfg.URL = wsURL
	cfg.UserAgent = version.UserAgent("relayctl")

	conn := connection.NewClient(cfg, logger)
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Emit(protocol.EventAuthenticate, protocol.Authenticate{Username: username}); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-conn.Errors():
			return fmt.Errorf("connection lost: %w", err)
		case msg := <-conn.Messages():
			fmt.Fprintf(w, "%s %s\n", protocol.FormatTime(msg.ReceivedAt), msg.Data)
		}
	}
}

// websocketURL maps an http(s) base URL to the relay's ws(s) endpoint.
func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
