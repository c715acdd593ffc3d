// Package backend is the transport to the container management server:
// one REST call for historical logs and two websocket endpoints for live
// log streaming and interactive exec.
//
// This package only moves bytes and frames. It never interprets log content
// or decides session state; that belongs to the session packages.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	// ErrNotConnected is returned when writing to a connection that is not open.
	ErrNotConnected = errors.New("not connected")
	// ErrUnexpectedStatus is returned for non-2xx REST responses.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// Conn is one persistent duplex streaming connection.
// ReadMessage blocks until a frame arrives or the connection ends.
// WriteJSON may be called concurrently with ReadMessage. Close is idempotent
// and unblocks a pending ReadMessage.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Backend abstracts the container management server.
type Backend interface {
	// FetchLogs returns up to tail historical log lines as newline-delimited text.
	FetchLogs(ctx context.Context, containerID string, tail int) (string, error)

	// DialLogs opens the live log stream for a container.
	DialLogs(ctx context.Context, containerID string) (Conn, error)

	// DialExec opens an interactive shell in a container.
	DialExec(ctx context.Context, containerID string) (Conn, error)
}

// Options configures a Client.
type Options struct {
	APIPrefix string // default "/api"
	WSPrefix  string // default "/ws"
	Token     string
	// AttachTokenToLogs also passes the token on the log stream address.
	// The exec stream always carries it when set.
	AttachTokenToLogs bool
	DialTimeout       time.Duration
}

// FromURL creates a Client for the given server base URL.
func FromURL(server string, opts Options) (*Client, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", server, err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported server scheme %q (supported: http, https)", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: missing host", server)
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api"
	}
	if opts.WSPrefix == "" {
		opts.WSPrefix = "/ws"
	}
	return newClient(u, opts), nil
}
