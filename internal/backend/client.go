package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/timvw/dock-tabs/internal/logx"
)

const (
	// writeWait bounds a single frame write to a stalled peer.
	writeWait = 10 * time.Second
	// closeWait bounds the close handshake frame.
	closeWait = time.Second
)

// Client implements Backend over HTTP and websockets.
type Client struct {
	base   *url.URL
	opts   Options
	http   *http.Client
	dialer *websocket.Dialer
}

func newClient(base *url.URL, opts Options) *Client {
	dialer := *websocket.DefaultDialer
	if opts.DialTimeout > 0 {
		dialer.HandshakeTimeout = opts.DialTimeout
	}
	return &Client{
		base:   base,
		opts:   opts,
		http:   &http.Client{Timeout: opts.DialTimeout},
		dialer: &dialer,
	}
}

type logsResponse struct {
	Logs  string `json:"logs"`
	Error string `json:"error,omitempty"`
}

// FetchLogs issues GET {api}/containers/{id}/logs?tail=N.
func (c *Client) FetchLogs(ctx context.Context, containerID string, tail int) (string, error) {
	u := c.endpoint(c.opts.APIPrefix, containerID, "logs")
	q := u.Query()
	q.Set("tail", strconv.Itoa(tail))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build logs request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch logs: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return "", fmt.Errorf("read logs response: %w", err)
	}

	var out logsResponse
	decodeErr := json.Unmarshal(body, &out)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && out.Error != "" {
			return "", fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, out.Error)
		}
		return "", fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode logs response: %w", decodeErr)
	}
	return out.Logs, nil
}

// DialLogs opens {ws}/containers/{id}/logs.
func (c *Client) DialLogs(ctx context.Context, containerID string) (Conn, error) {
	return c.dial(ctx, c.streamURL(containerID, "logs", c.opts.AttachTokenToLogs))
}

// DialExec opens {ws}/containers/{id}/exec. The server authenticates
// websocket upgrades by the token query parameter, not by header.
func (c *Client) DialExec(ctx context.Context, containerID string) (Conn, error) {
	return c.dial(ctx, c.streamURL(containerID, "exec", true))
}

func (c *Client) dial(ctx context.Context, u *url.URL) (Conn, error) {
	logx.Ctx(ctx).Debug("dialing stream", "url", redact(u))
	ws, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", redact(u), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", redact(u), err)
	}
	return &wsConn{conn: ws, writeWait: writeWait}, nil
}

func (c *Client) endpoint(prefix, containerID, action string) *url.URL {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.Trim(prefix, "/") +
		"/containers/" + url.PathEscape(containerID) + "/" + action
	u.RawQuery = ""
	return &u
}

func (c *Client) streamURL(containerID, action string, withToken bool) *url.URL {
	u := c.endpoint(c.opts.WSPrefix, containerID, action)
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	if withToken && c.opts.Token != "" {
		q := u.Query()
		q.Set("token", c.opts.Token)
		u.RawQuery = q.Encode()
	}
	return u
}

// redact strips the token from an address before it reaches an error or log.
func redact(u *url.URL) string {
	if u.Query().Get("token") == "" {
		return u.String()
	}
	cp := *u
	q := cp.Query()
	q.Set("token", "REDACTED")
	cp.RawQuery = q.Encode()
	return cp.String()
}

// wsConn serializes writes: gorilla/websocket supports one concurrent
// reader and one concurrent writer.
type wsConn struct {
	conn      *websocket.Conn
	writeWait time.Duration

	mu     sync.Mutex
	closed bool
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	return data, err
}

func (w *wsConn) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrNotConnected
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeWait))
	return w.conn.WriteJSON(v)
}

func (w *wsConn) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWait))
	return w.conn.Close()
}

// IsNormalClose reports whether err is an orderly websocket close.
func IsNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}
