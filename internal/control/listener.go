package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"pkt.systems/pslog"
)

const defaultMaxPayloadBytes = 4 * 1024

// Handler receives every valid command, in arrival order, on the
// listener's goroutine.
type Handler func(Command)

type Listener struct {
	handler Handler
	path    string

	MaxPayloadBytes int

	mu     sync.Mutex
	conn   *net.UnixConn
	closed bool
	log    pslog.Logger
}

func NewListener(socketPath string, handler Handler) *Listener {
	return &Listener{
		handler:         handler,
		path:            socketPath,
		MaxPayloadBytes: defaultMaxPayloadBytes,
	}
}

func (l *Listener) SocketPath() string {
	return l.path
}

// Start binds the socket and serves until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	if l.handler == nil {
		return fmt.Errorf("handler is required")
	}
	if l.path == "" {
		return fmt.Errorf("socket path is required")
	}
	if l.MaxPayloadBytes <= 0 {
		l.MaxPayloadBytes = defaultMaxPayloadBytes
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := os.Chmod(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("chmod socket dir: %w", err)
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	addr, err := net.ResolveUnixAddr("unixgram", l.path)
	if err != nil {
		return fmt.Errorf("resolve unix addr: %w", err)
	}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return fmt.Errorf("listen unixgram: %w", err)
	}
	if err := os.Chmod(l.path, 0o600); err != nil {
		_ = conn.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	l.mu.Lock()
	l.conn = conn
	l.closed = false
	l.log = pslog.Ctx(ctx).With("socket", l.path)
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.close()
	}()

	go l.readLoop()

	l.log.Debug("control socket listening")
	return nil
}

func (l *Listener) readLoop() {
	buf := make([]byte, l.MaxPayloadBytes)
	for {
		l.mu.Lock()
		conn := l.conn
		l.mu.Unlock()
		if conn == nil {
			return
		}

		n, _, err := conn.ReadFromUnix(buf)
		if err != nil {
			if l.isClosed() {
				return
			}
			continue
		}

		if n <= 0 || n >= l.MaxPayloadBytes {
			l.log.Warn("control command dropped", "reason", "size", "bytes", n)
			continue
		}

		var c Command
		if err := json.Unmarshal(buf[:n], &c); err != nil {
			l.log.Warn("control command dropped", "reason", "decode", "err", err)
			continue
		}
		if err := c.Validate(); err != nil {
			l.log.Warn("control command dropped", "reason", "invalid", "err", err)
			continue
		}
		l.handler(c)
	}
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Listener) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
	_ = os.Remove(l.path)
}
