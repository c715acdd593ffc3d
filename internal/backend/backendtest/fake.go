// Package backendtest provides in-memory Backend and Conn fakes for tests.
package backendtest

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/timvw/dock-tabs/internal/backend"
)

// Conn is an in-memory backend.Conn. Frames pushed with Push are returned
// by ReadMessage in order.
type Conn struct {
	frames chan []byte
	done   chan struct{}

	mu       sync.Mutex
	closed   bool
	closeErr error // error ReadMessage returns once frames drain
	written  []any
	closes   int
	reads    int
}

// NewConn returns an open fake connection.
func NewConn() *Conn {
	return &Conn{
		frames: make(chan []byte, 1024),
		done:   make(chan struct{}),
	}
}

// Push queues a server→client frame.
func (c *Conn) Push(frame string) {
	c.frames <- []byte(frame)
}

// Drop ends the connection from the remote side with err (io.EOF when nil).
func (c *Conn) Drop(err error) {
	if err == nil {
		err = io.EOF
	}
	c.mu.Lock()
	c.closeErr = err
	c.mu.Unlock()
	close(c.frames)
}

func (c *Conn) ReadMessage() ([]byte, error) {
	c.mu.Lock()
	c.reads++
	c.mu.Unlock()
	select {
	case f, ok := <-c.frames:
		if ok {
			return f, nil
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		return nil, c.closeErr
	case <-c.done:
		return nil, errors.New("use of closed connection")
	}
}

func (c *Conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return backend.ErrNotConnected
	}
	c.written = append(c.written, v)
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

// Written returns every value passed to WriteJSON.
func (c *Conn) Written() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.written...)
}

// Inputs returns the data of every written backend.InputFrame.
func (c *Conn) Inputs() []string {
	var out []string
	for _, v := range c.Written() {
		if f, ok := v.(backend.InputFrame); ok {
			out = append(out, f.Data)
		}
	}
	return out
}

// Reads reports how many times ReadMessage was entered. A reader that
// processes frames one at a time has fully handled n frames once Reads
// exceeds n.
func (c *Conn) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// CloseCount reports how many times Close was called.
func (c *Conn) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Backend is an in-memory backend.Backend.
type Backend struct {
	// Logs is returned by FetchLogs.
	Logs string
	// FetchErr, when set, is returned by FetchLogs.
	FetchErr error
	// FetchGate, when set, blocks FetchLogs until it is closed.
	FetchGate chan struct{}
	// DialErr, when set, is returned by both dial methods.
	DialErr error
	// DialGate, when set, blocks dialing until it is closed.
	DialGate chan struct{}
	// DialStarted, when set, is closed when the first dial call begins.
	DialStarted chan struct{}

	dialOnce sync.Once
	mu       sync.Mutex
	conns    []*Conn
	dials    chan *Conn
}

// NewBackend returns a fake whose dial calls are observable via Dialed.
func NewBackend() *Backend {
	return &Backend{dials: make(chan *Conn, 64)}
}

func (b *Backend) FetchLogs(ctx context.Context, containerID string, tail int) (string, error) {
	if b.FetchGate != nil {
		select {
		case <-b.FetchGate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if b.FetchErr != nil {
		return "", b.FetchErr
	}
	return b.Logs, nil
}

func (b *Backend) DialLogs(ctx context.Context, containerID string) (backend.Conn, error) {
	return b.dial(ctx)
}

func (b *Backend) DialExec(ctx context.Context, containerID string) (backend.Conn, error) {
	return b.dial(ctx)
}

func (b *Backend) dial(ctx context.Context) (backend.Conn, error) {
	if b.DialStarted != nil {
		b.dialOnce.Do(func() { close(b.DialStarted) })
	}
	if b.DialGate != nil {
		<-b.DialGate
	}
	if b.DialErr != nil {
		return nil, b.DialErr
	}
	c := NewConn()
	b.mu.Lock()
	b.conns = append(b.conns, c)
	b.mu.Unlock()
	if b.dials != nil {
		b.dials <- c
	}
	return c, nil
}

// Dialed returns a channel receiving every connection as it is dialed.
func (b *Backend) Dialed() <-chan *Conn {
	return b.dials
}

// Conns returns every connection dialed so far.
func (b *Backend) Conns() []*Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Conn(nil), b.conns...)
}
