// Package logstream implements the live log tail behind a logs tab: a
// historical bootstrap fetch, one streaming connection, and a bounded
// buffer of parsed entries.
package logstream

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/timvw/dock-tabs/internal/backend"
	"github.com/timvw/dock-tabs/internal/logx"
	"github.com/timvw/dock-tabs/internal/model"
	telem "github.com/timvw/dock-tabs/internal/otel"
	"pkt.systems/pslog"
)

var tracer = otel.Tracer("dock-tabs")

// Options configures a Session. The zero value is usable.
type Options struct {
	// Notify is called after every state change, outside the session lock.
	Notify func()
	// Metrics records frame and drop counters. May be nil.
	Metrics *telem.Metrics
	// Now supplies timestamps for lines that carry none.
	Now func() time.Time
	// Capacity bounds the buffer (model.LogCapacity when zero).
	Capacity int
	// FollowThreshold is the auto-scroll proximity in rows.
	FollowThreshold int
}

// Session is one container's log tail. All state is guarded by mu and
// mutated only by the stream goroutine or explicit user actions.
type Session struct {
	tab     model.Tab
	backend backend.Backend
	opts    Options

	mu      sync.Mutex
	buf     *Buffer
	nextID  int
	status  model.Status
	paused  bool
	err     error
	follow  Follower
	conn    backend.Conn
	closed  bool
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	log     pslog.Logger
}

// New returns a session for tab in the connecting state. Call Start to
// begin streaming.
func New(tab model.Tab, be backend.Backend, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		tab:     tab,
		backend: be,
		opts:    opts,
		buf:     NewBuffer(opts.Capacity),
		status:  model.StatusConnecting,
		follow:  NewFollower(opts.FollowThreshold),
		done:    make(chan struct{}),
		log:     pslog.Ctx(context.Background()),
	}
}

// Tab returns the tab this session backs.
func (s *Session) Tab() model.Tab { return s.tab }

// Start bootstraps history and opens the stream in the background. It
// returns immediately; calling it twice or after Close does nothing.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.log = logx.WithTab(ctx, s.tab)
	s.mu.Unlock()

	go s.run(ctx)
}

// Done is closed once the stream goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	s.bootstrap(ctx)
	if s.isClosed() {
		return
	}

	conn, err := s.backend.DialLogs(ctx, s.tab.ContainerID)
	if err != nil {
		if s.isClosed() {
			return
		}
		s.log.Warn("log stream dial failed", "err", err)
		s.finish(model.StatusStatic, err)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.status = model.StatusStreaming
	s.mu.Unlock()
	s.log.Info("log stream open")
	s.notify()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if s.isClosed() {
				return
			}
			if !backend.IsNormalClose(err) {
				s.log.Warn("log stream read failed", "err", err)
			}
			s.finish(model.StatusStatic, nil)
			return
		}
		if done := s.handleFrame(ctx, data); done {
			return
		}
	}
}

// bootstrap seeds the buffer with recent history. Failures are logged and
// swallowed; streaming proceeds either way.
func (s *Session) bootstrap(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "logs.bootstrap",
		trace.WithAttributes(
			attribute.String("container.id", s.tab.ContainerID),
			attribute.Int("logs.tail", model.LogBootstrapTail),
		),
	)
	defer span.End()

	text, err := s.backend.FetchLogs(ctx, s.tab.ContainerID, model.LogBootstrapTail)
	if err != nil {
		if !s.isClosed() {
			s.log.Warn("log bootstrap failed", "err", err)
		}
		span.SetAttributes(attribute.String("error", err.Error()))
		return
	}

	now := s.opts.Now()
	lines := SplitLines(text)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	entries := make([]model.LogEntry, 0, len(lines))
	for _, line := range lines {
		ts, content, ok := ParseLine(line, now)
		if !ok {
			continue
		}
		entries = append(entries, s.newEntryLocked(ts, content))
	}
	s.buf.Reset(entries)
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("logs.entries", len(entries)))
	s.log.Debug("log bootstrap loaded", "entries", len(entries))
	s.notify()
}

// handleFrame applies one inbound frame and reports whether the stream ended.
func (s *Session) handleFrame(ctx context.Context, data []byte) bool {
	frame := backend.ParseLogFrame(data)
	s.opts.Metrics.RecordFrame(ctx, string(model.KindLogs), frame.Type.String())

	switch frame.Type {
	case backend.LogFrameClosed:
		s.log.Info("log stream closed by server", "reason", frame.Data)
		s.finish(model.StatusStatic, nil)
		return true
	case backend.LogFrameError:
		s.log.Warn("log stream error frame", "error", frame.Data)
		s.finish(model.StatusStatic, errors.New(frame.Data))
		return true
	case backend.LogFrameIgnored:
		return false
	}

	// Log and raw frames both carry one line.
	ts, content, ok := ParseLine(frame.Data, s.opts.Now())
	if !ok {
		s.opts.Metrics.RecordLogDropped(ctx, "blank")
		return false
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return true
	}
	if s.paused {
		s.mu.Unlock()
		s.opts.Metrics.RecordLogDropped(ctx, "paused")
		return false
	}
	s.buf.Append(s.newEntryLocked(ts, content))
	s.mu.Unlock()
	s.notify()
	return false
}

func (s *Session) newEntryLocked(ts, content string) model.LogEntry {
	s.nextID++
	return model.LogEntry{
		ID:        s.nextID,
		Timestamp: ts,
		Content:   content,
		Stream:    model.StreamStdout,
	}
}

// finish moves the session to a terminal status and releases the connection.
func (s *Session) finish(status model.Status, err error) {
	s.mu.Lock()
	if s.closed || s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.err = err
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	s.notify()
}

func (s *Session) logger() pslog.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) notify() {
	if s.opts.Notify != nil {
		s.opts.Notify()
	}
}

// Close releases the connection and stops the stream goroutine. Results
// that arrive afterwards are discarded. Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if !s.status.Terminal() {
		s.status = model.StatusClosed
	}
	conn := s.conn
	cancel := s.cancel
	started := s.started
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if !started {
		close(s.done)
	}
	s.logger().Debug("log session closed")
}

// Pause stops appending inbound entries. Frames that arrive while paused
// are dropped, not queued.
func (s *Session) Pause() { s.setPaused(true) }

// Resume appends inbound entries again. Nothing missed is replayed.
func (s *Session) Resume() { s.setPaused(false) }

// TogglePause flips the paused flag and returns the new value.
func (s *Session) TogglePause() bool {
	s.mu.Lock()
	p := !s.paused
	s.mu.Unlock()
	s.setPaused(p)
	return p
}

func (s *Session) setPaused(p bool) {
	s.mu.Lock()
	if s.paused == p {
		s.mu.Unlock()
		return
	}
	s.paused = p
	s.mu.Unlock()
	s.logger().Debug("log stream pause toggled", "paused", p)
	s.notify()
}

// Clear empties the buffer and restarts entry ids. The connection is left
// untouched.
func (s *Session) Clear() {
	s.mu.Lock()
	s.buf.Clear()
	s.nextID = 0
	s.mu.Unlock()
	s.notify()
}

// Entries returns a snapshot of the buffer, oldest first.
func (s *Session) Entries() []model.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Snapshot()
}

// Len returns the number of buffered entries.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

// Status returns the lifecycle status. A paused live stream reports
// StatusPaused.
func (s *Session) Status() model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused && s.status == model.StatusStreaming {
		return model.StatusPaused
	}
	return s.status
}

// Paused reports whether appending is suspended.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Err returns the error that ended the stream, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Scrolled records a manual scroll leaving the view distance rows from
// the bottom.
func (s *Session) Scrolled(distance int) {
	s.mu.Lock()
	s.follow.Scrolled(distance)
	s.mu.Unlock()
}

// Follow re-enables auto-scroll.
func (s *Session) Follow() {
	s.mu.Lock()
	s.follow.Follow()
	s.mu.Unlock()
	s.notify()
}

// Following reports whether the view should track new entries.
func (s *Session) Following() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.follow.Following()
}
