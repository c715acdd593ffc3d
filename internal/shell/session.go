// Package shell relays keystrokes between a local terminal surface and a
// remote container shell. Input is line-buffered locally: characters are
// echoed as they are typed and sent upstream on Enter.
package shell

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/timvw/dock-tabs/internal/backend"
	"github.com/timvw/dock-tabs/internal/logx"
	"github.com/timvw/dock-tabs/internal/model"
	telem "github.com/timvw/dock-tabs/internal/otel"
	"pkt.systems/pslog"
)

// DefaultPrompt is printed after the banner and after every submitted line.
const DefaultPrompt = "$ "

// Interrupt is the byte sent upstream for Ctrl+C.
const Interrupt = "\x03"

// Inline styling for local messages.
const (
	styleError  = "\x1b[31m"
	styleSystem = "\x1b[33m"
	styleReset  = "\x1b[0m"
	erase       = "\b \b"
)

// Surface is the rendering primitive a session draws on.
type Surface interface {
	Write(s string)
	Clear()
	Resize(cols, rows int)
	Content() string
}

// Options configures a Session. The zero value is usable.
type Options struct {
	// Notify is called after every visible change, outside the session lock.
	Notify func()
	// Metrics records frame and input counters. May be nil.
	Metrics *telem.Metrics
	// Prompt replaces DefaultPrompt when set.
	Prompt string
	// HistorySize bounds command history.
	HistorySize int
}

// Session is one interactive shell bound to a container. Local state is
// guarded by mu; surface writes happen under mu so echo and remote output
// interleave in a single order.
type Session struct {
	tab     model.Tab
	backend backend.Backend
	surface Surface
	opts    Options

	mu      sync.Mutex
	status  model.Status
	err     error
	conn    backend.Conn
	pending []rune
	hist    history
	dec     decoder
	closed  bool
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	ctx     context.Context
	log     pslog.Logger
}

// New returns a session in the connecting state. Call Start to dial.
func New(tab model.Tab, be backend.Backend, surface Surface, opts Options) *Session {
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	return &Session{
		tab:     tab,
		backend: be,
		surface: surface,
		opts:    opts,
		status:  model.StatusConnecting,
		hist:    newHistory(opts.HistorySize),
		done:    make(chan struct{}),
		ctx:     context.Background(),
		log:     pslog.Ctx(context.Background()),
	}
}

// Tab returns the tab this session backs.
func (s *Session) Tab() model.Tab { return s.tab }

// Surface returns the surface the session draws on.
func (s *Session) Surface() Surface { return s.surface }

// Start dials the exec stream in the background. Calling it twice or
// after Close does nothing.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.ctx = ctx
	s.log = logx.WithTab(ctx, s.tab)
	s.surface.Write(styleSystem + "Connecting to container " + s.tab.ContainerName + "..." + styleReset + "\r\n")
	s.mu.Unlock()
	s.notify()

	go s.run(ctx)
}

// Done is closed once the stream goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	conn, err := s.backend.DialExec(ctx, s.tab.ContainerID)
	if err != nil {
		if s.isClosed() {
			return
		}
		s.log.Warn("exec dial failed", "err", err)
		s.finish(model.StatusError, err)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.status = model.StatusInteractive
	s.surface.Clear()
	s.surface.Write("Connected to container " + s.tab.ContainerName + "\r\n")
	s.surface.Write(s.opts.Prompt)
	s.mu.Unlock()
	s.log.Info("exec session open")
	s.notify()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if s.isClosed() {
				return
			}
			if backend.IsNormalClose(err) {
				s.finish(model.StatusClosed, nil)
			} else {
				s.log.Warn("exec read failed", "err", err)
				s.finish(model.StatusError, err)
			}
			return
		}
		s.handleFrame(ctx, data)
	}
}

func (s *Session) handleFrame(ctx context.Context, data []byte) {
	frame := backend.ParseExecFrame(data)
	s.opts.Metrics.RecordFrame(ctx, string(model.KindTerminal), frame.Type.String())

	var out string
	switch frame.Type {
	case backend.ExecFrameOutput, backend.ExecFrameRaw:
		out = frame.Data
	case backend.ExecFrameError:
		out = styleError + frame.Data + styleReset
	default:
		return
	}
	if out == "" {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.surface.Write(out)
	s.mu.Unlock()
	s.notify()
}

// finish records a terminal status, prints one inline status line and
// releases the connection.
func (s *Session) finish(status model.Status, err error) {
	s.mu.Lock()
	if s.closed || s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.err = err
	conn := s.conn
	if err != nil {
		s.surface.Write("\r\n" + styleError + "Connection error: " + err.Error() + styleReset + "\r\n")
	} else {
		s.surface.Write("\r\n" + styleSystem + "Connection closed" + styleReset + "\r\n")
	}
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	s.notify()
}

// HandleInput feeds raw keyboard input to the line editor.
func (s *Session) HandleInput(data string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	for _, k := range s.dec.decode(data) {
		s.applyKeyLocked(k)
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) applyKeyLocked(k key) {
	switch k.kind {
	case keyRune, keyTab:
		s.pending = append(s.pending, k.r)
		s.surface.Write(string(k.r))
	case keyBackspace:
		if len(s.pending) > 0 {
			s.pending = s.pending[:len(s.pending)-1]
			s.surface.Write(erase)
		}
	case keyEnter:
		line := string(s.pending)
		s.surface.Write("\r\n")
		if strings.TrimSpace(line) != "" {
			s.hist.add(line)
			s.sendLocked(line + "\n")
		}
		s.pending = s.pending[:0]
		s.surface.Write(s.opts.Prompt)
	case keyInterrupt:
		s.sendLocked(Interrupt)
		s.surface.Write("^C\r\n" + s.opts.Prompt)
		s.pending = s.pending[:0]
	case keyClear:
		s.surface.Clear()
		s.surface.Write(s.opts.Prompt + string(s.pending))
	case keyUp:
		if cmd, ok := s.hist.older(); ok {
			s.replacePendingLocked(cmd)
		}
	case keyDown:
		if cmd, ok := s.hist.newer(); ok {
			s.replacePendingLocked(cmd)
		}
	}
}

func (s *Session) replacePendingLocked(text string) {
	s.surface.Write(strings.Repeat(erase, len(s.pending)))
	s.pending = append(s.pending[:0], []rune(text)...)
	s.surface.Write(text)
}

// sendLocked writes one input frame. When the stream is not open it prints
// an inline error instead; nothing is queued.
func (s *Session) sendLocked(data string) {
	if s.conn == nil || s.status != model.StatusInteractive {
		s.surface.Write(styleError + "Cannot send - not connected" + styleReset + "\r\n")
		s.opts.Metrics.RecordInputRejected(s.ctx)
		return
	}
	if err := s.conn.WriteJSON(backend.NewInputFrame(data)); err != nil {
		s.log.Warn("exec input send failed", "err", err)
		s.surface.Write(styleError + fmt.Sprintf("Send failed: %v", err) + styleReset + "\r\n")
		return
	}
	s.opts.Metrics.RecordInputSent(s.ctx)
}

// Fit resizes the surface to the character grid of its panel.
func (s *Session) Fit(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}
	s.mu.Lock()
	s.surface.Resize(cols, rows)
	s.mu.Unlock()
	s.notify()
}

// Content renders the surface.
func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface.Content()
}

// ClearScreen empties the surface and reprints the prompt line.
func (s *Session) ClearScreen() {
	s.mu.Lock()
	s.surface.Clear()
	if s.status == model.StatusInteractive {
		s.surface.Write(s.opts.Prompt + string(s.pending))
	}
	s.mu.Unlock()
	s.notify()
}

// Close releases the connection. Events that arrive afterwards are
// discarded. Close is idempotent.
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
	log := s.log
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
	log.Debug("exec session closed")
}

// Status returns the lifecycle status.
func (s *Session) Status() model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Pending returns the not yet submitted input line.
func (s *Session) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.pending)
}

// History returns submitted commands, most recent last.
func (s *Session) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.list()
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
