package shell

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/timvw/dock-tabs/internal/backend/backendtest"
	"github.com/timvw/dock-tabs/internal/model"
	"github.com/timvw/dock-tabs/internal/screen"
)

var testTab = model.Tab{ID: "c1-terminal-1", Kind: model.KindTerminal, ContainerID: "c1", ContainerName: "web"}

func openSession(t *testing.T) (*Session, *screen.Screen, *backendtest.Conn) {
	t.Helper()
	be := backendtest.NewBackend()
	scr := screen.New(0)
	s := New(testTab, be, scr, Options{})
	s.Start(context.Background())
	t.Cleanup(s.Close)

	var conn *backendtest.Conn
	select {
	case conn = <-be.Dialed():
	case <-time.After(2 * time.Second):
		t.Fatal("exec stream was never dialed")
	}
	waitFor(t, 2*time.Second, func() bool { return s.Status() == model.StatusInteractive })
	return s, scr, conn
}

func TestOpenPrintsBannerAndPrompt(t *testing.T) {
	_, scr, _ := openSession(t)
	if got := scr.Plain(); got != "Connected to container web\n$ " {
		t.Errorf("screen = %q", got)
	}
}

func TestTypedLineIsSentOnEnter(t *testing.T) {
	s, scr, conn := openSession(t)
	s.HandleInput("ls -la")
	if s.Pending() != "ls -la" {
		t.Fatalf("Pending = %q", s.Pending())
	}
	if len(conn.Inputs()) != 0 {
		t.Fatal("nothing should be sent before Enter")
	}
	s.HandleInput("\r")

	if got := conn.Inputs(); len(got) != 1 || got[0] != "ls -la\n" {
		t.Fatalf("inputs = %q", got)
	}
	if s.Pending() != "" {
		t.Errorf("Pending after Enter = %q", s.Pending())
	}
	if !strings.HasSuffix(scr.Plain(), "$ ls -la\n$ ") {
		t.Errorf("screen = %q", scr.Plain())
	}
	if h := s.History(); len(h) != 1 || h[0] != "ls -la" {
		t.Errorf("history = %q", h)
	}
}

func TestEnterOnBlankSendsNothing(t *testing.T) {
	s, scr, conn := openSession(t)
	s.HandleInput("\r")
	s.HandleInput("   \r")
	if got := conn.Inputs(); len(got) != 0 {
		t.Fatalf("inputs = %q, want none", got)
	}
	if got := scr.Plain(); got != "Connected to container web\n$ \n$    \n$ " {
		t.Errorf("screen = %q", got)
	}
}

func TestCtrlCSendsOneInterrupt(t *testing.T) {
	for _, typed := range []string{"", "sleep 100"} {
		s, scr, conn := openSession(t)
		s.HandleInput(typed)
		s.HandleInput("\x03")

		if got := conn.Inputs(); len(got) != 1 || got[0] != Interrupt {
			t.Fatalf("typed %q: inputs = %q, want one interrupt", typed, got)
		}
		if s.Pending() != "" {
			t.Errorf("typed %q: pending = %q", typed, s.Pending())
		}
		if !strings.HasSuffix(scr.Plain(), "^C\n$ ") {
			t.Errorf("typed %q: screen = %q", typed, scr.Plain())
		}
	}
}

func TestBackspace(t *testing.T) {
	s, scr, _ := openSession(t)
	s.HandleInput("lsx\x7f")
	if s.Pending() != "ls" {
		t.Fatalf("Pending = %q", s.Pending())
	}
	s.HandleInput("\x7f\x7f\x7f")
	if s.Pending() != "" {
		t.Fatalf("Pending = %q", s.Pending())
	}
	lines := strings.Split(scr.Plain(), "\n")
	if got := strings.TrimRight(lines[len(lines)-1], " "); got != "$" {
		t.Errorf("prompt line = %q", lines[len(lines)-1])
	}
}

func TestCtrlLClearsLocally(t *testing.T) {
	s, scr, conn := openSession(t)
	s.HandleInput("echo hi\r")
	s.HandleInput("pw\x0c")
	if got := scr.Plain(); got != "$ pw" {
		t.Errorf("screen = %q", got)
	}
	if got := conn.Inputs(); len(got) != 1 {
		t.Errorf("Ctrl+L must not contact the remote, inputs = %q", got)
	}
}

func TestOutputFrames(t *testing.T) {
	_, scr, conn := openSession(t)
	conn.Push(`{"type":"output","data":"\u001b[32mok\u001b[0m\r\n"}`)
	conn.Push(`{"type":"error","data":"denied"}`)
	conn.Push("plain")
	conn.Push(`{"type":"resize"}`)

	waitFor(t, 2*time.Second, func() bool { return strings.HasSuffix(scr.Plain(), "deniedplain") })
	content := scr.Content()
	if !strings.Contains(content, "\x1b[32mok") {
		t.Errorf("output styling not kept: %q", content)
	}
	if !strings.Contains(content, "\x1b[31mdenied") {
		t.Errorf("error frame not red: %q", content)
	}
}

func TestSendWhileConnecting(t *testing.T) {
	be := backendtest.NewBackend()
	be.DialGate = make(chan struct{})
	t.Cleanup(func() { close(be.DialGate) })
	scr := screen.New(0)
	s := New(testTab, be, scr, Options{})
	s.Start(context.Background())
	t.Cleanup(s.Close)

	s.HandleInput("ls\r")
	if !strings.Contains(scr.Plain(), "Cannot send - not connected") {
		t.Errorf("screen = %q", scr.Plain())
	}
	if len(be.Conns()) != 0 {
		t.Error("no connection should exist yet")
	}
}

func TestRemoteCloseAppendsStatusLine(t *testing.T) {
	s, scr, conn := openSession(t)
	conn.Drop(&websocket.CloseError{Code: websocket.CloseNormalClosure})
	waitFor(t, 2*time.Second, func() bool { return s.Status() == model.StatusClosed })
	<-s.Done()

	if !strings.HasSuffix(scr.Plain(), "Connection closed\n") {
		t.Errorf("screen = %q", scr.Plain())
	}
	if !conn.Closed() {
		t.Error("connection should be released")
	}

	s.HandleInput("ls\r")
	if !strings.Contains(scr.Plain(), "Cannot send - not connected") {
		t.Errorf("send after close should fail inline, screen = %q", scr.Plain())
	}
	if len(conn.Inputs()) != 0 {
		t.Error("nothing should be queued after close")
	}
}

func TestTransportErrorAppendsStatusLine(t *testing.T) {
	s, scr, conn := openSession(t)
	conn.Drop(errors.New("connection reset"))
	waitFor(t, 2*time.Second, func() bool { return s.Status() == model.StatusError })
	if !strings.Contains(scr.Plain(), "Connection error: connection reset") {
		t.Errorf("screen = %q", scr.Plain())
	}
	if strings.Count(scr.Plain(), "Connection ") != 1 {
		t.Errorf("expected exactly one status line, screen = %q", scr.Plain())
	}
}

func TestDialFailure(t *testing.T) {
	be := backendtest.NewBackend()
	be.DialErr = errors.New("403 forbidden")
	scr := screen.New(0)
	s := New(testTab, be, scr, Options{})
	s.Start(context.Background())
	<-s.Done()
	if s.Status() != model.StatusError || s.Err() == nil {
		t.Fatalf("status = %s err = %v", s.Status(), s.Err())
	}
	if !strings.Contains(scr.Plain(), "Connection error: 403 forbidden") {
		t.Errorf("screen = %q", scr.Plain())
	}
}

func TestCloseDuringDialReleasesConn(t *testing.T) {
	be := backendtest.NewBackend()
	be.DialGate = make(chan struct{})
	s := New(testTab, be, screen.New(0), Options{})
	s.Start(context.Background())

	s.Close()
	close(be.DialGate)
	<-s.Done()

	conns := be.Conns()
	if len(conns) != 1 || !conns[0].Closed() {
		t.Fatalf("late connection should be closed immediately")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s, _, conn := openSession(t)
	s.Close()
	s.Close()
	<-s.Done()
	if conn.CloseCount() != 1 {
		t.Errorf("CloseCount = %d", conn.CloseCount())
	}
	s.HandleInput("ls\r")
	if len(conn.Inputs()) != 0 {
		t.Error("closed session must ignore input")
	}
}

func TestHistoryRecall(t *testing.T) {
	s, scr, conn := openSession(t)
	s.HandleInput("ls\r")
	s.HandleInput("pwd\r")
	s.HandleInput("\x1b[A")
	if s.Pending() != "pwd" {
		t.Fatalf("Pending = %q", s.Pending())
	}
	s.HandleInput("\x1b[A")
	if s.Pending() != "ls" {
		t.Fatalf("Pending = %q", s.Pending())
	}
	s.HandleInput("\x1b[B\x1b[B")
	if s.Pending() != "" {
		t.Fatalf("Pending = %q", s.Pending())
	}
	s.HandleInput("\x1b[A\r")
	if got := conn.Inputs(); len(got) != 3 || got[2] != "pwd\n" {
		t.Fatalf("inputs = %q", got)
	}
	if !strings.HasSuffix(scr.Plain(), "$ pwd\n$ ") {
		t.Errorf("screen = %q", scr.Plain())
	}
}

func TestFitResizesSurface(t *testing.T) {
	scr := screen.New(0)
	s := New(testTab, backendtest.NewBackend(), scr, Options{})
	s.Fit(132, 20)
	if c, r := scr.Size(); c != 132 || r != 20 {
		t.Errorf("Size = %d,%d", c, r)
	}
	s.Fit(0, 10)
	if c, _ := scr.Size(); c != 132 {
		t.Errorf("zero fit should be ignored")
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
