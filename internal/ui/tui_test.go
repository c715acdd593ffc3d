package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/timvw/dock-tabs/internal/control"
	"github.com/timvw/dock-tabs/internal/model"
	"github.com/timvw/dock-tabs/internal/tabs"
)

type fakeLog struct {
	tab model.Tab

	mu        sync.Mutex
	entries   []model.LogEntry
	paused    bool
	cleared   int
	downloads []string
	scrolled  []int
	following bool
	err       error
	closed    bool
}

func (f *fakeLog) Tab() model.Tab            { return f.tab }
func (f *fakeLog) Start(ctx context.Context) {}
func (f *fakeLog) Close()                    { f.mu.Lock(); f.closed = true; f.mu.Unlock() }

func (f *fakeLog) Status() model.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		return model.StatusPaused
	}
	return model.StatusStreaming
}

func (f *fakeLog) Entries() []model.LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.LogEntry(nil), f.entries...)
}

func (f *fakeLog) Len() int { return len(f.Entries()) }

func (f *fakeLog) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeLog) TogglePause() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = !f.paused
	return f.paused
}

func (f *fakeLog) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = nil
	f.cleared++
}

func (f *fakeLog) Download(dir string, now time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, dir)
	return dir + "/" + f.tab.ContainerName + "-logs.txt", nil
}

func (f *fakeLog) Scrolled(distance int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolled = append(f.scrolled, distance)
	f.following = distance < 3
}

func (f *fakeLog) Follow() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.following = true
}

func (f *fakeLog) Following() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.following
}

type fakeTerm struct {
	tab model.Tab

	mu      sync.Mutex
	input   []string
	cols    int
	rows    int
	cleared int
	closed  bool
	ended   bool
}

func (f *fakeTerm) Tab() model.Tab            { return f.tab }
func (f *fakeTerm) Start(ctx context.Context) {}
func (f *fakeTerm) Close()                    { f.mu.Lock(); f.closed = true; f.mu.Unlock() }
func (f *fakeTerm) Content() string           { return "$ " }

func (f *fakeTerm) Status() model.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ended {
		return model.StatusClosed
	}
	return model.StatusInteractive
}

func (f *fakeTerm) ClearScreen() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
}

func (f *fakeTerm) HandleInput(data string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.input = append(f.input, data)
}

func (f *fakeTerm) Fit(cols, rows int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cols, f.rows = cols, rows
}

func (f *fakeTerm) inputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.input...)
}

type testEnv struct {
	m     *tuiModel
	mgr   *tabs.Manager
	logs  map[string]*fakeLog
	terms map[string]*fakeTerm
}

func newTestModel(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		logs:  make(map[string]*fakeLog),
		terms: make(map[string]*fakeTerm),
	}
	factory := func(tab model.Tab, notify func()) tabs.Session {
		if tab.Kind == model.KindTerminal {
			s := &fakeTerm{tab: tab}
			env.terms[tab.ContainerID] = s
			return s
		}
		s := &fakeLog{tab: tab, following: true}
		env.logs[tab.ContainerID] = s
		return s
	}
	env.mgr = tabs.New(context.Background(), factory, tabs.Options{
		PanelHeight: model.PanelDefaultHeight,
		NewID: func(containerID string, kind model.Kind) string {
			return containerID + "-" + string(kind)
		},
	})
	t.Cleanup(env.mgr.Shutdown)
	env.m = newModel(context.Background(), env.mgr, DarkTheme(), t.TempDir())
	env.m.width = 100
	env.m.height = 40
	return env
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

// --- Panel keys ---

func TestPanelKey_SwitchTabsWraps(t *testing.T) {
	env := newTestModel(t)
	env.mgr.Open("a", "api", model.KindLogs)
	env.mgr.Open("b", "db", model.KindLogs)

	_, _ = env.m.handleKey(tea.KeyMsg{Type: tea.KeyRight, Alt: true})
	if got := env.mgr.Snapshot().ActiveID; got != "a-logs" {
		t.Fatalf("after alt+right active = %q, want a-logs", got)
	}
	_, _ = env.m.handleKey(tea.KeyMsg{Type: tea.KeyLeft, Alt: true})
	if got := env.mgr.Snapshot().ActiveID; got != "b-logs" {
		t.Fatalf("after alt+left active = %q, want b-logs", got)
	}
}

func TestPanelKey_CloseActive(t *testing.T) {
	env := newTestModel(t)
	env.mgr.Open("a", "api", model.KindLogs)
	env.mgr.Open("b", "db", model.KindLogs)

	_, _ = env.m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlW})

	snap := env.mgr.Snapshot()
	if len(snap.Tabs) != 1 || snap.ActiveID != "a-logs" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if !env.logs["b"].closed {
		t.Error("closed tab's session was not released")
	}
	if !strings.Contains(env.m.message, "db") {
		t.Errorf("message = %q", env.m.message)
	}
}

func TestPanelKey_CloseAll(t *testing.T) {
	env := newTestModel(t)
	env.mgr.Open("a", "", model.KindLogs)
	env.mgr.Open("a", "", model.KindTerminal)

	_, _ = env.m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlX})

	snap := env.mgr.Snapshot()
	if len(snap.Tabs) != 0 || snap.Open {
		t.Fatalf("snapshot = %+v", snap)
	}
	if env.m.message != "Closed 2 tabs" {
		t.Errorf("message = %q", env.m.message)
	}
}

func TestPanelKey_TogglePanel(t *testing.T) {
	env := newTestModel(t)
	env.mgr.Open("a", "", model.KindLogs)

	_, _ = env.m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlT})
	if env.mgr.Snapshot().Open {
		t.Fatal("panel should be collapsed")
	}
	if !strings.Contains(env.m.View(), "ctrl+t to show") {
		t.Error("collapsed view should offer to reopen")
	}
	_, _ = env.m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlT})
	if !env.mgr.Snapshot().Open {
		t.Fatal("panel should be open")
	}
}

func TestPanelKey_ResizeByRow(t *testing.T) {
	env := newTestModel(t)
	start := env.mgr.Snapshot().Height

	_, _ = env.m.handleKey(tea.KeyMsg{Type: tea.KeyUp, Alt: true})
	if got := env.mgr.Snapshot().Height; got != start+RowHeight {
		t.Errorf("height = %d, want %d", got, start+RowHeight)
	}
	_, _ = env.m.handleKey(tea.KeyMsg{Type: tea.KeyDown, Alt: true})
	_, _ = env.m.handleKey(tea.KeyMsg{Type: tea.KeyDown, Alt: true})
	if got := env.mgr.Snapshot().Height; got != start-RowHeight {
		t.Errorf("height = %d, want %d", got, start-RowHeight)
	}
}

func TestPanelKey_CtrlQQuits(t *testing.T) {
	env := newTestModel(t)
	env.mgr.Open("a", "", model.KindTerminal)
	_, cmd := env.m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlQ})
	if !isQuit(cmd) {
		t.Error("ctrl+q should quit")
	}
}

// --- Log tabs ---

func TestLogKey_PauseClearDownload(t *testing.T) {
	env := newTestModel(t)
	env.mgr.Open("a", "api", model.KindLogs)
	log := env.logs["a"]

	_, _ = env.m.handleKey(runes("p"))
	if !log.paused || env.m.message != "Paused api" {
		t.Fatalf("paused=%v message=%q", log.paused, env.m.message)
	}
	_, _ = env.m.handleKey(runes("p"))
	if log.paused || env.m.message != "Resumed api" {
		t.Fatalf("paused=%v message=%q", log.paused, env.m.message)
	}

	_, _ = env.m.handleKey(runes("c"))
	if log.cleared != 1 {
		t.Errorf("cleared = %d", log.cleared)
	}

	_, _ = env.m.handleKey(runes("d"))
	if len(log.downloads) != 1 || log.downloads[0] != env.m.downloadDir {
		t.Errorf("downloads = %v", log.downloads)
	}
	if !strings.HasPrefix(env.m.message, "Saved ") {
		t.Errorf("message = %q", env.m.message)
	}
}

func TestLogKey_CtrlCQuits(t *testing.T) {
	env := newTestModel(t)
	env.mgr.Open("a", "", model.KindLogs)
	_, cmd := env.m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !isQuit(cmd) {
		t.Error("ctrl+c on a log tab should quit")
	}
}

func TestLogKey_ScrollSuspendsFollow(t *testing.T) {
	env := newTestModel(t)
	env.mgr.Open("a", "", model.KindLogs)
	log := env.logs["a"]
	for i := 1; i <= 100; i++ {
		log.entries = append(log.entries, model.LogEntry{ID: i, Timestamp: "12:00:00", Content: fmt.Sprintf("line %d", i)})
	}
	env.m.refresh("")

	_, _ = env.m.handleKey(tea.KeyMsg{Type: tea.KeyUp})
	if !log.Following() {
		t.Fatalf("one row up should keep following, scrolled=%v", log.scrolled)
	}
	_, _ = env.m.handleKey(tea.KeyMsg{Type: tea.KeyHome})
	if log.Following() {
		t.Fatalf("jumping to top should stop following, scrolled=%v", log.scrolled)
	}

	_, _ = env.m.handleKey(runes("f"))
	if !log.Following() {
		t.Error("f should resume following")
	}
	if vp := env.m.view("a-logs"); !vp.AtBottom() {
		t.Error("view should be at the bottom after f")
	}
}

// --- Terminal tabs ---

func TestTerminalKeys_Forwarded(t *testing.T) {
	env := newTestModel(t)
	env.mgr.Open("a", "", model.KindTerminal)

	keys := []tea.KeyMsg{
		runes("ls"),
		{Type: tea.KeySpace},
		runes("-l"),
		{Type: tea.KeyBackspace},
		{Type: tea.KeyEnter},
		{Type: tea.KeyUp},
		{Type: tea.KeyCtrlL},
	}
	for _, k := range keys {
		_, _ = env.m.handleKey(k)
	}

	want := []string{"ls", " ", "-l", "\x7f", "\r", "\x1b[A", "\x0c"}
	got := env.terms["a"].inputs()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("inputs = %q, want %q", got, want)
	}
}

func TestTerminalKeys_CtrlCInterruptsInsteadOfQuitting(t *testing.T) {
	env := newTestModel(t)
	env.mgr.Open("a", "", model.KindTerminal)

	_, cmd := env.m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlC})
	if isQuit(cmd) {
		t.Fatal("ctrl+c on a terminal tab must not quit")
	}
	if got := env.terms["a"].inputs(); len(got) != 1 || got[0] != "\x03" {
		t.Errorf("inputs = %q", got)
	}
}

func TestTerminalKeys_CtrlKClearsScreen(t *testing.T) {
	env := newTestModel(t)
	env.mgr.Open("a", "", model.KindTerminal)

	_, _ = env.m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlK})

	term := env.terms["a"]
	if term.cleared != 1 {
		t.Errorf("cleared = %d, want 1", term.cleared)
	}
	if len(term.inputs()) != 0 {
		t.Errorf("ctrl+k must not reach the shell, got %q", term.inputs())
	}
}

func TestRefit_FitsActiveTerminal(t *testing.T) {
	env := newTestModel(t)
	env.mgr.Open("a", "", model.KindTerminal)

	_, _ = env.m.Update(tea.WindowSizeMsg{Width: 120, Height: 50})

	term := env.terms["a"]
	wantRows := model.PanelDefaultHeight/RowHeight - chrome
	if term.cols != 120 || term.rows != wantRows {
		t.Errorf("fit = %dx%d, want 120x%d", term.cols, term.rows, wantRows)
	}

	// A short window caps the body.
	_, _ = env.m.Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	if term.rows != 6 {
		t.Errorf("rows = %d, want 6", term.rows)
	}
}

// --- Open prompt and control ---

func TestOpenPrompt_OpensTab(t *testing.T) {
	env := newTestModel(t)

	_, _ = env.m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlO})
	if env.m.mode != modeOpenPrompt {
		t.Fatal("ctrl+o should open the prompt")
	}
	env.m.prompt.SetValue("exec abc web")
	_, _ = env.m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})

	if env.m.mode != modePanel {
		t.Error("prompt should close after enter")
	}
	tab, ok := env.mgr.Snapshot().Active()
	if !ok || tab.ID != "abc-terminal" || tab.ContainerName != "web" {
		t.Fatalf("active = %+v, %v", tab, ok)
	}
}

func TestOpenPrompt_InvalidInput(t *testing.T) {
	env := newTestModel(t)
	_, _ = env.m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlO})
	env.m.prompt.SetValue("attach abc")
	_, _ = env.m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})

	if len(env.mgr.Snapshot().Tabs) != 0 {
		t.Error("invalid input must not open a tab")
	}
	if env.m.message == "" {
		t.Error("expected an error message")
	}
}

func TestParseOpen(t *testing.T) {
	tests := []struct {
		line    string
		want    OpenRequest
		wantErr bool
	}{
		{line: "logs abc", want: OpenRequest{ContainerID: "abc", Kind: model.KindLogs}},
		{line: "  exec abc web ", want: OpenRequest{ContainerID: "abc", Name: "web", Kind: model.KindTerminal}},
		{line: "shell abc", want: OpenRequest{ContainerID: "abc", Kind: model.KindTerminal}},
		{line: "logs", wantErr: true},
		{line: "logs a b c", wantErr: true},
		{line: "top abc", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseOpen(tt.line)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseOpen(%q) err = %v", tt.line, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseOpen(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestControl_OpenActivateClose(t *testing.T) {
	env := newTestModel(t)

	_, _ = env.m.Update(controlMsg{cmd: control.Command{Action: control.ActionOpen, Container: "a", Kind: "logs"}})
	_, _ = env.m.Update(controlMsg{cmd: control.Command{Action: control.ActionOpen, Container: "b", Kind: "exec"}})
	if got := env.mgr.Snapshot().ActiveID; got != "b-terminal" {
		t.Fatalf("active = %q", got)
	}

	_, _ = env.m.Update(controlMsg{cmd: control.Command{Action: control.ActionActivate, Container: "a", Kind: "logs"}})
	if got := env.mgr.Snapshot().ActiveID; got != "a-logs" {
		t.Fatalf("active = %q", got)
	}

	_, _ = env.m.Update(controlMsg{cmd: control.Command{Action: control.ActionClose, Tab: "b-terminal"}})
	if len(env.mgr.Snapshot().Tabs) != 1 || !env.terms["b"].closed {
		t.Fatal("close by tab id failed")
	}

	_, _ = env.m.Update(controlMsg{cmd: control.Command{Action: control.ActionCloseAll}})
	if len(env.mgr.Snapshot().Tabs) != 0 {
		t.Fatal("close_all left tabs open")
	}
}

// --- View ---

func TestView_Empty(t *testing.T) {
	env := newTestModel(t)
	if !strings.Contains(env.m.View(), "No open tabs") {
		t.Error("empty view should explain how to open a tab")
	}
}

func TestView_TabBarAndToolbar(t *testing.T) {
	env := newTestModel(t)
	env.mgr.Open("a", "api", model.KindLogs)
	env.mgr.Open("b", "db", model.KindTerminal)
	env.m.refit()

	v := env.m.View()
	for _, want := range []string{"api", "db", "Logs", "Terminal", "ctrl+l"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestView_LoadingBeforeSize(t *testing.T) {
	env := newTestModel(t)
	env.m.width = 0
	if env.m.View() != "Loading..." {
		t.Error("view before the first resize should be a placeholder")
	}
}

func TestView_LogToolbarShowsStreamError(t *testing.T) {
	env := newTestModel(t)
	env.mgr.Open("a", "api", model.KindLogs)
	env.logs["a"].err = fmt.Errorf("connection refused")

	if v := env.m.View(); !strings.Contains(v, "disconnected: connection refused") {
		t.Errorf("view missing stream error:\n%s", v)
	}
}

func TestView_EndedTerminalToolbar(t *testing.T) {
	env := newTestModel(t)
	env.mgr.Open("a", "api", model.KindTerminal)
	env.m.refit()
	term := env.terms["a"]

	if v := env.m.View(); !strings.Contains(v, "interrupt") {
		t.Errorf("live terminal toolbar missing input hints:\n%s", v)
	}

	term.mu.Lock()
	term.ended = true
	term.mu.Unlock()
	v := env.m.View()
	if strings.Contains(v, "interrupt") {
		t.Errorf("ended terminal toolbar still offers input hints:\n%s", v)
	}
	if !strings.Contains(v, "close tab") {
		t.Errorf("ended terminal toolbar missing close hint:\n%s", v)
	}
}
