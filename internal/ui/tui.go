// Package ui is the interactive panel: a tab bar over the active log or
// terminal session. Every open session stays live in the tab manager; the
// view only selects which one to draw.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/timvw/dock-tabs/internal/control"
	"github.com/timvw/dock-tabs/internal/logx"
	"github.com/timvw/dock-tabs/internal/model"
	"github.com/timvw/dock-tabs/internal/tabs"
)

// RowHeight is the number of panel pixels per terminal row.
const RowHeight = 16

// chrome is the number of panel rows used by the tab bar and toolbar.
const chrome = 2

// LogSession is what the panel needs from a log tab.
type LogSession interface {
	Entries() []model.LogEntry
	Len() int
	Status() model.Status
	TogglePause() bool
	Clear()
	Download(dir string, now time.Time) (string, error)
	Scrolled(distance int)
	Follow()
	Following() bool
	Err() error
}

// TerminalSession is what the panel needs from a terminal tab.
type TerminalSession interface {
	Status() model.Status
	HandleInput(data string)
	Fit(cols, rows int)
	ClearScreen()
	Content() string
}

// view mode
type viewMode int

const (
	modePanel viewMode = iota
	modeOpenPrompt
)

// messages
type updateMsg struct{ ids []string }

type controlMsg struct{ cmd control.Command }

// OpenRequest asks the UI to open a tab at startup.
type OpenRequest struct {
	ContainerID string
	Name        string
	Kind        model.Kind
}

// TUI runs the interactive panel.
type TUI struct {
	Manager       *tabs.Manager
	Theme         Theme
	DownloadDir   string
	ControlSocket string // empty disables the control socket
	Open          []OpenRequest
}

// model implements tea.Model
type tuiModel struct {
	ctx         context.Context
	mgr         *tabs.Manager
	st          styles
	downloadDir string
	now         func() time.Time

	mode   viewMode
	prompt textinput.Model

	// per-tab scroll state
	views map[string]*viewport.Model

	// dimensions
	width  int
	height int

	// status
	message string
}

func newModel(ctx context.Context, mgr *tabs.Manager, theme Theme, downloadDir string) *tuiModel {
	st := newStyles(theme)
	ti := textinput.New()
	ti.Placeholder = "logs <container> [name] | exec <container> [name]"
	ti.CharLimit = 256
	ti.Width = 60
	ti.Prompt = "open> "
	ti.PromptStyle = st.prompt
	ti.TextStyle = st.text

	return &tuiModel{
		ctx:         ctx,
		mgr:         mgr,
		st:          st,
		downloadDir: downloadDir,
		now:         time.Now,
		prompt:      ti,
		views:       make(map[string]*viewport.Model),
	}
}

func (t *TUI) Run(ctx context.Context) error {
	m := newModel(ctx, t.Manager, t.Theme, t.DownloadDir)
	for _, req := range t.Open {
		t.Manager.Open(req.ContainerID, req.Name, req.Kind)
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	if t.ControlSocket != "" {
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		l := control.NewListener(t.ControlSocket, func(c control.Command) {
			p.Send(controlMsg{cmd: c})
		})
		if err := l.Start(lctx); err != nil {
			logx.Ctx(ctx).Warn("control socket disabled", "err", err)
		} else {
			logx.Ctx(ctx).Info("control socket listening", "socket", l.SocketPath())
		}
	}

	defer t.Manager.Shutdown()
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *tuiModel) Init() tea.Cmd {
	return m.waitForUpdate()
}

// waitForUpdate returns a tea.Cmd that blocks until a session or the panel
// changes.
func (m *tuiModel) waitForUpdate() tea.Cmd {
	mgr := m.mgr
	return func() tea.Msg {
		<-mgr.Updates()
		return updateMsg{ids: mgr.TakeUpdates()}
	}
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.refit()
		return m, nil

	case updateMsg:
		for _, id := range msg.ids {
			m.refresh(id)
		}
		return m, m.waitForUpdate()

	case controlMsg:
		m.applyControl(msg.cmd)
		return m, nil
	}

	return m, nil
}

func (m *tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeOpenPrompt:
		return m.handlePromptKey(msg)
	default:
		return m.handlePanelKey(msg)
	}
}

func (m *tuiModel) handlePanelKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+q":
		return m, tea.Quit
	case "alt+right":
		m.mgr.Next()
		m.refit()
		return m, nil
	case "alt+left":
		m.mgr.Prev()
		m.refit()
		return m, nil
	case "ctrl+w":
		if tab, ok := m.mgr.Snapshot().Active(); ok {
			m.mgr.Close(tab.ID)
			delete(m.views, tab.ID)
			m.message = "Closed " + tab.Title
			m.refit()
		}
		return m, nil
	case "ctrl+x":
		n := m.mgr.CloseAll()
		clear(m.views)
		m.message = fmt.Sprintf("Closed %d tabs", n)
		return m, nil
	case "ctrl+t":
		m.mgr.TogglePanel()
		m.refit()
		return m, nil
	case "alt+up":
		m.mgr.Resize(m.mgr.Snapshot().Height + RowHeight)
		m.refit()
		return m, nil
	case "alt+down":
		m.mgr.Resize(m.mgr.Snapshot().Height - RowHeight)
		m.refit()
		return m, nil
	case "ctrl+o":
		m.mode = modeOpenPrompt
		m.prompt.SetValue("")
		m.prompt.Focus()
		return m, textinput.Blink
	}

	snap := m.mgr.Snapshot()
	tab, ok := snap.Active()
	if !ok || !snap.Open {
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	}
	sess, ok := m.mgr.Session(tab.ID)
	if !ok {
		return m, nil
	}
	switch s := sess.(type) {
	case TerminalSession:
		if msg.String() == "ctrl+k" {
			s.ClearScreen()
			return m, nil
		}
		if data := encodeKey(msg); data != "" {
			s.HandleInput(data)
		}
	case LogSession:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.handleLogKey(tab, s, msg)
	}
	return m, nil
}

func (m *tuiModel) handleLogKey(tab model.Tab, s LogSession, msg tea.KeyMsg) {
	vp := m.view(tab.ID)
	switch msg.String() {
	case "p":
		if s.TogglePause() {
			m.message = "Paused " + tab.ContainerName
		} else {
			m.message = "Resumed " + tab.ContainerName
		}
	case "c":
		s.Clear()
		m.message = "Cleared " + tab.ContainerName
	case "d":
		path, err := s.Download(m.downloadDir, m.now())
		if err != nil {
			m.message = fmt.Sprintf("Download failed: %v", err)
			return
		}
		m.message = "Saved " + path
	case "f", "end":
		s.Follow()
		vp.GotoBottom()
	case "up", "k":
		vp.LineUp(1)
		s.Scrolled(distanceToBottom(vp))
	case "down", "j":
		vp.LineDown(1)
		s.Scrolled(distanceToBottom(vp))
	case "pgup":
		vp.HalfViewUp()
		s.Scrolled(distanceToBottom(vp))
	case "pgdown":
		vp.HalfViewDown()
		s.Scrolled(distanceToBottom(vp))
	case "home", "g":
		vp.GotoTop()
		s.Scrolled(distanceToBottom(vp))
	}
}

func distanceToBottom(vp *viewport.Model) int {
	d := vp.TotalLineCount() - (vp.YOffset + vp.Height)
	if d < 0 {
		return 0
	}
	return d
}

func (m *tuiModel) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.mode = modePanel
		m.prompt.Blur()
		return m, nil
	case "enter":
		req, err := parseOpen(m.prompt.Value())
		m.mode = modePanel
		m.prompt.Blur()
		if err != nil {
			m.message = err.Error()
			return m, nil
		}
		tab := m.mgr.Open(req.ContainerID, req.Name, req.Kind)
		m.message = "Opened " + tab.Title
		m.refit()
		return m, nil
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

// parseOpen parses "logs <container> [name]" or "exec <container> [name]".
func parseOpen(line string) (OpenRequest, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 || len(fields) > 3 {
		return OpenRequest{}, fmt.Errorf("usage: logs|exec <container> [name]")
	}
	kind, err := model.ParseKind(fields[0])
	if err != nil {
		return OpenRequest{}, err
	}
	req := OpenRequest{ContainerID: fields[1], Kind: kind}
	if len(fields) == 3 {
		req.Name = fields[2]
	}
	return req, nil
}

func (m *tuiModel) applyControl(c control.Command) {
	switch c.Action {
	case control.ActionOpen:
		tab := m.mgr.Open(c.Container, c.Name, c.SessionKind())
		m.message = "Opened " + tab.Title
	case control.ActionClose:
		if id := m.resolveTab(c); id != "" && m.mgr.Close(id) {
			delete(m.views, id)
			m.message = "Closed " + id
		}
	case control.ActionActivate:
		if id := m.resolveTab(c); id != "" {
			m.mgr.SetActive(id)
			m.mgr.SetPanelOpen(true)
		}
	case control.ActionCloseAll:
		n := m.mgr.CloseAll()
		clear(m.views)
		m.message = fmt.Sprintf("Closed %d tabs", n)
	}
	m.refit()
}

func (m *tuiModel) resolveTab(c control.Command) string {
	if c.Tab != "" {
		return c.Tab
	}
	if tab, ok := m.mgr.Find(c.Container, c.SessionKind()); ok {
		return tab.ID
	}
	return ""
}

// encodeKey turns a key press into the bytes a terminal would send.
func encodeKey(msg tea.KeyMsg) string {
	switch msg.Type {
	case tea.KeyRunes:
		return string(msg.Runes)
	case tea.KeySpace:
		return " "
	case tea.KeyEnter:
		return "\r"
	case tea.KeyBackspace:
		return "\x7f"
	case tea.KeyTab:
		return "\t"
	case tea.KeyCtrlC:
		return "\x03"
	case tea.KeyCtrlL:
		return "\x0c"
	case tea.KeyUp:
		return "\x1b[A"
	case tea.KeyDown:
		return "\x1b[B"
	}
	return ""
}

// bodyRows returns the number of content rows the panel shows.
func (m *tuiModel) bodyRows() int {
	rows := m.mgr.Snapshot().Height/RowHeight - chrome
	// Leave room for the header and status line.
	if m.height > 0 && rows > m.height-4 {
		rows = m.height - 4
	}
	if rows < 1 {
		rows = 1
	}
	return rows
}

// view returns the scroll state for a tab, sized to the panel body.
func (m *tuiModel) view(id string) *viewport.Model {
	vp, ok := m.views[id]
	if !ok {
		v := viewport.New(m.width, m.bodyRows())
		vp = &v
		m.views[id] = vp
	}
	vp.Width = m.width
	vp.Height = m.bodyRows()
	return vp
}

// refit resizes the active tab to the panel body. Terminal surfaces get a
// new character grid.
func (m *tuiModel) refit() {
	snap := m.mgr.Snapshot()
	tab, ok := snap.Active()
	if !ok {
		return
	}
	if sess, ok := m.mgr.Session(tab.ID); ok {
		if term, ok := sess.(TerminalSession); ok && m.width > 0 {
			term.Fit(m.width, m.bodyRows())
		}
	}
	m.refresh(tab.ID)
}

// refresh rebuilds the viewport content of tab id. Only the active tab is
// rendered; background tabs catch up when activated.
func (m *tuiModel) refresh(id string) {
	snap := m.mgr.Snapshot()
	tab, ok := snap.Active()
	if !ok || (id != "" && id != tab.ID) {
		return
	}
	sess, ok := m.mgr.Session(tab.ID)
	if !ok {
		return
	}
	vp := m.view(tab.ID)
	switch s := sess.(type) {
	case TerminalSession:
		vp.SetContent(s.Content())
		vp.GotoBottom()
	case LogSession:
		vp.SetContent(m.renderEntries(s.Entries()))
		if s.Following() {
			vp.GotoBottom()
		}
	}
}

func (m *tuiModel) renderEntries(entries []model.LogEntry) string {
	if len(entries) == 0 {
		return m.st.dim.Render("No logs yet")
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = m.st.timestamp.Render(e.Timestamp) + " " + e.Content
	}
	return strings.Join(lines, "\n")
}

func (m *tuiModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.viewHeader())
	b.WriteString("\n")

	snap := m.mgr.Snapshot()
	panel := m.viewPanel(snap)
	used := 2 + strings.Count(panel, "\n")
	if m.mode == modeOpenPrompt {
		used++
	}
	for i := used; i < m.height; i++ {
		b.WriteString("\n")
	}

	if m.mode == modeOpenPrompt {
		b.WriteString(m.prompt.View())
		b.WriteString("\n")
	}
	b.WriteString(panel)
	if m.message != "" {
		b.WriteString("\n")
		b.WriteString(m.st.status.Render(ansi.Truncate("  "+m.message, m.width, "…")))
	}
	return b.String()
}

func (m *tuiModel) viewHeader() string {
	title := m.st.title.Render("dock-tabs")
	hints := m.st.hint(
		"ctrl+o", "open", "alt+←/→", "switch", "ctrl+w", "close", "ctrl+x", "close all",
		"ctrl+t", "panel", "alt+↑/↓", "resize", "ctrl+q", "quit",
	)
	return ansi.Truncate(title+"  "+hints, m.width, "…")
}

func (m *tuiModel) viewPanel(snap model.PanelState) string {
	if len(snap.Tabs) == 0 {
		return m.st.dim.Render("  No open tabs. Press ctrl+o to open container logs or a shell.")
	}
	if !snap.Open {
		return m.st.dim.Render(fmt.Sprintf("  ▲ %d tabs (ctrl+t to show)", len(snap.Tabs)))
	}

	var b strings.Builder
	b.WriteString(m.viewTabBar(snap))
	b.WriteString("\n")

	tab, _ := snap.Active()
	sess, ok := m.mgr.Session(tab.ID)
	if !ok {
		return b.String()
	}
	b.WriteString(m.viewToolbar(sess))
	b.WriteString("\n")
	b.WriteString(m.view(tab.ID).View())
	return b.String()
}

func (m *tuiModel) viewTabBar(snap model.PanelState) string {
	parts := make([]string, 0, len(snap.Tabs))
	for _, tab := range snap.Tabs {
		dot := m.st.statusDot(model.StatusConnecting)
		if sess, ok := m.mgr.Session(tab.ID); ok {
			dot = m.st.statusDot(sess.Status())
		}
		label := fmt.Sprintf(" %s %s %s ", tab.Title, tab.Kind.Label(), dot)
		if tab.ID == snap.ActiveID {
			parts = append(parts, m.st.tabActive.Render(label))
		} else {
			parts = append(parts, m.st.tabInactive.Render(label))
		}
	}
	bar := strings.Join(parts, m.st.separator.Render("│"))
	return ansi.Truncate(bar, m.width, "…")
}

func (m *tuiModel) viewToolbar(sess tabs.Session) string {
	status := sess.Status()
	var line string
	switch s := sess.(type) {
	case LogSession:
		follow := "following"
		if !s.Following() {
			follow = "scrolled"
		}
		line = fmt.Sprintf("%s %s  %d lines  %s  ", m.st.statusDot(status), statusLabel(status), s.Len(), follow) +
			m.st.hint("p", "pause", "c", "clear", "d", "download", "f", "follow")
		if err := s.Err(); err != nil {
			line = m.st.err.Render("disconnected: "+err.Error()) + "  " + line
		}
	case TerminalSession:
		line = fmt.Sprintf("%s %s  ", m.st.statusDot(status), statusLabel(status))
		if status.Live() {
			line += m.st.hint("ctrl+l", "clear", "ctrl+k", "clear screen", "ctrl+c", "interrupt")
		} else {
			line += m.st.hint("ctrl+w", "close tab")
		}
	}
	if status == model.StatusError {
		line = m.st.err.Render(line)
	}
	return ansi.Truncate(line, m.width, "…")
}
