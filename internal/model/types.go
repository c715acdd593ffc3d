package model

import (
	"fmt"
	"strings"
)

// Buffer and panel limits.
const (
	// LogCapacity is the maximum number of entries a log session keeps.
	LogCapacity = 500
	// LogBootstrapTail is the number of historical lines requested on open.
	LogBootstrapTail = 500
	// TerminalScrollback is the number of lines a terminal surface keeps.
	TerminalScrollback = 2000

	PanelMinHeight     = 150
	PanelMaxHeight     = 600
	PanelDefaultHeight = 350
)

// Kind is the session type bound to a tab.
type Kind string

const (
	KindLogs     Kind = "logs"
	KindTerminal Kind = "terminal"
)

// ParseKind accepts the kind names used on the command line and the control socket.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "logs", "log":
		return KindLogs, nil
	case "terminal", "exec", "shell":
		return KindTerminal, nil
	default:
		return "", fmt.Errorf("unknown session kind %q (supported: logs, terminal)", s)
	}
}

// Label returns the short name shown next to the container in the tab bar.
func (k Kind) Label() string {
	if k == KindLogs {
		return "Logs"
	}
	return "Terminal"
}

// Icon returns the glyph used in tab titles.
func (k Kind) Icon() string {
	if k == KindLogs {
		return "📋"
	}
	return "💻"
}

// Tab identifies one open session. There is at most one tab per
// (ContainerID, Kind) pair.
type Tab struct {
	ID            string `json:"id"`
	Kind          Kind   `json:"kind"`
	ContainerID   string `json:"container_id"`
	ContainerName string `json:"container_name"`
	Title         string `json:"title"`
}

// TabTitle builds the display title for a container session.
func TabTitle(kind Kind, containerName string) string {
	return kind.Icon() + " " + containerName
}

// Status is the connection state of a session.
type Status string

const (
	StatusConnecting  Status = "connecting"
	StatusStreaming   Status = "streaming"   // log stream open
	StatusInteractive Status = "interactive" // exec shell open
	StatusPaused      Status = "paused"      // log stream open, appends suspended
	StatusStatic      Status = "static"      // log stream ended; content kept
	StatusClosed      Status = "closed"      // exec shell ended
	StatusError       Status = "error"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusStatic || s == StatusClosed || s == StatusError
}

// Live reports whether the underlying connection is open.
func (s Status) Live() bool {
	return s == StatusStreaming || s == StatusInteractive || s == StatusPaused
}

// Stream is the output stream a log line came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// LogEntry is one parsed log line.
type LogEntry struct {
	ID        int    `json:"id"`
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
	// Stream is always StreamStdout today: the backend does not tag frames
	// with their origin.
	Stream Stream `json:"stream"`
}

// PanelState is a read-only snapshot of the tab panel.
type PanelState struct {
	Open     bool
	Height   int
	Tabs     []Tab
	ActiveID string
}

// Active returns the active tab, if any.
func (p PanelState) Active() (Tab, bool) {
	for _, t := range p.Tabs {
		if t.ID == p.ActiveID {
			return t, true
		}
	}
	return Tab{}, false
}

// ClampPanelHeight bounds h to [PanelMinHeight, PanelMaxHeight].
func ClampPanelHeight(h int) int {
	if h < PanelMinHeight {
		return PanelMinHeight
	}
	if h > PanelMaxHeight {
		return PanelMaxHeight
	}
	return h
}
