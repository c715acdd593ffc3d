// Package screen is a small scrollback terminal surface. It understands
// enough of a byte stream to render shell output inside a panel: printable
// text, carriage return, newline, backspace, tab and SGR styling. Other
// control sequences are dropped.
package screen

import (
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"

	"github.com/timvw/dock-tabs/internal/model"
)

const tabWidth = 8

const sgrReset = "\x1b[0m"

// cell is one grapheme on a line plus the SGR sequences written before it.
type cell struct {
	sgr   string
	text  string
	width int
}

type line struct {
	cells []cell
	// trailing SGR written after the last cell
	sgr string
}

// Screen implements the terminal rendering surface. It is safe for
// concurrent use: the stream goroutine writes while the UI renders.
type Screen struct {
	mu         sync.Mutex
	lines      []line
	col        int
	cols, rows int
	scrollback int
	pendingSGR string
	// SGR in effect since the last reset; reapplied at each new line
	activeSGR string
	// unterminated escape sequence from the end of the previous Write
	partial string
}

// maxPartial bounds how much of an unterminated sequence is carried over.
const maxPartial = 256

// New returns an empty screen keeping at most scrollback lines.
func New(scrollback int) *Screen {
	if scrollback <= 0 {
		scrollback = model.TerminalScrollback
	}
	return &Screen{
		lines:      []line{{}},
		cols:       80,
		rows:       24,
		scrollback: scrollback,
	}
}

// Write renders s at the cursor.
func (s *Screen) Write(str string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	str = s.partial + str
	s.partial = ""
	for len(str) > 0 {
		seq, width, n, newState := ansi.DecodeSequence(str, 0, nil)
		str = str[n:]
		if n == 0 {
			break
		}
		if width == 0 && len(str) == 0 && (newState != 0 || unterminated(seq)) {
			if len(seq) <= maxPartial {
				s.partial = seq
			}
			break
		}
		if width > 0 {
			s.put(seq, width)
			continue
		}
		s.control(seq)
	}
}

// unterminated reports whether seq is an escape or CSI sequence that has
// not seen its final byte yet.
func unterminated(seq string) bool {
	if seq == "\x1b" {
		return true
	}
	if !strings.HasPrefix(seq, "\x1b[") {
		return false
	}
	if len(seq) == 2 {
		return true
	}
	last := seq[len(seq)-1]
	return last < 0x40 || last > 0x7e
}

func (s *Screen) control(seq string) {
	if len(seq) == 1 {
		switch seq[0] {
		case '\n':
			s.newline()
		case '\r':
			s.col = 0
		case '\b':
			if s.col > 0 {
				s.col--
			}
		case '\t':
			next := (s.col/tabWidth + 1) * tabWidth
			if s.cols > 0 && next > s.cols {
				next = s.cols
			}
			for s.col < next {
				s.put(" ", 1)
			}
		}
		return
	}
	if !strings.HasPrefix(seq, "\x1b[") {
		return
	}
	switch seq[len(seq)-1] {
	case 'm':
		s.pendingSGR += seq
		if seq == sgrReset || seq == "\x1b[m" {
			s.activeSGR = ""
		} else {
			s.activeSGR += seq
		}
	case 'J':
		// ESC[2J and ESC[3J erase the display, which is what `clear` emits.
		if p := seq[2 : len(seq)-1]; p == "2" || p == "3" {
			s.clear()
		}
	}
}

func (s *Screen) put(text string, width int) {
	if s.cols > 0 && s.col+width > s.cols {
		s.newline()
	}
	cur := &s.lines[len(s.lines)-1]
	c := cell{sgr: s.pendingSGR, text: text, width: width}
	s.pendingSGR = ""

	idx := s.cellIndex(cur, s.col)
	switch {
	case idx < len(cur.cells):
		if c.sgr == "" {
			c.sgr = cur.cells[idx].sgr
		}
		cur.cells[idx] = c
	default:
		for s.lineWidth(cur) < s.col {
			cur.cells = append(cur.cells, cell{text: " ", width: 1})
		}
		cur.cells = append(cur.cells, c)
	}
	s.col += width
}

// cellIndex maps a column to the index of the cell starting there, or
// len(cells) when col is past the end.
func (s *Screen) cellIndex(l *line, col int) int {
	w := 0
	for i, c := range l.cells {
		if w >= col {
			return i
		}
		w += c.width
	}
	return len(l.cells)
}

func (s *Screen) lineWidth(l *line) int {
	w := 0
	for _, c := range l.cells {
		w += c.width
	}
	return w
}

func (s *Screen) newline() {
	cur := &s.lines[len(s.lines)-1]
	cur.sgr += s.pendingSGR
	s.pendingSGR = ""
	s.lines = append(s.lines, line{})
	s.col = 0
	s.pendingSGR = s.activeSGR
	if over := len(s.lines) - s.scrollback; over > 0 {
		n := copy(s.lines, s.lines[over:])
		clear(s.lines[n:])
		s.lines = s.lines[:n]
	}
}

func (s *Screen) clear() {
	s.lines = []line{{}}
	s.col = 0
}

// Clear erases the display and scrollback.
func (s *Screen) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	s.pendingSGR = ""
	s.activeSGR = ""
	s.partial = ""
}

// Resize sets the character grid. Existing lines are not reflowed.
func (s *Screen) Resize(cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cols > 0 {
		s.cols = cols
	}
	if rows > 0 {
		s.rows = rows
	}
}

// Size returns the character grid.
func (s *Screen) Size() (cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows
}

// Lines returns every line with styling, oldest first.
func (s *Screen) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	for i := range s.lines {
		out[i] = render(&s.lines[i], s.cols)
	}
	return out
}

// Len returns the number of lines held, including the cursor line.
func (s *Screen) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// Content returns all lines joined for a scrolling viewport.
func (s *Screen) Content() string {
	return strings.Join(s.Lines(), "\n")
}

// Plain returns the content without styling.
func (s *Screen) Plain() string {
	return ansi.Strip(s.Content())
}

func render(l *line, cols int) string {
	var b strings.Builder
	styled := l.sgr != ""
	for _, c := range l.cells {
		if c.sgr != "" {
			styled = true
			b.WriteString(c.sgr)
		}
		b.WriteString(c.text)
	}
	b.WriteString(l.sgr)
	out := b.String()
	if cols > 0 && ansi.StringWidth(out) > cols {
		out = ansi.Truncate(out, cols, "")
	}
	if styled {
		out += sgrReset
	}
	return out
}
