package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/timvw/dock-tabs/internal/model"
)

// Theme defines all colors used by the panel.
// Use DarkTheme() or LightTheme() to get a pre-built theme,
// or construct a custom Theme.
type Theme struct {
	Primary         lipgloss.Color // title, active tab underline
	Secondary       lipgloss.Color // active tab text
	Accent          lipgloss.Color // prompt, key hints
	Error           lipgloss.Color // error status, failed actions
	Warning         lipgloss.Color // connecting, paused
	Success         lipgloss.Color // live status dot
	Info            lipgloss.Color // log timestamps
	Text            lipgloss.Color // primary text
	TextMuted       lipgloss.Color // secondary text, ended sessions
	BackgroundPanel lipgloss.Color // panel background
	BackgroundElem  lipgloss.Color // active tab background
	Border          lipgloss.Color // separators
}

// DarkTheme returns the default dark theme.
func DarkTheme() Theme {
	return Theme{
		Primary:         lipgloss.Color("#fab283"),
		Secondary:       lipgloss.Color("#5c9cf5"),
		Accent:          lipgloss.Color("#9d7cd8"),
		Error:           lipgloss.Color("#e06c75"),
		Warning:         lipgloss.Color("#f5a742"),
		Success:         lipgloss.Color("#7fd88f"),
		Info:            lipgloss.Color("#56b6c2"),
		Text:            lipgloss.Color("#eeeeee"),
		TextMuted:       lipgloss.Color("#808080"),
		BackgroundPanel: lipgloss.Color("#1a1b26"),
		BackgroundElem:  lipgloss.Color("#2a2b3d"),
		Border:          lipgloss.Color("#484848"),
	}
}

// LightTheme returns a light theme for bright terminal backgrounds.
func LightTheme() Theme {
	return Theme{
		Primary:         lipgloss.Color("#b35c00"),
		Secondary:       lipgloss.Color("#0550ae"),
		Accent:          lipgloss.Color("#6639ba"),
		Error:           lipgloss.Color("#cf222e"),
		Warning:         lipgloss.Color("#bf8700"),
		Success:         lipgloss.Color("#116329"),
		Info:            lipgloss.Color("#0969da"),
		Text:            lipgloss.Color("#1f2328"),
		TextMuted:       lipgloss.Color("#656d76"),
		BackgroundPanel: lipgloss.Color("#ffffff"),
		BackgroundElem:  lipgloss.Color("#f6f8fa"),
		Border:          lipgloss.Color("#d0d7de"),
	}
}

// ThemeByName returns a theme by name. Defaults to dark.
func ThemeByName(name string) Theme {
	switch name {
	case "light":
		return LightTheme()
	default:
		return DarkTheme()
	}
}

// styles holds all lipgloss styles derived from a Theme.
// Constructed once from a Theme and stored in tuiModel.
type styles struct {
	title       lipgloss.Style
	separator   lipgloss.Style
	tabActive   lipgloss.Style
	tabInactive lipgloss.Style
	err         lipgloss.Style
	dim         lipgloss.Style
	text        lipgloss.Style
	status      lipgloss.Style
	timestamp   lipgloss.Style
	prompt      lipgloss.Style

	// status dots
	live       lipgloss.Style
	connecting lipgloss.Style
	paused     lipgloss.Style
	ended      lipgloss.Style

	// Hints
	hintKey  lipgloss.Style
	hintDesc lipgloss.Style
}

// newStyles builds all styles from a theme.
func newStyles(t Theme) styles {
	return styles{
		title:       lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		separator:   lipgloss.NewStyle().Foreground(t.Border),
		tabActive:   lipgloss.NewStyle().Bold(true).Foreground(t.Secondary).Background(t.BackgroundElem),
		tabInactive: lipgloss.NewStyle().Foreground(t.TextMuted),
		err:         lipgloss.NewStyle().Foreground(t.Error),
		dim:         lipgloss.NewStyle().Foreground(t.TextMuted),
		text:        lipgloss.NewStyle().Foreground(t.Text),
		status:      lipgloss.NewStyle().Foreground(t.TextMuted),
		timestamp:   lipgloss.NewStyle().Foreground(t.Info),
		prompt:      lipgloss.NewStyle().Foreground(t.Accent),

		live:       lipgloss.NewStyle().Foreground(t.Success),
		connecting: lipgloss.NewStyle().Foreground(t.Warning),
		paused:     lipgloss.NewStyle().Foreground(t.Warning),
		ended:      lipgloss.NewStyle().Foreground(t.TextMuted),

		hintKey:  lipgloss.NewStyle().Foreground(t.Text),
		hintDesc: lipgloss.NewStyle().Foreground(t.TextMuted),
	}
}

// statusDot renders the per-tab connection indicator.
func (s styles) statusDot(st model.Status) string {
	switch st {
	case model.StatusStreaming, model.StatusInteractive:
		return s.live.Render("●")
	case model.StatusConnecting:
		return s.connecting.Render("◌")
	case model.StatusPaused:
		return s.paused.Render("⏸")
	case model.StatusError:
		return s.err.Render("●")
	default:
		return s.ended.Render("○")
	}
}

// statusLabel is the toolbar text for a session status.
func statusLabel(st model.Status) string {
	switch st {
	case model.StatusConnecting:
		return "loading"
	case model.StatusError:
		return "disconnected"
	default:
		return string(st)
	}
}

// hint renders "key=desc" pairs for the header line.
func (s styles) hint(pairs ...string) string {
	var out string
	for i := 0; i+1 < len(pairs); i += 2 {
		if out != "" {
			out += "  "
		}
		out += s.hintKey.Render(pairs[i]) + s.hintDesc.Render("="+pairs[i+1])
	}
	return out
}
