// Package logx holds the logger helpers shared by sessions and commands.
package logx

import (
	"context"
	"io"
	"strings"

	"github.com/timvw/dock-tabs/internal/model"
	"pkt.systems/pslog"
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithContainer annotates the logger with container metadata when available.
func WithContainer(log pslog.Logger, containerID, name string) pslog.Logger {
	if containerID != "" {
		log = log.With("container", containerID)
	}
	if name != "" && name != containerID {
		log = log.With("container_name", name)
	}
	return log
}

// WithTab annotates the context logger with the tab identity.
func WithTab(ctx context.Context, tab model.Tab) pslog.Logger {
	log := pslog.Ctx(ctx)
	if tab.ID != "" {
		log = log.With("tab", tab.ID)
	}
	if tab.Kind != "" {
		log = log.With("kind", string(tab.Kind))
	}
	return WithContainer(log, tab.ContainerID, tab.ContainerName)
}

// Level maps a config level name to a pslog level. Unknown names map to info.
func Level(name string) pslog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return pslog.DebugLevel
	case "warn", "warning":
		return pslog.WarnLevel
	case "error":
		return pslog.ErrorLevel
	default:
		return pslog.InfoLevel
	}
}

// New builds a logger writing to w. Structured JSON is used for files, the
// console form for an interactive stderr.
func New(w io.Writer, level string, console bool) pslog.Logger {
	mode := pslog.ModeStructured
	if console {
		mode = pslog.ModeConsole
	}
	return pslog.NewWithOptions(w, pslog.Options{
		Mode:     mode,
		NoColor:  !console,
		MinLevel: Level(level),
	})
}

// ContextWithLogger attaches log to ctx.
func ContextWithLogger(ctx context.Context, log pslog.Logger) context.Context {
	return pslog.ContextWithLogger(ctx, log)
}
