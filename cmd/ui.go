package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/timvw/dock-tabs/internal/backend"
	"github.com/timvw/dock-tabs/internal/control"
	"github.com/timvw/dock-tabs/internal/logstream"
	"github.com/timvw/dock-tabs/internal/model"
	telem "github.com/timvw/dock-tabs/internal/otel"
	"github.com/timvw/dock-tabs/internal/screen"
	"github.com/timvw/dock-tabs/internal/shell"
	"github.com/timvw/dock-tabs/internal/tabs"
	"github.com/timvw/dock-tabs/internal/ui"
)

var (
	flagOpenLogs      []string
	flagOpenExec      []string
	flagTheme         string
	flagControlSocket string
	flagNoControl     bool
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Interactive panel of log and shell tabs",
	Long: `Launch the interactive terminal panel.

Tabs can be pre-opened with --logs and --exec (repeatable). Each value is a
container id, optionally followed by ":name" for the tab title:

  dock-tabs ui --logs 3f2a9c:api --exec 3f2a9c:api

While the panel runs, other processes can open and close tabs with
"dock-tabs open" and "dock-tabs close" through the control socket.

Application logs go to the file named by log_file (default
$XDG_STATE_HOME/dock-tabs/dock-tabs.log) because the panel owns the terminal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUI(cmd)
	},
}

func init() {
	uiCmd.Flags().StringArrayVar(&flagOpenLogs, "logs", nil, "open a logs tab for container id[:name] (repeatable)")
	uiCmd.Flags().StringArrayVar(&flagOpenExec, "exec", nil, "open a terminal tab for container id[:name] (repeatable)")
	uiCmd.Flags().StringVar(&flagTheme, "theme", "", "color theme: dark, light (default from config)")
	uiCmd.Flags().StringVar(&flagControlSocket, "control-socket", "", "unix datagram socket path for control commands")
	uiCmd.Flags().BoolVar(&flagNoControl, "no-control", false, "do not listen on the control socket")
	rootCmd.AddCommand(uiCmd)
}

func runUI(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagTheme != "" {
		cfg.Theme = flagTheme
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	var open []ui.OpenRequest
	for _, v := range flagOpenLogs {
		open = append(open, parseTarget(v, model.KindLogs))
	}
	for _, v := range flagOpenExec {
		open = append(open, parseTarget(v, model.KindTerminal))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, closeLog, err := setupLogging(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer closeLog()

	if cfg.ConfigFile != "" {
		pslog.Ctx(ctx).Info("config loaded", "path", cfg.ConfigFile)
	}

	metrics, shutdown := initTelemetry(ctx, cfg)
	defer shutdown()

	be, err := newBackend(cfg)
	if err != nil {
		return err
	}

	mgr := tabs.New(ctx, newFactory(be, metrics), tabs.Options{
		Metrics:     metrics,
		PanelHeight: cfg.PanelHeight,
	})

	socketPath := ""
	if !flagNoControl {
		socketPath = flagControlSocket
		if socketPath == "" {
			socketPath = cfg.ControlSocket
		}
		if socketPath == "" {
			socketPath = control.DefaultSocketPath()
		}
	}

	tui := &ui.TUI{
		Manager:       mgr,
		Theme:         ui.ThemeByName(cfg.Theme),
		DownloadDir:   cfg.DownloadDir,
		ControlSocket: socketPath,
		Open:          open,
	}
	pslog.Ctx(ctx).Info("ui starting", "server", cfg.Server, "control_socket", socketPath)
	return tui.Run(ctx)
}

// parseTarget splits "id[:name]".
func parseTarget(v string, kind model.Kind) ui.OpenRequest {
	id, name, _ := strings.Cut(v, ":")
	return ui.OpenRequest{ContainerID: id, Name: name, Kind: kind}
}

// newFactory builds sessions for new tabs. Log tabs get a log tail; terminal
// tabs get a shell drawing on an in-memory screen.
func newFactory(be backend.Backend, metrics *telem.Metrics) tabs.Factory {
	return func(tab model.Tab, notify func()) tabs.Session {
		switch tab.Kind {
		case model.KindTerminal:
			return shell.New(tab, be, screen.New(model.TerminalScrollback), shell.Options{
				Notify:  notify,
				Metrics: metrics,
			})
		default:
			return logstream.New(tab, be, logstream.Options{
				Notify:  notify,
				Metrics: metrics,
			})
		}
	}
}
