package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timvw/dock-tabs/internal/config"
	"github.com/timvw/dock-tabs/internal/control"
	"github.com/timvw/dock-tabs/internal/model"
)

var (
	flagOpenName string
	flagOpenKind string
	flagSocket   string
)

var openCmd = &cobra.Command{
	Use:   "open <container>",
	Short: "Open a tab in a running panel",
	Long: `Ask a running "dock-tabs ui" to open (or activate) a tab for a container.

The kind is "logs" (default) or "terminal" ("exec" and "shell" are accepted).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := model.ParseKind(flagOpenKind)
		if err != nil {
			return err
		}
		return sendControl(control.Command{
			Action:    control.ActionOpen,
			Container: args[0],
			Name:      flagOpenName,
			Kind:      string(kind),
		})
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <tab-id>",
	Short: "Close a tab in a running panel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendControl(control.Command{
			Action: control.ActionClose,
			Tab:    args[0],
		})
	},
}

var closeAllCmd = &cobra.Command{
	Use:   "close-all",
	Short: "Close every tab in a running panel",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendControl(control.Command{Action: control.ActionCloseAll})
	},
}

func init() {
	openCmd.Flags().StringVar(&flagOpenName, "name", "", "tab display name (default: the container id)")
	openCmd.Flags().StringVar(&flagOpenKind, "kind", "logs", "session kind: logs, terminal")
	for _, c := range []*cobra.Command{openCmd, closeCmd, closeAllCmd} {
		c.Flags().StringVar(&flagSocket, "control-socket", "", "control socket of the running panel")
		rootCmd.AddCommand(c)
	}
}

// sendControl resolves the socket path (flag, then config, then default)
// and delivers c.
func sendControl(c control.Command) error {
	path := flagSocket
	if path == "" {
		if cfg, err := config.Load(); err == nil {
			path = cfg.ControlSocket
		}
	}
	if path == "" {
		path = control.DefaultSocketPath()
	}
	if err := control.Send(path, c); err != nil {
		return fmt.Errorf("%s: %w", c.Action, err)
	}
	return nil
}
