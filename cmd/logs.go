package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/timvw/dock-tabs/internal/backend"
	"github.com/timvw/dock-tabs/internal/logstream"
	"github.com/timvw/dock-tabs/internal/model"
)

var (
	flagLogsName     string
	flagLogsFollow   bool
	flagLogsDownload string
)

var logsCmd = &cobra.Command{
	Use:   "logs <container>",
	Short: "Print a container's logs without the panel",
	Long: `Print the most recent log lines of a container as "{timestamp} {content}".

With --follow the live stream is tailed until it ends or the command is
interrupted. With --download the buffered lines are written to
"{name}-logs-{timestamp}.txt" in the given directory instead of stdout.
At most the newest 500 lines are kept, as in a logs tab.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLogs(cmd, args[0])
	},
}

func init() {
	logsCmd.Flags().StringVar(&flagLogsName, "name", "", "display name of the container (default: the id)")
	logsCmd.Flags().BoolVarP(&flagLogsFollow, "follow", "f", false, "keep streaming new lines")
	logsCmd.Flags().StringVar(&flagLogsDownload, "download", "", "write lines to a file in this directory instead of stdout")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, containerID string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, closeLog, err := setupLogging(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer closeLog()

	metrics, shutdown := initTelemetry(ctx, cfg)
	defer shutdown()

	be, err := newBackend(cfg)
	if err != nil {
		return err
	}

	name := flagLogsName
	if name == "" {
		name = containerID
	}
	out := cmd.OutOrStdout()

	if !flagLogsFollow {
		entries, err := fetchEntries(ctx, be, containerID)
		if err != nil {
			return err
		}
		return emitEntries(out, cmd.ErrOrStderr(), name, entries)
	}

	changed := make(chan struct{}, 1)
	sess := logstream.New(model.Tab{
		ID:            containerID + "-" + string(model.KindLogs),
		Kind:          model.KindLogs,
		ContainerID:   containerID,
		ContainerName: name,
		Title:         model.TabTitle(model.KindLogs, name),
	}, be, logstream.Options{
		Metrics: metrics,
		Notify: func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		},
	})
	sess.Start(ctx)
	defer sess.Close()

	// Entry ids only grow while nothing clears the buffer.
	last := 0
	flush := func() {
		for _, e := range sess.Entries() {
			if e.ID <= last {
				continue
			}
			last = e.ID
			if flagLogsDownload == "" {
				fmt.Fprintln(out, e.Timestamp+" "+e.Content)
			}
		}
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-sess.Done():
			break loop
		case <-changed:
			flush()
		}
	}
	flush()

	status, streamErr := sess.Status(), sess.Err()
	sess.Close()

	if flagLogsDownload != "" {
		path, err := sess.Download(flagLogsDownload, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "saved", path)
	}
	if status == model.StatusError {
		return fmt.Errorf("log stream for %s: %w", containerID, streamErr)
	}
	return nil
}

// fetchEntries performs the one-shot history fetch.
func fetchEntries(ctx context.Context, be backend.Backend, containerID string) ([]model.LogEntry, error) {
	text, err := be.FetchLogs(ctx, containerID, model.LogBootstrapTail)
	if err != nil {
		return nil, fmt.Errorf("fetch logs for %s: %w", containerID, err)
	}
	now := time.Now()
	var entries []model.LogEntry
	for _, line := range logstream.SplitLines(text) {
		ts, content, ok := logstream.ParseLine(line, now)
		if !ok {
			continue
		}
		entries = append(entries, model.LogEntry{
			ID:        len(entries) + 1,
			Timestamp: ts,
			Content:   content,
			Stream:    model.StreamStdout,
		})
	}
	pslog.Ctx(ctx).Debug("logs fetched", "container", containerID, "entries", len(entries))
	return entries, nil
}

func emitEntries(out, errOut io.Writer, name string, entries []model.LogEntry) error {
	if flagLogsDownload != "" {
		path, err := logstream.WriteDownload(flagLogsDownload, name, entries, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(errOut, "saved", path)
		return nil
	}
	if len(entries) == 0 {
		return nil
	}
	_, err := fmt.Fprintln(out, logstream.FormatEntries(entries))
	return err
}
