package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/timvw/dock-tabs/internal/backend"
	"github.com/timvw/dock-tabs/internal/config"
	"github.com/timvw/dock-tabs/internal/logx"
	telem "github.com/timvw/dock-tabs/internal/otel"
)

var (
	// Global flags.
	flagServer   string
	flagToken    string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "dock-tabs",
	Short: "Tail container logs and drive container shells in terminal tabs",
	Long: `dock-tabs talks to a container management server and opens live log
tails and interactive shells as tabs in a resizable terminal panel.

Historical logs are fetched over REST; live logs and shells are streamed
over websockets. Every tab keeps its own connection until it is closed.

Configuration is loaded from .dock-tabs.yaml, ~/.config/dock-tabs/config.yaml,
or DOCK_TABS_* environment variables.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", envOrDefault("DOCK_TABS_SERVER", ""), "container management server base URL (default from config: http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", envOrDefault("DOCK_TABS_TOKEN", ""), "access token for the streaming endpoints")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", envOrDefault("DOCK_TABS_LOG_LEVEL", ""), "log level: debug, info, warn, error")
}

// loadConfig reads the config file and environment, then applies global
// flags on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if flagServer != "" && flagServer != cfg.Server {
		cfg.Server = flagServer
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	if flagToken != "" {
		cfg.Token = flagToken
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, nil
}

// setupLogging attaches a logger to ctx. The TUI owns the terminal, so it
// logs to a file; headless commands log to stderr.
func setupLogging(ctx context.Context, cfg *config.Config, toFile bool) (context.Context, func(), error) {
	if !toFile {
		log := logx.New(os.Stderr, cfg.LogLevel, true)
		return logx.ContextWithLogger(ctx, log), func() {}, nil
	}

	path := cfg.LogFile
	if path == "" {
		path = config.DefaultLogFile()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ctx, nil, fmt.Errorf("log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return ctx, nil, fmt.Errorf("log file: %w", err)
	}
	log := logx.New(f, cfg.LogLevel, false)
	return logx.ContextWithLogger(ctx, log), func() { _ = f.Close() }, nil
}

// initTelemetry starts OTEL export when an endpoint is configured. The
// returned metrics are nil otherwise; every Record method accepts nil.
func initTelemetry(ctx context.Context, cfg *config.Config) (*telem.Metrics, func()) {
	// Wire build version into OTEL service metadata
	telem.Version = Version

	tel, err := telem.Init(ctx, telem.OTELConfig{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
	})
	if err != nil {
		pslog.Ctx(ctx).Warn("otel init failed", "err", err)
	}
	if tel == nil {
		return nil, func() {}
	}
	return tel.Metrics, func() { tel.Shutdown(context.WithoutCancel(ctx)) }
}

// newBackend builds the server client from cfg.
func newBackend(cfg *config.Config) (*backend.Client, error) {
	return backend.FromURL(cfg.Server, backend.Options{
		APIPrefix:         cfg.APIPrefix,
		WSPrefix:          cfg.WSPrefix,
		Token:             cfg.Token,
		AttachTokenToLogs: cfg.AttachTokenToLogs,
		DialTimeout:       cfg.DialTimeoutDuration,
	})
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
