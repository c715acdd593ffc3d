// Package config loads dock-tabs configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (DOCK_TABS_*)
//  2. Config file
//  3. Built-in defaults
//
// Config file search order:
//  1. .dock-tabs.yaml in current directory
//  2. ~/.config/dock-tabs/config.yaml
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/timvw/dock-tabs/internal/model"
)

// Config holds all dock-tabs configuration.
type Config struct {
	// Backend
	Server            string `yaml:"server"`     // Base URL of the container management server
	APIPrefix         string `yaml:"api_prefix"` // REST path prefix, e.g. "/api"
	WSPrefix          string `yaml:"ws_prefix"`  // Streaming path prefix, e.g. "/ws"
	Token             string `yaml:"token"`
	AttachTokenToLogs bool   `yaml:"attach_token_to_logs"` // Also send the token on the log stream
	DialTimeout       string `yaml:"dial_timeout"`         // Go duration string, e.g. "10s"

	// Panel
	PanelHeight int    `yaml:"panel_height"` // px, clamped to [150, 600]
	Theme       string `yaml:"theme"`        // "dark" (default) or "light"
	DownloadDir string `yaml:"download_dir"`

	// Logging
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`

	// Control socket used by `dock-tabs open` / `dock-tabs close`
	ControlSocket string `yaml:"control_socket"`

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers"` // Comma-separated key=value pairs, e.g. "Authorization=Basic abc123"

	// Parsed durations (not from YAML, set after loading)
	DialTimeoutDuration time.Duration `yaml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Server:      "http://localhost:8080",
		APIPrefix:   "/api",
		WSPrefix:    "/ws",
		DialTimeout: "10s",
		PanelHeight: model.PanelDefaultHeight,
		Theme:       "dark",
		LogLevel:    "info",
	}
}

// Load reads configuration from file and environment variables.
// Environment variables always override file values.
func Load() (*Config, error) {
	cfg := Defaults()

	// Try to load config file
	if path, data, err := findConfigFile(); err == nil {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
		mergeFile(cfg, &fileCfg)
	}

	// Environment variables override everything
	if err := mergeEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finalize parses derived fields and validates the result.
func (c *Config) finalize() error {
	var err error
	c.DialTimeoutDuration, err = parseDurationOrDisable(c.DialTimeout, 10*time.Second)
	if err != nil {
		return fmt.Errorf("invalid dial timeout %q: %w", c.DialTimeout, err)
	}

	if err := c.Validate(); err != nil {
		return err
	}
	c.PanelHeight = model.ClampPanelHeight(c.PanelHeight)
	return nil
}

// Validate checks values that cannot be repaired by clamping. Call it
// again after overriding fields from flags.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server)
	if err != nil {
		return fmt.Errorf("invalid server URL %q: %w", c.Server, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server URL %q: want http(s)://host[:port]", c.Server)
	}

	switch c.Theme {
	case "dark", "light":
	default:
		return fmt.Errorf("invalid theme %q (supported: dark, light)", c.Theme)
	}
	return nil
}

// DefaultLogFile returns the log path used when log_file is not set.
func DefaultLogFile() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "dock-tabs", "dock-tabs.log")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "dock-tabs", "dock-tabs.log")
	}
	return filepath.Join(os.TempDir(), "dock-tabs.log")
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	// 1. Current directory
	if data, err := os.ReadFile(".dock-tabs.yaml"); err == nil {
		return ".dock-tabs.yaml", data, nil
	}

	// 2. XDG config dir / ~/.config
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "dock-tabs", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	if file.Server != "" {
		cfg.Server = file.Server
	}
	if file.APIPrefix != "" {
		cfg.APIPrefix = file.APIPrefix
	}
	if file.WSPrefix != "" {
		cfg.WSPrefix = file.WSPrefix
	}
	if file.Token != "" {
		cfg.Token = file.Token
	}
	if file.AttachTokenToLogs {
		cfg.AttachTokenToLogs = file.AttachTokenToLogs
	}
	if file.DialTimeout != "" {
		cfg.DialTimeout = file.DialTimeout
	}
	if file.PanelHeight > 0 {
		cfg.PanelHeight = file.PanelHeight
	}
	if file.Theme != "" {
		cfg.Theme = file.Theme
	}
	if file.DownloadDir != "" {
		cfg.DownloadDir = file.DownloadDir
	}
	if file.LogFile != "" {
		cfg.LogFile = file.LogFile
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.ControlSocket != "" {
		cfg.ControlSocket = file.ControlSocket
	}
	if file.OTELEndpoint != "" {
		cfg.OTELEndpoint = file.OTELEndpoint
	}
	if file.OTELHeaders != "" {
		cfg.OTELHeaders = file.OTELHeaders
	}
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) error {
	if v := os.Getenv("DOCK_TABS_SERVER"); v != "" {
		cfg.Server = v
	}
	if v := os.Getenv("DOCK_TABS_API_PREFIX"); v != "" {
		cfg.APIPrefix = v
	}
	if v := os.Getenv("DOCK_TABS_WS_PREFIX"); v != "" {
		cfg.WSPrefix = v
	}
	if v := os.Getenv("DOCK_TABS_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("DOCK_TABS_ATTACH_TOKEN_TO_LOGS"); v == "true" || v == "1" {
		cfg.AttachTokenToLogs = true
	}
	if v := os.Getenv("DOCK_TABS_DIAL_TIMEOUT"); v != "" {
		cfg.DialTimeout = v
	}
	if v := os.Getenv("DOCK_TABS_PANEL_HEIGHT"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DOCK_TABS_PANEL_HEIGHT %q: %w", v, err)
		}
		cfg.PanelHeight = h
	}
	if v := os.Getenv("DOCK_TABS_THEME"); v != "" {
		cfg.Theme = v
	}
	if v := os.Getenv("DOCK_TABS_DOWNLOAD_DIR"); v != "" {
		cfg.DownloadDir = v
	}
	if v := os.Getenv("DOCK_TABS_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("DOCK_TABS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DOCK_TABS_CONTROL_SOCKET"); v != "" {
		cfg.ControlSocket = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}
	return nil
}

// parseDurationOrDisable parses a duration string. "0", "off", "disable" return 0.
// Empty string returns the fallback value.
func parseDurationOrDisable(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	if s == "0" || s == "off" || s == "disable" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
