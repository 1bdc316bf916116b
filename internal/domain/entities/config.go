package entities

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Watcher   WatcherConfig   `toml:"watcher"`
	Git       GitConfig       `toml:"git"`
	Gemini    GeminiConfig    `toml:"gemini"`
	Discovery DiscoveryConfig `toml:"discovery"`
	Logging   LoggingConfig   `toml:"logging"`
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Watcher.Validate(); err != nil {
		return fmt.Errorf("watcher config: %w", err)
	}

	if err := c.Git.Validate(); err != nil {
		return fmt.Errorf("git config: %w", err)
	}

	if err := c.Gemini.Validate(); err != nil {
		return fmt.Errorf("gemini config: %w", err)
	}

	if err := c.Discovery.Validate(); err != nil {
		return fmt.Errorf("discovery config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	ReadTimeout     int      `toml:"read_timeout"`
	WriteTimeout    int      `toml:"write_timeout"`
	ShutdownTimeout int      `toml:"shutdown_timeout"`
	CORSOrigins     []string `toml:"cors_origins"`
}

// Validate validates server configuration
func (s ServerConfig) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return errors.New("port must be between 0 and 65535")
	}

	if s.Host != "" {
		if ip := net.ParseIP(s.Host); ip == nil {
			if _, err := net.LookupHost(s.Host); err != nil {
				return fmt.Errorf("invalid host: %w", err)
			}
		}
	}

	if s.ReadTimeout < 0 {
		return errors.New("read timeout must be non-negative")
	}

	if s.WriteTimeout < 0 {
		return errors.New("write timeout must be non-negative")
	}

	return nil
}

// GetReadTimeout returns the read timeout as a duration
func (s ServerConfig) GetReadTimeout() time.Duration {
	if s.ReadTimeout <= 0 {
		return 15 * time.Second
	}
	return time.Duration(s.ReadTimeout) * time.Second
}

// GetWriteTimeout returns the write timeout as a duration
func (s ServerConfig) GetWriteTimeout() time.Duration {
	if s.WriteTimeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(s.WriteTimeout) * time.Second
}

// GetShutdownTimeout returns the shutdown timeout as a duration
func (s ServerConfig) GetShutdownTimeout() time.Duration {
	if s.ShutdownTimeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ShutdownTimeout) * time.Second
}

// GetCORSOrigins returns the allowed CORS origins with localhost defaults
func (s ServerConfig) GetCORSOrigins() []string {
	if len(s.CORSOrigins) > 0 {
		return s.CORSOrigins
	}
	return []string{"http://localhost:3000", "http://127.0.0.1:3000"}
}

// Watcher modes supported by the watcher factory.
const (
	WatcherModeAuto   = "auto"
	WatcherModeNotify = "notify"
	WatcherModeRescan = "rescan"
)

// WatcherConfig contains repository watcher configuration
type WatcherConfig struct {
	Mode           string   `toml:"mode"`
	DebounceMs     int      `toml:"debounce_ms"`
	RescanMs       int      `toml:"rescan_ms"`
	StopTimeoutSec int      `toml:"stop_timeout"`
	IgnoreDirs     []string `toml:"ignore_dirs"`
	IgnoreGlobs    []string `toml:"ignore_globs"`
}

// Validate validates watcher configuration
func (w WatcherConfig) Validate() error {
	switch w.Mode {
	case "", WatcherModeAuto, WatcherModeNotify, WatcherModeRescan:
	default:
		return fmt.Errorf("unknown watcher mode %q", w.Mode)
	}

	if w.DebounceMs < 0 {
		return errors.New("debounce must be non-negative")
	}

	if w.RescanMs < 0 {
		return errors.New("rescan interval must be non-negative")
	}

	return nil
}

// GetMode returns the configured watcher mode, defaulting to auto
func (w WatcherConfig) GetMode() string {
	if w.Mode == "" {
		return WatcherModeAuto
	}
	return w.Mode
}

// GetDebounce returns the debounce interval as a duration
func (w WatcherConfig) GetDebounce() time.Duration {
	if w.DebounceMs <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// GetRescanInterval returns the fallback rescan interval as a duration
func (w WatcherConfig) GetRescanInterval() time.Duration {
	if w.RescanMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(w.RescanMs) * time.Millisecond
}

// GetStopTimeout returns how long Stop waits for the watch loop to exit
func (w WatcherConfig) GetStopTimeout() time.Duration {
	if w.StopTimeoutSec <= 0 {
		return 3 * time.Second
	}
	return time.Duration(w.StopTimeoutSec) * time.Second
}

// GetIgnoreDirs returns the directory names excluded from watching and
// enumeration
func (w WatcherConfig) GetIgnoreDirs() []string {
	if len(w.IgnoreDirs) > 0 {
		return w.IgnoreDirs
	}
	return []string{".git", "__pycache__", "node_modules", "venv", ".idea", ".vscode"}
}

// GitConfig contains git command execution configuration
type GitConfig struct {
	Binary         string `toml:"binary"`
	CommandTimeout int    `toml:"command_timeout"`
}

// Validate validates git configuration
func (g GitConfig) Validate() error {
	if g.CommandTimeout < 0 {
		return errors.New("command timeout must be non-negative")
	}
	return nil
}

// GetBinary returns the git binary name or path
func (g GitConfig) GetBinary() string {
	if g.Binary == "" {
		return "git"
	}
	return g.Binary
}

// GetCommandTimeout returns the per-command timeout as a duration
func (g GitConfig) GetCommandTimeout() time.Duration {
	if g.CommandTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(g.CommandTimeout) * time.Second
}

// GeminiConfig contains Gemini API configuration. The key is optional at
// startup; assistant endpoints report a missing key per request instead.
type GeminiConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	Timeout int    `toml:"timeout"`
}

// Validate validates Gemini configuration
func (g GeminiConfig) Validate() error {
	if g.Timeout < 0 {
		return errors.New("timeout must be non-negative")
	}
	return nil
}

// GetAPIKey returns the API key, preferring the GEMINI_API_KEY environment
// variable over the config file value
func (g GeminiConfig) GetAPIKey() string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	return g.APIKey
}

// GetModel returns the Gemini model name
func (g GeminiConfig) GetModel() string {
	if g.Model == "" {
		return "gemini-2.5-flash"
	}
	return g.Model
}

// GetTimeout returns the request timeout as a duration
func (g GeminiConfig) GetTimeout() time.Duration {
	if g.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(g.Timeout) * time.Second
}

// DiscoveryConfig controls where repository discovery looks for working trees
type DiscoveryConfig struct {
	SearchPaths []string `toml:"search_paths"`
	MaxDepth    int      `toml:"max_depth"`
}

// Validate validates discovery configuration
func (d DiscoveryConfig) Validate() error {
	if d.MaxDepth < 0 {
		return errors.New("max depth must be non-negative")
	}
	return nil
}

// GetSearchPaths returns the search roots, defaulting to common locations
// under the user's home directory
func (d DiscoveryConfig) GetSearchPaths() []string {
	if len(d.SearchPaths) > 0 {
		return d.SearchPaths
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, "Documents", "GitHub"),
		filepath.Join(home, "Documents"),
		filepath.Join(home, "source"),
		filepath.Join(home, "repos"),
		filepath.Join(home, "Projects"),
	}
}

// GetMaxDepth returns how deep discovery descends below each search root
func (d DiscoveryConfig) GetMaxDepth() int {
	if d.MaxDepth <= 0 {
		return 2
	}
	return d.MaxDepth
}

// LogLevel represents a logging verbosity level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level   string `toml:"level"`
	Verbose bool   `toml:"verbose"`
}

// Validate validates logging configuration
func (l LoggingConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("unknown log level %q", l.Level)
	}
}

// GetLevel returns the normalized log level
func (l LoggingConfig) GetLevel() LogLevel {
	switch strings.ToLower(l.Level) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}
