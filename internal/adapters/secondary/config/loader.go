package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/gitscope/gitscope/internal/domain/entities"
)

// TOMLLoader implements the ConfigLoader port using TOML files: one global
// file under the user config directory plus an optional per-repository file.
type TOMLLoader struct {
	globalPath string
	localName  string
}

// NewTOMLLoader creates a TOML configuration loader.
func NewTOMLLoader() *TOMLLoader {
	homeDir, _ := os.UserHomeDir()
	globalPath := filepath.Join(homeDir, ".config", "gitscope", "config.toml")

	return &TOMLLoader{
		globalPath: globalPath,
		localName:  "gitscope.toml",
	}
}

// LoadGlobal loads the global configuration file, creating defaults on first
// run.
func (l *TOMLLoader) LoadGlobal(ctx context.Context) (*entities.Config, error) {
	if _, err := os.Stat(l.globalPath); os.IsNotExist(err) {
		if err := l.CreateDefaults(ctx, l.globalPath); err != nil {
			return nil, fmt.Errorf("creating defaults: %w", err)
		}
	}

	return l.loadConfig(l.globalPath)
}

// LoadLocal loads an optional configuration file from the given directory.
func (l *TOMLLoader) LoadLocal(ctx context.Context, dir string) (*entities.Config, error) {
	localPath := filepath.Join(dir, l.localName)

	if _, err := os.Stat(localPath); os.IsNotExist(err) {
		return nil, nil // local config is optional
	}

	return l.loadConfig(localPath)
}

// CreateDefaults writes a default configuration file at path.
func (l *TOMLLoader) CreateDefaults(ctx context.Context, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}

	file, err := os.Create(path) // #nosec G304 - path is the controlled config location
	if err != nil {
		return fmt.Errorf("creating config file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	encoder := toml.NewEncoder(file)
	encoder.Indent = "  "

	if err := encoder.Encode(GetDefaultConfig()); err != nil {
		return fmt.Errorf("encoding config to %s: %w", path, err)
	}

	return nil
}

// GetGlobalPath returns the path of the global configuration file.
func (l *TOMLLoader) GetGlobalPath() string {
	return l.globalPath
}

// loadConfig loads and validates one configuration file.
func (l *TOMLLoader) loadConfig(path string) (*entities.Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is from controlled sources
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var config entities.Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing TOML from %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}

	return &config, nil
}

// GetDefaultConfig returns the configuration used when no file exists yet.
func GetDefaultConfig() *entities.Config {
	return &entities.Config{
		Server: entities.ServerConfig{
			Host: "127.0.0.1",
			Port: 5000,
		},
		Watcher: entities.WatcherConfig{
			Mode:       entities.WatcherModeAuto,
			DebounceMs: 200,
			IgnoreDirs: []string{".git", "__pycache__", "node_modules", "venv", ".idea", ".vscode"},
		},
		Gemini: entities.GeminiConfig{
			Model: "gemini-2.5-flash",
		},
		Logging: entities.LoggingConfig{
			Level: "info",
		},
	}
}

// Merge overlays non-zero values of the local config onto the global one.
func Merge(global, local *entities.Config) *entities.Config {
	if local == nil {
		return global
	}

	merged := *global

	if local.Server.Host != "" {
		merged.Server.Host = local.Server.Host
	}
	if local.Server.Port != 0 {
		merged.Server.Port = local.Server.Port
	}
	if len(local.Server.CORSOrigins) > 0 {
		merged.Server.CORSOrigins = local.Server.CORSOrigins
	}

	if local.Watcher.Mode != "" {
		merged.Watcher.Mode = local.Watcher.Mode
	}
	if local.Watcher.DebounceMs != 0 {
		merged.Watcher.DebounceMs = local.Watcher.DebounceMs
	}
	if len(local.Watcher.IgnoreDirs) > 0 {
		merged.Watcher.IgnoreDirs = local.Watcher.IgnoreDirs
	}
	if len(local.Watcher.IgnoreGlobs) > 0 {
		merged.Watcher.IgnoreGlobs = local.Watcher.IgnoreGlobs
	}

	if local.Git.Binary != "" {
		merged.Git.Binary = local.Git.Binary
	}
	if local.Git.CommandTimeout != 0 {
		merged.Git.CommandTimeout = local.Git.CommandTimeout
	}

	if local.Gemini.APIKey != "" {
		merged.Gemini.APIKey = local.Gemini.APIKey
	}
	if local.Gemini.Model != "" {
		merged.Gemini.Model = local.Gemini.Model
	}

	if len(local.Discovery.SearchPaths) > 0 {
		merged.Discovery.SearchPaths = local.Discovery.SearchPaths
	}
	if local.Discovery.MaxDepth != 0 {
		merged.Discovery.MaxDepth = local.Discovery.MaxDepth
	}

	if local.Logging.Level != "" {
		merged.Logging.Level = local.Logging.Level
	}

	return &merged
}
