package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitscope/gitscope/internal/domain/entities"
)

func TestCreateDefaultsThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	loader := NewTOMLLoader()
	require.NoError(t, loader.CreateDefaults(context.Background(), path))

	cfg, err := loader.loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, entities.WatcherModeAuto, cfg.Watcher.Mode)
	assert.Contains(t, cfg.Watcher.IgnoreDirs, ".git")
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
}

func TestLoadLocalMissingIsNotAnError(t *testing.T) {
	loader := NewTOMLLoader()

	cfg, err := loader.LoadLocal(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadLocalReadsRepoFile(t *testing.T) {
	dir := t.TempDir()
	content := "[watcher]\ndebounce_ms = 500\n\n[gemini]\nmodel = \"gemini-2.5-pro\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gitscope.toml"), []byte(content), 0644))

	loader := NewTOMLLoader()
	cfg, err := loader.LoadLocal(context.Background(), dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 500, cfg.Watcher.DebounceMs)
	assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.Model)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	content := "[server]\nport = 99999\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gitscope.toml"), []byte(content), 0644))

	loader := NewTOMLLoader()
	_, err := loader.LoadLocal(context.Background(), dir)
	assert.ErrorContains(t, err, "port")
}

func TestMergeOverlaysLocalOntoGlobal(t *testing.T) {
	global := GetDefaultConfig()
	local := &entities.Config{
		Server:  entities.ServerConfig{Port: 8080},
		Watcher: entities.WatcherConfig{DebounceMs: 350},
		Gemini:  entities.GeminiConfig{Model: "gemini-2.5-pro"},
	}

	merged := Merge(global, local)

	assert.Equal(t, 8080, merged.Server.Port)
	assert.Equal(t, "127.0.0.1", merged.Server.Host, "unset local fields keep global values")
	assert.Equal(t, 350, merged.Watcher.DebounceMs)
	assert.Equal(t, "gemini-2.5-pro", merged.Gemini.Model)
	assert.Equal(t, 5000, global.Server.Port, "global config is not mutated")
}

func TestMergeNilLocal(t *testing.T) {
	global := GetDefaultConfig()
	assert.Same(t, global, Merge(global, nil))
}
