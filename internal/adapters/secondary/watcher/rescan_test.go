package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitscope/gitscope/internal/domain/entities"
)

func TestRescanWatcherDetectsNewFile(t *testing.T) {
	dir := t.TempDir()
	w := NewRescanWatcher([]string{".git"}, 20*time.Millisecond, nil)
	defer w.Stop()

	var calls atomic.Int32
	require.NoError(t, w.Start(dir, func() { calls.Add(1) }, 0))

	assert.Equal(t, int32(1), calls.Load(), "priming callback")
	assert.False(t, w.ConsumeChange())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("data"), 0644))

	waitFor(t, func() bool { return calls.Load() >= 2 }, "rescan did not notice the new file")
	waitFor(t, w.ConsumeChange, "change flag was not set")
}

func TestRescanWatcherQuietTreeStaysQuiet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stable.txt"), []byte("x"), 0644))

	w := NewRescanWatcher(nil, 20*time.Millisecond, nil)
	defer w.Stop()

	var calls atomic.Int32
	require.NoError(t, w.Start(dir, func() { calls.Add(1) }, 0))

	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, int32(1), calls.Load(), "unchanged tree must not fire")
	assert.False(t, w.ConsumeChange())
}

func TestRescanWatcherIgnoresConfiguredDirs(t *testing.T) {
	dir := t.TempDir()
	gitDir := filepath.Join(dir, ".git")
	require.NoError(t, os.Mkdir(gitDir, 0755))

	w := NewRescanWatcher([]string{".git"}, 20*time.Millisecond, nil)
	defer w.Stop()

	var calls atomic.Int32
	require.NoError(t, w.Start(dir, func() { calls.Add(1) }, 0))

	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "index"), []byte("x"), 0644))
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, int32(1), calls.Load())
}

func TestRescanWatcherStopIsIdempotent(t *testing.T) {
	w := NewRescanWatcher(nil, 20*time.Millisecond, nil)
	require.NoError(t, w.Start(t.TempDir(), func() {}, 0))

	w.Stop()
	w.Stop()
}

func TestWatcherFactoryModes(t *testing.T) {
	t.Run("rescan mode", func(t *testing.T) {
		cfg := entities.WatcherConfig{Mode: entities.WatcherModeRescan}
		_, ok := New(cfg, nil).(*RescanWatcher)
		assert.True(t, ok)
	})

	t.Run("auto mode prefers native events", func(t *testing.T) {
		cfg := entities.WatcherConfig{Mode: entities.WatcherModeAuto}
		_, ok := New(cfg, nil).(*NotifyWatcher)
		assert.True(t, ok)
	})

	t.Run("default mode", func(t *testing.T) {
		_, ok := New(entities.WatcherConfig{}, nil).(*NotifyWatcher)
		assert.True(t, ok)
	})
}
