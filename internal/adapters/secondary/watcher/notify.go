package watcher

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// NotifyWatcher implements ports.TreeWatcher on top of the platform's native
// change-notification API via fsnotify. One background goroutine drains raw
// events; a single replaceable timer coalesces bursts into one callback per
// quiet period.
type NotifyWatcher struct {
	logger      *slog.Logger
	ignoreDirs  map[string]struct{}
	stopTimeout time.Duration

	mu       sync.Mutex
	fs       *fsnotify.Watcher
	timer    *time.Timer
	callback func()
	debounce time.Duration
	watching bool
	done     chan struct{}
	loopDone chan struct{}

	changed atomic.Bool
}

// NewNotifyWatcher creates a native-event tree watcher. ignoreDirs lists
// directory names excluded from the watch.
func NewNotifyWatcher(ignoreDirs []string, stopTimeout time.Duration, logger *slog.Logger) *NotifyWatcher {
	if logger == nil {
		logger = slog.Default()
	}

	ignored := make(map[string]struct{}, len(ignoreDirs))
	for _, name := range ignoreDirs {
		ignored[name] = struct{}{}
	}

	return &NotifyWatcher{
		logger:      logger.With("component", "watcher"),
		ignoreDirs:  ignored,
		stopTimeout: stopTimeout,
	}
}

// Start acquires the native watch for path and spawns the background loop.
// If the watch resource cannot be acquired the watcher logs, runs the priming
// callback, and returns nil with no live watch (poll-only degradation).
func (w *NotifyWatcher) Start(path string, callback func(), debounce time.Duration) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return errors.New("watcher already started")
	}
	w.callback = callback
	w.debounce = debounce
	w.mu.Unlock()

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("native watch unavailable, degrading to poll-only mode",
			slog.String("path", path),
			slog.String("error", err.Error()))
		w.invokeCallback()
		return nil
	}

	if err := w.addTree(fs, path); err != nil {
		_ = fs.Close()
		w.logger.Warn("failed to watch directory tree, degrading to poll-only mode",
			slog.String("path", path),
			slog.String("error", err.Error()))
		w.invokeCallback()
		return nil
	}

	w.mu.Lock()
	w.fs = fs
	w.watching = true
	w.done = make(chan struct{})
	w.loopDone = make(chan struct{})
	w.changed.Store(false)
	w.mu.Unlock()

	go w.loop(fs, w.done, w.loopDone)

	// Priming call so the cache is never empty; does not set the flag.
	w.invokeCallback()

	return nil
}

// Stop releases the watch handle, cancels any pending debounce timer, and
// joins the loop with a bounded timeout. Idempotent.
func (w *NotifyWatcher) Stop() {
	w.mu.Lock()
	if !w.watching {
		w.mu.Unlock()
		return
	}
	w.watching = false

	fs := w.fs
	w.fs = nil

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}

	done := w.done
	loopDone := w.loopDone
	w.mu.Unlock()

	close(done)

	// Closing the handle also closes the event channels, which unblocks the
	// loop even mid-read.
	if err := fs.Close(); err != nil {
		w.logger.Warn("closing watch handle", slog.String("error", err.Error()))
	}

	select {
	case <-loopDone:
	case <-time.After(w.stopTimeout):
		w.logger.Error("watch loop did not exit before timeout, goroutine may leak",
			slog.Duration("timeout", w.stopTimeout))
	}
}

// ConsumeChange atomically tests and clears the change flag.
func (w *NotifyWatcher) ConsumeChange() bool {
	return w.changed.Swap(false)
}

// addTree registers path and every non-ignored subdirectory with the watch.
func (w *NotifyWatcher) addTree(fs *fsnotify.Watcher, root string) error {
	if err := fs.Add(root); err != nil {
		return err
	}

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		if !info.IsDir() || path == root {
			return nil
		}
		if _, skip := w.ignoreDirs[info.Name()]; skip {
			return filepath.SkipDir
		}
		if err := fs.Add(path); err != nil {
			w.logger.Debug("could not watch subdirectory",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil
	})
}

// loop drains raw events until the handle is closed or Stop is called. The
// loop never exits on transient errors.
func (w *NotifyWatcher) loop(fs *fsnotify.Watcher, done <-chan struct{}, loopDone chan<- struct{}) {
	defer close(loopDone)

	for {
		select {
		case event, ok := <-fs.Events:
			if !ok {
				return
			}
			w.handleEvent(fs, event)

		case err, ok := <-fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error, continuing", slog.String("error", err.Error()))

		case <-done:
			return
		}
	}
}

// handleEvent filters one raw event and reschedules the debounce timer.
func (w *NotifyWatcher) handleEvent(fs *fsnotify.Watcher, event fsnotify.Event) {
	if w.isIgnored(event.Name) {
		return
	}

	// Newly created directories must join the watch or mutations beneath
	// them go unseen.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if _, skip := w.ignoreDirs[info.Name()]; !skip {
				_ = fs.Add(event.Name)
			}
		}
	}

	w.scheduleRefresh()
}

// isIgnored reports whether any path segment is in the ignore set.
func (w *NotifyWatcher) isIgnored(path string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(path), "/") {
		if _, skip := w.ignoreDirs[segment]; skip {
			return true
		}
	}
	return false
}

// scheduleRefresh cancels and replaces the pending debounce timer; at most
// one timer is live per watcher.
func (w *NotifyWatcher) scheduleRefresh() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.watching {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

// fire runs on the timer goroutine once a full quiet period has elapsed.
func (w *NotifyWatcher) fire() {
	w.mu.Lock()
	live := w.watching
	w.timer = nil
	w.mu.Unlock()

	if !live {
		return
	}

	w.invokeCallback()
	w.changed.Store(true)
}

// invokeCallback runs the refresh callback, recovering panics so they can
// never kill the background loop or the timer goroutine.
func (w *NotifyWatcher) invokeCallback() {
	w.mu.Lock()
	callback := w.callback
	w.mu.Unlock()

	if callback == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("watcher callback panicked", slog.Any("panic", r))
		}
	}()
	callback()
}
