package watcher

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// RescanWatcher implements ports.TreeWatcher by periodically re-scanning the
// tree and comparing a cheap signature (file count, total size, newest mtime).
// It is the fallback when native change notification is unavailable or
// explicitly disabled; the scan interval itself bounds the callback rate, so
// no separate debounce timer is needed.
type RescanWatcher struct {
	logger     *slog.Logger
	ignoreDirs map[string]struct{}
	interval   time.Duration

	mu       sync.Mutex
	callback func()
	watching bool
	done     chan struct{}
	loopDone chan struct{}
	last     treeSignature

	changed atomic.Bool
}

type treeSignature struct {
	files     int
	totalSize int64
	newest    time.Time
}

// NewRescanWatcher creates a timed re-scan watcher.
func NewRescanWatcher(ignoreDirs []string, interval time.Duration, logger *slog.Logger) *RescanWatcher {
	if logger == nil {
		logger = slog.Default()
	}

	ignored := make(map[string]struct{}, len(ignoreDirs))
	for _, name := range ignoreDirs {
		ignored[name] = struct{}{}
	}

	return &RescanWatcher{
		logger:     logger.With("component", "rescan-watcher"),
		ignoreDirs: ignored,
		interval:   interval,
	}
}

// Start records the baseline signature, runs the priming callback, and spawns
// the scan loop. The debounce argument is accepted for interface parity; the
// scan interval already coalesces bursts.
func (w *RescanWatcher) Start(path string, callback func(), debounce time.Duration) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return errors.New("watcher already started")
	}
	w.callback = callback
	w.watching = true
	w.done = make(chan struct{})
	w.loopDone = make(chan struct{})
	w.last = w.scan(path)
	w.changed.Store(false)
	done, loopDone := w.done, w.loopDone
	w.mu.Unlock()

	go w.loop(path, done, loopDone)

	w.invokeCallback()

	return nil
}

// Stop terminates the scan loop. Idempotent.
func (w *RescanWatcher) Stop() {
	w.mu.Lock()
	if !w.watching {
		w.mu.Unlock()
		return
	}
	w.watching = false
	done, loopDone := w.done, w.loopDone
	w.mu.Unlock()

	close(done)
	<-loopDone
}

// ConsumeChange atomically tests and clears the change flag.
func (w *RescanWatcher) ConsumeChange() bool {
	return w.changed.Swap(false)
}

func (w *RescanWatcher) loop(path string, done <-chan struct{}, loopDone chan<- struct{}) {
	defer close(loopDone)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			sig := w.scan(path)

			w.mu.Lock()
			changed := sig != w.last
			w.last = sig
			live := w.watching
			w.mu.Unlock()

			if changed && live {
				w.invokeCallback()
				w.changed.Store(true)
			}
		}
	}
}

// scan walks the tree and accumulates the signature, skipping ignored
// directories. Walk errors are tolerated; a partial signature still detects
// most changes.
func (w *RescanWatcher) scan(root string) treeSignature {
	var sig treeSignature

	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if _, skip := w.ignoreDirs[info.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		sig.files++
		sig.totalSize += info.Size()
		if info.ModTime().After(sig.newest) {
			sig.newest = info.ModTime()
		}
		return nil
	})

	return sig
}

func (w *RescanWatcher) invokeCallback() {
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
