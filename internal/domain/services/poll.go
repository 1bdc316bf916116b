package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gitscope/gitscope/internal/domain/entities"
	"github.com/gitscope/gitscope/internal/domain/ports"
)

// ChangeCache owns the authoritative last-known snapshots of a working tree
// and implements the polling decision protocol. One mutex serializes the
// watcher's refresh callback and concurrent Poll calls; snapshots degrade to
// stale-but-present on scan failure, never back to empty once primed.
type ChangeCache struct {
	root    string
	scanner ports.StatusScanner
	files   ports.FileEnumerator
	watcher ports.TreeWatcher
	logger  *slog.Logger

	mu             sync.Mutex
	statusSnap     *entities.StatusSnapshot
	fileSnap       *entities.FileListSnapshot
	lastStatusHash *uint64
	lastFilesHash  *uint64
}

// NewChangeCache creates a cache for the tree rooted at root. The watcher may
// be nil (poll-only sessions).
func NewChangeCache(root string, scanner ports.StatusScanner, files ports.FileEnumerator, watcher ports.TreeWatcher, logger *slog.Logger) *ChangeCache {
	if logger == nil {
		logger = slog.Default()
	}

	return &ChangeCache{
		root:    root,
		scanner: scanner,
		files:   files,
		watcher: watcher,
		logger:  logger.With("service", "change_cache"),
	}
}

// Refresh re-scans status and file list. Invoked by the watcher's debounced
// callback; also usable to prime the cache.
func (c *ChangeCache) Refresh(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.updateStatusLocked(ctx)
	c.updateFilesLocked(ctx)
}

// Status returns the cached status snapshot, or false when no scan has
// succeeded yet.
func (c *ChangeCache) Status() (entities.StatusSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.statusSnap == nil {
		return entities.StatusSnapshot{}, false
	}
	return *c.statusSnap, true
}

// Files returns the cached file list snapshot, or false when no enumeration
// has succeeded yet.
func (c *ChangeCache) Files() (entities.FileListSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fileSnap == nil {
		return entities.FileListSnapshot{}, false
	}
	return *c.fileSnap, true
}

// Poll consumes the watcher flag, refreshes whatever the decision protocol
// requires, compares snapshot hashes against the caller-visible cursors, and
// advances the cursors so each distinct state is reported changed at most
// once across sequential polls.
func (c *ChangeCache) Poll(ctx context.Context, force bool) entities.PollResult {
	watcherTriggered := false
	if c.watcher != nil {
		watcherTriggered = c.watcher.ConsumeChange()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Force means the caller wants current truth, not a cache hit.
	if force {
		c.updateStatusLocked(ctx)
		watcherTriggered = true
	}

	// A watcher trigger guarantees the snapshot was refreshed moments ago by
	// the callback (or by the force branch above); reuse it. Otherwise scan
	// inline to cover polls that arrive before any callback has fired.
	if !watcherTriggered || c.statusSnap == nil {
		c.updateStatusLocked(ctx)
	}

	// A scan may never have succeeded; treat as an empty tree.
	snap := entities.NewStatusSnapshot("")
	if c.statusSnap != nil {
		snap = *c.statusSnap
	}

	// A nil cursor means the caller has seen nothing yet: pending changes are
	// reported immediately, but a clean tree stays quiet on the first poll too.
	statusChanged := false
	if c.lastStatusHash == nil {
		statusChanged = !snap.IsEmpty()
	} else {
		statusChanged = snap.Hash != *c.lastStatusHash
	}
	hasChanged := watcherTriggered || statusChanged

	// The cursor always advances so the next poll compares against this
	// call's value, never re-reporting a state the client has seen.
	statusHash := snap.Hash
	c.lastStatusHash = &statusHash

	// File-list changes need re-enumeration only when the tree mutated or
	// nothing is cached yet; content changes are covered by the status scan.
	if watcherTriggered || c.fileSnap == nil {
		c.updateFilesLocked(ctx)
	}

	filesChanged := false
	if c.fileSnap != nil {
		if c.lastFilesHash == nil {
			filesChanged = len(c.fileSnap.Paths) > 0
		} else {
			filesChanged = c.fileSnap.Hash != *c.lastFilesHash
		}
		filesHash := c.fileSnap.Hash
		c.lastFilesHash = &filesHash
	}

	return entities.PollResult{
		HasChanged:    hasChanged,
		FilesChanged:  filesChanged,
		Status:        snap.Text,
		ShouldAnalyze: (hasChanged || force) && !snap.IsEmpty(),
	}
}

// updateStatusLocked replaces the status snapshot from a fresh scan; on
// failure the previous snapshot is kept. Caller holds c.mu.
func (c *ChangeCache) updateStatusLocked(ctx context.Context) {
	text, err := c.scanner.Scan(ctx)
	if err != nil {
		c.logger.Warn("status scan failed, keeping cached snapshot",
			slog.String("error", err.Error()))
		return
	}

	snap := entities.NewStatusSnapshot(text)
	c.statusSnap = &snap
}

// updateFilesLocked replaces the file list snapshot; same stale-on-failure
// policy. Caller holds c.mu.
func (c *ChangeCache) updateFilesLocked(ctx context.Context) {
	paths, err := c.files.ListFiles(ctx, c.root)
	if err != nil {
		c.logger.Warn("file enumeration failed, keeping cached snapshot",
			slog.String("error", err.Error()))
		return
	}

	snap := entities.NewFileListSnapshot(paths)
	c.fileSnap = &snap
}
