package watcher

import (
	"log/slog"

	"github.com/gitscope/gitscope/internal/domain/entities"
	"github.com/gitscope/gitscope/internal/domain/ports"
)

// New selects a watcher implementation from configuration. Auto and notify
// modes use the native event API (which itself degrades to poll-only when the
// platform refuses the watch); rescan mode forces the timed re-scan fallback.
func New(cfg entities.WatcherConfig, logger *slog.Logger) ports.TreeWatcher {
	switch cfg.GetMode() {
	case entities.WatcherModeRescan:
		return NewRescanWatcher(cfg.GetIgnoreDirs(), cfg.GetRescanInterval(), logger)
	default:
		return NewNotifyWatcher(cfg.GetIgnoreDirs(), cfg.GetStopTimeout(), logger)
	}
}
