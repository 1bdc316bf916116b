package ports

import "time"

// TreeWatcher observes a directory tree and coalesces raw filesystem events
// into debounced refresh callbacks. Implementations own exactly one native
// watch resource per Start/Stop cycle.
type TreeWatcher interface {
	// Start begins watching path recursively. The callback is invoked once
	// synchronously before Start returns (priming, so a cache is never empty)
	// and then once per debounced burst of filesystem events. If the native
	// watch resource cannot be acquired the watcher degrades to poll-only
	// mode: the priming callback still runs and Start returns nil.
	Start(path string, callback func(), debounce time.Duration) error

	// Stop releases the watch resource and joins the background loop within
	// a bounded timeout. Stopping an already-stopped watcher is a no-op.
	Stop()

	// ConsumeChange atomically tests and clears the change flag: the first
	// call after a debounced callback returns true, subsequent calls return
	// false until the next change.
	ConsumeChange() bool
}
