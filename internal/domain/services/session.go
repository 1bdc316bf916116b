package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gitscope/gitscope/internal/domain/entities"
	"github.com/gitscope/gitscope/internal/domain/ports"
)

// Session binds one selected working tree to the resources that serve it:
// a git client, a change cache, and the watcher feeding that cache.
type Session struct {
	ID    string
	Path  string
	Git   ports.GitClient
	Cache *ChangeCache

	watcher ports.TreeWatcher
}

// GitClientFactory builds a git client bound to a working tree.
type GitClientFactory func(path string) ports.GitClient

// WatcherFactory builds a fresh tree watcher for each session.
type WatcherFactory func() ports.TreeWatcher

// SessionManager owns the single active session. Selecting a new working
// tree tears the previous session down completely (watch handle released)
// before the next one is constructed.
type SessionManager struct {
	newGit     GitClientFactory
	newWatcher WatcherFactory
	files      ports.FileEnumerator
	notifier   ports.ClientNotifier
	debounce   time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	current *Session

	// notifier has its own lock: the watcher's priming callback runs while
	// Select still holds mu.
	notifierMu sync.RWMutex
}

// NewSessionManager creates a session manager. The notifier may be nil.
func NewSessionManager(newGit GitClientFactory, newWatcher WatcherFactory, files ports.FileEnumerator, notifier ports.ClientNotifier, debounce time.Duration, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &SessionManager{
		newGit:     newGit,
		newWatcher: newWatcher,
		files:      files,
		notifier:   notifier,
		debounce:   debounce,
		logger:     logger.With("service", "session"),
	}
}

// SetNotifier attaches the client notifier after construction. The HTTP
// server both depends on the session manager and receives its change events,
// so the cycle is broken here.
func (m *SessionManager) SetNotifier(notifier ports.ClientNotifier) {
	m.notifierMu.Lock()
	defer m.notifierMu.Unlock()
	m.notifier = notifier
}

func (m *SessionManager) currentNotifier() ports.ClientNotifier {
	m.notifierMu.RLock()
	defer m.notifierMu.RUnlock()
	return m.notifier
}

// Select makes path the active working tree, replacing any previous session.
func (m *SessionManager) Select(ctx context.Context, path string) (*Session, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("invalid path %q: not a directory", path)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// The old watch handle must be fully released before a new watch starts.
	if m.current != nil {
		m.current.watcher.Stop()
		m.current = nil
	}

	git := m.newGit(path)
	watcher := m.newWatcher()
	cache := NewChangeCache(path, git, m.files, watcher, m.logger)

	session := &Session{
		ID:      uuid.New().String(),
		Path:    path,
		Git:     git,
		Cache:   cache,
		watcher: watcher,
	}

	callback := func() {
		cache.Refresh(context.Background())
		if notifier := m.currentNotifier(); notifier != nil {
			_ = notifier.NotifyClients(ports.UpdateEvent{
				Type:      ports.EventTypeChanged,
				Timestamp: time.Now(),
				Data:      map[string]string{"path": path},
			})
		}
	}

	if err := watcher.Start(path, callback, m.debounce); err != nil {
		return nil, fmt.Errorf("starting watcher: %w", err)
	}

	m.current = session
	m.logger.Info("working tree selected",
		slog.String("path", path),
		slog.String("session_id", session.ID))

	return session, nil
}

// Current returns the active session, or entities.ErrNoSession when no
// working tree has been selected.
func (m *SessionManager) Current() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, entities.ErrNoSession
	}
	return m.current, nil
}

// Close tears down the active session, releasing its watch handle.
func (m *SessionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.watcher.Stop()
		m.current = nil
	}
}
