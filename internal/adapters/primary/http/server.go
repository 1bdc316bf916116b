package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/gitscope/gitscope/internal/domain/entities"
	"github.com/gitscope/gitscope/internal/domain/ports"
	"github.com/gitscope/gitscope/internal/domain/services"
)

// Server exposes the agent's HTTP API: repository selection, the poll
// protocol, git plumbing routes, assistant endpoints, and the WebSocket push
// channel.
type Server struct {
	sessions  *services.SessionManager
	script    *services.ScriptRunner
	assistant ports.Assistant
	renderer  ports.SummaryRenderer
	finder    ports.RepositoryFinder
	config    *entities.ServerConfig
	logger    *slog.Logger
	connMgr   *ConnectionManager

	mu      sync.RWMutex
	server  *http.Server
	running bool
}

// NewServer creates the HTTP server. config must not be nil.
func NewServer(
	sessions *services.SessionManager,
	script *services.ScriptRunner,
	assistant ports.Assistant,
	renderer ports.SummaryRenderer,
	finder ports.RepositoryFinder,
	config *entities.ServerConfig,
	logger *slog.Logger,
) *Server {
	if config == nil {
		panic("server config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		sessions:  sessions,
		script:    script,
		assistant: assistant,
		renderer:  renderer,
		finder:    finder,
		config:    config,
		logger:    logger.With("component", "http"),
		connMgr:   NewConnectionManager(),
	}
}

// Start begins serving. It returns immediately; the listener runs in its own
// goroutine until Stop or a fatal error.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}

	go s.connMgr.Run(ctx)

	router := s.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.config.GetCORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      c.Handler(router),
		ReadTimeout:  s.config.GetReadTimeout(),
		WriteTimeout: s.config.GetWriteTimeout(),
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		s.logger.Info("HTTP server starting",
			slog.String("host", s.config.Host),
			slog.Int("port", s.config.Port))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop closes all WebSocket connections and shuts the listener down within
// the configured timeout.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return errors.New("server not running")
	}

	s.connMgr.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.GetShutdownTimeout())
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.running = false
	return nil
}

// NotifyClients broadcasts an update event to all connected clients.
func (s *Server) NotifyClients(event ports.UpdateEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.running {
		return errors.New("server not running")
	}

	s.connMgr.Broadcast(event)
	return nil
}

// IsRunning reports whether the server is currently serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// setupRoutes configures all HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/ws", s.handleWebSocket)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/set-repo", s.handleSetRepo).Methods(http.MethodPost)
	api.HandleFunc("/repos", s.handleListRepos).Methods(http.MethodGet)
	api.HandleFunc("/poll", s.handlePoll).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/commits", s.handleCommitCounts).Methods(http.MethodGet)
	api.HandleFunc("/commit", s.handleCommit).Methods(http.MethodPost)
	api.HandleFunc("/push", s.handlePush).Methods(http.MethodPost)
	api.HandleFunc("/pull", s.handlePull).Methods(http.MethodPost)
	api.HandleFunc("/branch", s.handleCurrentBranch).Methods(http.MethodGet)
	api.HandleFunc("/branches", s.handleBranches).Methods(http.MethodGet)
	api.HandleFunc("/branch/switch", s.handleSwitchBranch).Methods(http.MethodPost)
	api.HandleFunc("/branch/create", s.handleCreateBranch).Methods(http.MethodPost)
	api.HandleFunc("/file/stage", s.handleStageFile).Methods(http.MethodPost)
	api.HandleFunc("/file/unstage", s.handleUnstageFile).Methods(http.MethodPost)
	api.HandleFunc("/file/revert", s.handleRevertFile).Methods(http.MethodPost)
	api.HandleFunc("/files", s.handleListFiles).Methods(http.MethodGet)
	api.HandleFunc("/file", s.handleReadFile).Methods(http.MethodGet)
	api.HandleFunc("/file", s.handleWriteFile).Methods(http.MethodPost)
	api.HandleFunc("/diff", s.handleDiff).Methods(http.MethodGet)
	api.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	api.HandleFunc("/execute", s.handleExecute).Methods(http.MethodPost)

	var handler http.Handler = r
	handler = securityHeadersMiddleware(handler)
	handler = requestLoggingMiddleware(handler, s.logger)
	handler = recoveryMiddleware(handler, s.logger)

	return handler
}
