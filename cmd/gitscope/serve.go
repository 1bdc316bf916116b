package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpadapter "github.com/gitscope/gitscope/internal/adapters/primary/http"
	"github.com/gitscope/gitscope/internal/adapters/secondary/config"
	"github.com/gitscope/gitscope/internal/adapters/secondary/gemini"
	"github.com/gitscope/gitscope/internal/adapters/secondary/git"
	"github.com/gitscope/gitscope/internal/adapters/secondary/renderer"
	"github.com/gitscope/gitscope/internal/adapters/secondary/watcher"
	"github.com/gitscope/gitscope/internal/domain/entities"
	"github.com/gitscope/gitscope/internal/domain/ports"
	"github.com/gitscope/gitscope/internal/domain/services"
)

var serveFlags struct {
	host    string
	port    int
	repo    string
	verbose bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local API server",
	Long: `Start the HTTP server. A repository can be selected up front with
--repo or later through the API.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.host, "host", "", "bind address (overrides config)")
	serveCmd.Flags().IntVarP(&serveFlags.port, "port", "p", 0, "listen port (overrides config)")
	serveCmd.Flags().StringVarP(&serveFlags.repo, "repo", "r", "", "working tree to select at startup")
	serveCmd.Flags().BoolVarP(&serveFlags.verbose, "verbose", "v", false, "debug logging")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	applyFlags(cfg)

	logger := newLogger(cfg.Logging)

	assistant, err := gemini.NewAssistant(ctx, cfg.Gemini, logger)
	if err != nil {
		return fmt.Errorf("initializing assistant: %w", err)
	}

	gitClient := git.NewClient("", cfg.Git, logger)
	enumerator := git.NewEnumerator(cfg.Watcher.GetIgnoreDirs(), cfg.Watcher.IgnoreGlobs)
	finder := git.NewFinder(cfg.Discovery, gitClient, logger)

	newGit := func(path string) ports.GitClient {
		return git.NewClient(path, cfg.Git, logger)
	}
	newWatcher := func() ports.TreeWatcher {
		return watcher.New(cfg.Watcher, logger)
	}

	sessions := services.NewSessionManager(newGit, newWatcher, enumerator, nil, cfg.Watcher.GetDebounce(), logger)
	defer sessions.Close()

	script := services.NewScriptRunner(logger)
	markdown := renderer.NewMarkdownRenderer()

	server := httpadapter.NewServer(sessions, script, assistant, markdown, finder, &cfg.Server, logger)

	// Watcher callbacks push change events through the server once it runs.
	sessions.SetNotifier(server)

	if serveFlags.repo != "" {
		if _, err := sessions.Select(ctx, serveFlags.repo); err != nil {
			return fmt.Errorf("selecting repository: %w", err)
		}
	}

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	logger.Info("gitscope ready",
		slog.String("address", fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)))

	<-ctx.Done()
	logger.Info("shutting down")

	return server.Stop(context.Background())
}

// loadConfig reads the global config file and overlays a local one from the
// current directory when present.
func loadConfig(ctx context.Context) (*entities.Config, error) {
	loader := config.NewTOMLLoader()

	global, err := loader.LoadGlobal(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return global, nil
	}

	local, err := loader.LoadLocal(ctx, cwd)
	if err != nil {
		return nil, fmt.Errorf("loading local config: %w", err)
	}

	return config.Merge(global, local), nil
}

func applyFlags(cfg *entities.Config) {
	if serveFlags.host != "" {
		cfg.Server.Host = serveFlags.host
	}
	if serveFlags.port != 0 {
		cfg.Server.Port = serveFlags.port
	}
	if serveFlags.verbose {
		cfg.Logging.Level = "debug"
	}
}

func newLogger(cfg entities.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.GetLevel() {
	case entities.LogLevelDebug:
		level = slog.LevelDebug
	case entities.LogLevelWarn:
		level = slog.LevelWarn
	case entities.LogLevelError:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
