// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/margin/internal/api"
	"github.com/starford/margin/internal/editor"
	"github.com/starford/margin/internal/index"
	"github.com/starford/margin/internal/markdown"
	"github.com/starford/margin/internal/mcpserver"
	"github.com/starford/margin/internal/models"
	"github.com/starford/margin/internal/noteservice"
	"github.com/starford/margin/internal/sse"
	"github.com/starford/margin/internal/storage"
)

const (
	shutdownTimeout  = 10 * time.Second
	listThrottle     = 2 * time.Second
	defaultShowWidth = 80
)

func newApplication(opts []Option) (*application, error) {
	app := &application{
		logOutput: os.Stdout,
		out:       os.Stdout,
		width:     defaultShowWidth,
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// vault is the opened note store: files, index and the service over both.
type vault struct {
	store storage.Provider
	db    *index.DB
}

func openVault(cfg *Config, logger *slog.Logger) (*vault, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return &vault{store: store, db: db}, nil
}

func (v *vault) notes(cfg *Config, opts ...noteservice.Option) *noteservice.Service {
	opts = append([]noteservice.Option{noteservice.WithIndentSize(cfg.Editor.IndentSize)}, opts...)
	return noteservice.NewService(v.store, v.db, opts...)
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.Int("indent_size", cfg.Editor.IndentSize))

	v, err := openVault(cfg, logger)
	if err != nil {
		return err
	}
	defer v.db.Close()

	broker := sse.NewBroker(listThrottle)
	defer broker.Close()

	svc := v.notes(cfg, noteservice.WithChangeHook(broker.PublishNoteEvent))
	sessions := editor.NewManager(svc,
		editor.WithManagerIndentSize(cfg.Editor.IndentSize),
		editor.WithAutosave(cfg.Editor.AutosaveInterval, cfg.Editor.AutosaveAfter),
		editor.WithManagerLogger(logger),
		editor.WithOnSaved(func(sessionID string, n *models.Note) {
			broker.PublishSessionSaved(sessionID, n.ID)
		}),
	)
	md := markdown.New(cfg.Editor.PreviewStyle)

	apiRouter := api.NewRouter(api.Deps{
		Notes:       svc,
		Sessions:    sessions,
		Markdown:    md,
		Store:       v.store,
		IndentSize:  cfg.Editor.IndentSize,
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		Events:      broker,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health checks and attachments are public; everything under /api is
	// behind the auth middleware.
	r.Get("/health/live", health)
	r.Get("/health/ready", health)
	r.Get("/attachments/{filename}", api.NewAttachmentHandler(v.store).ServeFile)
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := index.Watch(gCtx, v.db, v.store, logger, broker.PublishNoteEvent)
		if err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Open editors get their final save after the last request is done.
		if err := sessions.CloseAll(shutdownCtx); err != nil {
			logger.Error("final save failed", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown ends the errgroup so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
// External edits to the vault are indexed while it runs.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	v, err := openVault(cfg, logger)
	if err != nil {
		return err
	}
	defer v.db.Close()

	srv := mcpserver.New(v.notes(cfg), v.store, cfg.Editor.IndentSize)

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		if err := index.Watch(watchCtx, v.db, v.store, logger, nil); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
	}()

	logger.Info("MCP server starting on stdio", slog.String("vault_path", cfg.Vault.Path))
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// Show renders one note for the terminal.
func Show(ctx context.Context, id string, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(io.Discard)}, opts...))
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	v, err := openVault(cfg, logger)
	if err != nil {
		return err
	}
	defer v.db.Close()

	note, err := v.notes(cfg).Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load note %s: %w", id, err)
	}

	src := note.Content
	if note.Title != "" && !hasHeading(note.Content, note.Title) {
		src = "# " + note.Title + "\n\n" + src
	}
	out, err := markdown.New(cfg.Editor.PreviewStyle).Terminal(src, app.width)
	if err != nil {
		return err
	}
	_, err = io.WriteString(app.out, out)
	return err
}

// hasHeading reports whether content already opens with the title as H1.
func hasHeading(content, title string) bool {
	first, _, _ := strings.Cut(content, "\n")
	return strings.HasPrefix(first, "# ") && strings.TrimSpace(first[2:]) == title
}
