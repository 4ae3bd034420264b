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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/tiddlyhal/internal/api"
	"github.com/starford/tiddlyhal/internal/index"
	"github.com/starford/tiddlyhal/internal/mcpserver"
	"github.com/starford/tiddlyhal/internal/serializer"
	"github.com/starford/tiddlyhal/internal/sse"
	"github.com/starford/tiddlyhal/internal/storage"
	"github.com/starford/tiddlyhal/internal/tiddlerservice"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOut: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	// Initialize structured JSON logger.
	app.logger = slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(app.logger)
	return app, nil
}

// openStore prepares the vault, opens the index and runs the initial sync.
func (a *application) openStore() (*storage.FS, *index.DB, error) {
	cfg := a.config

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, store, a.logger); err != nil {
		a.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return store, db, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("hal_prefix", cfg.HAL.Prefix),
		slog.Bool("absolute_uris", cfg.HAL.AbsoluteURIs),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, db, err := app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	// Change events are delivered without a request, so their links are
	// path-only under the configured prefix.
	broker := sse.NewBroker(cfg.Events.IndexThrottle, cfg.HAL.Prefix, logger)
	defer broker.Close()

	svc := tiddlerservice.NewService(store, db)
	links := api.LinkBase{Prefix: cfg.HAL.Prefix, Absolute: cfg.HAL.AbsoluteURIs}
	apiRouter := api.NewRouter(svc, serializer.NewDefaultRegistry(), api.RouterOptions{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		Links:       links,
		Events:      broker,
		Logger:      logger,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", health)
	r.Get("/health/ready", health)

	mountAt := cfg.HAL.Prefix
	if mountAt == "" {
		mountAt = "/"
	}
	r.Mount(mountAt, apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           gzhttp.GzipHandler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start vault watcher; every index change is announced over SSE.
	g.Go(func() error {
		return index.Watch(gCtx, db, store, cfg.Vault.Path, logger, broker.PublishChange)
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
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

		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// SSE streams only end when their clients leave or the broker closes.
		broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
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

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// RunMCP serves the MCP tools over stdio. Logs go to stderr so they do not
// interleave with the protocol stream.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}

	store, db, err := app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	svc := tiddlerservice.NewService(store, db)
	srv := mcpserver.New(svc, app.config.HAL.Prefix, app.logger)
	app.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

// RenderRequest names the entity printed by RunRender. Kind is "bag" or
// "recipe"; with Kind empty the collection named by Collection is printed,
// or the root when that is empty too.
type RenderRequest struct {
	Collection string
	Kind       string
	Name       string
	Title      string
	Revision   int
	Revisions  bool
	Search     string
}

// RunRender prints one HAL document to w without starting a server.
func RunRender(ctx context.Context, req RenderRequest, w io.Writer, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}

	store, db, err := app.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	svc := tiddlerservice.NewService(store, db)
	body, err := renderDocument(ctx, svc, app.config.HAL.Prefix, app.logger, req)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(body))
	return err
}
