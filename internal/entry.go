// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/names"
	"github.com/starford/ansuz/internal/notes"
	"github.com/starford/ansuz/internal/sse"
	"github.com/starford/ansuz/internal/vault"
)

func setup(opts []Option) (*application, *slog.Logger, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return app, logger, nil
}

// openVaults prepares the storage root and opens every vault in it, creating
// the default vault when it is missing.
func openVaults(ctx context.Context, mgr *vault.Manager, defaultVault string, logger *slog.Logger) error {
	if err := os.MkdirAll(mgr.Root(), 0o755); err != nil {
		return fmt.Errorf("create storage root: %w", err)
	}
	entries, err := mgr.List(ctx)
	if err != nil {
		return fmt.Errorf("list vaults: %w", err)
	}

	seenDefault := false
	for _, name := range entries {
		v, err := mgr.Open(ctx, name)
		if err != nil {
			logger.Warn("skipping vault", slog.String("vault", name), slog.String("error", err.Error()))
			continue
		}
		if v.Name() == names.SanitizeIdentifier(defaultVault) {
			seenDefault = true
		}
	}
	if defaultVault != "" && !seenDefault {
		if _, err := mgr.Create(ctx, defaultVault); err != nil {
			return fmt.Errorf("create default vault: %w", err)
		}
	}
	return nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_root", cfg.Vault.Root),
		slog.String("default_vault", cfg.Vault.Default),
		slog.Bool("watch", cfg.Vault.Watch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	mgr := vault.NewManager(vault.StorageRoot(cfg.Vault.Root), vault.WithLogger(logger))
	defer mgr.Close()

	if err := openVaults(ctx, mgr, cfg.Vault.Default, logger); err != nil {
		return err
	}

	// SSE broker.
	broker := sse.NewBroker(cfg.SSE.GraphThrottle)
	defer broker.Close()

	// With the watcher on, note events come from the file system; otherwise the
	// API reports its own writes.
	var notify notes.Notifier
	if !cfg.Vault.Watch {
		notify = broker.PublishNoteEvent
	}

	// Build API handler and router.
	h := api.NewHandler(mgr, logger, notify)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := os.Stat(mgr.Root()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	// The manager runs one file watcher per open vault, including vaults
	// created or recreated while serving, and stops it with the vault.
	if cfg.Vault.Watch {
		mgr.Watch(gCtx, broker.PublishNoteEvent)
	}

	// Start HTTP server.
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

		// Closing the broker ends open SSE streams so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	cfg := app.config

	mgr := vault.NewManager(vault.StorageRoot(cfg.Vault.Root), vault.WithLogger(logger))
	defer mgr.Close()

	if err := openVaults(ctx, mgr, cfg.Vault.Default, logger); err != nil {
		return err
	}

	logger.Info("MCP server starting", slog.String("vault_root", cfg.Vault.Root))
	if err := mcpserver.New(mgr, cfg.Vault.Default, logger).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
