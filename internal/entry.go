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

	"github.com/starford/raido/internal/affinity"
	"github.com/starford/raido/internal/api"
	"github.com/starford/raido/internal/index"
	"github.com/starford/raido/internal/queueservice"
	"github.com/starford/raido/internal/router"
	"github.com/starford/raido/internal/sse"
	"github.com/starford/raido/internal/store"
	"github.com/starford/raido/internal/update"
)

// WatchTarget pairs a store with its origin for the fsnotify watcher.
type WatchTarget struct {
	origin   update.Origin
	provider store.Provider
	root     string
}

// BuildSources constructs the discovery sources from config. The
// project store is created if missing; registry and legacy stores are
// optional and skipped when unconfigured or absent on disk.
func BuildSources(cfg *Config, logger *slog.Logger) (router.Sources, []WatchTarget, error) {
	var sources router.Sources
	var targets []WatchTarget

	if err := os.MkdirAll(cfg.Stores.Project, 0o755); err != nil {
		return sources, nil, fmt.Errorf("create project store dir: %w", err)
	}
	project, err := store.NewFS(cfg.Stores.Project)
	if err != nil {
		return sources, nil, fmt.Errorf("init project store: %w", err)
	}
	sources.Project = project
	targets = append(targets, WatchTarget{update.OriginProject, project, cfg.Stores.Project})

	if cfg.Stores.Registry != "" {
		if registry, err := store.NewFS(cfg.Stores.Registry); err != nil {
			logger.Warn("registry store unavailable",
				slog.String("path", cfg.Stores.Registry),
				slog.String("error", err.Error()))
		} else {
			sources.Registry = registry
			targets = append(targets, WatchTarget{update.OriginRegistry, registry, cfg.Stores.Registry})
		}
	}

	if cfg.Stores.Legacy != "" {
		if legacy, err := store.NewFS(cfg.Stores.Legacy); err != nil {
			logger.Warn("legacy store unavailable",
				slog.String("path", cfg.Stores.Legacy),
				slog.String("error", err.Error()))
		} else {
			sources.Legacy = legacy
			targets = append(targets, WatchTarget{update.OriginLegacy, legacy, cfg.Stores.Legacy})
		}
	}

	return sources, targets, nil
}

// BuildService wires stores, affinity rules, ledger, and index into a
// queue service. notify, when non-nil, receives committed queue state
// changes (the serve runtime points it at the SSE broker).
func BuildService(cfg *Config, logger *slog.Logger, notify queueservice.NotifyFunc) (*queueservice.Service, *index.DB, []WatchTarget, error) {
	sources, targets, err := BuildSources(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	rules, err := affinity.LoadRegistry(cfg.Stores.RegistryRules)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load affinity rules: %w", err)
	}
	projectCfg, err := affinity.LoadProjectConfig(cfg.Stores.ProjectConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load project config: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init index: %w", err)
	}
	for _, t := range targets {
		if err := index.Sync(db, t.origin, t.provider, logger); err != nil {
			logger.Warn("initial sync failed",
				slog.String("origin", string(t.origin)),
				slog.String("error", err.Error()))
		}
	}

	svc := queueservice.New(queueservice.Options{
		Sources:       sources,
		Rules:         rules,
		ProjectConfig: projectCfg,
		LedgerPath:    cfg.Stores.Ledger,
		Index:         db,
		Role:          cfg.Agent.Role,
		Policy:        cfg.Agent.Policy,
		Notify:        notify,
		Logger:        logger,
	})
	return svc, db, targets, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("project_store", cfg.Stores.Project),
		slog.String("ledger_path", cfg.Stores.Ledger),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("role", cfg.Agent.Role),
		slog.String("policy", cfg.Agent.Policy),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc, db, targets, err := BuildService(cfg, logger, func(kind string, rec *update.Record) {
		broker.PublishQueueEvent(kind, string(rec.Origin), rec.Path, rec.ID)
	})
	if err != nil {
		return err
	}
	defer db.Close()

	// Build API router.
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi root router.
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
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start a watcher per store with an SSE callback.
	for _, t := range targets {
		t := t
		g.Go(func() error {
			err := index.Watch(gCtx, db, t.origin, t.provider, t.root, logger,
				func(kind string, origin update.Origin, path string) {
					broker.PublishQueueEvent(kind, string(origin), path, update.IDFromPath(path))
				})
			if err != nil {
				logger.Warn("store watcher stopped",
					slog.String("origin", string(t.origin)),
					slog.String("error", err.Error()))
			}
			return nil
		})
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

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
