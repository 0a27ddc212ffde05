// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
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
	"golang.org/x/sync/errgroup"

	"github.com/MaherFSF/Yemenactr-sub008/internal/api"
	"github.com/MaherFSF/Yemenactr-sub008/internal/catalog"
	"github.com/MaherFSF/Yemenactr-sub008/internal/evidence"
	"github.com/MaherFSF/Yemenactr-sub008/internal/mcpserver"
	"github.com/MaherFSF/Yemenactr-sub008/internal/registry"
	"github.com/MaherFSF/Yemenactr-sub008/internal/sse"
	"github.com/MaherFSF/Yemenactr-sub008/internal/telemetry"
)

// runtime is the wired registry, tables and service shared by every command.
type runtime struct {
	cfg    *Config
	logger *slog.Logger
	store  *registry.DB
	tables *catalog.Tables
	syncer *registry.Syncer
	svc    *evidence.Service
}

func (app *application) open(notifier evidence.Notifier) (*runtime, error) {
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("tables_path", cfg.Routing.TablesPath),
		slog.String("seed_path", cfg.Registry.SeedPath),
		slog.String("batch_mode", cfg.Matrix.BatchMode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	tables, err := loadTables(cfg.Routing.TablesPath)
	if err != nil {
		return nil, fmt.Errorf("load routing tables: %w", err)
	}

	store, err := registry.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init registry: %w", err)
	}

	metrics, err := telemetry.New()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	svc, err := evidence.Build(store, tables, cfg.Matrix.Options(), logger, metrics, notifier)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init service: %w", err)
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		store:  store,
		tables: tables,
		syncer: registry.NewSyncer(store, tables, logger, cfg.Registry.Prune),
		svc:    svc,
	}, nil
}

func loadTables(path string) (*catalog.Tables, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

// seed applies the configured seed file once. It is a no-op without one.
func (rt *runtime) seed(ctx context.Context) (registry.SyncReport, error) {
	if rt.cfg.Registry.SeedPath == "" {
		return registry.SyncReport{Skipped: true}, nil
	}
	report, err := rt.syncer.SyncFile(ctx, rt.cfg.Registry.SeedPath)
	if err != nil {
		return report, err
	}
	rt.logger.Info("registry seeded",
		slog.String("checksum", report.Checksum),
		slog.Int("upserted", report.Upserted),
		slog.Int("removed", report.Removed),
		slog.Int("rejected", report.Rejected),
		slog.Int("dropped_edges", report.Dropped))
	return report, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := app.open(broker)
	if err != nil {
		return err
	}
	defer rt.store.Close()
	cfg, logger := rt.cfg, rt.logger

	onSync := func(report registry.SyncReport) {
		broker.RegistrySynced(report.Checksum, report.Upserted, report.Removed)
	}

	// Run initial sync.
	if report, err := rt.seed(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	} else if !report.Skipped {
		onSync(report)
	}

	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		pingCtx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		w.Header().Set("Content-Type", "application/json")
		if err := rt.store.Ping(pingCtx); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
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

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	// Start seed file watcher with SSE callback.
	if cfg.Registry.Watch {
		g.Go(func() error {
			if err := registry.Watch(gCtx, rt.syncer, cfg.Registry.SeedPath, logger, onSync); err != nil {
				logger.Error("watcher failed", slog.String("error", err.Error()))
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

// RunMCP serves the MCP tools over stdio.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	rt, err := app.open(nil)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	if _, err := rt.seed(ctx); err != nil {
		rt.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	rt.logger.Info("MCP server starting on stdio", slog.String("version", app.version))
	return mcpserver.New(rt.svc, app.version).ServeStdio()
}

// Seed syncs the registry from the configured seed file and prints the report.
func Seed(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	rt, err := app.open(nil)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	if rt.cfg.Registry.SeedPath == "" {
		return fmt.Errorf("registry.seed_path is required")
	}
	report, err := rt.seed(ctx)
	if err != nil {
		return err
	}
	return writeIndented(app.out, report)
}

// Export writes the sector matrix CSV.
func Export(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	rt, err := app.open(nil)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	res := rt.svc.ExportSectorMatrix(ctx)
	if !res.Success {
		return fmt.Errorf("export: %s (%s)", res.Error, res.Reason)
	}
	_, err = io.WriteString(app.out, res.Data.CSV+"\n")
	return err
}

// Stats prints registry-wide matrix statistics as JSON.
func Stats(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	rt, err := app.open(nil)
	if err != nil {
		return err
	}
	defer rt.store.Close()

	res := rt.svc.MatrixStats(ctx)
	if !res.Success {
		return fmt.Errorf("stats: %s (%s)", res.Error, res.Reason)
	}
	return writeIndented(app.out, res.Data)
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
