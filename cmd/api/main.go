// Package main is the entry point for the BloomWatch API server.
//
// It loads configuration, wires the model registry, the NASA data clients,
// the prediction service, and optionally the report repository, then starts
// the HTTP server with the core chassis (middleware, routing, health checks).
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

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
	"github.com/jackc/pgx/v5/pgxpool"

	"bloomwatch/internal/api/handlers"
	"bloomwatch/internal/config"
	"bloomwatch/internal/core"
	"bloomwatch/internal/db"
	"bloomwatch/internal/ensemble"
	"bloomwatch/internal/external"
	"bloomwatch/internal/predict"
	"bloomwatch/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("bloomwatch API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx := context.Background()

	// Model registry: artifacts load lazily per crop, with an eager preload
	// so the first request does not pay the decompression cost.
	store := ensemble.NewDirStore(cfg.Models.Dir)
	registry := ensemble.NewRegistry(store, logger)
	if err := registry.Preload(ctx); err != nil {
		// Missing artifacts are tolerated at startup; the affected crops
		// answer via the phenology window path until artifacts appear.
		logger.Warn("model preload incomplete", "error", err)
	}

	// Observation acquisition: POWER climate + AppEEARS vegetation, merged
	// into a dense daily series.
	httpClient := &http.Client{Timeout: cfg.Data.RequestTimeout}
	policy := external.Policy{
		MaxRetries:      cfg.Data.MaxRetries,
		MinWait:         cfg.Data.RetryMinWait,
		MaxWait:         cfg.Data.RetryMaxWait,
		BreakerCooldown: cfg.Data.BreakerCooldown,
	}
	climate := external.NewPowerClient(httpClient, external.PowerClientConfig{
		BaseURL: cfg.Data.PowerBaseURL,
		Policy:  policy,
		Logger:  logger,
	})
	vegetation := external.NewVegetationClient(httpClient, external.VegetationClientConfig{
		Token:   cfg.Data.EarthdataToken.Unmask(),
		BaseURL: cfg.Data.VegetationBaseURL,
		Policy:  policy,
		Logger:  logger,
	})
	source := external.NewCompositeSource(climate, vegetation, types.RealClock{}, logger)

	service := predict.NewService(registry, logger, types.RealClock{})

	// Report persistence is optional: without DATABASE_URL the service runs
	// stateless and the report routes are not mounted.
	var reports handlers.ReportStore
	if cfg.Database.URL.Unmask() != "" {
		pool, err := newPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		srv.OnShutdown(func() error {
			pool.Close()
			return nil
		})
		reports = db.NewPredictionReportRepo(pool)

		srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{
			ProbeName: "database",
			Fn:        pool.Ping,
		})
	}

	srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{
		ProbeName: "models",
		Fn: func(ctx context.Context) error {
			// Individual crops may serve via the phenology window path
			// without artifacts; only a fully empty registry is unhealthy.
			for _, ok := range registry.Loaded() {
				if ok {
					return nil
				}
			}
			return errors.New("no model artifacts loaded")
		},
	})

	predictionHandler := handlers.NewPredictionHandler(
		service,
		source,
		reports,
		srv.Validator,
		logger,
		types.RealClock{},
		cfg.Data.HistoryDays,
	)
	cropHandler := handlers.NewCropHandler()

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { predictionHandler.RegisterRoutes(r) },
		func(r chi.Router) { cropHandler.RegisterRoutes(r) },
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// newPool builds a pgx connection pool from the database configuration and
// verifies connectivity before returning it.
func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
