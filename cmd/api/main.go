package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/tourgen/internal/api"
	"github.com/bobarin/tourgen/internal/app"
	"github.com/bobarin/tourgen/internal/assembly"
	"github.com/bobarin/tourgen/internal/config"
	"github.com/bobarin/tourgen/internal/pricing"
	"github.com/bobarin/tourgen/internal/progress"
	"github.com/bobarin/tourgen/internal/queue"
	"github.com/bobarin/tourgen/internal/telemetry"
	"github.com/bobarin/tourgen/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogging(cfg.LogLevel)
	logger.Info("starting tour generation API")

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := app.OpenDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()
	logger.Info("connected to database", "dialect", database.Dialect().String())

	q, err := queue.New(cfg.RedisURL, app.QueuePolicy(cfg))
	if err != nil {
		return err
	}
	defer q.Close()

	prog, err := progress.NewRedis(cfg.RedisURL, progress.DefaultTTL)
	if err != nil {
		return err
	}
	defer prog.Close()
	logger.Info("connected to redis")

	var products api.Products
	if cfg.PolarAccessToken != "" {
		products = pricing.NewCache(
			pricing.NewPolar(cfg.PolarAPIURL, cfg.PolarAccessToken, cfg.PolarOrganizationID),
			cfg.ProductsCacheTTL, nil)
	}

	handler := api.NewHandler(database, assembly.NewTrigger(database, q, logger), prog, products, logger)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
		Logger:             logger,
	})
	if cfg.BackendAPIKey == "" {
		logger.Warn("no BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerDone := make(chan error, 1)
	if cfg.WorkerEnabled {
		jobs, err := app.NewJobs(cfg, database, q, prog, logger)
		if err != nil {
			return err
		}
		w, err := worker.New(worker.Config{
			RedisURL:      cfg.RedisURL,
			Concurrency:   cfg.MaxConcurrentJobs,
			Policy:        app.QueuePolicy(cfg),
			SweepInterval: cfg.SweepInterval,
		}, jobs.Clips, jobs.Transitions, jobs.Sweeper, logger)
		if err != nil {
			return err
		}
		go func() { workerDone <- w.Start(ctx) }()
	} else {
		close(workerDone)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-serverErr:
		stop()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-workerDone
}
