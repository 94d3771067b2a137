// Package app builds the pipeline's collaborators from configuration. Both the API
// server and the operator CLI wire through it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bobarin/tourgen/internal/config"
	"github.com/bobarin/tourgen/internal/db"
	"github.com/bobarin/tourgen/internal/media"
	"github.com/bobarin/tourgen/internal/progress"
	"github.com/bobarin/tourgen/internal/queue"
	"github.com/bobarin/tourgen/internal/reconcile"
	"github.com/bobarin/tourgen/internal/services"
	"github.com/bobarin/tourgen/internal/storage"
	"github.com/bobarin/tourgen/internal/worker"
)

// leaseMargin keeps a clip lease alive past the runner's own timeout.
const leaseMargin = time.Minute

// QueuePolicy is the retry and timeout budget from configuration.
func QueuePolicy(cfg *config.Config) queue.Policy {
	p := queue.DefaultPolicy
	p.MaxRetry = cfg.JobMaxRetry
	p.Timeout = cfg.JobTimeout
	p.MinDelay = cfg.RetryMinDelay
	p.MaxDelay = cfg.RetryMaxDelay
	return p
}

// OpenDatabase connects and migrates the relational store.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*db.DB, error) {
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return database, nil
}

// NewObjectStore returns the configured durable storage backend.
func NewObjectStore(cfg *config.Config) (storage.ObjectStore, error) {
	switch cfg.StorageBackend {
	case config.StorageMinIO:
		return storage.NewMinIO(storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			PublicURL: cfg.MinIOPublicURL,
		})
	case config.StorageSupabase:
		return storage.NewSupabase(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// NewVideoGenerator returns the configured image-to-video vendor.
func NewVideoGenerator(cfg *config.Config, logger *slog.Logger) (services.VideoGenerator, error) {
	switch cfg.VideoVendor {
	case config.VendorFal:
		return services.NewFalClient(services.FalConfig{
			APIKey:            cfg.FalKey,
			Model:             cfg.FalModel,
			RequestsPerSecond: cfg.FalRequestsPerSecond,
			Logger:            logger,
		}), nil
	case config.VendorVeo:
		return services.NewVeoService(cfg.GeminiKey, cfg.VeoModel, logger), nil
	default:
		return nil, fmt.Errorf("unknown video vendor %q", cfg.VideoVendor)
	}
}

// Jobs are the generation jobs and the sweeper sharing one set of collaborators.
type Jobs struct {
	Clips       *worker.ClipJob
	Transitions *worker.TransitionJob
	Sweeper     *worker.Sweeper
}

// NewJobs wires the generation jobs against the store, queue and progress channel.
func NewJobs(cfg *config.Config, database *db.DB, q worker.Enqueuer, reporter progress.Reporter, logger *slog.Logger) (*Jobs, error) {
	objects, err := NewObjectStore(cfg)
	if err != nil {
		return nil, err
	}
	vendor, err := NewVideoGenerator(cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := worker.Deps{
		Store:      database,
		Media:      media.NewAdapter(nil, vendor, objects, logger),
		Vendor:     vendor,
		Progress:   reporter,
		Reconciler: reconcile.NewSynchronizer(database, logger),
		Logger:     logger,
	}

	logger.Info("video generation configured", "vendor", vendor.Name(), "storage", cfg.StorageBackend)
	return &Jobs{
		Clips:       worker.NewClipJob(deps, cfg.JobTimeout+leaseMargin),
		Transitions: worker.NewTransitionJob(deps),
		Sweeper:     worker.NewSweeper(database, q, cfg.SweepStaleAfter, logger),
	}, nil
}
