package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"

	"github.com/bobarin/tourgen/internal/models"
	"github.com/bobarin/tourgen/internal/progress"
	"github.com/bobarin/tourgen/internal/queue"
	"github.com/bobarin/tourgen/internal/reconcile"
)

var tracer = otel.Tracer("tourgen/worker")

// Store is the subset of the relational store the generation jobs need.
type Store interface {
	GetVideoClip(ctx context.Context, id uuid.UUID) (*models.VideoClip, error)
	GetVideoProjectWithTrack(ctx context.Context, id uuid.UUID) (*models.VideoProjectWithTrack, error)
	MarkClipProcessing(ctx context.Context, id uuid.UUID) error
	CompleteClip(ctx context.Context, id uuid.UUID, clipURL string) error
	FailClip(ctx context.Context, id uuid.UUID, message string) error
	SetTransitionURL(ctx context.Context, id uuid.UUID, url string) error
	AcquireClipLease(ctx context.Context, id uuid.UUID, owner string, ttl time.Duration) error
	ReleaseClipLease(ctx context.Context, id uuid.UUID, owner string) error
	ListStuckClips(ctx context.Context, staleAfter time.Duration) ([]models.VideoClip, error)
}

// Media fetches source frames, stages them for the vendor and persists results.
type Media interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
	StageForVendor(ctx context.Context, data []byte, filename, contentType string) (string, error)
	PersistAsset(ctx context.Context, data []byte, path, contentType string) (string, error)
}

// Reconciler recomputes a project's aggregates after a clip settles.
type Reconciler interface {
	Reconcile(ctx context.Context, projectID uuid.UUID) (reconcile.Aggregate, error)
}

// Enqueuer schedules clip jobs.
type Enqueuer interface {
	EnqueueClip(ctx context.Context, p queue.ClipPayload) (string, error)
}

// Attempt describes where a run sits in its retry budget.
type Attempt struct {
	JobID string
	// Retry is zero on the first run.
	Retry int
	Final bool
}

// fatal marks err as not worth retrying.
func fatal(err error) error {
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}

// IsFatal reports whether err was marked as not worth retrying.
func IsFatal(err error) bool {
	return errors.Is(err, asynq.SkipRetry)
}

// bookkeeping returns a context that survives the job's own deadline so failure
// state can still be written after a timeout.
func bookkeeping(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
}

func report(ctx context.Context, r progress.Reporter, logger *slog.Logger, jobID string, s progress.Status) {
	if err := r.Report(ctx, jobID, s); err != nil {
		logger.Warn("failed to report progress", "job_id", jobID, "step", s.Step, "error", err)
	}
}
