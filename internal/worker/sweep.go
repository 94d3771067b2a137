package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bobarin/tourgen/internal/queue"
)

// Sweeper re-enqueues clips left in processing by a job that died without
// writing a terminal state.
type Sweeper struct {
	store      Store
	queue      Enqueuer
	staleAfter time.Duration
	logger     *slog.Logger
}

func NewSweeper(store Store, q Enqueuer, staleAfter time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, queue: q, staleAfter: staleAfter, logger: logger.With("component", "sweeper")}
}

// Sweep enqueues one clip job per stuck clip and returns how many it enqueued.
// It keeps going past individual enqueue failures and reports the first one.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	clips, err := s.store.ListStuckClips(ctx, s.staleAfter)
	if err != nil {
		return 0, fmt.Errorf("failed to list stuck clips: %w", err)
	}

	var (
		enqueued int
		firstErr error
	)
	for _, c := range clips {
		payload := queue.ClipPayload{ClipID: c.ID}
		if c.EndImageURL != nil {
			payload.TailImageURL = *c.EndImageURL
		}

		jobID, err := s.queue.EnqueueClip(ctx, payload)
		if err != nil {
			s.logger.Error("failed to re-enqueue stuck clip", "clip_id", c.ID, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to re-enqueue clip %s: %w", c.ID, err)
			}
			continue
		}
		enqueued++
		s.logger.Info("re-enqueued stuck clip", "clip_id", c.ID, "project_id", c.VideoProjectID, "job_id", jobID)
	}

	if len(clips) > 0 {
		s.logger.Info("sweep finished", "stuck", len(clips), "enqueued", enqueued)
	}
	return enqueued, firstErr
}
