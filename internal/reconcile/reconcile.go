package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bobarin/tourgen/internal/models"
)

// Aggregate is the project state derived from its clips.
type Aggregate struct {
	ClipCount          int
	CompletedClipCount int
	Status             models.ProjectStatus
}

// Derive computes project aggregates from clip statuses. The project is completed
// when every clip is, failed when a clip failed and nothing is still in flight,
// and processing otherwise. A project without clips stays a draft.
func Derive(clips []models.VideoClip) Aggregate {
	agg := Aggregate{ClipCount: len(clips)}
	if len(clips) == 0 {
		agg.Status = models.ProjectStatusDraft
		return agg
	}

	var failed, inFlight int
	for _, c := range clips {
		switch c.Status {
		case models.ClipStatusCompleted:
			agg.CompletedClipCount++
		case models.ClipStatusFailed:
			failed++
		default:
			inFlight++
		}
	}

	switch {
	case agg.CompletedClipCount == len(clips):
		agg.Status = models.ProjectStatusCompleted
	case failed > 0 && inFlight == 0:
		agg.Status = models.ProjectStatusFailed
	default:
		agg.Status = models.ProjectStatusProcessing
	}
	return agg
}

// Store is the subset of the relational store the synchronizer needs.
type Store interface {
	ListProjectClips(ctx context.Context, projectID uuid.UUID) ([]models.VideoClip, error)
	UpdateProjectAggregates(ctx context.Context, id uuid.UUID, clipCount, completed int, status models.ProjectStatus) error
}

// Synchronizer recomputes project aggregates from scratch. Concurrent calls for the
// same project converge because each one rewrites the full derived state.
type Synchronizer struct {
	store  Store
	logger *slog.Logger
}

func NewSynchronizer(store Store, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{store: store, logger: logger.With("component", "reconcile")}
}

// Reconcile reads the project's clips and writes back clip_count,
// completed_clip_count and status.
func (s *Synchronizer) Reconcile(ctx context.Context, projectID uuid.UUID) (Aggregate, error) {
	clips, err := s.store.ListProjectClips(ctx, projectID)
	if err != nil {
		return Aggregate{}, fmt.Errorf("failed to list clips: %w", err)
	}

	agg := Derive(clips)
	if err := s.store.UpdateProjectAggregates(ctx, projectID, agg.ClipCount, agg.CompletedClipCount, agg.Status); err != nil {
		return Aggregate{}, fmt.Errorf("failed to write aggregates: %w", err)
	}

	s.logger.Info("project reconciled",
		"project_id", projectID, "status", agg.Status,
		"completed", agg.CompletedClipCount, "total", agg.ClipCount)
	return agg, nil
}
