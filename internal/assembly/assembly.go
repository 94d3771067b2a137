package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/bobarin/tourgen/internal/db"
	"github.com/bobarin/tourgen/internal/models"
	"github.com/bobarin/tourgen/internal/queue"
	"github.com/bobarin/tourgen/internal/video"
)

// Trigger failures, checked in this order.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = fmt.Errorf("%w: not a member of the project's workspace", ErrUnauthorized)
	ErrNotFound        = errors.New("video project not found")
	ErrPaymentRequired = errors.New("payment required")
	ErrNotReady        = errors.New("video project is not ready for generation")
)

// Caller is the authenticated identity asking for generation.
type Caller struct {
	UserID string
}

// Store is the subset of the relational store the trigger needs.
type Store interface {
	GetVideoProject(ctx context.Context, id uuid.UUID) (*models.VideoProject, error)
	IsWorkspaceMember(ctx context.Context, workspaceID uuid.UUID, userID string) (bool, error)
	IsProjectPaid(ctx context.Context, projectID uuid.UUID) (bool, error)
	ListProjectClips(ctx context.Context, projectID uuid.UUID) ([]models.VideoClip, error)
	ResetFailedClips(ctx context.Context, projectID uuid.UUID) (int64, error)
	UpdateVideoProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error
}

// Enqueuer schedules generation jobs and returns their ids.
type Enqueuer interface {
	EnqueueClip(ctx context.Context, p queue.ClipPayload) (string, error)
	EnqueueTransition(ctx context.Context, p queue.TransitionPayload) (string, error)
}

// Result lists the jobs a trigger enqueued.
type Result struct {
	VideoProjectID uuid.UUID
	ClipJobIDs     []string
	TransitionIDs  []string
}

// JobIDs returns clip job ids followed by transition job ids.
func (r *Result) JobIDs() []string {
	ids := make([]string, 0, len(r.ClipJobIDs)+len(r.TransitionIDs))
	ids = append(ids, r.ClipJobIDs...)
	return append(ids, r.TransitionIDs...)
}

// Trigger validates a tour project and fans out its generation jobs.
type Trigger struct {
	store  Store
	queue  Enqueuer
	logger *slog.Logger
}

func NewTrigger(store Store, q Enqueuer, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{store: store, queue: q, logger: logger.With("component", "assembly")}
}

// Trigger enqueues one clip job per clip not yet completed and one transition job per
// seamless pair still missing its blend. Re-triggering a partially failed project
// resets its failed clips to pending first. It does not wait for any job.
func (t *Trigger) Trigger(ctx context.Context, caller Caller, projectID uuid.UUID) (*Result, error) {
	if strings.TrimSpace(caller.UserID) == "" {
		return nil, ErrUnauthorized
	}

	project, err := t.store.GetVideoProject(ctx, projectID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	member, err := t.store.IsWorkspaceMember(ctx, project.WorkspaceID, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !member {
		return nil, ErrForbidden
	}

	paid, err := t.store.IsProjectPaid(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to check payment: %w", err)
	}
	if !paid {
		return nil, ErrPaymentRequired
	}

	clips, err := t.store.ListProjectClips(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clips: %w", err)
	}
	if len(clips) == 0 {
		return nil, fmt.Errorf("%w: project has no clips", ErrNotReady)
	}
	for _, c := range clips {
		if strings.TrimSpace(c.SourceImageURL) == "" {
			return nil, fmt.Errorf("%w: clip %d has no source image", ErrNotReady, c.SequenceOrder)
		}
	}

	reset, err := t.store.ResetFailedClips(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to reset failed clips: %w", err)
	}

	// Only clip jobs reconcile the project, so it is marked processing only when one
	// will run. With every clip done the project is complete whatever transitions remain.
	status := models.ProjectStatusCompleted
	for _, c := range clips {
		if !c.Completed() {
			status = models.ProjectStatusProcessing
			break
		}
	}
	if status != project.Status {
		if err := t.store.UpdateVideoProjectStatus(ctx, projectID, status); err != nil {
			return nil, fmt.Errorf("failed to mark project %s: %w", status, err)
		}
	}

	result := &Result{VideoProjectID: projectID}

	for i, c := range clips {
		if c.Completed() {
			continue
		}

		payload := queue.ClipPayload{ClipID: c.ID}
		if c.EndImageURL != nil {
			payload.TailImageURL = *c.EndImageURL
		}
		if c.TransitionType == models.TransitionSeamless && i+1 < len(clips) {
			payload.TargetRoomLabel = roomLabel(clips[i+1])
		}

		id, err := t.queue.EnqueueClip(ctx, payload)
		if err != nil {
			return result, fmt.Errorf("failed to enqueue clip %s: %w", c.ID, err)
		}
		result.ClipJobIDs = append(result.ClipJobIDs, id)
	}

	for i := 0; i+1 < len(clips); i++ {
		from, to := clips[i], clips[i+1]
		if from.TransitionType != models.TransitionSeamless {
			continue
		}
		if from.TransitionClipURL != nil && *from.TransitionClipURL != "" {
			continue
		}

		id, err := t.queue.EnqueueTransition(ctx, queue.TransitionPayload{
			ClipID:         from.ID,
			FromImageURL:   from.EndFrameURL(),
			ToImageURL:     to.SourceImageURL,
			VideoProjectID: projectID,
			WorkspaceID:    project.WorkspaceID,
			AspectRatio:    project.AspectRatio,
		})
		if err != nil {
			return result, fmt.Errorf("failed to enqueue transition after clip %s: %w", from.ID, err)
		}
		result.TransitionIDs = append(result.TransitionIDs, id)
	}

	t.logger.Info("generation triggered",
		"project_id", projectID, "user_id", caller.UserID,
		"clip_jobs", len(result.ClipJobIDs), "transition_jobs", len(result.TransitionIDs),
		"reset_failed", reset)
	return result, nil
}

func roomLabel(c models.VideoClip) string {
	if c.RoomLabel != nil && strings.TrimSpace(*c.RoomLabel) != "" {
		return strings.TrimSpace(*c.RoomLabel)
	}
	return video.RoomLabel(c.RoomType)
}
