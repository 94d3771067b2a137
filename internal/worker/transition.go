package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bobarin/tourgen/internal/db"
	"github.com/bobarin/tourgen/internal/models"
	"github.com/bobarin/tourgen/internal/progress"
	"github.com/bobarin/tourgen/internal/queue"
	"github.com/bobarin/tourgen/internal/services"
	"github.com/bobarin/tourgen/internal/storage"
	"github.com/bobarin/tourgen/internal/video"
)

// TransitionJob blends the end frame of one clip into the start frame of the next.
// Transitions are silent and always use the shortest duration.
type TransitionJob struct {
	Deps
	log *slog.Logger
}

func NewTransitionJob(deps Deps) *TransitionJob {
	return &TransitionJob{Deps: deps, log: deps.logger("transition-job")}
}

// Run generates the blend and stores its URL on the preceding clip. It never
// touches that clip's status or primary video, so a failure only surfaces to the runner.
func (j *TransitionJob) Run(ctx context.Context, at Attempt, p queue.TransitionPayload) (err error) {
	ctx, span := tracer.Start(ctx, "transition.generate", trace.WithAttributes(
		attribute.String("clip.id", p.ClipID.String()),
		attribute.String("job.id", at.JobID),
		attribute.Int("job.retry", at.Retry),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger := j.log.With("job_id", at.JobID, "clip_id", p.ClipID, "project_id", p.VideoProjectID, "attempt", at.Retry+1)

	url, err := j.generate(ctx, logger, at, p)
	if err != nil {
		if at.Final || IsFatal(err) {
			logger.Error("transition generation failed", "error", err)
			bctx, cancel := bookkeeping(ctx)
			defer cancel()
			j.report(bctx, at.JobID, progress.New(progress.StepFailed, "Generation failed", 0))
		} else {
			logger.Warn("transition attempt failed, will retry", "error", err)
		}
		return err
	}

	j.report(ctx, at.JobID, progress.New(progress.StepCompleted, "Complete", 100))
	logger.Info("transition completed", "transition_url", url)
	return nil
}

func (j *TransitionJob) generate(ctx context.Context, logger *slog.Logger, at Attempt, p queue.TransitionPayload) (string, error) {
	j.report(ctx, at.JobID, progress.New(progress.StepFetching, "Loading transition data…", 10))

	if _, err := j.Store.GetVideoClip(ctx, p.ClipID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return "", fatal(fmt.Errorf("clip %s not found", p.ClipID))
		}
		return "", fmt.Errorf("failed to load clip: %w", err)
	}
	if p.FromImageURL == "" || p.ToImageURL == "" {
		return "", fatal(errors.New("transition needs both frame URLs"))
	}

	j.report(ctx, at.JobID, progress.New(progress.StepUploading, "Preparing transition images…", 20))
	fromRef, toRef, err := stageFrames(ctx, j.Media, logger, p.FromImageURL, p.ToImageURL, tailRequired)
	if err != nil {
		return "", err
	}

	j.report(ctx, at.JobID, progress.New(progress.StepGenerating, "Generating transition…", 40))
	out, err := j.Vendor.Generate(ctx, services.GenerationInput{
		ImageURL:       fromRef,
		TailImageURL:   toRef,
		Prompt:         video.TransitionPrompt,
		NegativePrompt: video.NegativePrompt,
		Duration:       models.ClipDurationShort,
		AspectRatio:    p.AspectRatio,
		GenerateAudio:  false,
	}, func(u services.QueueUpdate) {
		if u.Status == services.QueueStatusInProgress {
			j.report(ctx, at.JobID, progress.New(progress.StepGenerating, "Generating transition…", 50))
		}
	})
	if err != nil {
		return "", fmt.Errorf("transition generation failed: %w", err)
	}

	data, err := videoBytes(ctx, j.Media, out)
	if err != nil {
		return "", err
	}

	j.report(ctx, at.JobID, progress.New(progress.StepSaving, "Saving transition…", 80))
	path := storage.TransitionPath(p.WorkspaceID, p.VideoProjectID, p.ClipID)
	url, err := j.Media.PersistAsset(ctx, data, path, "video/mp4")
	if err != nil {
		return "", err
	}

	if err := j.Store.SetTransitionURL(ctx, p.ClipID, url); err != nil {
		return "", fmt.Errorf("failed to store transition url: %w", err)
	}
	return url, nil
}

func (j *TransitionJob) report(ctx context.Context, jobID string, s progress.Status) {
	report(ctx, j.Progress, j.log, jobID, s)
}
