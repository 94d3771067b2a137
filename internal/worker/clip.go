package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/bobarin/tourgen/internal/db"
	"github.com/bobarin/tourgen/internal/media"
	"github.com/bobarin/tourgen/internal/models"
	"github.com/bobarin/tourgen/internal/progress"
	"github.com/bobarin/tourgen/internal/queue"
	"github.com/bobarin/tourgen/internal/services"
	"github.com/bobarin/tourgen/internal/storage"
	"github.com/bobarin/tourgen/internal/video"
)

// Deps are the collaborators shared by the generation jobs.
type Deps struct {
	Store      Store
	Media      Media
	Vendor     services.VideoGenerator
	Progress   progress.Reporter
	Reconciler Reconciler
	Logger     *slog.Logger
}

func (d Deps) logger(component string) *slog.Logger {
	l := d.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", component)
}

// ClipJob turns one clip's still frame into a video.
type ClipJob struct {
	Deps
	leaseTTL time.Duration
	log      *slog.Logger
}

// NewClipJob builds a clip job. leaseTTL should outlast the runner's per-attempt timeout.
func NewClipJob(deps Deps, leaseTTL time.Duration) *ClipJob {
	return &ClipJob{Deps: deps, leaseTTL: leaseTTL, log: deps.logger("clip-job")}
}

// Run drives the clip from pending to completed. A clip that already holds its
// video returns immediately without calling the vendor. Failures are written to the
// clip only when no retry will follow.
func (j *ClipJob) Run(ctx context.Context, at Attempt, p queue.ClipPayload) (err error) {
	ctx, span := tracer.Start(ctx, "clip.generate", trace.WithAttributes(
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

	logger := j.log.With("job_id", at.JobID, "clip_id", p.ClipID, "attempt", at.Retry+1)
	j.report(ctx, at.JobID, progress.New(progress.StepFetching, "Loading clip data…", 10))

	clip, err := j.Store.GetVideoClip(ctx, p.ClipID)
	if errors.Is(err, db.ErrNotFound) {
		j.report(ctx, at.JobID, progress.New(progress.StepFailed, "Generation failed", 0))
		return fatal(fmt.Errorf("clip %s not found", p.ClipID))
	}
	if err != nil {
		return fmt.Errorf("failed to load clip: %w", err)
	}

	if clip.Completed() {
		logger.Info("clip already processed, skipping vendor call")
		j.report(ctx, at.JobID, progress.New(progress.StepCompleted, "Already processed", 100))
		return nil
	}

	if err := j.Store.AcquireClipLease(ctx, clip.ID, at.JobID, j.leaseTTL); err != nil {
		if errors.Is(err, db.ErrLeaseHeld) {
			logger.Warn("clip is leased by another job")
		}
		return fmt.Errorf("failed to lease clip: %w", err)
	}
	defer func() {
		rctx, cancel := bookkeeping(ctx)
		defer cancel()
		if err := j.Store.ReleaseClipLease(rctx, clip.ID, at.JobID); err != nil {
			logger.Warn("failed to release clip lease", "error", err)
		}
	}()

	clipURL, err := j.generate(ctx, logger, at, clip, p)
	if err != nil {
		if at.Final || IsFatal(err) {
			j.fail(ctx, logger, at.JobID, clip, err)
		} else {
			logger.Warn("clip attempt failed, will retry", "error", err)
		}
		return err
	}

	j.reconcile(ctx, logger, clip.VideoProjectID)
	j.report(ctx, at.JobID, progress.New(progress.StepCompleted, "Complete", 100))
	logger.Info("clip completed", "clip_url", clipURL)
	return nil
}

func (j *ClipJob) generate(ctx context.Context, logger *slog.Logger, at Attempt, clip *models.VideoClip, p queue.ClipPayload) (string, error) {
	project, err := j.Store.GetVideoProjectWithTrack(ctx, clip.VideoProjectID)
	if errors.Is(err, db.ErrNotFound) {
		return "", fatal(fmt.Errorf("video project %s not found", clip.VideoProjectID))
	}
	if err != nil {
		return "", fmt.Errorf("failed to load project: %w", err)
	}

	if err := j.Store.MarkClipProcessing(ctx, clip.ID); err != nil {
		return "", fmt.Errorf("failed to mark clip processing: %w", err)
	}

	j.report(ctx, at.JobID, progress.New(progress.StepUploading, "Preparing images…", 20))

	tailURL := p.TailImageURL
	if tailURL == "" && clip.EndImageURL != nil {
		tailURL = *clip.EndImageURL
	}
	sourceRef, tailRef, err := stageFrames(ctx, j.Media, logger, clip.SourceImageURL, tailURL, tailFallback)
	if err != nil {
		return "", err
	}

	prompt := clipPrompt(clip, project, p.TargetRoomLabel)
	logger.Info("generating clip", "vendor", j.Vendor.Name(), "room", clip.RoomType, "has_tail", tailURL != "")

	j.report(ctx, at.JobID, progress.New(progress.StepGenerating, "Generating video…", 40))
	out, err := j.Vendor.Generate(ctx, services.GenerationInput{
		ImageURL:       sourceRef,
		TailImageURL:   tailRef,
		Prompt:         prompt,
		NegativePrompt: video.NegativePrompt,
		Duration:       models.DurationFromSeconds(clip.DurationSeconds),
		AspectRatio:    project.AspectRatio,
		GenerateAudio:  project.GenerateNativeAudio,
	}, j.onQueueUpdate(ctx, at.JobID, "Generating video…"))
	if err != nil {
		return "", fmt.Errorf("video generation failed: %w", err)
	}

	data, err := videoBytes(ctx, j.Media, out)
	if err != nil {
		return "", err
	}

	j.report(ctx, at.JobID, progress.New(progress.StepSaving, "Saving video…", 80))
	path := storage.ClipPath(project.WorkspaceID, project.ID, clip.ID)
	url, err := j.Media.PersistAsset(ctx, data, path, "video/mp4")
	if err != nil {
		return "", err
	}

	if err := j.Store.CompleteClip(ctx, clip.ID, url); err != nil {
		return "", fmt.Errorf("failed to complete clip: %w", err)
	}
	return url, nil
}

func (j *ClipJob) fail(ctx context.Context, logger *slog.Logger, jobID string, clip *models.VideoClip, cause error) {
	bctx, cancel := bookkeeping(ctx)
	defer cancel()

	logger.Error("clip generation failed", "error", cause)
	if err := j.Store.FailClip(bctx, clip.ID, cause.Error()); err != nil {
		logger.Error("failed to record clip failure", "error", err)
	}
	j.reconcile(bctx, logger, clip.VideoProjectID)
	j.report(bctx, jobID, progress.New(progress.StepFailed, "Generation failed", 0))
}

func (j *ClipJob) reconcile(ctx context.Context, logger *slog.Logger, projectID uuid.UUID) {
	if _, err := j.Reconciler.Reconcile(ctx, projectID); err != nil {
		logger.Error("failed to reconcile project", "project_id", projectID, "error", err)
	}
}

func (j *ClipJob) report(ctx context.Context, jobID string, s progress.Status) {
	report(ctx, j.Progress, j.log, jobID, s)
}

func (j *ClipJob) onQueueUpdate(ctx context.Context, jobID, label string) func(services.QueueUpdate) {
	return func(u services.QueueUpdate) {
		if u.Status == services.QueueStatusInProgress {
			j.report(ctx, jobID, progress.New(progress.StepGenerating, label, 50))
		}
	}
}

// clipPrompt resolves the motion prompt: the clip's own override, otherwise the room
// default steered toward the next room, plus the soundtrack clause when audio is on.
func clipPrompt(clip *models.VideoClip, project *models.VideoProjectWithTrack, targetLabel string) string {
	var prompt string
	if clip.MotionPrompt != nil && strings.TrimSpace(*clip.MotionPrompt) != "" {
		prompt = strings.TrimSpace(*clip.MotionPrompt)
	} else {
		prompt = video.TowardRoom(video.MotionPrompt(clip.RoomType), targetLabel)
	}

	if project.GenerateNativeAudio {
		prompt += " " + video.AudioPrompt(project.MusicTrack, video.AmbientRoomName(clip.RoomType, clip.RoomLabel))
	}
	return prompt
}

// tailPolicy decides what a tail frame that cannot be fetched or staged does to the job.
type tailPolicy int

const (
	// tailFallback reuses the source frame.
	tailFallback tailPolicy = iota
	// tailRequired fails the attempt.
	tailRequired
)

// stageFrames stages the source and tail frames concurrently. An empty tail, or
// one equal to the source, reuses the source reference so the vendor always gets
// both frames.
func stageFrames(ctx context.Context, m Media, logger *slog.Logger, sourceURL, tailURL string, policy tailPolicy) (string, string, error) {
	var sourceRef, tailRef string
	var tailErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := m.FetchBytes(gctx, sourceURL)
		if err != nil {
			return fmt.Errorf("failed to fetch source image: %w", err)
		}
		sourceRef, err = m.StageForVendor(gctx, data, media.Filename("source", data), media.ContentType(data))
		if err != nil {
			return fmt.Errorf("failed to stage source image: %w", err)
		}
		return nil
	})
	if tailURL != "" && tailURL != sourceURL {
		g.Go(func() error {
			data, err := m.FetchBytes(gctx, tailURL)
			if err != nil {
				tailErr = fmt.Errorf("failed to fetch tail image: %w", err)
			} else if tailRef, err = m.StageForVendor(gctx, data, media.Filename("tail", data), media.ContentType(data)); err != nil {
				tailErr = fmt.Errorf("failed to stage tail image: %w", err)
			}
			if policy == tailRequired {
				return tailErr
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", "", err
	}

	switch {
	case tailURL == "", tailURL == sourceURL:
		tailRef = sourceRef
	case tailErr != nil:
		logger.Warn("tail image unavailable, reusing source frame", "tail_url", tailURL, "error", tailErr)
		tailRef = sourceRef
	}
	return sourceRef, tailRef, nil
}

// videoBytes returns the generated video, downloading it when the vendor handed
// back a URL.
func videoBytes(ctx context.Context, m Media, out *services.GenerationOutput) ([]byte, error) {
	if out.Empty() {
		return nil, services.ErrNoVideo
	}
	if len(out.VideoData) > 0 {
		return out.VideoData, nil
	}
	data, err := m.FetchBytes(ctx, out.VideoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download generated video: %w", err)
	}
	return data, nil
}
