package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/bobarin/tourgen/internal/queue"
)

// Config tunes the job server.
type Config struct {
	RedisURL    string
	Concurrency int
	Policy      queue.Policy
	// SweepInterval of zero disables the stuck-clip sweep.
	SweepInterval time.Duration
}

// Worker runs generation jobs from the queue and schedules the stuck-clip sweep.
type Worker struct {
	server      *asynq.Server
	scheduler   *asynq.Scheduler
	clips       *ClipJob
	transitions *TransitionJob
	sweeper     *Sweeper
	logger      *slog.Logger
}

func New(cfg Config, clips *ClipJob, transitions *TransitionJob, sweeper *Sweeper, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "worker")

	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	w := &Worker{
		clips:       clips,
		transitions: transitions,
		sweeper:     sweeper,
		logger:      logger,
	}

	w.server = asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			queue.QueueVideo: 6,
			"default":        1,
		},
		RetryDelayFunc:  cfg.Policy.RetryDelay,
		ShutdownTimeout: 30 * time.Second,
		Logger:          asynqLogger{logger},
		ErrorHandler:    asynq.ErrorHandlerFunc(w.logTaskError),
	})

	if cfg.SweepInterval > 0 && sweeper != nil {
		w.scheduler = asynq.NewScheduler(opt, &asynq.SchedulerOpts{
			Location: time.UTC,
			Logger:   asynqLogger{logger},
		})
		cronspec := fmt.Sprintf("@every %s", cfg.SweepInterval)
		task := asynq.NewTask(queue.TypeSweepStuckClips, nil, asynq.MaxRetry(0), asynq.Timeout(cfg.SweepInterval))
		if _, err := w.scheduler.Register(cronspec, task); err != nil {
			return nil, fmt.Errorf("failed to schedule sweep: %w", err)
		}
	}

	return w, nil
}

// Mux routes task types to their handlers.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeGenerateClip, w.HandleClip)
	mux.HandleFunc(queue.TypeGenerateTransition, w.HandleTransition)
	mux.HandleFunc(queue.TypeSweepStuckClips, w.HandleSweep)
	return mux
}

// Start processes jobs until ctx is cancelled, then drains in-flight jobs.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.server.Start(w.Mux()); err != nil {
		return fmt.Errorf("failed to start job server: %w", err)
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			w.server.Shutdown()
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}
	w.logger.Info("worker started")

	<-ctx.Done()
	w.logger.Info("worker shutting down")

	if w.scheduler != nil {
		w.scheduler.Shutdown()
	}
	w.server.Shutdown()
	return nil
}

func (w *Worker) HandleClip(ctx context.Context, t *asynq.Task) error {
	var p queue.ClipPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fatal(fmt.Errorf("invalid clip payload: %w", err))
	}
	if p.ClipID == uuid.Nil {
		return fatal(fmt.Errorf("clip payload is missing clipId"))
	}
	return w.clips.Run(ctx, attemptFrom(ctx), p)
}

func (w *Worker) HandleTransition(ctx context.Context, t *asynq.Task) error {
	var p queue.TransitionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fatal(fmt.Errorf("invalid transition payload: %w", err))
	}
	if p.ClipID == uuid.Nil {
		return fatal(fmt.Errorf("transition payload is missing clipId"))
	}
	return w.transitions.Run(ctx, attemptFrom(ctx), p)
}

func (w *Worker) HandleSweep(ctx context.Context, _ *asynq.Task) error {
	_, err := w.sweeper.Sweep(ctx)
	return err
}

func (w *Worker) logTaskError(ctx context.Context, t *asynq.Task, err error) {
	at := attemptFrom(ctx)
	w.logger.Error("task failed",
		"type", t.Type(), "job_id", at.JobID, "attempt", at.Retry+1,
		"final", at.Final || IsFatal(err), "error", err)
}

// attemptFrom reads the task's identity and retry position from the runner context.
// Outside the runner every call is treated as a final attempt with a fresh id.
func attemptFrom(ctx context.Context) Attempt {
	id, ok := asynq.GetTaskID(ctx)
	if !ok {
		return Attempt{JobID: uuid.NewString(), Final: true}
	}
	retry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return Attempt{JobID: id, Retry: retry, Final: retry >= maxRetry}
}

// asynqLogger routes asynq's internal logging into slog.
type asynqLogger struct {
	l *slog.Logger
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug(fmt.Sprint(args...), "source", "asynq") }
func (a asynqLogger) Info(args ...any)  { a.l.Info(fmt.Sprint(args...), "source", "asynq") }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn(fmt.Sprint(args...), "source", "asynq") }
func (a asynqLogger) Error(args ...any) { a.l.Error(fmt.Sprint(args...), "source", "asynq") }
func (a asynqLogger) Fatal(args ...any) {
	a.l.Error(fmt.Sprint(args...), "source", "asynq")
	os.Exit(1)
}
