package worker

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/tourgen/internal/db"
	"github.com/bobarin/tourgen/internal/mocks"
	"github.com/bobarin/tourgen/internal/models"
	"github.com/bobarin/tourgen/internal/progress"
	"github.com/bobarin/tourgen/internal/queue"
	"github.com/bobarin/tourgen/internal/reconcile"
	"github.com/bobarin/tourgen/internal/services"
	"github.com/bobarin/tourgen/internal/storage"
	"github.com/bobarin/tourgen/internal/video"
)

const (
	jobID    = "job-1"
	leaseTTL = 6 * time.Minute
)

func strPtr(s string) *string { return &s }

type harness struct {
	store      *mocks.Store
	media      *mocks.Media
	vendor     *mocks.VideoGenerator
	reconciler *mocks.Reconciler
	progress   *progress.Memory
	deps       Deps
	project    *models.VideoProjectWithTrack
	clip       *models.VideoClip
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:      new(mocks.Store),
		media:      new(mocks.Media),
		vendor:     new(mocks.VideoGenerator),
		reconciler: new(mocks.Reconciler),
		progress:   progress.NewMemory(),
	}
	h.deps = Deps{
		Store:      h.store,
		Media:      h.media,
		Vendor:     h.vendor,
		Progress:   h.progress,
		Reconciler: h.reconciler,
	}
	h.project = &models.VideoProjectWithTrack{VideoProject: models.VideoProject{
		ID:          uuid.New(),
		WorkspaceID: uuid.New(),
		AspectRatio: models.AspectRatioLandscape,
		Status:      models.ProjectStatusProcessing,
	}}
	h.clip = &models.VideoClip{
		ID:              uuid.New(),
		VideoProjectID:  h.project.ID,
		SequenceOrder:   1,
		RoomType:        models.RoomKitchen,
		SourceImageURL:  "https://img.example/kitchen.jpg",
		DurationSeconds: 5,
		TransitionType:  models.TransitionCut,
		Status:          models.ClipStatusPending,
	}
	return h
}

// leased wires the calls every clip run makes before reaching the vendor.
func (h *harness) leased() {
	h.store.On("GetVideoClip", mock.Anything, h.clip.ID).Return(h.clip, nil)
	h.store.On("AcquireClipLease", mock.Anything, h.clip.ID, jobID, leaseTTL).Return(nil)
	h.store.On("ReleaseClipLease", mock.Anything, h.clip.ID, jobID).Return(nil)
	h.store.On("GetVideoProjectWithTrack", mock.Anything, h.project.ID).Return(h.project, nil)
	h.store.On("MarkClipProcessing", mock.Anything, h.clip.ID).Return(nil)
}

func (h *harness) stagedSource() {
	h.media.On("FetchBytes", mock.Anything, h.clip.SourceImageURL).Return([]byte("source-bytes"), nil)
	h.media.On("StageForVendor", mock.Anything, []byte("source-bytes"), "source.jpg", "image/jpeg").Return("https://vendor/source.jpg", nil)
}

func (h *harness) lastStep(t *testing.T) progress.Status {
	t.Helper()
	history := h.progress.History(jobID)
	require.NotEmpty(t, history)
	return history[len(history)-1]
}

func TestClipJobSkipsCompletedClip(t *testing.T) {
	h := newHarness(t)
	h.clip.Status = models.ClipStatusCompleted
	h.clip.ClipURL = strPtr("https://cdn.example/done.mp4")
	h.store.On("GetVideoClip", mock.Anything, h.clip.ID).Return(h.clip, nil)

	err := NewClipJob(h.deps, leaseTTL).Run(t.Context(), Attempt{JobID: jobID}, queue.ClipPayload{ClipID: h.clip.ID})
	require.NoError(t, err)

	h.vendor.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
	h.store.AssertNotCalled(t, "AcquireClipLease", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	h.store.AssertNotCalled(t, "MarkClipProcessing", mock.Anything, mock.Anything)
	assert.Equal(t, progress.StepCompleted, h.lastStep(t).Step)
	assert.Equal(t, "Already processed", h.lastStep(t).Label)
}

func TestClipJobFallsBackToSourceWhenTailFails(t *testing.T) {
	h := newHarness(t)
	h.clip.EndImageURL = strPtr("https://img.example/kitchen-end.jpg")
	h.leased()
	h.stagedSource()
	h.media.On("FetchBytes", mock.Anything, "https://img.example/kitchen-end.jpg").
		Return(nil, errors.New("status 404"))

	h.vendor.On("Generate", mock.Anything, mock.MatchedBy(func(in services.GenerationInput) bool {
		return in.ImageURL == "https://vendor/source.jpg" &&
			in.TailImageURL == "https://vendor/source.jpg" &&
			in.Duration == models.ClipDurationShort &&
			in.AspectRatio == models.AspectRatioLandscape &&
			in.NegativePrompt == video.NegativePrompt &&
			!in.GenerateAudio &&
			strings.HasSuffix(in.Prompt, "The camera gradually moves toward the dining area.")
	}), mock.Anything).
		Run(func(args mock.Arguments) {
			onUpdate := args.Get(2).(func(services.QueueUpdate))
			onUpdate(services.QueueUpdate{Status: services.QueueStatusInQueue, QueuePosition: 2})
			onUpdate(services.QueueUpdate{Status: services.QueueStatusInProgress})
		}).
		Return(&services.GenerationOutput{VideoURL: "https://vendor/out.mp4"}, nil)

	h.media.On("FetchBytes", mock.Anything, "https://vendor/out.mp4").Return([]byte("mp4"), nil)
	path := storage.ClipPath(h.project.WorkspaceID, h.project.ID, h.clip.ID)
	h.media.On("PersistAsset", mock.Anything, []byte("mp4"), path, "video/mp4").Return("https://cdn.example/"+path, nil)
	h.store.On("CompleteClip", mock.Anything, h.clip.ID, "https://cdn.example/"+path).Return(nil)
	h.reconciler.On("Reconcile", mock.Anything, h.project.ID).Return(reconcile.Aggregate{}, nil).Once()

	payload := queue.ClipPayload{ClipID: h.clip.ID, TargetRoomLabel: "Dining Area"}
	err := NewClipJob(h.deps, leaseTTL).Run(t.Context(), Attempt{JobID: jobID}, payload)
	require.NoError(t, err)

	h.store.AssertNotCalled(t, "FailClip", mock.Anything, mock.Anything, mock.Anything)
	h.store.AssertCalled(t, "ReleaseClipLease", mock.Anything, h.clip.ID, jobID)
	h.reconciler.AssertExpectations(t)

	var pct []int
	for _, s := range h.progress.History(jobID) {
		pct = append(pct, s.Progress)
	}
	assert.Equal(t, []int{10, 20, 40, 50, 80, 100}, pct)
}

func TestClipJobAddsAudioClause(t *testing.T) {
	h := newHarness(t)
	h.project.GenerateNativeAudio = true
	h.project.MusicTrack = &models.MusicTrack{ID: uuid.New(), Name: "Morning Light", Category: "acoustic"}
	h.leased()
	h.stagedSource()

	want := video.MotionPrompt(models.RoomKitchen) + " " +
		video.AudioPrompt(h.project.MusicTrack, video.AmbientRoomName(models.RoomKitchen, nil))
	h.vendor.On("Generate", mock.Anything, mock.MatchedBy(func(in services.GenerationInput) bool {
		return in.GenerateAudio && in.Prompt == want &&
			in.ImageURL == "https://vendor/source.jpg" && in.TailImageURL == "https://vendor/source.jpg"
	}), mock.Anything).Return(&services.GenerationOutput{VideoData: []byte("mp4")}, nil)

	h.media.On("PersistAsset", mock.Anything, []byte("mp4"), mock.Anything, "video/mp4").Return("https://cdn.example/clip.mp4", nil)
	h.store.On("CompleteClip", mock.Anything, h.clip.ID, "https://cdn.example/clip.mp4").Return(nil)
	h.reconciler.On("Reconcile", mock.Anything, h.project.ID).Return(reconcile.Aggregate{}, nil)

	require.NoError(t, NewClipJob(h.deps, leaseTTL).Run(t.Context(), Attempt{JobID: jobID}, queue.ClipPayload{ClipID: h.clip.ID}))
	h.vendor.AssertExpectations(t)
	h.media.AssertNumberOfCalls(t, "StageForVendor", 1)
}

func TestClipJobMalformedOutputIsRetried(t *testing.T) {
	h := newHarness(t)
	h.leased()
	h.stagedSource()
	h.vendor.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(&services.GenerationOutput{}, nil)

	err := NewClipJob(h.deps, leaseTTL).Run(t.Context(), Attempt{JobID: jobID}, queue.ClipPayload{ClipID: h.clip.ID})
	require.ErrorIs(t, err, services.ErrNoVideo)
	assert.False(t, IsFatal(err))

	h.store.AssertNotCalled(t, "FailClip", mock.Anything, mock.Anything, mock.Anything)
	h.reconciler.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}

func TestClipJobFinalAttemptRecordsFailure(t *testing.T) {
	h := newHarness(t)
	h.leased()
	h.stagedSource()
	h.vendor.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("vendor returned 500"))
	h.store.On("FailClip", mock.Anything, h.clip.ID, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "vendor returned 500")
	})).Return(nil).Once()
	h.reconciler.On("Reconcile", mock.Anything, h.project.ID).Return(reconcile.Aggregate{Status: models.ProjectStatusFailed}, nil).Once()

	err := NewClipJob(h.deps, leaseTTL).Run(t.Context(), Attempt{JobID: jobID, Retry: 2, Final: true}, queue.ClipPayload{ClipID: h.clip.ID})
	require.Error(t, err)

	h.store.AssertExpectations(t)
	h.reconciler.AssertExpectations(t)
	assert.Equal(t, progress.StepFailed, h.lastStep(t).Step)
	assert.Equal(t, 0, h.lastStep(t).Progress)
}

func TestClipJobSourceFetchFailure(t *testing.T) {
	h := newHarness(t)
	h.leased()
	h.media.On("FetchBytes", mock.Anything, h.clip.SourceImageURL).Return(nil, errors.New("status 403"))

	err := NewClipJob(h.deps, leaseTTL).Run(t.Context(), Attempt{JobID: jobID}, queue.ClipPayload{ClipID: h.clip.ID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source image")
	h.vendor.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestClipJobMissingClipIsFatal(t *testing.T) {
	h := newHarness(t)
	h.store.On("GetVideoClip", mock.Anything, h.clip.ID).Return(nil, fmt.Errorf("video clip %s: %w", h.clip.ID, db.ErrNotFound))

	err := NewClipJob(h.deps, leaseTTL).Run(t.Context(), Attempt{JobID: jobID}, queue.ClipPayload{ClipID: h.clip.ID})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	h.store.AssertNotCalled(t, "FailClip", mock.Anything, mock.Anything, mock.Anything)
}

func TestClipJobMissingProjectFailsImmediately(t *testing.T) {
	h := newHarness(t)
	h.store.On("GetVideoClip", mock.Anything, h.clip.ID).Return(h.clip, nil)
	h.store.On("AcquireClipLease", mock.Anything, h.clip.ID, jobID, leaseTTL).Return(nil)
	h.store.On("ReleaseClipLease", mock.Anything, h.clip.ID, jobID).Return(nil)
	h.store.On("GetVideoProjectWithTrack", mock.Anything, h.project.ID).Return(nil, db.ErrNotFound)
	h.store.On("FailClip", mock.Anything, h.clip.ID, mock.Anything).Return(nil).Once()
	h.reconciler.On("Reconcile", mock.Anything, h.project.ID).Return(reconcile.Aggregate{}, nil)

	err := NewClipJob(h.deps, leaseTTL).Run(t.Context(), Attempt{JobID: jobID}, queue.ClipPayload{ClipID: h.clip.ID})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	h.store.AssertExpectations(t)
	h.store.AssertNotCalled(t, "MarkClipProcessing", mock.Anything, mock.Anything)
}

func TestClipJobLeaseHeldIsRetryable(t *testing.T) {
	h := newHarness(t)
	h.store.On("GetVideoClip", mock.Anything, h.clip.ID).Return(h.clip, nil)
	h.store.On("AcquireClipLease", mock.Anything, h.clip.ID, jobID, leaseTTL).
		Return(fmt.Errorf("video clip %s: %w", h.clip.ID, db.ErrLeaseHeld))

	err := NewClipJob(h.deps, leaseTTL).Run(t.Context(), Attempt{JobID: jobID, Final: true}, queue.ClipPayload{ClipID: h.clip.ID})
	require.ErrorIs(t, err, db.ErrLeaseHeld)
	assert.False(t, IsFatal(err))
	h.store.AssertNotCalled(t, "MarkClipProcessing", mock.Anything, mock.Anything)
	h.store.AssertNotCalled(t, "FailClip", mock.Anything, mock.Anything, mock.Anything)
}

func transitionPayload(h *harness, from, to string) queue.TransitionPayload {
	return queue.TransitionPayload{
		ClipID:         h.clip.ID,
		FromImageURL:   from,
		ToImageURL:     to,
		VideoProjectID: h.project.ID,
		WorkspaceID:    h.project.WorkspaceID,
		AspectRatio:    models.AspectRatioPortrait,
	}
}

func TestTransitionJobIdenticalFrames(t *testing.T) {
	h := newHarness(t)
	frame := "https://img.example/hall.jpg"
	h.store.On("GetVideoClip", mock.Anything, h.clip.ID).Return(h.clip, nil)
	h.media.On("FetchBytes", mock.Anything, frame).Return([]byte("hall"), nil).Once()
	h.media.On("StageForVendor", mock.Anything, []byte("hall"), "source.jpg", "image/jpeg").Return("https://vendor/hall.jpg", nil).Once()
	h.vendor.On("Generate", mock.Anything, services.GenerationInput{
		ImageURL:       "https://vendor/hall.jpg",
		TailImageURL:   "https://vendor/hall.jpg",
		Prompt:         video.TransitionPrompt,
		NegativePrompt: video.NegativePrompt,
		Duration:       models.ClipDurationShort,
		AspectRatio:    models.AspectRatioPortrait,
		GenerateAudio:  false,
	}, mock.Anything).Return(&services.GenerationOutput{VideoData: []byte("blend")}, nil)

	path := storage.TransitionPath(h.project.WorkspaceID, h.project.ID, h.clip.ID)
	h.media.On("PersistAsset", mock.Anything, []byte("blend"), path, "video/mp4").Return("https://cdn.example/"+path, nil)
	h.store.On("SetTransitionURL", mock.Anything, h.clip.ID, "https://cdn.example/"+path).Return(nil).Once()

	err := NewTransitionJob(h.deps).Run(t.Context(), Attempt{JobID: jobID}, transitionPayload(h, frame, frame))
	require.NoError(t, err)

	h.media.AssertExpectations(t)
	h.store.AssertExpectations(t)
	h.store.AssertNotCalled(t, "CompleteClip", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, progress.StepCompleted, h.lastStep(t).Step)
}

func TestTransitionJobFailsWhenTargetFrameUnavailable(t *testing.T) {
	h := newHarness(t)
	from, to := "https://img.example/a.jpg", "https://img.example/b.jpg"
	h.store.On("GetVideoClip", mock.Anything, h.clip.ID).Return(h.clip, nil)
	h.media.On("FetchBytes", mock.Anything, from).Return([]byte("a"), nil)
	h.media.On("StageForVendor", mock.Anything, []byte("a"), "source.jpg", "image/jpeg").Return("https://vendor/a.jpg", nil)
	h.media.On("FetchBytes", mock.Anything, to).Return(nil, errors.New("status 404"))

	err := NewTransitionJob(h.deps).Run(t.Context(), Attempt{JobID: jobID, Final: true}, transitionPayload(h, from, to))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tail image")
	assert.False(t, IsFatal(err))

	h.vendor.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
	h.store.AssertNotCalled(t, "SetTransitionURL", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, progress.StepFailed, h.lastStep(t).Step)
}

func TestTransitionJobFailureLeavesClipAlone(t *testing.T) {
	h := newHarness(t)
	h.store.On("GetVideoClip", mock.Anything, h.clip.ID).Return(h.clip, nil)
	h.media.On("FetchBytes", mock.Anything, mock.Anything).Return([]byte("frame"), nil)
	h.media.On("StageForVendor", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("https://vendor/frame.jpg", nil)
	h.vendor.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("content policy"))

	err := NewTransitionJob(h.deps).Run(t.Context(), Attempt{JobID: jobID, Final: true},
		transitionPayload(h, "https://img.example/a.jpg", "https://img.example/b.jpg"))
	require.Error(t, err)

	h.store.AssertNotCalled(t, "FailClip", mock.Anything, mock.Anything, mock.Anything)
	h.store.AssertNotCalled(t, "SetTransitionURL", mock.Anything, mock.Anything, mock.Anything)
	h.reconciler.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
	assert.Equal(t, progress.StepFailed, h.lastStep(t).Step)
}

func TestHandlersRejectMalformedPayloads(t *testing.T) {
	h := newHarness(t)
	w := &Worker{
		clips:       NewClipJob(h.deps, leaseTTL),
		transitions: NewTransitionJob(h.deps),
	}

	err := w.HandleClip(t.Context(), asynq.NewTask(queue.TypeGenerateClip, []byte("{not json")))
	assert.True(t, IsFatal(err))

	err = w.HandleClip(t.Context(), asynq.NewTask(queue.TypeGenerateClip, []byte(`{}`)))
	assert.True(t, IsFatal(err))

	err = w.HandleTransition(t.Context(), asynq.NewTask(queue.TypeGenerateTransition, []byte("[]")))
	assert.True(t, IsFatal(err))

	h.store.AssertNotCalled(t, "GetVideoClip", mock.Anything, mock.Anything)
}

func TestAttemptOutsideRunnerIsFinal(t *testing.T) {
	at := attemptFrom(t.Context())
	assert.True(t, at.Final)
	assert.NotEmpty(t, at.JobID)
}

func TestSweeperReenqueuesStuckClips(t *testing.T) {
	store := new(mocks.Store)
	q := new(mocks.Enqueuer)

	stuck := []models.VideoClip{
		{ID: uuid.New(), EndImageURL: strPtr("https://img.example/end.jpg")},
		{ID: uuid.New()},
	}
	store.On("ListStuckClips", mock.Anything, 20*time.Minute).Return(stuck, nil)
	q.On("EnqueueClip", mock.Anything, queue.ClipPayload{ClipID: stuck[0].ID, TailImageURL: "https://img.example/end.jpg"}).
		Return("", errors.New("redis down"))
	q.On("EnqueueClip", mock.Anything, queue.ClipPayload{ClipID: stuck[1].ID}).Return("job-2", nil)

	n, err := NewSweeper(store, q, 20*time.Minute, nil).Sweep(t.Context())
	assert.Equal(t, 1, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
	q.AssertExpectations(t)
}
