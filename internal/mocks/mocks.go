package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/bobarin/tourgen/internal/models"
	"github.com/bobarin/tourgen/internal/queue"
	"github.com/bobarin/tourgen/internal/reconcile"
	"github.com/bobarin/tourgen/internal/services"
)

// Store is a mock for the relational store. It covers every store subset the
// pipeline packages declare.
type Store struct {
	mock.Mock
}

func (m *Store) GetVideoProject(ctx context.Context, id uuid.UUID) (*models.VideoProject, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(*models.VideoProject); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Store) GetVideoProjectWithTrack(ctx context.Context, id uuid.UUID) (*models.VideoProjectWithTrack, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(*models.VideoProjectWithTrack); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Store) UpdateVideoProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *Store) UpdateProjectAggregates(ctx context.Context, id uuid.UUID, clipCount, completed int, status models.ProjectStatus) error {
	args := m.Called(ctx, id, clipCount, completed, status)
	return args.Error(0)
}

func (m *Store) IsWorkspaceMember(ctx context.Context, workspaceID uuid.UUID, userID string) (bool, error) {
	args := m.Called(ctx, workspaceID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *Store) IsProjectPaid(ctx context.Context, projectID uuid.UUID) (bool, error) {
	args := m.Called(ctx, projectID)
	return args.Bool(0), args.Error(1)
}

func (m *Store) GetVideoClip(ctx context.Context, id uuid.UUID) (*models.VideoClip, error) {
	args := m.Called(ctx, id)
	if c, ok := args.Get(0).(*models.VideoClip); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Store) ListProjectClips(ctx context.Context, projectID uuid.UUID) ([]models.VideoClip, error) {
	args := m.Called(ctx, projectID)
	if list, ok := args.Get(0).([]models.VideoClip); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Store) ListStuckClips(ctx context.Context, staleAfter time.Duration) ([]models.VideoClip, error) {
	args := m.Called(ctx, staleAfter)
	if list, ok := args.Get(0).([]models.VideoClip); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Store) MarkClipProcessing(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *Store) CompleteClip(ctx context.Context, id uuid.UUID, clipURL string) error {
	args := m.Called(ctx, id, clipURL)
	return args.Error(0)
}

func (m *Store) FailClip(ctx context.Context, id uuid.UUID, message string) error {
	args := m.Called(ctx, id, message)
	return args.Error(0)
}

func (m *Store) SetTransitionURL(ctx context.Context, id uuid.UUID, url string) error {
	args := m.Called(ctx, id, url)
	return args.Error(0)
}

func (m *Store) ResetFailedClips(ctx context.Context, projectID uuid.UUID) (int64, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Store) UpdateClipSequence(ctx context.Context, clips []models.VideoClip) error {
	args := m.Called(ctx, clips)
	return args.Error(0)
}

func (m *Store) AcquireClipLease(ctx context.Context, id uuid.UUID, owner string, ttl time.Duration) error {
	args := m.Called(ctx, id, owner, ttl)
	return args.Error(0)
}

func (m *Store) ReleaseClipLease(ctx context.Context, id uuid.UUID, owner string) error {
	args := m.Called(ctx, id, owner)
	return args.Error(0)
}

// Enqueuer is a mock for the job queue client.
type Enqueuer struct {
	mock.Mock
}

func (m *Enqueuer) EnqueueClip(ctx context.Context, p queue.ClipPayload) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func (m *Enqueuer) EnqueueTransition(ctx context.Context, p queue.TransitionPayload) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

// VideoGenerator is a mock for services.VideoGenerator.
type VideoGenerator struct {
	mock.Mock
}

func (m *VideoGenerator) Name() string {
	return "mock"
}

func (m *VideoGenerator) StageImage(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	args := m.Called(ctx, data, filename, contentType)
	return args.String(0), args.Error(1)
}

func (m *VideoGenerator) Generate(ctx context.Context, in services.GenerationInput, onUpdate func(services.QueueUpdate)) (*services.GenerationOutput, error) {
	args := m.Called(ctx, in, onUpdate)
	if out, ok := args.Get(0).(*services.GenerationOutput); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

// ObjectStore is a mock for storage.ObjectStore.
type ObjectStore struct {
	mock.Mock
}

func (m *ObjectStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	args := m.Called(ctx, path, data, contentType)
	return args.Error(0)
}

func (m *ObjectStore) PublicURL(path string) string {
	args := m.Called(path)
	return args.String(0)
}

// Media is a mock for the fetch/stage/persist adapter.
type Media struct {
	mock.Mock
}

func (m *Media) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	if data, ok := args.Get(0).([]byte); ok {
		return data, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Media) StageForVendor(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	args := m.Called(ctx, data, filename, contentType)
	return args.String(0), args.Error(1)
}

func (m *Media) PersistAsset(ctx context.Context, data []byte, path, contentType string) (string, error) {
	args := m.Called(ctx, data, path, contentType)
	return args.String(0), args.Error(1)
}

// Reconciler is a mock for the project state synchronizer.
type Reconciler struct {
	mock.Mock
}

func (m *Reconciler) Reconcile(ctx context.Context, projectID uuid.UUID) (reconcile.Aggregate, error) {
	args := m.Called(ctx, projectID)
	if agg, ok := args.Get(0).(reconcile.Aggregate); ok {
		return agg, args.Error(1)
	}
	return reconcile.Aggregate{}, args.Error(1)
}
