package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/bobarin/tourgen/internal/models"
)

// Task types
const (
	TypeGenerateClip       = "video:generate-clip"
	TypeGenerateTransition = "video:generate-transition"
	TypeSweepStuckClips    = "sweep:stuck-clips"
)

// QueueVideo carries every generation task.
const QueueVideo = "video"

// ClipPayload starts one clip generation.
type ClipPayload struct {
	ClipID          uuid.UUID `json:"clipId"`
	TailImageURL    string    `json:"tailImageUrl,omitempty"`
	TargetRoomLabel string    `json:"targetRoomLabel,omitempty"`
}

// TransitionPayload starts one blend between two frames. The result is stored on ClipID.
type TransitionPayload struct {
	ClipID         uuid.UUID          `json:"clipId"`
	FromImageURL   string             `json:"fromImageUrl"`
	ToImageURL     string             `json:"toImageUrl"`
	VideoProjectID uuid.UUID          `json:"videoProjectId"`
	WorkspaceID    uuid.UUID          `json:"workspaceId"`
	AspectRatio    models.AspectRatio `json:"aspectRatio"`
}

// Policy is the retry and duration budget every generation task gets.
type Policy struct {
	MaxRetry  int
	Timeout   time.Duration
	MinDelay  time.Duration
	MaxDelay  time.Duration
	Retention time.Duration
}

// DefaultPolicy allows three attempts of up to five minutes each, backing off 2s, 4s … 30s.
var DefaultPolicy = Policy{
	MaxRetry:  2,
	Timeout:   5 * time.Minute,
	MinDelay:  2 * time.Second,
	MaxDelay:  30 * time.Second,
	Retention: 24 * time.Hour,
}

// RetryDelay is asynq's RetryDelayFunc: MinDelay * 2^n, capped at MaxDelay.
func (p Policy) RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	d := time.Duration(float64(p.MinDelay) * math.Pow(2, float64(n)))
	if d <= 0 || d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func (p Policy) options() []asynq.Option {
	return []asynq.Option{
		asynq.Queue(QueueVideo),
		asynq.MaxRetry(p.MaxRetry),
		asynq.Timeout(p.Timeout),
		asynq.Retention(p.Retention),
	}
}

// NewClipTask builds a clip generation task.
func NewClipTask(p ClipPayload, policy Policy) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal clip payload: %w", err)
	}
	return asynq.NewTask(TypeGenerateClip, data, policy.options()...), nil
}

// NewTransitionTask builds a transition generation task.
func NewTransitionTask(p TransitionPayload, policy Policy) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transition payload: %w", err)
	}
	return asynq.NewTask(TypeGenerateTransition, data, policy.options()...), nil
}

// Queue enqueues generation tasks.
type Queue struct {
	client *asynq.Client
	policy Policy
}

// New connects to the Redis instance at redisURL (redis://…).
func New(redisURL string, policy Policy) (*Queue, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := asynq.NewClient(opt)
	if err := client.Ping(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client, policy: policy}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// EnqueueClip schedules a clip job and returns its job id.
func (q *Queue) EnqueueClip(ctx context.Context, p ClipPayload) (string, error) {
	task, err := NewClipTask(p, q.policy)
	if err != nil {
		return "", err
	}
	return q.enqueue(ctx, task)
}

// EnqueueTransition schedules a transition job and returns its job id.
func (q *Queue) EnqueueTransition(ctx context.Context, p TransitionPayload) (string, error) {
	task, err := NewTransitionTask(p, q.policy)
	if err != nil {
		return "", err
	}
	return q.enqueue(ctx, task)
}

func (q *Queue) enqueue(ctx context.Context, task *asynq.Task) (string, error) {
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", task.Type(), err)
	}
	return info.ID, nil
}
