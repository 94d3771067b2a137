package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Step is the coarse stage a generation job is in.
type Step string

const (
	StepFetching   Step = "fetching"
	StepUploading  Step = "uploading"
	StepGenerating Step = "generating"
	StepSaving     Step = "saving"
	StepCompleted  Step = "completed"
	StepFailed     Step = "failed"
)

// Status is the tuple clients poll per job.
type Status struct {
	Step      Step      `json:"step"`
	Label     string    `json:"label"`
	Progress  int       `json:"progress"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Terminal reports whether the job will not report again.
func (s Status) Terminal() bool {
	return s.Step == StepCompleted || s.Step == StepFailed
}

func New(step Step, label string, pct int) Status {
	return Status{Step: step, Label: label, Progress: pct}
}

// ErrUnknownJob is returned when no progress has been recorded for a job id.
var ErrUnknownJob = errors.New("unknown job")

// Reporter records job progress. Implementations must be safe for concurrent use.
type Reporter interface {
	Report(ctx context.Context, jobID string, s Status) error
}

// Reader serves recorded progress to clients.
type Reader interface {
	Get(ctx context.Context, jobID string) (*Status, error)
	// Subscribe streams updates for jobID until ctx is done. The channel is closed
	// when the subscription ends.
	Subscribe(ctx context.Context, jobID string) (<-chan Status, error)
}

func key(jobID string) string { return "progress:" + jobID }

// ---------------------------------------------------------------------------
// Redis
// ---------------------------------------------------------------------------

// DefaultTTL matches the job runner's retention window.
const DefaultTTL = 24 * time.Hour

// Redis stores the latest status per job and publishes every update on a
// channel of the same name.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to redisURL (redis://…).
func NewRedis(redisURL string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Report(ctx context.Context, jobID string, s Status) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key(jobID), data, r.ttl)
	pipe.Publish(ctx, key(jobID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record progress: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, jobID string) (*Status, error) {
	data, err := r.client.Get(ctx, key(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrUnknownJob
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress: %w", err)
	}

	var s Status
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse progress: %w", err)
	}
	return &s, nil
}

func (r *Redis) Subscribe(ctx context.Context, jobID string) (<-chan Status, error) {
	sub := r.client.Subscribe(ctx, key(jobID))
	// Receive blocks until the subscription is confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan Status, 8)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var s Status
				if err := json.Unmarshal([]byte(msg.Payload), &s); err != nil {
					continue
				}
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// ---------------------------------------------------------------------------
// In-process
// ---------------------------------------------------------------------------

// Memory keeps progress in process. Used by the operator CLI and tests.
type Memory struct {
	mu      sync.Mutex
	latest  map[string]Status
	history map[string][]Status
	subs    map[string][]chan Status
}

func NewMemory() *Memory {
	return &Memory{
		latest:  make(map[string]Status),
		history: make(map[string][]Status),
		subs:    make(map[string][]chan Status),
	}
}

func (m *Memory) Report(_ context.Context, jobID string, s Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latest[jobID] = s
	m.history[jobID] = append(m.history[jobID], s)
	for _, ch := range m.subs[jobID] {
		select {
		case ch <- s:
		default:
		}
	}
	return nil
}

func (m *Memory) Get(_ context.Context, jobID string) (*Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.latest[jobID]
	if !ok {
		return nil, ErrUnknownJob
	}
	return &s, nil
}

func (m *Memory) Subscribe(ctx context.Context, jobID string) (<-chan Status, error) {
	ch := make(chan Status, 16)

	m.mu.Lock()
	m.subs[jobID] = append(m.subs[jobID], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.subs[jobID]
		for i, c := range subs {
			if c == ch {
				m.subs[jobID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

// History returns every status reported for jobID, oldest first.
func (m *Memory) History(jobID string) []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Status(nil), m.history[jobID]...)
}
