package services

import (
	"context"
	"errors"

	"github.com/bobarin/tourgen/internal/models"
)

// ErrNoVideo is returned when the vendor reports success but the output carries no video.
// Callers treat it as transient.
var ErrNoVideo = errors.New("no video returned from vendor")

// Queue states reported while a generation is pending.
const (
	QueueStatusInQueue    = "IN_QUEUE"
	QueueStatusInProgress = "IN_PROGRESS"
	QueueStatusCompleted  = "COMPLETED"
)

// QueueUpdate is a status change observed while waiting on a generation.
type QueueUpdate struct {
	Status        string
	QueuePosition int
}

// GenerationInput is one image-to-video request.
type GenerationInput struct {
	ImageURL       string
	TailImageURL   string
	Prompt         string
	NegativePrompt string
	Duration       models.ClipDuration
	AspectRatio    models.AspectRatio
	GenerateAudio  bool
}

// GenerationOutput holds the produced video. Vendors return either a URL to fetch
// from or the bytes themselves.
type GenerationOutput struct {
	VideoURL  string
	VideoData []byte
}

// Empty reports whether the vendor produced nothing usable.
func (o *GenerationOutput) Empty() bool {
	return o == nil || (o.VideoURL == "" && len(o.VideoData) == 0)
}

// VideoGenerator is an image-to-video vendor with its own staging storage.
type VideoGenerator interface {
	Name() string
	// StageImage makes image bytes reachable by the vendor and returns the reference
	// to pass as ImageURL or TailImageURL.
	StageImage(ctx context.Context, data []byte, filename, contentType string) (string, error)
	// Generate submits the request and blocks until the vendor reaches a terminal state.
	// onUpdate may be nil.
	Generate(ctx context.Context, in GenerationInput, onUpdate func(QueueUpdate)) (*GenerationOutput, error)
}
