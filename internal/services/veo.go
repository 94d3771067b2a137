package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"

	"github.com/bobarin/tourgen/internal/models"
)

// ---------------------------------------------------------------------------
// Veo Video Generation Service
// Uses the Google Gen AI SDK. The start frame is passed as the first image and
// the tail frame as LastFrame, so Veo interpolates the camera move between them.
// ---------------------------------------------------------------------------

const (
	defaultVeoModel = "veo-3.1-generate-preview"
	veoPollInterval = 10 * time.Second
)

// VeoService generates clips with Veo. Images travel inline with the request,
// so staging only encodes them.
type VeoService struct {
	apiKey       string
	model        string
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewVeoService creates a Veo generator.
// apiKey: the Gemini API key (same key works for both Gemini and Veo)
// model: empty string defaults to veo-3.1-generate-preview
func NewVeoService(apiKey, model string, logger *slog.Logger) *VeoService {
	if model == "" {
		model = defaultVeoModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VeoService{
		apiKey:       apiKey,
		model:        model,
		pollInterval: veoPollInterval,
		logger:       logger.With("component", "veo", "model", model),
	}
}

func (s *VeoService) Name() string { return "veo" }

// StageImage returns the image as a data URL; Generate decodes it back into bytes.
func (s *VeoService) StageImage(_ context.Context, data []byte, _ string, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty image")
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// decodeDataURL reverses StageImage.
func decodeDataURL(ref string) (*genai.Image, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return nil, fmt.Errorf("veo expects staged images, got %q", truncate(ref, 40))
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data url")
	}
	mimeType, _ := strings.CutSuffix(meta, ";base64")

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data url: %w", err)
	}
	return &genai.Image{ImageBytes: data, MIMEType: mimeType}, nil
}

// videoConfig maps a generation request onto Veo's options: durations top out at
// 8s, 1:1 falls back to 16:9 and a distinct tail becomes the last frame.
func videoConfig(in GenerationInput) (*genai.GenerateVideosConfig, error) {
	seconds := int32(5)
	if in.Duration == models.ClipDurationLong {
		seconds = 8
	}

	config := &genai.GenerateVideosConfig{
		AspectRatio:     string(in.AspectRatio),
		NumberOfVideos:  1,
		DurationSeconds: genai.Ptr(seconds),
		NegativePrompt:  in.NegativePrompt,
		GenerateAudio:   genai.Ptr(in.GenerateAudio),
	}
	if in.AspectRatio == models.AspectRatioSquare {
		config.AspectRatio = string(models.AspectRatioLandscape)
	}
	if in.TailImageURL != "" && in.TailImageURL != in.ImageURL {
		lastFrame, err := decodeDataURL(in.TailImageURL)
		if err != nil {
			return nil, err
		}
		config.LastFrame = lastFrame
	}
	return config, nil
}

// Generate starts a Veo operation and polls it until done. The generated video is
// downloaded and returned as bytes.
func (s *VeoService) Generate(ctx context.Context, in GenerationInput, onUpdate func(QueueUpdate)) (*GenerationOutput, error) {
	ctx, span := tracer.Start(ctx, "veo.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("vendor.model", s.model))

	firstFrame, err := decodeDataURL(in.ImageURL)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	config, err := videoConfig(in)
	if err != nil {
		return nil, err
	}

	s.logger.Info("starting video generation", "prompt_len", len(in.Prompt), "image_bytes", len(firstFrame.ImageBytes), "has_last_frame", config.LastFrame != nil)

	operation, err := client.Models.GenerateVideos(ctx, s.model, in.Prompt, firstFrame, config)
	if err != nil {
		return nil, fmt.Errorf("failed to start video generation: %w", err)
	}
	if onUpdate != nil {
		onUpdate(QueueUpdate{Status: QueueStatusInProgress})
	}

	pollCount := 0
	for !operation.Done {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("video generation cancelled: %w", ctx.Err())
		case <-time.After(s.pollInterval):
		}

		pollCount++
		operation, err = client.Operations.GetVideosOperation(ctx, operation, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to poll operation (attempt %d): %w", pollCount, err)
		}
		s.logger.Debug("poll", "attempt", pollCount, "done", operation.Done)
	}
	if onUpdate != nil {
		onUpdate(QueueUpdate{Status: QueueStatusCompleted})
	}

	if len(operation.Error) > 0 {
		errJSON, _ := json.Marshal(operation.Error)
		return nil, fmt.Errorf("video generation operation failed: %s", string(errJSON))
	}

	if operation.Response == nil {
		return nil, fmt.Errorf("operation %s: %w", operation.Name, ErrNoVideo)
	}

	if operation.Response.RAIMediaFilteredCount > 0 {
		reasons := "unknown"
		if len(operation.Response.RAIMediaFilteredReasons) > 0 {
			reasons = strings.Join(operation.Response.RAIMediaFilteredReasons, ", ")
		}
		return nil, fmt.Errorf("video blocked by safety filters: %s", reasons)
	}

	if len(operation.Response.GeneratedVideos) == 0 || operation.Response.GeneratedVideos[0].Video == nil {
		return nil, fmt.Errorf("operation %s: %w", operation.Name, ErrNoVideo)
	}

	video := operation.Response.GeneratedVideos[0].Video
	videoBytes, err := client.Files.Download(ctx, genai.NewDownloadURIFromVideo(video), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download generated video: %w", err)
	}
	if len(videoBytes) == 0 {
		return nil, fmt.Errorf("downloaded video is empty: %w", ErrNoVideo)
	}

	s.logger.Info("video generated", "bytes", len(videoBytes), "polls", pollCount)
	return &GenerationOutput{VideoData: videoBytes}, nil
}
