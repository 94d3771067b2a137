package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

// ---------------------------------------------------------------------------
// fal.ai queue client (Kling image-to-video)
// Deferred request pattern: submit to the queue → poll status_url → fetch response_url.
// Input images must first be staged in fal storage.
// ---------------------------------------------------------------------------

const (
	DefaultFalModel      = "fal-ai/kling-video/v2.6/pro/image-to-video"
	falQueueURL          = "https://queue.fal.run"
	falStorageURL        = "https://rest.alpha.fal.ai"
	falPollMinInterval   = 2 * time.Second
	falPollMaxInterval   = 15 * time.Second
	falPollBackoffFactor = 1.5
	falRequestTimeout    = 60 * time.Second
)

var tracer = otel.Tracer("tourgen/services")

// FalConfig configures a FalClient. Zero values fall back to production defaults.
type FalConfig struct {
	APIKey            string
	Model             string
	QueueURL          string
	StorageURL        string
	RequestsPerSecond float64
	PollMinInterval   time.Duration
	PollMaxInterval   time.Duration
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// FalClient generates clips through fal's queue API.
type FalClient struct {
	apiKey     string
	model      string
	queueURL   string
	storageURL string
	pollMin    time.Duration
	pollMax    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func NewFalClient(cfg FalConfig) *FalClient {
	c := &FalClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		queueURL:   strings.TrimRight(cfg.QueueURL, "/"),
		storageURL: strings.TrimRight(cfg.StorageURL, "/"),
		pollMin:    cfg.PollMinInterval,
		pollMax:    cfg.PollMaxInterval,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
	if c.model == "" {
		c.model = DefaultFalModel
	}
	if c.queueURL == "" {
		c.queueURL = falQueueURL
	}
	if c.storageURL == "" {
		c.storageURL = falStorageURL
	}
	if c.pollMin <= 0 {
		c.pollMin = falPollMinInterval
	}
	if c.pollMax < c.pollMin {
		c.pollMax = falPollMaxInterval
		if c.pollMax < c.pollMin {
			c.pollMax = c.pollMin
		}
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: falRequestTimeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	// Submissions and uploads share one budget; fal throttles per key.
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	} else {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	}

	c.logger = c.logger.With("component", "fal", "model", c.model)
	return c
}

func (c *FalClient) Name() string { return "fal" }

// ---------------------------------------------------------------------------
// Request / Response types
// ---------------------------------------------------------------------------

// falKlingInput is the model input for Kling image-to-video.
type falKlingInput struct {
	ImageURL       string `json:"image_url"`
	TailImageURL   string `json:"tail_image_url,omitempty"`
	Prompt         string `json:"prompt"`
	Duration       string `json:"duration"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
	GenerateAudio  bool   `json:"generate_audio"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

// falSubmitResponse is returned by POST {queue}/{model}.
type falSubmitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

// falStatusResponse is returned by GET status_url.
type falStatusResponse struct {
	Status        string `json:"status"`
	QueuePosition int    `json:"queue_position"`
	Error         string `json:"error,omitempty"`
}

// falKlingOutput is the model output. Some gateways wrap it in "data".
type falKlingOutput struct {
	Video *struct {
		URL string `json:"url"`
	} `json:"video"`
	Data *struct {
		Video *struct {
			URL string `json:"url"`
		} `json:"video"`
	} `json:"data,omitempty"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

func (o *falKlingOutput) videoURL() string {
	if o.Video != nil && o.Video.URL != "" {
		return o.Video.URL
	}
	if o.Data != nil && o.Data.Video != nil {
		return o.Data.Video.URL
	}
	return ""
}

type falInitiateUploadRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
}

type falInitiateUploadResponse struct {
	UploadURL string `json:"upload_url"`
	FileURL   string `json:"file_url"`
}

// ---------------------------------------------------------------------------
// Staging
// ---------------------------------------------------------------------------

// StageImage uploads image bytes to fal storage and returns the file URL the
// model can read.
func (c *FalClient) StageImage(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	initBody, err := json.Marshal(falInitiateUploadRequest{FileName: filename, ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to marshal upload request: %w", err)
	}

	var initResp falInitiateUploadResponse
	if err := c.doJSON(ctx, http.MethodPost, c.storageURL+"/storage/upload/initiate", initBody, &initResp); err != nil {
		return "", fmt.Errorf("failed to initiate upload: %w", err)
	}
	if initResp.UploadURL == "" || initResp.FileURL == "" {
		return "", fmt.Errorf("upload initiation returned no urls")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, initResp.UploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("upload returned status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("staged image", "filename", filename, "bytes", len(data))
	return initResp.FileURL, nil
}

// ---------------------------------------------------------------------------
// Generation
// ---------------------------------------------------------------------------

// Generate submits a Kling request and polls until it completes. The caller's
// context bounds the whole wait.
func (c *FalClient) Generate(ctx context.Context, in GenerationInput, onUpdate func(QueueUpdate)) (*GenerationOutput, error) {
	ctx, span := tracer.Start(ctx, "fal.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("vendor.model", c.model),
		attribute.String("video.duration", string(in.Duration)),
		attribute.String("video.aspect_ratio", string(in.AspectRatio)),
	)

	input := falKlingInput{
		ImageURL:       in.ImageURL,
		TailImageURL:   in.TailImageURL,
		Prompt:         in.Prompt,
		Duration:       string(in.Duration),
		AspectRatio:    string(in.AspectRatio),
		GenerateAudio:  in.GenerateAudio,
		NegativePrompt: in.NegativePrompt,
	}
	if input.Duration == "" {
		input.Duration = "5"
	}

	c.logger.Info("submitting generation",
		"prompt_len", len(in.Prompt), "duration", input.Duration,
		"aspect_ratio", input.AspectRatio, "generate_audio", input.GenerateAudio,
		"has_tail", input.TailImageURL != "")

	sub, err := c.submit(ctx, input)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to submit generation: %w", err)
	}
	span.SetAttributes(attribute.String("vendor.request_id", sub.RequestID))
	c.logger.Info("generation submitted", "request_id", sub.RequestID)

	if err := c.pollUntilDone(ctx, sub, onUpdate); err != nil {
		span.RecordError(err)
		return nil, err
	}

	var out falKlingOutput
	if err := c.doJSON(ctx, http.MethodGet, sub.ResponseURL, nil, &out); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to fetch result (request_id=%s): %w", sub.RequestID, err)
	}

	url := out.videoURL()
	if url == "" {
		c.logger.Error("no video in response", "request_id", sub.RequestID, "detail", string(out.Detail))
		return nil, fmt.Errorf("request_id=%s: %w", sub.RequestID, ErrNoVideo)
	}

	c.logger.Info("generation completed", "request_id", sub.RequestID)
	return &GenerationOutput{VideoURL: url}, nil
}

func (c *FalClient) submit(ctx context.Context, input falKlingInput) (*falSubmitResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var sub falSubmitResponse
	if err := c.doJSON(ctx, http.MethodPost, c.queueURL+"/"+c.model, body, &sub); err != nil {
		return nil, err
	}
	if sub.RequestID == "" {
		return nil, fmt.Errorf("no request_id in submit response")
	}

	// Older queue deployments omit the URLs.
	base := c.queueURL + "/" + c.model + "/requests/" + sub.RequestID
	if sub.StatusURL == "" {
		sub.StatusURL = base + "/status"
	}
	if sub.ResponseURL == "" {
		sub.ResponseURL = base
	}
	return &sub, nil
}

// pollUntilDone polls the status URL with exponential backoff capped at pollMax.
func (c *FalClient) pollUntilDone(ctx context.Context, sub *falSubmitResponse, onUpdate func(QueueUpdate)) error {
	interval := c.pollMin
	lastStatus := ""
	pollCount := 0

	for {
		pollCount++

		var st falStatusResponse
		if err := c.doJSON(ctx, http.MethodGet, sub.StatusURL, nil, &st); err != nil {
			return fmt.Errorf("failed to poll status (attempt %d, request_id=%s): %w", pollCount, sub.RequestID, err)
		}

		if st.Status != lastStatus {
			c.logger.Info("queue update", "request_id", sub.RequestID, "status", st.Status, "queue_position", st.QueuePosition)
			if onUpdate != nil {
				onUpdate(QueueUpdate{Status: st.Status, QueuePosition: st.QueuePosition})
			}
			lastStatus = st.Status
		}

		switch st.Status {
		case QueueStatusCompleted:
			if st.Error != "" {
				return fmt.Errorf("generation failed: %s (request_id=%s)", st.Error, sub.RequestID)
			}
			return nil
		case QueueStatusInQueue, QueueStatusInProgress:
		default:
			if st.Error != "" {
				return fmt.Errorf("generation failed: %s (request_id=%s)", st.Error, sub.RequestID)
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("generation cancelled (request_id=%s): %w", sub.RequestID, ctx.Err())
		case <-time.After(interval):
		}

		next := time.Duration(float64(interval) * falPollBackoffFactor)
		if next > c.pollMax {
			next = c.pollMax
		}
		interval = next
	}
}

// doJSON sends an authenticated request and decodes a 2xx JSON response into out.
func (c *FalClient) doJSON(ctx context.Context, method, url string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fal returned status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w (body: %s)", err, truncate(string(respBody), 500))
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
