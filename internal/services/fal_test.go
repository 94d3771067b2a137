package services

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobarin/tourgen/internal/models"
)

type fakeFal struct {
	mu        sync.Mutex
	statuses  []string
	polls     int
	submitted falKlingInput
	auth      string
	result    string
	uploaded  []byte
	uploadCT  string
}

func (f *fakeFal) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	var srvURL string

	mux.HandleFunc("POST /fal-ai/test-model", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.submitted))
		srvURL = "http://" + r.Host
		_ = json.NewEncoder(w).Encode(falSubmitResponse{
			RequestID:   "req-1",
			StatusURL:   srvURL + "/requests/req-1/status",
			ResponseURL: srvURL + "/requests/req-1",
		})
	})
	mux.HandleFunc("GET /requests/req-1/status", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		status := f.statuses[min(f.polls, len(f.statuses)-1)]
		f.polls++
		_ = json.NewEncoder(w).Encode(falStatusResponse{Status: status})
	})
	mux.HandleFunc("GET /requests/req-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, f.result)
	})
	mux.HandleFunc("POST /storage/upload/initiate", func(w http.ResponseWriter, r *http.Request) {
		var req falInitiateUploadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		base := "http://" + r.Host
		_ = json.NewEncoder(w).Encode(falInitiateUploadResponse{
			UploadURL: base + "/upload/" + req.FileName,
			FileURL:   "https://v3.fal.media/files/" + req.FileName,
		})
	})
	mux.HandleFunc("PUT /upload/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.uploaded, _ = io.ReadAll(r.Body)
		f.uploadCT = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func newTestFal(t *testing.T, f *fakeFal) *FalClient {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	return NewFalClient(FalConfig{
		APIKey:          "secret",
		Model:           "fal-ai/test-model",
		QueueURL:        srv.URL,
		StorageURL:      srv.URL,
		PollMinInterval: time.Millisecond,
		PollMaxInterval: 2 * time.Millisecond,
	})
}

func TestFalGenerateReportsQueueUpdates(t *testing.T) {
	f := &fakeFal{
		statuses: []string{QueueStatusInQueue, QueueStatusInProgress, QueueStatusInProgress, QueueStatusCompleted},
		result:   `{"video":{"url":"https://v3.fal.media/files/out.mp4"}}`,
	}
	c := newTestFal(t, f)

	var updates []string
	out, err := c.Generate(t.Context(), GenerationInput{
		ImageURL:       "https://v3.fal.media/files/source.jpg",
		TailImageURL:   "https://v3.fal.media/files/tail.jpg",
		Prompt:         "pan left",
		NegativePrompt: "blurry",
		Duration:       models.ClipDurationLong,
		AspectRatio:    models.AspectRatioLandscape,
		GenerateAudio:  true,
	}, func(u QueueUpdate) { updates = append(updates, u.Status) })

	require.NoError(t, err)
	assert.Equal(t, "https://v3.fal.media/files/out.mp4", out.VideoURL)
	assert.Equal(t, []string{QueueStatusInQueue, QueueStatusInProgress, QueueStatusCompleted}, updates)

	assert.Equal(t, "Key secret", f.auth)
	assert.Equal(t, "https://v3.fal.media/files/source.jpg", f.submitted.ImageURL)
	assert.Equal(t, "https://v3.fal.media/files/tail.jpg", f.submitted.TailImageURL)
	assert.Equal(t, "10", f.submitted.Duration)
	assert.Equal(t, "16:9", f.submitted.AspectRatio)
	assert.True(t, f.submitted.GenerateAudio)
	assert.Equal(t, "blurry", f.submitted.NegativePrompt)
}

func TestFalGenerateAcceptsWrappedOutput(t *testing.T) {
	f := &fakeFal{
		statuses: []string{QueueStatusCompleted},
		result:   `{"data":{"video":{"url":"https://cdn/wrapped.mp4"}}}`,
	}
	c := newTestFal(t, f)

	out, err := c.Generate(t.Context(), GenerationInput{ImageURL: "a", Prompt: "p"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/wrapped.mp4", out.VideoURL)
	assert.Equal(t, "5", f.submitted.Duration)
}

func TestFalGenerateMissingVideoIsErrNoVideo(t *testing.T) {
	f := &fakeFal{
		statuses: []string{QueueStatusCompleted},
		result:   `{"seed":42}`,
	}
	c := newTestFal(t, f)

	_, err := c.Generate(t.Context(), GenerationInput{ImageURL: "a", Prompt: "p"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoVideo))
}

func TestFalGenerateSubmitFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewFalClient(FalConfig{APIKey: "x", QueueURL: srv.URL})
	_, err := c.Generate(t.Context(), GenerationInput{ImageURL: "a", Prompt: "p"}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.False(t, errors.Is(err, ErrNoVideo))
}

func TestFalStageImage(t *testing.T) {
	f := &fakeFal{}
	c := newTestFal(t, f)

	url, err := c.StageImage(t.Context(), []byte("jpeg-bytes"), "source.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://v3.fal.media/files/source.jpg", url)
	assert.Equal(t, []byte("jpeg-bytes"), f.uploaded)
	assert.Equal(t, "image/jpeg", f.uploadCT)
}

func TestFalStageImageUploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/storage/upload/initiate" {
			_ = json.NewEncoder(w).Encode(falInitiateUploadResponse{
				UploadURL: "http://" + r.Host + "/upload/x",
				FileURL:   "https://files/x",
			})
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewFalClient(FalConfig{StorageURL: srv.URL})
	_, err := c.StageImage(t.Context(), []byte("x"), "x.jpg", "image/jpeg")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestVeoStageImageRoundTripJPEG(t *testing.T) {
	v := NewVeoService("key", "", nil)

	ref, err := v.StageImage(t.Context(), []byte{0xff, 0xd8, 0xff}, "source.jpg", "image/jpeg")
	require.NoError(t, err)

	img, err := decodeDataURL(ref)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIMEType)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, img.ImageBytes)

	_, err = decodeDataURL("https://example.com/a.jpg")
	assert.Error(t, err)

	_, err = v.StageImage(t.Context(), nil, "empty.jpg", "image/jpeg")
	assert.Error(t, err)
}

func TestGenerationOutputEmpty(t *testing.T) {
	var nilOut *GenerationOutput
	assert.True(t, nilOut.Empty())
	assert.True(t, (&GenerationOutput{}).Empty())
	assert.False(t, (&GenerationOutput{VideoURL: "u"}).Empty())
	assert.False(t, (&GenerationOutput{VideoData: []byte{1}}).Empty())
}
