package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/h2non/filetype"

	"github.com/bobarin/tourgen/internal/storage"
)

const defaultFetchTimeout = 120 * time.Second

// FetchError is returned when remote bytes cannot be fetched.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// VendorStorageError is returned when the generation vendor rejects a staged upload.
type VendorStorageError struct {
	Filename string
	Err      error
}

func (e *VendorStorageError) Error() string {
	return fmt.Sprintf("stage %s for vendor: %v", e.Filename, e.Err)
}

func (e *VendorStorageError) Unwrap() error { return e.Err }

// StorageError is returned when durable storage rejects an upload.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Stager pushes bytes into a vendor's transient storage.
type Stager interface {
	StageImage(ctx context.Context, data []byte, filename, contentType string) (string, error)
}

// Adapter moves media bytes between remote URLs, the vendor and durable storage.
// It never retries; the job runner retries the whole job.
type Adapter struct {
	client *http.Client
	stager Stager
	store  storage.ObjectStore
	logger *slog.Logger
}

// NewAdapter builds an adapter. A nil client gets a client with a two minute timeout.
func NewAdapter(client *http.Client, stager Stager, store storage.ObjectStore, logger *slog.Logger) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		client: client,
		stager: stager,
		store:  store,
		logger: logger.With("component", "media"),
	}
}

// FetchBytes downloads url. Any non-2xx status, transport error or timeout is a *FetchError.
func (a *Adapter) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	a.logger.Debug("fetched", "url", url, "bytes", len(data))
	return data, nil
}

// StageForVendor uploads bytes to the vendor's transient storage and returns the
// reference the vendor reads them from.
func (a *Adapter) StageForVendor(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	if contentType == "" {
		contentType = ContentType(data)
	}
	url, err := a.stager.StageImage(ctx, data, filename, contentType)
	if err != nil {
		return "", &VendorStorageError{Filename: filename, Err: err}
	}
	return url, nil
}

// PersistAsset uploads bytes to durable storage and returns their public URL.
func (a *Adapter) PersistAsset(ctx context.Context, data []byte, path, contentType string) (string, error) {
	if err := a.store.Upload(ctx, path, data, contentType); err != nil {
		return "", &StorageError{Path: path, Err: err}
	}
	url := a.store.PublicURL(path)
	a.logger.Info("persisted asset", "path", path, "bytes", len(data))
	return url, nil
}

// ContentType sniffs the MIME type from magic bytes, defaulting to image/jpeg since
// every staged input is a still frame.
func ContentType(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "image/jpeg"
	}
	return kind.MIME.Value
}

// Filename names a staged file after its role, with an extension matching its content.
func Filename(role string, data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return role + ".jpg"
	}
	return role + "." + kind.Extension
}
