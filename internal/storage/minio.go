package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig configures an S3-compatible store.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base clients reach the bucket through, e.g. a CDN.
	// Defaults to the endpoint.
	PublicURL string
}

// MinIO stores objects in an S3-compatible bucket.
type MinIO struct {
	client    *minio.Client
	bucket    string
	publicURL string

	mu          sync.Mutex
	bucketReady bool
}

func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	base := cfg.PublicURL
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.Endpoint
	}

	return &MinIO{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(base, "/"),
	}, nil
}

// ensureBucket creates the bucket on first successful use.
func (m *MinIO) ensureBucket(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bucketReady {
		return nil
	}

	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", m.bucket, err)
		}
	}
	m.bucketReady = true
	return nil
}

func (m *MinIO) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	if err := m.ensureBucket(ctx); err != nil {
		return err
	}

	_, err := m.client.PutObject(ctx, m.bucket, path, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to minio: %w", err)
	}
	return nil
}

func (m *MinIO) PublicURL(path string) string {
	return fmt.Sprintf("%s/%s/%s", m.publicURL, m.bucket, path)
}
