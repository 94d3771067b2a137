package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "sqlite:tour.db")
	t.Setenv("SUPABASE_URL", "https://project.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")
	t.Setenv("FAL_KEY", "fal-key")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.APIPort)
	assert.Equal(t, StorageSupabase, cfg.StorageBackend)
	assert.Equal(t, VendorFal, cfg.VideoVendor)
	assert.Equal(t, 2, cfg.JobMaxRetry)
	assert.Equal(t, 5*time.Minute, cfg.JobTimeout)
	assert.Equal(t, 2*time.Second, cfg.RetryMinDelay)
	assert.Equal(t, 30*time.Second, cfg.RetryMaxDelay)
	assert.Equal(t, 5*time.Minute, cfg.ProductsCacheTTL)
	assert.True(t, cfg.WorkerEnabled)
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORAGE_BACKEND", "MinIO")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("MINIO_ACCESS_KEY", "minio")
	t.Setenv("MINIO_SECRET_KEY", "minio123")
	t.Setenv("VIDEO_VENDOR", "veo")
	t.Setenv("GEMINI_API_KEY", "gemini")
	t.Setenv("JOB_TIMEOUT", "90s")
	t.Setenv("SWEEP_INTERVAL", "0s")
	t.Setenv("FAL_REQUESTS_PER_SECOND", "0.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMinIO, cfg.StorageBackend)
	assert.Equal(t, VendorVeo, cfg.VideoVendor)
	assert.Equal(t, 90*time.Second, cfg.JobTimeout)
	assert.Zero(t, cfg.SweepInterval)
	assert.Equal(t, 0.5, cfg.FalRequestsPerSecond)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("JOB_TIMEOUT", "five minutes")
	t.Setenv("MAX_CONCURRENT_JOBS", "many")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.JobTimeout)
	assert.Equal(t, 5, cfg.MaxConcurrentJobs)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing database", map[string]string{"DATABASE_URL": ""}, "DATABASE_URL"},
		{"unknown storage", map[string]string{"STORAGE_BACKEND": "ftp"}, "STORAGE_BACKEND"},
		{"minio without credentials", map[string]string{"STORAGE_BACKEND": "minio"}, "MINIO_ENDPOINT"},
		{"fal without key", map[string]string{"FAL_KEY": ""}, "FAL_KEY"},
		{"veo without key", map[string]string{"VIDEO_VENDOR": "veo"}, "GEMINI_API_KEY"},
		{"unknown vendor", map[string]string{"VIDEO_VENDOR": "runway"}, "VIDEO_VENDOR"},
		{"inverted backoff", map[string]string{"RETRY_MIN_DELAY": "1m", "RETRY_MAX_DELAY": "10s"}, "RETRY_MIN_DELAY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestVendorKeyNotNeededWithoutWorker(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("FAL_KEY", "")
	t.Setenv("WORKER_ENABLED", "false")

	_, err := Load()
	require.NoError(t, err)
}
