package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageSupabase = "supabase"
	StorageMinIO    = "minio"
)

// Video vendors
const (
	VendorFal = "fal"
	VendorVeo = "veo"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // empty disables auth (dev mode)
	CorsAllowedOrigins string // comma-separated; empty allows all (dev mode)
	LogLevel           string

	// Database: postgres://… or sqlite:path
	DatabaseURL string

	// Redis backs the job queue and the progress channel
	RedisURL string

	// Durable storage
	StorageBackend        string
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string
	MinIOEndpoint         string
	MinIOAccessKey        string
	MinIOSecretKey        string
	MinIOBucket           string
	MinIOUseSSL           bool
	MinIOPublicURL        string

	// Video generation
	VideoVendor          string
	FalKey               string
	FalModel             string
	FalRequestsPerSecond float64
	GeminiKey            string
	VeoModel             string

	// Jobs
	MaxConcurrentJobs int
	JobMaxRetry       int
	JobTimeout        time.Duration
	RetryMinDelay     time.Duration
	RetryMaxDelay     time.Duration
	SweepInterval     time.Duration // zero disables the stuck-clip sweep
	SweepStaleAfter   time.Duration

	// Pricing
	PolarAccessToken    string
	PolarOrganizationID string
	PolarAPIURL         string
	ProductsCacheTTL    time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		StorageBackend:        strings.ToLower(getEnv("STORAGE_BACKEND", StorageSupabase)),
		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "videos"),
		MinIOEndpoint:         getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:        getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:           getEnv("MINIO_BUCKET", "videos"),
		MinIOUseSSL:           getEnvBool("MINIO_USE_SSL", false),
		MinIOPublicURL:        getEnv("MINIO_PUBLIC_URL", ""),
		VideoVendor:           strings.ToLower(getEnv("VIDEO_VENDOR", VendorFal)),
		FalKey:                getEnv("FAL_KEY", ""),
		FalModel:              getEnv("FAL_MODEL", "fal-ai/kling-video/v2.6/pro/image-to-video"),
		FalRequestsPerSecond:  getEnvFloat("FAL_REQUESTS_PER_SECOND", 2),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		VeoModel:              getEnv("VEO_MODEL", "veo-3.1-generate-preview"),
		MaxConcurrentJobs:     getEnvInt("MAX_CONCURRENT_JOBS", 5),
		JobMaxRetry:           getEnvInt("JOB_MAX_RETRY", 2),
		JobTimeout:            getEnvDuration("JOB_TIMEOUT", 5*time.Minute),
		RetryMinDelay:         getEnvDuration("RETRY_MIN_DELAY", 2*time.Second),
		RetryMaxDelay:         getEnvDuration("RETRY_MAX_DELAY", 30*time.Second),
		SweepInterval:         getEnvDuration("SWEEP_INTERVAL", 10*time.Minute),
		SweepStaleAfter:       getEnvDuration("SWEEP_STALE_AFTER", 20*time.Minute),
		PolarAccessToken:      getEnv("POLAR_ACCESS_TOKEN", ""),
		PolarOrganizationID:   getEnv("POLAR_ORGANIZATION_ID", ""),
		PolarAPIURL:           getEnv("POLAR_API_URL", "https://api.polar.sh"),
		ProductsCacheTTL:      getEnvDuration("PRODUCTS_CACHE_TTL", 5*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	switch c.StorageBackend {
	case StorageSupabase:
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
		}
	case StorageMinIO:
		if c.MinIOEndpoint == "" || c.MinIOAccessKey == "" || c.MinIOSecretKey == "" {
			return errors.New("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q (want %s or %s)", c.StorageBackend, StorageSupabase, StorageMinIO)
	}

	// Vendor credentials only matter where jobs run
	if c.WorkerEnabled {
		switch c.VideoVendor {
		case VendorFal:
			if c.FalKey == "" {
				return errors.New("FAL_KEY is required when VIDEO_VENDOR=fal")
			}
		case VendorVeo:
			if c.GeminiKey == "" {
				return errors.New("GEMINI_API_KEY is required when VIDEO_VENDOR=veo")
			}
		default:
			return fmt.Errorf("unknown VIDEO_VENDOR %q (want %s or %s)", c.VideoVendor, VendorFal, VendorVeo)
		}
	}

	if c.JobMaxRetry < 0 {
		return errors.New("JOB_MAX_RETRY must not be negative")
	}
	if c.RetryMinDelay > c.RetryMaxDelay {
		return errors.New("RETRY_MIN_DELAY must not exceed RETRY_MAX_DELAY")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
