package api

import (
	"log/slog"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds settings for the API router.
type RouterConfig struct {
	// BackendAPIKey must be sent as X-API-Key or Authorization: Bearer <key>.
	// Empty skips auth (development mode).
	BackendAPIKey string

	// CorsAllowedOrigins is a comma-separated list. Empty allows all origins.
	CorsAllowedOrigins string

	Logger *slog.Logger
}

func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	allowedOrigins := []string{"*"}
	if cfg.CorsAllowedOrigins != "" {
		origins := strings.Split(cfg.CorsAllowedOrigins, ",")
		trimmed := make([]string, 0, len(origins))
		for _, o := range origins {
			if s := strings.TrimSpace(o); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			allowedOrigins = trimmed
		}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", UserIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check is public
	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		if cfg.BackendAPIKey != "" {
			r.Use(APIKeyAuth(cfg.BackendAPIKey))
		}

		// Video projects
		r.Post("/video-projects/trigger", h.TriggerGeneration)
		r.Get("/video-projects/{id}", h.GetVideoProject)
		r.Post("/video-projects/{id}/auto-sequence", h.AutoSequence)

		// Job progress
		r.Get("/jobs/{id}/progress", h.GetJobProgress)
		r.Get("/jobs/{id}/ws", h.StreamJobProgress)

		// Pricing
		r.Get("/products", h.ListProducts)
	})

	return r
}
