package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bobarin/tourgen/internal/assembly"
	"github.com/bobarin/tourgen/internal/db"
	"github.com/bobarin/tourgen/internal/models"
	"github.com/bobarin/tourgen/internal/pricing"
	"github.com/bobarin/tourgen/internal/progress"
	"github.com/bobarin/tourgen/internal/video"
)

// UserIDHeader carries the caller identity set by the upstream session gateway.
const UserIDHeader = "X-User-ID"

// Store is the subset of the relational store the handlers read and write.
type Store interface {
	GetVideoProject(ctx context.Context, id uuid.UUID) (*models.VideoProject, error)
	IsWorkspaceMember(ctx context.Context, workspaceID uuid.UUID, userID string) (bool, error)
	ListProjectClips(ctx context.Context, projectID uuid.UUID) ([]models.VideoClip, error)
	UpdateClipSequence(ctx context.Context, clips []models.VideoClip) error
}

// Triggerer starts generation for a project.
type Triggerer interface {
	Trigger(ctx context.Context, caller assembly.Caller, projectID uuid.UUID) (*assembly.Result, error)
}

// Products serves the cached product list.
type Products interface {
	Get(ctx context.Context) ([]pricing.Product, error)
	Invalidate()
}

type Handler struct {
	store    Store
	trigger  Triggerer
	progress progress.Reader
	products Products
	logger   *slog.Logger
}

// NewHandler wires the handlers. products may be nil when billing is not configured.
func NewHandler(store Store, trigger Triggerer, reader progress.Reader, products Products, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:    store,
		trigger:  trigger,
		progress: reader,
		products: products,
		logger:   logger.With("component", "api"),
	}
}

// TriggerGeneration handles POST /v1/video-projects/trigger
func (h *Handler) TriggerGeneration(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req models.TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.VideoProjectID) == "" {
		respondError(w, http.StatusBadRequest, "videoProjectId is required")
		return
	}
	projectID, err := uuid.Parse(req.VideoProjectID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid videoProjectId")
		return
	}

	result, err := h.trigger.Trigger(r.Context(), assembly.Caller{UserID: userID}, projectID)
	switch {
	case err == nil:
	case errors.Is(err, assembly.ErrForbidden):
		respondError(w, http.StatusForbidden, "You do not have access to this project")
		return
	case errors.Is(err, assembly.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	case errors.Is(err, assembly.ErrNotFound):
		respondError(w, http.StatusNotFound, "Video project not found")
		return
	case errors.Is(err, assembly.ErrPaymentRequired):
		respondError(w, http.StatusPaymentRequired, "Payment required before generating this video")
		return
	case errors.Is(err, assembly.ErrNotReady):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	default:
		h.logger.Error("trigger failed", "project_id", projectID, "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, models.TriggerResponse{
		VideoProjectID: result.VideoProjectID,
		JobIDs:         result.JobIDs(),
		ClipJobs:       len(result.ClipJobIDs),
		TransitionJobs: len(result.TransitionIDs),
	})
}

// GetVideoProject handles GET /v1/video-projects/{id}
func (h *Handler) GetVideoProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	project, ok := h.authorizeProject(w, r, projectID)
	if !ok {
		return
	}

	clips, err := h.store.ListProjectClips(r.Context(), projectID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get clips")
		return
	}
	if clips == nil {
		clips = []models.VideoClip{}
	}

	respondJSON(w, http.StatusOK, models.VideoProjectResponse{VideoProject: *project, Clips: clips})
}

// AutoSequence handles POST /v1/video-projects/{id}/auto-sequence
// Reorders a draft project's clips into walk-through order.
func (h *Handler) AutoSequence(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}

	project, ok := h.authorizeProject(w, r, projectID)
	if !ok {
		return
	}
	if project.Status != models.ProjectStatusDraft {
		respondError(w, http.StatusConflict, "Only draft projects can be re-sequenced")
		return
	}

	clips, err := h.store.ListProjectClips(r.Context(), projectID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get clips")
		return
	}

	ordered := video.Reindex(video.AutoSequence(clips))
	if err := h.store.UpdateClipSequence(r.Context(), ordered); err != nil {
		h.logger.Error("failed to persist sequence", "project_id", projectID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to save sequence")
		return
	}

	respondJSON(w, http.StatusOK, models.VideoProjectResponse{VideoProject: *project, Clips: ordered})
}

// authorizeProject loads a project on behalf of the caller named in X-User-ID and
// writes the error response when the caller may not see it.
func (h *Handler) authorizeProject(w http.ResponseWriter, r *http.Request, projectID uuid.UUID) (*models.VideoProject, bool) {
	userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}

	project, err := h.store.GetVideoProject(r.Context(), projectID)
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Video project not found")
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get project")
		return nil, false
	}

	member, err := h.store.IsWorkspaceMember(r.Context(), project.WorkspaceID, userID)
	if err != nil {
		h.logger.Error("membership check failed", "project_id", projectID, "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to check access")
		return nil, false
	}
	if !member {
		respondError(w, http.StatusForbidden, "You do not have access to this project")
		return nil, false
	}
	return project, true
}

// GetJobProgress handles GET /v1/jobs/{id}/progress
func (h *Handler) GetJobProgress(w http.ResponseWriter, r *http.Request) {
	status, err := h.progress.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, progress.ErrUnknownJob) {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get progress")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// ListProducts handles GET /v1/products
// Query params:
//   - refresh: "true" drops the cached list first
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	if h.products == nil {
		respondError(w, http.StatusServiceUnavailable, "Billing is not configured")
		return
	}
	if r.URL.Query().Get("refresh") == "true" {
		h.products.Invalidate()
	}

	products, err := h.products.Get(r.Context())
	if err != nil {
		h.logger.Error("failed to fetch products", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch products")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"products": products})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
