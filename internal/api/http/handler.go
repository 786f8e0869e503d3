package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nkoval/videofetch/internal/cleanup"
	"github.com/nkoval/videofetch/internal/domain"
	apperrors "github.com/nkoval/videofetch/internal/errors"
	"github.com/nkoval/videofetch/internal/validation"
)

// DownloadService is the orchestrator surface the HTTP layer consumes.
type DownloadService interface {
	Create(ctx context.Context, url string, opts domain.Options) (string, error)
	Get(id string) (domain.Job, error)
	List(ctx context.Context) []domain.Job
	Cancel(id string) bool
	Resume(ctx context.Context, id string) (string, error)
}

// CleanupRunner is the manual out-of-band eviction trigger.
type CleanupRunner interface {
	RunCycle() (cleanup.Report, error)
}

// DownloadHandler handles HTTP requests for download jobs.
type DownloadHandler struct {
	service   DownloadService
	cleaner   CleanupRunner
	validator *validator.Validate
	logger    *slog.Logger
}

// NewDownloadHandler creates a handler with the safe_url rule registered.
func NewDownloadHandler(service DownloadService, cleaner CleanupRunner, logger *slog.Logger) *DownloadHandler {
	v := validator.New()
	if err := validation.Register(v); err != nil {
		logger.Error("failed to register url validation", "error", err)
	}
	return &DownloadHandler{
		service:   service,
		cleaner:   cleaner,
		validator: v,
		logger:    logger,
	}
}

// CreateDownload handles POST /downloads.
func (h *DownloadHandler) CreateDownload(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("validation failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.service.Create(r.Context(), req.URL, req.ToOptions())
	if err != nil {
		switch {
		case apperrors.KindOf(err) == apperrors.KindValidation:
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, apperrors.ErrShuttingDown):
			writeError(w, http.StatusServiceUnavailable, "service is shutting down")
		default:
			h.logger.Error("failed to create download", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

// GetDownload handles GET /downloads/{jobID}.
func (h *DownloadHandler) GetDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")

	job, err := h.service.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "download not found")
		return
	}

	writeJSON(w, http.StatusOK, domain.NewJobResponse(job))
}

// ListDownloads handles GET /downloads.
func (h *DownloadHandler) ListDownloads(w http.ResponseWriter, r *http.Request) {
	jobs := h.service.List(r.Context())

	responses := make([]domain.JobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, domain.NewJobResponse(job))
	}
	writeJSON(w, http.StatusOK, responses)
}

// CancelDownload handles DELETE /downloads/{jobID}.
func (h *DownloadHandler) CancelDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")

	if !h.service.Cancel(id) {
		writeError(w, http.StatusConflict, "download is not cancellable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// ResumeDownload handles POST /downloads/{jobID}/resume.
func (h *DownloadHandler) ResumeDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")

	resumedID, err := h.service.Resume(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNoHistoryItem):
			writeError(w, http.StatusNotFound, "no record for download")
		case errors.Is(err, apperrors.ErrNotResumable):
			writeError(w, http.StatusConflict, "download is not resumable")
		default:
			h.logger.Error("failed to resume download", "job_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": resumedID})
}

// TriggerCleanup handles POST /cleanup, the manual out-of-band eviction.
func (h *DownloadHandler) TriggerCleanup(w http.ResponseWriter, r *http.Request) {
	report, err := h.cleaner.RunCycle()
	if err != nil {
		h.logger.Error("manual cleanup failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": report.String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
