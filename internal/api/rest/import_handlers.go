package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/fortuna/pickvs/internal/backfill"
)

// ImportQueue is the import job service as seen by the handlers
type ImportQueue interface {
	Enqueue(ctx context.Context, req backfill.Request) (*backfill.Job, error)
	GetStatus(ctx context.Context) (*backfill.StatusSummary, error)
}

// ImportHandler proxies API calls to the import service.
type ImportHandler struct {
	service ImportQueue
}

// NewImportHandler wires the REST layer to the import service.
func NewImportHandler(service ImportQueue) *ImportHandler {
	return &ImportHandler{service: service}
}

type apiImportRequest struct {
	FilePath string `json:"file_path" validate:"required"`
	DryRun   bool   `json:"dry_run"`
}

// HandleImportRequest handles POST /api/v1/imports
func (h *ImportHandler) HandleImportRequest(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		respondError(w, http.StatusServiceUnavailable, "Import service not running", nil)
		return
	}

	var req apiImportRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondInvalid(w, err)
		return
	}

	job, err := h.service.Enqueue(r.Context(), backfill.Request{
		FilePath: req.FilePath,
		DryRun:   req.DryRun,
	})
	if errors.Is(err, backfill.ErrEmptyFilePath) || errors.Is(err, backfill.ErrPathNotAllowed) {
		respondError(w, http.StatusBadRequest, "Failed to enqueue import job", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to enqueue import job", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job": jobPayload(job),
	})
}

// HandleImportStatus handles GET /api/v1/imports/status
func (h *ImportHandler) HandleImportStatus(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		respondError(w, http.StatusServiceUnavailable, "Import service not running", nil)
		return
	}

	summary, err := h.service.GetStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}

	respondJSON(w, http.StatusOK, buildStatusPayload(summary))
}

func buildStatusPayload(summary *backfill.StatusSummary) map[string]interface{} {
	response := map[string]interface{}{
		"status":  "idle",
		"message": "No active jobs",
	}

	if summary.ActiveJob != nil {
		response["status"] = summary.ActiveJob.Status
		if summary.ActiveJob.StatusMessage.Valid {
			response["message"] = summary.ActiveJob.StatusMessage.String
		}
		response["active_job"] = jobPayload(summary.ActiveJob)
	}

	history := make([]map[string]interface{}, 0, len(summary.History))
	for _, job := range summary.History {
		history = append(history, jobPayload(job))
	}

	response["history"] = history
	return response
}

func jobPayload(job *backfill.Job) map[string]interface{} {
	if job == nil {
		return nil
	}

	payload := map[string]interface{}{
		"job_id":           job.JobID,
		"file_path":        job.FilePath,
		"dry_run":          job.DryRun,
		"status":           job.Status,
		"progress_current": job.ProgressCurrent,
		"progress_total":   job.ProgressTotal,
		"games_loaded":     job.GamesLoaded,
		"odds_loaded":      job.OddsLoaded,
		"odds_skipped":     job.OddsSkipped,
		"created_at":       job.CreatedAt,
		"updated_at":       job.UpdatedAt,
	}

	if job.StatusMessage.Valid {
		payload["status_message"] = job.StatusMessage.String
	}
	if job.StartedAt.Valid {
		payload["started_at"] = job.StartedAt.Time
	}
	if job.CompletedAt.Valid {
		payload["completed_at"] = job.CompletedAt.Time
	}
	if job.LastError.Valid {
		payload["last_error"] = job.LastError.String
	}

	return payload
}
