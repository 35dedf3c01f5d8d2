package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortuna/augur/internal/backfill"
	"github.com/fortuna/augur/internal/store"
)

// BackfillAPI queues and reports backfill jobs.
type BackfillAPI interface {
	Enqueue(ctx context.Context, req backfill.Request) (*backfill.Job, error)
	Cancel(ctx context.Context, jobID string) error
	GetStatus(ctx context.Context) (*backfill.StatusSummary, error)
}

// BackfillHandler proxies API calls to the backfill service.
type BackfillHandler struct {
	service BackfillAPI
}

// NewBackfillHandler wires the REST layer to the backfill service.
func NewBackfillHandler(service BackfillAPI) *BackfillHandler {
	return &BackfillHandler{service: service}
}

// backfillRequest accepts a single season or player as shorthand for a range
// or a list.
type backfillRequest struct {
	Sport       string   `json:"sport"`
	Season      int      `json:"season"`
	StartSeason int      `json:"start_season"`
	EndSeason   int      `json:"end_season"`
	Player      string   `json:"player"`
	Players     []string `json:"players"`
	DryRun      bool     `json:"dry_run"`
}

func (r backfillRequest) toRequest() backfill.Request {
	req := backfill.Request{
		Sport:       r.Sport,
		StartSeason: r.StartSeason,
		EndSeason:   r.EndSeason,
		Entities:    append([]string(nil), r.Players...),
		DryRun:      r.DryRun,
	}
	if r.Season > 0 {
		req.StartSeason, req.EndSeason = r.Season, r.Season
	}
	if r.Player != "" {
		req.Entities = append(req.Entities, r.Player)
	}
	return req
}

type jobView struct {
	JobID           string             `json:"job_id,omitempty"`
	JobType         backfill.JobType   `json:"job_type"`
	Sport           string             `json:"sport"`
	Status          backfill.JobStatus `json:"status"`
	StatusMessage   string             `json:"status_message,omitempty"`
	StartSeason     int64              `json:"start_season,omitempty"`
	EndSeason       int64              `json:"end_season,omitempty"`
	Entities        []string           `json:"entities,omitempty"`
	ProgressCurrent int                `json:"progress_current"`
	ProgressTotal   int                `json:"progress_total"`
	LastError       string             `json:"last_error,omitempty"`
	CreatedAt       *time.Time         `json:"created_at,omitempty"`
	StartedAt       *time.Time         `json:"started_at,omitempty"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
}

func newJobView(job *backfill.Job) *jobView {
	if job == nil {
		return nil
	}
	v := &jobView{
		JobID:           job.JobID,
		JobType:         job.JobType,
		Sport:           job.Sport,
		Status:          job.Status,
		StatusMessage:   job.StatusMessage.String,
		StartSeason:     job.StartSeason.Int64,
		EndSeason:       job.EndSeason.Int64,
		Entities:        job.Entities,
		ProgressCurrent: job.ProgressCurrent,
		ProgressTotal:   job.ProgressTotal,
		LastError:       job.LastError.String,
	}
	if !job.CreatedAt.IsZero() {
		v.CreatedAt = &job.CreatedAt
	}
	if job.StartedAt.Valid {
		v.StartedAt = &job.StartedAt.Time
	}
	if job.CompletedAt.Valid {
		v.CompletedAt = &job.CompletedAt.Time
	}
	return v
}

type statusView struct {
	Status    string     `json:"status"`
	Message   string     `json:"message"`
	ActiveJob *jobView   `json:"active_job,omitempty"`
	History   []*jobView `json:"history"`
}

func newStatusView(summary *backfill.StatusSummary) statusView {
	v := statusView{Status: "idle", Message: "No active jobs", History: []*jobView{}}
	if job := summary.ActiveJob; job != nil {
		v.Status = string(job.Status)
		if job.StatusMessage.Valid {
			v.Message = job.StatusMessage.String
		}
		v.ActiveJob = newJobView(job)
	}
	for _, job := range summary.History {
		v.History = append(v.History, newJobView(job))
	}
	return v
}

// HandleBackfillRequest handles POST /api/v1/backfill
func (h *BackfillHandler) HandleBackfillRequest(w http.ResponseWriter, r *http.Request) {
	var req backfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	job, err := h.service.Enqueue(r.Context(), req.toRequest())
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to enqueue backfill job", err)
		return
	}

	status := http.StatusAccepted
	if req.DryRun {
		status = http.StatusOK
	}
	respondJSON(w, status, map[string]interface{}{"job": newJobView(job)})
}

// HandleCancel handles DELETE /api/v1/backfill/{jobID}
func (h *BackfillHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	err := h.service.Cancel(r.Context(), mux.Vars(r)["jobID"])
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No queued job with that id", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to cancel job", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleBackfillStatus handles GET /api/v1/backfill/status
func (h *BackfillHandler) HandleBackfillStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}
	respondJSON(w, http.StatusOK, newStatusView(summary))
}
