package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/fortuna/augur/internal/scheduler"
	"github.com/fortuna/augur/internal/sport"
	"github.com/fortuna/augur/internal/store"
)

// EventAPI serves event and prediction reads.
type EventAPI interface {
	GetEvent(ctx context.Context, id string) (*store.Prediction, error)
	GetEventsByDate(ctx context.Context, sp sport.Sport, date time.Time) ([]*store.Event, error)
	GetUpcomingPredictions(ctx context.Context, sp sport.Sport) ([]store.Prediction, error)
	GetTeamForm(ctx context.Context, sp sport.Sport, entity string, n int) (*store.Form, error)
}

// Pipeline triggers and reports scheduled runs.
type Pipeline interface {
	TriggerNow(s sport.Sport) error
	Status() []scheduler.SportStatus
}

// HealthChecker is a dependency probed by /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	events   EventAPI
	pipeline Pipeline
	checks   map[string]HealthChecker
	version  string
	logger   *zap.Logger
}

// NewHandler creates a new handler. pipeline may be nil when the scheduler
// is disabled.
func NewHandler(events EventAPI, pipeline Pipeline, checks map[string]HealthChecker, version string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{events: events, pipeline: pipeline, checks: checks, version: version, logger: logger}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	deps := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].HealthCheck(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":       state,
		"service":      "augur",
		"version":      h.version,
		"dependencies": deps,
	})
}

// GetEventsByDate returns a sport's events on a date (default today)
func (h *Handler) GetEventsByDate(w http.ResponseWriter, r *http.Request) {
	sp, ok := sportParam(w, r.URL.Query().Get("sport"))
	if !ok {
		return
	}

	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		dateStr = time.Now().UTC().Format("2006-01-02")
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	events, err := h.events.GetEventsByDate(r.Context(), sp, date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch events", err)
		return
	}
	if events == nil {
		events = []*store.Event{}
	}

	respondJSON(w, http.StatusOK, events)
}

// GetEvent returns one event with its model prices
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["eventID"]

	prediction, err := h.events.GetEvent(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Event not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch event", err)
		return
	}

	respondJSON(w, http.StatusOK, prediction)
}

// GetPredictions returns the upcoming predictions of a sport
func (h *Handler) GetPredictions(w http.ResponseWriter, r *http.Request) {
	sp, ok := sportParam(w, r.URL.Query().Get("sport"))
	if !ok {
		return
	}

	predictions, err := h.events.GetUpcomingPredictions(r.Context(), sp)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch predictions", err)
		return
	}
	if predictions == nil {
		predictions = []store.Prediction{}
	}

	respondJSON(w, http.StatusOK, predictions)
}

// GetForm returns an entity's recent results
func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sp, ok := sportParam(w, vars["sport"])
	if !ok {
		return
	}

	n := 10
	if nStr := r.URL.Query().Get("n"); nStr != "" {
		v, err := strconv.Atoi(nStr)
		if err != nil || v <= 0 || v > 100 {
			respondError(w, http.StatusBadRequest, "Invalid n (1-100)", err)
			return
		}
		n = v
	}

	form, err := h.events.GetTeamForm(r.Context(), sp, vars["entity"], n)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "No games found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch form", err)
		return
	}

	respondJSON(w, http.StatusOK, form)
}

// RunPipeline starts a sport's pipeline in the background
func (h *Handler) RunPipeline(w http.ResponseWriter, r *http.Request) {
	sp, ok := sportParam(w, mux.Vars(r)["sport"])
	if !ok {
		return
	}
	if h.pipeline == nil {
		respondError(w, http.StatusServiceUnavailable, "Scheduler is disabled", nil)
		return
	}

	err := h.pipeline.TriggerNow(sp)
	switch {
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		respondError(w, http.StatusConflict, "Pipeline already running", err)
		return
	case errors.Is(err, scheduler.ErrNotStarted):
		respondError(w, http.StatusServiceUnavailable, "Scheduler not started", err)
		return
	case err != nil:
		respondError(w, http.StatusBadRequest, "Failed to start pipeline", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Pipeline started",
		"sport":   sp,
	})
}

// PipelineStatus reports the scheduler state of every sport
func (h *Handler) PipelineStatus(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		respondJSON(w, http.StatusOK, []scheduler.SportStatus{})
		return
	}
	respondJSON(w, http.StatusOK, h.pipeline.Status())
}

func sportParam(w http.ResponseWriter, value string) (sport.Sport, bool) {
	sp, err := sport.Parse(value)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid sport", err)
		return "", false
	}
	return sp, true
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
