package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/exitlab/internal/backtest"
	"github.com/wonny/exitlab/internal/scheduler"
	"github.com/wonny/exitlab/pkg/logger"
)

// RunsHandler exposes grid run history and scheduled jobs
type RunsHandler struct {
	store     *backtest.RunStore   // optional
	scheduler *scheduler.Scheduler // optional
	logger    *logger.Logger
}

// NewRunsHandler creates a new runs handler; store and scheduler may be nil
func NewRunsHandler(store *backtest.RunStore, sched *scheduler.Scheduler, log *logger.Logger) *RunsHandler {
	return &RunsHandler{
		store:     store,
		scheduler: sched,
		logger:    log,
	}
}

// ListRuns returns the most recent grid runs
// GET /api/runs?limit=20
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, "Run history requires the database")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be in [1, 500]")
			return
		}
		limit = n
	}

	runs, err := h.store.Latest(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get grid runs")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve grid runs")
		return
	}
	respondJSON(w, http.StatusOK, runs)
}

// ListJobs returns statistics for every scheduled job
// GET /api/jobs
func (h *RunsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		respondJSON(w, http.StatusOK, map[string]scheduler.JobStats{})
		return
	}
	respondJSON(w, http.StatusOK, h.scheduler.GetJobStats())
}

// TriggerJob runs a job now, outside its schedule
// POST /api/jobs/{name}/run
func (h *RunsHandler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if h.scheduler == nil {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err := h.scheduler.RunJob(name); err != nil {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}

	h.logger.WithField("job", name).Info("Job triggered via API")
	respondJSON(w, http.StatusAccepted, map[string]string{
		"job":    name,
		"status": "triggered",
	})
}
