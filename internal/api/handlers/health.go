package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/exitlab/internal/live"
	"github.com/wonny/exitlab/pkg/database"
)

// HealthHandler reports service health
type HealthHandler struct {
	db      *database.DB // optional
	monitor *live.Monitor
}

// NewHealthHandler creates a new health handler; db may be nil
func NewHealthHandler(db *database.DB, monitor *live.Monitor) *HealthHandler {
	return &HealthHandler{db: db, monitor: monitor}
}

// Health returns service health status
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{
		"status":        "ok",
		"service":       "exitlab",
		"params_loaded": h.monitor.Controller().Enabled(),
		"positions":     len(h.monitor.Positions()),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		dbStatus, err := h.db.HealthCheck(ctx)
		body["database"] = dbStatus
		if err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}

	respondJSON(w, status, body)
}
