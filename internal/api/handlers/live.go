package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wonny/exitlab/internal/live"
	"github.com/wonny/exitlab/internal/realtime/cache"
	"github.com/wonny/exitlab/pkg/logger"
)

// LiveHandler handles live exit management endpoints
// ⭐ SSOT: 실시간 청산 API 핸들러는 이 구조체에서만
type LiveHandler struct {
	monitor *live.Monitor
	prices  *cache.PriceCache
	logger  *logger.Logger
}

// NewLiveHandler creates a new live handler
func NewLiveHandler(monitor *live.Monitor, prices *cache.PriceCache, log *logger.Logger) *LiveHandler {
	return &LiveHandler{
		monitor: monitor,
		prices:  prices,
		logger:  log,
	}
}

// ============================================================
// Parameters
// ============================================================

// GetParams returns the exit parameters the controller applies
// GET /api/params
func (h *LiveHandler) GetParams(w http.ResponseWriter, r *http.Request) {
	ctrl := h.monitor.Controller()
	params, ok := ctrl.Params()

	body := map[string]interface{}{
		"enabled":    ok,
		"trail_mode": ctrl.TrailMode(),
		"params":     nil,
	}
	if ok {
		body["params"] = params
	}
	respondJSON(w, http.StatusOK, body)
}

// ============================================================
// Positions
// ============================================================

// ListPositions returns every tracked position
// GET /api/positions
func (h *LiveHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.monitor.Positions())
}

// GetPosition returns one tracked position
// GET /api/positions/{id}
func (h *LiveHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	pos, ok := h.monitor.Position(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Position not found")
		return
	}
	respondJSON(w, http.StatusOK, pos)
}

// CreatePosition starts managing a position; an empty id is generated
// POST /api/positions
func (h *LiveHandler) CreatePosition(w http.ResponseWriter, r *http.Request) {
	var pos live.OpenPosition
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if pos.ID == "" {
		pos.ID = uuid.NewString()
	}
	pos.Symbol = strings.ToUpper(strings.TrimSpace(pos.Symbol))

	if err := h.monitor.Track(r.Context(), pos); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	tracked, _ := h.monitor.Position(pos.ID)
	respondJSON(w, http.StatusCreated, tracked)
}

// DeletePosition stops managing a position
// DELETE /api/positions/{id}
func (h *LiveHandler) DeletePosition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.monitor.Untrack(r.Context(), id); err != nil {
		if errors.Is(err, live.ErrUnknownPosition) {
			respondError(w, http.StatusNotFound, "Position not found")
			return
		}
		h.logger.WithError(err).WithField("position_id", id).Error("Failed to drop position state")
		respondError(w, http.StatusInternalServerError, "Failed to drop position state")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PriceRequest feeds one exit-side price to a position
type PriceRequest struct {
	Price float64 `json:"price"`
}

// UpdatePrice runs the controller for one position at the given price
// POST /api/positions/{id}/price
func (h *LiveHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	adj, err := h.monitor.UpdatePrice(r.Context(), id, req.Price)
	if err != nil {
		if errors.Is(err, live.ErrUnknownPosition) {
			respondError(w, http.StatusNotFound, "Position not found")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	pos, _ := h.monitor.Position(id)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"adjustment": adj,
		"position":   pos,
	})
}

// ListAdjustments returns the latest applied adjustments, oldest first
// GET /api/adjustments
func (h *LiveHandler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.monitor.Recent())
}

// ============================================================
// Prices
// ============================================================

// ListPrices returns the latest cached quote per symbol
// GET /api/prices
func (h *LiveHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.prices.GetAll())
}

// GetPrice returns the latest cached quote of one symbol
// GET /api/prices/{symbol}
func (h *LiveHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])

	tick, ok := h.prices.Get(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "No quote for symbol")
		return
	}
	respondJSON(w, http.StatusOK, tick)
}
