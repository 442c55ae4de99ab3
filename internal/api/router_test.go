package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/exitlab/internal/api/handlers"
	"github.com/wonny/exitlab/internal/contracts"
	"github.com/wonny/exitlab/internal/live"
	"github.com/wonny/exitlab/internal/observability"
	"github.com/wonny/exitlab/internal/realtime"
	"github.com/wonny/exitlab/internal/realtime/cache"
	"github.com/wonny/exitlab/pkg/logger"
)

type testAPI struct {
	handler http.Handler
	monitor *live.Monitor
	prices  *cache.PriceCache
}

func newTestAPI(t *testing.T, limit RateLimit) *testAPI {
	t.Helper()
	log := logger.Nop()

	params := contracts.DefaultExitParams()
	params.TPR = contracts.F(2.0)
	monitor := live.NewMonitor(live.New(params, live.Options{}), nil, nil, nil, nil, log)
	prices := cache.NewPriceCache(time.Minute, log)

	h := Handlers{
		Health: handlers.NewHealthHandler(nil, monitor),
		Live:   handlers.NewLiveHandler(monitor, prices, log),
		Runs:   handlers.NewRunsHandler(nil, nil, log),
	}
	return &testAPI{
		handler: NewRouter(h, observability.NewMetrics("exitlab_test"), limit, log),
		monitor: monitor,
		prices:  prices,
	}
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t, RateLimit{})

	rec := a.do(t, "GET", "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["params_loaded"])
	assert.NotContains(t, body, "database")
}

func TestGetParams(t *testing.T) {
	a := newTestAPI(t, RateLimit{})

	rec := a.do(t, "GET", "/api/params", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Enabled   bool                  `json:"enabled"`
		TrailMode string                `json:"trail_mode"`
		Params    *contracts.ExitParams `json:"params"`
	}
	decode(t, rec, &body)
	assert.True(t, body.Enabled)
	assert.Equal(t, "price_anchored", body.TrailMode)
	require.NotNil(t, body.Params)
	require.NotNil(t, body.Params.TPR)
	assert.Equal(t, 2.0, *body.Params.TPR)
	assert.Nil(t, body.Params.TrailingStartR)
}

func TestPositionLifecycle(t *testing.T) {
	a := newTestAPI(t, RateLimit{})

	rec := a.do(t, "POST", "/api/positions", `{"id":"p1","symbol":"eurusd","direction":"buy","entry":100,"initial_stop":95}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var pos live.OpenPosition
	decode(t, rec, &pos)
	assert.Equal(t, "EURUSD", pos.Symbol)
	require.NotNil(t, pos.Stop)
	assert.Equal(t, 95.0, *pos.Stop)

	rec = a.do(t, "GET", "/api/positions/p1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// first price places the take-profit
	rec = a.do(t, "POST", "/api/positions/p1/price", `{"price":101}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var upd struct {
		Adjustment *live.Adjustment  `json:"adjustment"`
		Position   live.OpenPosition `json:"position"`
	}
	decode(t, rec, &upd)
	require.NotNil(t, upd.Adjustment)
	assert.Equal(t, []live.AdjustmentKind{live.AdjustTakeProfit}, upd.Adjustment.Kinds)
	require.NotNil(t, upd.Position.TakeProfit)
	assert.Equal(t, 110.0, *upd.Position.TakeProfit)

	// same level again: nothing to do
	rec = a.do(t, "POST", "/api/positions/p1/price", `{"price":102}`)
	require.Equal(t, http.StatusOK, rec.Code)
	upd.Adjustment = nil
	decode(t, rec, &upd)
	assert.Nil(t, upd.Adjustment)

	rec = a.do(t, "GET", "/api/adjustments", "")
	var adjs []live.Adjustment
	decode(t, rec, &adjs)
	assert.Len(t, adjs, 1)

	rec = a.do(t, "GET", "/api/positions", "")
	var positions []live.OpenPosition
	decode(t, rec, &positions)
	assert.Len(t, positions, 1)

	assert.Equal(t, http.StatusNoContent, a.do(t, "DELETE", "/api/positions/p1", "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, "DELETE", "/api/positions/p1", "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, "GET", "/api/positions/p1", "").Code)
}

func TestCreatePositionGeneratesID(t *testing.T) {
	a := newTestAPI(t, RateLimit{})

	rec := a.do(t, "POST", "/api/positions", `{"symbol":"USDJPY","direction":"sell","entry":150,"initial_stop":150.5}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var pos live.OpenPosition
	decode(t, rec, &pos)
	assert.Len(t, pos.ID, 36)
}

func TestPositionErrors(t *testing.T) {
	a := newTestAPI(t, RateLimit{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad json", "POST", "/api/positions", `{`, http.StatusBadRequest},
		{"bad direction", "POST", "/api/positions", `{"id":"x","symbol":"EURUSD","direction":"hold","entry":1.1,"initial_stop":1.09}`, http.StatusBadRequest},
		{"zero risk", "POST", "/api/positions", `{"id":"x","symbol":"EURUSD","direction":"buy","entry":1.1,"initial_stop":1.1}`, http.StatusBadRequest},
		{"unknown price target", "POST", "/api/positions/nope/price", `{"price":1.1}`, http.StatusNotFound},
		{"wrong method", "PUT", "/api/positions", `{}`, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.do(t, tt.method, tt.path, tt.body).Code)
		})
	}
}

func TestPrices(t *testing.T) {
	a := newTestAPI(t, RateLimit{})

	assert.Equal(t, http.StatusNotFound, a.do(t, "GET", "/api/prices/EURUSD", "").Code)

	a.prices.Update(realtime.PriceTick{Symbol: "EURUSD", Bid: 1.1, Ask: 1.1002, Timestamp: time.Now(), Source: "WS"})

	rec := a.do(t, "GET", "/api/prices/eurusd", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tick realtime.PriceTick
	decode(t, rec, &tick)
	assert.Equal(t, 1.1, tick.Bid)

	rec = a.do(t, "GET", "/api/prices", "")
	var all []realtime.PriceTick
	decode(t, rec, &all)
	assert.Len(t, all, 1)
}

func TestRunsAndJobsWithoutBackends(t *testing.T) {
	a := newTestAPI(t, RateLimit{})

	assert.Equal(t, http.StatusServiceUnavailable, a.do(t, "GET", "/api/runs", "").Code)
	assert.Equal(t, http.StatusOK, a.do(t, "GET", "/api/jobs", "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, "POST", "/api/jobs/reoptimize/run", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestAPI(t, RateLimit{})

	rec := a.do(t, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "exitlab_test_")
}

func TestRateLimit(t *testing.T) {
	a := newTestAPI(t, RateLimit{Rate: 1, Burst: 1})

	assert.Equal(t, http.StatusOK, a.do(t, "GET", "/api/params", "").Code)
	rec := a.do(t, "GET", "/api/params", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// health is not throttled
	assert.Equal(t, http.StatusOK, a.do(t, "GET", "/health", "").Code)
}
