package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_GridCounters(t *testing.T) {
	m := NewMetrics("test")

	m.ObserveCombo(3*time.Millisecond, 2, 1)
	m.ObserveCombo(5*time.Millisecond, 2, 0)
	m.ObserveExit("trail", "buy")
	m.ObserveRun("ok", 0.42, 3.1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CombosEvaluated))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.TradesSkipped.WithLabelValues("no_ticks")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TradesSkipped.WithLabelValues("unusable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExitReasons.WithLabelValues("trail", "buy")))
	assert.Equal(t, 0.42, testutil.ToFloat64(m.BestAverageR))
	assert.Equal(t, 3.1, testutil.ToFloat64(m.MonteCarloP95))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics("")
	b := NewMetrics("")

	a.SetOpenPositions(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(a.OpenPositions))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.OpenPositions))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCombo(time.Second, 1, 1)
		m.ObserveExit("sl", "sell")
		m.ObservePrice("EURUSD")
		m.ObserveAdjustment("stop")
		m.SetParamsLoaded(true)
		m.IncFeedReconnect()
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("exitlab")
	m.SetParamsLoaded(true)
	m.ObserveAdjustment("stop")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "exitlab_live_params_loaded 1")
	assert.Contains(t, string(body), `exitlab_live_adjustments_total{kind="stop"} 1`)
}
