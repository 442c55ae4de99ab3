// Package observability provides Prometheus metrics for grid runs and live control.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of one process. Each instance owns its
// registry, so tests can build as many as they like. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Grid metrics
	CombosEvaluated prometheus.Counter
	ComboDuration   prometheus.Histogram
	TradesSkipped   *prometheus.CounterVec
	ExitReasons     *prometheus.CounterVec
	BestAverageR    prometheus.Gauge
	GridRunsTotal   *prometheus.CounterVec
	MonteCarloP95   prometheus.Gauge

	// Live metrics
	PriceUpdates   *prometheus.CounterVec
	Adjustments    *prometheus.CounterVec
	OpenPositions  prometheus.Gauge
	ParamsLoaded   prometheus.Gauge
	FeedReconnects prometheus.Counter
}

// NewMetrics creates a Metrics instance with every collector registered
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "exitlab"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CombosEvaluated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "combos_evaluated_total",
			Help:      "Total number of exit configurations evaluated",
		}),
		ComboDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "combo_duration_seconds",
			Help:      "Time to replay the whole corpus under one configuration",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		TradesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "trades_skipped_total",
			Help:      "Trades skipped per configuration, by cause",
		}, []string{"cause"}),
		ExitReasons: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "exit_reasons_total",
			Help:      "Replayed exits split by reason and side",
		}, []string{"reason", "side"}),
		BestAverageR: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "best_average_r",
			Help:      "Average R of the best configuration of the last run",
		}),
		GridRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "runs_total",
			Help:      "Grid runs by outcome",
		}, []string{"status"}),
		MonteCarloP95: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "grid",
			Name:      "montecarlo_maxdd_p95_r",
			Help:      "95th percentile Monte Carlo max drawdown of the best configuration",
		}),

		PriceUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "price_updates_total",
			Help:      "Price updates processed by the live monitor",
		}, []string{"symbol"}),
		Adjustments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "adjustments_total",
			Help:      "Proposed protective adjustments by kind",
		}, []string{"kind"}),
		OpenPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "open_positions",
			Help:      "Positions tracked by the live monitor",
		}),
		ParamsLoaded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "params_loaded",
			Help:      "1 when the controller holds a parameter set, 0 when it is a no-op",
		}),
		FeedReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Websocket feed reconnect attempts",
		}),
	}
}

// Handler serves the registry in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry (tests)
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveCombo records one evaluated configuration
func (m *Metrics) ObserveCombo(d time.Duration, skippedNoTicks, unusable int) {
	if m == nil {
		return
	}
	m.CombosEvaluated.Inc()
	m.ComboDuration.Observe(d.Seconds())
	m.TradesSkipped.WithLabelValues("no_ticks").Add(float64(skippedNoTicks))
	m.TradesSkipped.WithLabelValues("unusable").Add(float64(unusable))
}

// ObserveExit records one replayed exit
func (m *Metrics) ObserveExit(reason, side string) {
	if m == nil {
		return
	}
	m.ExitReasons.WithLabelValues(reason, side).Inc()
}

// ObserveRun records the outcome of a grid run
func (m *Metrics) ObserveRun(status string, bestAvgR, mcP95 float64) {
	if m == nil {
		return
	}
	m.GridRunsTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		m.BestAverageR.Set(bestAvgR)
		m.MonteCarloP95.Set(mcP95)
	}
}

// ObservePrice records one live price update
func (m *Metrics) ObservePrice(symbol string) {
	if m == nil {
		return
	}
	m.PriceUpdates.WithLabelValues(symbol).Inc()
}

// ObserveAdjustment records one proposed adjustment (stop, target)
func (m *Metrics) ObserveAdjustment(kind string) {
	if m == nil {
		return
	}
	m.Adjustments.WithLabelValues(kind).Inc()
}

// SetOpenPositions sets the tracked position gauge
func (m *Metrics) SetOpenPositions(n int) {
	if m == nil {
		return
	}
	m.OpenPositions.Set(float64(n))
}

// SetParamsLoaded flips the params gauge
func (m *Metrics) SetParamsLoaded(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.ParamsLoaded.Set(1)
	} else {
		m.ParamsLoaded.Set(0)
	}
}

// IncFeedReconnect counts one reconnect attempt
func (m *Metrics) IncFeedReconnect() {
	if m == nil {
		return
	}
	m.FeedReconnects.Inc()
}
