package contracts

import (
	"encoding/json"
	"math"
)

// Metrics summarises one R series. Every field is NaN when the series is empty;
// ProfitFactor is +Inf when there are wins and no losses.
type Metrics struct {
	AverageR     float64 `json:"average_R"`
	ProfitFactor float64 `json:"profit_factor"`
	WinRate      float64 `json:"win_rate"`
	MaxDrawdownR float64 `json:"max_drawdown_R"`
	Trades       int     `json:"n_trades"`
}

// UndefinedMetrics is the sentinel for an empty series
func UndefinedMetrics() Metrics {
	nan := math.NaN()
	return Metrics{AverageR: nan, ProfitFactor: nan, WinRate: nan, MaxDrawdownR: nan}
}

// Defined reports whether the metrics came from a non-empty series
func (m Metrics) Defined() bool {
	return m.Trades > 0
}

// MarshalJSON writes NaN as null and infinities as "inf"/"-inf"
func (m Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"average_R":      JSONFloat(m.AverageR),
		"profit_factor":  JSONFloat(m.ProfitFactor),
		"win_rate":       JSONFloat(m.WinRate),
		"max_drawdown_R": JSONFloat(m.MaxDrawdownR),
		"n_trades":       m.Trades,
	})
}

// MaxDDPercentiles is the Monte Carlo max drawdown distribution summary
type MaxDDPercentiles struct {
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
	Runs int     `json:"runs"`
}

// MarshalJSON writes NaN as null
func (p MaxDDPercentiles) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"p50":  JSONFloat(p.P50),
		"p95":  JSONFloat(p.P95),
		"p99":  JSONFloat(p.P99),
		"runs": p.Runs,
	})
}

// JSONFloat maps values encoding/json cannot represent
func JSONFloat(v float64) interface{} {
	switch {
	case math.IsNaN(v):
		return nil
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	default:
		return v
	}
}

// GridResult is one evaluated configuration of a grid sweep
type GridResult struct {
	Index         int          `json:"index"`
	Params        ExitParams   `json:"params"`
	Trades        int          `json:"n_trades"`
	Skipped       int          `json:"skipped_no_ticks"`
	Unusable      int          `json:"unusable"`
	Metrics       Metrics      `json:"metrics"`
	ReasonsSample []ExitReason `json:"reasons_sample"`
}
