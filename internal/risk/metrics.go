package risk

import (
	"math"

	"github.com/wonny/exitlab/internal/contracts"
)

// ComputeMetrics summarises an R series.
// ⭐ SSOT: 성과 지표 계산은 여기서만
//
// An empty series yields contracts.UndefinedMetrics. Profit factor is
// sum(R>0)/|sum(R<=0)|, +Inf with wins and no losses, NaN with neither.
func ComputeMetrics(rs []float64) contracts.Metrics {
	if len(rs) == 0 {
		return contracts.UndefinedMetrics()
	}

	var pos, neg float64
	wins := 0
	for _, r := range rs {
		if r > 0 {
			pos += r
			wins++
		} else {
			neg += r
		}
	}

	pf := math.NaN()
	switch {
	case neg < 0:
		pf = pos / math.Abs(neg)
	case pos > 0:
		pf = math.Inf(1)
	}

	return contracts.Metrics{
		AverageR:     Mean(rs),
		ProfitFactor: pf,
		WinRate:      float64(wins) / float64(len(rs)),
		MaxDrawdownR: MaxDrawdown(rs),
		Trades:       len(rs),
	}
}

// EquityCurve is the cumulative sum of rs
func EquityCurve(rs []float64) []float64 {
	curve := make([]float64, len(rs))
	sum := 0.0
	for i, r := range rs {
		sum += r
		curve[i] = sum
	}
	return curve
}

// MaxDrawdown is the largest (running peak - value) over the cumulative curve.
// The running peak starts at the first point of the curve.
func MaxDrawdown(rs []float64) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0
	sum := 0.0
	for _, r := range rs {
		sum += r
		if sum > peak {
			peak = sum
		}
		if dd := peak - sum; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
