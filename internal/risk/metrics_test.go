package risk

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeMetrics_ReferenceSeries(t *testing.T) {
	m := ComputeMetrics([]float64{2, -1, 1, -1, 3, -2})

	assert.InDelta(t, 1.0/3.0, m.AverageR, 1e-12)
	assert.Equal(t, 0.5, m.WinRate)
	assert.InDelta(t, 1.5, m.ProfitFactor, 1e-12)
	assert.Equal(t, 2.0, m.MaxDrawdownR)
	assert.Equal(t, 6, m.Trades)
	assert.True(t, m.Defined())
}

func TestComputeMetrics_Degenerate(t *testing.T) {
	t.Run("empty series", func(t *testing.T) {
		var m = ComputeMetrics(nil)
		assert.False(t, m.Defined())
		assert.True(t, math.IsNaN(m.AverageR))
		assert.True(t, math.IsNaN(m.ProfitFactor))
		assert.True(t, math.IsNaN(m.WinRate))
		assert.True(t, math.IsNaN(m.MaxDrawdownR))

		raw, err := json.Marshal(m)
		require.NoError(t, err)
		assert.JSONEq(t, `{"average_R":null,"profit_factor":null,"win_rate":null,"max_drawdown_R":null,"n_trades":0}`, string(raw))
	})

	t.Run("no losers", func(t *testing.T) {
		m := ComputeMetrics([]float64{1, 2})
		assert.True(t, math.IsInf(m.ProfitFactor, 1))
		assert.Equal(t, 1.0, m.WinRate)
		assert.Equal(t, 0.0, m.MaxDrawdownR)

		raw, err := json.Marshal(m)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"profit_factor":"inf"`)
	})

	t.Run("only flat trades", func(t *testing.T) {
		m := ComputeMetrics([]float64{0, 0})
		assert.True(t, math.IsNaN(m.ProfitFactor))
		assert.Equal(t, 0.0, m.WinRate)
	})

	t.Run("zero counts as a loss", func(t *testing.T) {
		m := ComputeMetrics([]float64{2, 0, -1})
		assert.InDelta(t, 2.0, m.ProfitFactor, 1e-12)
		assert.InDelta(t, 1.0/3.0, m.WinRate, 1e-12)
	})
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name string
		rs   []float64
		want float64
	}{
		{"empty", nil, 0},
		{"monotonic up", []float64{1, 1, 1}, 0},
		{"reference", []float64{2, -1, 1, -1, 3, -2}, 2},
		{"starts negative", []float64{-1, -1, 3, -4}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaxDrawdown(tt.rs))
		})
	}
}

func TestEquityCurve(t *testing.T) {
	assert.Equal(t, []float64{2, 1, 2, 1, 4, 2}, EquityCurve([]float64{2, -1, 1, -1, 3, -2}))
	assert.Empty(t, EquityCurve(nil))
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 3.0, Percentile(sorted, 50))
	assert.Equal(t, 1.0, Percentile(sorted, 0))
	assert.Equal(t, 5.0, Percentile(sorted, 100))
	assert.InDelta(t, 4.8, Percentile(sorted, 95), 1e-12)
	assert.True(t, math.IsNaN(Percentile(nil, 50)))
}
