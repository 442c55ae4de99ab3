package commands

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/exitlab/internal/contracts"
)

func TestFormatR(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1.5, "1.5000"},
		{-0.25, "-0.2500"},
		{math.NaN(), "n/a"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatR(tt.in))
	}
}

func TestFormatOpt(t *testing.T) {
	assert.Equal(t, "-", formatOpt(nil))
	assert.Equal(t, "1.5", formatOpt(contracts.F(1.5)))
}

func TestReasonCounts(t *testing.T) {
	reasons := []contracts.ExitReason{
		contracts.ExitReasonStopLoss,
		contracts.ExitReasonTakeProfit,
		contracts.ExitReasonStopLoss,
	}
	assert.Equal(t, []string{"sl=2", "tp_direct=1"}, reasonCounts(reasons))
	assert.Empty(t, reasonCounts(nil))
}

func TestFeedSymbols(t *testing.T) {
	liveSymbols = nil
	assert.Equal(t, []string{"EURUSD", "USDJPY"}, feedSymbols(map[string]int{"USDJPY": 3, "EURUSD": 5}))

	liveSymbols = []string{" eurusd", "xauusd"}
	defer func() { liveSymbols = nil }()
	assert.Equal(t, []string{"EURUSD", "XAUUSD"}, feedSymbols(nil))
}
