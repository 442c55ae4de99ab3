package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/exitlab/internal/contracts"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func quotes(bids ...float64) []contracts.Tick {
	ticks := make([]contracts.Tick, len(bids))
	for i, b := range bids {
		ticks[i] = contracts.Tick{Time: t0.Add(time.Duration(i) * time.Second), Bid: b, Ask: b + 0.0002}
	}
	return ticks
}

func fxTrade() contracts.Trade {
	return contracts.Trade{
		ID: "1", Symbol: "EURUSD", Direction: contracts.DirectionBuy,
		Entry: 1.1000, Stop: 1.0950, OpenTime: t0, WindowEnd: t0.Add(72 * time.Hour),
	}
}

func TestSimulate_TakeProfit(t *testing.T) {
	var bids []float64
	for i := 0; i <= 21; i++ {
		bids = append(bids, 1.1000+float64(i)*0.0005)
	}

	res, ok := Simulate(fxTrade(), quotes(bids...), contracts.ExitParams{TPR: contracts.F(2.0), TrailingGapR: 0.7})
	require.True(t, ok)
	assert.Equal(t, contracts.ExitReasonTakeProfit, res.Reason)
	assert.InDelta(t, 2.0, res.RTotal, 1e-9)
}

func TestSimulate_StopLoss(t *testing.T) {
	var bids []float64
	for i := 0; i < 10; i++ {
		bids = append(bids, 1.1000-float64(i)*0.0005)
	}
	bids = append(bids, 1.0950)

	res, ok := Simulate(fxTrade(), quotes(bids...), contracts.ExitParams{TPR: contracts.F(2.0), TrailingGapR: 0.7})
	require.True(t, ok)
	assert.Equal(t, contracts.ExitReasonStopLoss, res.Reason)
	assert.InDelta(t, -1.0, res.RTotal, 1e-12)
}

func TestSimulate_Trail(t *testing.T) {
	trade := contracts.Trade{Direction: contracts.DirectionBuy, Entry: 100, Stop: 99}
	params := contracts.ExitParams{TrailingStartR: contracts.F(1.0), TrailingGapR: 0.5}

	res, ok := Simulate(trade, quotes(100.5, 101, 102, 103, 102.7, 102.3), params)
	require.True(t, ok)
	assert.Equal(t, contracts.ExitReasonTrail, res.Reason)
	assert.InDelta(t, 2.5, res.RTotal, 1e-9)
}

func TestSimulate_ShortExitsOnAsk(t *testing.T) {
	trade := contracts.Trade{Direction: contracts.DirectionSell, Entry: 100, Stop: 101}
	ticks := []contracts.Tick{
		// bid touches the stop but the ask a short would pay does not
		{Time: t0, Bid: 100.5, Ask: 100.9},
		{Time: t0.Add(time.Second), Bid: 100.9, Ask: 101.0},
	}

	res, ok := Simulate(trade, ticks, contracts.ExitParams{TPR: contracts.F(2.0), TrailingGapR: 0.7})
	require.True(t, ok)
	assert.Equal(t, contracts.ExitReasonStopLoss, res.Reason)
	assert.Equal(t, -1.0, res.RTotal)
}

func TestSimulate_NoResult(t *testing.T) {
	params := contracts.ExitParams{TPR: contracts.F(2.0), TrailingGapR: 0.7}
	good := quotes(1.1, 1.101)

	tests := []struct {
		name  string
		trade contracts.Trade
		ticks []contracts.Tick
	}{
		{"zero risk", contracts.Trade{Direction: contracts.DirectionBuy, Entry: 1.1, Stop: 1.1}, good},
		{"missing stop", contracts.Trade{Direction: contracts.DirectionBuy, Entry: 1.1, Stop: math.NaN()}, good},
		{"missing entry", contracts.Trade{Direction: contracts.DirectionSell, Entry: math.NaN(), Stop: 1.1}, good},
		{"no ticks", fxTrade(), nil},
		{"no valid price", fxTrade(), []contracts.Tick{{Time: t0, Bid: math.NaN()}, {Time: t0, Bid: 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				_, ok := Simulate(tt.trade, tt.ticks, params)
				assert.False(t, ok)
			}
		})
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	params := contracts.ExitParams{
		ScaleOutR: contracts.F(1), ScaleOutFrac: 0.5,
		BETriggerR: contracts.F(0.5), BEBackR: 0.1,
		TrailingStartR: contracts.F(1.5), TrailingGapR: 0.4,
	}
	ticks := quotes(1.1010, 1.1030, 1.1055, 1.1080, 1.1090, 1.1060, 1.1040)

	first, ok := Simulate(fxTrade(), ticks, params)
	require.True(t, ok)
	for i := 0; i < 5; i++ {
		again, _ := Simulate(fxTrade(), ticks, params)
		assert.Equal(t, first, again)
	}
}
