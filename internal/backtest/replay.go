package backtest

import (
	"github.com/wonny/exitlab/internal/contracts"
	"github.com/wonny/exitlab/internal/exit"
)

// Simulate replays one trade over its ordered ticks under one configuration.
// ok is false, deterministically, when the trade has no usable entry/stop/risk
// or the ticks carry no valid exit price at all. Simulate is pure.
func Simulate(trade contracts.Trade, ticks []contracts.Tick, params contracts.ExitParams) (contracts.SimResult, bool) {
	pos, ok := exit.NewPosition(trade.Entry, trade.Stop, trade.Direction)
	if !ok || len(ticks) == 0 {
		return contracts.SimResult{}, false
	}

	m := exit.NewMachine(pos, trade.Stop, params)
	s := m.Start()
	for _, tk := range ticks {
		s = m.Step(s, tk.ExitPrice(trade.Direction))
		if s.Done {
			break
		}
	}

	s = m.Finish(s)
	if !s.Done {
		return contracts.SimResult{}, false
	}
	return s.Result(), true
}
