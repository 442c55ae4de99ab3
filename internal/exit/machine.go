package exit

import (
	"math"

	"github.com/wonny/exitlab/internal/contracts"
)

// Trigger is the tagged state of a one-shot rule
type Trigger uint8

const (
	// TriggerOff means the rule is not configured
	TriggerOff Trigger = iota
	// TriggerArmed means the rule may still fire
	TriggerArmed
	// TriggerFired means the rule fired and is never evaluated again
	TriggerFired
)

func armed(threshold *float64) Trigger {
	if threshold == nil {
		return TriggerOff
	}
	return TriggerArmed
}

// State is the per-trade simulation state. It is a value: Step takes one and
// returns the next, so no two simulations ever share it.
type State struct {
	Remaining float64 // open position fraction, starts at 1
	Closed    float64 // fraction realized so far
	Realized  float64 // accumulated R
	Stop      float64 // working stop, only tightens
	Trail     Trail
	Breakeven Trigger
	ScaleOut  Trigger
	Events    int
	LastPrice float64 // last valid price, NaN before the first one
	Done      bool
	Reason    contracts.ExitReason
}

// Result converts a terminal state to a SimResult
func (s State) Result() contracts.SimResult {
	return contracts.SimResult{RTotal: s.Realized, Reason: s.Reason, Events: s.Events}
}

// Machine holds the immutable inputs of one (trade, configuration) pair.
// ⭐ SSOT: 청산 상태머신은 여기서만 (백테스트/라이브 공용)
type Machine struct {
	pos    Position
	stop   float64
	params contracts.ExitParams

	// price levels precomputed from the R thresholds
	tp, scaleOut, beTrigger, trailStart float64
}

// NewMachine binds a position, its initial stop and a configuration
func NewMachine(pos Position, stop float64, params contracts.ExitParams) Machine {
	m := Machine{pos: pos, stop: stop, params: params}
	level := func(r *float64) float64 {
		if r == nil {
			return math.NaN()
		}
		return pos.PriceAt(*r)
	}
	m.tp = level(params.TPR)
	m.scaleOut = level(params.ScaleOutR)
	m.beTrigger = level(params.BETriggerR)
	m.trailStart = level(params.TrailingStartR)
	return m
}

// Position returns the bound position
func (m Machine) Position() Position { return m.pos }

// Start returns the initial state
func (m Machine) Start() State {
	return State{
		Remaining: 1,
		Stop:      m.stop,
		Breakeven: armed(m.params.BETriggerR),
		ScaleOut:  armed(m.params.ScaleOutR),
		LastPrice: math.NaN(),
	}
}

// Step applies one price. Checks run in a fixed order, which decides ties
// when several conditions hold on the same tick:
// trailing activation, trailing advance, breakeven, scale-out,
// take-profit, trailing-stop hit, stop-loss hit.
func (m Machine) Step(s State, price float64) State {
	if s.Done || !contracts.ValidPrice(price) {
		return s
	}
	s.LastPrice = price
	pos := m.pos
	p := m.params

	// 1-2. trailing activation / advance
	if s.Trail.Active {
		s.Trail = TrailAnchorRatchet.Follow(pos, p.TrailingGapR, s.Trail, price)
	} else if p.TrailingStartR != nil && pos.Reached(price, m.trailStart) {
		s.Trail = TrailAnchorRatchet.Follow(pos, p.TrailingGapR, s.Trail, price)
		s.Events++
	}

	// 3. breakeven
	if s.Breakeven == TriggerArmed && pos.Reached(price, m.beTrigger) {
		be := pos.BreakevenPrice(p.BEBackR)
		if pos.Tighter(be, s.Stop) {
			s.Stop = be
		}
		s.Breakeven = TriggerFired
		s.Events++
	}

	// 4. scale-out
	if s.ScaleOut == TriggerArmed && pos.Reached(price, m.scaleOut) {
		frac := math.Min(p.ScaleOutFrac, s.Remaining)
		if frac > 0 {
			s.Realized += frac * pos.R(price)
			s.Remaining -= frac
			s.Closed += frac
		}
		s.ScaleOut = TriggerFired
		s.Events++
	}

	// 5. take-profit
	if p.TPR != nil && pos.Reached(price, m.tp) {
		return m.close(s, m.tp, contracts.ExitReasonTakeProfit)
	}

	// 6. trailing stop
	if s.Trail.Active && pos.Crossed(price, s.Trail.Stop) {
		return m.close(s, s.Trail.Stop, contracts.ExitReasonTrail)
	}

	// 7. stop-loss (after breakeven tightening)
	if pos.Crossed(price, s.Stop) {
		return m.close(s, s.Stop, contracts.ExitReasonStopLoss)
	}

	return s
}

// Finish closes a still-open state at the last valid price (end_series).
// A state that never saw a valid price stays open.
func (m Machine) Finish(s State) State {
	if s.Done || math.IsNaN(s.LastPrice) {
		return s
	}
	s.Realized += s.Remaining * m.pos.R(s.LastPrice)
	s.Closed += s.Remaining
	s.Remaining = 0
	s.Done = true
	s.Reason = contracts.ExitReasonEndSeries
	return s
}

func (m Machine) close(s State, at float64, reason contracts.ExitReason) State {
	s.Realized += s.Remaining * m.pos.R(at)
	s.Closed += s.Remaining
	s.Remaining = 0
	s.Done = true
	s.Reason = reason
	s.Events++
	return s
}
