package exit

import (
	"github.com/wonny/exitlab/internal/contracts"
)

// Position converts between prices and R-multiples for one trade.
// ⭐ SSOT: R-multiple 계산은 여기서만
type Position struct {
	Entry     float64
	Risk      float64
	Direction contracts.Direction
}

// NewPosition derives risk from entry and stop. ok is false for a missing
// entry or stop, an unknown direction, or risk <= 0.
func NewPosition(entry, stop float64, direction contracts.Direction) (Position, bool) {
	t := contracts.Trade{Entry: entry, Stop: stop, Direction: direction}
	if !t.Usable() {
		return Position{}, false
	}
	return Position{Entry: entry, Risk: t.Risk(), Direction: direction}, true
}

// R is (p - entry)/risk for long and (entry - p)/risk for short
func (p Position) R(price float64) float64 {
	if p.Direction.IsLong() {
		return (price - p.Entry) / p.Risk
	}
	return (p.Entry - price) / p.Risk
}

// PriceAt is the price sitting r risk units on the favorable side of entry
func (p Position) PriceAt(r float64) float64 {
	if p.Direction.IsLong() {
		return p.Entry + r*p.Risk
	}
	return p.Entry - r*p.Risk
}

// Behind is the price gapR risk units on the adverse side of from
func (p Position) Behind(from, gapR float64) float64 {
	if p.Direction.IsLong() {
		return from - gapR*p.Risk
	}
	return from + gapR*p.Risk
}

// Reached reports whether price is at or beyond a favorable level
func (p Position) Reached(price, level float64) bool {
	if p.Direction.IsLong() {
		return price >= level
	}
	return price <= level
}

// Crossed reports whether price is at or beyond a protective level
func (p Position) Crossed(price, stop float64) bool {
	if p.Direction.IsLong() {
		return price <= stop
	}
	return price >= stop
}

// Better reports whether price is strictly more favorable than ref
func (p Position) Better(price, ref float64) bool {
	if p.Direction.IsLong() {
		return price > ref
	}
	return price < ref
}

// Tighter reports whether candidate strictly improves protection over current
func (p Position) Tighter(candidate, current float64) bool {
	return p.Better(candidate, current)
}

// BreakevenPrice is entry moved backR risk units to the adverse side
func (p Position) BreakevenPrice(backR float64) float64 {
	return p.Behind(p.Entry, backR)
}
