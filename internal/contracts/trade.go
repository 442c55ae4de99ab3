package contracts

import (
	"math"
	"strings"
	"time"
)

// =============================================================================
// Trade / Tick
// ⭐ SSOT: 과거 거래와 틱 데이터 타입은 여기서만
// =============================================================================

// Direction is the side of an opened position
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// ParseDirection accepts buy/sell case-insensitively
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionBuy:
		return DirectionBuy, true
	case DirectionSell:
		return DirectionSell, true
	default:
		return "", false
	}
}

// IsLong reports whether the position profits from rising prices
func (d Direction) IsLong() bool {
	return d == DirectionBuy
}

// Valid reports whether d is buy or sell
func (d Direction) Valid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// Trade is one already-opened historical position taken from the report.
// Entry and Stop are NaN when the report cell was empty or unparseable.
type Trade struct {
	ID         string     `json:"id"`
	Symbol     string     `json:"symbol"`
	Direction  Direction  `json:"direction"`
	Volume     float64    `json:"volume"`
	Entry      float64    `json:"entry"`
	Stop       float64    `json:"stop"`
	TakeProfit *float64   `json:"take_profit,omitempty"`
	OpenTime   time.Time  `json:"open_time"`
	CloseTime  *time.Time `json:"close_time,omitempty"`
	ClosePrice *float64   `json:"close_price,omitempty"`
	WindowEnd  time.Time  `json:"window_end"`
}

// Risk is |entry - stop|; NaN when either side is missing
func (t Trade) Risk() float64 {
	return math.Abs(t.Entry - t.Stop)
}

// Usable reports whether the trade can be replayed at all
func (t Trade) Usable() bool {
	r := t.Risk()
	return t.Direction.Valid() && !math.IsNaN(r) && !math.IsInf(r, 0) && r > 0
}

// Tick is one quote from the tick corpus
type Tick struct {
	Time time.Time `json:"time"`
	Bid  float64   `json:"bid"`
	Ask  float64   `json:"ask"`
}

// ExitPrice is the side a position is closed on: bid for long, ask for short
func (t Tick) ExitPrice(d Direction) float64 {
	if d.IsLong() {
		return t.Bid
	}
	return t.Ask
}

// ValidPrice reports whether p can drive the exit state machine
func ValidPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}
