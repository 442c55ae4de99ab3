package realtime

import (
	"time"

	"github.com/wonny/exitlab/internal/contracts"
)

// PriceTick is one live quote
// ⭐ SSOT: 실시간 호가 데이터 구조
type PriceTick struct {
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Timestamp time.Time `json:"time"`
	Source    string    `json:"source"`
	IsStale   bool      `json:"is_stale"`
}

// Valid reports whether both sides of the quote are usable prices
func (t PriceTick) Valid() bool {
	return t.Symbol != "" && contracts.ValidPrice(t.Bid) && contracts.ValidPrice(t.Ask)
}

// ExitPrice is bid for long positions and ask for short ones
func (t PriceTick) ExitPrice(d contracts.Direction) float64 {
	return contracts.Tick{Bid: t.Bid, Ask: t.Ask}.ExitPrice(d)
}

// PriceSource names where a quote came from
type PriceSource string

const (
	SourceWebSocket PriceSource = "WS"
	SourceAPI       PriceSource = "API"
)

// Priority ranks sources for quotes with equal timestamps (higher = better)
func (s PriceSource) Priority() int {
	switch s {
	case SourceWebSocket:
		return 2
	case SourceAPI:
		return 1
	default:
		return 0
	}
}
