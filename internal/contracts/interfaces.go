package contracts

import (
	"context"
	"time"
)

// TickSource returns the ticks of one symbol within [from, to], ordered by time.
// A gap in the corpus is an empty slice, not an error.
// ⭐ SSOT: 틱 데이터 소스 인터페이스
type TickSource interface {
	Ticks(ctx context.Context, symbol string, from, to time.Time) ([]Tick, error)
}

// ParamsSource yields the exit configuration for live control
type ParamsSource interface {
	Params() (ExitParams, bool)
}
