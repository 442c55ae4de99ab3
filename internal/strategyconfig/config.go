package strategyconfig

import (
	"time"

	"github.com/wonny/exitlab/internal/backtest"
	"github.com/wonny/exitlab/internal/live"
	"github.com/wonny/exitlab/internal/risk"
)

// Config is the complete exit optimisation strategy: the grid to sweep, how
// trades are replayed, and how the winner is applied live
type Config struct {
	Meta       Meta                  `yaml:"meta" json:"meta"`
	Grid       Grid                  `yaml:"grid" json:"grid"`
	MonteCarlo risk.MonteCarloConfig `yaml:"monte_carlo" json:"monte_carlo"`
	Replay     Replay                `yaml:"replay" json:"replay"`
	Live       Live                  `yaml:"live" json:"live"`
	Schedule   Schedule              `yaml:"schedule" json:"schedule"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
	Timezone   string `yaml:"timezone" json:"timezone"`
}

// Grid 탐색 공간과 순위 설정
type Grid struct {
	Space         backtest.Space `yaml:"space" json:"space"`
	TopK          int            `yaml:"top_k" json:"top_k"`
	Workers       int            `yaml:"workers" json:"workers"` // 0 = one per CPU
	ReasonsSample int            `yaml:"reasons_sample" json:"reasons_sample"`
}

// Tick sources
const (
	TickSourceCSV      = "csv"
	TickSourcePostgres = "postgres"
)

// Replay 과거 거래 재생 설정
type Replay struct {
	FallbackHorizonHours int    `yaml:"fallback_horizon_hours" json:"fallback_horizon_hours"`
	TickSource           string `yaml:"tick_source" json:"tick_source"`
	TickDir              string `yaml:"tick_dir" json:"tick_dir"` // relative to the data root
}

// FallbackHorizon is the tick window of a trade without close time
func (r Replay) FallbackHorizon() time.Duration {
	return time.Duration(r.FallbackHorizonHours) * time.Hour
}

// Live 실시간 청산 관리 설정
type Live struct {
	TrailMode    string         `yaml:"trail_mode" json:"trail_mode"`
	SymbolDigits map[string]int `yaml:"symbol_digits" json:"symbol_digits"`
	Sessions     []live.Window  `yaml:"sessions" json:"sessions"`
}

// Schedule cron specs; empty disables a job
type Schedule struct {
	ReloadParams string `yaml:"reload_params" json:"reload_params"`
	Reoptimize   string `yaml:"reoptimize" json:"reoptimize"`
}

// Defaults returns the reference strategy
func Defaults() *Config {
	mc := risk.DefaultMonteCarloConfig()
	mc.Workers = 0

	return &Config{
		Meta: Meta{
			StrategyID: "fx_exit_grid",
			Version:    "1",
			Timezone:   "UTC",
		},
		Grid: Grid{
			Space:         backtest.DefaultSpace(),
			TopK:          20,
			ReasonsSample: 5,
		},
		MonteCarlo: mc,
		Replay: Replay{
			FallbackHorizonHours: 72,
			TickSource:           TickSourceCSV,
			TickDir:              "ticks",
		},
		Live: Live{
			TrailMode: "price_anchored",
			SymbolDigits: map[string]int{
				"EURUSD": 5,
				"GBPUSD": 5,
				"USDJPY": 3,
				"XAUUSD": 2,
			},
		},
		Schedule: Schedule{
			ReloadParams: "*/5 * * * *",
		},
	}
}

// DecisionSnapshot 실행 스냅샷 (재현성용)
type DecisionSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	StrategyID string    `json:"strategy_id"`
	CreatedAt  time.Time `json:"created_at"`
}
