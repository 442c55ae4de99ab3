package strategyconfig

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/exitlab/internal/backtest"
	"github.com/wonny/exitlab/internal/exit"
	"github.com/wonny/exitlab/internal/live"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}
	if _, err := time.LoadLocation(cfg.Meta.Timezone); err != nil {
		return ValidationError{"meta.timezone", err.Error()}
	}

	// === Grid ===
	if cfg.Grid.TopK < 1 {
		return ValidationError{"grid.top_k", "must be >= 1"}
	}
	if cfg.Grid.Workers < 0 {
		return ValidationError{"grid.workers", "must be >= 0"}
	}
	if cfg.Grid.ReasonsSample < 0 {
		return ValidationError{"grid.reasons_sample", "must be >= 0"}
	}
	if err := validateSpace(cfg.Grid.Space); err != nil {
		return err
	}

	// === Monte Carlo ===
	if cfg.MonteCarlo.Runs < 1 {
		return ValidationError{"monte_carlo.runs", "must be >= 1"}
	}
	if cfg.MonteCarlo.Workers < 0 {
		return ValidationError{"monte_carlo.workers", "must be >= 0"}
	}

	// === Replay ===
	if cfg.Replay.FallbackHorizonHours <= 0 {
		return ValidationError{"replay.fallback_horizon_hours", "must be > 0"}
	}
	switch cfg.Replay.TickSource {
	case TickSourceCSV, TickSourcePostgres:
	default:
		return ValidationError{"replay.tick_source", fmt.Sprintf("must be %q or %q", TickSourceCSV, TickSourcePostgres)}
	}

	// === Live ===
	if cfg.Live.TrailMode != "" {
		if _, err := exit.ParseTrailMode(cfg.Live.TrailMode); err != nil {
			return ValidationError{"live.trail_mode", err.Error()}
		}
	}
	for symbol, digits := range cfg.Live.SymbolDigits {
		if digits < 0 || digits > 10 {
			return ValidationError{"live.symbol_digits." + symbol, "must be in [0, 10]"}
		}
	}
	if _, err := live.NewSessions(cfg.Live.Sessions, time.UTC); err != nil {
		return ValidationError{"live.sessions", err.Error()}
	}

	// === Schedule ===
	for field, spec := range map[string]string{
		"schedule.reload_params": cfg.Schedule.ReloadParams,
		"schedule.reoptimize":    cfg.Schedule.Reoptimize,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return ValidationError{field, err.Error()}
		}
	}

	return nil
}

func validateSpace(s backtest.Space) error {
	for _, v := range s.ScaleOutFrac {
		if v < 0 || v > 1 {
			return ValidationError{"grid.space.scaleout_frac", fmt.Sprintf("%v not in [0,1]", v)}
		}
	}
	nonNegative := map[string][]float64{
		"grid.space.be_back_r":      s.BEBackR,
		"grid.space.trailing_gap_r": s.TrailingGapR,
	}
	for field, values := range nonNegative {
		for _, v := range values {
			if v < 0 {
				return ValidationError{field, fmt.Sprintf("%v must be >= 0", v)}
			}
		}
	}
	optional := map[string][]*float64{
		"grid.space.scaleout_r":       s.ScaleOutR,
		"grid.space.be_trigger_r":     s.BETriggerR,
		"grid.space.tp_r":             s.TPR,
		"grid.space.trailing_start_r": s.TrailingStartR,
	}
	for field, values := range optional {
		for _, v := range values {
			if v != nil && *v < 0 {
				return ValidationError{field, fmt.Sprintf("%v must be >= 0", *v)}
			}
		}
	}

	for range s.Enumerate() {
		return nil
	}
	return ValidationError{"grid.space", "no combination sets tp_r or trailing_start_r"}
}
