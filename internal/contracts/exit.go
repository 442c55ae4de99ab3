package contracts

import (
	"fmt"
	"strings"
)

// =============================================================================
// Exit Parameters
// ⭐ SSOT: 청산규칙 파라미터는 여기서만
// =============================================================================

// ExitParamKeys is the fixed key set of a parameter block, in grid axis order
var ExitParamKeys = []string{
	"scaleout_r",
	"scaleout_frac",
	"be_trigger_r",
	"be_back_r",
	"tp_r",
	"trailing_start_r",
	"trailing_gap_r",
}

// DefaultTrailingGapR is used when a parameter block omits trailing_gap_r
const DefaultTrailingGapR = 0.7

// ExitParams is one exit rule configuration. Thresholds are R-multiples;
// a nil pointer means the rule is not configured.
type ExitParams struct {
	ScaleOutR      *float64 `json:"scaleout_r" yaml:"scaleout_r"`
	ScaleOutFrac   float64  `json:"scaleout_frac" yaml:"scaleout_frac"`
	BETriggerR     *float64 `json:"be_trigger_r" yaml:"be_trigger_r"`
	BEBackR        float64  `json:"be_back_r" yaml:"be_back_r"`
	TPR            *float64 `json:"tp_r" yaml:"tp_r"`
	TrailingStartR *float64 `json:"trailing_start_r" yaml:"trailing_start_r"`
	TrailingGapR   float64  `json:"trailing_gap_r" yaml:"trailing_gap_r"`
}

// DefaultExitParams returns an empty configuration with default fraction, back-off and gap
func DefaultExitParams() ExitParams {
	return ExitParams{TrailingGapR: DefaultTrailingGapR}
}

// F returns a pointer to v, for optional thresholds
func F(v float64) *float64 {
	return &v
}

// Evaluable reports whether the configuration sets take-profit or trailing start.
// Stop-loss-only configurations are never searched.
func (p ExitParams) Evaluable() bool {
	return p.TPR != nil || p.TrailingStartR != nil
}

// Validate checks value ranges
func (p ExitParams) Validate() error {
	if p.ScaleOutFrac < 0 || p.ScaleOutFrac > 1 {
		return fmt.Errorf("scaleout_frac must be in [0,1], got %v", p.ScaleOutFrac)
	}
	if p.BEBackR < 0 {
		return fmt.Errorf("be_back_r must be >= 0, got %v", p.BEBackR)
	}
	if p.TrailingGapR < 0 {
		return fmt.Errorf("trailing_gap_r must be >= 0, got %v", p.TrailingGapR)
	}
	for name, v := range map[string]*float64{
		"scaleout_r":       p.ScaleOutR,
		"be_trigger_r":     p.BETriggerR,
		"tp_r":             p.TPR,
		"trailing_start_r": p.TrailingStartR,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be >= 0, got %v", name, *v)
		}
	}
	return nil
}

// Values returns the parameter values in ExitParamKeys order; nil for unset thresholds
func (p ExitParams) Values() []*float64 {
	return []*float64{
		p.ScaleOutR,
		F(p.ScaleOutFrac),
		p.BETriggerR,
		F(p.BEBackR),
		p.TPR,
		p.TrailingStartR,
		F(p.TrailingGapR),
	}
}

// String renders a compact form for logs, e.g. "tp_r=2 trailing_start_r=- ..."
func (p ExitParams) String() string {
	var b strings.Builder
	for i, v := range p.Values() {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(ExitParamKeys[i])
		b.WriteByte('=')
		if v == nil {
			b.WriteByte('-')
		} else {
			fmt.Fprintf(&b, "%g", *v)
		}
	}
	return b.String()
}

// =============================================================================
// Simulation outcome
// =============================================================================

// ExitReason is the terminal reason of one replayed trade
type ExitReason string

const (
	ExitReasonTakeProfit ExitReason = "tp_direct"
	ExitReasonTrail      ExitReason = "trail"
	ExitReasonStopLoss   ExitReason = "sl"
	ExitReasonEndSeries  ExitReason = "end_series"
)

// SimResult is the outcome of replaying one trade under one configuration
type SimResult struct {
	RTotal float64    `json:"r_total"`
	Reason ExitReason `json:"exit_reason"`
	Events int        `json:"n_events"`
}
