package live

import (
	"github.com/shopspring/decimal"

	"github.com/wonny/exitlab/internal/artifact"
	"github.com/wonny/exitlab/internal/contracts"
	"github.com/wonny/exitlab/internal/exit"
	"github.com/wonny/exitlab/pkg/logger"
)

// AdjustmentKind tells which rule produced a proposed stop
type AdjustmentKind string

const (
	AdjustBreakeven  AdjustmentKind = "breakeven"
	AdjustTrail      AdjustmentKind = "trail"
	AdjustTakeProfit AdjustmentKind = "take_profit"
)

// Options tunes a controller
type Options struct {
	// TrailMode defaults to exit.TrailPriceAnchored
	TrailMode exit.TrailMode
	// SymbolDigits rounds proposals to the quote precision of a symbol
	SymbolDigits map[string]int
}

// PositionUpdate is one live price observation for an open position.
// Stop and TakeProfit are the levels currently set at the broker, nil when unset.
type PositionUpdate struct {
	Symbol     string
	Entry      float64
	Risk       float64
	Direction  contracts.Direction
	Price      float64
	Stop       *float64
	TakeProfit *float64
}

// Proposal holds the levels the controller wants set. A nil Stop means keep
// the current stop.
type Proposal struct {
	Stop       *float64       `json:"stop,omitempty"`
	StopKind   AdjustmentKind `json:"stop_kind,omitempty"`
	TakeProfit *float64       `json:"take_profit,omitempty"`
}

// Empty reports whether nothing is proposed
func (p Proposal) Empty() bool {
	return p.Stop == nil && p.TakeProfit == nil
}

// Controller proposes protective adjustments for live positions from one
// fixed exit configuration
// ⭐ SSOT: 실시간 청산 조정 계산은 여기서만
type Controller struct {
	params  contracts.ExitParams
	enabled bool
	opts    Options
}

// New creates an enabled controller for params
func New(params contracts.ExitParams, opts Options) *Controller {
	if opts.TrailMode == "" {
		opts.TrailMode = exit.TrailPriceAnchored
	}
	return &Controller{params: params, enabled: true, opts: opts}
}

// Load reads the parameter block of the best-config artifact at path. A
// missing or corrupt artifact yields a disabled controller that proposes nothing.
func Load(path string, opts Options, log *logger.Logger) *Controller {
	params, err := artifact.LoadParams(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("Exit parameters unavailable, live controller disabled")
		c := New(contracts.ExitParams{}, opts)
		c.enabled = false
		return c
	}

	log.WithFields(map[string]interface{}{
		"path":       path,
		"params":     params.String(),
		"trail_mode": opts.TrailMode,
	}).Info("Exit parameters loaded")

	return New(params, opts)
}

// Enabled reports whether parameters were loaded
func (c *Controller) Enabled() bool {
	return c.enabled
}

// Params returns the loaded configuration
func (c *Controller) Params() (contracts.ExitParams, bool) {
	return c.params, c.enabled
}

// TrailMode returns the trailing variant in use
func (c *Controller) TrailMode() exit.TrailMode {
	return c.opts.TrailMode
}

// ComputeUpdates proposes new stop and target levels for one price update.
//
// The take-profit level is the same on every call. Breakeven fires once per
// position. A proposed stop is returned only when it strictly tightens the
// current stop; with no current stop any proposal is taken.
func (c *Controller) ComputeUpdates(u PositionUpdate, s AuxState) (Proposal, AuxState) {
	var prop Proposal
	if !c.enabled || !contracts.ValidPrice(u.Price) {
		return prop, s
	}
	pos, ok := positionOf(u)
	if !ok {
		return prop, s
	}
	p := c.params

	if p.TPR != nil {
		tp := c.round(u.Symbol, pos.PriceAt(*p.TPR))
		prop.TakeProfit = &tp
	}

	propose := func(level float64, kind AdjustmentKind) {
		level = c.round(u.Symbol, level)
		if u.Stop != nil && !pos.Tighter(level, *u.Stop) {
			return
		}
		if prop.Stop == nil || pos.Tighter(level, *prop.Stop) {
			prop.Stop = &level
			prop.StopKind = kind
		}
	}

	if p.BETriggerR != nil && !s.BreakevenFired && pos.Reached(u.Price, pos.PriceAt(*p.BETriggerR)) {
		s.BreakevenFired = true
		propose(pos.BreakevenPrice(p.BEBackR), AdjustBreakeven)
	}

	if p.TrailingStartR != nil {
		if s.Trail.Active || pos.Reached(u.Price, pos.PriceAt(*p.TrailingStartR)) {
			s.Trail = c.opts.TrailMode.Follow(pos, p.TrailingGapR, s.Trail, u.Price)
			propose(s.Trail.Stop, AdjustTrail)
		}
	}

	return prop, s
}

func positionOf(u PositionUpdate) (exit.Position, bool) {
	if !u.Direction.Valid() || !contracts.ValidPrice(u.Entry) || !contracts.ValidPrice(u.Risk) {
		return exit.Position{}, false
	}
	return exit.Position{Entry: u.Entry, Risk: u.Risk, Direction: u.Direction}, true
}

func (c *Controller) round(symbol string, price float64) float64 {
	digits, ok := c.opts.SymbolDigits[symbol]
	if !ok {
		return price
	}
	return decimal.NewFromFloat(price).Round(int32(digits)).InexactFloat64()
}
