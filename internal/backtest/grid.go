package backtest

import (
	"iter"

	"github.com/wonny/exitlab/internal/contracts"
)

// Space lists the candidate values of each exit parameter. A nil entry in an
// optional axis means "rule off". Axis order is fixed and the last axis
// varies fastest.
type Space struct {
	ScaleOutR      []*float64 `yaml:"scaleout_r" json:"scaleout_r"`
	ScaleOutFrac   []float64  `yaml:"scaleout_frac" json:"scaleout_frac"`
	BETriggerR     []*float64 `yaml:"be_trigger_r" json:"be_trigger_r"`
	BEBackR        []float64  `yaml:"be_back_r" json:"be_back_r"`
	TPR            []*float64 `yaml:"tp_r" json:"tp_r"`
	TrailingStartR []*float64 `yaml:"trailing_start_r" json:"trailing_start_r"`
	TrailingGapR   []float64  `yaml:"trailing_gap_r" json:"trailing_gap_r"`
}

// DefaultSpace is the reference sweep (2·3·4·2·4·3·3 = 1728 raw combinations)
func DefaultSpace() Space {
	f := contracts.F
	return Space{
		ScaleOutR:      []*float64{nil, f(1.0)},
		ScaleOutFrac:   []float64{0, 0.5, 0.6},
		BETriggerR:     []*float64{nil, f(0.2), f(0.5), f(0.7)},
		BEBackR:        []float64{0, 0.1},
		TPR:            []*float64{f(1.2), f(1.5), f(2.0), nil},
		TrailingStartR: []*float64{f(1.5), f(2.0), nil},
		TrailingGapR:   []float64{0.4, 0.5, 0.7},
	}
}

// normalized fills empty axes: optional thresholds default to "off",
// fraction and back-off to 0, gap to contracts.DefaultTrailingGapR
func (s Space) normalized() Space {
	if len(s.ScaleOutR) == 0 {
		s.ScaleOutR = []*float64{nil}
	}
	if len(s.ScaleOutFrac) == 0 {
		s.ScaleOutFrac = []float64{0}
	}
	if len(s.BETriggerR) == 0 {
		s.BETriggerR = []*float64{nil}
	}
	if len(s.BEBackR) == 0 {
		s.BEBackR = []float64{0}
	}
	if len(s.TPR) == 0 {
		s.TPR = []*float64{nil}
	}
	if len(s.TrailingStartR) == 0 {
		s.TrailingStartR = []*float64{nil}
	}
	if len(s.TrailingGapR) == 0 {
		s.TrailingGapR = []float64{contracts.DefaultTrailingGapR}
	}
	return s
}

// Size is the raw product size before the validity filter
func (s Space) Size() int {
	n := s.normalized()
	return len(n.ScaleOutR) * len(n.ScaleOutFrac) * len(n.BETriggerR) * len(n.BEBackR) *
		len(n.TPR) * len(n.TrailingStartR) * len(n.TrailingGapR)
}

// Count is the number of combinations Enumerate yields
func (s Space) Count() int {
	c := 0
	for range s.Enumerate() {
		c++
	}
	return c
}

// Enumerate lazily yields every evaluable combination (take-profit or
// trailing start set) in axis order.
func (s Space) Enumerate() iter.Seq[contracts.ExitParams] {
	n := s.normalized()
	return func(yield func(contracts.ExitParams) bool) {
		for _, so := range n.ScaleOutR {
			for _, frac := range n.ScaleOutFrac {
				for _, be := range n.BETriggerR {
					for _, back := range n.BEBackR {
						for _, tp := range n.TPR {
							for _, ts := range n.TrailingStartR {
								if tp == nil && ts == nil {
									continue
								}
								for _, gap := range n.TrailingGapR {
									p := contracts.ExitParams{
										ScaleOutR:      clone(so),
										ScaleOutFrac:   frac,
										BETriggerR:     clone(be),
										BEBackR:        back,
										TPR:            clone(tp),
										TrailingStartR: clone(ts),
										TrailingGapR:   gap,
									}
									if !yield(p) {
										return
									}
								}
							}
						}
					}
				}
			}
		}
	}
}

func clone(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return contracts.F(*v)
}
