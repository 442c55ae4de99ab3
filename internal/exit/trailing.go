package exit

import "fmt"

// TrailMode names how a trailing stop follows price.
//
// Replay always ratchets from the best price seen. Live control can also
// anchor the stop to the current price on every update; with an external
// stop that only tightens, both converge unless the remembered anchor is lost.
type TrailMode string

const (
	// TrailAnchorRatchet keeps the most favorable price as anchor; stop = anchor ∓ gap
	TrailAnchorRatchet TrailMode = "anchor_ratchet"
	// TrailPriceAnchored recomputes stop = current price ∓ gap on every update
	TrailPriceAnchored TrailMode = "price_anchored"
)

// ParseTrailMode accepts the two mode names; empty means anchor_ratchet
func ParseTrailMode(s string) (TrailMode, error) {
	switch TrailMode(s) {
	case "", TrailAnchorRatchet:
		return TrailAnchorRatchet, nil
	case TrailPriceAnchored:
		return TrailPriceAnchored, nil
	default:
		return "", fmt.Errorf("unknown trailing mode %q", s)
	}
}

// Trail is the trailing part of the exit state
type Trail struct {
	Active bool    `json:"active"`
	Anchor float64 `json:"anchor"`
	Stop   float64 `json:"stop"`
}

// Follow moves an active (or just activated) trail for price.
// Activation sets the anchor to price under both modes.
func (m TrailMode) Follow(pos Position, gapR float64, t Trail, price float64) Trail {
	switch {
	case !t.Active:
		t.Active = true
		t.Anchor = price
	case m == TrailPriceAnchored:
		t.Anchor = price
	case pos.Better(price, t.Anchor):
		t.Anchor = price
	default:
		return t
	}
	t.Stop = pos.Behind(t.Anchor, gapR)
	return t
}
