package live

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/exitlab/internal/contracts"
	"github.com/wonny/exitlab/internal/observability"
	"github.com/wonny/exitlab/internal/realtime"
	"github.com/wonny/exitlab/pkg/logger"
)

// ErrUnknownPosition is returned for an id that is not tracked
var ErrUnknownPosition = errors.New("unknown position")

const historySize = 100

// OpenPosition is a live position under exit management. Risk is fixed at
// entry from the initial stop; Stop and TakeProfit follow applied adjustments.
type OpenPosition struct {
	ID          string              `json:"id"`
	Symbol      string              `json:"symbol"`
	Direction   contracts.Direction `json:"direction"`
	Entry       float64             `json:"entry"`
	InitialStop float64             `json:"initial_stop"`
	Stop        *float64            `json:"stop,omitempty"`
	TakeProfit  *float64            `json:"take_profit,omitempty"`
	OpenedAt    time.Time           `json:"opened_at"`
	LastPrice   float64             `json:"last_price,omitempty"`
}

// Risk is the initial entry-to-stop distance
func (p OpenPosition) Risk() float64 {
	return math.Abs(p.Entry - p.InitialStop)
}

// Adjustment is one set of new levels for a position
type Adjustment struct {
	ID         string           `json:"id"`
	PositionID string           `json:"position_id"`
	Symbol     string           `json:"symbol"`
	Kinds      []AdjustmentKind `json:"kinds"`
	Stop       *float64         `json:"stop,omitempty"`
	TakeProfit *float64         `json:"take_profit,omitempty"`
	Price      float64          `json:"price"`
	At         time.Time        `json:"at"`
}

// Sink applies adjustments at the broker
type Sink interface {
	Apply(ctx context.Context, adj Adjustment) error
}

// LogSink only logs adjustments
type LogSink struct {
	Logger *logger.Logger
}

// Apply logs adj
func (s LogSink) Apply(_ context.Context, adj Adjustment) error {
	fields := map[string]interface{}{
		"position_id": adj.PositionID,
		"symbol":      adj.Symbol,
		"kinds":       adj.Kinds,
		"price":       adj.Price,
	}
	if adj.Stop != nil {
		fields["stop"] = *adj.Stop
	}
	if adj.TakeProfit != nil {
		fields["take_profit"] = *adj.TakeProfit
	}
	s.Logger.WithFields(fields).Info("Exit adjustment")
	return nil
}

// Monitor applies controller proposals to tracked positions as quotes arrive
// ⭐ SSOT: 실시간 포지션 청산 관리는 여기서만
type Monitor struct {
	mu         sync.Mutex
	controller *Controller
	store      StateStore
	sessions   *Sessions
	sink       Sink
	metrics    *observability.Metrics
	logger     *logger.Logger

	positions map[string]*OpenPosition
	history   []Adjustment
	now       func() time.Time
}

// NewMonitor creates a monitor; sessions and metrics may be nil
func NewMonitor(controller *Controller, store StateStore, sessions *Sessions, sink Sink, metrics *observability.Metrics, log *logger.Logger) *Monitor {
	log = log.Component("live")
	if store == nil {
		store = NewMemoryStateStore()
	}
	if sink == nil {
		sink = LogSink{Logger: log}
	}
	m := &Monitor{
		controller: controller,
		store:      store,
		sessions:   sessions,
		sink:       sink,
		metrics:    metrics,
		logger:     log,
		positions:  make(map[string]*OpenPosition),
		now:        time.Now,
	}
	metrics.SetParamsLoaded(controller.Enabled())
	return m
}

// Controller returns the controller in use
func (m *Monitor) Controller() *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.controller
}

// SetController swaps the controller, e.g. after a new best config was written
func (m *Monitor) SetController(c *Controller) {
	m.mu.Lock()
	m.controller = c
	m.mu.Unlock()

	m.metrics.SetParamsLoaded(c.Enabled())
	m.logger.WithField("enabled", c.Enabled()).Info("Live controller replaced")
}

// Track starts managing pos. Tracking an id again replaces the position but
// keeps its remembered state.
func (m *Monitor) Track(ctx context.Context, pos OpenPosition) error {
	if _, ok := contracts.ParseDirection(string(pos.Direction)); !ok {
		return fmt.Errorf("position %s: invalid direction %q", pos.ID, pos.Direction)
	}
	if pos.ID == "" || pos.Symbol == "" {
		return errors.New("position id and symbol are required")
	}
	if !contracts.ValidPrice(pos.Entry) || !contracts.ValidPrice(pos.Risk()) {
		return fmt.Errorf("position %s: entry and initial stop must give a positive risk", pos.ID)
	}
	if pos.Stop == nil {
		stop := pos.InitialStop
		pos.Stop = &stop
	}
	if pos.OpenedAt.IsZero() {
		pos.OpenedAt = m.now()
	}

	m.mu.Lock()
	m.positions[pos.ID] = &pos
	n := len(m.positions)
	m.mu.Unlock()

	m.metrics.SetOpenPositions(n)
	m.logger.WithFields(map[string]interface{}{
		"position_id": pos.ID,
		"symbol":      pos.Symbol,
		"direction":   pos.Direction,
		"entry":       pos.Entry,
		"risk":        pos.Risk(),
	}).Info("Position tracked")
	return nil
}

// Untrack stops managing a position and drops its state
func (m *Monitor) Untrack(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.positions[id]
	delete(m.positions, id)
	n := len(m.positions)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPosition, id)
	}
	m.metrics.SetOpenPositions(n)
	return m.store.Delete(ctx, id)
}

// Positions returns copies of the tracked positions ordered by id
func (m *Monitor) Positions() []OpenPosition {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]OpenPosition, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Position returns a copy of one tracked position
func (m *Monitor) Position(id string) (OpenPosition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok {
		return OpenPosition{}, false
	}
	return *p, true
}

// Recent returns the latest adjustments, oldest first
func (m *Monitor) Recent() []Adjustment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Adjustment(nil), m.history...)
}

// OnTick updates every position on the quote's symbol, pricing longs at the
// bid and shorts at the ask. Quotes outside trading sessions are ignored.
func (m *Monitor) OnTick(ctx context.Context, tick realtime.PriceTick) ([]Adjustment, error) {
	if !tick.Valid() {
		return nil, nil
	}
	at := tick.Timestamp
	if at.IsZero() {
		at = m.now()
	}
	if !m.sessions.Open(at) {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.positions))
	for id, p := range m.positions {
		if p.Symbol == tick.Symbol {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var (
		adjs []Adjustment
		errs []error
	)
	for _, id := range ids {
		pos := m.positions[id]
		adj, err := m.update(ctx, pos, tick.ExitPrice(pos.Direction), at)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if adj != nil {
			adjs = append(adjs, *adj)
		}
	}
	return adjs, errors.Join(errs...)
}

// UpdatePrice feeds one exit-side price to a single position
func (m *Monitor) UpdatePrice(ctx context.Context, id string, price float64) (*Adjustment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.positions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPosition, id)
	}
	if !contracts.ValidPrice(price) {
		return nil, fmt.Errorf("invalid price %v", price)
	}
	return m.update(ctx, pos, price, m.now())
}

// Run consumes quotes until ctx is done or the channel closes
func (m *Monitor) Run(ctx context.Context, ticks <-chan realtime.PriceTick) error {
	m.logger.Info("Live monitor started")
	defer m.logger.Info("Live monitor stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}
			if _, err := m.OnTick(ctx, tick); err != nil {
				m.logger.WithError(err).WithField("symbol", tick.Symbol).Warn("Tick update failed")
			}
		}
	}
}

// update must be called with mu held
func (m *Monitor) update(ctx context.Context, pos *OpenPosition, price float64, at time.Time) (*Adjustment, error) {
	state, err := m.store.Load(ctx, pos.ID)
	if err != nil {
		return nil, err
	}

	prop, next := m.controller.ComputeUpdates(PositionUpdate{
		Symbol:     pos.Symbol,
		Entry:      pos.Entry,
		Risk:       pos.Risk(),
		Direction:  pos.Direction,
		Price:      price,
		Stop:       pos.Stop,
		TakeProfit: pos.TakeProfit,
	}, state)
	pos.LastPrice = price

	adj := Adjustment{PositionID: pos.ID, Symbol: pos.Symbol, Price: price, At: at}
	if prop.Stop != nil {
		adj.Stop = prop.Stop
		adj.Kinds = append(adj.Kinds, prop.StopKind)
	}
	if prop.TakeProfit != nil && (pos.TakeProfit == nil || *pos.TakeProfit != *prop.TakeProfit) {
		adj.TakeProfit = prop.TakeProfit
		adj.Kinds = append(adj.Kinds, AdjustTakeProfit)
	}
	if len(adj.Kinds) == 0 {
		return nil, m.saveState(ctx, pos.ID, state, next)
	}

	// state is only advanced once the sink accepted the adjustment, so a
	// failed delivery is proposed again on the next quote
	adj.ID = uuid.NewString()
	if err := m.sink.Apply(ctx, adj); err != nil {
		return nil, fmt.Errorf("apply adjustment for %s: %w", pos.ID, err)
	}
	if err := m.saveState(ctx, pos.ID, state, next); err != nil {
		return nil, err
	}

	if adj.Stop != nil {
		pos.Stop = adj.Stop
	}
	if adj.TakeProfit != nil {
		pos.TakeProfit = adj.TakeProfit
	}
	for _, k := range adj.Kinds {
		m.metrics.ObserveAdjustment(string(k))
	}
	m.history = append(m.history, adj)
	if len(m.history) > historySize {
		m.history = m.history[len(m.history)-historySize:]
	}
	return &adj, nil
}

func (m *Monitor) saveState(ctx context.Context, id string, prev, next AuxState) error {
	if next == prev {
		return nil
	}
	return m.store.Save(ctx, id, next)
}
