package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/wonny/exitlab/internal/realtime"
	"github.com/wonny/exitlab/pkg/logger"
)

// PriceCache keeps the latest quote per symbol
// ⭐ SSOT: 실시간 호가 캐싱은 이 구조체에서만
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]realtime.PriceTick
	ttl    time.Duration
	now    func() time.Time
	logger *logger.Logger
}

// NewPriceCache creates a new price cache; quotes older than ttl are marked stale
func NewPriceCache(ttl time.Duration, log *logger.Logger) *PriceCache {
	return &PriceCache{
		prices: make(map[string]realtime.PriceTick),
		ttl:    ttl,
		now:    time.Now,
		logger: log.Component("price_cache"),
	}
}

// Update stores tick unless a newer quote, or an equally recent quote from a
// better source, is already cached
func (c *PriceCache) Update(tick realtime.PriceTick) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.prices[tick.Symbol]; ok {
		if tick.Timestamp.Before(existing.Timestamp) {
			c.logger.WithFields(map[string]interface{}{
				"symbol":   tick.Symbol,
				"new_time": tick.Timestamp,
				"old_time": existing.Timestamp,
			}).Debug("Rejected older quote")
			return false
		}
		if tick.Timestamp.Equal(existing.Timestamp) &&
			realtime.PriceSource(tick.Source).Priority() <= realtime.PriceSource(existing.Source).Priority() {
			return false
		}
	}

	c.prices[tick.Symbol] = tick
	return true
}

// Get returns the cached quote for symbol
func (c *PriceCache) Get(symbol string) (realtime.PriceTick, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tick, ok := c.prices[symbol]
	if !ok {
		return realtime.PriceTick{}, false
	}
	tick.IsStale = c.now().Sub(tick.Timestamp) > c.ttl
	return tick, true
}

// GetAll returns a copy of every cached quote sorted by symbol
func (c *PriceCache) GetAll() []realtime.PriceTick {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	out := make([]realtime.PriceTick, 0, len(c.prices))
	for _, tick := range c.prices {
		tick.IsStale = now.Sub(tick.Timestamp) > c.ttl
		out = append(out, tick)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Size returns the number of cached symbols
func (c *PriceCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prices)
}

// CleanStale drops quotes older than maxAge and returns how many were removed
func (c *PriceCache) CleanStale(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for symbol, tick := range c.prices {
		if now.Sub(tick.Timestamp) > maxAge {
			delete(c.prices, symbol)
			removed++
		}
	}
	return removed
}
