package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/exitlab/internal/realtime"
	"github.com/wonny/exitlab/pkg/logger"
)

func TestPriceCacheUpdate(t *testing.T) {
	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	c := NewPriceCache(time.Minute, logger.Nop())
	c.now = func() time.Time { return base.Add(30 * time.Second) }

	assert.True(t, c.Update(realtime.PriceTick{Symbol: "EURUSD", Bid: 1.1, Ask: 1.1002, Timestamp: base, Source: "API"}))
	assert.False(t, c.Update(realtime.PriceTick{Symbol: "EURUSD", Bid: 1.0, Ask: 1.0002, Timestamp: base.Add(-time.Second), Source: "WS"}), "older quote")
	assert.False(t, c.Update(realtime.PriceTick{Symbol: "EURUSD", Bid: 1.2, Ask: 1.2002, Timestamp: base, Source: "API"}), "same time, same source")
	assert.True(t, c.Update(realtime.PriceTick{Symbol: "EURUSD", Bid: 1.3, Ask: 1.3002, Timestamp: base, Source: "WS"}), "same time, better source")

	got, ok := c.Get("EURUSD")
	require.True(t, ok)
	assert.Equal(t, 1.3, got.Bid)
	assert.False(t, got.IsStale)

	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	got, _ = c.Get("EURUSD")
	assert.True(t, got.IsStale)

	_, ok = c.Get("GBPUSD")
	assert.False(t, ok)
}

func TestPriceCacheGetAllSorted(t *testing.T) {
	now := time.Now()
	c := NewPriceCache(time.Minute, logger.Nop())
	c.Update(realtime.PriceTick{Symbol: "USDJPY", Bid: 150, Ask: 150.02, Timestamp: now})
	c.Update(realtime.PriceTick{Symbol: "EURUSD", Bid: 1.1, Ask: 1.1002, Timestamp: now})

	all := c.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, "EURUSD", all[0].Symbol)
	assert.Equal(t, 2, c.Size())
}

func TestPriceCacheCleanStale(t *testing.T) {
	base := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	c := NewPriceCache(time.Minute, logger.Nop())
	c.now = func() time.Time { return base.Add(time.Hour) }

	c.Update(realtime.PriceTick{Symbol: "EURUSD", Bid: 1.1, Ask: 1.1002, Timestamp: base})
	c.Update(realtime.PriceTick{Symbol: "USDJPY", Bid: 150, Ask: 150.02, Timestamp: base.Add(50 * time.Minute)})

	assert.Equal(t, 1, c.CleanStale(30*time.Minute))
	assert.Equal(t, 1, c.Size())
	_, ok := c.Get("EURUSD")
	assert.False(t, ok)
}
