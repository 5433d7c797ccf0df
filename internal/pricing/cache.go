package pricing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cryptodesk/leverage-engine/internal/metrics"
)

// MemoryCache is an in-process TTL cache in front of a source. Spot
// snapshots use the short TTL; coin tables and history use the slow one.
// On a refresh failure a stale entry is served rather than erroring, so a
// brief upstream outage does not blank the UI.
type MemoryCache struct {
	src     Source
	spotTTL time.Duration
	slowTTL time.Duration
	log     zerolog.Logger

	// clock is swapped out in tests.
	clock func() time.Time

	// mu also serializes refreshes: a single flight repopulates an expired
	// entry while concurrent readers wait.
	mu      sync.Mutex
	spot    *PriceTable
	spotAt  time.Time
	tops    map[int]*cachedTable
	history map[string]*cachedHistory
}

type cachedTable struct {
	table *CoinTable
	at    time.Time
}

type cachedHistory struct {
	hist *History
	at   time.Time
}

// NewMemoryCache wraps src with an in-process TTL cache.
func NewMemoryCache(src Source, spotTTL, slowTTL time.Duration, log zerolog.Logger) *MemoryCache {
	return &MemoryCache{
		src:     src,
		spotTTL: spotTTL,
		slowTTL: slowTTL,
		log:     log.With().Str("component", "price_cache").Logger(),
		clock:   time.Now,
		tops:    make(map[int]*cachedTable),
		history: make(map[string]*cachedHistory),
	}
}

func (c *MemoryCache) Name() string { return c.src.Name() }

// CurrentPrices serves the cached spot snapshot while fresh.
func (c *MemoryCache) CurrentPrices(ctx context.Context) (*PriceTable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	if c.spot != nil && now.Sub(c.spotAt) < c.spotTTL {
		metrics.PriceCacheHits.WithLabelValues("spot", "memory").Inc()
		return c.spot, nil
	}
	metrics.PriceCacheMisses.WithLabelValues("spot", "memory").Inc()

	table, err := c.src.CurrentPrices(ctx)
	if err != nil {
		if c.spot != nil {
			c.staleWarn("spot", err)
			return c.spot, nil
		}
		return nil, err
	}
	c.spot = table
	c.spotAt = now
	return table, nil
}

// TopCoins serves the cached coin table for the limit while fresh.
func (c *MemoryCache) TopCoins(ctx context.Context, limit int) (*CoinTable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	if entry, ok := c.tops[limit]; ok && now.Sub(entry.at) < c.slowTTL {
		metrics.PriceCacheHits.WithLabelValues("top", "memory").Inc()
		return entry.table, nil
	}
	metrics.PriceCacheMisses.WithLabelValues("top", "memory").Inc()

	table, err := c.src.TopCoins(ctx, limit)
	if err != nil {
		if entry, ok := c.tops[limit]; ok {
			c.staleWarn("top", err)
			return entry.table, nil
		}
		return nil, err
	}
	c.tops[limit] = &cachedTable{table: table, at: now}
	return table, nil
}

// History serves the cached series for the coin and window while fresh.
func (c *MemoryCache) History(ctx context.Context, coinID string, days int) (*History, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := historyCacheKey(coinID, days)
	now := c.clock()
	if entry, ok := c.history[key]; ok && now.Sub(entry.at) < c.slowTTL {
		metrics.PriceCacheHits.WithLabelValues("history", "memory").Inc()
		return entry.hist, nil
	}
	metrics.PriceCacheMisses.WithLabelValues("history", "memory").Inc()

	hist, err := c.src.History(ctx, coinID, days)
	if err != nil {
		if entry, ok := c.history[key]; ok {
			c.staleWarn("history", err)
			return entry.hist, nil
		}
		return nil, err
	}
	c.history[key] = &cachedHistory{hist: hist, at: now}
	return hist, nil
}

func (c *MemoryCache) staleWarn(call string, err error) {
	c.log.Warn().
		Err(err).
		Str("call", call).
		Msg("refresh failed, serving stale entry")
}

func historyCacheKey(coinID string, days int) string {
	return fmt.Sprintf("%s:%d", coinID, days)
}
