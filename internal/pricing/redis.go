package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cryptodesk/leverage-engine/internal/metrics"
)

// RedisCache is a read-through Redis cache in front of a source, for
// deployments where several engine instances should share one market data
// budget. Reads check Redis first; misses fetch from the source and
// populate the key with the call's TTL. Cache errors degrade to a plain
// fetch.
type RedisCache struct {
	src     Source
	rdb     *redis.Client
	spotTTL time.Duration
	slowTTL time.Duration
	log     zerolog.Logger
}

// NewRedisCache wraps src with a Redis read-through cache.
func NewRedisCache(src Source, rdb *redis.Client, spotTTL, slowTTL time.Duration, log zerolog.Logger) *RedisCache {
	return &RedisCache{
		src:     src,
		rdb:     rdb,
		spotTTL: spotTTL,
		slowTTL: slowTTL,
		log:     log.With().Str("component", "price_cache_redis").Logger(),
	}
}

func (c *RedisCache) Name() string { return c.src.Name() }

// CurrentPrices serves the shared spot snapshot while its key lives.
func (c *RedisCache) CurrentPrices(ctx context.Context) (*PriceTable, error) {
	// Try cache.
	data, err := c.rdb.Get(ctx, spotKey()).Bytes()
	if err == nil {
		var table PriceTable
		if json.Unmarshal(data, &table) == nil {
			metrics.PriceCacheHits.WithLabelValues("spot", "redis").Inc()
			return &table, nil
		}
	}
	metrics.PriceCacheMisses.WithLabelValues("spot", "redis").Inc()

	// Cache miss: fetch and populate.
	table, err := c.src.CurrentPrices(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, spotKey(), table, c.spotTTL)
	return table, nil
}

// TopCoins serves the shared coin table while its key lives.
func (c *RedisCache) TopCoins(ctx context.Context, limit int) (*CoinTable, error) {
	data, err := c.rdb.Get(ctx, topKey(limit)).Bytes()
	if err == nil {
		var table CoinTable
		if json.Unmarshal(data, &table) == nil {
			metrics.PriceCacheHits.WithLabelValues("top", "redis").Inc()
			return &table, nil
		}
	}
	metrics.PriceCacheMisses.WithLabelValues("top", "redis").Inc()

	table, err := c.src.TopCoins(ctx, limit)
	if err != nil {
		return nil, err
	}
	c.set(ctx, topKey(limit), table, c.slowTTL)
	return table, nil
}

// History serves the shared series for the coin and window while its key lives.
func (c *RedisCache) History(ctx context.Context, coinID string, days int) (*History, error) {
	data, err := c.rdb.Get(ctx, historyKey(coinID, days)).Bytes()
	if err == nil {
		var hist History
		if json.Unmarshal(data, &hist) == nil {
			metrics.PriceCacheHits.WithLabelValues("history", "redis").Inc()
			return &hist, nil
		}
	}
	metrics.PriceCacheMisses.WithLabelValues("history", "redis").Inc()

	hist, err := c.src.History(ctx, coinID, days)
	if err != nil {
		return nil, err
	}
	c.set(ctx, historyKey(coinID, days), hist, c.slowTTL)
	return hist, nil
}

func (c *RedisCache) set(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func spotKey() string { return "price:spot" }

func topKey(limit int) string { return fmt.Sprintf("price:top:%d", limit) }

func historyKey(coinID string, days int) string {
	return fmt.Sprintf("price:history:%s:%d", coinID, days)
}
