package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cryptodesk/leverage-engine/internal/metrics"
)

// Chain tries each source in order and serves the first success. Sources
// answering ErrNotSupported are skipped without noise; real failures are
// logged and counted. With a StaticSource as the last link the chain
// cannot fail.
type Chain struct {
	sources []Source
	log     zerolog.Logger
}

// NewChain builds a fallback chain over the given sources, primary first.
func NewChain(log zerolog.Logger, sources ...Source) *Chain {
	return &Chain{
		sources: sources,
		log:     log.With().Str("component", "price_chain").Logger(),
	}
}

func (c *Chain) Name() string { return "chain" }

// CurrentPrices serves the first spot snapshot any source can produce.
func (c *Chain) CurrentPrices(ctx context.Context) (*PriceTable, error) {
	var lastErr error
	for i, src := range c.sources {
		table, err := src.CurrentPrices(ctx)
		if err == nil {
			c.noteSuccess(src, "spot", i)
			return table, nil
		}
		lastErr = c.noteFailure(src, "spot", err)
	}
	return nil, fmt.Errorf("pricing: all sources failed: %w", lastErr)
}

// TopCoins serves the first coin table any source can produce.
func (c *Chain) TopCoins(ctx context.Context, limit int) (*CoinTable, error) {
	var lastErr error
	for i, src := range c.sources {
		table, err := src.TopCoins(ctx, limit)
		if err == nil {
			c.noteSuccess(src, "top", i)
			return table, nil
		}
		lastErr = c.noteFailure(src, "top", err)
	}
	return nil, fmt.Errorf("pricing: all sources failed: %w", lastErr)
}

// History serves the first history series any source can produce.
func (c *Chain) History(ctx context.Context, coinID string, days int) (*History, error) {
	var lastErr error
	for i, src := range c.sources {
		hist, err := src.History(ctx, coinID, days)
		if err == nil {
			c.noteSuccess(src, "history", i)
			return hist, nil
		}
		lastErr = c.noteFailure(src, "history", err)
	}
	return nil, fmt.Errorf("pricing: all sources failed: %w", lastErr)
}

func (c *Chain) noteSuccess(src Source, call string, position int) {
	metrics.PriceFetches.WithLabelValues(src.Name(), call, "ok").Inc()
	if position > 0 {
		metrics.PriceFallbacks.WithLabelValues(call).Inc()
		c.log.Info().
			Str("source", src.Name()).
			Str("call", call).
			Msg("served by fallback source")
	}
}

func (c *Chain) noteFailure(src Source, call string, err error) error {
	if errors.Is(err, ErrNotSupported) {
		return err
	}
	metrics.PriceFetches.WithLabelValues(src.Name(), call, "error").Inc()
	c.log.Warn().
		Err(err).
		Str("source", src.Name()).
		Str("call", call).
		Msg("source failed, trying next")
	return err
}
