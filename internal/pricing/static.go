package pricing

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// StaticSource serves the built-in coin table. It never fails and never
// talks to the network, which makes it the terminal link of the fallback
// chain and the backing source for offline mode.
type StaticSource struct{}

// NewStaticSource returns the static market data source.
func NewStaticSource() *StaticSource {
	return &StaticSource{}
}

func (s *StaticSource) Name() string { return "static" }

// CurrentPrices returns the static quote for every supported coin.
func (s *StaticSource) CurrentPrices(_ context.Context) (*PriceTable, error) {
	prices := make(map[string]decimal.Decimal, len(SupportedCoins))
	for _, c := range SupportedCoins {
		prices[c.ID] = c.PriceUsd
	}
	return &PriceTable{
		Prices:    prices,
		Source:    s.Name(),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// TopCoins returns up to limit supported coins in their display order.
func (s *StaticSource) TopCoins(_ context.Context, limit int) (*CoinTable, error) {
	if limit <= 0 || limit > len(SupportedCoins) {
		limit = len(SupportedCoins)
	}
	coins := make(map[string]Coin, limit)
	for _, c := range SupportedCoins[:limit] {
		coins[c.Symbol] = c
	}
	return &CoinTable{
		Coins:     coins,
		Source:    s.Name(),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// History synthesizes a deterministic sample series around the coin's
// static price: base × (1 + 0.05·sin(i)) per day. Callers can tell it from
// exchange data by the Live flag.
func (s *StaticSource) History(_ context.Context, coinID string, days int) (*History, error) {
	if days <= 0 {
		days = DefaultHistoryDays
	}

	base := decimal.NewFromInt(1)
	for _, c := range SupportedCoins {
		if c.ID == coinID {
			base = c.PriceUsd
			break
		}
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	points := make([]PricePoint, 0, days)
	for i := 0; i < days; i++ {
		factor := decimal.NewFromFloat(1 + 0.05*math.Sin(float64(i)))
		points = append(points, PricePoint{
			Timestamp: today.AddDate(0, 0, i-days+1),
			Price:     base.Mul(factor),
		})
	}
	return &History{
		CoinID: coinID,
		Days:   days,
		Points: points,
		Live:   false,
		Source: s.Name(),
	}, nil
}
