// Package pricing supplies market data to the engine: spot prices, a coin
// table with symbols, and daily price history.
//
// Sources implement a common interface. CoinPaprika is the primary,
// CoinGecko the spot-only secondary, and a static table is the fail-closed
// last resort so valuation never blocks on an outage. A TTL cache (in
// memory or Redis) sits in front of the chain, and a shared rate limiter
// keeps the free upstream tiers happy.
package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptodesk/leverage-engine/internal/model"
)

var (
	// ErrNotSupported is returned by sources that do not implement a call.
	// The fallback chain skips past it silently.
	ErrNotSupported = errors.New("pricing: call not supported by this source")

	// ErrEmptyResponse is returned when an upstream answered but carried
	// no usable prices.
	ErrEmptyResponse = errors.New("pricing: empty or zero-priced response")
)

const (
	// DefaultHistoryDays is the history window when the caller does not ask
	// for a specific one.
	DefaultHistoryDays = 7

	// DefaultTopCoinLimit bounds the coin table size.
	DefaultTopCoinLimit = 50
)

// SupportedCoins is the tradable universe, in display order. PriceUsd is
// the static last-resort quote used when every live source is down.
var SupportedCoins = []Coin{
	{ID: "bitcoin", Symbol: "BTC", PriceUsd: decimal.NewFromInt(67000)},
	{ID: "ethereum", Symbol: "ETH", PriceUsd: decimal.NewFromInt(3500)},
	{ID: "solana", Symbol: "SOL", PriceUsd: decimal.NewFromInt(150)},
	{ID: "cardano", Symbol: "ADA", PriceUsd: decimal.NewFromFloat(0.45)},
	{ID: "sui", Symbol: "SUI", PriceUsd: decimal.NewFromFloat(1.10)},
	{ID: "chainlink", Symbol: "LINK", PriceUsd: decimal.NewFromFloat(14.50)},
	{ID: "pepe", Symbol: "PEPE", PriceUsd: decimal.NewFromFloat(0.0000105)},
	{ID: "aave", Symbol: "AAVE", PriceUsd: decimal.NewFromInt(95)},
	{ID: "ondo-finance", Symbol: "ONDO", PriceUsd: decimal.NewFromFloat(0.85)},
	{ID: "paal-ai", Symbol: "PAAL", PriceUsd: decimal.NewFromFloat(0.14)},
}

// Coin is one tradable asset.
type Coin struct {
	ID       string          `json:"id"`
	Symbol   string          `json:"symbol"`
	PriceUsd decimal.Decimal `json:"price_usd"`
}

// supportedByID indexes SupportedCoins for upstream response filtering.
var supportedByID = func() map[string]Coin {
	m := make(map[string]Coin, len(SupportedCoins))
	for _, c := range SupportedCoins {
		m[c.ID] = c
	}
	return m
}()

// PriceTable is a spot snapshot keyed by coin ID.
type PriceTable struct {
	Prices    map[string]decimal.Decimal `json:"prices"`
	Source    string                     `json:"source"`
	FetchedAt time.Time                  `json:"fetched_at"`
}

// CoinTable is the coin universe keyed by symbol.
type CoinTable struct {
	Coins     map[string]Coin `json:"coins"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// PricePoint is one sample of a coin's price history.
type PricePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// History is a coin's daily price series. Live is false when the series is
// synthesized rather than fetched from an exchange.
type History struct {
	CoinID string       `json:"coin_id"`
	Days   int          `json:"days"`
	Points []PricePoint `json:"points"`
	Live   bool         `json:"live"`
	Source string       `json:"source"`
}

// Source is a market data provider. Implementations return ErrNotSupported
// for calls they cannot serve.
type Source interface {
	Name() string
	CurrentPrices(ctx context.Context) (*PriceTable, error)
	TopCoins(ctx context.Context, limit int) (*CoinTable, error)
	History(ctx context.Context, coinID string, days int) (*History, error)
}

// Quotes merges the coin table with a spot snapshot into per-symbol quotes.
// A positive spot price wins over the table price, which lets fresher spot
// data override a cached table, and a nil spot falls back entirely.
func Quotes(table *CoinTable, spot *PriceTable) map[string]model.Quote {
	quotes := make(map[string]model.Quote, len(table.Coins))
	for symbol, coin := range table.Coins {
		price := coin.PriceUsd
		if spot != nil {
			if p, ok := spot.Prices[coin.ID]; ok && p.IsPositive() {
				price = p
			}
		}
		quotes[symbol] = model.Quote{CoinID: coin.ID, Price: price}
	}
	return quotes
}
