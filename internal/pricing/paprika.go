package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const paprikaDefaultBaseURL = "https://api.coinpaprika.com"

// PaprikaClient fetches market data from the CoinPaprika REST API. It is
// the primary live source: it serves all three calls.
type PaprikaClient struct {
	baseURL string
	http    *http.Client
	limiter *Limiter
	log     zerolog.Logger
}

// NewPaprikaClient builds a CoinPaprika client. An empty baseURL uses the
// public API; timeout bounds each request end to end.
func NewPaprikaClient(baseURL string, timeout time.Duration, limiter *Limiter, log zerolog.Logger) *PaprikaClient {
	if baseURL == "" {
		baseURL = paprikaDefaultBaseURL
	}
	return &PaprikaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		log:     log.With().Str("client", "coinpaprika").Logger(),
	}
}

func (c *PaprikaClient) Name() string { return "coinpaprika" }

type paprikaTicker struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Rank   int    `json:"rank"`
	Quotes struct {
		USD struct {
			Price decimal.Decimal `json:"price"`
		} `json:"USD"`
	} `json:"quotes"`
}

func (c *PaprikaClient) fetchTickers(ctx context.Context) ([]paprikaTicker, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/tickers", nil)
	if err != nil {
		return nil, fmt.Errorf("pricing: build coinpaprika request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pricing: coinpaprika tickers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pricing: coinpaprika status %d", resp.StatusCode)
	}

	var tickers []paprikaTicker
	if err := json.NewDecoder(resp.Body).Decode(&tickers); err != nil {
		return nil, fmt.Errorf("pricing: decode coinpaprika tickers: %w", err)
	}
	return tickers, nil
}

// CurrentPrices returns spot prices for the supported coins. Zero-priced
// tickers are dropped so a partial upstream response degrades per coin
// instead of poisoning the table.
func (c *PaprikaClient) CurrentPrices(ctx context.Context) (*PriceTable, error) {
	tickers, err := c.fetchTickers(ctx)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]decimal.Decimal)
	for _, t := range tickers {
		if _, ok := supportedByID[t.ID]; !ok {
			continue
		}
		if t.Quotes.USD.Price.IsPositive() {
			prices[t.ID] = t.Quotes.USD.Price
		}
	}
	if len(prices) == 0 {
		return nil, ErrEmptyResponse
	}

	return &PriceTable{
		Prices:    prices,
		Source:    c.Name(),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// TopCoins returns up to limit coins ranked by market cap. Unranked and
// zero-priced tickers are skipped; when symbols collide the better rank wins.
func (c *PaprikaClient) TopCoins(ctx context.Context, limit int) (*CoinTable, error) {
	tickers, err := c.fetchTickers(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultTopCoinLimit
	}

	ranked := make([]paprikaTicker, 0, len(tickers))
	for _, t := range tickers {
		if t.Rank > 0 && t.Symbol != "" && t.Quotes.USD.Price.IsPositive() {
			ranked = append(ranked, t)
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Rank < ranked[j].Rank })

	coins := make(map[string]Coin)
	for _, t := range ranked {
		if len(coins) >= limit {
			break
		}
		symbol := strings.ToUpper(t.Symbol)
		if _, taken := coins[symbol]; taken {
			continue
		}
		coins[symbol] = Coin{ID: t.ID, Symbol: symbol, PriceUsd: t.Quotes.USD.Price}
	}
	if len(coins) == 0 {
		return nil, ErrEmptyResponse
	}

	return &CoinTable{
		Coins:     coins,
		Source:    c.Name(),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// History fetches the coin's daily close series for the trailing window.
func (c *PaprikaClient) History(ctx context.Context, coinID string, days int) (*History, error) {
	if days <= 0 {
		days = DefaultHistoryDays
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("start", time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339))
	query.Set("interval", "24h")
	endpoint := fmt.Sprintf("%s/v1/tickers/%s/historical?%s", c.baseURL, url.PathEscape(coinID), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("pricing: build coinpaprika request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pricing: coinpaprika history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pricing: coinpaprika status %d", resp.StatusCode)
	}

	var raw []struct {
		Timestamp time.Time       `json:"timestamp"`
		Price     decimal.Decimal `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("pricing: decode coinpaprika history: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyResponse
	}

	points := make([]PricePoint, 0, len(raw))
	for _, p := range raw {
		points = append(points, PricePoint{Timestamp: p.Timestamp, Price: p.Price})
	}
	return &History{
		CoinID: coinID,
		Days:   days,
		Points: points,
		Live:   true,
		Source: c.Name(),
	}, nil
}
