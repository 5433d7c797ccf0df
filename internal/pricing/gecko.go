package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const geckoDefaultBaseURL = "https://api.coingecko.com"

// GeckoClient fetches spot prices from the CoinGecko simple-price API.
// It is the spot-only secondary: coin tables and history come from
// elsewhere in the chain.
type GeckoClient struct {
	baseURL string
	http    *http.Client
	limiter *Limiter
	log     zerolog.Logger
}

// NewGeckoClient builds a CoinGecko client. An empty baseURL uses the
// public API; timeout bounds each request end to end.
func NewGeckoClient(baseURL string, timeout time.Duration, limiter *Limiter, log zerolog.Logger) *GeckoClient {
	if baseURL == "" {
		baseURL = geckoDefaultBaseURL
	}
	return &GeckoClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		log:     log.With().Str("client", "coingecko").Logger(),
	}
}

func (c *GeckoClient) Name() string { return "coingecko" }

// CurrentPrices returns spot prices for the supported coins.
func (c *GeckoClient) CurrentPrices(ctx context.Context) (*PriceTable, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(SupportedCoins))
	for _, coin := range SupportedCoins {
		ids = append(ids, coin.ID)
	}
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", "usd")
	endpoint := c.baseURL + "/api/v3/simple/price?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("pricing: build coingecko request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pricing: coingecko simple price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pricing: coingecko status %d", resp.StatusCode)
	}

	var raw map[string]struct {
		Usd decimal.Decimal `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("pricing: decode coingecko prices: %w", err)
	}

	prices := make(map[string]decimal.Decimal)
	for id, quote := range raw {
		if _, ok := supportedByID[id]; ok && quote.Usd.IsPositive() {
			prices[id] = quote.Usd
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

// TopCoins is not served by this source.
func (c *GeckoClient) TopCoins(_ context.Context, _ int) (*CoinTable, error) {
	return nil, ErrNotSupported
}

// History is not served by this source.
func (c *GeckoClient) History(_ context.Context, _ string, _ int) (*History, error) {
	return nil, ErrNotSupported
}
