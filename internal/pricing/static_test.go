package pricing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// --- static source tests ---

func TestStatic_CurrentPricesCoverUniverse(t *testing.T) {
	table, err := NewStaticSource().CurrentPrices(context.Background())
	if err != nil {
		t.Fatalf("static source must not fail: %v", err)
	}
	if table.Source != "static" {
		t.Errorf("expected source static, got %s", table.Source)
	}
	if len(table.Prices) != len(SupportedCoins) {
		t.Fatalf("expected %d prices, got %d", len(SupportedCoins), len(table.Prices))
	}
	for _, c := range SupportedCoins {
		price, ok := table.Prices[c.ID]
		if !ok {
			t.Errorf("missing price for %s", c.ID)
			continue
		}
		if !price.IsPositive() {
			t.Errorf("%s: static price must be positive, got %s", c.ID, price)
		}
	}
}

func TestStatic_TopCoinsHonorsLimit(t *testing.T) {
	src := NewStaticSource()

	table, err := src.TopCoins(context.Background(), 3)
	if err != nil {
		t.Fatalf("TopCoins: %v", err)
	}
	if len(table.Coins) != 3 {
		t.Errorf("expected 3 coins, got %d", len(table.Coins))
	}
	if _, ok := table.Coins["BTC"]; !ok {
		t.Error("BTC leads the display order, should survive any limit")
	}

	// Oversized and non-positive limits serve the whole universe.
	for _, limit := range []int{0, -1, 500} {
		table, err = src.TopCoins(context.Background(), limit)
		if err != nil {
			t.Fatalf("TopCoins(%d): %v", limit, err)
		}
		if len(table.Coins) != len(SupportedCoins) {
			t.Errorf("limit %d: expected full universe, got %d coins", limit, len(table.Coins))
		}
	}
}

func TestStatic_HistoryIsDeterministicSampleData(t *testing.T) {
	src := NewStaticSource()

	hist, err := src.History(context.Background(), "bitcoin", 7)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if hist.Live {
		t.Error("synthesized history must be flagged as not live")
	}
	if len(hist.Points) != 7 {
		t.Fatalf("expected 7 points, got %d", len(hist.Points))
	}
	// sin(0) = 0, so the oldest point carries the unmodified base price.
	if !hist.Points[0].Price.Equal(d(67000)) {
		t.Errorf("expected first point at base 67000, got %s", hist.Points[0].Price)
	}
	for i, p := range hist.Points {
		if !p.Price.IsPositive() {
			t.Errorf("point %d: expected positive price, got %s", i, p.Price)
		}
		if i > 0 && !p.Timestamp.After(hist.Points[i-1].Timestamp) {
			t.Errorf("point %d: timestamps must ascend", i)
		}
	}

	// Same call, same series.
	again, err := src.History(context.Background(), "bitcoin", 7)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	for i := range hist.Points {
		if !hist.Points[i].Price.Equal(again.Points[i].Price) {
			t.Errorf("point %d: series must be deterministic", i)
		}
	}
}

func TestStatic_HistoryUnknownCoinUsesUnitBase(t *testing.T) {
	hist, err := NewStaticSource().History(context.Background(), "no-such-coin", 3)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if !hist.Points[0].Price.Equal(d(1)) {
		t.Errorf("unknown coin should fall back to base 1, got %s", hist.Points[0].Price)
	}
}

// --- quote merge tests ---

func TestQuotes_SpotOverridesTable(t *testing.T) {
	table := &CoinTable{Coins: map[string]Coin{
		"BTC": {ID: "bitcoin", Symbol: "BTC", PriceUsd: d(67000)},
		"ETH": {ID: "ethereum", Symbol: "ETH", PriceUsd: d(3500)},
	}}
	spot := &PriceTable{Prices: map[string]decimal.Decimal{
		"bitcoin": d(68500),
		// ethereum missing from the snapshot.
	}}

	quotes := Quotes(table, spot)

	if !quotes["BTC"].Price.Equal(d(68500)) {
		t.Errorf("expected spot 68500 to win, got %s", quotes["BTC"].Price)
	}
	if !quotes["ETH"].Price.Equal(d(3500)) {
		t.Errorf("expected table fallback 3500, got %s", quotes["ETH"].Price)
	}
	if quotes["BTC"].CoinID != "bitcoin" {
		t.Errorf("expected coin id bitcoin, got %s", quotes["BTC"].CoinID)
	}
}

func TestQuotes_NilSpotUsesTable(t *testing.T) {
	table := &CoinTable{Coins: map[string]Coin{
		"BTC": {ID: "bitcoin", Symbol: "BTC", PriceUsd: d(67000)},
	}}

	quotes := Quotes(table, nil)

	if !quotes["BTC"].Price.Equal(d(67000)) {
		t.Errorf("expected table price, got %s", quotes["BTC"].Price)
	}
}

func TestQuotes_ZeroSpotIgnored(t *testing.T) {
	table := &CoinTable{Coins: map[string]Coin{
		"BTC": {ID: "bitcoin", Symbol: "BTC", PriceUsd: d(67000)},
	}}
	spot := &PriceTable{Prices: map[string]decimal.Decimal{"bitcoin": decimal.Zero}}

	quotes := Quotes(table, spot)

	if !quotes["BTC"].Price.Equal(d(67000)) {
		t.Errorf("zero spot price must not override the table, got %s", quotes["BTC"].Price)
	}
}
