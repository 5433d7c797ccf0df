package pricing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLimiter() *Limiter {
	// Big enough budget that tests never block on the limiter.
	return NewLimiter("test", 6000, zerolog.Nop())
}

func newPaprikaServer(t *testing.T, tickers, history string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/tickers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(tickers))
	})
	mux.HandleFunc("/v1/tickers/bitcoin/historical", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("interval") != "24h" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(history))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

const paprikaTickersJSON = `[
	{"id":"bitcoin","symbol":"btc","rank":1,"quotes":{"USD":{"price":67123.45}}},
	{"id":"ethereum","symbol":"ETH","rank":2,"quotes":{"USD":{"price":3501.2}}},
	{"id":"obscure-token","symbol":"OBS","rank":900,"quotes":{"USD":{"price":0.003}}},
	{"id":"dead-coin","symbol":"DEAD","rank":0,"quotes":{"USD":{"price":12}}}
]`

const paprikaHistoryJSON = `[
	{"timestamp":"2026-08-19T00:00:00Z","price":66000},
	{"timestamp":"2026-08-20T00:00:00Z","price":66500.5},
	{"timestamp":"2026-08-21T00:00:00Z","price":67100}
]`

// --- coinpaprika client tests ---

func TestPaprika_CurrentPricesFiltersToSupported(t *testing.T) {
	server := newPaprikaServer(t, paprikaTickersJSON, paprikaHistoryJSON)
	client := NewPaprikaClient(server.URL, 2*time.Second, testLimiter(), zerolog.Nop())

	table, err := client.CurrentPrices(context.Background())
	if err != nil {
		t.Fatalf("CurrentPrices: %v", err)
	}
	if table.Source != "coinpaprika" {
		t.Errorf("expected source coinpaprika, got %s", table.Source)
	}
	if len(table.Prices) != 2 {
		t.Fatalf("expected 2 supported prices, got %d", len(table.Prices))
	}
	if !table.Prices["bitcoin"].Equal(d(67123.45)) {
		t.Errorf("expected bitcoin at 67123.45, got %s", table.Prices["bitcoin"])
	}
	if _, ok := table.Prices["obscure-token"]; ok {
		t.Error("unsupported coins must be filtered out")
	}
}

func TestPaprika_TopCoinsRankedAndLimited(t *testing.T) {
	server := newPaprikaServer(t, paprikaTickersJSON, paprikaHistoryJSON)
	client := NewPaprikaClient(server.URL, 2*time.Second, testLimiter(), zerolog.Nop())

	table, err := client.TopCoins(context.Background(), 2)
	if err != nil {
		t.Fatalf("TopCoins: %v", err)
	}
	if len(table.Coins) != 2 {
		t.Fatalf("expected 2 coins, got %d", len(table.Coins))
	}
	btc, ok := table.Coins["BTC"]
	if !ok {
		t.Fatal("expected the rank-1 symbol to be upcased to BTC")
	}
	if btc.ID != "bitcoin" || !btc.PriceUsd.Equal(d(67123.45)) {
		t.Errorf("unexpected BTC entry: %+v", btc)
	}
	if _, ok := table.Coins["OBS"]; ok {
		t.Error("rank 900 should not make a top-2 table")
	}
	if _, ok := table.Coins["DEAD"]; ok {
		t.Error("unranked tickers must be skipped")
	}
}

func TestPaprika_HistoryIsLive(t *testing.T) {
	server := newPaprikaServer(t, paprikaTickersJSON, paprikaHistoryJSON)
	client := NewPaprikaClient(server.URL, 2*time.Second, testLimiter(), zerolog.Nop())

	hist, err := client.History(context.Background(), "bitcoin", 7)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if !hist.Live {
		t.Error("exchange history must be flagged live")
	}
	if len(hist.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(hist.Points))
	}
	if !hist.Points[1].Price.Equal(d(66500.5)) {
		t.Errorf("expected 66500.5, got %s", hist.Points[1].Price)
	}
}

func TestPaprika_ServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	client := NewPaprikaClient(server.URL, 2*time.Second, testLimiter(), zerolog.Nop())

	if _, err := client.CurrentPrices(context.Background()); err == nil {
		t.Fatal("expected an error on HTTP 500")
	}
}

func TestPaprika_ZeroPricedResponseIsEmpty(t *testing.T) {
	zeroJSON := `[{"id":"bitcoin","symbol":"BTC","rank":1,"quotes":{"USD":{"price":0}}}]`
	server := newPaprikaServer(t, zeroJSON, `[]`)
	client := NewPaprikaClient(server.URL, 2*time.Second, testLimiter(), zerolog.Nop())

	_, err := client.CurrentPrices(context.Background())
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}

	_, err = client.History(context.Background(), "bitcoin", 7)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse for empty history, got %v", err)
	}
}
