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

func newGeckoServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/simple/price", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("vs_currencies") != "usd" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// --- coingecko client tests ---

func TestGecko_CurrentPricesDropsZeroQuotes(t *testing.T) {
	server := newGeckoServer(t, `{"bitcoin":{"usd":67200.1},"ethereum":{"usd":0},"solana":{"usd":151.5}}`)
	client := NewGeckoClient(server.URL, 2*time.Second, testLimiter(), zerolog.Nop())

	table, err := client.CurrentPrices(context.Background())
	if err != nil {
		t.Fatalf("CurrentPrices: %v", err)
	}
	if table.Source != "coingecko" {
		t.Errorf("expected source coingecko, got %s", table.Source)
	}
	if len(table.Prices) != 2 {
		t.Fatalf("expected 2 positive prices, got %d", len(table.Prices))
	}
	if !table.Prices["bitcoin"].Equal(d(67200.1)) {
		t.Errorf("expected bitcoin at 67200.1, got %s", table.Prices["bitcoin"])
	}
	if _, ok := table.Prices["ethereum"]; ok {
		t.Error("zero-priced quote must be dropped")
	}
}

func TestGecko_AllZeroIsEmptyResponse(t *testing.T) {
	server := newGeckoServer(t, `{"bitcoin":{"usd":0}}`)
	client := NewGeckoClient(server.URL, 2*time.Second, testLimiter(), zerolog.Nop())

	_, err := client.CurrentPrices(context.Background())
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestGecko_OnlyServesSpot(t *testing.T) {
	client := NewGeckoClient("http://unused.invalid", 2*time.Second, testLimiter(), zerolog.Nop())

	if _, err := client.TopCoins(context.Background(), 10); !errors.Is(err, ErrNotSupported) {
		t.Errorf("TopCoins: expected ErrNotSupported, got %v", err)
	}
	if _, err := client.History(context.Background(), "bitcoin", 7); !errors.Is(err, ErrNotSupported) {
		t.Errorf("History: expected ErrNotSupported, got %v", err)
	}
}
