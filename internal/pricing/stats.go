package pricing

import (
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// HistoryStats summarizes a price series. ChangePct is first-to-last;
// VolatilityPct is the sample standard deviation of daily returns.
type HistoryStats struct {
	Min           decimal.Decimal `json:"min"`
	Max           decimal.Decimal `json:"max"`
	Mean          decimal.Decimal `json:"mean"`
	StdDev        decimal.Decimal `json:"std_dev"`
	ChangePct     decimal.Decimal `json:"change_pct"`
	VolatilityPct decimal.Decimal `json:"volatility_pct"`
}

// Stats computes summary statistics for a history series, or nil when the
// series is empty. The math runs on float64: these are descriptive numbers
// for display, not money, so the float bridge is fine here.
func Stats(h *History) *HistoryStats {
	if h == nil || len(h.Points) == 0 {
		return nil
	}

	prices := make([]float64, len(h.Points))
	for i, p := range h.Points {
		prices[i] = p.Price.InexactFloat64()
	}

	s := &HistoryStats{
		Min:  decimal.NewFromFloat(floats.Min(prices)),
		Max:  decimal.NewFromFloat(floats.Max(prices)),
		Mean: decimal.NewFromFloat(stat.Mean(prices, nil)),
	}

	// Sample standard deviation needs at least two points.
	if len(prices) > 1 {
		s.StdDev = decimal.NewFromFloat(stat.StdDev(prices, nil))
	}

	if first := prices[0]; first != 0 {
		last := prices[len(prices)-1]
		s.ChangePct = decimal.NewFromFloat((last - first) / first * 100).Round(2)
	}

	if len(prices) > 2 {
		returns := make([]float64, 0, len(prices)-1)
		for i := 1; i < len(prices); i++ {
			if prices[i-1] != 0 {
				returns = append(returns, (prices[i]-prices[i-1])/prices[i-1]*100)
			}
		}
		if len(returns) > 1 {
			s.VolatilityPct = decimal.NewFromFloat(stat.StdDev(returns, nil)).Round(2)
		}
	}
	return s
}
