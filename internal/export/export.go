// Package export converts position lists to and from their JSON interchange
// form and renders valuation reports as CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/cryptodesk/leverage-engine/internal/model"
)

// Record is one position in the interchange format. It carries only the
// user-entered fields; valuations are derived and never exported here.
type Record struct {
	ID            string          `json:"id,omitempty"`
	Coin          string          `json:"coin"`
	Margin        decimal.Decimal `json:"margin"`
	Leverage      decimal.Decimal `json:"leverage"`
	StopLossPct   int             `json:"stop_loss_pct"`
	TakeProfitPct int             `json:"take_profit_pct"`
}

// Records converts positions to interchange records.
func Records(positions []model.Position) []Record {
	out := make([]Record, len(positions))
	for i, p := range positions {
		out[i] = Record{
			ID:            p.ID,
			Coin:          p.Coin,
			Margin:        p.Margin,
			Leverage:      p.Leverage,
			StopLossPct:   p.StopLossPct,
			TakeProfitPct: p.TakeProfitPct,
		}
	}
	return out
}

// Positions converts interchange records back to positions. IDs pass
// through as-is; missing ones are assigned by the workspace on import.
func Positions(records []Record) []model.Position {
	out := make([]model.Position, len(records))
	for i, r := range records {
		out[i] = model.Position{
			ID:            r.ID,
			Coin:          r.Coin,
			Margin:        r.Margin,
			Leverage:      r.Leverage,
			StopLossPct:   r.StopLossPct,
			TakeProfitPct: r.TakeProfitPct,
		}
	}
	return out
}

// Parse reads a JSON position list from r.
func Parse(r io.Reader) ([]model.Position, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("export: parse position list: %w", err)
	}
	return Positions(records), nil
}

var csvHeader = []string{
	"Coin", "Price", "Tokens", "Position Size", "Margin",
	"Liquidation Price", "Stop-Loss P/L", "Take-Profit P/L",
}

// ValuationsCSV renders the valuation table as CSV with currency-formatted
// amounts, one row per valuation.
func ValuationsCSV(vals []model.PositionValuation) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("export: write csv header: %w", err)
	}
	for _, v := range vals {
		row := []string{
			v.Coin,
			money(v.Price),
			v.Tokens.StringFixed(6),
			money(v.PositionSizeUsd),
			money(v.Margin),
			money(v.LiquidationPrice),
			moneyPtr(v.StopLossPnl),
			moneyPtr(v.TakeProfitPnl),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("export: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("export: flush csv: %w", err)
	}
	return b.String(), nil
}

// money renders a decimal as a $#,###.## currency string.
func money(d decimal.Decimal) string {
	return "$" + humanize.FormatFloat("#,###.##", d.InexactFloat64())
}

func moneyPtr(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return money(*d)
}
