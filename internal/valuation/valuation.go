// Package valuation implements the position valuation engine for leveraged
// long positions under an isolated margin model.
//
// Given a position and its current spot price it derives:
//   - Notional position size (margin × leverage)
//   - Token quantity controlled at that price
//   - Liquidation price, parameterized by the global maintenance margin
//   - Stop-loss / take-profit P/L at the configured trigger percentages
//
// All monetary values use shopspring/decimal; float64 never touches money.
// Valuation is pure: no I/O, no stored state, identical inputs produce
// identical outputs.
package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/cryptodesk/leverage-engine/internal/model"
)

var (
	// NearLiquidationFactor flags positions whose liquidation price sits
	// within 5% of the current spot price.
	NearLiquidationFactor = decimal.NewFromFloat(0.95)

	// PnlScale is the number of decimal places for P/L rounding.
	PnlScale int32 = 2
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Valuate derives every per-position quantity from a position and its spot
// price. Callers filter inert positions first (see ValuateAll); a zero or
// negative price degrades to zero tokens rather than failing.
func Valuate(p model.Position, coinID string, price, maintenanceMarginPct decimal.Decimal) model.PositionValuation {
	size := p.Margin.Mul(p.Leverage)

	tokens := decimal.Zero
	if price.IsPositive() {
		tokens = size.Div(price)
	}

	liq := LiquidationPrice(price, p.Leverage, maintenanceMarginPct)

	v := model.PositionValuation{
		PositionID:       p.ID,
		Coin:             p.Coin,
		CoinID:           coinID,
		Price:            price,
		Tokens:           tokens,
		PositionSizeUsd:  size,
		Margin:           p.Margin,
		Leverage:         p.Leverage,
		LiquidationPrice: liq,
		StopLossPct:      p.StopLossPct,
		TakeProfitPct:    p.TakeProfitPct,
		NearLiquidation:  price.IsPositive() && liq.GreaterThanOrEqual(price.Mul(NearLiquidationFactor)),
	}

	if p.StopLossPct > 0 {
		pnl := TriggerPnl(price, tokens, -p.StopLossPct)
		v.StopLossPnl = &pnl
	}
	if p.TakeProfitPct > 0 {
		pnl := TriggerPnl(price, tokens, p.TakeProfitPct)
		v.TakeProfitPnl = &pnl
	}
	return v
}

// ValuateAll valuates every non-inert position against the quote table and
// returns the valuations plus the number of skipped (inert) positions.
// A position whose coin has no quote is valued at price zero rather than
// dropped, so it stays visible in the output.
func ValuateAll(positions []model.Position, quotes map[string]model.Quote, maintenanceMarginPct decimal.Decimal) ([]model.PositionValuation, int) {
	vals := make([]model.PositionValuation, 0, len(positions))
	skipped := 0
	for _, p := range positions {
		if p.Inert() {
			skipped++
			continue
		}
		q := quotes[p.Coin]
		vals = append(vals, Valuate(p, q.CoinID, q.Price, maintenanceMarginPct))
	}
	return vals, skipped
}

// LiquidationPrice computes price × (1 − 1/leverage + maintenanceMarginPct/100),
// the isolated-margin liquidation level for a long position. Higher leverage
// pulls the level toward the entry price; a higher maintenance requirement
// raises it further. Returns zero for non-positive leverage.
func LiquidationPrice(price, leverage, maintenanceMarginPct decimal.Decimal) decimal.Decimal {
	if !leverage.IsPositive() {
		return decimal.Zero
	}
	factor := one.Sub(one.Div(leverage)).Add(maintenanceMarginPct.Div(hundred))
	return price.Mul(factor)
}

// TriggerPnl computes the P/L realized if the price moved by movePct
// percent: (price × (1 + movePct/100) − price) × tokens, rounded to
// PnlScale decimal places. Negative movePct models a stop-loss, positive a
// take-profit.
func TriggerPnl(price, tokens decimal.Decimal, movePct int) decimal.Decimal {
	moved := price.Mul(one.Add(decimal.NewFromInt(int64(movePct)).Div(hundred)))
	return moved.Sub(price).Mul(tokens).Round(PnlScale)
}
