// Package model defines the core domain types shared across the leverage engine.
// All monetary values use shopspring/decimal; float64 never touches money.
package model

import (
	"github.com/shopspring/decimal"
)

// Position is one user-defined leveraged trade intent. Derived quantities
// live in PositionValuation, never here.
type Position struct {
	ID            string          `json:"id"`
	Coin          string          `json:"coin"`            // ticker symbol, e.g. "BTC"
	Margin        decimal.Decimal `json:"margin"`          // committed capital, USD
	Leverage      decimal.Decimal `json:"leverage"`        // notional multiplier
	StopLossPct   int             `json:"stop_loss_pct"`   // [0,100], 0 = not set
	TakeProfitPct int             `json:"take_profit_pct"` // [0,100], 0 = not set
}

// Inert reports whether the position is excluded from valuation. Inert
// positions are counted as skipped, never treated as an error.
func (p Position) Inert() bool {
	return !p.Margin.IsPositive() || !p.Leverage.IsPositive()
}

// Quote pairs a coin's canonical id with its current USD price.
type Quote struct {
	CoinID string          `json:"coin_id"`
	Price  decimal.Decimal `json:"price"`
}

// PositionValuation holds every quantity derived from one non-inert
// position at a given spot price. Recomputed from scratch on each request;
// never stored.
type PositionValuation struct {
	PositionID       string           `json:"position_id"`
	Coin             string           `json:"coin"`
	CoinID           string           `json:"coin_id"`
	Price            decimal.Decimal  `json:"price"`
	Tokens           decimal.Decimal  `json:"tokens"`            // quantity controlled at Price
	PositionSizeUsd  decimal.Decimal  `json:"position_size_usd"` // margin × leverage
	Margin           decimal.Decimal  `json:"margin"`
	Leverage         decimal.Decimal  `json:"leverage"`
	LiquidationPrice decimal.Decimal  `json:"liquidation_price"`
	StopLossPct      int              `json:"stop_loss_pct"`
	TakeProfitPct    int              `json:"take_profit_pct"`
	StopLossPnl      *decimal.Decimal `json:"stop_loss_pnl,omitempty"`   // nil when no stop-loss set
	TakeProfitPnl    *decimal.Decimal `json:"take_profit_pnl,omitempty"` // nil when no take-profit set
	NearLiquidation  bool             `json:"near_liquidation"`          // liquidation within 5% of spot
}

// RiskLevel is the qualitative portfolio risk classification.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskAssessment is the classification plus a human-readable rationale.
type RiskAssessment struct {
	Level     RiskLevel `json:"level"`
	Rationale string    `json:"rationale"`
}

// CoinConcentration is one row of the exposure breakdown: a coin (or the
// "Others" bucket) with its summed exposure and share of the total.
type CoinConcentration struct {
	Coin        string          `json:"coin"`
	ExposureUsd decimal.Decimal `json:"exposure_usd"`
	Pct         decimal.Decimal `json:"pct"`
}

// PortfolioSummary aggregates all valuations into totals and risk metrics.
type PortfolioSummary struct {
	TotalMargin        decimal.Decimal            `json:"total_margin"`
	TotalExposure      decimal.Decimal            `json:"total_exposure"`       // sum of positionSizeUsd
	WeightedLeverage   decimal.Decimal            `json:"weighted_leverage"`    // exposure / margin, 0 when margin 0
	ExposureByCoin     map[string]decimal.Decimal `json:"exposure_by_coin"`     // coin to summed exposure
	Concentration      []CoinConcentration        `json:"concentration"`        // top-3 + Others
	FundingFeeEstimate decimal.Decimal            `json:"funding_fee_estimate"` // per 8h funding interval
	Risk               RiskAssessment             `json:"risk"`
	SkippedCount       int                        `json:"skipped_count"` // inert positions excluded
}

// CoinScenario is the what-if outcome for one coin under a hypothetical
// percentage price move.
type CoinScenario struct {
	Coin     string          `json:"coin"`
	MovePct  decimal.Decimal `json:"move_pct"`
	Price    decimal.Decimal `json:"price"`
	NewPrice decimal.Decimal `json:"new_price"`
	Pnl      decimal.Decimal `json:"pnl"` // summed over all positions of the coin
}

// ScenarioOutcome is a pure projection over current valuations; it never
// alters stored positions.
type ScenarioOutcome struct {
	Coins  []CoinScenario  `json:"coins"`
	NetPnl decimal.Decimal `json:"net_pnl"`
}

// Settings is the global configuration surface applied to every valuation
// pass.
type Settings struct {
	MaintenanceMarginPct decimal.Decimal `json:"maintenance_margin_pct"` // [0.1, 5.0]
	FundingRate          decimal.Decimal `json:"funding_rate"`           // per 8h, on notional exposure
	UseLivePrices        bool            `json:"use_live_prices"`
}

// DefaultSettings returns the standard defaults: 0.5% maintenance margin,
// 0.0002 funding rate per 8h interval, live prices enabled.
func DefaultSettings() Settings {
	return Settings{
		MaintenanceMarginPct: decimal.NewFromFloat(0.5),
		FundingRate:          decimal.NewFromFloat(0.0002),
		UseLivePrices:        true,
	}
}
