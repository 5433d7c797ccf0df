// Package portfolio aggregates individual position valuations into a single
// account-level summary: totals, margin-weighted leverage, exposure
// concentration by coin, a funding fee estimate and a risk classification.
package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cryptodesk/leverage-engine/internal/model"
	"github.com/cryptodesk/leverage-engine/internal/risk"
)

const (
	// OthersLabel collects exposure outside the top coins in the
	// concentration breakdown.
	OthersLabel = "Others"

	// TopCoins is how many coins get their own concentration row before
	// the rest is folded into Others.
	TopCoins = 3
)

var hundred = decimal.NewFromInt(100)

// Aggregator folds valuations into a PortfolioSummary.
type Aggregator struct {
	classifier *risk.Classifier
}

// NewAggregator returns an aggregator using the given classifier, or the
// default one when nil.
func NewAggregator(c *risk.Classifier) *Aggregator {
	if c == nil {
		c = risk.NewClassifier()
	}
	return &Aggregator{classifier: c}
}

// Aggregate sums the valuations into a portfolio summary. Inert positions
// were already filtered out upstream; skipped carries their count through
// to the summary.
func (a *Aggregator) Aggregate(vals []model.PositionValuation, skipped int, settings model.Settings) *model.PortfolioSummary {
	totalMargin := decimal.Zero
	totalExposure := decimal.Zero
	exposureByCoin := make(map[string]decimal.Decimal)

	for _, v := range vals {
		totalMargin = totalMargin.Add(v.Margin)
		totalExposure = totalExposure.Add(v.PositionSizeUsd)
		exposureByCoin[v.Coin] = exposureByCoin[v.Coin].Add(v.PositionSizeUsd)
	}

	weightedLeverage := decimal.Zero
	if totalMargin.IsPositive() {
		weightedLeverage = totalExposure.Div(totalMargin)
	}

	return &model.PortfolioSummary{
		TotalMargin:        totalMargin,
		TotalExposure:      totalExposure,
		WeightedLeverage:   weightedLeverage,
		ExposureByCoin:     exposureByCoin,
		Concentration:      concentration(exposureByCoin, totalExposure),
		FundingFeeEstimate: FundingFee(totalExposure, settings.FundingRate),
		Risk:               a.classifier.Assess(weightedLeverage, risk.AvgStopLoss(vals)),
		SkippedCount:       skipped,
	}
}

// concentration ranks coins by exposure and returns the top rows plus an
// Others remainder. Percentages are rounded to one decimal; Others absorbs
// the rounding slack so the column sums to exactly 100.
func concentration(exposureByCoin map[string]decimal.Decimal, totalExposure decimal.Decimal) []model.CoinConcentration {
	if len(exposureByCoin) == 0 || !totalExposure.IsPositive() {
		return nil
	}

	sorted := make([]model.CoinConcentration, 0, len(exposureByCoin))
	for coin, exposure := range exposureByCoin {
		sorted = append(sorted, model.CoinConcentration{Coin: coin, ExposureUsd: exposure})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].ExposureUsd.Equal(sorted[j].ExposureUsd) {
			return sorted[i].ExposureUsd.GreaterThan(sorted[j].ExposureUsd)
		}
		return sorted[i].Coin < sorted[j].Coin
	})

	top := len(sorted)
	if top > TopCoins {
		top = TopCoins
	}

	rows := make([]model.CoinConcentration, 0, top+1)
	pctSum := decimal.Zero
	topExposure := decimal.Zero
	for _, row := range sorted[:top] {
		row.Pct = row.ExposureUsd.Mul(hundred).Div(totalExposure).Round(1)
		pctSum = pctSum.Add(row.Pct)
		topExposure = topExposure.Add(row.ExposureUsd)
		rows = append(rows, row)
	}

	if len(sorted) > TopCoins {
		rows = append(rows, model.CoinConcentration{
			Coin:        OthersLabel,
			ExposureUsd: totalExposure.Sub(topExposure),
			Pct:         hundred.Sub(pctSum),
		})
	}
	return rows
}

// FundingFee estimates the periodic funding cost as exposure times rate.
func FundingFee(totalExposure, fundingRate decimal.Decimal) decimal.Decimal {
	return totalExposure.Mul(fundingRate)
}
