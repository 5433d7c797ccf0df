// Package risk classifies an aggregated portfolio into a coarse risk level
// from its margin-weighted leverage ratio and average stop-loss distance.
//
// The rules overlap on purpose, so they are checked in a fixed order: a
// portfolio with no stop-losses at all is high risk regardless of leverage,
// low risk requires both a modest ratio and tight stops, and medium catches
// everything that clears at least one of the two bars.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cryptodesk/leverage-engine/internal/model"
)

// Classifier holds the rule thresholds. The zero value is not usable;
// construct with NewClassifier.
type Classifier struct {
	// Low requires ratio ≤ LowMaxRatio AND average stop ≤ LowMaxAvgStop.
	LowMaxRatio   decimal.Decimal
	LowMaxAvgStop decimal.Decimal

	// Medium requires ratio ≤ MediumMaxRatio OR average stop ≤ MediumMaxAvgStop.
	MediumMaxRatio   decimal.Decimal
	MediumMaxAvgStop decimal.Decimal
}

// NewClassifier returns a classifier with the default thresholds:
// low at 2x leverage with 5% stops, medium at 3x or 10% stops.
func NewClassifier() *Classifier {
	return &Classifier{
		LowMaxRatio:      decimal.NewFromInt(2),
		LowMaxAvgStop:    decimal.NewFromInt(5),
		MediumMaxRatio:   decimal.NewFromInt(3),
		MediumMaxAvgStop: decimal.NewFromInt(10),
	}
}

// AvgStopLoss returns the mean stop-loss percentage across valuations that
// have one configured, or nil when no position carries a stop-loss.
func AvgStopLoss(vals []model.PositionValuation) *decimal.Decimal {
	sum := decimal.Zero
	count := 0
	for _, v := range vals {
		if v.StopLossPct > 0 {
			sum = sum.Add(decimal.NewFromInt(int64(v.StopLossPct)))
			count++
		}
	}
	if count == 0 {
		return nil
	}
	avg := sum.Div(decimal.NewFromInt(int64(count)))
	return &avg
}

// Assess applies the classification rules in order and returns the first
// level that matches, with a human-readable rationale.
func (c *Classifier) Assess(leverageRatio decimal.Decimal, avgStopLoss *decimal.Decimal) model.RiskAssessment {
	if avgStopLoss == nil {
		return model.RiskAssessment{
			Level:     model.RiskHigh,
			Rationale: "no stop-loss set on any position",
		}
	}
	avg := *avgStopLoss

	if leverageRatio.LessThanOrEqual(c.LowMaxRatio) && avg.LessThanOrEqual(c.LowMaxAvgStop) {
		return model.RiskAssessment{
			Level: model.RiskLow,
			Rationale: fmt.Sprintf("leverage ratio %s with tight average stop-loss %s%%",
				leverageRatio.Round(2), avg.Round(1)),
		}
	}
	if leverageRatio.LessThanOrEqual(c.MediumMaxRatio) || avg.LessThanOrEqual(c.MediumMaxAvgStop) {
		return model.RiskAssessment{
			Level: model.RiskMedium,
			Rationale: fmt.Sprintf("leverage ratio %s, average stop-loss %s%%",
				leverageRatio.Round(2), avg.Round(1)),
		}
	}
	return model.RiskAssessment{
		Level: model.RiskHigh,
		Rationale: fmt.Sprintf("leverage ratio %s exceeds safe bounds with loose stop-losses (avg %s%%)",
			leverageRatio.Round(2), avg.Round(1)),
	}
}
