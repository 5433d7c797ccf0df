package risk

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cryptodesk/leverage-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func avg(f float64) *decimal.Decimal {
	v := d(f)
	return &v
}

// --- classification tests ---

func TestAssess_RuleBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		ratio decimal.Decimal
		avg   *decimal.Decimal
		want  model.RiskLevel
	}{
		{"low at both boundaries", d(2), avg(5), model.RiskLow},
		{"tight ratio but loose stops", d(2), avg(6), model.RiskMedium},
		{"high ratio rescued by stops", d(5), avg(8), model.RiskMedium},
		{"ratio just inside medium", d(3), avg(25), model.RiskMedium},
		{"both bounds exceeded", d(5), avg(12), model.RiskHigh},
		{"moderate ratio loose stops", d(2.5), avg(12), model.RiskMedium},
		{"no stops anywhere", d(1), nil, model.RiskHigh},
		{"low wins before medium", d(1), avg(3), model.RiskLow},
	}

	c := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Assess(tt.ratio, tt.avg)
			if got.Level != tt.want {
				t.Errorf("expected %s, got %s (%s)", tt.want, got.Level, got.Rationale)
			}
			if got.Rationale == "" {
				t.Error("rationale must not be empty")
			}
		})
	}
}

func TestAssess_NoStopLossBeatsLowLeverage(t *testing.T) {
	got := NewClassifier().Assess(d(1.2), nil)
	if got.Level != model.RiskHigh {
		t.Errorf("missing stops must force high risk, got %s", got.Level)
	}
	if got.Rationale != "no stop-loss set on any position" {
		t.Errorf("unexpected rationale: %s", got.Rationale)
	}
}

// --- AvgStopLoss tests ---

func TestAvgStopLoss_IgnoresUnsetPositions(t *testing.T) {
	vals := []model.PositionValuation{
		{StopLossPct: 4},
		{StopLossPct: 0},
		{StopLossPct: 8},
	}
	got := AvgStopLoss(vals)
	if got == nil {
		t.Fatal("expected an average, got nil")
	}
	if !got.Equal(d(6)) {
		t.Errorf("expected 6, got %s", got)
	}
}

func TestAvgStopLoss_NilWhenNoneConfigured(t *testing.T) {
	vals := []model.PositionValuation{{StopLossPct: 0}, {StopLossPct: 0}}
	if got := AvgStopLoss(vals); got != nil {
		t.Errorf("expected nil, got %s", got)
	}
	if got := AvgStopLoss(nil); got != nil {
		t.Errorf("expected nil for empty input, got %s", got)
	}
}
