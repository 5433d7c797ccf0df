package workspace

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cryptodesk/leverage-engine/internal/model"
	"github.com/cryptodesk/leverage-engine/internal/scenario"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newWorkspace() *Workspace {
	return New(model.DefaultSettings())
}

// --- position list tests ---

func TestAdd_HeadInsertWithDefaults(t *testing.T) {
	w := newWorkspace()

	first := w.Add("")
	if first.Coin != DefaultCoin {
		t.Errorf("empty coin should default to %s, got %s", DefaultCoin, first.Coin)
	}
	if first.ID == "" {
		t.Error("added position must get an ID")
	}
	if !first.Margin.IsZero() || !first.Leverage.IsZero() {
		t.Errorf("new position starts blank, got margin=%s leverage=%s", first.Margin, first.Leverage)
	}

	second := w.Add("eth")
	if second.Coin != "ETH" {
		t.Errorf("coin should be upcased, got %s", second.Coin)
	}

	positions := w.Positions()
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions))
	}
	if positions[0].ID != second.ID {
		t.Error("newest position must sit at the head of the list")
	}
	if w.LastAddedCoin() != "ETH" {
		t.Errorf("expected last added coin ETH, got %s", w.LastAddedCoin())
	}
}

func TestUpdate_ReplacesAllFields(t *testing.T) {
	w := newWorkspace()
	p := w.Add("BTC")

	updated, err := w.Update(p.ID, "BTC", d(1000), d(5), 5, 10)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.Margin.Equal(d(1000)) || !updated.Leverage.Equal(d(5)) {
		t.Errorf("unexpected update result: %+v", updated)
	}

	got := w.Positions()[0]
	if got.StopLossPct != 5 || got.TakeProfitPct != 10 {
		t.Errorf("expected triggers 5/10, got %d/%d", got.StopLossPct, got.TakeProfitPct)
	}
}

func TestUpdate_Validation(t *testing.T) {
	w := newWorkspace()
	p := w.Add("BTC")

	tests := []struct {
		name     string
		coin     string
		margin   decimal.Decimal
		leverage decimal.Decimal
		sl, tp   int
		want     error
	}{
		{"empty coin", "", d(100), d(2), 0, 0, ErrEmptyCoin},
		{"negative margin", "BTC", d(-1), d(2), 0, 0, ErrNegativeMargin},
		{"negative leverage", "BTC", d(100), d(-2), 0, 0, ErrNegativeLeverage},
		{"stop-loss above 100", "BTC", d(100), d(2), 101, 0, ErrPercentOutOfRange},
		{"negative take-profit", "BTC", d(100), d(2), 0, -1, ErrPercentOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.Update(p.ID, tt.coin, tt.margin, tt.leverage, tt.sl, tt.tp)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	// Zero margin and leverage are legal: that is just an inert row.
	if _, err := w.Update(p.ID, "BTC", decimal.Zero, decimal.Zero, 0, 0); err != nil {
		t.Errorf("zero margin and leverage must be accepted: %v", err)
	}
}

func TestUpdate_UnknownID(t *testing.T) {
	w := newWorkspace()
	w.Add("BTC")

	_, err := w.Update("no-such-id", "BTC", d(100), d(2), 0, 0)
	if !errors.Is(err, ErrPositionNotFound) {
		t.Errorf("expected ErrPositionNotFound, got %v", err)
	}
}

func TestRemoveAndClear(t *testing.T) {
	w := newWorkspace()
	p1 := w.Add("BTC")
	w.Add("ETH")

	if err := w.Remove(p1.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if w.Len() != 1 {
		t.Errorf("expected 1 position left, got %d", w.Len())
	}
	if err := w.Remove(p1.ID); !errors.Is(err, ErrPositionNotFound) {
		t.Errorf("double remove should fail, got %v", err)
	}

	if n := w.Clear(); n != 1 {
		t.Errorf("expected 1 cleared, got %d", n)
	}
	if w.Len() != 0 {
		t.Errorf("expected empty workspace, got %d", w.Len())
	}
}

func TestPositions_ReturnsCopy(t *testing.T) {
	w := newWorkspace()
	w.Add("BTC")

	snapshot := w.Positions()
	snapshot[0].Coin = "MUTATED"

	if w.Positions()[0].Coin != "BTC" {
		t.Error("mutating the snapshot must not touch the workspace")
	}
}

// --- import tests ---

func TestReplace_SwapsListAndBackfillsIDs(t *testing.T) {
	w := newWorkspace()
	w.Add("SOL")

	incoming := []model.Position{
		{Coin: "btc", Margin: d(1000), Leverage: d(5), StopLossPct: 5},
		{ID: "keep-me", Coin: "ETH", Margin: d(500), Leverage: d(2)},
	}

	n, err := w.Replace(incoming)
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 imported, got %d", n)
	}

	positions := w.Positions()
	if positions[0].ID == "" {
		t.Error("imported position without an ID must get one")
	}
	if positions[0].Coin != "BTC" {
		t.Errorf("imported coin should be upcased, got %s", positions[0].Coin)
	}
	if positions[1].ID != "keep-me" {
		t.Errorf("existing ID must survive import, got %s", positions[1].ID)
	}
	if w.LastAddedCoin() != "BTC" {
		t.Errorf("head coin becomes last added, got %s", w.LastAddedCoin())
	}
}

func TestReplace_InvalidListLeavesStateUntouched(t *testing.T) {
	w := newWorkspace()
	w.Add("BTC")

	bad := []model.Position{
		{Coin: "ETH", Margin: d(100), Leverage: d(2)},
		{Coin: "SOL", Margin: d(-5), Leverage: d(2)},
	}

	_, err := w.Replace(bad)
	if !errors.Is(err, ErrNegativeMargin) {
		t.Fatalf("expected ErrNegativeMargin, got %v", err)
	}
	if w.Len() != 1 || w.Positions()[0].Coin != "BTC" {
		t.Error("failed import must not modify the workspace")
	}
}

// --- scenario move tests ---

func TestSetMove_StoresAndValidates(t *testing.T) {
	w := newWorkspace()

	if err := w.SetMove("btc", d(10)); err != nil {
		t.Fatalf("SetMove: %v", err)
	}
	moves := w.Moves()
	if !moves["BTC"].Equal(d(10)) {
		t.Errorf("expected BTC move 10, got %s", moves["BTC"])
	}

	if err := w.SetMove("BTC", d(75)); !errors.Is(err, scenario.ErrMoveOutOfRange) {
		t.Errorf("expected range error, got %v", err)
	}
	if err := w.SetMove("", d(10)); !errors.Is(err, ErrEmptyCoin) {
		t.Errorf("expected ErrEmptyCoin, got %v", err)
	}
}

func TestResetMoves(t *testing.T) {
	w := newWorkspace()
	_ = w.SetMove("BTC", d(10))
	_ = w.SetMove("ETH", d(-20))

	if n := w.ResetMoves(); n != 2 {
		t.Errorf("expected 2 reset, got %d", n)
	}
	if len(w.Moves()) != 0 {
		t.Error("expected all moves cleared")
	}
}

// --- settings tests ---

func TestUpdateSettings_Validation(t *testing.T) {
	w := newWorkspace()

	ok := model.Settings{MaintenanceMarginPct: d(1.0), FundingRate: d(0.0003), UseLivePrices: false}
	if err := w.UpdateSettings(ok); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	got := w.Settings()
	if !got.MaintenanceMarginPct.Equal(d(1.0)) || got.UseLivePrices {
		t.Errorf("settings not applied: %+v", got)
	}

	tooHigh := ok
	tooHigh.MaintenanceMarginPct = d(5.1)
	if err := w.UpdateSettings(tooHigh); !errors.Is(err, ErrMaintenanceMarginOutOfRange) {
		t.Errorf("expected maintenance margin range error, got %v", err)
	}

	tooLow := ok
	tooLow.MaintenanceMarginPct = d(0.05)
	if err := w.UpdateSettings(tooLow); !errors.Is(err, ErrMaintenanceMarginOutOfRange) {
		t.Errorf("expected maintenance margin range error, got %v", err)
	}

	negRate := ok
	negRate.FundingRate = d(-0.0001)
	if err := w.UpdateSettings(negRate); !errors.Is(err, ErrNegativeFundingRate) {
		t.Errorf("expected funding rate error, got %v", err)
	}
}

// --- revision tests ---

func TestRevision_BumpsOnMutation(t *testing.T) {
	w := newWorkspace()
	if w.Revision() != 0 {
		t.Fatalf("fresh workspace starts at revision 0, got %d", w.Revision())
	}

	p := w.Add("BTC")
	_, _ = w.Update(p.ID, "BTC", d(100), d(2), 0, 0)
	_ = w.SetMove("BTC", d(5))

	if w.Revision() != 3 {
		t.Errorf("expected revision 3 after three mutations, got %d", w.Revision())
	}

	// No-op resets do not bump.
	w.ResetMoves()
	rev := w.Revision()
	w.ResetMoves()
	if w.Revision() != rev {
		t.Error("clearing an empty move set must not bump the revision")
	}
}
