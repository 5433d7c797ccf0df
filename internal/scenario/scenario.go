// Package scenario projects hypothetical price moves onto open positions.
// A what-if move is a per-coin percentage shift; the simulation reprices
// every valuation for its coin's move and reports per-coin and net P/L.
package scenario

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/cryptodesk/leverage-engine/internal/model"
)

// Move bounds. A 50% crash or rally already covers any realistic stress
// test; anything beyond it is a typo.
var (
	MinMovePct = decimal.NewFromInt(-50)
	MaxMovePct = decimal.NewFromInt(50)
)

// ErrMoveOutOfRange is returned for moves outside [-50, 50].
var ErrMoveOutOfRange = errors.New("scenario: move percentage outside [-50, 50]")

var hundred = decimal.NewFromInt(100)

// ValidateMove checks a move percentage against the allowed bounds.
func ValidateMove(pct decimal.Decimal) error {
	if pct.LessThan(MinMovePct) || pct.GreaterThan(MaxMovePct) {
		return ErrMoveOutOfRange
	}
	return nil
}

// Simulate applies the per-coin moves to the valuations and returns one
// row per distinct coin, in first-seen order, plus the net P/L. Coins
// without a configured move are simulated at 0%. P/L accumulates exactly
// and is rounded to cents only on emit.
func Simulate(vals []model.PositionValuation, moves map[string]decimal.Decimal) *model.ScenarioOutcome {
	type agg struct {
		price    decimal.Decimal
		newPrice decimal.Decimal
		movePct  decimal.Decimal
		pnl      decimal.Decimal
	}

	byCoin := make(map[string]*agg)
	order := make([]string, 0, len(vals))

	for _, v := range vals {
		a, ok := byCoin[v.Coin]
		if !ok {
			move := moves[v.Coin]
			a = &agg{
				price:    v.Price,
				newPrice: v.Price.Mul(decimal.NewFromInt(1).Add(move.Div(hundred))),
				movePct:  move,
			}
			byCoin[v.Coin] = a
			order = append(order, v.Coin)
		}
		a.pnl = a.pnl.Add(a.newPrice.Sub(a.price).Mul(v.Tokens))
	}

	outcome := &model.ScenarioOutcome{
		Coins:  make([]model.CoinScenario, 0, len(order)),
		NetPnl: decimal.Zero,
	}
	for _, coin := range order {
		a := byCoin[coin]
		pnl := a.pnl.Round(2)
		outcome.Coins = append(outcome.Coins, model.CoinScenario{
			Coin:     coin,
			MovePct:  a.movePct,
			Price:    a.price,
			NewPrice: a.newPrice,
			Pnl:      pnl,
		})
		outcome.NetPnl = outcome.NetPnl.Add(pnl)
	}
	return outcome
}
