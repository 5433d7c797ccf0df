// Package workspace owns the mutable session state: the position list,
// the what-if scenario moves, and the engine settings. Everything else in
// the engine is pure computation over snapshots taken from here.
//
// All methods are safe for concurrent use and hand out copies, never
// internal slices or maps.
package workspace

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cryptodesk/leverage-engine/internal/model"
	"github.com/cryptodesk/leverage-engine/internal/scenario"
)

var (
	ErrPositionNotFound            = errors.New("workspace: position not found")
	ErrEmptyCoin                   = errors.New("workspace: coin must not be empty")
	ErrNegativeMargin              = errors.New("workspace: margin must not be negative")
	ErrNegativeLeverage            = errors.New("workspace: leverage must not be negative")
	ErrPercentOutOfRange           = errors.New("workspace: percentage outside [0, 100]")
	ErrMaintenanceMarginOutOfRange = errors.New("workspace: maintenance margin outside [0.1, 5.0]")
	ErrNegativeFundingRate         = errors.New("workspace: funding rate must not be negative")
)

// DefaultCoin is the symbol a freshly added position starts on.
const DefaultCoin = "BTC"

var (
	minMaintenanceMargin = decimal.NewFromFloat(0.1)
	maxMaintenanceMargin = decimal.NewFromFloat(5.0)
)

// Workspace is the single-user session state.
type Workspace struct {
	mu            sync.RWMutex
	positions     []model.Position
	moves         map[string]decimal.Decimal
	settings      model.Settings
	lastAddedCoin string
	revision      uint64
}

// New returns a workspace starting from the given settings.
func New(settings model.Settings) *Workspace {
	return &Workspace{
		moves:    make(map[string]decimal.Decimal),
		settings: settings,
	}
}

// Add inserts a blank position at the head of the list, the way a row
// appears at the top of a position table, and returns it. An empty coin
// defaults to DefaultCoin.
func (w *Workspace) Add(coin string) model.Position {
	coin = strings.ToUpper(strings.TrimSpace(coin))
	if coin == "" {
		coin = DefaultCoin
	}

	p := model.Position{
		ID:       uuid.New().String(),
		Coin:     coin,
		Margin:   decimal.Zero,
		Leverage: decimal.Zero,
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.positions = append([]model.Position{p}, w.positions...)
	w.lastAddedCoin = coin
	w.revision++
	return p
}

func validatePosition(p model.Position) error {
	if strings.TrimSpace(p.Coin) == "" {
		return ErrEmptyCoin
	}
	if p.Margin.IsNegative() {
		return ErrNegativeMargin
	}
	if p.Leverage.IsNegative() {
		return ErrNegativeLeverage
	}
	if p.StopLossPct < 0 || p.StopLossPct > 100 {
		return ErrPercentOutOfRange
	}
	if p.TakeProfitPct < 0 || p.TakeProfitPct > 100 {
		return ErrPercentOutOfRange
	}
	return nil
}

// Update replaces every field of the identified position.
func (w *Workspace) Update(id, coin string, margin, leverage decimal.Decimal, stopLossPct, takeProfitPct int) (model.Position, error) {
	p := model.Position{
		ID:            id,
		Coin:          strings.ToUpper(strings.TrimSpace(coin)),
		Margin:        margin,
		Leverage:      leverage,
		StopLossPct:   stopLossPct,
		TakeProfitPct: takeProfitPct,
	}
	if err := validatePosition(p); err != nil {
		return model.Position{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.positions {
		if w.positions[i].ID == id {
			w.positions[i] = p
			w.revision++
			return p, nil
		}
	}
	return model.Position{}, ErrPositionNotFound
}

// Remove deletes the identified position.
func (w *Workspace) Remove(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.positions {
		if w.positions[i].ID == id {
			w.positions = append(w.positions[:i], w.positions[i+1:]...)
			w.revision++
			return nil
		}
	}
	return ErrPositionNotFound
}

// Clear removes every position and returns how many were dropped.
func (w *Workspace) Clear() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(w.positions)
	w.positions = nil
	if n > 0 {
		w.revision++
	}
	return n
}

// Positions returns a copy of the position list in display order.
func (w *Workspace) Positions() []model.Position {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]model.Position, len(w.positions))
	copy(out, w.positions)
	return out
}

// Len returns the number of positions.
func (w *Workspace) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.positions)
}

// Replace swaps the whole position list for the incoming one, as an import
// does. Every position is validated before anything changes, so a bad list
// leaves the workspace untouched. Positions without an ID get one.
func (w *Workspace) Replace(incoming []model.Position) (int, error) {
	next := make([]model.Position, len(incoming))
	for i, p := range incoming {
		p.Coin = strings.ToUpper(strings.TrimSpace(p.Coin))
		if err := validatePosition(p); err != nil {
			return 0, fmt.Errorf("position %d: %w", i, err)
		}
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		next[i] = p
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.positions = next
	if len(next) > 0 {
		w.lastAddedCoin = next[0].Coin
	}
	w.revision++
	return len(next), nil
}

// SetMove stores a what-if move for the coin.
func (w *Workspace) SetMove(coin string, pct decimal.Decimal) error {
	if err := scenario.ValidateMove(pct); err != nil {
		return err
	}
	coin = strings.ToUpper(strings.TrimSpace(coin))
	if coin == "" {
		return ErrEmptyCoin
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.moves[coin] = pct
	w.revision++
	return nil
}

// Moves returns a copy of the configured what-if moves.
func (w *Workspace) Moves() map[string]decimal.Decimal {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(w.moves))
	for coin, pct := range w.moves {
		out[coin] = pct
	}
	return out
}

// ResetMoves drops all what-if moves and returns how many were set.
func (w *Workspace) ResetMoves() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(w.moves)
	w.moves = make(map[string]decimal.Decimal)
	if n > 0 {
		w.revision++
	}
	return n
}

// Settings returns the current engine settings.
func (w *Workspace) Settings() model.Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.settings
}

// UpdateSettings validates and applies new engine settings.
func (w *Workspace) UpdateSettings(s model.Settings) error {
	if s.MaintenanceMarginPct.LessThan(minMaintenanceMargin) || s.MaintenanceMarginPct.GreaterThan(maxMaintenanceMargin) {
		return ErrMaintenanceMarginOutOfRange
	}
	if s.FundingRate.IsNegative() {
		return ErrNegativeFundingRate
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.settings = s
	w.revision++
	return nil
}

// LastAddedCoin returns the coin of the most recently added or imported
// head position, or empty when nothing was added yet.
func (w *Workspace) LastAddedCoin() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastAddedCoin
}

// Revision increments on every mutation. Change events carry it so clients
// can drop stale updates.
func (w *Workspace) Revision() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.revision
}
