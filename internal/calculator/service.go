// Package calculator exposes the leverage engine over HTTP: position CRUD,
// valuation and portfolio views, what-if scenarios, market data, position
// import/export, and a WebSocket feed of workspace change events.
//
// All monetary values use shopspring/decimal — never float64 for money.
package calculator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cryptodesk/leverage-engine/internal/export"
	"github.com/cryptodesk/leverage-engine/internal/metrics"
	"github.com/cryptodesk/leverage-engine/internal/model"
	"github.com/cryptodesk/leverage-engine/internal/portfolio"
	"github.com/cryptodesk/leverage-engine/internal/pricing"
	"github.com/cryptodesk/leverage-engine/internal/scenario"
	"github.com/cryptodesk/leverage-engine/internal/valuation"
	"github.com/cryptodesk/leverage-engine/internal/workspace"
)

// Service handles calculator operations over a single-user workspace.
type Service struct {
	ws     *workspace.Workspace
	live   pricing.Source
	static pricing.Source
	agg    *portfolio.Aggregator
	hub    *Hub // optional WebSocket hub for change events
	limit  int
	log    zerolog.Logger
}

// NewService creates a calculator service. live is the full market data
// chain; static is the offline source used when live prices are switched
// off in the settings. Pass nil for hub if WebSocket events are not needed.
func NewService(ws *workspace.Workspace, live, static pricing.Source, topCoinLimit int, hub *Hub, log zerolog.Logger) *Service {
	if topCoinLimit <= 0 {
		topCoinLimit = pricing.DefaultTopCoinLimit
	}
	return &Service{
		ws:     ws,
		live:   live,
		static: static,
		agg:    portfolio.NewAggregator(nil),
		hub:    hub,
		limit:  topCoinLimit,
		log:    log.With().Str("component", "calculator").Logger(),
	}
}

// source picks the market data source for the current settings.
func (s *Service) source() pricing.Source {
	if s.ws.Settings().UseLivePrices {
		return s.live
	}
	return s.static
}

// RegisterRoutes mounts the calculator API onto the router, typically under
// /api/v1.
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/positions", s.ListPositions)
	r.Post("/positions", s.AddPosition)
	r.Delete("/positions", s.ClearPositions)
	r.Get("/positions/export", s.ExportPositions)
	r.Post("/positions/import", s.ImportPositions)
	r.Put("/positions/{positionID}", s.UpdatePosition)
	r.Delete("/positions/{positionID}", s.RemovePosition)

	r.Get("/valuations", s.GetValuations)
	r.Get("/valuations/export.csv", s.ExportValuationsCSV)
	r.Get("/portfolio", s.GetPortfolio)

	r.Get("/scenario", s.GetScenario)
	r.Delete("/scenario", s.ResetScenario)
	r.Put("/scenario/{coin}", s.SetScenarioMove)

	r.Get("/coins", s.ListCoins)
	r.Get("/coins/{coinID}/history", s.GetCoinHistory)

	r.Get("/settings", s.GetSettings)
	r.Put("/settings", s.UpdateSettings)

	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
}

// --- Request/Response types ---

// AddPositionRequest is the JSON body for POST /positions. An empty body
// or coin adds a default position.
type AddPositionRequest struct {
	Coin string `json:"coin"`
}

// UpdatePositionRequest is the JSON body for PUT /positions/{positionID}.
type UpdatePositionRequest struct {
	Coin          string          `json:"coin"`
	Margin        decimal.Decimal `json:"margin"`
	Leverage      decimal.Decimal `json:"leverage"`
	StopLossPct   int             `json:"stop_loss_pct"`
	TakeProfitPct int             `json:"take_profit_pct"`
}

// ValuationsResponse is the JSON body returned from GET /valuations.
type ValuationsResponse struct {
	Valuations   []model.PositionValuation `json:"valuations"`
	SkippedCount int                       `json:"skipped_count"`
	PriceSource  string                    `json:"price_source"`
	FetchedAt    time.Time                 `json:"fetched_at"`
}

// ScenarioMoveRequest is the JSON body for PUT /scenario/{coin}.
type ScenarioMoveRequest struct {
	MovePct decimal.Decimal `json:"move_pct"`
}

// ScenarioResponse is the JSON body returned from GET /scenario.
type ScenarioResponse struct {
	Moves   map[string]decimal.Decimal `json:"moves"`
	Outcome *model.ScenarioOutcome     `json:"outcome"`
}

// CoinsResponse is the JSON body returned from GET /coins.
type CoinsResponse struct {
	Coins         []pricing.Coin `json:"coins"`
	Source        string         `json:"source"`
	FetchedAt     time.Time      `json:"fetched_at"`
	LastAddedCoin string         `json:"last_added_coin,omitempty"`
}

// HistoryResponse is the JSON body returned from GET /coins/{coinID}/history.
type HistoryResponse struct {
	History *pricing.History      `json:"history"`
	Stats   *pricing.HistoryStats `json:"stats,omitempty"`
}

// ImportResponse is the JSON body returned from POST /positions/import.
type ImportResponse struct {
	Imported int `json:"imported"`
}

// UpdateSettingsRequest is the JSON body for PUT /settings. Absent fields
// keep their current value.
type UpdateSettingsRequest struct {
	MaintenanceMarginPct *decimal.Decimal `json:"maintenance_margin_pct,omitempty"`
	FundingRate          *decimal.Decimal `json:"funding_rate,omitempty"`
	UseLivePrices        *bool            `json:"use_live_prices,omitempty"`
}

// --- Valuation plumbing ---

// valuationInputs loads the coin table and spot snapshot, merges them into
// quotes, and values every position. A spot failure degrades to table
// prices; a coin table failure is fatal for the request.
func (s *Service) valuationInputs(ctx context.Context) ([]model.PositionValuation, int, *pricing.CoinTable, *pricing.PriceTable, error) {
	src := s.source()

	table, err := src.TopCoins(ctx, s.limit)
	if err != nil {
		return nil, 0, nil, nil, err
	}

	spot, err := src.CurrentPrices(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("spot snapshot unavailable, using coin table prices")
		spot = nil
	}

	quotes := pricing.Quotes(table, spot)
	vals, skipped := valuation.ValuateAll(s.ws.Positions(), quotes, s.ws.Settings().MaintenanceMarginPct)
	metrics.ValuationPasses.Inc()
	return vals, skipped, table, spot, nil
}

// provenance reports which source priced the response and when.
func provenance(table *pricing.CoinTable, spot *pricing.PriceTable) (string, time.Time) {
	if spot != nil {
		return spot.Source, spot.FetchedAt
	}
	return table.Source, table.FetchedAt
}

// resolveCoin upcases the symbol and checks it against the coin table.
func (s *Service) resolveCoin(ctx context.Context, symbol string) (string, error) {
	coin := strings.ToUpper(strings.TrimSpace(symbol))
	if coin == "" {
		return "", errors.New("coin is required")
	}
	table, err := s.source().TopCoins(ctx, s.limit)
	if err != nil {
		return "", err
	}
	if _, ok := table.Coins[coin]; !ok {
		return "", errors.New("unknown coin: " + coin)
	}
	return coin, nil
}

// --- Position handlers ---

// ListPositions handles GET /api/v1/positions.
func (s *Service) ListPositions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.ws.Positions())
}

// AddPosition handles POST /api/v1/positions.
func (s *Service) AddPosition(w http.ResponseWriter, r *http.Request) {
	var req AddPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Coin) == "" {
		req.Coin = workspace.DefaultCoin
	}

	coin, err := s.resolveCoin(r.Context(), req.Coin)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	p := s.ws.Add(coin)
	metrics.OpenPositions.Set(float64(s.ws.Len()))

	s.log.Info().
		Str("id", p.ID).
		Str("coin", p.Coin).
		Msg("position added")
	s.notify(Event{Type: EventPositionAdded, PositionID: p.ID, Coin: p.Coin})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(p)
}

// UpdatePosition handles PUT /api/v1/positions/{positionID}.
func (s *Service) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	positionID := chi.URLParam(r, "positionID")

	var req UpdatePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	coin, err := s.resolveCoin(r.Context(), req.Coin)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := s.ws.Update(positionID, coin, req.Margin, req.Leverage, req.StopLossPct, req.TakeProfitPct)
	if errors.Is(err, workspace.ErrPositionNotFound) {
		writeError(w, "position not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.log.Info().
		Str("id", updated.ID).
		Str("coin", updated.Coin).
		Str("margin", updated.Margin.String()).
		Str("leverage", updated.Leverage.String()).
		Msg("position updated")
	s.notify(Event{Type: EventPositionUpdated, PositionID: updated.ID, Coin: updated.Coin})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// RemovePosition handles DELETE /api/v1/positions/{positionID}.
func (s *Service) RemovePosition(w http.ResponseWriter, r *http.Request) {
	positionID := chi.URLParam(r, "positionID")

	if err := s.ws.Remove(positionID); err != nil {
		writeError(w, "position not found", http.StatusNotFound)
		return
	}
	metrics.OpenPositions.Set(float64(s.ws.Len()))
	s.notify(Event{Type: EventPositionRemoved, PositionID: positionID})

	w.WriteHeader(http.StatusNoContent)
}

// ClearPositions handles DELETE /api/v1/positions.
func (s *Service) ClearPositions(w http.ResponseWriter, r *http.Request) {
	n := s.ws.Clear()
	metrics.OpenPositions.Set(0)

	s.log.Info().Int("removed", n).Msg("positions cleared")
	s.notify(Event{Type: EventPositionsCleared})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"removed": n})
}

// --- Valuation and portfolio handlers ---

// GetValuations handles GET /api/v1/valuations.
func (s *Service) GetValuations(w http.ResponseWriter, r *http.Request) {
	vals, skipped, table, spot, err := s.valuationInputs(r.Context())
	if err != nil {
		writeError(w, "failed to load market data", http.StatusBadGateway)
		return
	}
	if vals == nil {
		vals = []model.PositionValuation{}
	}
	source, fetchedAt := provenance(table, spot)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ValuationsResponse{
		Valuations:   vals,
		SkippedCount: skipped,
		PriceSource:  source,
		FetchedAt:    fetchedAt,
	})
}

// GetPortfolio handles GET /api/v1/portfolio.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	vals, skipped, _, _, err := s.valuationInputs(r.Context())
	if err != nil {
		writeError(w, "failed to load market data", http.StatusBadGateway)
		return
	}

	summary := s.agg.Aggregate(vals, skipped, s.ws.Settings())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// --- Scenario handlers ---

// GetScenario handles GET /api/v1/scenario.
func (s *Service) GetScenario(w http.ResponseWriter, r *http.Request) {
	vals, _, _, _, err := s.valuationInputs(r.Context())
	if err != nil {
		writeError(w, "failed to load market data", http.StatusBadGateway)
		return
	}

	moves := s.ws.Moves()
	outcome := scenario.Simulate(vals, moves)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ScenarioResponse{Moves: moves, Outcome: outcome})
}

// SetScenarioMove handles PUT /api/v1/scenario/{coin}.
func (s *Service) SetScenarioMove(w http.ResponseWriter, r *http.Request) {
	var req ScenarioMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	coin, err := s.resolveCoin(r.Context(), chi.URLParam(r, "coin"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.ws.SetMove(coin, req.MovePct); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.log.Info().
		Str("coin", coin).
		Str("move_pct", req.MovePct.String()).
		Msg("scenario move set")
	s.notify(Event{Type: EventScenarioUpdated, Coin: coin})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"coin": coin, "move_pct": req.MovePct})
}

// ResetScenario handles DELETE /api/v1/scenario.
func (s *Service) ResetScenario(w http.ResponseWriter, r *http.Request) {
	n := s.ws.ResetMoves()
	s.notify(Event{Type: EventScenarioReset})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"reset": n})
}

// --- Market data handlers ---

// ListCoins handles GET /api/v1/coins.
// Returns the coin table, optionally resized by ?limit=<n>.
func (s *Service) ListCoins(w http.ResponseWriter, r *http.Request) {
	limit := s.limit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	table, err := s.source().TopCoins(r.Context(), limit)
	if err != nil {
		writeError(w, "failed to load coin table", http.StatusBadGateway)
		return
	}

	coins := make([]pricing.Coin, 0, len(table.Coins))
	for _, c := range table.Coins {
		coins = append(coins, c)
	}
	sort.Slice(coins, func(i, j int) bool { return coins[i].Symbol < coins[j].Symbol })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CoinsResponse{
		Coins:         coins,
		Source:        table.Source,
		FetchedAt:     table.FetchedAt,
		LastAddedCoin: s.ws.LastAddedCoin(),
	})
}

// GetCoinHistory handles GET /api/v1/coins/{coinID}/history.
// Returns the daily series for ?days=<n> (default 7) with summary stats.
func (s *Service) GetCoinHistory(w http.ResponseWriter, r *http.Request) {
	coinID := chi.URLParam(r, "coinID")

	days := pricing.DefaultHistoryDays
	if q := r.URL.Query().Get("days"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > 365 {
			writeError(w, "days must be between 1 and 365", http.StatusBadRequest)
			return
		}
		days = n
	}

	hist, err := s.source().History(r.Context(), coinID, days)
	if err != nil {
		writeError(w, "failed to load price history", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HistoryResponse{
		History: hist,
		Stats:   pricing.Stats(hist),
	})
}

// --- Import/export handlers ---

// ExportPositions handles GET /api/v1/positions/export.
// Returns the position list in its JSON interchange form, as a download.
func (s *Service) ExportPositions(w http.ResponseWriter, r *http.Request) {
	records := export.Records(s.ws.Positions())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="positions.json"`)
	json.NewEncoder(w).Encode(records)
}

// ImportPositions handles POST /api/v1/positions/import.
// Replaces the whole position list; a bad payload changes nothing.
func (s *Service) ImportPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := export.Parse(r.Body)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	n, err := s.ws.Replace(positions)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	metrics.OpenPositions.Set(float64(n))

	s.log.Info().Int("imported", n).Msg("positions imported")
	s.notify(Event{Type: EventPositionsImported})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ImportResponse{Imported: n})
}

// ExportValuationsCSV handles GET /api/v1/valuations/export.csv.
func (s *Service) ExportValuationsCSV(w http.ResponseWriter, r *http.Request) {
	vals, _, _, _, err := s.valuationInputs(r.Context())
	if err != nil {
		writeError(w, "failed to load market data", http.StatusBadGateway)
		return
	}

	data, err := export.ValuationsCSV(vals)
	if err != nil {
		writeError(w, "failed to render csv", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="valuations.csv"`)
	w.Write([]byte(data))
}

// --- Settings handlers ---

// GetSettings handles GET /api/v1/settings.
func (s *Service) GetSettings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.ws.Settings())
}

// UpdateSettings handles PUT /api/v1/settings.
// Absent fields keep their current value.
func (s *Service) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	next := s.ws.Settings()
	if req.MaintenanceMarginPct != nil {
		next.MaintenanceMarginPct = *req.MaintenanceMarginPct
	}
	if req.FundingRate != nil {
		next.FundingRate = *req.FundingRate
	}
	if req.UseLivePrices != nil {
		next.UseLivePrices = *req.UseLivePrices
	}

	if err := s.ws.UpdateSettings(next); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.log.Info().
		Str("maintenance_margin_pct", next.MaintenanceMarginPct.String()).
		Str("funding_rate", next.FundingRate.String()).
		Bool("use_live_prices", next.UseLivePrices).
		Msg("settings updated")
	s.notify(Event{Type: EventSettingsUpdated})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(next)
}

// notify broadcasts a change event stamped with the current revision.
func (s *Service) notify(ev Event) {
	if s.hub == nil {
		return
	}
	ev.Revision = s.ws.Revision()
	s.hub.Broadcast(ev)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
