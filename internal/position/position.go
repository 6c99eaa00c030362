package position

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Side is the direction of an open position. Quantity is always kept as a
// non-negative magnitude; direction is encoded here.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Position represents one open leveraged position. At most one Position
// exists per symbol.
type Position struct {
	Symbol       string  `json:"symbol"`
	Side         Side    `json:"side"`
	Quantity     float64 `json:"quantity"` // base units, >= 0
	EntryPrice   float64 `json:"entry_price"`
	Leverage     float64 `json:"leverage"`
	CurrentPrice float64 `json:"current_price"`

	UnrealizedPnL    float64 `json:"unrealized_pnl"`     // quote units
	UnrealizedPnLPct float64 `json:"unrealized_pnl_pct"` // % of margin

	EntryTime time.Time `json:"entry_time"`

	// Optional protective levels, zero means unset.
	StopLoss        float64 `json:"stop_loss,omitempty"`
	TakeProfit      float64 `json:"take_profit,omitempty"`
	TrailingStopPct float64 `json:"trailing_stop_pct,omitempty"`
	TrailingActive  bool    `json:"trailing_active"`

	// Running extremes since entry, ratcheted on every price refresh.
	HighestPrice float64 `json:"highest_price"`
	LowestPrice  float64 `json:"lowest_price"`

	RMultiple float64 `json:"r_multiple"`
}

// Notional returns the position's notional value at entry.
func (p *Position) Notional() float64 {
	return p.Quantity * p.EntryPrice
}

// Margin returns the margin committed to the position.
func (p *Position) Margin() float64 {
	if p.Leverage <= 0 {
		return p.Notional()
	}
	return p.Notional() / p.Leverage
}

// RefreshPrice updates the current price, unrealized PnL, running extremes
// and the R-multiple. Exit evaluation must always run after this for the
// same tick so that decisions see a refreshed price.
func (p *Position) RefreshPrice(price float64) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return
	}

	p.CurrentPrice = price

	if price > p.HighestPrice {
		p.HighestPrice = price
	}
	if p.LowestPrice == 0 || price < p.LowestPrice {
		p.LowestPrice = price
	}

	p.UnrealizedPnL = p.pnlAt(price, p.Quantity)
	margin := p.Margin()
	if margin > 0 {
		p.UnrealizedPnLPct = p.UnrealizedPnL / margin * 100
	}

	if p.StopLoss > 0 {
		risk := math.Abs(p.EntryPrice-p.StopLoss) * p.Quantity
		if risk > 0 {
			p.RMultiple = p.UnrealizedPnL / risk
		}
	}
}

// pnlAt returns the absolute PnL for qty units closed at the given price.
func (p *Position) pnlAt(price, qty float64) float64 {
	if p.Side == SideLong {
		return (price - p.EntryPrice) * qty
	}
	return (p.EntryPrice - price) * qty
}

// TradeRecord is the immutable record of a closed (or partially closed)
// position slice.
type TradeRecord struct {
	ID       string  `json:"id"`
	Symbol   string  `json:"symbol"`
	Side     Side    `json:"side"`
	Quantity float64 `json:"quantity"`
	Leverage float64 `json:"leverage"`

	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`

	EntryTime   time.Time     `json:"entry_time"`
	ExitTime    time.Time     `json:"exit_time"`
	HoldingTime time.Duration `json:"holding_time"`

	PnL       float64 `json:"pnl"`     // quote units
	PnLPct    float64 `json:"pnl_pct"` // % of margin committed to the closed slice
	RMultiple float64 `json:"r_multiple"`

	ExitReason      string `json:"exit_reason"`
	HitStopLoss     bool   `json:"hit_stop_loss"`
	HitTakeProfit   bool   `json:"hit_take_profit"`
	ConditionsFired int    `json:"conditions_fired"`
}

// Store is the single-owner keyed position store (symbol -> Position).
// All mutation is routed through the orchestrator tick; the Store itself
// carries no lock.
type Store struct {
	positions map[string]*Position
}

// NewStore creates an empty position store.
func NewStore() *Store {
	return &Store{positions: make(map[string]*Position)}
}

// Get returns the open position for a symbol, if any.
func (s *Store) Get(symbol string) (*Position, bool) {
	p, ok := s.positions[symbol]
	return p, ok
}

// Has reports whether a position is open for the symbol.
func (s *Store) Has(symbol string) bool {
	_, ok := s.positions[symbol]
	return ok
}

// Len returns the number of open positions.
func (s *Store) Len() int {
	return len(s.positions)
}

// Upsert inserts or replaces the position for its symbol.
func (s *Store) Upsert(p *Position) {
	s.positions[p.Symbol] = p
}

// Remove deletes the position for a symbol.
func (s *Store) Remove(symbol string) {
	delete(s.positions, symbol)
}

// All returns the open positions as a slice. Order is not deterministic.
func (s *Store) All() []*Position {
	out := make([]*Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out
}

// Snapshot returns value copies of all positions for serialization.
func (s *Store) Snapshot() []Position {
	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, *p)
	}
	return out
}

// Restore rebuilds the keyed map from a serialized position list.
func (s *Store) Restore(positions []Position) {
	s.positions = make(map[string]*Position, len(positions))
	for i := range positions {
		p := positions[i]
		s.positions[p.Symbol] = &p
	}
}

// Open registers a new position created by a filled entry order.
// It fails if a position is already open for the symbol.
func (s *Store) Open(p *Position) error {
	if _, exists := s.positions[p.Symbol]; exists {
		return fmt.Errorf("position already open for %s", p.Symbol)
	}
	if p.Quantity < 0 {
		return fmt.Errorf("negative quantity %.8f for %s", p.Quantity, p.Symbol)
	}
	if p.HighestPrice == 0 {
		p.HighestPrice = p.EntryPrice
	}
	if p.LowestPrice == 0 {
		p.LowestPrice = p.EntryPrice
	}
	s.positions[p.Symbol] = p
	return nil
}

// ApplyExitFill applies a filled exit order to the tracked position:
// it shrinks the quantity (partial close) or removes the position entirely,
// and atomically produces the TradeRecord for the closed slice.
func (s *Store) ApplyExitFill(symbol string, fillPrice, exitSizePct float64, reason string, conditionsFired int, ts time.Time) (*TradeRecord, error) {
	p, ok := s.positions[symbol]
	if !ok {
		return nil, fmt.Errorf("no open position for %s", symbol)
	}
	if exitSizePct <= 0 {
		return nil, fmt.Errorf("exit size %.2f%% for %s: must be positive", exitSizePct, symbol)
	}
	if exitSizePct > 100 {
		exitSizePct = 100
	}

	closedQty := p.Quantity * exitSizePct / 100
	pnl := p.pnlAt(fillPrice, closedQty)

	closedMargin := 0.0
	if p.Leverage > 0 {
		closedMargin = closedQty * p.EntryPrice / p.Leverage
	}
	pnlPct := 0.0
	if closedMargin > 0 {
		pnlPct = pnl / closedMargin * 100
	}

	rMultiple := 0.0
	if p.StopLoss > 0 {
		risk := math.Abs(p.EntryPrice-p.StopLoss) * closedQty
		if risk > 0 {
			rMultiple = pnl / risk
		}
	}

	record := &TradeRecord{
		ID:              uuid.NewString(),
		Symbol:          p.Symbol,
		Side:            p.Side,
		Quantity:        closedQty,
		Leverage:        p.Leverage,
		EntryPrice:      p.EntryPrice,
		ExitPrice:       fillPrice,
		EntryTime:       p.EntryTime,
		ExitTime:        ts,
		HoldingTime:     ts.Sub(p.EntryTime),
		PnL:             pnl,
		PnLPct:          pnlPct,
		RMultiple:       rMultiple,
		ExitReason:      reason,
		HitStopLoss:     reason == string(ExitStopLoss),
		HitTakeProfit:   reason == string(ExitTakeProfit),
		ConditionsFired: conditionsFired,
	}

	if exitSizePct >= 100 {
		delete(s.positions, symbol)
	} else {
		p.Quantity -= closedQty
	}

	return record, nil
}
