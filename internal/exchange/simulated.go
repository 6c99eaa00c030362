package exchange

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/logger"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/position"
)

// SimConfig holds the paper-trading backend configuration.
type SimConfig struct {
	InitialBalance  float64 `json:"initial_balance"`
	BaseSlippagePct float64 `json:"base_slippage_pct"`
}

// ApplyDefaults fills zero-valued fields with named defaults.
func (c *SimConfig) ApplyDefaults() {
	if c.InitialBalance == 0 {
		c.InitialBalance = 10000
	}
	if c.BaseSlippagePct == 0 {
		c.BaseSlippagePct = 0.05
	}
}

// virtualPosition is the simulator's own ledger entry; it mirrors what a
// venue would report and backs reconciliation in paper mode.
type virtualPosition struct {
	symbol     string
	side       position.Side
	quantity   float64
	entryPrice float64
	leverage   float64
	margin     float64
}

// SimulatedExecutor fills orders against a virtual ledger with a slippage
// model. Entry margin is deducted from the virtual balance; exits return
// margin plus PnL computed against the margin actually used for the closed
// portion.
type SimulatedExecutor struct {
	cfg       SimConfig
	balance   float64
	positions map[string]*virtualPosition
	rng       *rand.Rand
	log       *logger.Logger
}

// NewSimulatedExecutor creates a paper-trading backend.
func NewSimulatedExecutor(cfg SimConfig, log *logger.Logger) *SimulatedExecutor {
	cfg.ApplyDefaults()
	return &SimulatedExecutor{
		cfg:       cfg,
		balance:   cfg.InitialBalance,
		positions: make(map[string]*virtualPosition),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		log:       log,
	}
}

// Balance returns the current virtual balance.
func (s *SimulatedExecutor) Balance() float64 {
	return s.balance
}

// slippage returns the base slippage percentage with a ±20% random
// variation.
func (s *SimulatedExecutor) slippage() float64 {
	variation := 1 + (s.rng.Float64()*0.4 - 0.2)
	return s.cfg.BaseSlippagePct * variation
}

// fillPrice applies slippage against the requester's favor: long entries
// fill higher, short entries lower; reversed on exit.
func (s *SimulatedExecutor) fillPrice(price float64, side position.Side, isExit bool) float64 {
	slip := s.slippage() / 100

	adverseUp := side == position.SideLong
	if isExit {
		adverseUp = !adverseUp
	}

	if adverseUp {
		return price * (1 + slip)
	}
	return price * (1 - slip)
}

// ExecuteEntry fills an entry against the virtual balance. Rejections are
// returned as Orders with status REJECTED, never as errors.
func (s *SimulatedExecutor) ExecuteEntry(ctx context.Context, req EntryRequest, currentPrice float64) (*Order, error) {
	now := time.Now()
	sig := req.Signal

	order := &Order{
		ID:         uuid.NewString(),
		Symbol:     sig.Symbol,
		Side:       OrderSide(sig.Direction),
		Type:       OrderTypeMarket,
		Quantity:   req.Quantity,
		Status:     OrderStatusPending,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Leverage:   req.Leverage,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if sig.Confidence < confidenceFloor {
		order.Status = OrderStatusRejected
		order.RejectReason = fmt.Sprintf("signal confidence %.2f below minimum %.2f", sig.Confidence, confidenceFloor)
		return order, nil
	}

	if _, open := s.positions[sig.Symbol]; open {
		order.Status = OrderStatusRejected
		order.RejectReason = fmt.Sprintf("position already open for %s", sig.Symbol)
		return order, nil
	}

	side := position.Side(sig.Direction)
	fill := s.fillPrice(currentPrice, side, false)

	leverage := req.Leverage
	if leverage <= 0 {
		leverage = 1
	}
	margin := req.Quantity * fill / leverage

	if margin > s.balance {
		order.Status = OrderStatusRejected
		order.RejectReason = fmt.Sprintf("required margin $%.2f exceeds available balance $%.2f", margin, s.balance)
		return order, nil
	}

	s.balance -= margin
	s.positions[sig.Symbol] = &virtualPosition{
		symbol:     sig.Symbol,
		side:       side,
		quantity:   req.Quantity,
		entryPrice: fill,
		leverage:   leverage,
		margin:     margin,
	}

	order.Status = OrderStatusFilled
	order.FilledQty = req.Quantity
	order.FilledPrice = fill
	order.UpdatedAt = time.Now()

	s.log.Trade("SIM entry %s %s %.6f @ %.4f (margin $%.2f, %.1fx)", sig.Symbol, side, req.Quantity, fill, margin, leverage)

	return order, nil
}

// ExecuteExit closes part or all of a virtual position. PnL is computed
// against the margin used for the closed portion, not notional, and the
// margin plus PnL is returned to the balance.
func (s *SimulatedExecutor) ExecuteExit(ctx context.Context, pos *position.Position, exitSizePct float64, reason string, currentPrice float64) (*Order, error) {
	now := time.Now()

	order := &Order{
		ID:         uuid.NewString(),
		Symbol:     pos.Symbol,
		Side:       OrderSideClose,
		Type:       OrderTypeMarket,
		Status:     OrderStatusPending,
		ReduceOnly: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	vp, ok := s.positions[pos.Symbol]
	if !ok {
		order.Status = OrderStatusRejected
		order.RejectReason = fmt.Sprintf("no simulated position for %s", pos.Symbol)
		return order, nil
	}

	if exitSizePct <= 0 {
		order.Status = OrderStatusRejected
		order.RejectReason = fmt.Sprintf("exit size %.2f%% must be positive", exitSizePct)
		return order, nil
	}
	if exitSizePct > 100 {
		exitSizePct = 100
	}

	fill := s.fillPrice(currentPrice, vp.side, true)
	closedQty := vp.quantity * exitSizePct / 100
	closedMargin := vp.margin * exitSizePct / 100

	var pnl float64
	if vp.side == position.SideLong {
		pnl = (fill - vp.entryPrice) * closedQty
	} else {
		pnl = (vp.entryPrice - fill) * closedQty
	}

	s.balance += closedMargin + pnl

	if exitSizePct >= 100 {
		delete(s.positions, pos.Symbol)
	} else {
		vp.quantity -= closedQty
		vp.margin -= closedMargin
	}

	order.Status = OrderStatusFilled
	order.Quantity = closedQty
	order.FilledQty = closedQty
	order.FilledPrice = fill
	order.UpdatedAt = time.Now()

	pnlPct := 0.0
	if closedMargin > 0 {
		pnlPct = pnl / closedMargin * 100
	}
	s.log.Trade("SIM exit %s %.1f%% @ %.4f (%s): pnl $%.2f (%.2f%% of margin)", pos.Symbol, exitSizePct, fill, reason, pnl, pnlPct)

	return order, nil
}

// RemotePositions reports the virtual ledger, so reconciliation behaves
// identically in paper and live mode.
func (s *SimulatedExecutor) RemotePositions(ctx context.Context) ([]position.RemotePosition, error) {
	out := make([]position.RemotePosition, 0, len(s.positions))
	for _, vp := range s.positions {
		out = append(out, position.RemotePosition{
			Symbol:     vp.symbol,
			Side:       vp.side,
			Quantity:   vp.quantity,
			EntryPrice: vp.entryPrice,
			Leverage:   vp.leverage,
		})
	}
	return out, nil
}

// MarginLevel returns equity over margin used for the virtual account.
func (s *SimulatedExecutor) MarginLevel(ctx context.Context) (float64, error) {
	marginUsed := 0.0
	for _, vp := range s.positions {
		marginUsed += vp.margin
	}
	if marginUsed <= 0 {
		return 0, nil
	}
	return (s.balance + marginUsed) / marginUsed, nil
}

// APICounters always reports zero: the simulator performs no network I/O.
func (s *SimulatedExecutor) APICounters() (int, int) {
	return 0, 0
}
