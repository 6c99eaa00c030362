package exchange

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/exchange/hyperliquid"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/logger"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/position"
)

// LiveConfig holds the live backend's fill-waiting parameters.
type LiveConfig struct {
	FillPollInterval time.Duration `json:"fill_poll_interval"`
	FillTimeout      time.Duration `json:"fill_timeout"`
}

// ApplyDefaults fills zero-valued fields with named defaults.
func (c *LiveConfig) ApplyDefaults() {
	if c.FillPollInterval == 0 {
		c.FillPollInterval = 2 * time.Second
	}
	if c.FillTimeout == 0 {
		c.FillTimeout = 30 * time.Second
	}
}

// LiveExecutor submits signed orders to the venue and polls its
// authoritative state until the order is observed filled or the wait
// times out. A timeout is an unknown outcome, resolved by reconciliation
// on the next tick.
type LiveExecutor struct {
	cfg    LiveConfig
	client *hyperliquid.Client
	log    *logger.Logger
}

// NewLiveExecutor creates a live backend over a signing venue client.
func NewLiveExecutor(cfg LiveConfig, client *hyperliquid.Client, log *logger.Logger) *LiveExecutor {
	cfg.ApplyDefaults()
	return &LiveExecutor{cfg: cfg, client: client, log: log}
}

// newCloid derives a client-order-id for idempotent order tracking.
func newCloid() string {
	return "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ExecuteEntry opens a position on the venue. Rejections (confidence
// floor, venue errors) come back as REJECTED orders; an expired fill wait
// comes back as TIMEOUT.
func (l *LiveExecutor) ExecuteEntry(ctx context.Context, req EntryRequest, currentPrice float64) (*Order, error) {
	now := time.Now()
	sig := req.Signal

	order := &Order{
		ID:            uuid.NewString(),
		ClientOrderID: newCloid(),
		Symbol:        sig.Symbol,
		Side:          OrderSide(sig.Direction),
		Type:          OrderTypeMarket,
		Quantity:      req.Quantity,
		Status:        OrderStatusPending,
		StopLoss:      sig.StopLoss,
		TakeProfit:    sig.TakeProfit,
		Leverage:      req.Leverage,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if sig.Confidence < confidenceFloor {
		order.Status = OrderStatusRejected
		order.RejectReason = fmt.Sprintf("signal confidence %.2f below minimum %.2f", sig.Confidence, confidenceFloor)
		return order, nil
	}

	action := hyperliquid.MarketOrder{
		Asset:         sig.Symbol,
		IsBuy:         sig.Direction == "LONG",
		Size:          req.Quantity,
		ClientOrderID: order.ClientOrderID,
	}

	if err := l.client.SubmitOrder(ctx, action); err != nil {
		order.Status = OrderStatusRejected
		order.RejectReason = fmt.Sprintf("venue submission failed: %v", err)
		l.log.LogError("Live entry submission", err)
		return order, nil
	}

	l.waitForFill(ctx, order, currentPrice, -1)
	return order, nil
}

// ExecuteExit closes exitSizePct percent of a venue position. Exit orders
// are always reduce-only so a late fill can never flip the position.
func (l *LiveExecutor) ExecuteExit(ctx context.Context, pos *position.Position, exitSizePct float64, reason string, currentPrice float64) (*Order, error) {
	now := time.Now()

	order := &Order{
		ID:            uuid.NewString(),
		ClientOrderID: newCloid(),
		Symbol:        pos.Symbol,
		Side:          OrderSideClose,
		Type:          OrderTypeMarket,
		Status:        OrderStatusPending,
		ReduceOnly:    true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if exitSizePct <= 0 {
		order.Status = OrderStatusRejected
		order.RejectReason = fmt.Sprintf("exit size %.2f%% must be positive", exitSizePct)
		return order, nil
	}
	if exitSizePct > 100 {
		exitSizePct = 100
	}

	closeQty := pos.Quantity * exitSizePct / 100
	order.Quantity = closeQty

	action := hyperliquid.MarketOrder{
		Asset:         pos.Symbol,
		IsBuy:         pos.Side == position.SideShort, // closing a short buys back
		Size:          closeQty,
		ReduceOnly:    true,
		ClientOrderID: order.ClientOrderID,
	}

	if err := l.client.SubmitOrder(ctx, action); err != nil {
		order.Status = OrderStatusRejected
		order.RejectReason = fmt.Sprintf("venue submission failed: %v", err)
		l.log.LogError("Live exit submission", err)
		return order, nil
	}

	// A partial exit leaves pos.Quantity minus closeQty on the venue; the
	// fill check must compare against that remainder, not against closeQty.
	l.waitForFill(ctx, order, currentPrice, pos.Quantity-closeQty)
	if order.IsFilled() {
		l.log.Trade("LIVE exit %s %.1f%% (%s) filled @ ~%.4f", pos.Symbol, exitSizePct, reason, order.FilledPrice)
	}
	return order, nil
}

// fillSizeTolerance absorbs float rounding in venue-reported sizes when
// comparing against the expected post-fill remainder.
const fillSizeTolerance = 1e-6

// waitForFill polls the venue on a fixed interval until the order is
// observed filled or the timeout elapses. A fill is recognized when the
// client-order-id leaves the open-order set and the venue position matches
// the expected outcome: present for entries, shrunk to remainingTarget or
// below for exits (remainingTarget < 0 means entry). Expiry yields
// TIMEOUT, not an error.
func (l *LiveExecutor) waitForFill(ctx context.Context, order *Order, referencePrice float64, remainingTarget float64) {
	deadline := time.Now().Add(l.cfg.FillTimeout)
	ticker := time.NewTicker(l.cfg.FillPollInterval)
	defer ticker.Stop()

	for {
		if time.Now().After(deadline) {
			order.Status = OrderStatusTimeout
			order.RejectReason = fmt.Sprintf("fill not observed within %s, resolving via reconciliation", l.cfg.FillTimeout)
			order.UpdatedAt = time.Now()
			l.log.Warning("Order %s for %s timed out waiting for fill", order.ClientOrderID, order.Symbol)
			return
		}

		select {
		case <-ctx.Done():
			order.Status = OrderStatusTimeout
			order.RejectReason = "fill wait cancelled, resolving via reconciliation"
			order.UpdatedAt = time.Now()
			return
		case <-ticker.C:
		}

		resting, restingErr := l.orderResting(ctx, order.ClientOrderID)
		if restingErr != nil {
			continue
		}
		if resting {
			continue
		}

		// Not resting anymore: confirm against the position set. Market
		// orders that vanished without a position were rejected by the
		// book; entries that produced a position filled.
		state, err := l.client.ClearinghouseState(ctx)
		if err != nil {
			continue
		}

		var venueQty float64
		for _, ap := range state.AssetPositions {
			if ap.Position.Coin == order.Symbol {
				venueQty = math.Abs(ap.Position.Szi)
			}
		}

		filled := venueQty > 0
		if remainingTarget >= 0 {
			// An exit filled when the venue holds no more than the
			// expected post-exit remainder.
			filled = venueQty <= remainingTarget+fillSizeTolerance
		}

		if filled {
			order.Status = OrderStatusFilled
			order.FilledQty = order.Quantity
			order.FilledPrice = referencePrice
			order.UpdatedAt = time.Now()
			return
		}

		order.Status = OrderStatusRejected
		order.RejectReason = "order left the book without a fill"
		order.UpdatedAt = time.Now()
		return
	}
}

// orderResting reports whether the client-order-id is still in the venue's
// open-order set.
func (l *LiveExecutor) orderResting(ctx context.Context, cloid string) (bool, error) {
	orders, err := l.client.OpenOrders(ctx)
	if err != nil {
		return false, err
	}
	for _, o := range orders {
		if o.Cloid == cloid {
			return true, nil
		}
	}
	return false, nil
}

// RemotePositions converts the venue snapshot into reconciler input.
func (l *LiveExecutor) RemotePositions(ctx context.Context) ([]position.RemotePosition, error) {
	state, err := l.client.ClearinghouseState(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]position.RemotePosition, 0, len(state.AssetPositions))
	for _, ap := range state.AssetPositions {
		vp := ap.Position
		if vp.Szi == 0 {
			continue
		}
		side := position.SideLong
		if vp.Szi < 0 {
			side = position.SideShort
		}
		out = append(out, position.RemotePosition{
			Symbol:     vp.Coin,
			Side:       side,
			Quantity:   math.Abs(vp.Szi),
			EntryPrice: vp.EntryPx,
			Leverage:   vp.Leverage.Value,
		})
	}
	return out, nil
}

// MarginLevel returns account value over margin used, 0 when no margin is
// in use.
func (l *LiveExecutor) MarginLevel(ctx context.Context) (float64, error) {
	state, err := l.client.ClearinghouseState(ctx)
	if err != nil {
		return 0, err
	}
	if state.MarginSummary.TotalMarginUsed <= 0 {
		return 0, nil
	}
	return state.MarginSummary.AccountValue / state.MarginSummary.TotalMarginUsed, nil
}

// APICounters delegates to the venue client's running counters.
func (l *LiveExecutor) APICounters() (int, int) {
	return l.client.APICounters()
}
