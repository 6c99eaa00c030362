package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/logger"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/position"
	"github.com/trhieu92/hyperliquid-risk-bot/pkg/types"
)

func newTestSim(t *testing.T, cfg SimConfig) *SimulatedExecutor {
	t.Helper()
	t.Chdir(t.TempDir())
	log, err := logger.NewLogger("test")
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return NewSimulatedExecutor(cfg, log)
}

func longSignal(symbol string, confidence float64) types.Signal {
	return types.Signal{
		Symbol:     symbol,
		Direction:  types.DirectionLong,
		Confidence: confidence,
		StopLoss:   48500,
		Timestamp:  time.Now(),
	}
}

// TestEntryFillsAndDeductsMargin verifies a filled entry books the margin
// against the virtual balance and shows up in RemotePositions.
func TestEntryFillsAndDeductsMargin(t *testing.T) {
	sim := newTestSim(t, SimConfig{InitialBalance: 10000, BaseSlippagePct: 0.05})

	order, err := sim.ExecuteEntry(context.Background(), EntryRequest{
		Signal:   longSignal("BTC", 0.8),
		Quantity: 0.1,
		Leverage: 5,
	}, 50000)
	require.NoError(t, err)
	require.True(t, order.IsFilled())

	// Slippage moves the fill against a long entry.
	assert.Greater(t, order.FilledPrice, 50000.0)
	expectedMargin := 0.1 * order.FilledPrice / 5
	assert.InDelta(t, 10000-expectedMargin, sim.Balance(), 1e-6)

	remote, err := sim.RemotePositions(context.Background())
	require.NoError(t, err)
	require.Len(t, remote, 1)
	assert.Equal(t, "BTC", remote[0].Symbol)
	assert.Equal(t, 0.1, remote[0].Quantity)
}

// TestEntryConfidenceFloor verifies 0.59 is rejected and 0.60 accepted,
// with the rejection carried on the order rather than an error.
func TestEntryConfidenceFloor(t *testing.T) {
	sim := newTestSim(t, SimConfig{InitialBalance: 10000})

	order, err := sim.ExecuteEntry(context.Background(), EntryRequest{
		Signal:   longSignal("BTC", 0.59),
		Quantity: 0.01,
		Leverage: 5,
	}, 50000)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusRejected, order.Status)
	assert.Contains(t, order.RejectReason, "confidence")

	order, err = sim.ExecuteEntry(context.Background(), EntryRequest{
		Signal:   longSignal("BTC", 0.60),
		Quantity: 0.01,
		Leverage: 5,
	}, 50000)
	require.NoError(t, err)
	assert.True(t, order.IsFilled())
}

// TestEntryRejectsInsufficientBalance verifies a margin call larger than
// the balance is rejected without touching it.
func TestEntryRejectsInsufficientBalance(t *testing.T) {
	sim := newTestSim(t, SimConfig{InitialBalance: 100})

	order, err := sim.ExecuteEntry(context.Background(), EntryRequest{
		Signal:   longSignal("BTC", 0.8),
		Quantity: 1,
		Leverage: 2,
	}, 50000)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusRejected, order.Status)
	assert.Contains(t, order.RejectReason, "margin")
	assert.Equal(t, 100.0, sim.Balance())
}

// TestEntryRejectsDuplicateSymbol verifies one virtual position per
// symbol.
func TestEntryRejectsDuplicateSymbol(t *testing.T) {
	sim := newTestSim(t, SimConfig{InitialBalance: 10000})

	req := EntryRequest{Signal: longSignal("BTC", 0.8), Quantity: 0.01, Leverage: 5}
	order, err := sim.ExecuteEntry(context.Background(), req, 50000)
	require.NoError(t, err)
	require.True(t, order.IsFilled())

	order, err = sim.ExecuteEntry(context.Background(), req, 50000)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusRejected, order.Status)
}

// TestExitReturnsMarginPlusPnL verifies a full close credits margin and
// PnL back to the balance and clears the ledger.
func TestExitReturnsMarginPlusPnL(t *testing.T) {
	sim := newTestSim(t, SimConfig{InitialBalance: 10000, BaseSlippagePct: 0.01})

	entry, err := sim.ExecuteEntry(context.Background(), EntryRequest{
		Signal:   longSignal("BTC", 0.8),
		Quantity: 0.1,
		Leverage: 5,
	}, 50000)
	require.NoError(t, err)
	require.True(t, entry.IsFilled())

	pos := &position.Position{Symbol: "BTC", Side: position.SideLong, Quantity: 0.1}
	exit, err := sim.ExecuteExit(context.Background(), pos, 100, "TAKE_PROFIT", 52000)
	require.NoError(t, err)
	require.True(t, exit.IsFilled())
	assert.True(t, exit.ReduceOnly)

	pnl := (exit.FilledPrice - entry.FilledPrice) * 0.1
	assert.InDelta(t, 10000+pnl, sim.Balance(), 1e-6)

	remote, err := sim.RemotePositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, remote)
}

// TestPartialExitShrinksLedger verifies a 50% exit halves quantity and
// margin.
func TestPartialExitShrinksLedger(t *testing.T) {
	sim := newTestSim(t, SimConfig{InitialBalance: 10000})

	_, err := sim.ExecuteEntry(context.Background(), EntryRequest{
		Signal:   longSignal("BTC", 0.8),
		Quantity: 0.1,
		Leverage: 5,
	}, 50000)
	require.NoError(t, err)

	pos := &position.Position{Symbol: "BTC", Side: position.SideLong, Quantity: 0.1}
	exit, err := sim.ExecuteExit(context.Background(), pos, 50, "SIGNAL_REVERSAL", 51000)
	require.NoError(t, err)
	require.True(t, exit.IsFilled())
	assert.InDelta(t, 0.05, exit.FilledQty, 1e-9)

	remote, err := sim.RemotePositions(context.Background())
	require.NoError(t, err)
	require.Len(t, remote, 1)
	assert.InDelta(t, 0.05, remote[0].Quantity, 1e-9)
}

// TestExitUnknownSymbolRejected verifies exits for untracked symbols are
// order-level rejections.
func TestExitUnknownSymbolRejected(t *testing.T) {
	sim := newTestSim(t, SimConfig{InitialBalance: 10000})

	pos := &position.Position{Symbol: "DOGE", Side: position.SideLong, Quantity: 1}
	order, err := sim.ExecuteExit(context.Background(), pos, 100, "MANUAL_CLOSE", 0.1)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusRejected, order.Status)
}

// TestMarginLevel verifies equity over margin used, and zero with no
// positions.
func TestMarginLevel(t *testing.T) {
	sim := newTestSim(t, SimConfig{InitialBalance: 10000})

	level, err := sim.MarginLevel(context.Background())
	require.NoError(t, err)
	assert.Zero(t, level)

	_, err = sim.ExecuteEntry(context.Background(), EntryRequest{
		Signal:   longSignal("BTC", 0.8),
		Quantity: 0.1,
		Leverage: 5,
	}, 50000)
	require.NoError(t, err)

	level, err = sim.MarginLevel(context.Background())
	require.NoError(t, err)
	assert.Greater(t, level, 1.0)
}
