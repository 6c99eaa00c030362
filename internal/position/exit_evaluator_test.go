package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trhieu92/hyperliquid-risk-bot/pkg/types"
)

func evalConfig() EvaluatorConfig {
	return EvaluatorConfig{
		IndicatorExitThreshold:   0.6,
		ReversalConfidence:       0.55,
		StrongReversalConfidence: 0.75,
		RankingCutoff:            10,
		TrailingStopPct:          1.5,
		TrailingActivationPct:    20,
	}
}

func openLong(entry float64) *Position {
	return &Position{
		Symbol:       "BTC",
		Side:         SideLong,
		Quantity:     0.1,
		EntryPrice:   entry,
		CurrentPrice: entry,
		Leverage:     5,
		HighestPrice: entry,
		LowestPrice:  entry,
		EntryTime:    time.Now(),
	}
}

// TestStopLossFires verifies a long exits fully at the stop level with the
// stop as the exit price.
func TestStopLossFires(t *testing.T) {
	e := NewExitEvaluator(evalConfig())
	p := openLong(100)
	p.StopLoss = 97

	fired := e.Evaluate(p, types.SymbolSnapshot{Price: 96.5}, time.Now())
	require.Len(t, fired, 1)
	assert.Equal(t, ExitStopLoss, fired[0].Reason)
	assert.Equal(t, 100.0, fired[0].ExitSize)
	assert.Equal(t, 97.0, fired[0].ExitPrice)
}

// TestTakeProfitFires verifies the short side of the take-profit check.
func TestTakeProfitFires(t *testing.T) {
	e := NewExitEvaluator(evalConfig())
	p := openLong(100)
	p.Side = SideShort
	p.TakeProfit = 95

	fired := e.Evaluate(p, types.SymbolSnapshot{Price: 94}, time.Now())
	require.Len(t, fired, 1)
	assert.Equal(t, ExitTakeProfit, fired[0].Reason)
}

// TestIndicatorExit verifies an opposing indicator score past the
// threshold exits the position.
func TestIndicatorExit(t *testing.T) {
	e := NewExitEvaluator(evalConfig())
	p := openLong(100)

	// Score opposing but below the threshold does nothing.
	fired := e.Evaluate(p, types.SymbolSnapshot{Price: 100, IndicatorScore: -0.5}, time.Now())
	assert.Empty(t, fired)

	fired = e.Evaluate(p, types.SymbolSnapshot{Price: 100, IndicatorScore: -0.7}, time.Now())
	require.Len(t, fired, 1)
	assert.Equal(t, ExitIndicator, fired[0].Reason)
}

// TestTrailingStopArmsAndFires verifies the trailing stop only fires after
// the profit threshold arms it and the price retraces from the extreme.
func TestTrailingStopArmsAndFires(t *testing.T) {
	e := NewExitEvaluator(evalConfig())
	p := openLong(100)
	p.TrailingStopPct = 2

	// A deep retrace while unarmed does not fire.
	p.HighestPrice = 104
	fired := e.Evaluate(p, types.SymbolSnapshot{Price: 101}, time.Now())
	assert.Empty(t, fired)
	assert.False(t, p.TrailingActive)

	// 5% price gain at 5x is 25% of margin, past the 20% activation.
	p.UnrealizedPnLPct = 25
	p.HighestPrice = 105
	fired = e.Evaluate(p, types.SymbolSnapshot{Price: 104.5}, time.Now())
	assert.True(t, p.TrailingActive)
	assert.Empty(t, fired) // retrace only 0.48%

	fired = e.Evaluate(p, types.SymbolSnapshot{Price: 102.5}, time.Now())
	require.Len(t, fired, 1)
	assert.Equal(t, ExitTrailingStop, fired[0].Reason)
}

// TestSignalReversalSizing verifies half exit at normal confidence and
// full exit at strong confidence.
func TestSignalReversalSizing(t *testing.T) {
	e := NewExitEvaluator(evalConfig())
	p := openLong(100)

	snap := types.SymbolSnapshot{
		Price:  100,
		Signal: &types.Signal{Direction: types.DirectionShort, Confidence: 0.6},
	}
	fired := e.Evaluate(p, snap, time.Now())
	require.Len(t, fired, 1)
	assert.Equal(t, ExitSignalReversal, fired[0].Reason)
	assert.Equal(t, 50.0, fired[0].ExitSize)

	snap.Signal.Confidence = 0.8
	fired = e.Evaluate(p, snap, time.Now())
	require.Len(t, fired, 1)
	assert.Equal(t, 100.0, fired[0].ExitSize)

	// A same-direction signal is not a reversal.
	snap.Signal.Direction = types.DirectionLong
	fired = e.Evaluate(p, snap, time.Now())
	assert.Empty(t, fired)
}

// TestRankingDrop verifies the rank cutoff, including the disabled and
// unknown-rank cases.
func TestRankingDrop(t *testing.T) {
	e := NewExitEvaluator(evalConfig())
	p := openLong(100)

	fired := e.Evaluate(p, types.SymbolSnapshot{Price: 100, Rank: 15}, time.Now())
	require.Len(t, fired, 1)
	assert.Equal(t, ExitRankingDrop, fired[0].Reason)

	fired = e.Evaluate(p, types.SymbolSnapshot{Price: 100, Rank: 10}, time.Now())
	assert.Empty(t, fired)

	// Rank 0 means unknown, never an exit.
	fired = e.Evaluate(p, types.SymbolSnapshot{Price: 100, Rank: 0}, time.Now())
	assert.Empty(t, fired)

	disabled := NewExitEvaluator(EvaluatorConfig{})
	fired = disabled.Evaluate(p, types.SymbolSnapshot{Price: 100, Rank: 500}, time.Now())
	assert.Empty(t, fired)
}

// TestPriorityOrdering verifies the stop loss sorts ahead of every other
// fired condition.
func TestPriorityOrdering(t *testing.T) {
	e := NewExitEvaluator(evalConfig())
	p := openLong(100)
	p.StopLoss = 97

	snap := types.SymbolSnapshot{
		Price:          96,
		IndicatorScore: -0.9,
		Rank:           50,
		Signal:         &types.Signal{Direction: types.DirectionShort, Confidence: 0.9},
	}
	fired := e.Evaluate(p, snap, time.Now())
	require.Len(t, fired, 4)
	assert.Equal(t, ExitStopLoss, fired[0].Reason)
	assert.Equal(t, ExitIndicator, fired[1].Reason)
	assert.Equal(t, ExitSignalReversal, fired[2].Reason)
	assert.Equal(t, ExitRankingDrop, fired[3].Reason)
}

// TestDetermineExitAction verifies size clamping and the market-price
// fallback.
func TestDetermineExitAction(t *testing.T) {
	act := DetermineExitAction(ExitCondition{ExitSize: 150, ExitPrice: 0}, 99.5)
	assert.Equal(t, 100.0, act.ExitSize)
	assert.Equal(t, 99.5, act.ExitPrice)

	act = DetermineExitAction(ExitCondition{ExitSize: 50, ExitPrice: 97}, 99.5)
	assert.Equal(t, 50.0, act.ExitSize)
	assert.Equal(t, 97.0, act.ExitPrice)
}
