package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/position"
)

func breakerConfig() BreakerConfig {
	return BreakerConfig{
		DailyLossLimitPct:    5,
		ConsecutiveLossLimit: 3,
		APIErrorRateLimitPct: 30,
		MarginLevelFloor:     1.5,
	}
}

// TestEvaluateNormal verifies a clean state produces no directive.
func TestEvaluateNormal(t *testing.T) {
	state := NewBreakerState(time.Now())
	res := Evaluate(state, breakerConfig(), 0, 100, 3.0)

	assert.Equal(t, StatusNormal, res.Status)
	assert.False(t, res.ShouldCloseAll)
	assert.False(t, res.ShouldPauseEntries)
}

// TestEvaluateDailyLossStops verifies breaching the daily loss limit
// produces a full stop with close-all.
func TestEvaluateDailyLossStops(t *testing.T) {
	state := NewBreakerState(time.Now())
	state.DailyPnLPct = -5.1

	res := Evaluate(state, breakerConfig(), 0, 100, 3.0)
	assert.Equal(t, StatusStopped, res.Status)
	assert.True(t, res.ShouldCloseAll)
	assert.True(t, res.ShouldPauseEntries)
	assert.Contains(t, res.Reason, "daily loss")
}

// TestEvaluateConsecutiveLossesPauses verifies the loss streak pauses
// entries without closing positions.
func TestEvaluateConsecutiveLossesPauses(t *testing.T) {
	state := NewBreakerState(time.Now())
	state.ConsecutiveLosses = 3

	res := Evaluate(state, breakerConfig(), 0, 100, 3.0)
	assert.Equal(t, StatusPaused, res.Status)
	assert.False(t, res.ShouldCloseAll)
	assert.True(t, res.ShouldPauseEntries)
}

// TestEvaluateAPIErrorRateStops verifies a degraded venue connection
// stops trading.
func TestEvaluateAPIErrorRateStops(t *testing.T) {
	state := NewBreakerState(time.Now())

	res := Evaluate(state, breakerConfig(), 40, 100, 3.0)
	assert.Equal(t, StatusStopped, res.Status)
	assert.True(t, res.ShouldCloseAll)
	assert.Contains(t, res.Reason, "API error rate")
}

// TestEvaluateMarginFloorStops verifies the margin-level floor check and
// that zero margin level (unknown) does not trigger it.
func TestEvaluateMarginFloorStops(t *testing.T) {
	state := NewBreakerState(time.Now())

	res := Evaluate(state, breakerConfig(), 0, 100, 1.2)
	assert.Equal(t, StatusStopped, res.Status)
	assert.Contains(t, res.Reason, "margin level")

	res = Evaluate(state, breakerConfig(), 0, 100, 0)
	assert.Equal(t, StatusNormal, res.Status)
}

// TestEvaluatePrecedence verifies daily loss wins over every later check
// when several thresholds are breached at once.
func TestEvaluatePrecedence(t *testing.T) {
	state := NewBreakerState(time.Now())
	state.DailyPnLPct = -10
	state.ConsecutiveLosses = 10

	res := Evaluate(state, breakerConfig(), 90, 100, 1.0)
	assert.Contains(t, res.Reason, "daily loss")
}

// TestRecordTradeCounters verifies the loss streak resets on a win and
// daily PnL accumulates only inside the day window.
func TestRecordTradeCounters(t *testing.T) {
	now := time.Now()
	state := NewBreakerState(now)

	loss := &position.TradeRecord{PnL: -100, ExitTime: now}
	win := &position.TradeRecord{PnL: 250, ExitTime: now}

	state.RecordTrade(loss, 10000)
	state.RecordTrade(loss, 10000)
	assert.Equal(t, 2, state.ConsecutiveLosses)
	assert.InDelta(t, -2.0, state.DailyPnLPct, 1e-9)

	state.RecordTrade(win, 10000)
	assert.Equal(t, 0, state.ConsecutiveLosses)
	assert.InDelta(t, 0.5, state.DailyPnLPct, 1e-9)

	// Exit before the day window contributes nothing to daily PnL.
	stale := &position.TradeRecord{PnL: -500, ExitTime: state.DayStart.Add(-time.Hour)}
	state.RecordTrade(stale, 10000)
	assert.InDelta(t, 0.5, state.DailyPnLPct, 1e-9)
	assert.Equal(t, 1, state.ConsecutiveLosses)
}

// TestDailyResetKeepsLossStreak verifies the day rollover clears only the
// PnL counter.
func TestDailyResetKeepsLossStreak(t *testing.T) {
	now := time.Now()
	state := NewBreakerState(now)
	state.DailyPnLPct = -3
	state.ConsecutiveLosses = 2

	assert.False(t, state.NeedsDailyReset(now))

	tomorrow := now.Add(24 * time.Hour)
	assert.True(t, state.NeedsDailyReset(tomorrow))

	state.ResetDaily(tomorrow)
	assert.Zero(t, state.DailyPnLPct)
	assert.Equal(t, 2, state.ConsecutiveLosses)
	assert.False(t, state.NeedsDailyReset(tomorrow))
}

// TestApplyStampsTransition verifies ActivatedAt updates only on a status
// change.
func TestApplyStampsTransition(t *testing.T) {
	now := time.Now()
	state := NewBreakerState(now)

	state.Apply(BreakerResult{Status: StatusPaused, Reason: "test"}, 1, 10, 2.0, now)
	assert.Equal(t, now, state.ActivatedAt)
	assert.InDelta(t, 10.0, state.APIErrorRate, 1e-9)

	later := now.Add(time.Minute)
	state.Apply(BreakerResult{Status: StatusPaused, Reason: "test"}, 0, 10, 2.0, later)
	assert.Equal(t, now, state.ActivatedAt)
}
