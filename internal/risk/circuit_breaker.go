package risk

import (
	"fmt"
	"time"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/position"
)

// AccountStatus is the account-level trading status produced by the
// circuit breaker.
type AccountStatus string

const (
	StatusNormal  AccountStatus = "NORMAL"
	StatusPaused  AccountStatus = "PAUSED"
	StatusStopped AccountStatus = "STOPPED"
)

// BreakerConfig holds the account-level safety thresholds.
type BreakerConfig struct {
	DailyLossLimitPct    float64 `json:"daily_loss_limit_pct"`   // stop when daily PnL% falls below -limit
	ConsecutiveLossLimit int     `json:"consecutive_loss_limit"` // pause entries at this many losses in a row
	APIErrorRateLimitPct float64 `json:"api_error_rate_limit_pct"`
	MarginLevelFloor     float64 `json:"margin_level_floor"` // 0 disables the margin check
}

// ApplyDefaults fills zero-valued fields with named defaults.
func (c *BreakerConfig) ApplyDefaults() {
	if c.DailyLossLimitPct == 0 {
		c.DailyLossLimitPct = 5
	}
	if c.ConsecutiveLossLimit == 0 {
		c.ConsecutiveLossLimit = 4
	}
	if c.APIErrorRateLimitPct == 0 {
		c.APIErrorRateLimitPct = 30
	}
}

// BreakerState holds the running counters the breaker evaluates. Status is
// re-derived from the counters every tick, never accumulated as history.
type BreakerState struct {
	Status      AccountStatus `json:"status"`
	Reason      string        `json:"reason,omitempty"`
	ActivatedAt time.Time     `json:"activated_at,omitempty"`

	DailyPnLPct       float64   `json:"daily_pnl_pct"`
	ConsecutiveLosses int       `json:"consecutive_losses"`
	APIErrorRate      float64   `json:"api_error_rate"`
	MarginLevel       float64   `json:"margin_level,omitempty"`
	DayStart          time.Time `json:"day_start"`
}

// NewBreakerState creates a state anchored at the start of the given day.
func NewBreakerState(now time.Time) *BreakerState {
	return &BreakerState{
		Status:   StatusNormal,
		DayStart: dayStart(now),
	}
}

// BreakerResult is the directive produced by one evaluation.
type BreakerResult struct {
	Status             AccountStatus `json:"status"`
	Reason             string        `json:"reason,omitempty"`
	ShouldCloseAll     bool          `json:"should_close_all"`
	ShouldPauseEntries bool          `json:"should_pause_entries"`
}

// Evaluate derives the account status from the current counters. Checks run
// in fixed precedence order and the first match wins:
// daily loss, consecutive losses, API error rate, margin level.
func Evaluate(state *BreakerState, cfg BreakerConfig, apiErrors, apiRequests int, marginLevel float64) BreakerResult {
	cfg.ApplyDefaults()

	if state.DailyPnLPct < -abs(cfg.DailyLossLimitPct) {
		return BreakerResult{
			Status:             StatusStopped,
			Reason:             fmt.Sprintf("daily loss %.2f%% breached limit %.2f%%", state.DailyPnLPct, cfg.DailyLossLimitPct),
			ShouldCloseAll:     true,
			ShouldPauseEntries: true,
		}
	}

	if state.ConsecutiveLosses >= cfg.ConsecutiveLossLimit {
		return BreakerResult{
			Status:             StatusPaused,
			Reason:             fmt.Sprintf("%d consecutive losses reached limit %d", state.ConsecutiveLosses, cfg.ConsecutiveLossLimit),
			ShouldPauseEntries: true,
		}
	}

	errorRate := 0.0
	if apiRequests > 0 {
		errorRate = float64(apiErrors) / float64(apiRequests) * 100
	}
	if errorRate > cfg.APIErrorRateLimitPct {
		return BreakerResult{
			Status:             StatusStopped,
			Reason:             fmt.Sprintf("API error rate %.1f%% breached limit %.1f%%", errorRate, cfg.APIErrorRateLimitPct),
			ShouldCloseAll:     true,
			ShouldPauseEntries: true,
		}
	}

	if cfg.MarginLevelFloor > 0 && marginLevel > 0 && marginLevel < cfg.MarginLevelFloor {
		return BreakerResult{
			Status:             StatusStopped,
			Reason:             fmt.Sprintf("margin level %.2f below floor %.2f", marginLevel, cfg.MarginLevelFloor),
			ShouldCloseAll:     true,
			ShouldPauseEntries: true,
		}
	}

	return BreakerResult{Status: StatusNormal}
}

// Apply folds an evaluation result back into the state.
func (s *BreakerState) Apply(result BreakerResult, apiErrors, apiRequests int, marginLevel float64, now time.Time) {
	if result.Status != s.Status {
		s.ActivatedAt = now
	}
	s.Status = result.Status
	s.Reason = result.Reason
	s.MarginLevel = marginLevel
	if apiRequests > 0 {
		s.APIErrorRate = float64(apiErrors) / float64(apiRequests) * 100
	} else {
		s.APIErrorRate = 0
	}
}

// RecordTrade updates the running counters after a closed trade. Daily PnL
// accumulates only when the exit falls inside the current day window; the
// consecutive-loss counter resets to zero on any winning trade.
func (s *BreakerState) RecordTrade(tr *position.TradeRecord, capital float64) {
	if tr.ExitTime.After(s.DayStart) && capital > 0 {
		s.DailyPnLPct += tr.PnL / capital * 100
	}

	if tr.PnL < 0 {
		s.ConsecutiveLosses++
	} else if tr.PnL > 0 {
		s.ConsecutiveLosses = 0
	}
}

// ResetDaily zeroes only the daily PnL counter at a day boundary. It is an
// explicit operation, not automatic; consecutive losses are untouched.
func (s *BreakerState) ResetDaily(now time.Time) {
	s.DailyPnLPct = 0
	s.DayStart = dayStart(now)
}

// NeedsDailyReset reports whether the day window has rolled over.
func (s *BreakerState) NeedsDailyReset(now time.Time) bool {
	return dayStart(now).After(s.DayStart)
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
