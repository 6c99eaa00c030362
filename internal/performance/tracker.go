package performance

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/position"
)

// maxEquityPoints bounds the equity curve's memory.
const maxEquityPoints = 1000

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	Equity      float64   `json:"equity"`
	Peak        float64   `json:"peak"`
	DrawdownPct float64   `json:"drawdown_pct"`
}

// AssetStats is the per-asset performance breakdown.
type AssetStats struct {
	Trades   int     `json:"trades"`
	Wins     int     `json:"wins"`
	WinRate  float64 `json:"win_rate"`
	TotalPnL float64 `json:"total_pnl"`
}

// WindowStats summarizes a time-bounded sub-window of the trade log.
type WindowStats struct {
	Trades      int     `json:"trades"`
	WinRate     float64 `json:"win_rate"`
	TotalReturn float64 `json:"total_return"`
}

// Metrics is a full derivation over the trade log and equity curve.
// It is recomputed on demand, never hand-mutated.
type Metrics struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`

	TotalReturn   float64 `json:"total_return"`   // sum of PnL, quote units
	AverageReturn float64 `json:"average_return"` // mean PnL per trade
	AvgRMultiple  float64 `json:"avg_r_multiple"`
	MaxSingleLoss float64 `json:"max_single_loss"` // most negative trade PnL

	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"` // annualized by sqrt(252)

	BestTradePnL  float64 `json:"best_trade_pnl"`
	WorstTradePnL float64 `json:"worst_trade_pnl"`

	LongestWinStreak  int `json:"longest_win_streak"`
	LongestLossStreak int `json:"longest_loss_streak"`

	AvgHoldingTime time.Duration `json:"avg_holding_time"`

	PerAsset map[string]AssetStats `json:"per_asset"`
	Last30d  WindowStats           `json:"last_30d"`
}

// Tracker owns the append-only trade log and the bounded equity curve.
type Tracker struct {
	trades []position.TradeRecord
	equity []EquityPoint
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Restore seeds the tracker from a persisted trade log.
func (t *Tracker) Restore(trades []position.TradeRecord) {
	t.trades = append(t.trades[:0], trades...)
}

// RecordTrade appends a closed trade to the log.
func (t *Tracker) RecordTrade(tr position.TradeRecord) {
	t.trades = append(t.trades, tr)
}

// RecordEquity appends an equity sample, maintaining the running peak and
// trimming the curve to its bounded length.
func (t *Tracker) RecordEquity(equity float64, now time.Time) {
	peak := equity
	if n := len(t.equity); n > 0 && t.equity[n-1].Peak > peak {
		peak = t.equity[n-1].Peak
	}

	drawdownPct := 0.0
	if peak > 0 {
		drawdownPct = (peak - equity) / peak * 100
	}

	t.equity = append(t.equity, EquityPoint{
		Timestamp:   now,
		Equity:      equity,
		Peak:        peak,
		DrawdownPct: drawdownPct,
	})

	if len(t.equity) > maxEquityPoints {
		t.equity = t.equity[len(t.equity)-maxEquityPoints:]
	}
}

// Trades returns a copy of the trade log.
func (t *Tracker) Trades() []position.TradeRecord {
	out := make([]position.TradeRecord, len(t.trades))
	copy(out, t.trades)
	return out
}

// EquityCurve returns a copy of the bounded equity curve.
func (t *Tracker) EquityCurve() []EquityPoint {
	out := make([]EquityPoint, len(t.equity))
	copy(out, t.equity)
	return out
}

// Metrics derives the full statistics from the trade log and equity
// curve. An empty log yields all-zero metrics without division by zero.
func (t *Tracker) Metrics() Metrics {
	m := Metrics{PerAsset: make(map[string]AssetStats)}

	for _, p := range t.equity {
		if p.DrawdownPct > m.MaxDrawdownPct {
			m.MaxDrawdownPct = p.DrawdownPct
		}
	}

	if len(t.trades) == 0 {
		return m
	}

	var totalR, totalHold float64
	var returns []float64
	winStreak, lossStreak := 0, 0

	for i, tr := range t.trades {
		m.TotalTrades++
		m.TotalReturn += tr.PnL
		totalR += tr.RMultiple
		totalHold += tr.HoldingTime.Seconds()

		if tr.PnL > 0 {
			m.WinningTrades++
			winStreak++
			lossStreak = 0
		} else if tr.PnL < 0 {
			m.LosingTrades++
			lossStreak++
			winStreak = 0
		} else {
			winStreak, lossStreak = 0, 0
		}
		if winStreak > m.LongestWinStreak {
			m.LongestWinStreak = winStreak
		}
		if lossStreak > m.LongestLossStreak {
			m.LongestLossStreak = lossStreak
		}

		if i == 0 || tr.PnL > m.BestTradePnL {
			m.BestTradePnL = tr.PnL
		}
		if i == 0 || tr.PnL < m.WorstTradePnL {
			m.WorstTradePnL = tr.PnL
		}
		if tr.PnL < m.MaxSingleLoss {
			m.MaxSingleLoss = tr.PnL
		}

		returns = append(returns, tr.PnLPct/100)

		asset := m.PerAsset[tr.Symbol]
		asset.Trades++
		asset.TotalPnL += tr.PnL
		if tr.PnL > 0 {
			asset.Wins++
		}
		asset.WinRate = float64(asset.Wins) / float64(asset.Trades) * 100
		m.PerAsset[tr.Symbol] = asset
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	m.AverageReturn = m.TotalReturn / float64(m.TotalTrades)
	m.AvgRMultiple = totalR / float64(m.TotalTrades)
	m.AvgHoldingTime = time.Duration(totalHold/float64(m.TotalTrades)) * time.Second
	m.SharpeRatio = sharpe(returns)
	m.Last30d = t.window(30 * 24 * time.Hour)

	return m
}

// sharpe is mean trade return over sample standard deviation, annualized
// by sqrt(252).
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	stdDev := math.Sqrt(variance)

	if stdDev < 1e-10 {
		return 0
	}

	return mean / stdDev * math.Sqrt(252)
}

// window derives the rolling sub-window stats by exit time.
func (t *Tracker) window(span time.Duration) WindowStats {
	cutoff := time.Now().Add(-span)
	var w WindowStats
	wins := 0

	for _, tr := range t.trades {
		if tr.ExitTime.Before(cutoff) {
			continue
		}
		w.Trades++
		w.TotalReturn += tr.PnL
		if tr.PnL > 0 {
			wins++
		}
	}

	if w.Trades > 0 {
		w.WinRate = float64(wins) / float64(w.Trades) * 100
	}
	return w
}

// Report is the trade/performance report file shape: the full trade log
// plus the last derived metrics snapshot.
type Report struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Trades      []position.TradeRecord `json:"trades"`
	Metrics     Metrics                `json:"metrics"`
	EquityCurve []EquityPoint          `json:"equity_curve"`
}

// WriteReport rewrites the report file in full. There is no partial-write
// guarantee; the report is derived data and can always be rebuilt.
func (t *Tracker) WriteReport(path string) error {
	report := Report{
		GeneratedAt: time.Now(),
		Trades:      t.trades,
		Metrics:     t.Metrics(),
		EquityCurve: t.equity,
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}

	return nil
}

// LoadReport reads a report file written by WriteReport.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report file: %w", err)
	}

	return &report, nil
}
