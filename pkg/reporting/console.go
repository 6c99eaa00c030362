package reporting

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/performance"
)

// maxRecentTrades bounds the trade table on the console.
const maxRecentTrades = 15

// ConsoleReporter renders performance reports for the terminal
type ConsoleReporter struct{}

// NewConsoleReporter creates a new console reporter
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// OutputReport prints the full performance report to console
func (r *ConsoleReporter) OutputReport(report *performance.Report) {
	m := report.Metrics

	fmt.Println("\n" + strings.Repeat("=", 50))
	fmt.Println("📊 PERFORMANCE REPORT")
	fmt.Println(strings.Repeat("=", 50))

	fmt.Printf("🔄 Total Trades:       %d\n", m.TotalTrades)
	fmt.Printf("✅ Winning Trades:     %d (%.1f%%)\n", m.WinningTrades, m.WinRate)
	fmt.Printf("❌ Losing Trades:      %d\n", m.LosingTrades)
	fmt.Printf("💰 Total Return:       $%.2f\n", m.TotalReturn)
	fmt.Printf("💰 Average Return:     $%.2f\n", m.AverageReturn)
	fmt.Printf("📊 Avg R-Multiple:     %.2f\n", m.AvgRMultiple)
	fmt.Printf("📊 Sharpe Ratio:       %.2f\n", m.SharpeRatio)
	fmt.Printf("📉 Max Drawdown:       %.2f%%\n", m.MaxDrawdownPct)
	fmt.Printf("📉 Max Single Loss:    $%.2f\n", m.MaxSingleLoss)
	fmt.Printf("🏆 Best Trade:         $%.2f\n", m.BestTradePnL)
	fmt.Printf("💀 Worst Trade:        $%.2f\n", m.WorstTradePnL)
	fmt.Printf("🔥 Longest Win Streak: %d\n", m.LongestWinStreak)
	fmt.Printf("🧊 Longest Loss Streak: %d\n", m.LongestLossStreak)
	fmt.Printf("⏱️  Avg Holding Time:   %s\n", m.AvgHoldingTime)

	if m.Last30d.Trades > 0 {
		fmt.Printf("📅 Last 30 Days:       %d trades, %.1f%% win rate, $%.2f\n",
			m.Last30d.Trades, m.Last30d.WinRate, m.Last30d.TotalReturn)
	}

	if len(m.PerAsset) > 0 {
		r.printAssetBreakdown(m)
	}
	if len(report.Trades) > 0 {
		r.printRecentTrades(report)
	}
}

// printAssetBreakdown renders the per-asset table
func (r *ConsoleReporter) printAssetBreakdown(m performance.Metrics) {
	symbols := make([]string, 0, len(m.PerAsset))
	for s := range m.PerAsset {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("PER-ASSET BREAKDOWN")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Trades", "Win Rate", "Total PnL"})

	for _, s := range symbols {
		a := m.PerAsset[s]
		t.AppendRow(table.Row{s, a.Trades, fmt.Sprintf("%.1f%%", a.WinRate), fmt.Sprintf("$%.2f", a.TotalPnL)})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	t.Render()
	fmt.Println()
}

// printRecentTrades renders the most recent closed trades
func (r *ConsoleReporter) printRecentTrades(report *performance.Report) {
	trades := report.Trades
	if len(trades) > maxRecentTrades {
		trades = trades[len(trades)-maxRecentTrades:]
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("RECENT TRADES (last %d)", len(trades)))
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Closed", "Symbol", "Side", "Entry", "Exit", "PnL", "R", "Reason"})

	for _, tr := range trades {
		t.AppendRow(table.Row{
			tr.ExitTime.Format("01-02 15:04"),
			tr.Symbol,
			tr.Side,
			fmt.Sprintf("%.4f", tr.EntryPrice),
			fmt.Sprintf("%.4f", tr.ExitPrice),
			fmt.Sprintf("$%.2f", tr.PnL),
			fmt.Sprintf("%.2f", tr.RMultiple),
			tr.ExitReason,
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})

	t.Render()
	fmt.Println()
}

// PrintStartupInfo prints the engine banner shown before the first cycle
func PrintStartupInfo(account, mode string, symbols []string, capital float64, cycleInterval string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("ENGINE INITIALIZATION")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"👤 Account", account},
		{"🚨 Mode", strings.ToUpper(mode)},
		{"📊 Symbols", strings.Join(symbols, ", ")},
		{"💰 Capital", fmt.Sprintf("$%.2f", capital)},
		{"⏰ Cycle Interval", cycleInterval},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 45, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Println()
}

// Package-level convenience function
func OutputConsole(report *performance.Report) {
	reporter := NewConsoleReporter()
	reporter.OutputReport(report)
}
