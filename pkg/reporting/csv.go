package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/performance"
)

// WriteTradesCSV writes the trade log as CSV for spreadsheet-free tooling
func WriteTradesCSV(report *performance.Report, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"id", "symbol", "side", "quantity", "leverage", "entry_price", "exit_price",
		"entry_time", "exit_time", "holding_time", "pnl", "pnl_pct", "r_multiple", "exit_reason"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, tr := range report.Trades {
		row := []string{
			tr.ID,
			tr.Symbol,
			string(tr.Side),
			strconv.FormatFloat(tr.Quantity, 'f', -1, 64),
			strconv.FormatFloat(tr.Leverage, 'f', -1, 64),
			strconv.FormatFloat(tr.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(tr.ExitPrice, 'f', -1, 64),
			tr.EntryTime.Format("2006-01-02 15:04:05"),
			tr.ExitTime.Format("2006-01-02 15:04:05"),
			tr.HoldingTime.String(),
			strconv.FormatFloat(tr.PnL, 'f', 2, 64),
			strconv.FormatFloat(tr.PnLPct, 'f', 2, 64),
			strconv.FormatFloat(tr.RMultiple, 'f', 2, 64),
			tr.ExitReason,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return nil
}
