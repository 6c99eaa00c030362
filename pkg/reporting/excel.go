package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/performance"
)

// ExcelReporter implements Excel output functionality
type ExcelReporter struct{}

// NewExcelReporter creates a new Excel reporter
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

type excelStyles struct {
	header   int
	positive int
	negative int
}

// WriteReportXLSX writes the trade log and summary to an Excel workbook
func (r *ExcelReporter) WriteReportXLSX(report *performance.Report, path string) error {
	// Ensure directory exists before creating file
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const tradesSheet = "Trades"
	const summarySheet = "Summary"

	fx.SetSheetName(fx.GetSheetName(0), tradesSheet)
	fx.NewSheet(summarySheet)

	styles, err := r.createStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeTradesSheet(fx, tradesSheet, report, styles); err != nil {
		return err
	}
	if err := r.writeSummarySheet(fx, summarySheet, report, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *ExcelReporter) createStyles(fx *excelize.File) (excelStyles, error) {
	header, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return excelStyles{}, err
	}

	positive, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "1D7044"},
	})
	if err != nil {
		return excelStyles{}, err
	}

	negative, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "C00000"},
	})
	if err != nil {
		return excelStyles{}, err
	}

	return excelStyles{header: header, positive: positive, negative: negative}, nil
}

func (r *ExcelReporter) writeTradesSheet(fx *excelize.File, sheet string, report *performance.Report, styles excelStyles) error {
	headers := []string{"ID", "Symbol", "Side", "Quantity", "Leverage", "Entry Price", "Exit Price",
		"Entry Time", "Exit Time", "Holding", "PnL", "PnL %", "R-Multiple", "Exit Reason"}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	if err := fx.SetCellStyle(sheet, "A1", mustColumn(len(headers))+"1", styles.header); err != nil {
		return err
	}

	for i, tr := range report.Trades {
		row := i + 2
		values := []interface{}{
			tr.ID, tr.Symbol, string(tr.Side), tr.Quantity, tr.Leverage,
			tr.EntryPrice, tr.ExitPrice,
			tr.EntryTime.Format("2006-01-02 15:04:05"),
			tr.ExitTime.Format("2006-01-02 15:04:05"),
			tr.HoldingTime.String(),
			tr.PnL, tr.PnLPct, tr.RMultiple, tr.ExitReason,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}

		pnlCell, _ := excelize.CoordinatesToCellName(11, row)
		if tr.PnL >= 0 {
			fx.SetCellStyle(sheet, pnlCell, pnlCell, styles.positive)
		} else {
			fx.SetCellStyle(sheet, pnlCell, pnlCell, styles.negative)
		}
	}

	return fx.SetColWidth(sheet, "A", mustColumn(len(headers)), 16)
}

func (r *ExcelReporter) writeSummarySheet(fx *excelize.File, sheet string, report *performance.Report, styles excelStyles) error {
	m := report.Metrics

	rows := [][]interface{}{
		{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Total Trades", m.TotalTrades},
		{"Winning Trades", m.WinningTrades},
		{"Losing Trades", m.LosingTrades},
		{"Win Rate %", m.WinRate},
		{"Total Return", m.TotalReturn},
		{"Average Return", m.AverageReturn},
		{"Avg R-Multiple", m.AvgRMultiple},
		{"Sharpe Ratio", m.SharpeRatio},
		{"Max Drawdown %", m.MaxDrawdownPct},
		{"Max Single Loss", m.MaxSingleLoss},
		{"Best Trade", m.BestTradePnL},
		{"Worst Trade", m.WorstTradePnL},
		{"Longest Win Streak", m.LongestWinStreak},
		{"Longest Loss Streak", m.LongestLossStreak},
		{"Avg Holding Time", m.AvgHoldingTime.String()},
	}

	for i, row := range rows {
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+1)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	// Per-asset block below the metric list.
	base := len(rows) + 2
	assetHeaders := []string{"Symbol", "Trades", "Wins", "Win Rate %", "Total PnL"}
	for col, h := range assetHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, base)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	startCell, _ := excelize.CoordinatesToCellName(1, base)
	endCell, _ := excelize.CoordinatesToCellName(len(assetHeaders), base)
	fx.SetCellStyle(sheet, startCell, endCell, styles.header)

	symbols := make([]string, 0, len(m.PerAsset))
	for s := range m.PerAsset {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	for i, s := range symbols {
		a := m.PerAsset[s]
		values := []interface{}{s, a.Trades, a.Wins, a.WinRate, a.TotalPnL}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, base+1+i)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	return fx.SetColWidth(sheet, "A", "E", 20)
}

// mustColumn converts a 1-based column index to its Excel name.
func mustColumn(n int) string {
	name, _ := excelize.ColumnNumberToName(n)
	return name
}
