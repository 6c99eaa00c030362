package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/performance"
	"github.com/trhieu92/hyperliquid-risk-bot/pkg/reporting"
)

func main() {
	var (
		reportFile = flag.String("report", "reports/performance.json", "Performance report file written by the engine")
		xlsxOut    = flag.String("xlsx", "", "Export the report to an Excel workbook at this path")
		csvOut     = flag.String("csv", "", "Export the trade log to a CSV file at this path")
	)
	flag.Parse()

	report, err := performance.LoadReport(*reportFile)
	if err != nil {
		log.Fatalf("Failed to load report %s: %v", *reportFile, err)
	}

	reporting.OutputConsole(report)

	if *xlsxOut != "" {
		if err := reporting.NewExcelReporter().WriteReportXLSX(report, *xlsxOut); err != nil {
			log.Fatalf("Failed to write Excel report: %v", err)
		}
		fmt.Printf("📊 Excel report written to %s\n", *xlsxOut)
	}

	if *csvOut != "" {
		if err := reporting.WriteTradesCSV(report, *csvOut); err != nil {
			log.Fatalf("Failed to write trade CSV: %v", err)
		}
		fmt.Printf("📄 Trade log written to %s\n", *csvOut)
	}
}
