package sheets

import (
	"context"

	"github.com/shopspring/decimal"

	"bms/internal/core"
	"bms/internal/log"
)

// Normalize maps a scanned row onto a canonical record and classifies it.
// Columns missing from a short row read as zero. The record is not
// validated here.
func Normalize(sr ScannedRow, layout Layout) core.Record {
	c := layout.Columns
	at := func(i int) any { return cellAt(sr.Cells, i) }

	r := core.Record{
		ItemName:       cellString(at(c.ItemName)),
		Category:       sr.Category,
		Subcategory:    cellString(at(c.Subcategory)),
		TotalBudget:    core.ParseCurrency(at(c.TotalBudget)),
		UsedSupply:     core.ParseCurrency(at(c.UsedSupply)),
		UsedTax:        core.ParseCurrency(at(c.UsedTax)),
		UsedTotal:      core.ParseCurrency(at(c.UsedTotal)),
		Remaining:      core.ParseAmount(at(c.Remaining)),
		ExecutionRate:  core.ParsePercentage(at(c.ExecutionRate)),
		YearlyBudget:   make(map[int]decimal.Decimal, len(layout.Years)),
		YearlyExecuted: make(map[int]decimal.Decimal, len(layout.Years)),
		Row:            sr.Row,
	}
	for _, y := range layout.Years {
		r.YearlyBudget[y.Year] = core.ParseCurrency(at(y.Budget))
		r.YearlyExecuted[y.Year] = core.ParseCurrency(at(y.Executed))
	}
	return r.Classified()
}

// Parse scans and normalizes the grid. Rows whose record fails validation
// are logged at debug level, counted as skipped and dropped; one bad row
// never aborts the parse.
func Parse(ctx context.Context, grid [][]any, layout Layout, logger *log.Logger) ([]core.Record, ScanReport) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentScanner)

	rows, report := Scan(grid, layout)
	records := make([]core.Record, 0, len(rows))
	for _, sr := range rows {
		rec := Normalize(sr, layout)
		if err := rec.Validate(); err != nil {
			report.Emitted--
			report.Skipped++
			logger.DebugContext(ctx, "Skipping row",
				log.NewFields().WithRecord(sr.Row, rec.ItemName, rec.Category).WithError(err).ToSlice()...)
			continue
		}
		records = append(records, rec)
	}

	logger.InfoContext(ctx, "Sheet parsed",
		log.FieldRecords, len(records),
		log.FieldSkipped, report.Skipped,
		"rows", report.Rows)
	return records, report
}
