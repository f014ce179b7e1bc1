// Package xlsx reads the budget grid from a local Excel workbook, for
// offline runs against an exported copy of the sheet.
package xlsx

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	ports "bms/internal/sheets"
)

// Reader opens the workbook on every ReadGrid call so edits between runs
// are picked up.
type Reader struct {
	path  string
	sheet string
}

var _ ports.GridReader = (*Reader)(nil)

// New returns a reader for path. An empty sheet name selects the first sheet.
func New(path, sheet string) *Reader {
	return &Reader{path: path, sheet: sheet}
}

func (r *Reader) ReadGrid(ctx context.Context) ([][]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", r.path, err)
	}
	defer f.Close()

	sheet := r.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	grid := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		grid[i] = cells
	}
	return ports.PadRows(grid), nil
}
