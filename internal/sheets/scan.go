package sheets

import (
	"fmt"
	"strings"
)

type (
	// ScannedRow is a data row accepted by the scanner, tagged with the
	// category that was in effect when it was read.
	ScannedRow struct {
		Row      int // 1-based sheet row
		Cells    []any
		Category string
	}

	// ScanReport counts what the scanner did with the grid.
	ScanReport struct {
		Rows    int // rows after the header block
		Emitted int
		Skipped int
	}
)

// scanState is the only state carried between rows: the category code of
// the most recent category row.
type scanState struct {
	layout   *Layout
	category string
}

// step folds one row into the state. It returns the next state and whether
// the row is a data row to emit.
func (s scanState) step(cells []any) (scanState, bool) {
	if len(cells) == 0 || len(cells) < s.layout.MinColumns {
		return s, false
	}
	if s.isMarkerRow(cells) {
		return s, false
	}
	if code, ok := s.categoryOf(cells); ok {
		s.category = code
	}
	if s.category == "" {
		return s, false
	}
	item := cellString(cellAt(cells, s.layout.Columns.ItemName))
	if item == "" || s.isSubtotalName(item) {
		return s, false
	}
	return s, true
}

func (s scanState) isMarkerRow(cells []any) bool {
	for _, col := range s.layout.MarkerColumns {
		text := cellString(cellAt(cells, col))
		if text == "" {
			continue
		}
		for _, marker := range s.layout.SkipMarkers {
			if strings.Contains(text, marker) {
				return true
			}
		}
	}
	return false
}

func (s scanState) categoryOf(cells []any) (string, bool) {
	for _, label := range s.layout.CategoryLabels {
		for _, col := range s.layout.CategoryColumns {
			if strings.Contains(cellString(cellAt(cells, col)), label.Label) {
				return label.Code, true
			}
		}
	}
	return "", false
}

func (s scanState) isSubtotalName(item string) bool {
	for _, name := range s.layout.SubtotalNames {
		if item == name {
			return true
		}
	}
	return false
}

// Scan walks the grid top to bottom and returns the data rows in source
// order. The first layout.HeaderRows rows are skipped by position.
func Scan(grid [][]any, layout Layout) ([]ScannedRow, ScanReport) {
	var (
		out    []ScannedRow
		report ScanReport
		state  = scanState{layout: &layout}
	)
	for i, cells := range grid {
		if i < layout.HeaderRows {
			continue
		}
		report.Rows++
		var emit bool
		state, emit = state.step(cells)
		if !emit {
			report.Skipped++
			continue
		}
		report.Emitted++
		out = append(out, ScannedRow{Row: i + 1, Cells: cells, Category: state.category})
	}
	return out, report
}

func cellAt(cells []any, i int) any {
	if i < 0 || i >= len(cells) {
		return nil
	}
	return cells[i]
}

func cellString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}
