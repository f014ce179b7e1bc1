// Package sheets turns a budget worksheet into canonical records. Adapters
// in the subpackages fetch the raw cell grid; this package scans and
// normalizes it.
package sheets

import "context"

// Ports for outbound adapters.
type (
	// GridReader returns the full cell grid of the budget worksheet, header
	// rows included. Cells are strings, float64, int or nil.
	GridReader interface {
		ReadGrid(ctx context.Context) ([][]any, error)
	}
)

// PadRows widens ragged rows with empty strings. Both the Sheets API and
// excelize trim trailing empty cells, which would otherwise make
// full-width rows look short.
func PadRows(values [][]any) [][]any {
	width := 0
	for _, r := range values {
		width = max(width, len(r))
	}
	out := make([][]any, len(values))
	for i, r := range values {
		row := make([]any, width)
		copy(row, r)
		for j := len(r); j < width; j++ {
			row[j] = ""
		}
		out[i] = row
	}
	return out
}
