package xlsx

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bms/internal/log"
	"bms/internal/sheets"
)

func writeWorkbook(t *testing.T, sheet string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	path := filepath.Join(t.TempDir(), "budget.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadGridFirstSheet(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]any{
		{"비목", "세목", "항목"},
		{"인건비", "", "연구원 인건비", 1000000},
	})

	grid, err := New(path, "").ReadGrid(context.Background())
	require.NoError(t, err)
	require.Len(t, grid, 2)
	assert.Equal(t, "연구원 인건비", grid[1][2])
	assert.Equal(t, "1000000", grid[1][3])
}

func TestReadGridNamedSheet(t *testing.T) {
	path := writeWorkbook(t, "예산", [][]any{{"a", "b"}})

	grid, err := New(path, "예산").ReadGrid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"a", "b"}}, grid)

	_, err = New(path, "없음").ReadGrid(context.Background())
	assert.Error(t, err)
}

func TestReadGridMissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "none.xlsx"), "").ReadGrid(context.Background())
	assert.ErrorContains(t, err, "open workbook")
}

func TestReadGridCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New("unused.xlsx", "").ReadGrid(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadGridKeepsRowsWithBlankYearColumns(t *testing.T) {
	full := []any{"인건비", "", "A", 500000, 100000, 10000, 110000, 390000, "22%"}
	for len(full) < 19 {
		full = append(full, "")
	}
	full = append(full, 110000)

	path := writeWorkbook(t, "Sheet1", [][]any{
		{"2025 예산 집행 현황"},
		{"비목", "세목", "항목"},
		{"x"},
		{"x"},
		full,
		{"", "", "B", 1000000, 200000, 20000, 220000, 780000, "22%"},
	})

	grid, err := New(path, "").ReadGrid(context.Background())
	require.NoError(t, err)
	require.Len(t, grid, 6)
	for i, r := range grid {
		assert.Len(t, r, 20, "row %d", i)
	}
	assert.Equal(t, "", grid[5][9])

	records, report := sheets.Parse(context.Background(), grid, sheets.DefaultLayout(), log.Discard())
	assert.Equal(t, 2, report.Emitted)
	assert.Zero(t, report.Skipped)
	require.Len(t, records, 2)
	assert.Equal(t, "B", records[1].ItemName)
	assert.Equal(t, "인건비(110)", records[1].Category)
}
