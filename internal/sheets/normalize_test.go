package sheets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bms/internal/core"
)

func decimalOf(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestNormalizeOverrun(t *testing.T) {
	sr := ScannedRow{
		Row:      12,
		Category: "유형자산(430)",
		Cells: row("", "장비", "네트워크 구축", "400000", "410000", "46000", "456000", "-56,000", "114%",
			"300000", "", "", "", "256000", "", "100000", "", "", "", "200000"),
	}
	r := Normalize(sr, DefaultLayout())

	assert.Equal(t, core.StatusOverrun, r.Status)
	assert.True(t, r.Remaining.Equal(decimalOf(t, "-56000")))
	assert.True(t, r.ExecutionRate.Equal(decimalOf(t, "1.14")))
	assert.Equal(t, "장비", r.Subcategory)
	assert.True(t, r.YearlyBudget[2024].Equal(decimalOf(t, "300000")))
	assert.True(t, r.YearlyExecuted[2024].Equal(decimalOf(t, "256000")))
	assert.True(t, r.YearlyBudget[2025].Equal(decimalOf(t, "100000")))
	assert.True(t, r.YearlyExecuted[2025].Equal(decimalOf(t, "200000")))
}

func TestNormalizeShortRowDefaultsToZero(t *testing.T) {
	sr := ScannedRow{Category: "여비(220)", Cells: []any{"", "", "출장비", 50000.0}}
	r := Normalize(sr, DefaultLayout())

	assert.True(t, r.TotalBudget.Equal(decimalOf(t, "50000")))
	assert.True(t, r.UsedTotal.IsZero())
	assert.True(t, r.YearlyExecuted[2025].IsZero())
	assert.Equal(t, core.StatusUnexecuted, r.Status)
}

func TestLoadLayout(t *testing.T) {
	l, err := LoadLayout("")
	require.NoError(t, err)
	assert.Equal(t, DefaultLayout(), l)

	path := filepath.Join(t.TempDir(), "layout.yaml")
	content := `
header_rows: 2
columns:
  item_name: 3
years:
  - year: 2026
    budget: 21
    executed: 23
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	l, err = LoadLayout(path)
	require.NoError(t, err)
	assert.Equal(t, 2, l.HeaderRows)
	assert.Equal(t, 3, l.Columns.ItemName)
	assert.Equal(t, 3, l.Columns.TotalBudget, "unset offsets keep their default")
	assert.Equal(t, []YearColumns{{Year: 2026, Budget: 21, Executed: 23}}, l.Years)
	assert.Equal(t, DefaultLayout().CategoryLabels, l.CategoryLabels)
}

func TestLoadLayoutErrors(t *testing.T) {
	_, err := LoadLayout(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("header_rows: -1\n"), 0o644))
	_, err = LoadLayout(path)
	assert.ErrorContains(t, err, "header_rows")
}
