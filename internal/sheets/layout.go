package sheets

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

type (
	// CategoryLabel maps a label found in a category cell to the code that
	// is stored on records, e.g. "인건비" -> "인건비(110)".
	CategoryLabel struct {
		Label string `mapstructure:"label"`
		Code  string `mapstructure:"code"`
	}

	// YearColumns locates the budget/executed pair of one fiscal year.
	YearColumns struct {
		Year     int `mapstructure:"year"`
		Budget   int `mapstructure:"budget"`
		Executed int `mapstructure:"executed"`
	}

	// Columns holds zero-based column offsets.
	Columns struct {
		Category      int `mapstructure:"category"`
		Subcategory   int `mapstructure:"subcategory"`
		ItemName      int `mapstructure:"item_name"`
		TotalBudget   int `mapstructure:"total_budget"`
		UsedSupply    int `mapstructure:"used_supply"`
		UsedTax       int `mapstructure:"used_tax"`
		UsedTotal     int `mapstructure:"used_total"`
		Remaining     int `mapstructure:"remaining"`
		ExecutionRate int `mapstructure:"execution_rate"`
	}

	// Layout describes where things live in the worksheet.
	Layout struct {
		HeaderRows      int             `mapstructure:"header_rows"`
		MinColumns      int             `mapstructure:"min_columns"`
		CategoryColumns []int           `mapstructure:"category_columns"`
		MarkerColumns   []int           `mapstructure:"marker_columns"`
		CategoryLabels  []CategoryLabel `mapstructure:"category_labels"`
		SkipMarkers     []string        `mapstructure:"skip_markers"`
		SubtotalNames   []string        `mapstructure:"subtotal_names"`
		Columns         Columns         `mapstructure:"columns"`
		Years           []YearColumns   `mapstructure:"years"`
	}
)

// DefaultLayout is the layout of the project budget workbook.
func DefaultLayout() Layout {
	return Layout{
		HeaderRows:      4,
		MinColumns:      10,
		CategoryColumns: []int{0, 1},
		MarkerColumns:   []int{0, 1, 2},
		// Order matters: the first label contained in a category cell wins.
		CategoryLabels: []CategoryLabel{
			{Label: "인건비", Code: "인건비(110)"},
			{Label: "운영비", Code: "운영비(210)"},
			{Label: "여비", Code: "여비(220)"},
			{Label: "연구개발비", Code: "연구개발비(260)"},
			{Label: "유형자산", Code: "유형자산(430)"},
			{Label: "무형자산", Code: "무형자산(440)"},
			{Label: "건설비", Code: "건설비(420)"},
			{Label: "사업비배분", Code: "사업비배분(320)"},
		},
		SkipMarkers:   []string{"소 계", "총 계"},
		SubtotalNames: []string{"소 계", "소계"},
		Columns: Columns{
			Category:      0,
			Subcategory:   1,
			ItemName:      2,
			TotalBudget:   3,
			UsedSupply:    4,
			UsedTax:       5,
			UsedTotal:     6,
			Remaining:     7,
			ExecutionRate: 8,
		},
		Years: []YearColumns{
			{Year: 2024, Budget: 9, Executed: 13},
			{Year: 2025, Budget: 15, Executed: 19},
		},
	}
}

// LoadLayout reads a layout override file (YAML, TOML or JSON, by
// extension). Keys absent from the file keep their default value. An
// empty path returns DefaultLayout.
func LoadLayout(path string) (Layout, error) {
	l := DefaultLayout()
	if path == "" {
		return l, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Layout{}, fmt.Errorf("read layout %s: %w", path, err)
	}

	err := errors.Join(
		override(v, "header_rows", &l.HeaderRows, false),
		override(v, "min_columns", &l.MinColumns, false),
		override(v, "category_columns", &l.CategoryColumns, false),
		override(v, "marker_columns", &l.MarkerColumns, false),
		override(v, "category_labels", &l.CategoryLabels, false),
		override(v, "skip_markers", &l.SkipMarkers, false),
		override(v, "subtotal_names", &l.SubtotalNames, false),
		override(v, "columns", &l.Columns, true),
		override(v, "years", &l.Years, false),
	)
	if err != nil {
		return Layout{}, fmt.Errorf("layout %s: %w", path, err)
	}

	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// Validate rejects layouts the scanner cannot work with.
func (l Layout) Validate() error {
	if l.HeaderRows < 0 {
		return fmt.Errorf("layout: header_rows must not be negative")
	}
	if len(l.CategoryLabels) == 0 {
		return fmt.Errorf("layout: at least one category label is required")
	}
	if len(l.CategoryColumns) == 0 {
		return fmt.Errorf("layout: at least one category column is required")
	}
	for _, c := range append(append([]int{}, l.CategoryColumns...), l.MarkerColumns...) {
		if c < 0 {
			return fmt.Errorf("layout: negative column offset %d", c)
		}
	}
	for _, y := range l.Years {
		if y.Year <= 0 || y.Budget < 0 || y.Executed < 0 {
			return fmt.Errorf("layout: invalid year columns %+v", y)
		}
	}
	return nil
}

// override replaces *dst with the value under key when the file sets it.
// With merge, keys missing from a nested table keep the current value.
func override[T any](v *viper.Viper, key string, dst *T, merge bool) error {
	if !v.IsSet(key) {
		return nil
	}
	var next T
	if merge {
		next = *dst
	}
	if err := v.UnmarshalKey(key, &next); err != nil {
		return fmt.Errorf("key %s: %w", key, err)
	}
	*dst = next
	return nil
}
