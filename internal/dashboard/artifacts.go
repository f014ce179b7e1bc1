// Package dashboard builds the two JSON artifacts consumed by the static
// dashboard: the item list (budget_data.json) and the summary
// (summary.json). Keys follow the dashboard's existing schema.
package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"bms/internal/core"
)

// File names inside the output directory.
const (
	ItemsFile   = "budget_data.json"
	SummaryFile = "summary.json"
)

const dateLayout = "2006-01-02"

type (
	// Line is a record together with its remote id, if known.
	Line struct {
		ID string
		core.Record
	}

	Item struct {
		ID            string      `json:"id,omitempty"`
		ItemName      string      `json:"항목명"`
		Category      string      `json:"비목"`
		Subcategory   string      `json:"세목"`
		TotalBudget   json.Number `json:"총예산"`
		UsedSupply    json.Number `json:"사용금액_공급가"`
		UsedTax       json.Number `json:"사용금액_VAT"`
		UsedTotal     json.Number `json:"사용금액_합계"`
		Remaining     json.Number `json:"잔액"`
		ExecutionRate json.Number `json:"집행률"`
		Status        string      `json:"상태"`
		LastSyncDate  string      `json:"최종동기화"`
		// Yearly holds "<year>년예산" / "<year>년집행" columns.
		Yearly map[string]json.Number `json:"-"`
	}

	Items struct {
		Items       []Item `json:"items"`
		GeneratedAt string `json:"generated_at"`
	}

	CategoryTotals struct {
		Budget    json.Number `json:"예산"`
		Executed  json.Number `json:"집행"`
		Remaining json.Number `json:"잔액"`
		ItemCount int         `json:"항목수"`
	}

	YearTotals struct {
		Budget        json.Number `json:"예산"`
		Executed      json.Number `json:"집행"`
		ExecutionRate json.Number `json:"집행률"`
	}

	Summary struct {
		UpdateTime     string                    `json:"update_time"`
		UpdateDate     string                    `json:"update_date"`
		TotalBudget    json.Number               `json:"총예산"`
		TotalExecuted  json.Number               `json:"총집행"`
		TotalRemaining json.Number               `json:"총잔액"`
		ExecutionRate  json.Number               `json:"집행률"`
		ItemCount      int                       `json:"항목수"`
		StatusCounts   map[string]int            `json:"상태별"`
		ByCategory     map[string]CategoryTotals `json:"비목별"`
		ByYear         map[string]YearTotals     `json:"연도별"`
		DaysRemaining  int                       `json:"남은일수"`
		Deadline       string                    `json:"사업종료일"`
	}

	// Artifacts is the pair written per run.
	Artifacts struct {
		Items   Items
		Summary Summary
	}
)

// MarshalJSON flattens the yearly columns next to the fixed fields.
func (it Item) MarshalJSON() ([]byte, error) {
	type plain Item
	b, err := json.Marshal(plain(it))
	if err != nil || len(it.Yearly) == 0 {
		return b, err
	}
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	for k, v := range it.Yearly {
		m[k] = v
	}
	return json.Marshal(m)
}

// Build converts lines and their summary into artifacts. Timestamps are
// rendered in the summary's GeneratedAt location.
func Build(lines []Line, s core.Summary) Artifacts {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, newItem(l))
	}
	generated := s.GeneratedAt.Format(time.RFC3339)
	return Artifacts{
		Items: Items{
			Items:       items,
			GeneratedAt: generated,
		},
		Summary: newSummary(s),
	}
}

func newItem(l Line) Item {
	it := Item{
		ID:            l.ID,
		ItemName:      l.ItemName,
		Category:      l.CategoryOrOther(),
		Subcategory:   l.Subcategory,
		TotalBudget:   num(l.TotalBudget),
		UsedSupply:    num(l.UsedSupply),
		UsedTax:       num(l.UsedTax),
		UsedTotal:     num(l.UsedTotal),
		Remaining:     num(l.Remaining),
		ExecutionRate: num(l.ExecutionRate),
		Status:        string(l.Status),
	}
	if !l.LastSyncDate.IsZero() {
		it.LastSyncDate = l.LastSyncDate.Format(dateLayout)
	}
	if years := l.Years(); len(years) > 0 {
		it.Yearly = make(map[string]json.Number, len(years)*2)
		for _, y := range years {
			it.Yearly[fmt.Sprintf("%d년예산", y)] = num(l.YearlyBudget[y])
			it.Yearly[fmt.Sprintf("%d년집행", y)] = num(l.YearlyExecuted[y])
		}
	}
	return it
}

func newSummary(s core.Summary) Summary {
	out := Summary{
		UpdateTime:     s.GeneratedAt.Format(time.RFC3339),
		UpdateDate:     s.GeneratedAt.Format(dateLayout),
		TotalBudget:    num(s.TotalBudget),
		TotalExecuted:  num(s.TotalExecuted),
		TotalRemaining: num(s.TotalRemaining),
		ExecutionRate:  num(s.ExecutionRate),
		ItemCount:      s.ItemCount,
		StatusCounts:   make(map[string]int, len(s.StatusCounts)),
		ByCategory:     make(map[string]CategoryTotals, len(s.ByCategory)),
		ByYear:         make(map[string]YearTotals, len(s.ByYear)),
		DaysRemaining:  s.DaysRemaining,
	}
	if !s.Deadline.IsZero() {
		out.Deadline = s.Deadline.Format(dateLayout)
	}
	for st, n := range s.StatusCounts {
		out.StatusCounts[string(st)] = n
	}
	for name, c := range s.ByCategory {
		out.ByCategory[name] = CategoryTotals{
			Budget:    num(c.Budget),
			Executed:  num(c.Executed),
			Remaining: num(c.Remaining),
			ItemCount: c.ItemCount,
		}
	}
	for y, t := range s.ByYear {
		out.ByYear[strconv.Itoa(y)] = YearTotals{
			Budget:        num(t.Budget),
			Executed:      num(t.Executed),
			ExecutionRate: num(core.ExecutionPercent(t.Executed, t.Budget)),
		}
	}
	return out
}

func num(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// Encode renders both artifacts as indented JSON.
func (a Artifacts) Encode() (items, summary []byte, err error) {
	items, err = json.MarshalIndent(a.Items, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode items: %w", err)
	}
	summary, err = json.MarshalIndent(a.Summary, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode summary: %w", err)
	}
	return items, summary, nil
}

// WriteFiles writes both artifacts into dir, creating it if needed. Each
// file is written to a temp name and renamed so readers never see a
// partial file.
func (a Artifacts) WriteFiles(dir string) error {
	items, summary, err := a.Encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for name, data := range map[string][]byte{ItemsFile: items, SummaryFile: summary} {
		if err := writeAtomic(filepath.Join(dir, name), data); err != nil {
			return err
		}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
