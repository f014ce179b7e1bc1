package core

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status labels as stored in the remote database.
const (
	StatusNormal     Status = "정상"
	StatusCaution    Status = "주의"
	StatusOverrun    Status = "초과"
	StatusUnexecuted Status = "미집행"
)

// OtherCategory is the bucket for records without a category.
const OtherCategory = "기타"

// cautionThreshold is the execution rate below which a line is flagged.
var cautionThreshold = decimal.RequireFromString("0.3")

type (
	Status string

	// Record is the canonical budget line produced from one sheet row.
	// ItemName is the business key used to match remote entries; it is not
	// guaranteed unique across categories.
	Record struct {
		ItemName       string
		Category       string
		Subcategory    string
		TotalBudget    decimal.Decimal
		UsedSupply     decimal.Decimal
		UsedTax        decimal.Decimal
		UsedTotal      decimal.Decimal
		Remaining      decimal.Decimal
		ExecutionRate  decimal.Decimal
		Status         Status
		YearlyBudget   map[int]decimal.Decimal
		YearlyExecuted map[int]decimal.Decimal
		LastSyncDate   time.Time
		// Row is the 1-based source row, zero when the record did not come
		// from a sheet.
		Row int
	}

	// SyncStats accumulates the outcome of one reconciliation run.
	SyncStats struct {
		Updated int
		Created int
		Errors  int
		Failed  []string
	}
)

var (
	ErrEmptyItemName      = errors.New("empty item name")
	ErrNonPositiveBudget  = errors.New("total budget must be positive")
	ErrNegativeUsedAmount = errors.New("used amount cannot be negative")
)

// Statuses lists the four known statuses in display order.
func Statuses() []Status {
	return []Status{StatusNormal, StatusCaution, StatusOverrun, StatusUnexecuted}
}

// Known reports whether s is one of the four classification labels.
func (s Status) Known() bool {
	switch s {
	case StatusNormal, StatusCaution, StatusOverrun, StatusUnexecuted:
		return true
	}
	return false
}

// Name returns the English name of the status.
func (s Status) Name() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusCaution:
		return "caution"
	case StatusOverrun:
		return "overrun"
	case StatusUnexecuted:
		return "unexecuted"
	}
	return "unknown"
}

// Classify derives a status from the execution rate and the remaining
// balance. Overrun wins over every other rule.
func Classify(executionRate, remaining decimal.Decimal) Status {
	switch {
	case remaining.IsNegative():
		return StatusOverrun
	case executionRate.IsZero():
		return StatusUnexecuted
	case executionRate.LessThan(cautionThreshold):
		return StatusCaution
	default:
		return StatusNormal
	}
}

// Classified returns a copy of r with its status recomputed.
func (r Record) Classified() Record {
	r.Status = Classify(r.ExecutionRate, r.Remaining)
	return r
}

// Validate checks the row-shape rules a record must pass to be synced.
func (r Record) Validate() error {
	if strings.TrimSpace(r.ItemName) == "" {
		return ErrEmptyItemName
	}
	if !r.TotalBudget.IsPositive() {
		return ErrNonPositiveBudget
	}
	if r.UsedSupply.IsNegative() || r.UsedTax.IsNegative() || r.UsedTotal.IsNegative() {
		return ErrNegativeUsedAmount
	}
	return nil
}

// CategoryOrOther returns the category, or OtherCategory when empty.
func (r Record) CategoryOrOther() string {
	if c := strings.TrimSpace(r.Category); c != "" {
		return c
	}
	return OtherCategory
}

// StableKey identifies a budget line by content rather than by its name
// alone, so that equally named items in different categories stay apart.
func (r Record) StableKey() string {
	h := sha256.New()
	for _, part := range []string{r.Category, r.Subcategory, r.ItemName} {
		h.Write([]byte(strings.TrimSpace(part)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Years returns the sorted set of years present in either yearly map.
func (r Record) Years() []int {
	seen := make(map[int]struct{}, len(r.YearlyBudget)+len(r.YearlyExecuted))
	var years []int
	for _, m := range []map[int]decimal.Decimal{r.YearlyBudget, r.YearlyExecuted} {
		for y := range m {
			if _, ok := seen[y]; ok {
				continue
			}
			seen[y] = struct{}{}
			years = append(years, y)
		}
	}
	slices.Sort(years)
	return years
}

// Total is the number of records the run attempted.
func (s SyncStats) Total() int {
	return s.Updated + s.Created + s.Errors
}

// HasErrors reports whether any record failed to sync.
func (s SyncStats) HasErrors() bool {
	return s.Errors > 0
}
