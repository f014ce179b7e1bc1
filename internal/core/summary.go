package core

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// CategoryTotals is the rollup of one category bucket.
type CategoryTotals struct {
	Budget    decimal.Decimal
	Executed  decimal.Decimal
	Remaining decimal.Decimal
	ItemCount int
}

// YearTotals is the rollup of one fiscal year column pair.
type YearTotals struct {
	Budget   decimal.Decimal
	Executed decimal.Decimal
}

// Summary is rebuilt from scratch on every run and never mutated after.
type Summary struct {
	TotalBudget    decimal.Decimal
	TotalExecuted  decimal.Decimal
	TotalRemaining decimal.Decimal
	// ExecutionRate is a percentage rounded to one decimal place.
	ExecutionRate decimal.Decimal
	ItemCount     int
	StatusCounts  map[Status]int
	ByCategory    map[string]*CategoryTotals
	// CategoryOrder keeps categories in first-seen order.
	CategoryOrder []string
	ByYear        map[int]*YearTotals
	DaysRemaining int
	Deadline      time.Time
	GeneratedAt   time.Time
}

// Summarize folds records into a Summary. now and deadline drive the
// days-remaining countdown, which never goes below zero.
func Summarize(records []Record, deadline, now time.Time) Summary {
	s := Summary{
		TotalBudget:    decimal.Zero,
		TotalExecuted:  decimal.Zero,
		TotalRemaining: decimal.Zero,
		ExecutionRate:  decimal.Zero,
		ItemCount:      len(records),
		StatusCounts:   make(map[Status]int, 4),
		ByCategory:     make(map[string]*CategoryTotals),
		ByYear:         make(map[int]*YearTotals),
		Deadline:       deadline,
		GeneratedAt:    now,
	}
	for _, st := range Statuses() {
		s.StatusCounts[st] = 0
	}

	for _, r := range records {
		s.TotalBudget = s.TotalBudget.Add(r.TotalBudget)
		s.TotalExecuted = s.TotalExecuted.Add(r.UsedTotal)
		s.TotalRemaining = s.TotalRemaining.Add(r.Remaining)

		if r.Status.Known() {
			s.StatusCounts[r.Status]++
		}

		cat := r.CategoryOrOther()
		bucket, ok := s.ByCategory[cat]
		if !ok {
			bucket = &CategoryTotals{}
			s.ByCategory[cat] = bucket
			s.CategoryOrder = append(s.CategoryOrder, cat)
		}
		bucket.Budget = bucket.Budget.Add(r.TotalBudget)
		bucket.Executed = bucket.Executed.Add(r.UsedTotal)
		bucket.Remaining = bucket.Remaining.Add(r.Remaining)
		bucket.ItemCount++

		for _, y := range r.Years() {
			yt, ok := s.ByYear[y]
			if !ok {
				yt = &YearTotals{}
				s.ByYear[y] = yt
			}
			yt.Budget = yt.Budget.Add(r.YearlyBudget[y])
			yt.Executed = yt.Executed.Add(r.YearlyExecuted[y])
		}
	}

	s.ExecutionRate = ExecutionPercent(s.TotalExecuted, s.TotalBudget)
	s.DaysRemaining = DaysRemaining(deadline, now)
	return s
}

// ExecutionPercent returns executed/budget*100 rounded half to even to one
// decimal, or zero for a zero budget.
func ExecutionPercent(executed, budget decimal.Decimal) decimal.Decimal {
	if budget.IsZero() {
		return decimal.Zero
	}
	return executed.Div(budget).Mul(hundred).RoundBank(1)
}

// DaysRemaining counts whole days from now until deadline, floored at zero.
func DaysRemaining(deadline, now time.Time) int {
	days := int(math.Floor(deadline.Sub(now).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}
