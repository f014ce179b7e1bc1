package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []Record {
	return []Record{
		{
			ItemName: "연구원 인건비", Category: "인건비(110)",
			TotalBudget: dec("1000000"), UsedTotal: dec("220000"), Remaining: dec("780000"),
			Status:       StatusCaution,
			YearlyBudget: map[int]decimal.Decimal{2024: dec("400000"), 2025: dec("600000")},
			YearlyExecuted: map[int]decimal.Decimal{2024: dec("220000")},
		},
		{
			ItemName: "네트워크 구축", Category: "유형자산(430)",
			TotalBudget: dec("400000"), UsedTotal: dec("456000"), Remaining: dec("-56000"),
			Status:       StatusOverrun,
			YearlyBudget: map[int]decimal.Decimal{2025: dec("400000")},
		},
		{
			ItemName: "감리용역", Category: "",
			TotalBudget: dec("160000"), UsedTotal: decimal.Zero, Remaining: dec("160000"),
			Status: StatusUnexecuted,
		},
		{
			ItemName: "출장비", Category: "인건비(110)",
			TotalBudget: dec("40000"), UsedTotal: dec("36000"), Remaining: dec("4000"),
			Status: Status("보류"),
		},
	}
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	deadline := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)

	s := Summarize(sampleRecords(), deadline, now)

	assert.True(t, s.TotalBudget.Equal(dec("1600000")))
	assert.True(t, s.TotalExecuted.Equal(dec("712000")))
	assert.True(t, s.TotalRemaining.Equal(dec("888000")))
	assert.True(t, s.ExecutionRate.Equal(dec("44.5")), "rate %s", s.ExecutionRate)
	assert.Equal(t, 4, s.ItemCount)

	// unknown statuses are left out of the histogram but not the item count
	assert.Equal(t, map[Status]int{
		StatusNormal: 0, StatusCaution: 1, StatusOverrun: 1, StatusUnexecuted: 1,
	}, s.StatusCounts)

	require.Contains(t, s.ByCategory, "인건비(110)")
	assert.Equal(t, 2, s.ByCategory["인건비(110)"].ItemCount)
	assert.True(t, s.ByCategory["인건비(110)"].Budget.Equal(dec("1040000")))
	require.Contains(t, s.ByCategory, OtherCategory)
	assert.Equal(t, 1, s.ByCategory[OtherCategory].ItemCount)
	assert.Equal(t, []string{"인건비(110)", "유형자산(430)", OtherCategory}, s.CategoryOrder)

	require.Contains(t, s.ByYear, 2025)
	assert.True(t, s.ByYear[2025].Budget.Equal(dec("1000000")))
	assert.True(t, s.ByYear[2024].Executed.Equal(dec("220000")))

	assert.Equal(t, 73, s.DaysRemaining)
}

func TestSummarizeCategoryTotalsMatchGlobal(t *testing.T) {
	s := Summarize(sampleRecords(), time.Time{}, time.Now())
	sum := decimal.Zero
	for _, c := range s.ByCategory {
		sum = sum.Add(c.Budget)
	}
	assert.True(t, sum.Equal(s.TotalBudget))
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, time.Time{}, time.Now())
	assert.True(t, s.ExecutionRate.IsZero())
	assert.Zero(t, s.ItemCount)
	assert.Len(t, s.StatusCounts, 4)
	assert.Empty(t, s.ByCategory)
}

func TestDaysRemaining(t *testing.T) {
	deadline := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		now  time.Time
		want int
	}{
		{time.Date(2025, 12, 30, 15, 0, 0, 0, time.UTC), 0},
		{time.Date(2025, 12, 29, 23, 0, 0, 0, time.UTC), 1},
		{time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 364},
		{time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DaysRemaining(deadline, tc.now), "now=%s", tc.now)
	}
}

func TestExecutionPercentRounding(t *testing.T) {
	assert.True(t, ExecutionPercent(dec("1"), dec("3")).Equal(dec("33.3")))
	assert.True(t, ExecutionPercent(dec("2"), dec("3")).Equal(dec("66.7")))
	assert.True(t, ExecutionPercent(dec("5"), decimal.Zero).IsZero())
}

func TestExecutionPercentRoundsHalfToEven(t *testing.T) {
	hundred := dec("100")
	cases := map[string]string{
		"22.25": "22.2",
		"22.35": "22.4",
		"22.15": "22.2",
		"22.26": "22.3",
		"0.05":  "0",
	}
	for executed, want := range cases {
		got := ExecutionPercent(dec(executed), hundred)
		assert.True(t, got.Equal(dec(want)), "%s%% rounds to %s, got %s", executed, want, got)
	}
}
