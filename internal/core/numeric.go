// Package core holds the budget domain: canonical records, status
// classification, numeric cell parsing and summary aggregation.
//
// This file contains the lossy cell parsers used by the sheet scanner.
// They never fail: malformed input degrades to zero and the caller decides
// whether a zero-valued row is worth keeping.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const placeholderDash = "-"

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// ParseCurrency parses a currency cell into a non-negative decimal.
//
// Empty cells, nil and the placeholder dash map to zero. Thousands
// separators and whitespace are stripped from strings. Anything that
// still does not parse, and any negative value, yields zero.
//
// Examples:
//
//	ParseCurrency("1,000,000") -> 1000000
//	ParseCurrency("-")         -> 0
//	ParseCurrency("n/a")       -> 0
func ParseCurrency(v any) decimal.Decimal {
	d := ParseAmount(v)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParseAmount is ParseCurrency without the lower clamp. It is used for
// balance columns where a negative value signals overspend. A leading
// triangle (△ or ▲), the accounting minus used in Korean ledgers, is read
// as a minus sign.
func ParseAmount(v any) decimal.Decimal {
	if d, ok := numericValue(v); ok {
		return d
	}
	s, ok := v.(string)
	if !ok {
		return decimal.Zero
	}
	s = stripSeparators(s, ",")
	if s == "" || s == placeholderDash {
		return decimal.Zero
	}
	neg := false
	for _, marker := range []string{"△", "▲"} {
		if strings.HasPrefix(s, marker) {
			s = strings.TrimPrefix(s, marker)
			neg = true
			break
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if neg {
		return d.Neg()
	}
	return d
}

// ParsePercentage parses an execution-rate cell into a fraction.
//
// Numbers at or below 1 are taken as already normalized; anything above 1
// looks like a percentage and is divided by 100. Strings lose a trailing
// percent sign and commas before the same rule is applied.
//
// Examples:
//
//	ParsePercentage(0.22)  -> 0.22
//	ParsePercentage(22)    -> 0.22
//	ParsePercentage("22%") -> 0.22
func ParsePercentage(v any) decimal.Decimal {
	d, ok := numericValue(v)
	if !ok {
		s, isString := v.(string)
		if !isString {
			return decimal.Zero
		}
		s = stripSeparators(s, ",", "%")
		if s == "" || s == placeholderDash {
			return decimal.Zero
		}
		parsed, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		d = parsed
	}
	if d.GreaterThan(one) {
		return d.Div(hundred)
	}
	return d
}

func numericValue(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, true
		}
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case int32:
		return decimal.NewFromInt32(n), true
	}
	return decimal.Zero, false
}

func stripSeparators(s string, extra ...string) string {
	s = strings.TrimSpace(s)
	for _, sep := range extra {
		s = strings.ReplaceAll(s, sep, "")
	}
	return strings.Join(strings.Fields(s), "")
}
