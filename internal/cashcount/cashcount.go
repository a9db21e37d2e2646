// Package cashcount compares physical cash counts against declared and
// expected totals.  Every function is pure: no I/O, no clock, no state.
package cashcount

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultTolerance is the largest difference still accepted as a match: one cent.
var DefaultTolerance = decimal.New(1, -2)

// StandardDenominations lists the bills and coins in circulation in Panama
// (US dollar bills plus balboa coins).  Client terminals use it to render a
// counting form; breakdowns may contain any other positive denomination.
var StandardDenominations = []decimal.Decimal{
	decimal.NewFromInt(100),
	decimal.NewFromInt(50),
	decimal.NewFromInt(20),
	decimal.NewFromInt(10),
	decimal.NewFromInt(5),
	decimal.NewFromInt(1),
	decimal.New(50, -2),
	decimal.New(25, -2),
	decimal.New(10, -2),
	decimal.New(5, -2),
	decimal.New(1, -2),
}

// ErrInvalidBreakdown is returned by ValidateBreakdown.
var ErrInvalidBreakdown = errors.New("invalid cash breakdown")

// ErrInvalidAmount is returned by ValidateAmount.
var ErrInvalidAmount = errors.New("invalid money amount")

// MaxAmount is the largest magnitude a DECIMAL(12,2) column holds.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// ValidateAmount rejects amounts with more than two decimal places or a
// magnitude above MaxAmount.  Trailing zeros (10.500) are accepted.
func ValidateAmount(d decimal.Decimal) error {
	if !d.Truncate(2).Equal(d) {
		return fmt.Errorf("%w: %s has more than 2 decimal places", ErrInvalidAmount, d.String())
	}
	if d.Abs().GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: %s exceeds %s", ErrInvalidAmount, d.String(), MaxAmount.StringFixed(2))
	}
	return nil
}

// Denomination is one line of a drawer count.
type Denomination struct {
	Denomination decimal.Decimal `json:"denomination"`
	Count        int             `json:"count"`
}

// Result is the outcome of comparing two totals.
type Result struct {
	IsValid    bool            `json:"is_valid"`
	Difference decimal.Decimal `json:"difference"`
	Message    string          `json:"message"`
}

// ClosingResult holds the three pairwise comparisons made when closing a
// drawer.  OverallValid is true only when all three match.
type ClosingResult struct {
	CountedVsManual   Result `json:"counted_vs_manual"`
	CountedVsExpected Result `json:"counted_vs_expected"`
	ManualVsExpected  Result `json:"manual_vs_expected"`
	OverallValid      bool   `json:"overall_valid"`
}

// Validate compares a counted total with a manually declared one.  The
// result is valid when |counted - manual| <= tolerance.  A negative
// tolerance is treated as zero.
func Validate(counted, manual, tolerance decimal.Decimal) Result {
	if tolerance.IsNegative() {
		tolerance = decimal.Zero
	}
	diff := counted.Sub(manual).Abs()
	if diff.LessThanOrEqual(tolerance) {
		return Result{
			IsValid:    true,
			Difference: diff,
			Message:    fmt.Sprintf("totals match (difference %s)", diff.StringFixed(2)),
		}
	}
	return Result{
		IsValid:    false,
		Difference: diff,
		Message: fmt.Sprintf("totals differ by %s (%s vs %s, tolerance %s)",
			diff.StringFixed(2), counted.StringFixed(2), manual.StringFixed(2), tolerance.StringFixed(2)),
	}
}

// ValidateForClosing runs the three pairwise checks used at close time.
func ValidateForClosing(counted, manual, expected, tolerance decimal.Decimal) ClosingResult {
	r := ClosingResult{
		CountedVsManual:   Validate(counted, manual, tolerance),
		CountedVsExpected: Validate(counted, expected, tolerance),
		ManualVsExpected:  Validate(manual, expected, tolerance),
	}
	r.OverallValid = r.CountedVsManual.IsValid && r.CountedVsExpected.IsValid && r.ManualVsExpected.IsValid
	return r
}

// CalculateTotal returns Σ denomination * count.
func CalculateTotal(breakdown []Denomination) decimal.Decimal {
	total := decimal.Zero
	for _, d := range breakdown {
		total = total.Add(d.Denomination.Mul(decimal.NewFromInt(int64(d.Count))))
	}
	return total
}

// ValidateBreakdown rejects lines with a non-positive denomination, a
// negative count or a denomination finer than a cent, and a total above
// MaxAmount.  An empty breakdown is valid.
func ValidateBreakdown(breakdown []Denomination) error {
	for i, d := range breakdown {
		if !d.Denomination.IsPositive() {
			return fmt.Errorf("%w: line %d has denomination %s", ErrInvalidBreakdown, i, d.Denomination.String())
		}
		if d.Count < 0 {
			return fmt.Errorf("%w: line %d has negative count %d", ErrInvalidBreakdown, i, d.Count)
		}
		if err := ValidateAmount(d.Denomination); err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrInvalidBreakdown, i, err)
		}
	}
	if err := ValidateAmount(CalculateTotal(breakdown)); err != nil {
		return fmt.Errorf("%w: total: %v", ErrInvalidBreakdown, err)
	}
	return nil
}
