// Package money converts between integer cents and decimal display amounts.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// ErrOverflow is returned when an amount does not fit in int64 cents.
var ErrOverflow = errors.New("amount is too large")

// ParseCents parses a user supplied amount such as "12.5" or "$1,200.00" into cents.
// Amounts with more than two decimal places are rejected rather than rounded.
func ParseCents(raw string) (int64, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("amount is required")
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative")
	}
	cents := amount.Mul(hundred)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than two decimal places", raw)
	}
	if cents.GreaterThan(maxCents) {
		return 0, fmt.Errorf("amount %q is too large", raw)
	}
	return cents.IntPart(), nil
}

// LineTotal is unitCents × quantity, or ErrOverflow when the product leaves int64.
func LineTotal(unitCents int64, quantity int) (int64, error) {
	return fit(decimal.NewFromInt(unitCents).Mul(decimal.NewFromInt(int64(quantity))))
}

// Sum adds cent amounts, or returns ErrOverflow when the total leaves int64.
func Sum(amounts ...int64) (int64, error) {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromInt(a))
	}
	return fit(total)
}

func fit(cents decimal.Decimal) (int64, error) {
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, ErrOverflow
	}
	return cents.IntPart(), nil
}

// Format renders cents as a dollar string with two decimals, e.g. "$12.50".
func Format(cents int64) string {
	return "$" + Decimal(cents).StringFixed(2)
}

// Decimal returns cents as a decimal dollar amount.
func Decimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
