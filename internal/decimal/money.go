package decimal

import (
	"github.com/shopspring/decimal"
)

// Decimal is the amount type used across documents
type Decimal = decimal.Decimal

// Zero is decimal zero
var Zero = decimal.Zero

// MoneyPlaces is the scale eTIMS expects for amounts (KES cents)
const MoneyPlaces int32 = 2

// FromInt creates decimal from int
func FromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// FromString parses decimal from string
func FromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// MustFromString parses decimal from string, panics on error
func MustFromString(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Quantize rounds to cents, half-up (half away from zero)
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// LineTotal computes qty * unit price quantized to cents
func LineTotal(qty, unitPrice decimal.Decimal) decimal.Decimal {
	return Quantize(qty.Mul(unitPrice))
}

// ExactlyEqual compares value and scale-free magnitude without any rounding.
// 300.30000000000004 is not exactly 300.30, while 300.3 is.
func ExactlyEqual(a, b decimal.Decimal) bool {
	return a.Equal(b)
}

// EqualAtCents compares two amounts after quantizing both to cents
func EqualAtCents(a, b decimal.Decimal) bool {
	return Quantize(a).Equal(Quantize(b))
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// IsPositive returns true if decimal is greater than zero
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(Zero)
}

// IsNonNegative returns true if decimal is >= zero
func IsNonNegative(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(Zero)
}
