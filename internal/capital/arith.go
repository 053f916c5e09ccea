// Package capital derives account and trade capital figures from the ledger.
// Every function here is a pure read-side projection.
package capital

import (
	"github.com/shopspring/decimal"

	"trade-journal/internal/errors"
)

// MaxAmount is the largest representable magnitude (a 96-bit mantissa).
var MaxAmount = decimal.RequireFromString("79228162514264337593543950335")

// MinAmount is the negative bound.
var MinAmount = MaxAmount.Neg()

func inRange(d decimal.Decimal) bool {
	return d.Cmp(MaxAmount) <= 0 && d.Cmp(MinAmount) >= 0
}

func overflow(op string, a, b decimal.Decimal) error {
	return errors.NewArithmeticOverflowError(op, a.String(), b.String())
}

// Add returns a+b or an ArithmeticOverflowError.
func Add(a, b decimal.Decimal) (decimal.Decimal, error) {
	if !inRange(a) || !inRange(b) {
		return decimal.Zero, overflow("+", a, b)
	}
	r := a.Add(b)
	if !inRange(r) {
		return decimal.Zero, overflow("+", a, b)
	}
	return r, nil
}

// Sub returns a-b or an ArithmeticOverflowError.
func Sub(a, b decimal.Decimal) (decimal.Decimal, error) {
	if !inRange(a) || !inRange(b) {
		return decimal.Zero, overflow("-", a, b)
	}
	r := a.Sub(b)
	if !inRange(r) {
		return decimal.Zero, overflow("-", a, b)
	}
	return r, nil
}

// Mul returns a*b or an ArithmeticOverflowError.
func Mul(a, b decimal.Decimal) (decimal.Decimal, error) {
	if !inRange(a) || !inRange(b) {
		return decimal.Zero, overflow("*", a, b)
	}
	r := a.Mul(b)
	if !inRange(r) {
		return decimal.Zero, overflow("*", a, b)
	}
	return r, nil
}

// Sum folds amounts with Add.
func Sum(amounts ...decimal.Decimal) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, a := range amounts {
		var err error
		if total, err = Add(total, a); err != nil {
			return decimal.Zero, err
		}
	}
	return total, nil
}
