package capital

import (
	"github.com/shopspring/decimal"

	"trade-journal/internal/errors"
	"trade-journal/internal/models"
)

// Performance is the realized result of a closed trade: exits minus funding,
// fees and taxes.
func Performance(s Snapshot) (decimal.Decimal, error) {
	if err := s.valid(); err != nil {
		return decimal.Zero, err
	}
	if s.Trade.Status != models.StatusClosed {
		return decimal.Zero, errors.NewInvalidStateError("performance", string(s.Trade.Status))
	}

	exits, err := OutOfMarket(s)
	if err != nil {
		return decimal.Zero, err
	}
	funded, err := Funded(s)
	if err != nil {
		return decimal.Zero, err
	}
	fees, err := Fees(s)
	if err != nil {
		return decimal.Zero, err
	}
	taxes, err := Taxable(s)
	if err != nil {
		return decimal.Zero, err
	}

	result, err := Sub(exits, funded)
	if err != nil {
		return decimal.Zero, err
	}
	if result, err = Sub(result, fees); err != nil {
		return decimal.Zero, err
	}
	return Sub(result, taxes)
}

// Profit is exits minus funding and fees, before tax. Used to size the tax
// and earnings payments on close.
func Profit(s Snapshot) (decimal.Decimal, error) {
	exits, err := OutOfMarket(s)
	if err != nil {
		return decimal.Zero, err
	}
	funded, err := Funded(s)
	if err != nil {
		return decimal.Zero, err
	}
	fees, err := Fees(s)
	if err != nil {
		return decimal.Zero, err
	}
	result, err := Sub(exits, funded)
	if err != nil {
		return decimal.Zero, err
	}
	return Sub(result, fees)
}

// Percent returns pct percent of amount, rounded to eight places.
func Percent(amount, pct decimal.Decimal) (decimal.Decimal, error) {
	v, err := Mul(amount, pct)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Div(decimal.NewFromInt(100)).Round(8), nil
}
