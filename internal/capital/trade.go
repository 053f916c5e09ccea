package capital

import (
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"

	"trade-journal/internal/errors"
	"trade-journal/internal/models"
)

// Snapshot is the immutable input to every trade calculator.
type Snapshot struct {
	Trade        *models.Trade
	Transactions []models.Transaction
}

// Calculator derives one figure from a snapshot.
type Calculator func(Snapshot) (decimal.Decimal, error)

// sumKinds adds the amounts of the trade's live transactions of the given kinds.
func (s Snapshot) sumKinds(kinds ...models.CategoryKind) (decimal.Decimal, error) {
	total := decimal.Zero
	for i := range s.Transactions {
		tx := &s.Transactions[i]
		if tx.Deleted() || tx.Category.TradeID != s.Trade.ID {
			continue
		}
		for _, k := range kinds {
			if tx.Category.Kind != k {
				continue
			}
			var err error
			if total, err = Add(total, tx.Amount); err != nil {
				return decimal.Zero, err
			}
			break
		}
	}
	return total, nil
}

func (s Snapshot) has(match func(models.CategoryKind) bool) bool {
	for i := range s.Transactions {
		tx := &s.Transactions[i]
		if !tx.Deleted() && tx.Category.TradeID == s.Trade.ID && match(tx.Category.Kind) {
			return true
		}
	}
	return false
}

func (s Snapshot) valid() error {
	if s.Trade == nil {
		return errors.NewValidationError("trade", nil, "snapshot has no trade")
	}
	return nil
}

// Funded is capital allocated to the trade and not yet returned.
func Funded(s Snapshot) (decimal.Decimal, error) {
	if err := s.valid(); err != nil {
		return decimal.Zero, err
	}
	funded, err := s.sumKinds(models.KindFundTrade)
	if err != nil {
		return decimal.Zero, err
	}
	returned, err := s.sumKinds(models.KindPaymentFromTrade)
	if err != nil {
		return decimal.Zero, err
	}
	return Sub(funded, returned)
}

// InMarket is the capital opened into the position. It drops to zero once
// any exit or return of funds is recorded.
func InMarket(s Snapshot) (decimal.Decimal, error) {
	if err := s.valid(); err != nil {
		return decimal.Zero, err
	}
	if s.has(func(k models.CategoryKind) bool { return k.IsExit() || k == models.KindPaymentFromTrade }) {
		return decimal.Zero, nil
	}
	return s.sumKinds(models.KindOpenTrade)
}

// NotAtRisk is the part of the position value protected by the safety stop.
func NotAtRisk(s Snapshot) (decimal.Decimal, error) {
	if err := s.valid(); err != nil {
		return decimal.Zero, err
	}
	t := s.Trade
	entry := t.Entry.Price
	if t.Entry.AverageFilledPrice != nil {
		entry = *t.Entry.AverageFilledPrice
	}
	qty := decimal.NewFromInt(t.Entry.Quantity)

	value, err := Mul(entry, qty)
	if err != nil {
		return decimal.Zero, err
	}

	var adverse decimal.Decimal
	if t.Direction() == models.DirectionLong {
		adverse, err = Sub(entry, t.SafetyStop.Price)
	} else {
		adverse, err = Sub(t.SafetyStop.Price, entry)
	}
	if err != nil {
		return decimal.Zero, err
	}
	if adverse.IsNegative() {
		adverse = decimal.Zero
	}
	loss, err := Mul(adverse, qty)
	if err != nil {
		return decimal.Zero, err
	}
	protected, err := Sub(value, loss)
	if err != nil {
		return decimal.Zero, err
	}
	if protected.IsNegative() {
		return decimal.Zero, nil
	}
	return protected, nil
}

// OutOfMarket is the capital returned by exits.
func OutOfMarket(s Snapshot) (decimal.Decimal, error) {
	if err := s.valid(); err != nil {
		return decimal.Zero, err
	}
	return s.sumKinds(models.KindCloseSafetyStop, models.KindCloseTarget, models.KindCloseSafetyStopSlippage)
}

// Required is the capital needed to open the position at the entry price.
func Required(s Snapshot) (decimal.Decimal, error) {
	if err := s.valid(); err != nil {
		return decimal.Zero, err
	}
	return Mul(s.Trade.Entry.Price, decimal.NewFromInt(s.Trade.Entry.Quantity))
}

// Taxable is the tax paid out of the trade.
func Taxable(s Snapshot) (decimal.Decimal, error) {
	if err := s.valid(); err != nil {
		return decimal.Zero, err
	}
	return s.sumKinds(models.KindPaymentTax)
}

// Fees is the open and close fees charged to the trade.
func Fees(s Snapshot) (decimal.Decimal, error) {
	if err := s.valid(); err != nil {
		return decimal.Zero, err
	}
	return s.sumKinds(models.KindFeeOpen, models.KindFeeClose)
}

// Balance computes the cached TradeBalance. The calculators share nothing
// but the snapshot and run concurrently; the first error wins.
func Balance(s Snapshot) (models.TradeBalance, error) {
	if err := s.valid(); err != nil {
		return models.TradeBalance{}, err
	}

	var b models.TradeBalance
	p := pool.New().WithErrors().WithFirstError()
	run := func(dst *decimal.Decimal, calc Calculator) {
		p.Go(func() error {
			v, err := calc(s)
			if err != nil {
				return err
			}
			*dst = v
			return nil
		})
	}
	run(&b.Funding, Funded)
	run(&b.CapitalInMarket, InMarket)
	run(&b.CapitalOutOfMarket, OutOfMarket)
	run(&b.Taxed, Taxable)
	if s.Trade.Status == models.StatusClosed {
		run(&b.TotalPerformance, Performance)
	}
	if err := p.Wait(); err != nil {
		return models.TradeBalance{}, err
	}
	return b, nil
}
