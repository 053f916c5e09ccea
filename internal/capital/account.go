package capital

import (
	"github.com/shopspring/decimal"

	"trade-journal/internal/models"
)

// AccountBalance folds an account's transactions into its capital balance.
// Callers pass the transactions of one account and one currency. Deleted
// entries are skipped. Any overflow fails the whole fold.
func AccountBalance(txs []models.Transaction) (decimal.Decimal, error) {
	total := decimal.Zero
	for i := range txs {
		tx := &txs[i]
		if tx.Deleted() {
			continue
		}
		var err error
		switch tx.Category.Kind.AccountFlow() {
		case models.FlowInflow:
			total, err = Add(total, tx.Amount)
		case models.FlowOutflow:
			total, err = Sub(total, tx.Amount)
		case models.FlowIgnored:
		}
		if err != nil {
			return decimal.Zero, err
		}
	}
	return total, nil
}

// AccountAvailable is the balance minus capital committed to trades that are
// funded but not yet opened.
func AccountAvailable(balance decimal.Decimal, committed ...decimal.Decimal) (decimal.Decimal, error) {
	reserved, err := Sum(committed...)
	if err != nil {
		return decimal.Zero, err
	}
	return Sub(balance, reserved)
}

// InTrade sums the funding still allocated to the given trades.
func InTrade(balances ...models.TradeBalance) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, b := range balances {
		var err error
		if total, err = Add(total, b.Funding); err != nil {
			return decimal.Zero, err
		}
	}
	return total, nil
}
