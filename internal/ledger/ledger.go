// Package ledger implements the append-only transaction ledger.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trade-journal/internal/capital"
	"trade-journal/internal/errors"
	"trade-journal/internal/models"
	"trade-journal/internal/store"
)

// NewTransaction is the input to Append.
type NewTransaction struct {
	AccountID string
	TradeID   string
	Currency  models.Currency
	Amount    decimal.Decimal
	Category  models.TransactionCategory
}

// Ledger appends and queries categorized transactions.
type Ledger struct {
	now func() time.Time
}

// New creates a ledger stamping entries with clock. A nil clock uses time.Now.
func New(clock func() time.Time) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{now: clock}
}

// Validate checks an entry without touching storage.
func (in NewTransaction) Validate() error {
	if in.AccountID == "" {
		return errors.NewValidationError("account_id", in.AccountID, "is required")
	}
	if !in.Currency.Valid() {
		return errors.NewValidationError("currency", in.Currency, "unsupported currency")
	}
	if in.Amount.IsNegative() {
		return errors.NewValidationError("amount", in.Amount.String(), "must not be negative")
	}
	if in.Amount.GreaterThan(capital.MaxAmount) {
		return errors.NewValidationError("amount", in.Amount.String(), "exceeds representable range")
	}
	if err := in.Category.Validate(); err != nil {
		return err
	}
	if in.Category.TradeID != in.TradeID {
		return errors.NewValidationError("trade_id", in.TradeID,
			"does not match category trade "+in.Category.TradeID)
	}
	return nil
}

// Append validates and writes a transaction. Trade-scoped entries must name
// a trade of the same account and currency. An entry that would push the
// account balance out of range is rejected before it is written.
func (l *Ledger) Append(ctx context.Context, w store.Writer, in NewTransaction) (*models.Transaction, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if in.TradeID != "" {
		trade, err := w.ReadTrade(ctx, in.TradeID)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read trade %s", in.TradeID)
		}
		if trade.AccountID != in.AccountID {
			return nil, errors.NewValidationError("trade_id", in.TradeID, "belongs to another account")
		}
		if trade.Currency != in.Currency {
			return nil, errors.NewValidationError("currency", in.Currency, "does not match trade currency "+string(trade.Currency))
		}
	}

	tx := &models.Transaction{
		ID:        uuid.NewString(),
		AccountID: in.AccountID,
		TradeID:   in.TradeID,
		Currency:  in.Currency,
		Amount:    in.Amount,
		Category:  in.Category,
		CreatedAt: l.now().UTC(),
	}

	if in.Category.Kind.AccountFlow() != models.FlowIgnored {
		existing, err := w.QueryTransactions(ctx, models.TransactionFilter{AccountID: in.AccountID, Currency: in.Currency})
		if err != nil {
			return nil, err
		}
		if _, err := capital.AccountBalance(append(existing, *tx)); err != nil {
			return nil, err
		}
	}

	if err := w.AppendTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// MarkDeleted soft-deletes a transaction. It stays stored but leaves every
// query and calculation.
func (l *Ledger) MarkDeleted(ctx context.Context, w store.Writer, id string) error {
	return w.MarkTransactionDeleted(ctx, id, l.now().UTC())
}

// Query returns non-deleted transactions matching filter in insertion order.
func (l *Ledger) Query(ctx context.Context, r store.Reader, filter models.TransactionFilter) ([]models.Transaction, error) {
	return r.QueryTransactions(ctx, filter)
}

// Account returns every live transaction of an account in one currency.
func (l *Ledger) Account(ctx context.Context, r store.Reader, accountID string, currency models.Currency) ([]models.Transaction, error) {
	return r.QueryTransactions(ctx, models.TransactionFilter{AccountID: accountID, Currency: currency})
}

// Trade returns every live transaction scoped to a trade.
func (l *Ledger) Trade(ctx context.Context, r store.Reader, tradeID string) ([]models.Transaction, error) {
	return r.QueryTransactions(ctx, models.TransactionFilter{TradeID: tradeID})
}

// Union of categories that move capital between the account and its trades,
// leaving taxes out.
var excludingTaxes = []models.CategoryKind{
	models.KindDeposit,
	models.KindWithdrawal,
	models.KindFeeOpen,
	models.KindFeeClose,
	models.KindFundTrade,
	models.KindPaymentFromTrade,
}

var taxes = []models.CategoryKind{
	models.KindPaymentTax,
	models.KindWithdrawalTax,
}

var beforeMonth = []models.CategoryKind{
	models.KindDeposit,
	models.KindWithdrawal,
	models.KindFundTrade,
	models.KindPaymentFromTrade,
}

// ExcludingTaxes returns deposits, withdrawals, fees and trade funding flows.
func (l *Ledger) ExcludingTaxes(ctx context.Context, r store.Reader, accountID string, currency models.Currency) ([]models.Transaction, error) {
	return r.QueryTransactions(ctx, models.TransactionFilter{AccountID: accountID, Currency: currency, Kinds: excludingTaxes})
}

// Taxes returns tax payments and tax withdrawals.
func (l *Ledger) Taxes(ctx context.Context, r store.Reader, accountID string, currency models.Currency) ([]models.Transaction, error) {
	return r.QueryTransactions(ctx, models.TransactionFilter{AccountID: accountID, Currency: currency, Kinds: taxes})
}

// BeforeMonth returns deposits, withdrawals and trade funding flows created
// before the first instant of the current month.
func (l *Ledger) BeforeMonth(ctx context.Context, r store.Reader, accountID string, currency models.Currency) ([]models.Transaction, error) {
	return r.QueryTransactions(ctx, models.TransactionFilter{
		AccountID: accountID,
		Currency:  currency,
		Kinds:     beforeMonth,
		To:        MonthStart(l.now()),
	})
}

// MonthStart returns midnight UTC on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Now returns the ledger clock reading.
func (l *Ledger) Now() time.Time {
	return l.now().UTC()
}
