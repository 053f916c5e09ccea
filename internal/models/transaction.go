package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an immutable ledger entry. Direction is carried by Category,
// Amount is never negative.
type Transaction struct {
	ID        string
	AccountID string
	TradeID   string
	Currency  Currency
	Amount    decimal.Decimal
	Category  TransactionCategory
	CreatedAt time.Time
	DeletedAt *time.Time
}

// Deleted reports whether the transaction has been soft-deleted.
func (t *Transaction) Deleted() bool {
	return t.DeletedAt != nil
}

// TransactionFilter selects ledger entries. Zero fields match everything.
type TransactionFilter struct {
	AccountID string
	Currency  Currency
	TradeID   string
	Kinds     []CategoryKind
	From      time.Time // inclusive
	To        time.Time // exclusive
}

// Match reports whether tx satisfies the filter. Deleted entries never match.
func (f TransactionFilter) Match(tx *Transaction) bool {
	if tx == nil || tx.Deleted() {
		return false
	}
	if f.AccountID != "" && tx.AccountID != f.AccountID {
		return false
	}
	if f.Currency != "" && tx.Currency != f.Currency {
		return false
	}
	if f.TradeID != "" && tx.TradeID != f.TradeID {
		return false
	}
	if !f.From.IsZero() && tx.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !tx.CreatedAt.Before(f.To) {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if tx.Category.Kind == k {
			return true
		}
	}
	return false
}
