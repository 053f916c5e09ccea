// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"trade-journal/internal/errors"
	"trade-journal/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.ErrNotFound

// Reader defines the read side of the journal storage.
type Reader interface {
	// Transactions, non-deleted, in insertion order
	QueryTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error)

	// Trades
	ReadTrade(ctx context.Context, id string) (*models.Trade, error)
	ReadTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error)

	// Accounts
	ReadAccount(ctx context.Context, id string) (*models.Account, error)
	ReadAccountByName(ctx context.Context, name string) (*models.Account, error)
	ReadAccounts(ctx context.Context) ([]models.Account, error)

	// Rules
	ReadActiveRules(ctx context.Context, accountID string) ([]models.Rule, error)
	ReadRules(ctx context.Context, accountID string) ([]models.Rule, error)

	// Trading vehicles, ordered by symbol
	ReadTradingVehicle(ctx context.Context, id string) (*models.TradingVehicle, error)
	ReadTradingVehicles(ctx context.Context) ([]models.TradingVehicle, error)
}

// Writer defines the mutating side. A Writer is only handed out inside
// DataStore.Atomic and its effects become visible on commit.
type Writer interface {
	Reader

	AppendTransaction(ctx context.Context, tx *models.Transaction) error
	MarkTransactionDeleted(ctx context.Context, id string, at time.Time) error

	CreateAccount(ctx context.Context, account *models.Account) error

	CreateTrade(ctx context.Context, trade *models.Trade) error
	UpdateTradeStatus(ctx context.Context, id string, status models.Status, at time.Time) (*models.Trade, error)
	UpdateTradeBalance(ctx context.Context, id string, balance models.TradeBalance) (*models.TradeBalance, error)
	UpdateOrder(ctx context.Context, order *models.Order) error

	CreateRule(ctx context.Context, rule *models.Rule) error
	DeactivateRule(ctx context.Context, accountID, id string) error

	CreateTradingVehicle(ctx context.Context, vehicle *models.TradingVehicle) error
}

// SharedScope is the Atomic scope for reference data that belongs to no
// account, such as trading vehicles.
const SharedScope = ""

// DataStore defines the interface for data persistence.
type DataStore interface {
	Reader

	// Atomic runs fn with all writes for accountID serialized. Every write
	// made through w is committed together, or none is when fn fails.
	Atomic(ctx context.Context, accountID string, fn func(w Writer) error) error

	// View runs fn against a single consistent snapshot.
	View(ctx context.Context, fn func(r Reader) error) error

	// Lifecycle
	Close() error
}

// TradeFilter represents filters for querying trades.
type TradeFilter struct {
	AccountID string
	Statuses  []models.Status
	Since     time.Time // created at or after
	Limit     int
}

// Match reports whether t satisfies the filter.
func (f TradeFilter) Match(t *models.Trade) bool {
	if f.AccountID != "" && t.AccountID != f.AccountID {
		return false
	}
	if !f.Since.IsZero() && t.CreatedAt.Before(f.Since) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if t.Status == s {
			return true
		}
	}
	return false
}
