package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-journal/internal/capital"
	"trade-journal/internal/errors"
	"trade-journal/internal/models"
	"trade-journal/internal/store"
)

type fixture struct {
	ctx    context.Context
	store  *store.MemoryStore
	ledger *Ledger
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: store.NewMemoryStore(),
		now:   time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC),
	}
	f.ledger = New(func() time.Time { return f.now })

	err := f.store.Atomic(f.ctx, "acc", func(w store.Writer) error {
		if err := w.CreateAccount(f.ctx, &models.Account{ID: "acc", Name: "main", Environment: models.EnvironmentPaper}); err != nil {
			return err
		}
		return w.CreateTrade(f.ctx, &models.Trade{ID: "t1", AccountID: "acc", Currency: models.USD, Status: models.StatusNew})
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) append(in NewTransaction) (*models.Transaction, error) {
	var out *models.Transaction
	err := f.store.Atomic(f.ctx, in.AccountID, func(w store.Writer) error {
		var err error
		out, err = f.ledger.Append(f.ctx, w, in)
		return err
	})
	return out, err
}

func deposit(amount string) NewTransaction {
	return NewTransaction{AccountID: "acc", Currency: models.USD, Amount: decimal.RequireFromString(amount), Category: models.Deposit()}
}

func TestAppend(t *testing.T) {
	f := newFixture(t)

	tx, err := f.append(deposit("100.50"))
	require.NoError(t, err)

	_, err = uuid.Parse(tx.ID)
	assert.NoError(t, err)
	assert.Equal(t, f.now, tx.CreatedAt)
	assert.Equal(t, "acc", tx.AccountID)
	assert.True(t, decimal.RequireFromString("100.50").Equal(tx.Amount))

	txs, err := f.ledger.Account(f.ctx, f.store, "acc", models.USD)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, tx.ID, txs[0].ID)
}

func TestAppend_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   NewTransaction
	}{
		{"negative amount", NewTransaction{AccountID: "acc", Currency: models.USD, Amount: decimal.NewFromInt(-1), Category: models.Deposit()}},
		{"mismatched trade id", NewTransaction{AccountID: "acc", TradeID: "other", Currency: models.USD, Amount: decimal.NewFromInt(1), Category: models.FundTrade("t1")}},
		{"account scope with trade", NewTransaction{AccountID: "acc", TradeID: "t1", Currency: models.USD, Amount: decimal.NewFromInt(1), Category: models.TransactionCategory{Kind: models.KindDeposit, TradeID: "t1"}}},
		{"trade scope without trade", NewTransaction{AccountID: "acc", Currency: models.USD, Amount: decimal.NewFromInt(1), Category: models.FundTrade("")}},
		{"unknown currency", NewTransaction{AccountID: "acc", Currency: "GBP", Amount: decimal.NewFromInt(1), Category: models.Deposit()}},
		{"missing account", NewTransaction{Currency: models.USD, Amount: decimal.NewFromInt(1), Category: models.Deposit()}},
		{"wrong trade currency", NewTransaction{AccountID: "acc", TradeID: "t1", Currency: models.EUR, Amount: decimal.NewFromInt(1), Category: models.FundTrade("t1")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.append(tt.in)

			var validationErr *errors.ValidationError
			require.True(t, errors.As(err, &validationErr), "got %v", err)

			txs, err := f.ledger.Query(f.ctx, f.store, models.TransactionFilter{})
			require.NoError(t, err)
			assert.Empty(t, txs)
		})
	}
}

func TestAppend_UnknownTrade(t *testing.T) {
	f := newFixture(t)
	_, err := f.append(NewTransaction{AccountID: "acc", TradeID: "nope", Currency: models.USD, Amount: decimal.NewFromInt(1), Category: models.FundTrade("nope")})
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestAppend_RejectsOverflowingEntry(t *testing.T) {
	f := newFixture(t)

	_, err := f.append(deposit(capital.MaxAmount.String()))
	require.NoError(t, err)

	_, err = f.append(deposit("1"))
	var overflowErr *errors.ArithmeticOverflowError
	require.True(t, errors.As(err, &overflowErr))

	txs, err := f.ledger.Account(f.ctx, f.store, "acc", models.USD)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestQuery_InsertionOrderAndDeletion(t *testing.T) {
	f := newFixture(t)

	var ids []string
	for _, amount := range []string{"3", "1", "2"} {
		tx, err := f.append(deposit(amount))
		require.NoError(t, err)
		ids = append(ids, tx.ID)
		f.now = f.now.Add(time.Minute)
	}

	txs, err := f.ledger.Query(f.ctx, f.store, models.TransactionFilter{AccountID: "acc"})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	for i := range ids {
		assert.Equal(t, ids[i], txs[i].ID)
	}

	err = f.store.Atomic(f.ctx, "acc", func(w store.Writer) error {
		return f.ledger.MarkDeleted(f.ctx, w, ids[1])
	})
	require.NoError(t, err)

	txs, err = f.ledger.Query(f.ctx, f.store, models.TransactionFilter{AccountID: "acc"})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, ids[0], txs[0].ID)
	assert.Equal(t, ids[2], txs[1].ID)

	err = f.store.Atomic(f.ctx, "acc", func(w store.Writer) error {
		return f.ledger.MarkDeleted(f.ctx, w, ids[1])
	})
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestQuery_TimeRange(t *testing.T) {
	f := newFixture(t)
	start := f.now

	for i := 0; i < 3; i++ {
		_, err := f.append(deposit("1"))
		require.NoError(t, err)
		f.now = f.now.Add(time.Hour)
	}

	txs, err := f.ledger.Query(f.ctx, f.store, models.TransactionFilter{
		AccountID: "acc",
		From:      start.Add(time.Hour),
		To:        start.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, start.Add(time.Hour), txs[0].CreatedAt)
}

func TestNamedUnions(t *testing.T) {
	f := newFixture(t)
	f.now = time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)

	trade := func(cat models.TransactionCategory, amount string) NewTransaction {
		return NewTransaction{AccountID: "acc", TradeID: cat.TradeID, Currency: models.USD, Amount: decimal.RequireFromString(amount), Category: cat}
	}

	inputs := []NewTransaction{
		deposit("1000"),
		trade(models.FundTrade("t1"), "100"),
		trade(models.PaymentTax("t1"), "5"),
		{AccountID: "acc", Currency: models.USD, Amount: decimal.NewFromInt(10), Category: models.Withdrawal()},
	}
	for _, in := range inputs {
		_, err := f.append(in)
		require.NoError(t, err)
	}

	f.now = time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	for _, in := range []NewTransaction{
		deposit("50"),
		trade(models.FeeOpen("t1"), "1"),
		{AccountID: "acc", Currency: models.USD, Amount: decimal.NewFromInt(2), Category: models.WithdrawalTax()},
	} {
		_, err := f.append(in)
		require.NoError(t, err)
	}

	excluding, err := f.ledger.ExcludingTaxes(f.ctx, f.store, "acc", models.USD)
	require.NoError(t, err)
	assert.Len(t, excluding, 5)
	for _, tx := range excluding {
		assert.NotEqual(t, models.KindPaymentTax, tx.Category.Kind)
		assert.NotEqual(t, models.KindWithdrawalTax, tx.Category.Kind)
	}

	taxTxs, err := f.ledger.Taxes(f.ctx, f.store, "acc", models.USD)
	require.NoError(t, err)
	assert.Len(t, taxTxs, 2)

	before, err := f.ledger.BeforeMonth(f.ctx, f.store, "acc", models.USD)
	require.NoError(t, err)
	assert.Len(t, before, 3)
	for _, tx := range before {
		assert.True(t, tx.CreatedAt.Before(MonthStart(f.now)))
	}
}

func TestMonthStart(t *testing.T) {
	got := MonthStart(time.Date(2024, 2, 29, 23, 59, 0, 0, time.FixedZone("X", 3600)))
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), got)
}
