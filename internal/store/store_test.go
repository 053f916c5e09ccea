package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-journal/internal/models"
)

var t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func stores(t *testing.T) map[string]func(t *testing.T) DataStore {
	return map[string]func(t *testing.T) DataStore{
		"memory": func(t *testing.T) DataStore { return NewMemoryStore() },
		"sqlite": func(t *testing.T) DataStore {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s DataStore)) {
	for name, open := range stores(t) {
		open := open
		t.Run(name, func(t *testing.T) {
			fn(t, open(t))
		})
	}
}

func seedAccount(t *testing.T, s DataStore, id, name string) *models.Account {
	t.Helper()
	a := &models.Account{
		ID:                 id,
		Name:               name,
		Environment:        models.EnvironmentPaper,
		TaxesPercentage:    decimal.RequireFromString("12.5"),
		EarningsPercentage: decimal.Zero,
		CreatedAt:          t0,
	}
	require.NoError(t, s.Atomic(context.Background(), id, func(w Writer) error {
		return w.CreateAccount(context.Background(), a)
	}))
	return a
}

func seedVehicle(t *testing.T, s DataStore) *models.TradingVehicle {
	t.Helper()
	v := &models.TradingVehicle{
		ID:        "tv-aapl",
		Symbol:    "AAPL",
		ISIN:      "US0378331005",
		Category:  models.VehicleStock,
		Broker:    "alpaca",
		CreatedAt: t0,
	}
	require.NoError(t, s.Atomic(context.Background(), SharedScope, func(w Writer) error {
		return w.CreateTradingVehicle(context.Background(), v)
	}))
	return v
}

// sampleTrade trades the vehicle created by seedVehicle.
func sampleTrade(id, accountID string) *models.Trade {
	order := func(role models.OrderRole, action models.OrderAction, cat models.OrderCategory, price string) models.Order {
		return models.Order{
			ID:               id + "-" + string(role),
			TradeID:          id,
			Role:             role,
			TradingVehicleID: "tv-aapl",
			Symbol:           "AAPL",
			Quantity:         10,
			Price:            decimal.RequireFromString(price),
			Action:           action,
			Category:         cat,
			CreatedAt:        t0,
		}
	}
	return &models.Trade{
		ID:               id,
		AccountID:        accountID,
		TradingVehicleID: "tv-aapl",
		Symbol:           "AAPL",
		Currency:         models.USD,
		Status:           models.StatusNew,
		Entry:            order(models.RoleEntry, models.ActionBuy, models.OrderLimit, "10.25"),
		SafetyStop:       order(models.RoleSafetyStop, models.ActionSell, models.OrderStop, "9"),
		Target:           order(models.RoleTarget, models.ActionSell, models.OrderLimit, "15"),
		CreatedAt:        t0,
		UpdatedAt:        t0,
	}
}

func appendTx(t *testing.T, s DataStore, tx models.Transaction) {
	t.Helper()
	require.NoError(t, s.Atomic(context.Background(), tx.AccountID, func(w Writer) error {
		return w.AppendTransaction(context.Background(), &tx)
	}))
}

func TestStore_Accounts(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DataStore) {
		ctx := context.Background()
		a := seedAccount(t, s, "acc1", "main")

		got, err := s.ReadAccount(ctx, "acc1")
		require.NoError(t, err)
		assert.Equal(t, "main", got.Name)
		assert.True(t, got.TaxesPercentage.Equal(a.TaxesPercentage))
		assert.Equal(t, models.EnvironmentPaper, got.Environment)

		byName, err := s.ReadAccountByName(ctx, "main")
		require.NoError(t, err)
		assert.Equal(t, "acc1", byName.ID)

		_, err = s.ReadAccount(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)

		err = s.Atomic(ctx, "acc2", func(w Writer) error {
			return w.CreateAccount(ctx, &models.Account{ID: "acc2", Name: "main", Environment: models.EnvironmentLive, CreatedAt: t0})
		})
		assert.Error(t, err)

		all, err := s.ReadAccounts(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestStore_TradeRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DataStore) {
		ctx := context.Background()
		seedAccount(t, s, "acc1", "main")
		seedVehicle(t, s)
		tr := sampleTrade("t1", "acc1")

		require.NoError(t, s.Atomic(ctx, "acc1", func(w Writer) error { return w.CreateTrade(ctx, tr) }))

		got, err := s.ReadTrade(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusNew, got.Status)
		assert.True(t, got.Entry.Price.Equal(decimal.RequireFromString("10.25")))
		assert.Equal(t, models.RoleSafetyStop, got.SafetyStop.Role)
		assert.Equal(t, models.OrderStop, got.SafetyStop.Category)
		assert.Nil(t, got.Entry.AverageFilledPrice)
		assert.Nil(t, got.Entry.SubmittedAt)
		assert.Equal(t, "tv-aapl", got.TradingVehicleID)
		assert.Equal(t, "AAPL", got.Symbol)
		assert.Equal(t, "tv-aapl", got.Target.TradingVehicleID)
		assert.Equal(t, "AAPL", got.Target.Symbol)

		submitted := t0.Add(time.Minute)
		fill := decimal.RequireFromString("10.3")
		err = s.Atomic(ctx, "acc1", func(w Writer) error {
			e := got.Entry
			e.BrokerOrderID = "B1"
			e.SubmittedAt = &submitted
			e.AverageFilledPrice = &fill
			if err := w.UpdateOrder(ctx, &e); err != nil {
				return err
			}
			if _, err := w.UpdateTradeStatus(ctx, "t1", models.StatusFilled, submitted); err != nil {
				return err
			}
			_, err := w.UpdateTradeBalance(ctx, "t1", models.TradeBalance{
				Funding:            decimal.RequireFromString("102.5"),
				CapitalInMarket:    decimal.RequireFromString("102.5"),
				CapitalOutOfMarket: decimal.Zero,
				Taxed:              decimal.Zero,
				TotalPerformance:   decimal.Zero,
			})
			return err
		})
		require.NoError(t, err)

		got, err = s.ReadTrade(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusFilled, got.Status)
		assert.Equal(t, "B1", got.Entry.BrokerOrderID)
		require.NotNil(t, got.Entry.SubmittedAt)
		assert.True(t, got.Entry.SubmittedAt.Equal(submitted))
		require.NotNil(t, got.Entry.AverageFilledPrice)
		assert.True(t, got.Entry.AverageFilledPrice.Equal(fill))
		assert.True(t, got.Balance.Funding.Equal(decimal.RequireFromString("102.5")))

		trades, err := s.ReadTrades(ctx, TradeFilter{AccountID: "acc1", Statuses: []models.Status{models.StatusFilled}})
		require.NoError(t, err)
		require.Len(t, trades, 1)
		assert.Equal(t, "B1", trades[0].Entry.BrokerOrderID)

		trades, err = s.ReadTrades(ctx, TradeFilter{Statuses: []models.Status{models.StatusNew}})
		require.NoError(t, err)
		assert.Empty(t, trades)

		_, err = s.ReadTrade(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		err = s.Atomic(ctx, "acc1", func(w Writer) error {
			_, err := w.UpdateTradeStatus(ctx, "missing", models.StatusFunded, t0)
			return err
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_TransactionsInInsertionOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DataStore) {
		ctx := context.Background()
		seedAccount(t, s, "acc1", "main")

		amounts := []string{"0.00000001", "79228162514264337593543950335", "12.5", "3"}
		kinds := []models.TransactionCategory{models.Deposit(), models.Deposit(), models.FundTrade("t1"), models.Withdrawal()}
		for i := range amounts {
			appendTx(t, s, models.Transaction{
				ID:        fmt.Sprintf("tx%d", 9-i), // ids sort opposite to insertion
				AccountID: "acc1",
				TradeID:   kinds[i].TradeID,
				Currency:  models.USD,
				Amount:    decimal.RequireFromString(amounts[i]),
				Category:  kinds[i],
				CreatedAt: t0.Add(time.Duration(i) * time.Hour),
			})
		}

		txs, err := s.QueryTransactions(ctx, models.TransactionFilter{AccountID: "acc1"})
		require.NoError(t, err)
		require.Len(t, txs, 4)
		for i, tx := range txs {
			assert.Equal(t, fmt.Sprintf("tx%d", 9-i), tx.ID)
			assert.Equal(t, amounts[i], tx.Amount.String())
		}
		assert.Equal(t, models.FundTrade("t1"), txs[2].Category)

		union, err := s.QueryTransactions(ctx, models.TransactionFilter{
			AccountID: "acc1",
			Kinds:     []models.CategoryKind{models.KindWithdrawal, models.KindFundTrade},
		})
		require.NoError(t, err)
		require.Len(t, union, 2)
		assert.Equal(t, "tx7", union[0].ID)

		ranged, err := s.QueryTransactions(ctx, models.TransactionFilter{
			AccountID: "acc1", From: t0.Add(time.Hour), To: t0.Add(3 * time.Hour),
		})
		require.NoError(t, err)
		require.Len(t, ranged, 2)
		assert.Equal(t, "tx8", ranged[0].ID)

		byTrade, err := s.QueryTransactions(ctx, models.TransactionFilter{TradeID: "t1"})
		require.NoError(t, err)
		require.Len(t, byTrade, 1)

		require.NoError(t, s.Atomic(ctx, "acc1", func(w Writer) error {
			return w.MarkTransactionDeleted(ctx, "tx8", t0)
		}))
		txs, err = s.QueryTransactions(ctx, models.TransactionFilter{AccountID: "acc1"})
		require.NoError(t, err)
		assert.Len(t, txs, 3)

		err = s.Atomic(ctx, "acc1", func(w Writer) error { return w.MarkTransactionDeleted(ctx, "tx8", t0) })
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_AtomicRollsBack(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DataStore) {
		ctx := context.Background()
		seedAccount(t, s, "acc1", "main")
		seedVehicle(t, s)
		boom := fmt.Errorf("boom")

		err := s.Atomic(ctx, "acc1", func(w Writer) error {
			if err := w.AppendTransaction(ctx, &models.Transaction{
				ID: "tx1", AccountID: "acc1", Currency: models.USD,
				Amount: decimal.NewFromInt(5), Category: models.Deposit(), CreatedAt: t0,
			}); err != nil {
				return err
			}
			if err := w.CreateTrade(ctx, sampleTrade("t1", "acc1")); err != nil {
				return err
			}

			// writes are visible inside the block
			staged, err := w.QueryTransactions(ctx, models.TransactionFilter{AccountID: "acc1"})
			if err != nil {
				return err
			}
			if len(staged) != 1 {
				return fmt.Errorf("staged %d transactions", len(staged))
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		txs, err := s.QueryTransactions(ctx, models.TransactionFilter{AccountID: "acc1"})
		require.NoError(t, err)
		assert.Empty(t, txs)
		_, err = s.ReadTrade(ctx, "t1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_Rules(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DataStore) {
		ctx := context.Background()
		seedAccount(t, s, "acc1", "main")

		rules := []models.Rule{
			{ID: "r1", AccountID: "acc1", Name: models.RiskPerMonth, Value: decimal.NewFromInt(6), Priority: 2, Level: models.LevelError, Active: true, CreatedAt: t0},
			{ID: "r2", AccountID: "acc1", Name: models.RiskPerTrade, Value: decimal.RequireFromString("1.5"), Priority: 1, Level: models.LevelWarning, Active: true, CreatedAt: t0},
		}
		require.NoError(t, s.Atomic(ctx, "acc1", func(w Writer) error {
			for i := range rules {
				if err := w.CreateRule(ctx, &rules[i]); err != nil {
					return err
				}
			}
			return nil
		}))

		active, err := s.ReadActiveRules(ctx, "acc1")
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, "r2", active[0].ID)
		assert.True(t, active[0].Value.Equal(decimal.RequireFromString("1.5")))

		require.NoError(t, s.Atomic(ctx, "acc1", func(w Writer) error { return w.DeactivateRule(ctx, "acc1", "r2") }))
		active, err = s.ReadActiveRules(ctx, "acc1")
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "r1", active[0].ID)

		all, err := s.ReadRules(ctx, "acc1")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		err = s.Atomic(ctx, "acc1", func(w Writer) error { return w.DeactivateRule(ctx, "acc1", "missing") })
		assert.ErrorIs(t, err, ErrNotFound)

		// a rule is only reachable through the account that owns it
		seedAccount(t, s, "acc2", "other")
		err = s.Atomic(ctx, "acc2", func(w Writer) error { return w.DeactivateRule(ctx, "acc2", "r1") })
		assert.ErrorIs(t, err, ErrNotFound)
		active, err = s.ReadActiveRules(ctx, "acc1")
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "r1", active[0].ID)
	})
}

func TestStore_TradingVehicles(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DataStore) {
		ctx := context.Background()
		seedAccount(t, s, "acc1", "main")
		seedVehicle(t, s)

		btc := &models.TradingVehicle{ID: "tv-btc", Symbol: "BTC", Category: models.VehicleCrypto, Broker: "kraken", CreatedAt: t0}
		require.NoError(t, s.Atomic(ctx, SharedScope, func(w Writer) error { return w.CreateTradingVehicle(ctx, btc) }))

		got, err := s.ReadTradingVehicle(ctx, "tv-aapl")
		require.NoError(t, err)
		assert.Equal(t, "US0378331005", got.ISIN)
		assert.Equal(t, models.VehicleStock, got.Category)

		all, err := s.ReadTradingVehicles(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "AAPL", all[0].Symbol)
		assert.Equal(t, "BTC", all[1].Symbol)

		_, err = s.ReadTradingVehicle(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)

		dup := &models.TradingVehicle{ID: "tv-2", Symbol: "AAPL", Category: models.VehicleStock, Broker: "alpaca", CreatedAt: t0}
		err = s.Atomic(ctx, SharedScope, func(w Writer) error { return w.CreateTradingVehicle(ctx, dup) })
		assert.Error(t, err)

		// trades must reference a known vehicle
		orphan := sampleTrade("t1", "acc1")
		orphan.TradingVehicleID = "tv-none"
		for _, o := range orphan.Orders() {
			o.TradingVehicleID = "tv-none"
		}
		err = s.Atomic(ctx, "acc1", func(w Writer) error { return w.CreateTrade(ctx, orphan) })
		assert.Error(t, err)
	})
}

func TestStore_View(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DataStore) {
		ctx := context.Background()
		seedAccount(t, s, "acc1", "main")
		err := s.View(ctx, func(r Reader) error {
			a, err := r.ReadAccount(ctx, "acc1")
			if err != nil {
				return err
			}
			assert.Equal(t, "main", a.Name)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestTradeFilter_Match(t *testing.T) {
	tr := sampleTrade("t1", "acc1")
	assert.True(t, TradeFilter{}.Match(tr))
	assert.True(t, TradeFilter{AccountID: "acc1", Statuses: []models.Status{models.StatusNew}}.Match(tr))
	assert.False(t, TradeFilter{AccountID: "acc2"}.Match(tr))
	assert.False(t, TradeFilter{Statuses: []models.Status{models.StatusClosed}}.Match(tr))
	assert.False(t, TradeFilter{Since: t0.Add(time.Second)}.Match(tr))
}
