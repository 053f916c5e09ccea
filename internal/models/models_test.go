package models

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-journal/internal/errors"
)

// Property: every category survives a key round trip.
func TestProperty_CategoryRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("ParseCategory(Key()) is the identity", prop.ForAll(
		func(i int, tradeID string) bool {
			kind := AllKinds[i]
			c := TransactionCategory{Kind: kind}
			if kind.Scope() == ScopeTrade {
				c.TradeID = tradeID
			}
			got, err := ParseCategory(c.Key(), c.TradeID)
			return err == nil && got == c
		},
		gen.IntRange(0, len(AllKinds)-1),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestCategoryKind_Total(t *testing.T) {
	require.Len(t, AllKinds, 14)
	seen := map[string]bool{}
	for _, k := range AllKinds {
		assert.NotEmpty(t, k.Key())
		assert.False(t, seen[k.Key()], "duplicate key %s", k.Key())
		seen[k.Key()] = true

		parsed, err := ParseKind(k.Key())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}

	_, err := ParseKind("bonus")
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestCategoryKind_Flow(t *testing.T) {
	tests := []struct {
		kind  CategoryKind
		flow  Flow
		scope Scope
	}{
		{KindDeposit, FlowInflow, ScopeAccount},
		{KindWithdrawal, FlowOutflow, ScopeAccount},
		{KindWithdrawalTax, FlowOutflow, ScopeAccount},
		{KindWithdrawalEarnings, FlowOutflow, ScopeAccount},
		{KindFundTrade, FlowIgnored, ScopeTrade},
		{KindPaymentFromTrade, FlowIgnored, ScopeTrade},
		{KindPaymentTax, FlowIgnored, ScopeTrade},
		{KindPaymentEarnings, FlowIgnored, ScopeTrade},
		{KindFeeOpen, FlowOutflow, ScopeTrade},
		{KindFeeClose, FlowOutflow, ScopeTrade},
		{KindOpenTrade, FlowOutflow, ScopeTrade},
		{KindCloseSafetyStop, FlowInflow, ScopeTrade},
		{KindCloseSafetyStopSlippage, FlowInflow, ScopeTrade},
		{KindCloseTarget, FlowInflow, ScopeTrade},
	}
	for _, tt := range tests {
		t.Run(tt.kind.Key(), func(t *testing.T) {
			assert.Equal(t, tt.flow, tt.kind.AccountFlow())
			assert.Equal(t, tt.scope, tt.kind.Scope())
		})
	}
}

func TestParseCategory_Scope(t *testing.T) {
	_, err := ParseCategory("deposit", "t1")
	assert.Error(t, err)
	_, err = ParseCategory("fund_trade", "")
	assert.Error(t, err)

	c, err := ParseCategory("close_target", "t1")
	require.NoError(t, err)
	assert.Equal(t, CloseTarget("t1"), c)
	assert.Equal(t, "close_target(t1)", c.String())
}

func TestTransactionFilter_Match(t *testing.T) {
	at := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	tx := &Transaction{
		ID: "tx1", AccountID: "acc", TradeID: "t1", Currency: USD,
		Amount: decimal.NewFromInt(1), Category: FeeOpen("t1"), CreatedAt: at,
	}

	assert.True(t, TransactionFilter{}.Match(tx))
	assert.True(t, TransactionFilter{AccountID: "acc", Currency: USD, TradeID: "t1"}.Match(tx))
	assert.True(t, TransactionFilter{Kinds: []CategoryKind{KindDeposit, KindFeeOpen}}.Match(tx))
	assert.False(t, TransactionFilter{Kinds: []CategoryKind{KindDeposit}}.Match(tx))
	assert.False(t, TransactionFilter{Currency: EUR}.Match(tx))
	assert.True(t, TransactionFilter{From: at}.Match(tx))
	assert.False(t, TransactionFilter{To: at}.Match(tx))

	deleted := at
	tx.DeletedAt = &deleted
	assert.False(t, TransactionFilter{}.Match(tx))
}

func validTrade() *Trade {
	at := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	order := func(role OrderRole, action OrderAction, price int64) Order {
		return Order{Role: role, TradingVehicleID: "tv-aapl", Symbol: "AAPL", Quantity: 10, Price: decimal.NewFromInt(price), Action: action, CreatedAt: at}
	}
	return &Trade{
		Currency:   USD,
		Entry:      order(RoleEntry, ActionBuy, 100),
		SafetyStop: order(RoleSafetyStop, ActionSell, 90),
		Target:     order(RoleTarget, ActionSell, 120),
	}
}

func TestTrade_Validate(t *testing.T) {
	require.NoError(t, validTrade().Validate())

	tests := []struct {
		name   string
		mutate func(*Trade)
	}{
		{"vehicle mismatch", func(tr *Trade) { tr.Target.TradingVehicleID = "tv-msft" }},
		{"no vehicle", func(tr *Trade) { tr.Entry.TradingVehicleID = "" }},
		{"zero spread", func(tr *Trade) { tr.SafetyStop.Price = tr.Entry.Price }},
		{"stop on profit side", func(tr *Trade) { tr.SafetyStop.Price = decimal.NewFromInt(110) }},
		{"negative quantity", func(tr *Trade) { tr.Entry.Quantity = -1 }},
		{"zero price", func(tr *Trade) { tr.Target.Price = decimal.Zero }},
		{"bad currency", func(tr *Trade) { tr.Currency = "JPY" }},
		{"submitted before created", func(tr *Trade) {
			before := tr.Entry.CreatedAt.Add(-time.Second)
			tr.Entry.SubmittedAt = &before
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := validTrade()
			tt.mutate(tr)
			var ve *errors.ValidationError
			assert.True(t, errors.As(tr.Validate(), &ve))
		})
	}

	short := validTrade()
	short.Entry.Action = ActionSell
	short.SafetyStop.Price = decimal.NewFromInt(110)
	assert.Equal(t, DirectionShort, short.Direction())
	assert.NoError(t, short.Validate())
}

func TestParsers(t *testing.T) {
	c, err := ParseCurrency(" eur ")
	require.NoError(t, err)
	assert.Equal(t, EUR, c)
	_, err = ParseCurrency("INR")
	assert.Error(t, err)

	env, err := ParseEnvironment("LIVE")
	require.NoError(t, err)
	assert.Equal(t, EnvironmentLive, env)

	st, err := ParseStatus("partially_filled")
	require.NoError(t, err)
	assert.True(t, st.IsFilled())
	assert.False(t, st.IsTerminal())
	assert.True(t, StatusCanceled.IsTerminal())
	_, err = ParseStatus("open")
	assert.Error(t, err)
}

func TestRule_Validate(t *testing.T) {
	r := Rule{Name: RiskPerTrade, Level: LevelError, Value: decimal.NewFromInt(2)}
	assert.NoError(t, r.Validate())

	r.Value = decimal.NewFromInt(101)
	assert.Error(t, r.Validate())

	r.Value = decimal.NewFromInt(2)
	r.Name = "max_open_trades"
	assert.Error(t, r.Validate())

	r.Name = RiskPerMonth
	r.Level = "fatal"
	assert.Error(t, r.Validate())
}

func TestTradingVehicle_Validate(t *testing.T) {
	v := TradingVehicle{Symbol: "AAPL", ISIN: "US0378331005", Category: VehicleStock, Broker: "alpaca"}
	require.NoError(t, v.Validate())
	assert.True(t, v.Matches("aap"))
	assert.True(t, v.Matches("us037"))
	assert.False(t, v.Matches("MSFT"))

	tests := []struct {
		name   string
		mutate func(*TradingVehicle)
	}{
		{"no symbol", func(v *TradingVehicle) { v.Symbol = " " }},
		{"bad category", func(v *TradingVehicle) { v.Category = "bond" }},
		{"no broker", func(v *TradingVehicle) { v.Broker = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := v
			tt.mutate(&bad)
			var ve *errors.ValidationError
			assert.True(t, errors.As(bad.Validate(), &ve))
		})
	}

	c, err := ParseVehicleCategory(" Crypto ")
	require.NoError(t, err)
	assert.Equal(t, VehicleCrypto, c)
}
