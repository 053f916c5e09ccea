package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-journal/internal/errors"
	"trade-journal/internal/models"
)

// journal runs one CLI invocation against dir. State only survives between
// calls through the config directory.
func journal(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := Execute(context.Background(), append([]string{"--config", dir}, args...), &out, io.Discard)
	return out.String(), err
}

func mustJournal(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := journal(t, dir, args...)
	require.NoError(t, err, out)
	return out
}

func decodeJSON(t *testing.T, out string, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func setupDir(t *testing.T) string {
	t.Helper()
	for _, key := range []string{"TRADE_JOURNAL_DB", "TRADE_JOURNAL_BROKER", "KITE_API_KEY", "KITE_API_SECRET", "KITE_ACCESS_TOKEN"} {
		t.Setenv(key, "")
	}
	return t.TempDir()
}

func TestCLI_TradeLifecycle(t *testing.T) {
	dir := setupDir(t)

	var account models.Account
	decodeJSON(t, mustJournal(t, dir, "account", "create", "main", "--taxes", "10", "--earnings", "20", "--json"), &account)
	assert.Equal(t, "main", account.Name)
	assert.FileExists(t, filepath.Join(dir, "config.toml"))

	mustJournal(t, dir, "account", "deposit", "main", "1000")
	mustJournal(t, dir, "rule", "create", "main", "risk_per_trade", "2")
	mustJournal(t, dir, "vehicle", "create", "aapl", "--isin", "US0378331005")

	var trade models.Trade
	decodeJSON(t, mustJournal(t, dir, "trade", "create", "main", "aapl",
		"--qty", "10", "--entry", "10", "--stop", "9", "--target", "15", "--json"), &trade)
	assert.Equal(t, "AAPL", trade.Symbol)
	assert.Equal(t, models.StatusNew, trade.Status)

	mustJournal(t, dir, "trade", "fund", trade.ID)
	mustJournal(t, dir, "trade", "submit", trade.ID)

	// orders placed by an earlier invocation can still be repriced
	var modified models.Trade
	decodeJSON(t, mustJournal(t, dir, "trade", "modify-stop", trade.ID, "9.5", "--json"), &modified)
	assert.True(t, modified.SafetyStop.Price.Equal(decimal.RequireFromString("9.5")))

	mustJournal(t, dir, "trade", "fee", trade.ID, "open", "2")
	mustJournal(t, dir, "trade", "fill", trade.ID, "10")

	var closed models.Trade
	decodeJSON(t, mustJournal(t, dir, "trade", "close", trade.ID, "target", "15", "--json"), &closed)
	assert.Equal(t, models.StatusClosed, closed.Status)
	assert.True(t, closed.Balance.TotalPerformance.Equal(decimal.RequireFromString("43.2")), closed.Balance.TotalPerformance.String())

	var balance models.AccountBalance
	decodeJSON(t, mustJournal(t, dir, "account", "balance", "main", "--json"), &balance)
	assert.True(t, balance.TotalBalance.Equal(decimal.NewFromInt(1048)), balance.TotalBalance.String())
	assert.True(t, balance.Taxed.Equal(decimal.RequireFromString("4.8")))

	csv := mustJournal(t, dir, "tx", "list", "main", "--csv")
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "id,created_at,account_id,trade_id,category,currency,amount", lines[0])
	assert.Contains(t, lines[5], "close_target")

	var trades []models.Trade
	decodeJSON(t, mustJournal(t, dir, "trade", "list", "--account", "main", "--status", "closed", "--json"), &trades)
	require.Len(t, trades, 1)
	assert.Equal(t, trade.ID, trades[0].ID)

	audit, err := os.ReadFile(filepath.Join(dir, "audit", "audit.log"))
	require.NoError(t, err)
	assert.Contains(t, string(audit), "TRADE_TRANSITION")
}

func TestCLI_RuleBlocksFunding(t *testing.T) {
	dir := setupDir(t)

	mustJournal(t, dir, "account", "create", "main")
	mustJournal(t, dir, "account", "deposit", "main", "100")
	mustJournal(t, dir, "rule", "create", "main", "risk_per_trade", "2")
	mustJournal(t, dir, "vehicle", "create", "AAPL")

	var trade models.Trade
	decodeJSON(t, mustJournal(t, dir, "trade", "create", "main", "AAPL",
		"--qty", "10", "--entry", "10", "--stop", "9", "--target", "15", "--json"), &trade)

	_, err := journal(t, dir, "trade", "fund", trade.ID)
	var violation *errors.RuleViolationError
	require.True(t, errors.As(err, &violation), "got %v", err)

	var shown models.Trade
	decodeJSON(t, mustJournal(t, dir, "trade", "show", trade.ID, "--json"), &shown)
	assert.Equal(t, models.StatusNew, shown.Status)

	var size map[string]interface{}
	decodeJSON(t, mustJournal(t, dir, "trade", "size", "main", "10", "9", "--json"), &size)
	assert.EqualValues(t, 2, size["quantity"])
}

func TestCLI_Vehicles(t *testing.T) {
	dir := setupDir(t)
	mustJournal(t, dir, "account", "create", "main")

	var created models.TradingVehicle
	decodeJSON(t, mustJournal(t, dir, "vehicle", "create", "btc", "--category", "crypto", "--broker", "Kraken", "--json"), &created)
	assert.Equal(t, "BTC", created.Symbol)
	assert.Equal(t, models.VehicleCrypto, created.Category)
	assert.Equal(t, "kraken", created.Broker)
	mustJournal(t, dir, "vehicle", "create", "AAPL", "--isin", "US0378331005")

	var vehicles []models.TradingVehicle
	decodeJSON(t, mustJournal(t, dir, "vehicle", "list", "--json"), &vehicles)
	require.Len(t, vehicles, 2)
	assert.Equal(t, "AAPL", vehicles[0].Symbol)
	assert.Equal(t, "paper", vehicles[0].Broker)

	decodeJSON(t, mustJournal(t, dir, "vehicle", "list", "--search", "us03", "--json"), &vehicles)
	require.Len(t, vehicles, 1)
	assert.Equal(t, "AAPL", vehicles[0].Symbol)

	_, err := journal(t, dir, "vehicle", "create", "aapl")
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve), "got %v", err)

	_, err = journal(t, dir, "vehicle", "create", "EURUSD", "--category", "bond")
	assert.True(t, errors.As(err, &ve), "got %v", err)

	// trades can only be planned on a registered vehicle
	_, err = journal(t, dir, "trade", "create", "main", "TSLA",
		"--qty", "1", "--entry", "10", "--stop", "9", "--target", "15")
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)

	var trade models.Trade
	decodeJSON(t, mustJournal(t, dir, "trade", "create", "main", created.ID,
		"--qty", "1", "--entry", "10", "--stop", "9", "--target", "15", "--json"), &trade)
	assert.Equal(t, created.ID, trade.TradingVehicleID)
	assert.Equal(t, "BTC", trade.Symbol)
}

func TestCLI_DepositAndDelete(t *testing.T) {
	dir := setupDir(t)

	mustJournal(t, dir, "account", "create", "main", "--json")
	var tx txRow
	decodeJSON(t, mustJournal(t, dir, "account", "deposit", "main", "250.50", "--currency", "eur", "--json"), &tx)
	assert.Equal(t, "deposit", tx.Category)
	assert.Equal(t, "EUR", tx.Currency)

	mustJournal(t, dir, "tx", "delete", "main", tx.ID)

	var rows []txRow
	decodeJSON(t, mustJournal(t, dir, "tx", "list", "main", "--json"), &rows)
	assert.Empty(t, rows)

	_, err := journal(t, dir, "account", "withdraw", "main", "10", "--currency", "EUR")
	assert.True(t, errors.Is(err, errors.ErrInsufficientFunds), "got %v", err)
}

func TestCLI_InputErrors(t *testing.T) {
	dir := setupDir(t)
	mustJournal(t, dir, "account", "create", "main")

	tests := []struct {
		name string
		args []string
	}{
		{"bad amount", []string{"account", "deposit", "main", "ten"}},
		{"bad currency", []string{"account", "deposit", "main", "10", "--currency", "INR"}},
		{"bad withdrawal kind", []string{"account", "withdraw", "main", "10", "--kind", "fund_trade"}},
		{"bad exit", []string{"trade", "close", "some-trade", "entry", "10"}},
		{"bad status", []string{"trade", "list", "--status", "open"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := journal(t, dir, tt.args...)
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}

	_, err := journal(t, dir, "account", "balance", "nobody")
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)
}

func TestCLI_ConfigShowHidesSecrets(t *testing.T) {
	dir := setupDir(t)
	t.Setenv("KITE_API_SECRET", "s3cret")

	out := mustJournal(t, dir, "config", "show", "--json")
	assert.NotContains(t, out, "s3cret")

	var view configView
	decodeJSON(t, out, &view)
	assert.Equal(t, "paper", view.BrokerMode)
	assert.Equal(t, filepath.Join(dir, "journal.db"), view.Database)

	path := mustJournal(t, dir, "config", "path")
	assert.Equal(t, filepath.Join(dir, "config.toml"), strings.TrimSpace(path))
}

func TestCLI_AuthStatusPaper(t *testing.T) {
	dir := setupDir(t)

	var status map[string]interface{}
	decodeJSON(t, mustJournal(t, dir, "auth", "status", "--json"), &status)
	assert.Equal(t, "paper", status["broker_mode"])
	assert.Equal(t, false, status["authenticated"])

	_, err := journal(t, dir, "auth", "login", "--token", "abc")
	assert.True(t, errors.Is(err, errors.ErrConfigInvalid), "got %v", err)
}
