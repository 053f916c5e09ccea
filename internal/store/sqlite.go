// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"trade-journal/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	sqlReader
	db *sql.DB

	mu       sync.Mutex
	accounts map[string]*sync.Mutex
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		sqlReader: sqlReader{q: db},
		db:        db,
		accounts:  make(map[string]*sync.Mutex),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Accounts
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		environment TEXT NOT NULL,
		taxes_percentage TEXT NOT NULL,
		earnings_percentage TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	-- Trading vehicles, shared by every account
	CREATE TABLE IF NOT EXISTS trading_vehicles (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		isin TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		broker TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(symbol, broker)
	);

	-- Ledger; seq preserves insertion order, amounts are exact decimal text
	CREATE TABLE IF NOT EXISTS transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		account_id TEXT NOT NULL,
		trade_id TEXT,
		currency TEXT NOT NULL,
		category TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		deleted_at DATETIME,
		FOREIGN KEY (account_id) REFERENCES accounts(id)
	);

	-- Trades with their cached balance
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		trading_vehicle_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		funding TEXT NOT NULL DEFAULT '0',
		capital_in_market TEXT NOT NULL DEFAULT '0',
		capital_out_of_market TEXT NOT NULL DEFAULT '0',
		taxed TEXT NOT NULL DEFAULT '0',
		total_performance TEXT NOT NULL DEFAULT '0',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (account_id) REFERENCES accounts(id),
		FOREIGN KEY (trading_vehicle_id) REFERENCES trading_vehicles(id)
	);

	-- Orders, three per trade
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		trade_id TEXT NOT NULL,
		role TEXT NOT NULL,
		trading_vehicle_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price TEXT NOT NULL,
		action TEXT NOT NULL,
		category TEXT NOT NULL,
		broker_order_id TEXT NOT NULL DEFAULT '',
		average_filled_price TEXT,
		created_at DATETIME NOT NULL,
		submitted_at DATETIME,
		filled_at DATETIME,
		closed_at DATETIME,
		UNIQUE(trade_id, role),
		FOREIGN KEY (trade_id) REFERENCES trades(id),
		FOREIGN KEY (trading_vehicle_id) REFERENCES trading_vehicles(id)
	);

	-- Risk rules, soft-deactivated
	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		priority INTEGER NOT NULL,
		level TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (account_id) REFERENCES accounts(id)
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, currency);
	CREATE INDEX IF NOT EXISTS idx_transactions_trade ON transactions(trade_id);
	CREATE INDEX IF NOT EXISTS idx_trades_account ON trades(account_id, status);
	CREATE INDEX IF NOT EXISTS idx_rules_account ON rules(account_id, active);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) accountLock(accountID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.accounts[accountID]
	if !ok {
		l = &sync.Mutex{}
		s.accounts[accountID] = l
	}
	return l
}

// Atomic runs fn inside one SQL transaction, serialized per account.
func (s *SQLiteStore) Atomic(ctx context.Context, accountID string, fn func(w Writer) error) error {
	l := s.accountLock(accountID)
	l.Lock()
	defer l.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlWriter{sqlReader{q: tx}}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// View runs fn inside a read transaction so every read sees one snapshot.
func (s *SQLiteStore) View(ctx context.Context, fn func(r Reader) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(sqlReader{q: tx})
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type sqlReader struct {
	q querier
}

type sqlWriter struct {
	sqlReader
}

// ============================================================================
// Transactions
// ============================================================================

// QueryTransactions returns non-deleted transactions matching filter in insertion order.
func (r sqlReader) QueryTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	query := "SELECT id, account_id, COALESCE(trade_id, ''), currency, category, amount, created_at, deleted_at FROM transactions WHERE deleted_at IS NULL"
	args := []interface{}{}

	if filter.AccountID != "" {
		query += " AND account_id = ?"
		args = append(args, filter.AccountID)
	}
	if filter.Currency != "" {
		query += " AND currency = ?"
		args = append(args, string(filter.Currency))
	}
	if filter.TradeID != "" {
		query += " AND trade_id = ?"
		args = append(args, filter.TradeID)
	}
	if !filter.From.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		query += " AND created_at < ?"
		args = append(args, filter.To.UTC())
	}
	if len(filter.Kinds) > 0 {
		placeholders := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			placeholders[i] = "?"
			args = append(args, k.Key())
		}
		query += " AND category IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY seq ASC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var (
			t        models.Transaction
			currency string
			key      string
			amount   string
			deleted  sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &t.TradeID, &currency, &key, &amount, &t.CreatedAt, &deleted); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if t.Category, err = models.ParseCategory(key, t.TradeID); err != nil {
			return nil, fmt.Errorf("failed to decode transaction %s: %w", t.ID, err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to decode transaction %s amount: %w", t.ID, err)
		}
		t.Currency = models.Currency(currency)
		if deleted.Valid {
			at := deleted.Time
			t.DeletedAt = &at
		}
		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

// AppendTransaction inserts a ledger entry.
func (w *sqlWriter) AppendTransaction(ctx context.Context, t *models.Transaction) error {
	var tradeID interface{}
	if t.TradeID != "" {
		tradeID = t.TradeID
	}
	_, err := w.q.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, trade_id, currency, category, amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.AccountID, tradeID, string(t.Currency), t.Category.Key(), t.Amount.String(), t.CreatedAt.UTC(), t.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// MarkTransactionDeleted soft-deletes a transaction.
func (w *sqlWriter) MarkTransactionDeleted(ctx context.Context, id string, at time.Time) error {
	res, err := w.q.ExecContext(ctx, `
		UPDATE transactions SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL
	`, at.UTC(), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return expectRow(res, "transaction", id)
}

// ============================================================================
// Accounts
// ============================================================================

const accountColumns = "id, name, description, environment, taxes_percentage, earnings_percentage, created_at"

func scanAccount(row interface{ Scan(...interface{}) error }) (*models.Account, error) {
	var (
		a        models.Account
		env      string
		taxes    string
		earnings string
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Description, &env, &taxes, &earnings, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Environment = models.Environment(env)
	var err error
	if a.TaxesPercentage, err = decimal.NewFromString(taxes); err != nil {
		return nil, err
	}
	if a.EarningsPercentage, err = decimal.NewFromString(earnings); err != nil {
		return nil, err
	}
	return &a, nil
}

// ReadAccount retrieves an account by id.
func (r sqlReader) ReadAccount(ctx context.Context, id string) (*models.Account, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	return a, nil
}

// ReadAccountByName retrieves an account by its unique name.
func (r sqlReader) ReadAccountByName(ctx context.Context, name string) (*models.Account, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE name = ?", name)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	return a, nil
}

// ReadAccounts lists all accounts ordered by name.
func (r sqlReader) ReadAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// CreateAccount inserts an account.
func (w *sqlWriter) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := w.q.ExecContext(ctx, `
		INSERT INTO accounts (id, name, description, environment, taxes_percentage, earnings_percentage, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, a.Description, string(a.Environment), a.TaxesPercentage.String(), a.EarningsPercentage.String(), a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// ============================================================================
// Trades
// ============================================================================

const tradeColumns = "id, account_id, trading_vehicle_id, symbol, currency, status, funding, capital_in_market, capital_out_of_market, taxed, total_performance, created_at, updated_at"

func scanTrade(row interface{ Scan(...interface{}) error }) (*models.Trade, error) {
	var (
		t                                          models.Trade
		currency, status                           string
		funding, inMarket, outOfMarket, taxed, per string
	)
	if err := row.Scan(&t.ID, &t.AccountID, &t.TradingVehicleID, &t.Symbol, &currency, &status,
		&funding, &inMarket, &outOfMarket, &taxed, &per, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Currency = models.Currency(currency)
	t.Status = models.Status(status)

	fields := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&t.Balance.Funding, funding},
		{&t.Balance.CapitalInMarket, inMarket},
		{&t.Balance.CapitalOutOfMarket, outOfMarket},
		{&t.Balance.Taxed, taxed},
		{&t.Balance.TotalPerformance, per},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = d
	}
	return &t, nil
}

func (r sqlReader) loadOrders(ctx context.Context, t *models.Trade) error {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, role, trading_vehicle_id, quantity, price, action, category, broker_order_id,
		       average_filled_price, created_at, submitted_at, filled_at, closed_at
		FROM orders WHERE trade_id = ?
	`, t.ID)
	if err != nil {
		return fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o                           models.Order
			role, action, category      string
			price                       string
			avg                         sql.NullString
			submitted, filled, closedAt sql.NullTime
		)
		if err := rows.Scan(&o.ID, &role, &o.TradingVehicleID, &o.Quantity, &price, &action, &category,
			&o.BrokerOrderID, &avg, &o.CreatedAt, &submitted, &filled, &closedAt); err != nil {
			return fmt.Errorf("failed to scan order: %w", err)
		}
		o.TradeID = t.ID
		o.Symbol = t.Symbol
		o.Role = models.OrderRole(role)
		o.Action = models.OrderAction(action)
		o.Category = models.OrderCategory(category)
		if o.Price, err = decimal.NewFromString(price); err != nil {
			return fmt.Errorf("failed to decode order %s price: %w", o.ID, err)
		}
		if avg.Valid {
			d, err := decimal.NewFromString(avg.String)
			if err != nil {
				return fmt.Errorf("failed to decode order %s fill price: %w", o.ID, err)
			}
			o.AverageFilledPrice = &d
		}
		o.SubmittedAt = nullTime(submitted)
		o.FilledAt = nullTime(filled)
		o.ClosedAt = nullTime(closedAt)

		switch o.Role {
		case models.RoleEntry:
			t.Entry = o
		case models.RoleSafetyStop:
			t.SafetyStop = o
		case models.RoleTarget:
			t.Target = o
		}
	}
	return rows.Err()
}

// ReadTrade retrieves a trade and its orders.
func (r sqlReader) ReadTrade(ctx context.Context, id string) (*models.Trade, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+tradeColumns+" FROM trades WHERE id = ?", id)
	t, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trade %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trade: %w", err)
	}
	if err := r.loadOrders(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ReadTrades retrieves trades matching filter, oldest first.
func (r sqlReader) ReadTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	query := "SELECT " + tradeColumns + " FROM trades WHERE 1=1"
	args := []interface{}{}

	if filter.AccountID != "" {
		query += " AND account_id = ?"
		args = append(args, filter.AccountID)
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UTC())
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY created_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}

	var trades []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, *t)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	for i := range trades {
		if err := r.loadOrders(ctx, &trades[i]); err != nil {
			return nil, err
		}
	}
	return trades, nil
}

// CreateTrade inserts a trade and its three orders.
func (w *sqlWriter) CreateTrade(ctx context.Context, t *models.Trade) error {
	_, err := w.q.ExecContext(ctx, `
		INSERT INTO trades (id, account_id, trading_vehicle_id, symbol, currency, status, funding, capital_in_market,
		                    capital_out_of_market, taxed, total_performance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.AccountID, t.TradingVehicleID, t.Symbol, string(t.Currency), string(t.Status),
		t.Balance.Funding.String(), t.Balance.CapitalInMarket.String(), t.Balance.CapitalOutOfMarket.String(),
		t.Balance.Taxed.String(), t.Balance.TotalPerformance.String(), t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}

	for _, o := range t.Orders() {
		_, err := w.q.ExecContext(ctx, `
			INSERT INTO orders (id, trade_id, role, trading_vehicle_id, quantity, price, action, category, broker_order_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, o.ID, t.ID, string(o.Role), o.TradingVehicleID, o.Quantity, o.Price.String(),
			string(o.Action), string(o.Category), o.BrokerOrderID, o.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to create %s order: %w", o.Role, err)
		}
	}
	return nil
}

// UpdateTradeStatus sets the status of a trade and returns the updated trade.
func (w *sqlWriter) UpdateTradeStatus(ctx context.Context, id string, status models.Status, at time.Time) (*models.Trade, error) {
	res, err := w.q.ExecContext(ctx, `
		UPDATE trades SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), at.UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update trade status: %w", err)
	}
	if err := expectRow(res, "trade", id); err != nil {
		return nil, err
	}
	return w.ReadTrade(ctx, id)
}

// UpdateTradeBalance replaces the cached balance of a trade.
func (w *sqlWriter) UpdateTradeBalance(ctx context.Context, id string, b models.TradeBalance) (*models.TradeBalance, error) {
	res, err := w.q.ExecContext(ctx, `
		UPDATE trades SET funding = ?, capital_in_market = ?, capital_out_of_market = ?, taxed = ?, total_performance = ?
		WHERE id = ?
	`, b.Funding.String(), b.CapitalInMarket.String(), b.CapitalOutOfMarket.String(), b.Taxed.String(), b.TotalPerformance.String(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update trade balance: %w", err)
	}
	if err := expectRow(res, "trade", id); err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateOrder persists the mutable fields of an order.
func (w *sqlWriter) UpdateOrder(ctx context.Context, o *models.Order) error {
	var avg interface{}
	if o.AverageFilledPrice != nil {
		avg = o.AverageFilledPrice.String()
	}
	res, err := w.q.ExecContext(ctx, `
		UPDATE orders SET quantity = ?, price = ?, broker_order_id = ?, average_filled_price = ?,
		                  submitted_at = ?, filled_at = ?, closed_at = ?
		WHERE id = ?
	`, o.Quantity, o.Price.String(), o.BrokerOrderID, avg,
		timeArg(o.SubmittedAt), timeArg(o.FilledAt), timeArg(o.ClosedAt), o.ID)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return expectRow(res, "order", o.ID)
}

// ============================================================================
// Rules
// ============================================================================

func (r sqlReader) readRules(ctx context.Context, accountID string, activeOnly bool) ([]models.Rule, error) {
	query := "SELECT id, account_id, name, value, description, priority, level, active, created_at FROM rules WHERE account_id = ?"
	if activeOnly {
		query += " AND active = 1"
	}
	query += " ORDER BY priority ASC, created_at ASC"

	rows, err := r.q.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		var (
			rule        models.Rule
			name, level string
			value       string
			active      int
		)
		if err := rows.Scan(&rule.ID, &rule.AccountID, &name, &value, &rule.Description,
			&rule.Priority, &level, &active, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		if rule.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("failed to decode rule %s value: %w", rule.ID, err)
		}
		rule.Name = models.RuleName(name)
		rule.Level = models.RuleLevel(level)
		rule.Active = active == 1
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// ReadActiveRules returns the active rules of an account by ascending priority.
func (r sqlReader) ReadActiveRules(ctx context.Context, accountID string) ([]models.Rule, error) {
	return r.readRules(ctx, accountID, true)
}

// ReadRules returns every rule of an account, including deactivated ones.
func (r sqlReader) ReadRules(ctx context.Context, accountID string) ([]models.Rule, error) {
	return r.readRules(ctx, accountID, false)
}

// CreateRule inserts a rule.
func (w *sqlWriter) CreateRule(ctx context.Context, rule *models.Rule) error {
	active := 0
	if rule.Active {
		active = 1
	}
	_, err := w.q.ExecContext(ctx, `
		INSERT INTO rules (id, account_id, name, value, description, priority, level, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rule.ID, rule.AccountID, string(rule.Name), rule.Value.String(), rule.Description,
		rule.Priority, string(rule.Level), active, rule.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

// DeactivateRule marks a rule of accountID inactive. Rules of other accounts
// are reported as not found.
func (w *sqlWriter) DeactivateRule(ctx context.Context, accountID, id string) error {
	res, err := w.q.ExecContext(ctx, "UPDATE rules SET active = 0 WHERE id = ? AND account_id = ?", id, accountID)
	if err != nil {
		return fmt.Errorf("failed to deactivate rule: %w", err)
	}
	return expectRow(res, "rule", id)
}

// ============================================================================
// Trading vehicles
// ============================================================================

const vehicleColumns = "id, symbol, isin, category, broker, created_at"

func scanVehicle(row interface{ Scan(...interface{}) error }) (*models.TradingVehicle, error) {
	var (
		v        models.TradingVehicle
		category string
	)
	if err := row.Scan(&v.ID, &v.Symbol, &v.ISIN, &category, &v.Broker, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.Category = models.VehicleCategory(category)
	return &v, nil
}

// ReadTradingVehicle retrieves a trading vehicle by id.
func (r sqlReader) ReadTradingVehicle(ctx context.Context, id string) (*models.TradingVehicle, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+vehicleColumns+" FROM trading_vehicles WHERE id = ?", id)
	v, err := scanVehicle(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trading vehicle %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trading vehicle: %w", err)
	}
	return v, nil
}

// ReadTradingVehicles lists every trading vehicle by symbol.
func (r sqlReader) ReadTradingVehicles(ctx context.Context) ([]models.TradingVehicle, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+vehicleColumns+" FROM trading_vehicles ORDER BY symbol ASC, broker ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query trading vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []models.TradingVehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trading vehicle: %w", err)
		}
		vehicles = append(vehicles, *v)
	}
	return vehicles, rows.Err()
}

// CreateTradingVehicle inserts a trading vehicle.
func (w *sqlWriter) CreateTradingVehicle(ctx context.Context, v *models.TradingVehicle) error {
	_, err := w.q.ExecContext(ctx, `
		INSERT INTO trading_vehicles (id, symbol, isin, category, broker, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, v.ID, v.Symbol, v.ISIN, string(v.Category), v.Broker, v.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create trading vehicle: %w", err)
	}
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func timeArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
