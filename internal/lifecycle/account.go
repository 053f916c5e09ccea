package lifecycle

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trade-journal/internal/capital"
	"trade-journal/internal/errors"
	"trade-journal/internal/ledger"
	"trade-journal/internal/models"
	"trade-journal/internal/risk"
	"trade-journal/internal/store"
)

// NewAccount is the input to CreateAccount.
type NewAccount struct {
	Name               string
	Description        string
	Environment        models.Environment
	TaxesPercentage    decimal.Decimal
	EarningsPercentage decimal.Decimal
}

// NewRule is the input to CreateRule.
type NewRule struct {
	AccountID   string
	Name        models.RuleName
	Value       decimal.Decimal
	Description string
	Priority    int
	Level       models.RuleLevel
}

// CreateAccount stores a new account.
func (e *Engine) CreateAccount(ctx context.Context, in NewAccount) (*models.Account, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.NewValidationError("name", in.Name, "is required")
	}
	env := in.Environment
	if env == "" {
		env = models.EnvironmentPaper
	}
	if _, err := models.ParseEnvironment(string(env)); err != nil {
		return nil, err
	}
	for field, pct := range map[string]decimal.Decimal{
		"taxes_percentage":    in.TaxesPercentage,
		"earnings_percentage": in.EarningsPercentage,
	} {
		if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			return nil, errors.NewValidationError(field, pct.String(), "must be a percent between 0 and 100")
		}
	}

	a := &models.Account{
		ID:                 uuid.NewString(),
		Name:               name,
		Description:        in.Description,
		Environment:        env,
		TaxesPercentage:    in.TaxesPercentage,
		EarningsPercentage: in.EarningsPercentage,
		CreatedAt:          e.ledger.Now(),
	}
	err := e.mutate(ctx, "create_account", a.ID, func(w store.Writer, _ *effects) error {
		return w.CreateAccount(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info().Str("account_id", a.ID).Str("name", a.Name).Msg("Account created")
	return a, nil
}

// Deposit adds capital to an account.
func (e *Engine) Deposit(ctx context.Context, accountID string, currency models.Currency, amount decimal.Decimal) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, errors.NewValidationError("amount", amount.String(), "must be positive")
	}
	return e.appendAccount(ctx, "deposit", accountID, currency, amount, models.Deposit(), false)
}

// Withdraw takes capital out of an account. kind selects a plain, tax or
// earnings withdrawal; the amount may not exceed the available capital.
func (e *Engine) Withdraw(ctx context.Context, accountID string, currency models.Currency, amount decimal.Decimal, kind models.CategoryKind) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, errors.NewValidationError("amount", amount.String(), "must be positive")
	}
	var category models.TransactionCategory
	switch kind {
	case models.KindWithdrawal:
		category = models.Withdrawal()
	case models.KindWithdrawalTax:
		category = models.WithdrawalTax()
	case models.KindWithdrawalEarnings:
		category = models.WithdrawalEarnings()
	default:
		return nil, errors.NewValidationError("category", kind.Key(), "must be a withdrawal")
	}
	return e.appendAccount(ctx, "withdraw", accountID, currency, amount, category, true)
}

func (e *Engine) appendAccount(ctx context.Context, op, accountID string, currency models.Currency, amount decimal.Decimal, category models.TransactionCategory, checkAvailable bool) (*models.Transaction, error) {
	var out *models.Transaction
	err := e.mutate(ctx, op, accountID, func(w store.Writer, fx *effects) error {
		if _, err := w.ReadAccount(ctx, accountID); err != nil {
			return errors.Wrapf(err, "failed to read account %s", accountID)
		}
		if checkAvailable {
			state, err := e.accountState(ctx, w, accountID, currency)
			if err != nil {
				return err
			}
			if state.Available.LessThan(amount) {
				return errors.Wrapf(errors.ErrInsufficientFunds, "withdrawing %s %s, available %s", amount, currency, state.Available)
			}
		}
		tx, err := e.ledger.Append(ctx, w, ledger.NewTransaction{
			AccountID: accountID,
			Currency:  currency,
			Amount:    amount,
			Category:  category,
		})
		if err != nil {
			return err
		}
		fx.txs = append(fx.txs, tx)
		out = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteTransaction soft-deletes an account-scoped transaction. Trade-scoped
// entries belong to the trade lifecycle and cannot be deleted.
func (e *Engine) DeleteTransaction(ctx context.Context, accountID, txID string) error {
	return e.mutate(ctx, "delete_transaction", accountID, func(w store.Writer, fx *effects) error {
		txs, err := w.QueryTransactions(ctx, models.TransactionFilter{AccountID: accountID})
		if err != nil {
			return err
		}
		for _, tx := range txs {
			if tx.ID != txID {
				continue
			}
			if tx.Category.Kind.Scope() != models.ScopeAccount {
				return errors.NewValidationError("tx_id", txID, "trade transactions cannot be deleted")
			}
			if err := e.ledger.MarkDeleted(ctx, w, txID); err != nil {
				return err
			}
			fx.deleted = append(fx.deleted, txID)
			return nil
		}
		return errors.Wrapf(store.ErrNotFound, "transaction %s", txID)
	})
}

// CreateRule adds an active rule to an account.
func (e *Engine) CreateRule(ctx context.Context, in NewRule) (*models.Rule, error) {
	level := in.Level
	if level == "" {
		level = models.LevelError
	}
	r := &models.Rule{
		ID:          uuid.NewString(),
		AccountID:   in.AccountID,
		Name:        in.Name,
		Value:       in.Value,
		Description: in.Description,
		Priority:    in.Priority,
		Level:       level,
		Active:      true,
		CreatedAt:   e.ledger.Now(),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	err := e.mutate(ctx, "create_rule", in.AccountID, func(w store.Writer, _ *effects) error {
		if _, err := w.ReadAccount(ctx, in.AccountID); err != nil {
			return errors.Wrapf(err, "failed to read account %s", in.AccountID)
		}
		return w.CreateRule(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info().Str("account_id", r.AccountID).Str("rule", string(r.Name)).Str("value", r.Value.String()).Msg("Rule created")
	return r, nil
}

// DeactivateRule stops a rule of accountID from being checked. Rules are
// never deleted.
func (e *Engine) DeactivateRule(ctx context.Context, accountID, ruleID string) error {
	return e.mutate(ctx, "deactivate_rule", accountID, func(w store.Writer, _ *effects) error {
		if err := w.DeactivateRule(ctx, accountID, ruleID); err != nil {
			return errors.Wrapf(err, "failed to deactivate rule for account %s", accountID)
		}
		return nil
	})
}

// ============================================================================
// Account state
// ============================================================================

type accountState struct {
	Balance   decimal.Decimal
	Available decimal.Decimal
	InTrade   decimal.Decimal
	Exposure  risk.Exposure
}

// accountState derives balance, availability and rule exposure for one
// account and currency. TradeRisk is left for the caller.
func (e *Engine) accountState(ctx context.Context, r store.Reader, accountID string, currency models.Currency) (accountState, error) {
	var st accountState

	txs, err := e.ledger.Account(ctx, r, accountID, currency)
	if err != nil {
		return st, err
	}
	if st.Balance, err = capital.AccountBalance(txs); err != nil {
		return st, err
	}

	before, err := e.ledger.BeforeMonth(ctx, r, accountID, currency)
	if err != nil {
		return st, err
	}
	if st.Exposure.MonthStartCapital, err = capital.AccountBalance(before); err != nil {
		return st, err
	}

	trades, err := r.ReadTrades(ctx, store.TradeFilter{AccountID: accountID})
	if err != nil {
		return st, err
	}
	monthStart := ledger.MonthStart(e.ledger.Now())
	var (
		committed []decimal.Decimal
		open      []models.TradeBalance
		monthRisk = decimal.Zero
	)
	for i := range trades {
		t := &trades[i]
		if t.Currency != currency || t.Status == models.StatusNew || t.Status == models.StatusCanceled {
			continue
		}
		if t.Status == models.StatusFunded {
			committed = append(committed, t.Balance.Funding)
		}
		if !t.Status.IsTerminal() {
			open = append(open, t.Balance)
		}
		if !t.CreatedAt.Before(monthStart) {
			tr, err := risk.ForTrade(t)
			if err != nil {
				return st, err
			}
			if monthRisk, err = capital.Add(monthRisk, tr); err != nil {
				return st, err
			}
		}
	}

	if st.Available, err = capital.AccountAvailable(st.Balance, committed...); err != nil {
		return st, err
	}
	if st.InTrade, err = capital.InTrade(open...); err != nil {
		return st, err
	}
	st.Exposure.AccountCapital = st.Balance
	st.Exposure.MonthRisk = monthRisk
	return st, nil
}

// ============================================================================
// Read side
// ============================================================================

// AccountBalance summarizes an account in one currency.
func (e *Engine) AccountBalance(ctx context.Context, accountID string, currency models.Currency) (*models.AccountBalance, error) {
	if !currency.Valid() {
		return nil, errors.NewValidationError("currency", currency, "unsupported currency")
	}
	var out *models.AccountBalance
	err := e.store.View(ctx, func(r store.Reader) error {
		if _, err := r.ReadAccount(ctx, accountID); err != nil {
			return err
		}
		st, err := e.accountState(ctx, r, accountID, currency)
		if err != nil {
			return err
		}
		taxTxs, err := e.ledger.Taxes(ctx, r, accountID, currency)
		if err != nil {
			return err
		}
		taxed := decimal.Zero
		for _, tx := range taxTxs {
			if tx.Category.Kind == models.KindWithdrawalTax {
				taxed, err = capital.Sub(taxed, tx.Amount)
			} else {
				taxed, err = capital.Add(taxed, tx.Amount)
			}
			if err != nil {
				return err
			}
		}
		out = &models.AccountBalance{
			AccountID:      accountID,
			Currency:       currency,
			TotalBalance:   st.Balance,
			TotalAvailable: st.Available,
			TotalInTrade:   st.InTrade,
			Taxed:          taxed,
		}
		return nil
	})
	return out, err
}

// TradeBalance recomputes a trade's balance from the ledger.
func (e *Engine) TradeBalance(ctx context.Context, tradeID string) (*models.TradeBalance, error) {
	var out models.TradeBalance
	err := e.store.View(ctx, func(r store.Reader) error {
		s, err := e.snapshot(ctx, r, tradeID)
		if err != nil {
			return err
		}
		out, err = capital.Balance(s)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Performance returns the realized result of a closed trade.
func (e *Engine) Performance(ctx context.Context, tradeID string) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := e.store.View(ctx, func(r store.Reader) error {
		s, err := e.snapshot(ctx, r, tradeID)
		if err != nil {
			return err
		}
		out, err = capital.Performance(s)
		return err
	})
	return out, err
}

// ResolveAccount finds an account by id or, failing that, by name.
func (e *Engine) ResolveAccount(ctx context.Context, ref string) (*models.Account, error) {
	a, err := e.store.ReadAccount(ctx, ref)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return e.store.ReadAccountByName(ctx, ref)
}

// Accounts lists every account.
func (e *Engine) Accounts(ctx context.Context) ([]models.Account, error) {
	return e.store.ReadAccounts(ctx)
}

// Rules lists an account's rules, active or not.
func (e *Engine) Rules(ctx context.Context, accountID string) ([]models.Rule, error) {
	return e.store.ReadRules(ctx, accountID)
}

// Trade reads one trade.
func (e *Engine) Trade(ctx context.Context, tradeID string) (*models.Trade, error) {
	return e.store.ReadTrade(ctx, tradeID)
}

// Trades lists trades matching filter.
func (e *Engine) Trades(ctx context.Context, filter store.TradeFilter) ([]models.Trade, error) {
	return e.store.ReadTrades(ctx, filter)
}

// Transactions lists live ledger entries matching filter.
func (e *Engine) Transactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error) {
	return e.ledger.Query(ctx, e.store, filter)
}
