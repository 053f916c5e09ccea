package lifecycle

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trade-journal/internal/audit"
	"trade-journal/internal/broker"
	"trade-journal/internal/capital"
	"trade-journal/internal/ledger"
	"trade-journal/internal/logging"
	"trade-journal/internal/models"
	"trade-journal/internal/store"
)

// Engine applies lifecycle operations against a store and a broker.
type Engine struct {
	store  store.DataStore
	broker broker.Broker
	ledger *ledger.Ledger
	logger zerolog.Logger
	audit  audit.Recorder
}

// New creates an engine. rec may be nil to disable the audit trail.
func New(ds store.DataStore, b broker.Broker, l *ledger.Ledger, logger zerolog.Logger, rec audit.Recorder) *Engine {
	if l == nil {
		l = ledger.New(nil)
	}
	return &Engine{
		store:  ds,
		broker: b,
		ledger: l,
		logger: logger,
		audit:  rec,
	}
}

// ============================================================================
// Transition plumbing
// ============================================================================

type statusChange struct {
	trade *models.Trade
	from  models.Status
}

// effects collects what a committed mutation did, for logging and audit.
type effects struct {
	txs     []*models.Transaction
	changes []statusChange
	orders  []*models.Order
	deleted []string
}

// mutate runs fn under the account lock and publishes its effects once the
// store has committed.
func (e *Engine) mutate(ctx context.Context, op, accountID string, fn func(w store.Writer, fx *effects) error) error {
	fx := &effects{}
	err := e.store.Atomic(ctx, accountID, func(w store.Writer) error {
		*fx = effects{}
		return fn(w, fx)
	})
	logger := logging.WithOperation(e.logger, op)
	if err != nil {
		logger.Debug().Err(err).Str("account_id", accountID).Msg("Operation rejected")
		return err
	}
	e.publish(ctx, logger, accountID, fx)
	return nil
}

func (e *Engine) publish(ctx context.Context, logger zerolog.Logger, accountID string, fx *effects) {
	warn := func(err error) {
		if err != nil {
			logger.Warn().Err(err).Msg("Audit write failed")
		}
	}

	for _, tx := range fx.txs {
		logging.LogTransaction(logger, tx)
		if e.audit != nil {
			warn(e.audit.RecordTransaction(ctx, tx))
		}
	}
	for _, id := range fx.deleted {
		logger.Info().Str("event", "transaction_deleted").Str("tx_id", id).Msg("Transaction deleted")
		if e.audit != nil {
			warn(e.audit.RecordDeletion(ctx, accountID, id))
		}
	}
	for _, o := range fx.orders {
		logger.Debug().Str("order_id", o.ID).Str("role", string(o.Role)).
			Str("broker_order_id", o.BrokerOrderID).Msg("Order updated")
		if e.audit != nil {
			warn(e.audit.RecordOrder(ctx, o))
		}
	}
	for _, c := range fx.changes {
		logging.LogTransition(logger, c.trade.ID, c.from, c.trade.Status)
		if e.audit != nil {
			warn(e.audit.RecordTransition(ctx, c.trade, c.from))
		}
	}
}

// appendTrade appends a trade-scoped transaction.
func (e *Engine) appendTrade(ctx context.Context, w store.Writer, fx *effects, t *models.Trade, cat models.TransactionCategory, amount decimal.Decimal) error {
	tx, err := e.ledger.Append(ctx, w, ledger.NewTransaction{
		AccountID: t.AccountID,
		TradeID:   t.ID,
		Currency:  t.Currency,
		Amount:    amount,
		Category:  cat,
	})
	if err != nil {
		return err
	}
	fx.txs = append(fx.txs, tx)
	return nil
}

// setStatus moves t to status and returns the stored trade.
func (e *Engine) setStatus(ctx context.Context, w store.Writer, fx *effects, t *models.Trade, to models.Status) (*models.Trade, error) {
	if err := checkTransition(t.Status, to); err != nil {
		return nil, err
	}
	updated, err := w.UpdateTradeStatus(ctx, t.ID, to, e.ledger.Now())
	if err != nil {
		return nil, err
	}
	fx.changes = append(fx.changes, statusChange{trade: updated, from: t.Status})
	return updated, nil
}

func (e *Engine) updateOrder(ctx context.Context, w store.Writer, fx *effects, o *models.Order) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if err := w.UpdateOrder(ctx, o); err != nil {
		return err
	}
	cp := *o
	fx.orders = append(fx.orders, &cp)
	return nil
}

// snapshot reads a trade and its live transactions through r.
func (e *Engine) snapshot(ctx context.Context, r store.Reader, tradeID string) (capital.Snapshot, error) {
	t, err := r.ReadTrade(ctx, tradeID)
	if err != nil {
		return capital.Snapshot{}, err
	}
	txs, err := e.ledger.Trade(ctx, r, tradeID)
	if err != nil {
		return capital.Snapshot{}, err
	}
	return capital.Snapshot{Trade: t, Transactions: txs}, nil
}

// rebalance recomputes and stores the cached balance of a trade.
func (e *Engine) rebalance(ctx context.Context, w store.Writer, tradeID string) (*models.Trade, error) {
	s, err := e.snapshot(ctx, w, tradeID)
	if err != nil {
		return nil, err
	}
	b, err := capital.Balance(s)
	if err != nil {
		return nil, err
	}
	if _, err := w.UpdateTradeBalance(ctx, tradeID, b); err != nil {
		return nil, err
	}
	s.Trade.Balance = b
	return s.Trade, nil
}

// accountOf resolves the account that owns a trade, for locking.
func (e *Engine) accountOf(ctx context.Context, tradeID string) (*models.Trade, error) {
	return e.store.ReadTrade(ctx, tradeID)
}

// brokerCall times and logs one broker request.
func (e *Engine) brokerCall(logger zerolog.Logger, method string, fn func() (string, error)) (string, error) {
	start := time.Now()
	id, err := fn()
	logging.LogBrokerCall(logger, method, id, time.Since(start), err)
	return id, err
}

// cancelAccepted cancels orders already accepted by the broker. Failures are
// logged; the caller's original error is what gets returned.
func (e *Engine) cancelAccepted(ctx context.Context, logger zerolog.Logger, ids []string) {
	for _, id := range ids {
		id := id
		_, err := e.brokerCall(logger, "cancel", func() (string, error) { return id, e.broker.CancelOrder(ctx, id) })
		if err != nil {
			logger.Error().Err(err).Str("broker_order_id", id).Msg("Compensating cancel failed")
		}
	}
}
