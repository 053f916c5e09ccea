package lifecycle

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trade-journal/internal/broker"
	"trade-journal/internal/capital"
	"trade-journal/internal/errors"
	"trade-journal/internal/logging"
	"trade-journal/internal/models"
	"trade-journal/internal/risk"
	"trade-journal/internal/store"
)

// FillRequest reports an entry fill from the broker.
type FillRequest struct {
	Price   decimal.Decimal
	Partial bool
}

// CloseRequest reports which exit order filled and at what price.
type CloseRequest struct {
	Exit  models.OrderRole // RoleSafetyStop or RoleTarget
	Price decimal.Decimal
}

// CancelReason records why a trade was canceled.
type CancelReason string

const (
	CancelManual   CancelReason = "manual"
	CancelRejected CancelReason = "rejected"
)

// CancelRequest asks for a trade to be canceled.
type CancelRequest struct {
	Reason CancelReason
}

// ============================================================================
// Creation
// ============================================================================

// CreateTrade builds the entry, safety stop and target orders of a draft and
// stores the trade as new. The draft's trading vehicle must exist.
func (e *Engine) CreateTrade(ctx context.Context, accountID string, d models.DraftTrade) (*models.Trade, error) {
	t, err := e.buildTrade(accountID, d)
	if err != nil {
		return nil, err
	}

	err = e.mutate(ctx, "create_trade", accountID, func(w store.Writer, fx *effects) error {
		if _, err := w.ReadAccount(ctx, accountID); err != nil {
			return errors.Wrapf(err, "failed to read account %s", accountID)
		}
		vehicle, err := w.ReadTradingVehicle(ctx, t.TradingVehicleID)
		if err != nil {
			return errors.Wrapf(err, "failed to read trading vehicle %s", t.TradingVehicleID)
		}
		t.Symbol = vehicle.Symbol
		for _, o := range t.Orders() {
			o.Symbol = vehicle.Symbol
		}
		if err := w.CreateTrade(ctx, t); err != nil {
			return err
		}
		fx.changes = append(fx.changes, statusChange{trade: t})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (e *Engine) buildTrade(accountID string, d models.DraftTrade) (*models.Trade, error) {
	switch d.Action {
	case models.ActionBuy, models.ActionSell:
	default:
		return nil, errors.NewValidationError("action", d.Action, "must be buy or sell")
	}
	category := d.EntryCategory
	switch category {
	case "":
		category = models.OrderLimit
	case models.OrderMarket, models.OrderLimit, models.OrderStop:
	default:
		return nil, errors.NewValidationError("entry.category", category, "must be market, limit or stop")
	}

	now := e.ledger.Now()
	id := uuid.NewString()
	order := func(role models.OrderRole, action models.OrderAction, cat models.OrderCategory, price decimal.Decimal) models.Order {
		return models.Order{
			ID:               uuid.NewString(),
			TradeID:          id,
			Role:             role,
			TradingVehicleID: d.TradingVehicleID,
			Quantity:         d.Quantity,
			Price:            price,
			Action:           action,
			Category:         cat,
			CreatedAt:        now,
		}
	}

	t := &models.Trade{
		ID:               id,
		AccountID:        accountID,
		TradingVehicleID: d.TradingVehicleID,
		Currency:         d.Currency,
		Status:           models.StatusNew,
		Entry:            order(models.RoleEntry, d.Action, category, d.EntryPrice),
		SafetyStop:       order(models.RoleSafetyStop, d.Action.Opposite(), models.OrderStop, d.StopPrice),
		Target:           order(models.RoleTarget, d.Action.Opposite(), models.OrderLimit, d.TargetPrice),
		CreatedAt:        now,
		UpdatedAt:        now,
		Balance: models.TradeBalance{
			Funding:            decimal.Zero,
			CapitalInMarket:    decimal.Zero,
			CapitalOutOfMarket: decimal.Zero,
			Taxed:              decimal.Zero,
			TotalPerformance:   decimal.Zero,
		},
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := checkTargetSide(t, t.Target.Price); err != nil {
		return nil, err
	}
	return t, nil
}

func checkTargetSide(t *models.Trade, price decimal.Decimal) error {
	if t.Direction() == models.DirectionLong && !price.GreaterThan(t.Entry.Price) {
		return errors.NewValidationError("target.price", price.String(), "must be above entry for a long trade")
	}
	if t.Direction() == models.DirectionShort && !price.LessThan(t.Entry.Price) {
		return errors.NewValidationError("target.price", price.String(), "must be below entry for a short trade")
	}
	return nil
}

// ============================================================================
// Transitions
// ============================================================================

// Fund moves a new trade to funded. Active rules are checked first, then the
// account must have the required capital available.
func (e *Engine) Fund(ctx context.Context, tradeID string) (*models.Trade, error) {
	cur, err := e.accountOf(ctx, tradeID)
	if err != nil {
		return nil, err
	}

	var out *models.Trade
	err = e.mutate(ctx, "fund", cur.AccountID, func(w store.Writer, fx *effects) error {
		s, err := e.snapshot(ctx, w, tradeID)
		if err != nil {
			return err
		}
		t := s.Trade
		if err := checkTransition(t.Status, models.StatusFunded); err != nil {
			return err
		}
		if err := t.Validate(); err != nil {
			return err
		}

		required, err := capital.Required(s)
		if err != nil {
			return err
		}
		state, err := e.accountState(ctx, w, t.AccountID, t.Currency)
		if err != nil {
			return err
		}
		if state.Exposure.TradeRisk, err = risk.ForTrade(t); err != nil {
			return err
		}
		rules, err := w.ReadActiveRules(ctx, t.AccountID)
		if err != nil {
			return err
		}
		if err := risk.Check(rules, state.Exposure); err != nil {
			return err
		}
		if state.Available.LessThan(required) {
			return errors.Wrapf(errors.ErrInsufficientFunds, "trade %s requires %s %s, available %s",
				t.ID, required, t.Currency, state.Available)
		}

		if err := e.appendTrade(ctx, w, fx, t, models.FundTrade(t.ID), required); err != nil {
			return err
		}
		if _, err := e.setStatus(ctx, w, fx, t, models.StatusFunded); err != nil {
			return err
		}
		out, err = e.rebalance(ctx, w, t.ID)
		return err
	})
	var violation *errors.RuleViolationError
	if errors.As(err, &violation) {
		logging.LogRuleViolation(logging.WithOperation(e.logger, "fund"), tradeID, violation)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Submit places the three orders with the broker and moves a funded trade to
// submitted. If any order fails, the ones already accepted are canceled. A
// broker rejection cancels the trade.
func (e *Engine) Submit(ctx context.Context, tradeID string) (*models.Trade, error) {
	cur, err := e.accountOf(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(cur.Status, models.StatusSubmitted); err != nil {
		return nil, err
	}
	logger := logging.WithTrade(logging.WithOperation(e.logger, "submit"), cur)

	var accepted []string
	ids := make(map[models.OrderRole]string, 3)
	for _, o := range cur.Orders() {
		o := o
		id, err := e.brokerCall(logger, "submit", func() (string, error) { return e.broker.SubmitOrder(ctx, o) })
		if err != nil {
			e.cancelAccepted(ctx, logger, accepted)
			if isRejection(err) {
				if _, cerr := e.Cancel(ctx, tradeID, CancelRequest{Reason: CancelRejected}); cerr != nil {
					logger.Error().Err(cerr).Msg("Failed to cancel rejected trade")
				}
			}
			return nil, errors.Wrapf(err, "failed to submit %s order", o.Role)
		}
		accepted = append(accepted, id)
		ids[o.Role] = id
	}

	var out *models.Trade
	err = e.mutate(ctx, "submit", cur.AccountID, func(w store.Writer, fx *effects) error {
		s, err := e.snapshot(ctx, w, tradeID)
		if err != nil {
			return err
		}
		t := s.Trade
		if err := checkTransition(t.Status, models.StatusSubmitted); err != nil {
			return err
		}

		now := e.ledger.Now()
		for _, o := range t.Orders() {
			o.BrokerOrderID = ids[o.Role]
			o.SubmittedAt = &now
			if err := e.updateOrder(ctx, w, fx, o); err != nil {
				return err
			}
		}

		funded, err := capital.Funded(s)
		if err != nil {
			return err
		}
		if err := e.appendTrade(ctx, w, fx, t, models.OpenTrade(t.ID), funded); err != nil {
			return err
		}
		if _, err := e.setStatus(ctx, w, fx, t, models.StatusSubmitted); err != nil {
			return err
		}
		out, err = e.rebalance(ctx, w, t.ID)
		return err
	})
	if err != nil {
		e.cancelAccepted(ctx, logger, accepted)
		return nil, err
	}
	return out, nil
}

func isRejection(err error) bool {
	var be *errors.BrokerError
	if errors.As(err, &be) && be.Code == broker.CodeRejected {
		return true
	}
	return errors.Is(err, errors.ErrOrderRejected)
}

// Fill records an entry fill. A partial fill may be followed by further
// partial fills, a complete fill or a close.
func (e *Engine) Fill(ctx context.Context, tradeID string, req FillRequest) (*models.Trade, error) {
	if !req.Price.IsPositive() {
		return nil, errors.NewValidationError("price", req.Price.String(), "must be positive")
	}
	to := models.StatusFilled
	if req.Partial {
		to = models.StatusPartiallyFilled
	}

	cur, err := e.accountOf(ctx, tradeID)
	if err != nil {
		return nil, err
	}

	var out *models.Trade
	err = e.mutate(ctx, "fill", cur.AccountID, func(w store.Writer, fx *effects) error {
		t, err := w.ReadTrade(ctx, tradeID)
		if err != nil {
			return err
		}
		if err := checkTransition(t.Status, to); err != nil {
			return err
		}

		now := e.ledger.Now()
		price := req.Price
		t.Entry.AverageFilledPrice = &price
		t.Entry.FilledAt = &now
		if err := e.updateOrder(ctx, w, fx, &t.Entry); err != nil {
			return err
		}
		if _, err := e.setStatus(ctx, w, fx, t, to); err != nil {
			return err
		}
		out, err = e.rebalance(ctx, w, t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close records the exit of a filled trade. A stop exit beyond the stop price
// is booked as slippage. A profitable close pays taxes and earnings out of
// the profit at the account's percentages.
func (e *Engine) Close(ctx context.Context, tradeID string, req CloseRequest) (*models.Trade, error) {
	if !req.Price.IsPositive() {
		return nil, errors.NewValidationError("price", req.Price.String(), "must be positive")
	}
	if req.Exit != models.RoleSafetyStop && req.Exit != models.RoleTarget {
		return nil, errors.NewValidationError("exit", req.Exit, "must be safety_stop or target")
	}

	cur, err := e.accountOf(ctx, tradeID)
	if err != nil {
		return nil, err
	}

	var (
		out     *models.Trade
		sibling string
	)
	err = e.mutate(ctx, "close", cur.AccountID, func(w store.Writer, fx *effects) error {
		t, err := w.ReadTrade(ctx, tradeID)
		if err != nil {
			return err
		}
		if err := checkTransition(t.Status, models.StatusClosed); err != nil {
			return err
		}

		exit, other := &t.Target, &t.SafetyStop
		category := models.CloseTarget(t.ID)
		if req.Exit == models.RoleSafetyStop {
			exit, other = &t.SafetyStop, &t.Target
			category = models.CloseSafetyStop(t.ID)
			if slipped(t, req.Price) {
				category = models.CloseSafetyStopSlippage(t.ID)
			}
		}

		amount, err := capital.Mul(req.Price, decimal.NewFromInt(t.Entry.Quantity))
		if err != nil {
			return err
		}
		if err := e.appendTrade(ctx, w, fx, t, category, amount); err != nil {
			return err
		}

		now := e.ledger.Now()
		price := req.Price
		exit.AverageFilledPrice = &price
		exit.FilledAt = &now
		for _, o := range []*models.Order{&t.Entry, exit, other} {
			o.ClosedAt = &now
			if err := e.updateOrder(ctx, w, fx, o); err != nil {
				return err
			}
		}
		sibling = other.BrokerOrderID

		if _, err := e.setStatus(ctx, w, fx, t, models.StatusClosed); err != nil {
			return err
		}
		if err := e.payOut(ctx, w, fx, t.ID); err != nil {
			return err
		}
		out, err = e.rebalance(ctx, w, t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if sibling != "" {
		logger := logging.WithTrade(logging.WithOperation(e.logger, "close"), out)
		e.cancelAccepted(ctx, logger, []string{sibling})
	}
	return out, nil
}

// slipped reports whether a stop exit filled worse than the stop price.
func slipped(t *models.Trade, price decimal.Decimal) bool {
	if t.Direction() == models.DirectionLong {
		return price.LessThan(t.SafetyStop.Price)
	}
	return price.GreaterThan(t.SafetyStop.Price)
}

// payOut appends the tax and earnings payments of a closed, profitable trade.
func (e *Engine) payOut(ctx context.Context, w store.Writer, fx *effects, tradeID string) error {
	s, err := e.snapshot(ctx, w, tradeID)
	if err != nil {
		return err
	}
	profit, err := capital.Profit(s)
	if err != nil || !profit.IsPositive() {
		return err
	}
	account, err := w.ReadAccount(ctx, s.Trade.AccountID)
	if err != nil {
		return err
	}

	tax, err := capital.Percent(profit, account.TaxesPercentage)
	if err != nil {
		return err
	}
	if tax.IsPositive() {
		if err := e.appendTrade(ctx, w, fx, s.Trade, models.PaymentTax(tradeID), tax); err != nil {
			return err
		}
	}
	earnings, err := capital.Percent(profit, account.EarningsPercentage)
	if err != nil {
		return err
	}
	if earnings.IsPositive() {
		return e.appendTrade(ctx, w, fx, s.Trade, models.PaymentEarnings(tradeID), earnings)
	}
	return nil
}

// Cancel moves a new, funded or submitted trade to canceled and returns its
// outstanding funding. A manual cancel of a submitted trade cancels the
// broker orders first and fails without any state change if that fails.
// Orders already canceled at the broker by then are logged at error level.
func (e *Engine) Cancel(ctx context.Context, tradeID string, req CancelRequest) (*models.Trade, error) {
	reason := req.Reason
	switch reason {
	case "":
		reason = CancelManual
	case CancelManual, CancelRejected:
	default:
		return nil, errors.NewValidationError("reason", reason, "must be manual or rejected")
	}

	cur, err := e.accountOf(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(cur.Status, models.StatusCanceled); err != nil {
		return nil, err
	}

	if cur.Status == models.StatusSubmitted && reason == CancelManual {
		logger := logging.WithTrade(logging.WithOperation(e.logger, "cancel"), cur)
		var canceled []string
		for _, o := range cur.Orders() {
			if o.BrokerOrderID == "" {
				continue
			}
			id := o.BrokerOrderID
			if _, err := e.brokerCall(logger, "cancel", func() (string, error) { return id, e.broker.CancelOrder(ctx, id) }); err != nil {
				if len(canceled) > 0 {
					logger.Error().Err(err).Strs("canceled_broker_order_ids", canceled).Msg("Orders canceled at broker but trade still submitted")
				}
				return nil, errors.Wrapf(err, "failed to cancel %s order", o.Role)
			}
			canceled = append(canceled, id)
		}
	}

	var out *models.Trade
	err = e.mutate(ctx, "cancel", cur.AccountID, func(w store.Writer, fx *effects) error {
		s, err := e.snapshot(ctx, w, tradeID)
		if err != nil {
			return err
		}
		t := s.Trade
		if err := checkTransition(t.Status, models.StatusCanceled); err != nil {
			return err
		}

		funded, err := capital.Funded(s)
		if err != nil {
			return err
		}
		if funded.IsPositive() {
			if err := e.appendTrade(ctx, w, fx, t, models.PaymentFromTrade(t.ID), funded); err != nil {
				return err
			}
		}

		now := e.ledger.Now()
		for _, o := range t.Orders() {
			if o.SubmittedAt == nil {
				continue
			}
			o.ClosedAt = &now
			if err := e.updateOrder(ctx, w, fx, o); err != nil {
				return err
			}
		}

		if _, err := e.setStatus(ctx, w, fx, t, models.StatusCanceled); err != nil {
			return err
		}
		out, err = e.rebalance(ctx, w, t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info().Str("trade_id", tradeID).Str("reason", string(reason)).Msg("Trade canceled")
	return out, nil
}

// ============================================================================
// Order maintenance
// ============================================================================

// ModifyStop moves the safety stop. The stop may only move in the trade's
// favour.
func (e *Engine) ModifyStop(ctx context.Context, tradeID string, price decimal.Decimal) (*models.Trade, error) {
	return e.modify(ctx, "modify_stop", tradeID, models.RoleSafetyStop, price, func(t *models.Trade) error {
		old := t.SafetyStop.Price
		if (t.Direction() == models.DirectionLong && !price.GreaterThan(old)) ||
			(t.Direction() == models.DirectionShort && !price.LessThan(old)) {
			return errors.NewValidationError("safety_stop.price", price.String(), "may only move in the trade's favour from "+old.String())
		}
		return nil
	})
}

// ModifyTarget moves the target. It must stay on the profit side of entry.
func (e *Engine) ModifyTarget(ctx context.Context, tradeID string, price decimal.Decimal) (*models.Trade, error) {
	return e.modify(ctx, "modify_target", tradeID, models.RoleTarget, price, func(t *models.Trade) error {
		return checkTargetSide(t, price)
	})
}

func (e *Engine) modify(ctx context.Context, op, tradeID string, role models.OrderRole, price decimal.Decimal, check func(*models.Trade) error) (*models.Trade, error) {
	if !price.IsPositive() {
		return nil, errors.NewValidationError("price", price.String(), "must be positive")
	}

	cur, err := e.accountOf(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !liveAtBroker(cur.Status) {
		return nil, errors.NewInvalidStateError(op, string(cur.Status))
	}
	if err := check(cur); err != nil {
		return nil, err
	}

	order := orderByRole(cur, role)
	logger := logging.WithTrade(logging.WithOperation(e.logger, op), cur)
	newID, err := e.brokerCall(logger, "modify", func() (string, error) {
		return e.broker.ModifyOrder(ctx, order.BrokerOrderID, price)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to modify %s order", role)
	}

	var out *models.Trade
	err = e.mutate(ctx, op, cur.AccountID, func(w store.Writer, fx *effects) error {
		t, err := w.ReadTrade(ctx, tradeID)
		if err != nil {
			return err
		}
		if !liveAtBroker(t.Status) {
			return errors.NewInvalidStateError(op, string(t.Status))
		}
		o := orderByRole(t, role)
		o.Price = price
		o.BrokerOrderID = newID
		if err := e.updateOrder(ctx, w, fx, o); err != nil {
			return err
		}
		out, err = e.rebalance(ctx, w, t.ID)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Str("broker_order_id", newID).Msg("Order modified at broker but not recorded")
		return nil, err
	}
	return out, nil
}

func liveAtBroker(s models.Status) bool {
	return s == models.StatusSubmitted || s.IsFilled()
}

func orderByRole(t *models.Trade, role models.OrderRole) *models.Order {
	switch role {
	case models.RoleSafetyStop:
		return &t.SafetyStop
	case models.RoleTarget:
		return &t.Target
	default:
		return &t.Entry
	}
}

// ChargeFee books an open or close fee against a trade. Open fees need the
// orders placed; close fees need the entry filled.
func (e *Engine) ChargeFee(ctx context.Context, tradeID string, kind models.CategoryKind, amount decimal.Decimal) (*models.Trade, error) {
	if !kind.IsFee() {
		return nil, errors.NewValidationError("category", kind.Key(), "must be fee_open or fee_close")
	}
	if !amount.IsPositive() {
		return nil, errors.NewValidationError("amount", amount.String(), "must be positive")
	}

	cur, err := e.accountOf(ctx, tradeID)
	if err != nil {
		return nil, err
	}

	var out *models.Trade
	err = e.mutate(ctx, "charge_fee", cur.AccountID, func(w store.Writer, fx *effects) error {
		t, err := w.ReadTrade(ctx, tradeID)
		if err != nil {
			return err
		}
		if !feeAllowed(kind, t.Status) {
			return errors.NewInvalidStateError(kind.Key(), string(t.Status))
		}
		category, err := models.ParseCategory(kind.Key(), t.ID)
		if err != nil {
			return err
		}
		if err := e.appendTrade(ctx, w, fx, t, category, amount); err != nil {
			return err
		}
		out, err = e.rebalance(ctx, w, t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func feeAllowed(kind models.CategoryKind, s models.Status) bool {
	switch kind {
	case models.KindFeeOpen:
		return s == models.StatusSubmitted || s.IsFilled()
	case models.KindFeeClose:
		return s.IsFilled() || s == models.StatusClosed
	}
	return false
}

// Size returns the largest entry quantity the account can fund that passes
// every active rule.
func (e *Engine) Size(ctx context.Context, accountID string, currency models.Currency, entry, stop decimal.Decimal) (int64, error) {
	var qty int64
	err := e.store.View(ctx, func(r store.Reader) error {
		state, err := e.accountState(ctx, r, accountID, currency)
		if err != nil {
			return err
		}
		rules, err := r.ReadActiveRules(ctx, accountID)
		if err != nil {
			return err
		}
		qty, err = risk.MaxQuantity(state.Available, entry, stop, rules, state.Exposure)
		return err
	})
	return qty, err
}
