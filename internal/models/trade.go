package models

import (
	"time"

	"github.com/shopspring/decimal"

	"trade-journal/internal/errors"
)

// Status represents the lifecycle state of a trade.
type Status string

const (
	StatusNew             Status = "new"
	StatusFunded          Status = "funded"
	StatusSubmitted       Status = "submitted"
	StatusPartiallyFilled Status = "partially_filled"
	StatusFilled          Status = "filled"
	StatusClosed          Status = "closed"
	StatusCanceled        Status = "canceled"
)

// ParseStatus parses a stored status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusNew, StatusFunded, StatusSubmitted, StatusPartiallyFilled,
		StatusFilled, StatusClosed, StatusCanceled:
		return st, nil
	}
	return "", errors.NewValidationError("status", s, "unknown trade status")
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusClosed || s == StatusCanceled
}

// IsFilled reports whether the entry has been filled, fully or partially.
// Partial fills count as filled for all capital purposes.
func (s Status) IsFilled() bool {
	return s == StatusFilled || s == StatusPartiallyFilled
}

// TradeBalance is the cached capital snapshot of a trade.
type TradeBalance struct {
	Funding            decimal.Decimal
	CapitalInMarket    decimal.Decimal
	CapitalOutOfMarket decimal.Decimal
	Taxed              decimal.Decimal
	TotalPerformance   decimal.Decimal
}

// Trade aggregates the entry, safety stop and target orders.
type Trade struct {
	ID               string
	AccountID        string
	TradingVehicleID string
	Symbol           string
	Currency         Currency
	Status           Status
	Entry            Order
	SafetyStop       Order
	Target           Order
	Balance          TradeBalance
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Direction returns long when the entry buys, short otherwise.
func (t *Trade) Direction() Direction {
	if t.Entry.Action == ActionBuy {
		return DirectionLong
	}
	return DirectionShort
}

// Orders returns pointers to the three orders in entry, stop, target order.
func (t *Trade) Orders() []*Order {
	return []*Order{&t.Entry, &t.SafetyStop, &t.Target}
}

// Validate checks the structural invariants a trade must hold before funding.
func (t *Trade) Validate() error {
	if !t.Currency.Valid() {
		return errors.NewValidationError("currency", t.Currency, "unsupported currency")
	}
	for _, o := range t.Orders() {
		if err := o.Validate(); err != nil {
			return err
		}
		if o.TradingVehicleID != t.Entry.TradingVehicleID {
			return errors.NewValidationError(string(o.Role)+".trading_vehicle_id", o.TradingVehicleID,
				"must match entry trading vehicle "+t.Entry.TradingVehicleID)
		}
	}
	if t.Entry.Price.Equal(t.SafetyStop.Price) {
		return errors.NewValidationError("safety_stop.price", t.SafetyStop.Price.String(), "must differ from entry price")
	}
	switch t.Direction() {
	case DirectionLong:
		if t.SafetyStop.Price.GreaterThan(t.Entry.Price) {
			return errors.NewValidationError("safety_stop.price", t.SafetyStop.Price.String(), "must be below entry for a long trade")
		}
	case DirectionShort:
		if t.SafetyStop.Price.LessThan(t.Entry.Price) {
			return errors.NewValidationError("safety_stop.price", t.SafetyStop.Price.String(), "must be above entry for a short trade")
		}
	}
	return nil
}

// DraftTrade is the input for creating a trade.
type DraftTrade struct {
	TradingVehicleID string
	Currency         Currency
	Action           OrderAction
	Quantity         int64
	EntryPrice       decimal.Decimal
	StopPrice        decimal.Decimal
	TargetPrice      decimal.Decimal
	EntryCategory    OrderCategory
}
