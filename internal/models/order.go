package models

import (
	"time"

	"github.com/shopspring/decimal"

	"trade-journal/internal/errors"
)

// OrderAction represents the side of an order.
type OrderAction string

const (
	ActionBuy  OrderAction = "buy"
	ActionSell OrderAction = "sell"
)

// Opposite returns the closing side for an action.
func (a OrderAction) Opposite() OrderAction {
	if a == ActionBuy {
		return ActionSell
	}
	return ActionBuy
}

// OrderCategory represents how an order is priced.
type OrderCategory string

const (
	OrderMarket OrderCategory = "market"
	OrderLimit  OrderCategory = "limit"
	OrderStop   OrderCategory = "stop"
)

// OrderRole is the part an order plays inside a trade.
type OrderRole string

const (
	RoleEntry      OrderRole = "entry"
	RoleSafetyStop OrderRole = "safety_stop"
	RoleTarget     OrderRole = "target"
)

// Order represents one of the three orders owned by a trade.
type Order struct {
	ID                 string
	TradeID            string
	Role               OrderRole
	TradingVehicleID   string
	Symbol             string // of the trading vehicle
	Quantity           int64
	Price              decimal.Decimal
	Action             OrderAction
	Category           OrderCategory
	BrokerOrderID      string
	AverageFilledPrice *decimal.Decimal
	CreatedAt          time.Time
	SubmittedAt        *time.Time
	FilledAt           *time.Time
	ClosedAt           *time.Time
}

// Notional returns price times quantity.
func (o *Order) Notional() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(o.Quantity))
}

// Validate checks quantities, prices and timestamp ordering.
func (o *Order) Validate() error {
	if o.Quantity <= 0 {
		return errors.NewValidationError(string(o.Role)+".quantity", o.Quantity, "must be positive")
	}
	if !o.Price.IsPositive() {
		return errors.NewValidationError(string(o.Role)+".price", o.Price.String(), "must be positive")
	}
	if o.TradingVehicleID == "" {
		return errors.NewValidationError(string(o.Role)+".trading_vehicle_id", o.TradingVehicleID, "is required")
	}
	for name, ts := range map[string]*time.Time{
		"submitted_at": o.SubmittedAt,
		"filled_at":    o.FilledAt,
		"closed_at":    o.ClosedAt,
	} {
		if ts != nil && ts.Before(o.CreatedAt) {
			return errors.NewValidationError(string(o.Role)+"."+name, ts.String(), "must not precede created_at")
		}
	}
	return nil
}
