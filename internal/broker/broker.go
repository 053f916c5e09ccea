// Package broker provides broker integration interfaces and implementations.
package broker

import (
	"context"

	"github.com/shopspring/decimal"

	"trade-journal/internal/models"
)

// Broker defines the order operations the trade lifecycle depends on.
// Calls may be slow or fail; implementations never retry.
type Broker interface {
	// SubmitOrder places an order and returns the broker's order id.
	SubmitOrder(ctx context.Context, order *models.Order) (string, error)
	// ModifyOrder reprices an order and returns the id it is now known by.
	ModifyOrder(ctx context.Context, brokerOrderID string, price decimal.Decimal) (string, error)
	// CancelOrder cancels an open order.
	CancelOrder(ctx context.Context, brokerOrderID string) error
}

// Error codes used in BrokerError.
const (
	CodeNotFound      = "ORDER_NOT_FOUND"
	CodeInvalidState  = "INVALID_ORDER_STATE"
	CodeRejected      = "REJECTED"
	CodeUnauthorized  = "NOT_AUTHENTICATED"
	CodeUpstream      = "UPSTREAM"
	CodeCircuitOpen   = "CIRCUIT_OPEN"
	CodeInvalidParams = "INVALID_PARAMS"
)
