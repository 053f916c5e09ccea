package resilience

import (
	"context"

	"github.com/shopspring/decimal"

	"trade-journal/internal/broker"
	"trade-journal/internal/errors"
	"trade-journal/internal/models"
)

// GuardedBroker wraps a broker with a circuit breaker. It never retries.
type GuardedBroker struct {
	inner broker.Broker
	cb    *CircuitBreaker
}

// NewGuardedBroker wraps inner. Broker errors that reject the request itself
// (bad parameters, unknown or closed orders) do not trip the circuit.
func NewGuardedBroker(inner broker.Broker, config CircuitBreakerConfig) *GuardedBroker {
	if config.IsFailure == nil {
		config.IsFailure = isInfrastructureFailure
	}
	return &GuardedBroker{
		inner: inner,
		cb:    NewCircuitBreaker("broker", config),
	}
}

func isInfrastructureFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var be *errors.BrokerError
	if errors.As(err, &be) {
		switch be.Code {
		case broker.CodeInvalidParams, broker.CodeNotFound, broker.CodeInvalidState, broker.CodeRejected:
			return false
		}
	}
	return true
}

func circuitError(err error) error {
	if errors.Is(err, ErrCircuitOpen) {
		return errors.NewBrokerError(broker.CodeCircuitOpen, "broker temporarily unavailable", err)
	}
	return err
}

// SubmitOrder implements broker.Broker.
func (g *GuardedBroker) SubmitOrder(ctx context.Context, order *models.Order) (string, error) {
	id, err := ExecuteWithResult(ctx, g.cb, func(ctx context.Context) (string, error) {
		return g.inner.SubmitOrder(ctx, order)
	})
	return id, circuitError(err)
}

// ModifyOrder implements broker.Broker.
func (g *GuardedBroker) ModifyOrder(ctx context.Context, brokerOrderID string, price decimal.Decimal) (string, error) {
	id, err := ExecuteWithResult(ctx, g.cb, func(ctx context.Context) (string, error) {
		return g.inner.ModifyOrder(ctx, brokerOrderID, price)
	})
	return id, circuitError(err)
}

// CancelOrder implements broker.Broker.
func (g *GuardedBroker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	return circuitError(g.cb.Execute(ctx, func(ctx context.Context) error {
		return g.inner.CancelOrder(ctx, brokerOrderID)
	}))
}

// Stats exposes the breaker statistics.
func (g *GuardedBroker) Stats() CircuitBreakerStats {
	return g.cb.Stats()
}

var _ broker.Broker = (*GuardedBroker)(nil)
