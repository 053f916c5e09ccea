package resilience

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-journal/internal/broker"
	"trade-journal/internal/errors"
	"trade-journal/internal/models"
)

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute})
	cb.now = func() time.Time { return now }

	ctx := context.Background()
	boom := fmt.Errorf("boom")
	fail := func(context.Context) error { return boom }
	ok := func(context.Context) error { return nil }

	assert.ErrorIs(t, cb.Execute(ctx, fail), boom)
	assert.Equal(t, CircuitClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, fail), boom)
	assert.Equal(t, CircuitOpen, cb.State())

	calls := 0
	err := cb.Execute(ctx, func(context.Context) error { calls++; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, CircuitClosed, cb.State())

	stats := cb.Stats()
	assert.Equal(t, int64(3), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.TotalRejected)
	assert.InDelta(t, 66.67, stats.FailureRate(), 0.01)
}

func TestCircuitBreaker_CancellationIsNotFailure(t *testing.T) {
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Minute})
	err := cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, CircuitClosed, cb.State())
}

type flakyBroker struct {
	err   error
	calls int
}

func (f *flakyBroker) SubmitOrder(context.Context, *models.Order) (string, error) {
	f.calls++
	return "", f.err
}

func (f *flakyBroker) ModifyOrder(context.Context, string, decimal.Decimal) (string, error) {
	f.calls++
	return "", f.err
}

func (f *flakyBroker) CancelOrder(context.Context, string) error {
	f.calls++
	return f.err
}

func TestGuardedBroker(t *testing.T) {
	ctx := context.Background()
	inner := &flakyBroker{err: errors.NewBrokerError(broker.CodeUpstream, "down", nil)}
	g := NewGuardedBroker(inner, CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Hour})

	_, err := g.SubmitOrder(ctx, &models.Order{})
	var be *errors.BrokerError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, broker.CodeUpstream, be.Code)

	err = g.CancelOrder(ctx, "x")
	require.True(t, errors.As(err, &be))
	assert.Equal(t, broker.CodeCircuitOpen, be.Code)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, 1, inner.calls)
}

func TestGuardedBroker_RejectionsDoNotTrip(t *testing.T) {
	ctx := context.Background()
	inner := &flakyBroker{err: errors.NewBrokerError(broker.CodeNotFound, "missing", nil)}
	g := NewGuardedBroker(inner, CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Hour})

	for i := 0; i < 3; i++ {
		_, err := g.ModifyOrder(ctx, "x", decimal.NewFromInt(1))
		require.Error(t, err)
	}
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, CircuitClosed, g.Stats().State)
}

func TestGuardedBroker_PassesThrough(t *testing.T) {
	paper := broker.NewPaperBroker()
	g := NewGuardedBroker(paper, DefaultCircuitBreakerConfig())

	id, err := g.SubmitOrder(context.Background(), &models.Order{
		Role: models.RoleEntry, Symbol: "X", Quantity: 1, Price: decimal.NewFromInt(1),
		Action: models.ActionBuy, Category: models.OrderLimit,
	})
	require.NoError(t, err)
	_, ok := paper.Order(id)
	assert.True(t, ok)
}
