// Package broker provides broker integration implementations.
package broker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"trade-journal/internal/errors"
	"trade-journal/internal/models"
)

// PaperOrderStatus is the simulated state of a paper order.
type PaperOrderStatus string

const (
	PaperOpen      PaperOrderStatus = "OPEN"
	PaperReplaced  PaperOrderStatus = "REPLACED"
	PaperCancelled PaperOrderStatus = "CANCELLED"
)

// PaperOrder is an order held by the paper broker.
type PaperOrder struct {
	ID         string
	Role       models.OrderRole
	Symbol     string
	Action     models.OrderAction
	Category   models.OrderCategory
	Quantity   int64
	Price      decimal.Decimal
	Status     PaperOrderStatus
	ReplacedBy string
	PlacedAt   time.Time

	seq int
}

// PaperBroker implements Broker for paper trading simulation.
type PaperBroker struct {
	orders       map[string]*PaperOrder
	orderCounter int
	now          func() time.Time
	mu           sync.RWMutex
}

// NewPaperBroker creates a new paper trading broker.
func NewPaperBroker() *PaperBroker {
	return &PaperBroker{
		orders: make(map[string]*PaperOrder),
		now:    time.Now,
	}
}

func (p *PaperBroker) nextID() string {
	for {
		p.orderCounter++
		id := fmt.Sprintf("PAPER_%d_%d", p.now().Unix(), p.orderCounter)
		if _, taken := p.orders[id]; !taken {
			return id
		}
	}
}

// SubmitOrder simulates order placement.
func (p *PaperBroker) SubmitOrder(ctx context.Context, order *models.Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if order.Quantity <= 0 || !order.Price.IsPositive() {
		return "", errors.NewBrokerError(CodeInvalidParams, "quantity and price must be positive", nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID()
	p.orders[id] = &PaperOrder{
		ID:       id,
		Role:     order.Role,
		Symbol:   order.Symbol,
		Action:   order.Action,
		Category: order.Category,
		Quantity: order.Quantity,
		Price:    order.Price,
		Status:   PaperOpen,
		PlacedAt: p.now(),
		seq:      p.orderCounter,
	}
	return id, nil
}

// ModifyOrder replaces an open order with a repriced one under a new id.
func (p *PaperBroker) ModifyOrder(ctx context.Context, brokerOrderID string, price decimal.Decimal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !price.IsPositive() {
		return "", errors.NewBrokerError(CodeInvalidParams, "price must be positive", nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	old, ok := p.orders[brokerOrderID]
	if !ok {
		return "", errors.NewBrokerError(CodeNotFound, "order "+brokerOrderID+" not found", nil)
	}
	if old.Status != PaperOpen {
		return "", errors.NewBrokerError(CodeInvalidState, "order "+brokerOrderID+" is "+string(old.Status), nil)
	}

	replacement := *old
	replacement.ID = p.nextID()
	replacement.Price = price
	replacement.PlacedAt = p.now()
	replacement.seq = p.orderCounter
	p.orders[replacement.ID] = &replacement

	old.Status = PaperReplaced
	old.ReplacedBy = replacement.ID
	return replacement.ID, nil
}

// CancelOrder cancels an open order.
func (p *PaperBroker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[brokerOrderID]
	if !ok {
		return errors.NewBrokerError(CodeNotFound, "order "+brokerOrderID+" not found", nil)
	}
	if o.Status != PaperOpen {
		return errors.NewBrokerError(CodeInvalidState, "order "+brokerOrderID+" is "+string(o.Status), nil)
	}
	o.Status = PaperCancelled
	return nil
}

// Order returns a copy of a paper order.
func (p *PaperBroker) Order(brokerOrderID string) (PaperOrder, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	o, ok := p.orders[brokerOrderID]
	if !ok {
		return PaperOrder{}, false
	}
	return *o, true
}

// Orders returns every paper order, oldest first.
func (p *PaperBroker) Orders() []PaperOrder {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]PaperOrder, 0, len(p.orders))
	for _, o := range p.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Adopt registers an order submitted in an earlier session as open under its
// existing broker id. Orders without a broker id or already known are skipped.
func (p *PaperBroker) Adopt(order *models.Order) {
	if order.BrokerOrderID == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.orders[order.BrokerOrderID]; ok {
		return
	}
	p.orderCounter++
	placedAt := order.CreatedAt
	if order.SubmittedAt != nil {
		placedAt = *order.SubmittedAt
	}
	p.orders[order.BrokerOrderID] = &PaperOrder{
		ID:       order.BrokerOrderID,
		Role:     order.Role,
		Symbol:   order.Symbol,
		Action:   order.Action,
		Category: order.Category,
		Quantity: order.Quantity,
		Price:    order.Price,
		Status:   PaperOpen,
		PlacedAt: placedAt,
		seq:      p.orderCounter,
	}
}
