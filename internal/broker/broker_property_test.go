package broker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"trade-journal/internal/models"
)

// Property: every accepted paper order gets a unique id, and modifying an
// order always yields a fresh id while retiring the old one.
func TestProperty_PaperBrokerIDs(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("submitted and modified ids never repeat", prop.ForAll(
		func(count int, qty int64, cents int64) bool {
			ctx := context.Background()
			p := NewPaperBroker()
			seen := make(map[string]bool)

			for i := 0; i < count; i++ {
				id, err := p.SubmitOrder(ctx, &models.Order{
					Role:     models.RoleEntry,
					Symbol:   "INFY",
					Quantity: qty,
					Price:    decimal.New(cents, -2),
					Action:   models.ActionBuy,
					Category: models.OrderLimit,
				})
				if err != nil || seen[id] || !strings.HasPrefix(id, "PAPER_") {
					return false
				}
				seen[id] = true

				newID, err := p.ModifyOrder(ctx, id, decimal.New(cents+1, -2))
				if err != nil || seen[newID] {
					return false
				}
				seen[newID] = true

				old, _ := p.Order(id)
				if old.Status != PaperReplaced || old.ReplacedBy != newID {
					return false
				}
			}
			return len(p.Orders()) == 2*count
		},
		gen.IntRange(1, 20),
		gen.Int64Range(1, 10_000),
		gen.Int64Range(1, 1_000_000),
	))

	properties.TestingRun(t)
}
