// Package risk sizes trade risk and checks it against account rules.
package risk

import (
	"sort"

	"github.com/shopspring/decimal"

	"trade-journal/internal/capital"
	"trade-journal/internal/errors"
	"trade-journal/internal/models"
)

// Calculate returns the monetary risk |entry - stop| * quantity.
func Calculate(entry, stop decimal.Decimal, quantity int64) (decimal.Decimal, error) {
	if quantity <= 0 {
		return decimal.Zero, errors.NewValidationError("quantity", quantity, "must be positive")
	}
	spread, err := capital.Sub(entry, stop)
	if err != nil {
		return decimal.Zero, err
	}
	return capital.Mul(spread.Abs(), decimal.NewFromInt(quantity))
}

// ForTrade returns the risk of a trade's entry against its safety stop.
func ForTrade(t *models.Trade) (decimal.Decimal, error) {
	return Calculate(t.Entry.Price, t.SafetyStop.Price, t.Entry.Quantity)
}

// Exposure is the state a candidate trade is checked against.
type Exposure struct {
	TradeRisk         decimal.Decimal
	AccountCapital    decimal.Decimal
	MonthStartCapital decimal.Decimal
	MonthRisk         decimal.Decimal // risk already opened this month
}

// Limit returns the maximum risk a rule allows and the risk it compares.
func Limit(rule models.Rule, e Exposure) (limit, actual decimal.Decimal, err error) {
	switch rule.Name {
	case models.RiskPerTrade:
		limit, err = capital.Percent(e.AccountCapital, rule.Value)
		actual = e.TradeRisk
	case models.RiskPerMonth:
		limit, err = capital.Percent(e.MonthStartCapital, rule.Value)
		if err == nil {
			actual, err = capital.Add(e.MonthRisk, e.TradeRisk)
		}
	default:
		err = errors.NewValidationError("rule", rule.Name, "unknown rule")
	}
	return limit, actual, err
}

// Check evaluates active rules in ascending priority and fails with a
// RuleViolationError on the first one the exposure exceeds. The rule's level
// is carried on the error.
func Check(rules []models.Rule, e Exposure) error {
	active := make([]models.Rule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Priority < active[j].Priority })

	for _, rule := range active {
		limit, actual, err := Limit(rule, e)
		if err != nil {
			return err
		}
		if actual.GreaterThan(limit) {
			return errors.NewRuleViolationError(string(rule.Name), string(rule.Level), limit.String(), actual.String())
		}
	}
	return nil
}

// MaxQuantity is the largest quantity affordable with available capital that
// also passes every active rule.
func MaxQuantity(available, entry, stop decimal.Decimal, rules []models.Rule, e Exposure) (int64, error) {
	if !entry.IsPositive() {
		return 0, errors.NewValidationError("entry", entry.String(), "must be positive")
	}
	if !available.IsPositive() {
		return 0, nil
	}
	perUnit := entry.Sub(stop).Abs()
	if perUnit.IsZero() {
		return 0, errors.NewValidationError("stop", stop.String(), "must differ from entry")
	}

	max := available.Div(entry).Floor()
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		probe := e
		probe.TradeRisk = decimal.Zero
		limit, used, err := Limit(rule, probe)
		if err != nil {
			return 0, err
		}
		room := limit.Sub(used)
		if !room.IsPositive() {
			return 0, nil
		}
		if q := room.Div(perUnit).Floor(); q.LessThan(max) {
			max = q
		}
	}
	return max.IntPart(), nil
}
