package models

import (
	"time"

	"github.com/shopspring/decimal"

	"trade-journal/internal/errors"
)

// RuleName identifies what a risk rule limits.
type RuleName string

const (
	// RiskPerTrade caps the risk of a single trade as a percent of account capital.
	RiskPerTrade RuleName = "risk_per_trade"
	// RiskPerMonth caps the risk opened this month as a percent of capital at the start of the month.
	RiskPerMonth RuleName = "risk_per_month"
)

// RuleLevel is the severity a rule violation is logged with.
type RuleLevel string

const (
	LevelAdvice  RuleLevel = "advice"
	LevelWarning RuleLevel = "warning"
	LevelError   RuleLevel = "error"
)

// Rule is an account-scoped risk constraint.
type Rule struct {
	ID          string
	AccountID   string
	Name        RuleName
	Value       decimal.Decimal // percent
	Description string
	Priority    int
	Level       RuleLevel
	Active      bool
	CreatedAt   time.Time
}

// Validate checks the rule definition.
func (r *Rule) Validate() error {
	switch r.Name {
	case RiskPerTrade, RiskPerMonth:
	default:
		return errors.NewValidationError("name", r.Name, "unknown rule")
	}
	switch r.Level {
	case LevelAdvice, LevelWarning, LevelError:
	default:
		return errors.NewValidationError("level", r.Level, "must be advice, warning or error")
	}
	if r.Value.IsNegative() || r.Value.GreaterThan(decimal.NewFromInt(100)) {
		return errors.NewValidationError("value", r.Value.String(), "must be a percent between 0 and 100")
	}
	return nil
}
