package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-journal/internal/errors"
	"trade-journal/internal/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rule(name models.RuleName, value string, priority int, level models.RuleLevel) models.Rule {
	return models.Rule{ID: string(name), Name: name, Value: d(value), Priority: priority, Level: level, Active: true}
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		entry, stop string
		qty         int64
		want        string
	}{
		{"100", "90", 10, "100"},
		{"90", "100", 10, "100"},
		{"10.5", "10.25", 4, "1"},
	}
	for _, tt := range tests {
		got, err := Calculate(d(tt.entry), d(tt.stop), tt.qty)
		require.NoError(t, err)
		assert.True(t, d(tt.want).Equal(got), "%s/%s x%d: got %s", tt.entry, tt.stop, tt.qty, got)
	}

	_, err := Calculate(d("1"), d("2"), 0)
	var validationErr *errors.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestCheck_RiskPerTradeViolation(t *testing.T) {
	// 5% of 1000 caps risk at 50; entry 100, stop 90, qty 10 risks 100.
	tradeRisk, err := Calculate(d("100"), d("90"), 10)
	require.NoError(t, err)

	err = Check([]models.Rule{rule(models.RiskPerTrade, "5", 1, models.LevelError)}, Exposure{
		TradeRisk:      tradeRisk,
		AccountCapital: d("1000"),
	})

	var violation *errors.RuleViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "risk_per_trade", violation.Rule)
	assert.Equal(t, "50", violation.Limit)
	assert.Equal(t, "100", violation.Actual)
}

func TestCheck_PriorityOrder(t *testing.T) {
	rules := []models.Rule{
		rule(models.RiskPerTrade, "1", 5, models.LevelError),
		rule(models.RiskPerMonth, "2", 1, models.LevelError),
	}
	err := Check(rules, Exposure{
		TradeRisk:         d("100"),
		AccountCapital:    d("1000"),
		MonthStartCapital: d("1000"),
	})

	var violation *errors.RuleViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "risk_per_month", violation.Rule)
}

func TestCheck_EveryLevelBlocks(t *testing.T) {
	for _, level := range []models.RuleLevel{models.LevelAdvice, models.LevelWarning, models.LevelError} {
		t.Run(string(level), func(t *testing.T) {
			err := Check([]models.Rule{rule(models.RiskPerTrade, "1", 1, level)}, Exposure{
				TradeRisk:      d("50"),
				AccountCapital: d("1000"),
			})
			var violation *errors.RuleViolationError
			require.True(t, errors.As(err, &violation), "got %v", err)
			assert.Equal(t, string(level), violation.Level)
			assert.Equal(t, "10", violation.Limit)
		})
	}
}

func TestCheck_WithinLimitPasses(t *testing.T) {
	rules := []models.Rule{
		rule(models.RiskPerTrade, "5", 1, models.LevelWarning),
		rule(models.RiskPerMonth, "10", 2, models.LevelError),
	}
	err := Check(rules, Exposure{
		TradeRisk:         d("50"),
		AccountCapital:    d("1000"),
		MonthStartCapital: d("1000"),
	})
	assert.NoError(t, err)
}

func TestCheck_InactiveRulesIgnored(t *testing.T) {
	r := rule(models.RiskPerTrade, "1", 1, models.LevelError)
	r.Active = false
	err := Check([]models.Rule{r}, Exposure{TradeRisk: d("100"), AccountCapital: d("1000")})
	assert.NoError(t, err)
}

func TestCheck_RiskPerMonthCountsOpenedRisk(t *testing.T) {
	r := rule(models.RiskPerMonth, "10", 1, models.LevelError)
	e := Exposure{TradeRisk: d("40"), AccountCapital: d("2000"), MonthStartCapital: d("1000"), MonthRisk: d("50")}

	err := Check([]models.Rule{r}, e)
	require.NoError(t, err)

	e.MonthRisk = d("70")
	err = Check([]models.Rule{r}, e)
	var violation *errors.RuleViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "110", violation.Actual)
}

func TestMaxQuantity(t *testing.T) {
	rules := []models.Rule{rule(models.RiskPerTrade, "5", 1, models.LevelError)}
	e := Exposure{AccountCapital: d("1000"), MonthStartCapital: d("1000")}

	qty, err := MaxQuantity(d("1000"), d("100"), d("90"), rules, e)
	require.NoError(t, err)
	assert.Equal(t, int64(5), qty)

	qty, err = MaxQuantity(d("250"), d("100"), d("99"), rules, e)
	require.NoError(t, err)
	assert.Equal(t, int64(2), qty)

	qty, err = MaxQuantity(d("0"), d("100"), d("99"), rules, e)
	require.NoError(t, err)
	assert.Zero(t, qty)

	// warning-level rules cap the size as well
	warn := []models.Rule{rule(models.RiskPerTrade, "1", 1, models.LevelWarning)}
	qty, err = MaxQuantity(d("1000"), d("100"), d("90"), warn, e)
	require.NoError(t, err)
	assert.Equal(t, int64(1), qty)

	_, err = MaxQuantity(d("100"), d("100"), d("100"), rules, e)
	assert.Error(t, err)
}
