package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"trade-journal/internal/models"
)

// Property: stripping separators and the currency code gives back the amount
// rounded to the quoted places.
func TestProperty_FormatAmountPreservesValue(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("FormatAmount round trips", prop.ForAll(
		func(units int64, exp int32, currencyIdx int) bool {
			amount := decimal.New(units, -exp)
			currency := models.Currencies[currencyIdx]
			places := int32(2)
			if currency == models.BTC {
				places = 8
			}

			formatted := FormatAmount(amount, currency)
			if !strings.HasSuffix(formatted, " "+string(currency)) {
				return false
			}
			digits := strings.TrimSuffix(formatted, " "+string(currency))
			_, dec, ok := strings.Cut(digits, ".")
			if !ok || int32(len(dec)) != places {
				return false
			}

			parsed, err := decimal.NewFromString(strings.ReplaceAll(digits, ",", ""))
			if err != nil {
				return false
			}
			return parsed.Equal(amount.Round(places))
		},
		gen.Int64Range(-1e15, 1e15),
		gen.Int32Range(0, 10),
		gen.IntRange(0, len(models.Currencies)-1),
	))

	properties.Property("groups have three digits", prop.ForAll(
		func(units int64) bool {
			formatted := FormatAmount(decimal.NewFromInt(units), "")
			intPart, _, _ := strings.Cut(strings.TrimPrefix(formatted, "-"), ".")
			groups := strings.Split(intPart, ",")
			for i, g := range groups {
				if i > 0 && len(g) != 3 {
					return false
				}
				if len(g) == 0 || len(g) > 3 {
					return false
				}
			}
			return true
		},
		gen.Int64Range(-1e15, 1e15),
	))

	properties.TestingRun(t)
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   string
		currency models.Currency
		want     string
	}{
		{"0", models.USD, "0.00 USD"},
		{"1048", models.USD, "1,048.00 USD"},
		{"-15", models.EUR, "-15.00 EUR"},
		{"1234567.891", models.USD, "1,234,567.89 USD"},
		{"0.00000001", models.BTC, "0.00000001 BTC"},
		{"-0.001", models.USD, "0.00 USD"},
		{"999", "", "999.00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(decimal.RequireFromString(tt.amount), tt.currency))
		})
	}
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", FormatTime(nil))
	zero := time.Time{}
	assert.Equal(t, "-", FormatTime(&zero))
}
