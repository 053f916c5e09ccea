package cli

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trade-journal/internal/models"
)

// FormatAmount formats an amount with thousands separators and the number of
// places the currency is usually quoted in.
func FormatAmount(amount decimal.Decimal, currency models.Currency) string {
	places := int32(2)
	if currency == models.BTC {
		places = 8
	}

	str := amount.Abs().StringFixed(places)
	intPart, decPart, _ := strings.Cut(str, ".")

	result := groupThousands(intPart)
	if decPart != "" {
		result += "." + decPart
	}
	if amount.IsNegative() && !amount.Round(places).IsZero() {
		result = "-" + result
	}
	if currency != "" {
		result += " " + string(currency)
	}
	return result
}

// groupThousands inserts a comma every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPerformance formats a trade result with sign and color.
func (o *Output) FormatPerformance(amount decimal.Decimal, currency models.Currency) string {
	formatted := FormatAmount(amount, currency)
	switch amount.Sign() {
	case 1:
		return o.Green("+" + formatted)
	case -1:
		return o.Red(formatted)
	}
	return formatted
}

// FormatStatus colors a trade status.
func (o *Output) FormatStatus(status models.Status) string {
	switch status {
	case models.StatusClosed:
		return o.Green(string(status))
	case models.StatusCanceled:
		return o.DimText(string(status))
	case models.StatusSubmitted, models.StatusFilled, models.StatusPartiallyFilled:
		return o.Yellow(string(status))
	}
	return string(status)
}

// FormatTime formats a timestamp for tables. Nil and zero times print as "-".
func FormatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
