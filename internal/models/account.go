package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account owns transactions, trades and rules by reference.
type Account struct {
	ID                 string
	Name               string
	Description        string
	Environment        Environment
	TaxesPercentage    decimal.Decimal
	EarningsPercentage decimal.Decimal
	CreatedAt          time.Time
}

// AccountBalance summarizes an account in one currency.
type AccountBalance struct {
	AccountID      string
	Currency       Currency
	TotalBalance   decimal.Decimal
	TotalAvailable decimal.Decimal
	TotalInTrade   decimal.Decimal
	Taxed          decimal.Decimal
}
