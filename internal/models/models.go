// Package models provides domain models for the trade journal.
package models

import (
	"strings"

	"trade-journal/internal/errors"
)

// Currency represents the currency a ledger entry or trade is denominated in.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	BTC Currency = "BTC"
)

// Currencies lists every supported currency.
var Currencies = []Currency{USD, EUR, BTC}

// ParseCurrency parses a currency code, case-insensitively.
func ParseCurrency(s string) (Currency, error) {
	switch c := Currency(strings.ToUpper(strings.TrimSpace(s))); c {
	case USD, EUR, BTC:
		return c, nil
	}
	return "", errors.NewValidationError("currency", s, "unsupported currency")
}

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	_, err := ParseCurrency(string(c))
	return err == nil
}

// Environment represents the trading environment of an account.
type Environment string

const (
	EnvironmentPaper Environment = "paper"
	EnvironmentLive  Environment = "live"
)

// ParseEnvironment parses an account environment.
func ParseEnvironment(s string) (Environment, error) {
	switch e := Environment(strings.ToLower(strings.TrimSpace(s))); e {
	case EnvironmentPaper, EnvironmentLive:
		return e, nil
	}
	return "", errors.NewValidationError("environment", s, "must be paper or live")
}

// Direction represents the side of a trade.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)
