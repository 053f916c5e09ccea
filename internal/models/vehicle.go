package models

import (
	"strings"
	"time"

	"trade-journal/internal/errors"
)

// VehicleCategory classifies what a trading vehicle is.
type VehicleCategory string

const (
	VehicleCrypto VehicleCategory = "crypto"
	VehicleFiat   VehicleCategory = "fiat"
	VehicleStock  VehicleCategory = "stock"
)

// ParseVehicleCategory parses a vehicle category, case-insensitively.
func ParseVehicleCategory(s string) (VehicleCategory, error) {
	switch c := VehicleCategory(strings.ToLower(strings.TrimSpace(s))); c {
	case VehicleCrypto, VehicleFiat, VehicleStock:
		return c, nil
	}
	return "", errors.NewValidationError("category", s, "must be crypto, fiat or stock")
}

// TradingVehicle is an instrument trades are planned on. Vehicles are
// reference data shared by every account and never change once created.
type TradingVehicle struct {
	ID        string
	Symbol    string
	ISIN      string
	Category  VehicleCategory
	Broker    string
	CreatedAt time.Time
}

// Validate checks the vehicle definition.
func (v *TradingVehicle) Validate() error {
	if strings.TrimSpace(v.Symbol) == "" {
		return errors.NewValidationError("symbol", v.Symbol, "is required")
	}
	if _, err := ParseVehicleCategory(string(v.Category)); err != nil {
		return err
	}
	if strings.TrimSpace(v.Broker) == "" {
		return errors.NewValidationError("broker", v.Broker, "is required")
	}
	return nil
}

// Matches reports whether term is contained in the symbol or ISIN.
func (v *TradingVehicle) Matches(term string) bool {
	term = strings.ToUpper(strings.TrimSpace(term))
	return strings.Contains(strings.ToUpper(v.Symbol), term) || strings.Contains(strings.ToUpper(v.ISIN), term)
}
