package lifecycle

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"trade-journal/internal/errors"
	"trade-journal/internal/models"
	"trade-journal/internal/store"
)

// NewTradingVehicle is the input to CreateTradingVehicle.
type NewTradingVehicle struct {
	Symbol   string
	ISIN     string
	Category models.VehicleCategory
	Broker   string
}

// CreateTradingVehicle stores a new trading vehicle. Symbol and ISIN are
// upper-cased; a symbol may exist once per broker.
func (e *Engine) CreateTradingVehicle(ctx context.Context, in NewTradingVehicle) (*models.TradingVehicle, error) {
	category, err := models.ParseVehicleCategory(string(in.Category))
	if err != nil {
		return nil, err
	}
	v := &models.TradingVehicle{
		ID:        uuid.NewString(),
		Symbol:    strings.ToUpper(strings.TrimSpace(in.Symbol)),
		ISIN:      strings.ToUpper(strings.TrimSpace(in.ISIN)),
		Category:  category,
		Broker:    strings.ToLower(strings.TrimSpace(in.Broker)),
		CreatedAt: e.ledger.Now(),
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}

	err = e.mutate(ctx, "create_trading_vehicle", store.SharedScope, func(w store.Writer, _ *effects) error {
		existing, err := w.ReadTradingVehicles(ctx)
		if err != nil {
			return err
		}
		for _, other := range existing {
			if other.Symbol == v.Symbol && other.Broker == v.Broker {
				return errors.NewValidationError("symbol", v.Symbol, "already exists at broker "+v.Broker)
			}
		}
		return w.CreateTradingVehicle(ctx, v)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info().Str("vehicle_id", v.ID).Str("symbol", v.Symbol).Str("broker", v.Broker).Msg("Trading vehicle created")
	return v, nil
}

// TradingVehicles lists vehicles whose symbol or ISIN contains term, or
// every vehicle when term is empty.
func (e *Engine) TradingVehicles(ctx context.Context, term string) ([]models.TradingVehicle, error) {
	all, err := e.store.ReadTradingVehicles(ctx)
	if err != nil || strings.TrimSpace(term) == "" {
		return all, err
	}
	var out []models.TradingVehicle
	for i := range all {
		if all[i].Matches(term) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// ResolveTradingVehicle finds a vehicle by id, or by symbol when exactly one
// vehicle carries it.
func (e *Engine) ResolveTradingVehicle(ctx context.Context, ref string) (*models.TradingVehicle, error) {
	v, err := e.store.ReadTradingVehicle(ctx, ref)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	all, err := e.store.ReadTradingVehicles(ctx)
	if err != nil {
		return nil, err
	}
	symbol := strings.ToUpper(strings.TrimSpace(ref))
	var found []models.TradingVehicle
	for _, v := range all {
		if v.Symbol == symbol {
			found = append(found, v)
		}
	}
	switch len(found) {
	case 0:
		return nil, errors.Wrapf(store.ErrNotFound, "trading vehicle %s", ref)
	case 1:
		return &found[0], nil
	default:
		return nil, errors.NewValidationError("trading_vehicle", ref, "symbol is listed at more than one broker, use the id")
	}
}
