package workload

import (
	"context"
	"fmt"

	"github.com/acdtunes/fleetd/internal/adapters/supervisor"
	"github.com/acdtunes/fleetd/internal/domain/container"
	"github.com/acdtunes/fleetd/internal/domain/shared"
)

// Factory implements controlsocket.WorkFactory: it dispatches a container's
// type tag and opaque config to the Handlers method that composes its work,
// wrapped as a supervisor.Work closure. No mediator/reflection: one switch
// arm per container type, per spec.md §4.I.
type Factory struct {
	Handlers *Handlers
}

func NewFactory(h *Handlers) *Factory {
	return &Factory{Handlers: h}
}

// Build implements controlsocket.WorkFactory.
func (f *Factory) Build(containerType string, playerIDInt int, config map[string]interface{}) (supervisor.Work, container.ContainerType, error) {
	ct := container.ContainerType(containerType)
	playerID, err := shared.NewPlayerID(playerIDInt)
	if err != nil {
		return nil, ct, err
	}

	switch ct {
	case container.ContainerTypeNavigateShip:
		shipSymbol, err := requireString(config, "ship_symbol")
		if err != nil {
			return nil, ct, err
		}
		destination, err := requireString(config, "destination")
		if err != nil {
			return nil, ct, err
		}
		return func(ctx context.Context) error {
			_, err := f.Handlers.Navigate(ctx, playerID, shipSymbol, destination)
			return err
		}, ct, nil

	case container.ContainerTypeDockShip:
		shipSymbol, err := requireString(config, "ship_symbol")
		if err != nil {
			return nil, ct, err
		}
		return func(ctx context.Context) error {
			return f.Handlers.Dock(ctx, playerID, shipSymbol)
		}, ct, nil

	case container.ContainerTypeOrbitShip:
		shipSymbol, err := requireString(config, "ship_symbol")
		if err != nil {
			return nil, ct, err
		}
		return func(ctx context.Context) error {
			return f.Handlers.Orbit(ctx, playerID, shipSymbol)
		}, ct, nil

	case container.ContainerTypeRefuelShip:
		shipSymbol, err := requireString(config, "ship_symbol")
		if err != nil {
			return nil, ct, err
		}
		units := optionalIntPtr(config, "units")
		return func(ctx context.Context) error {
			_, err := f.Handlers.Refuel(ctx, playerID, shipSymbol, units)
			return err
		}, ct, nil

	case container.ContainerTypePurchaseShip:
		purchasingShip, err := requireString(config, "purchasing_ship")
		if err != nil {
			return nil, ct, err
		}
		shipType, err := requireString(config, "ship_type")
		if err != nil {
			return nil, ct, err
		}
		shipyard, _ := optionalString(config, "shipyard")
		return func(ctx context.Context) error {
			_, err := f.Handlers.PurchaseShip(ctx, playerID, purchasingShip, shipType, shipyard)
			return err
		}, ct, nil

	case container.ContainerTypeBatchPurchaseShips:
		purchasingShip, err := requireString(config, "purchasing_ship")
		if err != nil {
			return nil, ct, err
		}
		shipType, err := requireString(config, "ship_type")
		if err != nil {
			return nil, ct, err
		}
		shipyard, _ := optionalString(config, "shipyard")
		quantity, err := requireInt(config, "quantity")
		if err != nil {
			return nil, ct, err
		}
		maxBudget := optionalInt(config, "max_budget", 0)
		return func(ctx context.Context) error {
			result := f.Handlers.BatchPurchaseShips(ctx, playerID, purchasingShip, shipType, shipyard, quantity, maxBudget)
			if len(result.Errors) > 0 && result.Purchased == 0 {
				return fmt.Errorf("batch purchase ships: %v", result.Errors)
			}
			return nil
		}, ct, nil

	case container.ContainerTypeBatchContract:
		shipSymbol, err := requireString(config, "ship_symbol")
		if err != nil {
			return nil, ct, err
		}
		iterations, err := requireInt(config, "iterations")
		if err != nil {
			return nil, ct, err
		}
		return func(ctx context.Context) error {
			result := f.Handlers.BatchContract(ctx, playerID, shipSymbol, iterations)
			if len(result.Errors) > 0 && result.ContractsCompleted == 0 {
				return fmt.Errorf("batch contract: %v", result.Errors)
			}
			return nil
		}, ct, nil

	case container.ContainerTypeScoutMarkets:
		systemSymbol, err := requireString(config, "system_symbol")
		if err != nil {
			return nil, ct, err
		}
		ships, err := requireStringSlice(config, "ships")
		if err != nil {
			return nil, ct, err
		}
		markets, err := requireStringSlice(config, "markets")
		if err != nil {
			return nil, ct, err
		}
		iterations := optionalInt(config, "iterations", 1)
		returnToStart := optionalBool(config, "return_to_start", false)
		return func(ctx context.Context) error {
			_, err := f.Handlers.ScoutMarkets(ctx, playerID, systemSymbol, ships, markets, iterations, returnToStart)
			return err
		}, ct, nil

	case container.ContainerTypeMarketLiquidityExperiment:
		systemSymbol, err := requireString(config, "system_symbol")
		if err != nil {
			return nil, ct, err
		}
		ships, err := requireStringSlice(config, "ships")
		if err != nil {
			return nil, ct, err
		}
		iterationsPerBatch := optionalInt(config, "iterations_per_batch", 0)
		return func(ctx context.Context) error {
			_, err := f.Handlers.MarketLiquidityExperiment(ctx, playerID, systemSymbol, ships, iterationsPerBatch)
			return err
		}, ct, nil

	default:
		return nil, ct, fmt.Errorf("workload: unknown container type %q", containerType)
	}
}

func requireString(config map[string]interface{}, key string) (string, error) {
	v, ok := optionalString(config, key)
	if !ok || v == "" {
		return "", fmt.Errorf("workload: config.%s is required", key)
	}
	return v, nil
}

func optionalString(config map[string]interface{}, key string) (string, bool) {
	raw, ok := config[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

func requireInt(config map[string]interface{}, key string) (int, error) {
	raw, ok := config[key]
	if !ok {
		return 0, fmt.Errorf("workload: config.%s is required", key)
	}
	return toInt(raw), nil
}

func optionalInt(config map[string]interface{}, key string, def int) int {
	raw, ok := config[key]
	if !ok {
		return def
	}
	return toInt(raw)
}

func optionalIntPtr(config map[string]interface{}, key string) *int {
	raw, ok := config[key]
	if !ok {
		return nil
	}
	v := toInt(raw)
	return &v
}

func optionalBool(config map[string]interface{}, key string, def bool) bool {
	raw, ok := config[key]
	if !ok {
		return def
	}
	b, ok := raw.(bool)
	if !ok {
		return def
	}
	return b
}

// toInt handles both the int values set by in-process callers (tests) and
// the float64 values json.Unmarshal produces for numeric fields decoded into
// map[string]interface{}.
func toInt(raw interface{}) int {
	switch v := raw.(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func requireStringSlice(config map[string]interface{}, key string) ([]string, error) {
	raw, ok := config[key]
	if !ok {
		return nil, fmt.Errorf("workload: config.%s is required", key)
	}
	items, ok := raw.([]interface{})
	if !ok {
		if ss, ok := raw.([]string); ok {
			return ss, nil
		}
		return nil, fmt.Errorf("workload: config.%s must be a list of strings", key)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("workload: config.%s must be a list of strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}
