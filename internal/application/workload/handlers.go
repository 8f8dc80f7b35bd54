// Package workload composes the daemon's primitives (persistence, remote
// client, routing engine, ship repository) into the operations a container
// runs. Each handler is a plain method on Handlers, composed directly from
// its dependencies rather than dispatched through a mediator/reflection
// pipeline, per spec.md §4.I's "each handler composes primitives" contract.
package workload

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/acdtunes/fleetd/internal/adapters/supervisor"
	"github.com/acdtunes/fleetd/internal/domain/contract"
	"github.com/acdtunes/fleetd/internal/domain/container"
	"github.com/acdtunes/fleetd/internal/domain/market"
	"github.com/acdtunes/fleetd/internal/domain/navigation"
	"github.com/acdtunes/fleetd/internal/domain/player"
	"github.com/acdtunes/fleetd/internal/domain/routing"
	"github.com/acdtunes/fleetd/internal/domain/shared"
	"github.com/acdtunes/fleetd/internal/domain/system"
	"github.com/acdtunes/fleetd/internal/domain/workqueue"
	"github.com/acdtunes/fleetd/internal/infrastructure/ports"
)

// navigationRefuelThreshold is the fuel-percentage floor below which Navigate
// tops off opportunistically at any fuel-capable waypoint it passes through,
// mirroring the "90% rule" spec.md §4.C.1 applies at route-planning time.
const navigationRefuelThreshold = 0.9

// preDepartureSafetyMargin mirrors the routing engine's own per-arc fuel
// safety margin (fuelSafetyMargin in internal/adapters/routing/fuel_search.go)
// for the direct-hop feasibility check Navigate runs when planning fails.
const preDepartureSafetyMargin = 4

// navigationFuelSafetyMargin is the fractional safety margin Navigate
// applies when deciding whether to top off before departing a given leg.
const navigationFuelSafetyMargin = 0.1

// Handlers holds every primitive a workload operation composes from.
type Handlers struct {
	ShipRepo          navigation.ShipRepository
	PlayerRepo        player.PlayerRepository
	ContractRepo      contract.ContractRepository
	MarketRepo        market.MarketRepository
	MarketHistoryRepo market.MarketPriceHistoryRepository
	WaypointRepo      system.WaypointRepository
	WaypointProvider  system.IWaypointProvider
	GraphProvider     system.ISystemGraphProvider
	RoutingClient     routing.RoutingClient
	APIClient         ports.APIClient
	WorkQueue         workqueue.Repository
	Supervisor        *supervisor.Supervisor
	Clock             shared.Clock
	Logger            zerolog.Logger
}

// token resolves the player's bearer token.
func (h *Handlers) token(ctx context.Context, playerID shared.PlayerID) (string, error) {
	p, err := h.PlayerRepo.FindByID(ctx, playerID)
	if err != nil {
		return "", fmt.Errorf("workload: looking up player %d: %w", playerID.Value(), err)
	}
	if p == nil {
		return "", fmt.Errorf("workload: player %d not found", playerID.Value())
	}
	return p.Token, nil
}

// Navigate moves a ship to destination by planning a fuel-aware route
// (RoutingClient.PlanRoute, §4.C.1) and executing it step by step,
// re-syncing the ship from the remote around every side-effecting call
// (§4.D). Idempotent: if the ship is already there, this is a no-op; if
// the ship is mid-transit when called, it waits out the existing move
// before planning anywhere new.
func (h *Handlers) Navigate(ctx context.Context, playerID shared.PlayerID, shipSymbol, destination string) (*navigation.Result, error) {
	ship, err := h.ShipRepo.FindBySymbol(ctx, shipSymbol, playerID)
	if err != nil {
		return nil, fmt.Errorf("workload: navigate: finding ship %s: %w", shipSymbol, err)
	}

	if ship.IsInTransit() {
		ship, err = h.waitForArrival(ctx, ship, playerID)
		if err != nil {
			return nil, fmt.Errorf("workload: navigate: waiting for ship %s's current transit: %w", shipSymbol, err)
		}
	}

	dest, err := h.WaypointProvider.GetWaypoint(ctx, destination, shared.ExtractSystemSymbol(destination), playerID.Value())
	if err != nil {
		return nil, fmt.Errorf("workload: navigate: resolving destination %s: %w", destination, err)
	}

	if ship.IsAtLocation(dest) {
		return &navigation.Result{}, nil
	}

	waypoints, err := h.enrichedWaypoints(ctx, ship.CurrentLocation().SystemSymbol, playerID.Value())
	if err != nil {
		return nil, fmt.Errorf("workload: navigate: %w", err)
	}

	routeResp, err := h.RoutingClient.PlanRoute(ctx, &routing.RouteRequest{
		SystemSymbol:  ship.CurrentLocation().SystemSymbol,
		StartWaypoint: ship.CurrentLocation().Symbol,
		GoalWaypoint:  dest.Symbol,
		CurrentFuel:   ship.Fuel().Current,
		FuelCapacity:  ship.FuelCapacity(),
		EngineSpeed:   ship.EngineSpeed(),
		Waypoints:     waypointDataSlice(waypoints),
	})
	if err != nil {
		fuelSvc := navigation.NewShipFuelService()
		origin := ship.CurrentLocation()
		directFeasible := ship.FuelCapacity() == 0 || fuelSvc.CanShipNavigateTo(ship.Fuel().Current, origin, dest)
		directMode := fuelSvc.SelectOptimalFlightMode(ship.Fuel().Current, origin.DistanceTo(dest), preDepartureSafetyMargin)
		return nil, fmt.Errorf("workload: navigate: planning route from %s to %s (direct-hop feasible=%v, best direct mode=%s): %w",
			origin.Symbol, dest.Symbol, directFeasible, directMode.Name(), err)
	}
	if len(routeResp.Steps) == 0 {
		return nil, fmt.Errorf("workload: navigate: routing engine returned an empty plan from %s to %s (waypoints=%d fuel=%d/%d)",
			ship.CurrentLocation().Symbol, dest.Symbol, len(waypoints), ship.Fuel().Current, ship.FuelCapacity())
	}

	fuelSvc := navigation.NewShipFuelService()
	var result *navigation.Result

	for i, step := range routeResp.Steps {
		switch step.Action {
		case routing.RouteActionRefuel:
			ship, err = h.refuelInPlace(ctx, ship, playerID)
			if err != nil {
				return nil, fmt.Errorf("workload: navigate: refueling at %s: %w", ship.CurrentLocation().Symbol, err)
			}

		case routing.RouteActionTravel:
			to, ok := waypoints[step.Waypoint]
			if !ok {
				return nil, fmt.Errorf("workload: navigate: waypoint %s missing from loaded system graph", step.Waypoint)
			}

			if _, err := ship.EnsureInOrbit(); err != nil {
				return nil, fmt.Errorf("workload: navigate: orbiting before departure: %w", err)
			}
			if err := h.ShipRepo.Orbit(ctx, ship, playerID); err != nil {
				return nil, fmt.Errorf("workload: navigate: orbiting: %w", err)
			}

			// Pre-departure safety net: if fuel is too tight for this leg
			// plus a margin and we're sitting at a fuel-capable waypoint,
			// top off before committing to departure.
			if here := waypoints[ship.CurrentLocation().Symbol]; here != nil && here.HasFuel &&
				fuelSvc.ShouldRefuelForJourney(ship.Fuel(), here, to, navigationFuelSafetyMargin) {
				if ship, err = h.refuelInPlace(ctx, ship, playerID); err != nil {
					return nil, fmt.Errorf("workload: navigate: pre-departure refuel at %s: %w", ship.CurrentLocation().Symbol, err)
				}
			}

			if err := h.ShipRepo.SetFlightMode(ctx, ship, playerID, step.Mode); err != nil {
				return nil, fmt.Errorf("workload: navigate: setting flight mode %s: %w", step.Mode, err)
			}

			navResult, err := h.ShipRepo.Navigate(ctx, ship, to, playerID)
			if err != nil {
				return nil, fmt.Errorf("workload: navigate: traveling to %s: %w", step.Waypoint, err)
			}
			result = navResult

			ship, err = h.waitForArrival(ctx, ship, playerID)
			if err != nil {
				return nil, fmt.Errorf("workload: navigate: waiting for arrival at %s: %w", step.Waypoint, err)
			}

			// A following REFUEL step already handles topping off here;
			// don't double dock/orbit for the same waypoint.
			nextIsRefuelHere := i+1 < len(routeResp.Steps) && routeResp.Steps[i+1].Action == routing.RouteActionRefuel
			if !nextIsRefuelHere {
				if here := waypoints[ship.CurrentLocation().Symbol]; here != nil &&
					fuelSvc.ShouldRefuelOpportunistically(ship.Fuel(), ship.FuelCapacity(), here, navigationRefuelThreshold) {
					if ship, err = h.refuelInPlace(ctx, ship, playerID); err != nil {
						return nil, fmt.Errorf("workload: navigate: opportunistic refuel at %s: %w", ship.CurrentLocation().Symbol, err)
					}
				}
			}
		}
	}

	if result == nil {
		return &navigation.Result{}, nil
	}
	return result, nil
}

// waitForArrival suspends until a ship's in-flight transit completes, then
// re-syncs it from the remote — the wait-then-resync pattern spec.md §4.D
// requires around every transit, whether entered by this Navigate call or
// found already in progress when Navigate was invoked.
func (h *Handlers) waitForArrival(ctx context.Context, ship *navigation.Ship, playerID shared.PlayerID) (*navigation.Ship, error) {
	if arrivalTime := ship.ArrivalTime(); arrivalTime != nil {
		arrival, err := shared.NewArrivalTime(arrivalTime.UTC().Format(time.RFC3339))
		if err == nil {
			if wait := arrival.CalculateWaitTime(); wait > 0 {
				h.Clock.Sleep(time.Duration(wait+3) * time.Second)
			}
		}
	}

	fresh, err := h.ShipRepo.FindBySymbol(ctx, ship.ShipSymbol(), playerID)
	if err != nil {
		return nil, fmt.Errorf("resyncing after wait: %w", err)
	}
	if fresh.IsInTransit() {
		_ = fresh.Arrive()
	}
	return fresh, nil
}

// refuelInPlace docks, refuels to full, and returns to orbit, re-syncing the
// ship from the remote afterward. Used both for a route's planned REFUEL
// steps and for opportunistic/pre-departure safety refuels.
func (h *Handlers) refuelInPlace(ctx context.Context, ship *navigation.Ship, playerID shared.PlayerID) (*navigation.Ship, error) {
	if !ship.IsDocked() {
		if err := h.ShipRepo.Dock(ctx, ship, playerID); err != nil {
			return nil, fmt.Errorf("docking to refuel: %w", err)
		}
	}
	if _, err := h.ShipRepo.Refuel(ctx, ship, playerID, nil); err != nil {
		return nil, fmt.Errorf("refueling: %w", err)
	}
	if err := h.ShipRepo.Orbit(ctx, ship, playerID); err != nil {
		return nil, fmt.Errorf("returning to orbit after refuel: %w", err)
	}
	return h.ShipRepo.FindBySymbol(ctx, ship.ShipSymbol(), playerID)
}

// enrichedWaypoints loads the current system graph and overlays waypoint
// store data on top of it, preferring the store's copy (it carries trait
// data such as HasFuel) and falling back to the graph's copy for anything
// the store hasn't seen yet — the same enrichment the teacher's navigation
// stack runs before handing waypoints to the routing engine.
func (h *Handlers) enrichedWaypoints(ctx context.Context, systemSymbol string, playerID int) (map[string]*shared.Waypoint, error) {
	graphResult, err := h.GraphProvider.GetGraph(ctx, systemSymbol, false, playerID)
	if err != nil {
		return nil, fmt.Errorf("loading system graph for %s: %w", systemSymbol, err)
	}

	stored, err := h.WaypointRepo.ListBySystem(ctx, systemSymbol)
	if err != nil {
		h.Logger.Warn().Err(err).Str("system", systemSymbol).Msg("navigate: failed to load stored waypoint traits, using graph data only")
		stored = nil
	}
	storedBySymbol := make(map[string]*shared.Waypoint, len(stored))
	for _, wp := range stored {
		storedBySymbol[wp.Symbol] = wp
	}

	enriched := make(map[string]*shared.Waypoint, len(graphResult.Graph.Waypoints))
	for symbol, wp := range graphResult.Graph.Waypoints {
		if dbWp, ok := storedBySymbol[symbol]; ok {
			enriched[symbol] = dbWp
		} else {
			enriched[symbol] = wp
		}
	}
	if len(enriched) == 0 {
		return nil, fmt.Errorf("no waypoints loaded for system %s", systemSymbol)
	}
	return enriched, nil
}

// waypointDataSlice flattens an enriched waypoint map into the
// []*system.WaypointData shape the routing engine consumes.
func waypointDataSlice(waypoints map[string]*shared.Waypoint) []*system.WaypointData {
	data := make([]*system.WaypointData, 0, len(waypoints))
	for _, wp := range waypoints {
		data = append(data, &system.WaypointData{
			Symbol:   wp.Symbol,
			X:        wp.X,
			Y:        wp.Y,
			HasFuel:  wp.HasFuel,
			Orbitals: wp.Orbitals,
		})
	}
	return data
}

// Dock docks a ship. Idempotent: no-op if already docked.
func (h *Handlers) Dock(ctx context.Context, playerID shared.PlayerID, shipSymbol string) error {
	ship, err := h.ShipRepo.FindBySymbol(ctx, shipSymbol, playerID)
	if err != nil {
		return fmt.Errorf("workload: dock: finding ship %s: %w", shipSymbol, err)
	}
	if ship.IsDocked() {
		return nil
	}
	return h.ShipRepo.Dock(ctx, ship, playerID)
}

// Orbit puts a ship into orbit. Idempotent: no-op if already orbiting.
func (h *Handlers) Orbit(ctx context.Context, playerID shared.PlayerID, shipSymbol string) error {
	ship, err := h.ShipRepo.FindBySymbol(ctx, shipSymbol, playerID)
	if err != nil {
		return fmt.Errorf("workload: orbit: finding ship %s: %w", shipSymbol, err)
	}
	if ship.IsInOrbit() {
		return nil
	}
	return h.ShipRepo.Orbit(ctx, ship, playerID)
}

// Refuel refuels a ship, optionally to a specific unit count.
func (h *Handlers) Refuel(ctx context.Context, playerID shared.PlayerID, shipSymbol string, units *int) (*navigation.RefuelResult, error) {
	ship, err := h.ShipRepo.FindBySymbol(ctx, shipSymbol, playerID)
	if err != nil {
		return nil, fmt.Errorf("workload: refuel: finding ship %s: %w", shipSymbol, err)
	}
	if !ship.IsDocked() {
		if err := h.ShipRepo.Dock(ctx, ship, playerID); err != nil {
			return nil, fmt.Errorf("workload: refuel: docking before refuel: %w", err)
		}
	}
	return h.ShipRepo.Refuel(ctx, ship, playerID, units)
}

// JettisonCargo discards cargo from a ship's hold.
func (h *Handlers) JettisonCargo(ctx context.Context, playerID shared.PlayerID, shipSymbol, goodSymbol string, units int) error {
	ship, err := h.ShipRepo.FindBySymbol(ctx, shipSymbol, playerID)
	if err != nil {
		return fmt.Errorf("workload: jettison: finding ship %s: %w", shipSymbol, err)
	}
	return h.ShipRepo.JettisonCargo(ctx, ship, playerID, goodSymbol, units)
}

// PurchaseCargo buys cargo at the ship's current market, recording the
// resulting market price snapshot (§3 MarketPriceHistory).
func (h *Handlers) PurchaseCargo(ctx context.Context, playerID shared.PlayerID, shipSymbol, goodSymbol string, units int) (*ports.PurchaseResult, error) {
	tok, err := h.token(ctx, playerID)
	if err != nil {
		return nil, err
	}
	result, err := h.APIClient.PurchaseCargo(ctx, shipSymbol, goodSymbol, units, tok)
	if err != nil {
		return nil, fmt.Errorf("workload: purchase cargo: %w", err)
	}
	h.recordMarketVisit(ctx, playerID, shipSymbol, goodSymbol)
	return result, nil
}

// SellCargo sells cargo at the ship's current market.
func (h *Handlers) SellCargo(ctx context.Context, playerID shared.PlayerID, shipSymbol, goodSymbol string, units int) (*ports.SellResult, error) {
	tok, err := h.token(ctx, playerID)
	if err != nil {
		return nil, err
	}
	result, err := h.APIClient.SellCargo(ctx, shipSymbol, goodSymbol, units, tok)
	if err != nil {
		return nil, fmt.Errorf("workload: sell cargo: %w", err)
	}
	h.recordMarketVisit(ctx, playerID, shipSymbol, goodSymbol)
	return result, nil
}

// recordMarketVisit snapshots the current market's trade-good prices into
// history. goodSymbol empty records every good at the market (used by
// scouting tours); non-empty restricts to that good (used by a single
// purchase/sell call).
func (h *Handlers) recordMarketVisit(ctx context.Context, playerID shared.PlayerID, shipSymbol, goodSymbol string) {
	if h.MarketHistoryRepo == nil {
		return
	}
	ship, err := h.ShipRepo.FindBySymbol(ctx, shipSymbol, playerID)
	if err != nil || ship.CurrentLocation() == nil {
		return
	}
	tok, err := h.token(ctx, playerID)
	if err != nil {
		return
	}
	marketData, err := h.APIClient.GetMarket(ctx, ship.CurrentLocation().SystemSymbol, ship.CurrentLocation().Symbol, tok)
	if err != nil {
		return
	}
	for _, good := range marketData.TradeGoods {
		if goodSymbol != "" && good.Symbol != goodSymbol {
			continue
		}
		supply := good.Supply
		entry, err := market.NewMarketPriceHistory(
			ship.CurrentLocation().Symbol,
			good.Symbol,
			playerID,
			good.PurchasePrice,
			good.SellPrice,
			&supply,
			nil,
			good.TradeVolume,
		)
		if err != nil {
			continue
		}
		_ = h.MarketHistoryRepo.RecordPriceChange(ctx, entry)
	}
}

// ContainerTypeFor maps a container_type string tag to the supervisor's
// ContainerType enum (the same value, typed).
func ContainerTypeFor(containerType string) container.ContainerType {
	return container.ContainerType(containerType)
}
