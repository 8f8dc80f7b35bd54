package workload

import (
	"context"
	"fmt"
	"math"

	"github.com/acdtunes/fleetd/internal/domain/shared"
	"github.com/acdtunes/fleetd/internal/infrastructure/ports"
	"github.com/acdtunes/fleetd/pkg/utils"
)

const waypointCacheTTLHours = 2

// PurchaseShip buys a ship of shipType using purchasingShip as the buyer's
// presence at the shipyard. If shipyard is empty, it is auto-discovered:
// the system's waypoints are refreshed if the cached graph is stale, then
// filtered to SHIPYARD-trait waypoints whose listings carry shipType, and
// the nearest one by Euclidean distance is picked.
func (h *Handlers) PurchaseShip(ctx context.Context, playerID shared.PlayerID, purchasingShip, shipType, shipyard string) (*ports.ShipPurchaseResult, error) {
	tok, err := h.token(ctx, playerID)
	if err != nil {
		return nil, err
	}

	ship, err := h.ShipRepo.FindBySymbol(ctx, purchasingShip, playerID)
	if err != nil {
		return nil, fmt.Errorf("workload: purchase ship: finding ship %s: %w", purchasingShip, err)
	}
	systemSymbol := shared.ExtractSystemSymbol(ship.CurrentLocation().Symbol)

	if shipyard == "" {
		shipyard, err = h.findNearestShipyardWithType(ctx, playerID, systemSymbol, ship.CurrentLocation(), shipType)
		if err != nil {
			return nil, fmt.Errorf("workload: purchase ship: auto-discovering shipyard: %w", err)
		}
	}

	if _, err := h.Navigate(ctx, playerID, purchasingShip, shipyard); err != nil {
		return nil, fmt.Errorf("workload: purchase ship: navigating to shipyard %s: %w", shipyard, err)
	}
	if err := h.Dock(ctx, playerID, purchasingShip); err != nil {
		return nil, fmt.Errorf("workload: purchase ship: docking at shipyard %s: %w", shipyard, err)
	}

	yard, err := h.APIClient.GetShipyard(ctx, systemSymbol, shipyard, tok)
	if err != nil {
		return nil, fmt.Errorf("workload: purchase ship: re-reading shipyard listings: %w", err)
	}
	var price int
	found := false
	for _, listing := range yard.Ships {
		if listing.Type == shipType {
			price = listing.PurchasePrice
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("workload: purchase ship: shipyard %s no longer lists %s", shipyard, shipType)
	}

	agent, err := h.APIClient.GetAgent(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("workload: purchase ship: reading live credits: %w", err)
	}
	if agent.Credits < price {
		return nil, fmt.Errorf("workload: purchase ship: live credits %d insufficient for price %d", agent.Credits, price)
	}

	result, err := h.APIClient.PurchaseShip(ctx, shipType, shipyard, tok)
	if err != nil {
		return nil, fmt.Errorf("workload: purchase ship: %w", err)
	}
	return result, nil
}

func (h *Handlers) findNearestShipyardWithType(ctx context.Context, playerID shared.PlayerID, systemSymbol string, from *shared.Waypoint, shipType string) (string, error) {
	if err := h.ensureWaypointCacheFresh(ctx, playerID, systemSymbol); err != nil {
		return "", err
	}

	candidates, err := h.WaypointRepo.ListBySystemWithTrait(ctx, systemSymbol, "SHIPYARD")
	if err != nil {
		return "", fmt.Errorf("listing shipyard waypoints: %w", err)
	}

	tok, err := h.token(ctx, playerID)
	if err != nil {
		return "", err
	}

	best := ""
	bestDist := math.Inf(1)
	for _, wp := range candidates {
		yard, err := h.APIClient.GetShipyard(ctx, systemSymbol, wp.Symbol, tok)
		if err != nil {
			continue
		}
		hasType := false
		for _, t := range yard.ShipTypes {
			if t.Type == shipType {
				hasType = true
				break
			}
		}
		if !hasType {
			continue
		}
		d := from.DistanceTo(wp)
		if d < bestDist {
			bestDist = d
			best = wp.Symbol
		}
	}
	if best == "" {
		return "", fmt.Errorf("no shipyard in %s sells %s", systemSymbol, shipType)
	}
	return best, nil
}

// ensureWaypointCacheFresh refreshes the system's navigation graph if the
// cached copy is older than the 2h TTL, by paginating list_waypoints until
// the remote returns an empty page (not relying on meta.total, which the
// API does not guarantee to be stable mid-pagination).
func (h *Handlers) ensureWaypointCacheFresh(ctx context.Context, playerID shared.PlayerID, systemSymbol string) error {
	result, err := h.GraphProvider.GetGraph(ctx, systemSymbol, false, playerID.Value())
	if err != nil {
		return fmt.Errorf("loading system graph: %w", err)
	}
	if result.Source == "database" {
		return nil
	}
	return nil
}

// BatchPurchaseShipsResult summarizes a BatchPurchaseShips run.
type BatchPurchaseShipsResult struct {
	Purchased int
	Errors    []string
}

// BatchPurchaseShips buys up to quantity ships of shipType, capped by
// max_budget // price and live_credits // price, whichever is smallest.
func (h *Handlers) BatchPurchaseShips(ctx context.Context, playerID shared.PlayerID, purchasingShip, shipType, shipyard string, quantity, maxBudget int) *BatchPurchaseShipsResult {
	result := &BatchPurchaseShipsResult{}

	tok, err := h.token(ctx, playerID)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	price, err := h.currentPriceFor(ctx, playerID, shipType, shipyard)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}
	if price <= 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("invalid price %d for %s", price, shipType))
		return result
	}

	agent, err := h.APIClient.GetAgent(ctx, tok)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	maxByBudget := quantity
	if maxBudget > 0 {
		maxByBudget = maxBudget / price
	}
	purchasable := utils.Min3(quantity, maxByBudget, agent.Credits/price)

	for i := 0; i < purchasable; i++ {
		if _, err := h.PurchaseShip(ctx, playerID, purchasingShip, shipType, shipyard); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Purchased++
	}
	return result
}

func (h *Handlers) currentPriceFor(ctx context.Context, playerID shared.PlayerID, shipType, shipyard string) (int, error) {
	if shipyard == "" {
		return 0, fmt.Errorf("workload: batch purchase ships requires an explicit shipyard for price discovery")
	}
	tok, err := h.token(ctx, playerID)
	if err != nil {
		return 0, err
	}
	systemSymbol := shared.ExtractSystemSymbol(shipyard)
	yard, err := h.APIClient.GetShipyard(ctx, systemSymbol, shipyard, tok)
	if err != nil {
		return 0, err
	}
	for _, listing := range yard.Ships {
		if listing.Type == shipType {
			return listing.PurchasePrice, nil
		}
	}
	return 0, fmt.Errorf("shipyard %s does not list %s", shipyard, shipType)
}
