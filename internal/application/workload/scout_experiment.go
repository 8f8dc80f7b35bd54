package workload

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/acdtunes/fleetd/internal/adapters/metrics"
	"github.com/acdtunes/fleetd/internal/domain/container"
	"github.com/acdtunes/fleetd/internal/domain/routing"
	"github.com/acdtunes/fleetd/internal/domain/shared"
	"github.com/acdtunes/fleetd/internal/domain/system"
	"github.com/acdtunes/fleetd/internal/domain/workqueue"
)

// ScoutMarketsResult reports the containers spawned to run the tour.
type ScoutMarketsResult struct {
	RunID        string
	ContainerIDs []string
}

// ScoutMarkets partitions markets across ships (VRP) and spawns one
// container per ship to tour its assigned subset iterations times.
func (h *Handlers) ScoutMarkets(ctx context.Context, playerID shared.PlayerID, systemSymbol string, ships, markets []string, iterations int, returnToStart bool) (*ScoutMarketsResult, error) {
	graphResult, err := h.GraphProvider.GetGraph(ctx, systemSymbol, false, playerID.Value())
	if err != nil {
		return nil, fmt.Errorf("workload: scout markets: loading graph for %s: %w", systemSymbol, err)
	}
	allWaypoints := waypointDataFromGraph(graphResult.Graph)

	shipConfigs := make(map[string]*routing.ShipConfigData, len(ships))
	for _, shipSymbol := range ships {
		ship, err := h.ShipRepo.FindBySymbol(ctx, shipSymbol, playerID)
		if err != nil {
			return nil, fmt.Errorf("workload: scout markets: finding ship %s: %w", shipSymbol, err)
		}
		shipConfigs[shipSymbol] = &routing.ShipConfigData{
			CurrentLocation: ship.CurrentLocation().Symbol,
			FuelCapacity:    ship.FuelCapacity(),
			EngineSpeed:     ship.EngineSpeed(),
		}
	}

	partition, err := h.RoutingClient.PartitionFleet(ctx, &routing.VRPRequest{
		SystemSymbol:    systemSymbol,
		ShipSymbols:     ships,
		MarketWaypoints: markets,
		ShipConfigs:     shipConfigs,
		AllWaypoints:    allWaypoints,
	})
	if err != nil {
		return nil, fmt.Errorf("workload: scout markets: partitioning fleet: %w", err)
	}

	runID := uuid.NewString()
	result := &ScoutMarketsResult{RunID: runID}

	for _, shipSymbol := range ships {
		tour, ok := partition.Assignments[shipSymbol]
		if !ok || len(tour.Waypoints) == 0 {
			continue
		}
		assigned := tour.Waypoints
		containerID := fmt.Sprintf("scout-%s-%s", shipSymbol, runID[:8])

		work := h.scoutTourWork(playerID, shipSymbol, assigned, iterations, returnToStart)

		config := map[string]interface{}{
			"ship_symbol": shipSymbol,
			"run_id":      runID,
			"markets":     assigned,
			"iterations":  iterations,
		}
		if _, err := h.Supervisor.Create(ctx, containerID, container.ContainerTypeScoutMarkets, "scout-markets",
			playerID.Value(), container.RestartPolicyOnFailure, config, work); err != nil {
			return nil, fmt.Errorf("workload: scout markets: starting container for %s: %w", shipSymbol, err)
		}
		result.ContainerIDs = append(result.ContainerIDs, containerID)
	}

	return result, nil
}

// scoutTourWork builds the supervisor Work closure that tours a ship's
// assigned markets `iterations` times, docking briefly at each to refresh
// its cached price snapshot.
func (h *Handlers) scoutTourWork(playerID shared.PlayerID, shipSymbol string, markets []string, iterations int, returnToStart bool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ship, err := h.ShipRepo.FindBySymbol(ctx, shipSymbol, playerID)
		if err != nil {
			return fmt.Errorf("finding ship %s: %w", shipSymbol, err)
		}
		start := ship.CurrentLocation().Symbol

		for i := 0; i < iterations; i++ {
			for _, wp := range markets {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if _, err := h.Navigate(ctx, playerID, shipSymbol, wp); err != nil {
					return fmt.Errorf("navigating to %s: %w", wp, err)
				}
				if err := h.Dock(ctx, playerID, shipSymbol); err != nil {
					return fmt.Errorf("docking at %s: %w", wp, err)
				}
				h.recordMarketVisit(ctx, playerID, shipSymbol, "")
			}
			if returnToStart {
				if _, err := h.Navigate(ctx, playerID, shipSymbol, start); err != nil {
					return fmt.Errorf("returning to %s: %w", start, err)
				}
			}
		}
		return nil
	}
}

// MarketLiquidityExperimentResult reports the enqueued run and worker
// containers spawned to drain it.
type MarketLiquidityExperimentResult struct {
	RunID        string
	PairsQueued  int
	ContainerIDs []string
}

// MarketLiquidityExperiment discovers goods traded in systemSymbol, picks a
// representative buy/sell market pair per good, bulk-enqueues the pairs, and
// spawns one worker container per ship to drain the queue (§4.H).
func (h *Handlers) MarketLiquidityExperiment(ctx context.Context, playerID shared.PlayerID, systemSymbol string, ships []string, iterationsPerBatch int) (*MarketLiquidityExperimentResult, error) {
	marketplaces, err := h.WaypointRepo.ListBySystemWithTrait(ctx, systemSymbol, "MARKETPLACE")
	if err != nil {
		return nil, fmt.Errorf("workload: market liquidity experiment: listing marketplaces: %w", err)
	}

	byGood := make(map[string][]marketGoodQuote)

	for _, wp := range marketplaces {
		m, err := h.MarketRepo.GetMarketData(ctx, wp.Symbol, playerID.Value())
		if err != nil {
			continue
		}
		for _, good := range m.TradeGoods() {
			byGood[good.Symbol()] = append(byGood[good.Symbol()], marketGoodQuote{
				waypoint: wp.Symbol,
				sell:     good.SellPrice(),
				buy:      good.PurchasePrice(),
			})
		}
	}

	runID := uuid.NewString()
	var pairs []*workqueue.Pair
	for good, markets := range byGood {
		cheapest, priciest, ok := cheapestAndBestMarket(markets)
		if !ok || cheapest == priciest {
			continue
		}
		pairs = append(pairs, &workqueue.Pair{
			RunID:      runID,
			PlayerID:   playerID.Value(),
			PairID:     fmt.Sprintf("%s-%s", good, runID[:8]),
			GoodSymbol: good,
			BuyMarket:  cheapest,
			SellMarket: priciest,
		})
	}

	if err := h.WorkQueue.Enqueue(ctx, pairs); err != nil {
		return nil, fmt.Errorf("workload: market liquidity experiment: enqueueing pairs: %w", err)
	}

	result := &MarketLiquidityExperimentResult{RunID: runID, PairsQueued: len(pairs)}

	for _, shipSymbol := range ships {
		containerID := fmt.Sprintf("experiment-%s-%s", shipSymbol, runID[:8])
		work := h.experimentWorkerWork(playerID, shipSymbol, runID, iterationsPerBatch)

		config := map[string]interface{}{
			"ship_symbol": shipSymbol,
			"run_id":      runID,
		}
		if _, err := h.Supervisor.Create(ctx, containerID, container.ContainerTypeMarketLiquidityExperiment, "market-liquidity-experiment",
			playerID.Value(), container.RestartPolicyOnFailure, config, work); err != nil {
			return nil, fmt.Errorf("workload: market liquidity experiment: starting worker for %s: %w", shipSymbol, err)
		}
		result.ContainerIDs = append(result.ContainerIDs, containerID)
	}

	return result, nil
}

// marketGoodQuote is one market's quoted prices for a single trade good.
type marketGoodQuote struct {
	waypoint string
	sell     int // price ship pays when buying
	buy      int // price ship receives when selling
}

// cheapestAndBestMarket picks the cheapest-to-buy-at and the best-to-sell-at
// markets from a good's market list.
func cheapestAndBestMarket(markets []marketGoodQuote) (cheapestBuyWaypoint, bestSellWaypoint string, ok bool) {
	if len(markets) == 0 {
		return "", "", false
	}
	cheapest := markets[0]
	best := markets[0]
	for _, m := range markets[1:] {
		if m.sell < cheapest.sell {
			cheapest = m
		}
		if m.buy > best.buy {
			best = m
		}
	}
	return cheapest.waypoint, best.waypoint, true
}

// experimentWorkerWork builds the §4.H claim/execute/mark loop for one
// worker ship against runID.
func (h *Handlers) experimentWorkerWork(playerID shared.PlayerID, shipSymbol, runID string, iterationsPerBatch int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for i := 0; i < iterationsPerBatch || iterationsPerBatch <= 0; i++ {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			pair, err := h.WorkQueue.ClaimNext(ctx, runID, shipSymbol)
			if err != nil {
				return fmt.Errorf("claiming next pair: %w", err)
			}
			if pair == nil {
				return nil
			}

			if err := h.executePair(ctx, playerID, shipSymbol, pair); err != nil {
				_ = h.WorkQueue.MarkFailed(ctx, pair.QueueID, err.Error())
				metrics.WorkQueueClaims.WithLabelValues("failed").Inc()
				if iterationsPerBatch <= 0 {
					continue
				}
				return fmt.Errorf("executing pair %s: %w", pair.PairID, err)
			}
			_ = h.WorkQueue.MarkComplete(ctx, pair.QueueID)
			metrics.WorkQueueClaims.WithLabelValues("completed").Inc()

			if iterationsPerBatch <= 0 {
				i--
			}
		}
		return nil
	}
}

func (h *Handlers) executePair(ctx context.Context, playerID shared.PlayerID, shipSymbol string, pair *workqueue.Pair) error {
	ship, err := h.ShipRepo.FindBySymbol(ctx, shipSymbol, playerID)
	if err != nil {
		return err
	}
	units := ship.AvailableCargoSpace()
	if units <= 0 {
		units = 1
	}

	if _, err := h.Navigate(ctx, playerID, shipSymbol, pair.BuyMarket); err != nil {
		return err
	}
	if err := h.Dock(ctx, playerID, shipSymbol); err != nil {
		return err
	}
	if _, err := h.PurchaseCargo(ctx, playerID, shipSymbol, pair.GoodSymbol, units); err != nil {
		return err
	}

	if _, err := h.Navigate(ctx, playerID, shipSymbol, pair.SellMarket); err != nil {
		return err
	}
	if err := h.Dock(ctx, playerID, shipSymbol); err != nil {
		return err
	}
	if _, err := h.SellCargo(ctx, playerID, shipSymbol, pair.GoodSymbol, units); err != nil {
		return err
	}

	return nil
}

func waypointDataFromGraph(graph *system.NavigationGraph) []*system.WaypointData {
	if graph == nil {
		return nil
	}
	out := make([]*system.WaypointData, 0, len(graph.Waypoints))
	for _, wp := range graph.Waypoints {
		out = append(out, &system.WaypointData{
			Symbol:   wp.Symbol,
			X:        wp.X,
			Y:        wp.Y,
			HasFuel:  wp.HasFuel,
			Orbitals: wp.Orbitals,
		})
	}
	return out
}
