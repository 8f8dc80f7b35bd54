// Package routing implements the domain routing.RoutingClient entirely
// in-process: a nearest-neighbor construction heuristic followed by 2-opt
// local search (no cheapest-insertion or or-opt), mirroring the role the teacher's
// OR-Tools gRPC service played (PATH_CHEAPEST_ARC first solution,
// GUIDED_LOCAL_SEARCH improvement) without leaving Go.
package routing

import (
	"context"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/acdtunes/fleetd/internal/domain/routing"
	"github.com/acdtunes/fleetd/internal/domain/shared"
	"github.com/acdtunes/fleetd/internal/domain/system"
)

const defaultCacheSize = 256

// vrpPenaltyFloor is the minimum disjunction penalty VRP partitioning applies
// to an unreachable market, per spec: max(matrix distance)*10, floored so that
// even an all-adjacent fleet still treats a drop as economically impossible.
const vrpPenaltyFloor = 10_000_000

type cacheKey struct {
	origin        string
	target        string
	fuelCapacity  int
	engineSpeed   int
	currentFuel   int
	fuelEfficient bool
	preferCruise  bool
}

// defaultTimeouts are used when NewEngine is called with a zero-value
// Timeouts (e.g. in tests that don't care about bounding).
var defaultTimeouts = Timeouts{
	Dijkstra: 30 * time.Second,
	TSP:      60 * time.Second,
	VRP:      120 * time.Second,
}

// Timeouts bounds how long each routing operation may run before it gives
// up, mirroring the Dijkstra/TSP/VRP timeout knobs the teacher's OR-Tools
// gRPC service exposed, now enforced in-process via context.WithTimeout.
type Timeouts struct {
	Dijkstra time.Duration
	TSP      time.Duration
	VRP      time.Duration
}

// Engine is a pure-Go RoutingClient: Dijkstra for point-to-point routes,
// nearest-neighbor + 2-opt for tours, and a greedy capacity-aware split for
// fleet partitioning.
type Engine struct {
	cache    *lru.Cache[cacheKey, *routing.RouteResponse]
	timeouts Timeouts
}

// NewEngine builds a routing engine with an LRU route cache (cleared by
// calling Clear, since spec.md specifies the pathfinding cache "is cleared
// on request" rather than a bounded TTL) and the given operation timeouts.
// A zero-value Timeouts falls back to defaultTimeouts.
func NewEngine(timeouts Timeouts) *Engine {
	c, err := lru.New[cacheKey, *routing.RouteResponse](defaultCacheSize)
	if err != nil {
		// Only fails for a non-positive size, which defaultCacheSize never is.
		panic(fmt.Sprintf("routing: failed to create LRU cache: %v", err))
	}
	if timeouts.Dijkstra == 0 {
		timeouts.Dijkstra = defaultTimeouts.Dijkstra
	}
	if timeouts.TSP == 0 {
		timeouts.TSP = defaultTimeouts.TSP
	}
	if timeouts.VRP == 0 {
		timeouts.VRP = defaultTimeouts.VRP
	}
	return &Engine{cache: c, timeouts: timeouts}
}

// Clear empties the pathfinding cache.
func (e *Engine) Clear() {
	e.cache.Purge()
}

// PlanRoute finds the fastest fuel-feasible path between two waypoints: a
// priority-queue search over (waypoint, fuel_remaining) states with REFUEL as
// a zero-cost enqueued action at has_fuel waypoints and BURN/CRUISE/DRIFT
// mode selection per leg (see findFuelConstrainedPath).
func (e *Engine) PlanRoute(ctx context.Context, req *routing.RouteRequest) (*routing.RouteResponse, error) {
	key := cacheKey{
		origin:        req.StartWaypoint,
		target:        req.GoalWaypoint,
		fuelCapacity:  req.FuelCapacity,
		engineSpeed:   req.EngineSpeed,
		currentFuel:   req.CurrentFuel,
		fuelEfficient: req.FuelEfficient,
		preferCruise:  req.PreferCruise,
	}
	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeouts.Dijkstra)
	defer cancel()

	resp, err := findFuelConstrainedPath(ctx, req.Waypoints, req.StartWaypoint, req.GoalWaypoint,
		req.CurrentFuel, req.FuelCapacity, req.EngineSpeed, req.FuelEfficient, req.PreferCruise)
	if err != nil {
		return nil, err
	}

	e.cache.Add(key, resp)
	return resp, nil
}

// OptimizeTour orders a set of waypoints into a visiting tour starting from
// StartWaypoint: nearest-neighbor construction followed by 2-opt improvement.
func (e *Engine) OptimizeTour(ctx context.Context, req *routing.TourRequest) (*routing.TourResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeouts.TSP)
	defer cancel()

	g := buildAdjacency(req.AllWaypoints)

	order, err := nearestNeighborTour(ctx, g, req.StartWaypoint, req.Waypoints)
	if err != nil {
		return nil, err
	}
	order = twoOpt(ctx, g, order)

	var combined []*routing.RouteStepData
	totalTime := 0
	cur := req.StartWaypoint
	for _, next := range order {
		path, err := dijkstra(ctx, g, cur, next)
		if err != nil {
			return nil, err
		}
		legs := legsForPath(path, g, req.EngineSpeed, false, true)
		combined = append(combined, legs.Steps...)
		totalTime += legs.TotalTimeSeconds
		cur = next
	}

	return &routing.TourResponse{
		VisitOrder:       order,
		CombinedRoute:    combined,
		TotalTimeSeconds: totalTime,
	}, nil
}

// OptimizeFueledTour extends OptimizeTour with fuel tracking: a refuel stop
// is inserted when the next leg's fuel cost exceeds the fuel on board and the
// current waypoint sells fuel; elsewhere no refuel is added.
func (e *Engine) OptimizeFueledTour(ctx context.Context, req *routing.FueledTourRequest) (*routing.FueledTourResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeouts.TSP)
	defer cancel()

	g := buildAdjacency(req.AllWaypoints)

	targets := append([]string{}, req.TargetWaypoints...)
	if req.ReturnWaypoint != "" {
		targets = append(targets, req.ReturnWaypoint)
	}

	order, err := nearestNeighborTour(ctx, g, req.StartWaypoint, req.TargetWaypoints)
	if err != nil {
		return nil, err
	}
	order = twoOpt(ctx, g, order)
	if req.ReturnWaypoint != "" {
		order = append(order, req.ReturnWaypoint)
	}

	fuelStations := fuelStationSet(req.AllWaypoints)

	legs := make([]*routing.TourLegData, 0, len(order))
	fuel := req.CurrentFuel
	totalTime, totalFuel, refuelStops := 0, 0, 0
	var totalDistance float64

	cur := req.StartWaypoint
	for _, next := range order {
		path, err := dijkstra(ctx, g, cur, next)
		if err != nil {
			return nil, err
		}
		distance := pathDistance(path, g)
		fuelCost := shared.FlightModeCruise.FuelCost(distance)
		timeSeconds := shared.FlightModeCruise.TravelTime(distance, req.EngineSpeed)

		refuelBefore := false
		refuelAmount := 0
		if fuelCost > fuel && fuelStations[cur] {
			refuelBefore = true
			refuelAmount = req.FuelCapacity - fuel
			fuel = req.FuelCapacity
			refuelStops++
		}

		fuel -= fuelCost
		totalTime += timeSeconds
		totalFuel += fuelCost
		totalDistance += distance

		legs = append(legs, &routing.TourLegData{
			FromWaypoint: cur,
			ToWaypoint:   next,
			FlightMode:   "CRUISE",
			FuelCost:     fuelCost,
			TimeSeconds:  timeSeconds,
			Distance:     distance,
			RefuelBefore: refuelBefore,
			RefuelAmount: refuelAmount,
		})
		cur = next
	}

	return &routing.FueledTourResponse{
		VisitOrder:       order,
		Legs:             legs,
		TotalTimeSeconds: totalTime,
		TotalFuelCost:    totalFuel,
		TotalDistance:    totalDistance,
		RefuelStops:      refuelStops,
	}, nil
}

// PartitionFleet assigns market waypoints to ships with a greedy
// capacity-balanced split: each waypoint goes to whichever ship's running
// load (tour distance so far plus the distance to this waypoint) would be
// smallest after taking it, then each ship's assigned set is ordered with
// the same nearest-neighbor + 2-opt heuristic as OptimizeTour.
//
// A market with no feasible path to any ship is never silently dropped: it is
// still assigned, to whichever ship minimizes cost under a disjunction
// penalty (max edge distance * 10, floored at vrpPenaltyFloor) that makes
// carrying it "economically impossible" rather than free to discard, per
// spec.md's VRP disjunction handling.
func (e *Engine) PartitionFleet(ctx context.Context, req *routing.VRPRequest) (*routing.VRPResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeouts.VRP)
	defer cancel()

	g := buildAdjacency(req.AllWaypoints)
	penalty := disjunctionPenalty(g)

	assigned := make(map[string][]string, len(req.ShipSymbols))
	load := make(map[string]float64, len(req.ShipSymbols))
	for _, ship := range req.ShipSymbols {
		assigned[ship] = nil
		load[ship] = 0
	}

	for _, wp := range req.MarketWaypoints {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("routing: fleet partitioning timed out: %w", err)
		}
		bestShip := ""
		bestCost := math.Inf(1)
		for _, ship := range req.ShipSymbols {
			cfg := req.ShipConfigs[ship]
			from := cfg.CurrentLocation
			if len(assigned[ship]) > 0 {
				from = assigned[ship][len(assigned[ship])-1]
			}
			cost := load[ship]
			if d, err := distanceBetween(ctx, g, from, wp); err != nil {
				cost += penalty
			} else {
				cost += d
			}
			if cost < bestCost {
				bestCost = cost
				bestShip = ship
			}
		}
		if bestShip == "" {
			return nil, fmt.Errorf("routing: fleet partitioning has no ships to assign market %s to", wp)
		}
		assigned[bestShip] = append(assigned[bestShip], wp)
		load[bestShip] = bestCost
	}

	result := make(map[string]*routing.ShipTourData, len(req.ShipSymbols))
	for _, ship := range req.ShipSymbols {
		cfg := req.ShipConfigs[ship]
		order, err := nearestNeighborTour(ctx, g, cfg.CurrentLocation, assigned[ship])
		if err != nil {
			result[ship] = &routing.ShipTourData{Waypoints: assigned[ship]}
			continue
		}
		order = twoOpt(ctx, g, order)

		var route []*routing.RouteStepData
		cur := cfg.CurrentLocation
		for _, next := range order {
			path, err := dijkstra(ctx, g, cur, next)
			if err != nil {
				continue
			}
			legs := legsForPath(path, g, cfg.EngineSpeed, false, true)
			route = append(route, legs.Steps...)
			cur = next
		}

		result[ship] = &routing.ShipTourData{Waypoints: order, Route: route}
	}

	return &routing.VRPResponse{Assignments: result}, nil
}

func fuelStationSet(waypoints []*system.WaypointData) map[string]bool {
	set := make(map[string]bool, len(waypoints))
	for _, wp := range waypoints {
		if wp.HasFuel {
			set[wp.Symbol] = true
		}
	}
	return set
}

// disjunctionPenalty returns the per-drop cost PartitionFleet charges for a
// market no ship can reach directly: 10x the largest edge in the graph,
// floored at vrpPenaltyFloor so a tightly-clustered fleet still treats a drop
// as a last resort rather than a free option.
func disjunctionPenalty(g adjacency) float64 {
	maxDist := 0.0
	for _, edges := range g {
		for _, e := range edges {
			if e.distance > maxDist {
				maxDist = e.distance
			}
		}
	}
	penalty := maxDist * 10
	if penalty < vrpPenaltyFloor {
		penalty = vrpPenaltyFloor
	}
	return penalty
}
