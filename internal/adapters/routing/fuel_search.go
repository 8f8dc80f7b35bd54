package routing

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/acdtunes/fleetd/internal/domain/routing"
	"github.com/acdtunes/fleetd/internal/domain/shared"
	"github.com/acdtunes/fleetd/internal/domain/system"
)

// Constants mirroring the original bot's fuel-aware Dijkstra search.
const (
	fuelSafetyMargin    = 4
	fuelBucketSize      = 10
	driftPenaltySeconds = 100000
	fuelRefuelThreshold = 0.9
	orbitalHopSeconds   = 1
)

type fuelWaypoint struct {
	symbol   string
	x, y     float64
	hasFuel  bool
	orbitals map[string]bool
}

func buildFuelGraph(waypoints []*system.WaypointData) map[string]*fuelWaypoint {
	g := make(map[string]*fuelWaypoint, len(waypoints))
	for _, wp := range waypoints {
		orbitals := make(map[string]bool, len(wp.Orbitals))
		for _, o := range wp.Orbitals {
			orbitals[o] = true
		}
		g[wp.Symbol] = &fuelWaypoint{symbol: wp.Symbol, x: wp.X, y: wp.Y, hasFuel: wp.HasFuel, orbitals: orbitals}
	}
	return g
}

func (w *fuelWaypoint) distanceTo(o *fuelWaypoint) float64 {
	return euclidean(w.x, w.y, o.x, o.y)
}

func (w *fuelWaypoint) isOrbitalOf(o *fuelWaypoint) bool {
	return w.orbitals[o.symbol] || o.orbitals[w.symbol]
}

// fuelSearchState is one node of the priority-queue search over
// (waypoint, fuel_remaining) pairs, ordered by cumulative travel time.
type fuelSearchState struct {
	totalTime int
	seq       int
	waypoint  string
	fuel      int
	fuelUsed  int
	distance  float64
	path      []*routing.RouteStepData
}

type fuelPQ []*fuelSearchState

func (pq fuelPQ) Len() int { return len(pq) }
func (pq fuelPQ) Less(i, j int) bool {
	if pq[i].totalTime != pq[j].totalTime {
		return pq[i].totalTime < pq[j].totalTime
	}
	return pq[i].seq < pq[j].seq
}
func (pq fuelPQ) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *fuelPQ) Push(x interface{}) {
	*pq = append(*pq, x.(*fuelSearchState))
}
func (pq *fuelPQ) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

func appendStep(path []*routing.RouteStepData, step *routing.RouteStepData) []*routing.RouteStepData {
	next := make([]*routing.RouteStepData, len(path)+1)
	copy(next, path)
	next[len(path)] = step
	return next
}

// findFuelConstrainedPath searches for the fastest start->goal route over
// (waypoint, fuel_remaining) states: REFUEL is a zero-cost, non-exclusive
// enqueued action at has_fuel waypoints, orbital siblings hop for free,
// and travel legs try BURN then CRUISE (skipping BURN under prefer_cruise),
// falling back to DRIFT only as a last resort with a heavy time penalty
// unless fuel_efficient is set. Fuel is bucketed by fuelBucketSize for
// visited-state pruning, matching the original bot's routing engine.
func findFuelConstrainedPath(ctx context.Context, waypoints []*system.WaypointData, start, goal string, currentFuel, fuelCapacity, engineSpeed int, fuelEfficient, preferCruise bool) (*routing.RouteResponse, error) {
	graph := buildFuelGraph(waypoints)
	startWP, ok := graph[start]
	if !ok {
		return nil, fmt.Errorf("routing: start waypoint %s not in graph", start)
	}
	goalWP, ok := graph[goal]
	if !ok {
		return nil, fmt.Errorf("routing: goal waypoint %s not in graph", goal)
	}
	if start == goal {
		return &routing.RouteResponse{}, nil
	}

	if fuelCapacity == 0 {
		return noFuelPath(startWP, goalWP, engineSpeed), nil
	}

	pq := &fuelPQ{{totalTime: 0, seq: 0, waypoint: start, fuel: currentFuel}}
	heap.Init(pq)
	seq := 1
	visited := make(map[string]int)

	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("routing: fuel-constrained search timed out: %w", err)
		}
		cur := heap.Pop(pq).(*fuelSearchState)

		if cur.waypoint == goal {
			return &routing.RouteResponse{
				Steps:            cur.path,
				TotalFuelCost:    cur.fuelUsed,
				TotalTimeSeconds: cur.totalTime,
				TotalDistance:    cur.distance,
			}, nil
		}

		stateKey := fmt.Sprintf("%s|%d", cur.waypoint, cur.fuel/fuelBucketSize)
		if best, ok := visited[stateKey]; ok && best <= cur.totalTime {
			continue
		}
		visited[stateKey] = cur.totalTime

		curWP := graph[cur.waypoint]

		atStartLowFuel := cur.waypoint == start && len(cur.path) == 0 && curWP.hasFuel && cur.fuel < fuelCapacity
		if atStartLowFuel {
			fuelThreshold := int(float64(fuelCapacity) * fuelRefuelThreshold)
			shouldRefuel90 := cur.fuel < fuelThreshold
			distToGoal := curWP.distanceTo(goalWP)
			cruiseFuelNeeded := shared.FlightModeCruise.FuelCost(distToGoal)

			if cur.fuel < cruiseFuelNeeded || shouldRefuel90 {
				step := &routing.RouteStepData{Action: routing.RouteActionRefuel, Waypoint: cur.waypoint}
				heap.Push(pq, &fuelSearchState{
					totalTime: cur.totalTime,
					seq:       seq,
					waypoint:  cur.waypoint,
					fuel:      fuelCapacity,
					fuelUsed:  cur.fuelUsed,
					distance:  cur.distance,
					path:      appendStep(cur.path, step),
				})
				seq++
				continue
			}
		}

		if curWP.hasFuel && cur.fuel < fuelCapacity {
			step := &routing.RouteStepData{Action: routing.RouteActionRefuel, Waypoint: cur.waypoint}
			heap.Push(pq, &fuelSearchState{
				totalTime: cur.totalTime,
				seq:       seq,
				waypoint:  cur.waypoint,
				fuel:      fuelCapacity,
				fuelUsed:  cur.fuelUsed,
				distance:  cur.distance,
				path:      appendStep(cur.path, step),
			})
			seq++
		}

		for _, symbol := range neighborSymbols(graph) {
			if symbol == cur.waypoint {
				continue
			}
			neighbor := graph[symbol]
			distance := curWP.distanceTo(neighbor)
			isOrbital := curWP.isOrbitalOf(neighbor) || distance == 0

			if isOrbital {
				step := &routing.RouteStepData{
					Action:      routing.RouteActionTravel,
					Waypoint:    symbol,
					FuelCost:    0,
					TimeSeconds: orbitalHopSeconds,
					Mode:        shared.FlightModeCruise.Name(),
				}
				heap.Push(pq, &fuelSearchState{
					totalTime: cur.totalTime + orbitalHopSeconds,
					seq:       seq,
					waypoint:  symbol,
					fuel:      cur.fuel,
					fuelUsed:  cur.fuelUsed,
					distance:  cur.distance,
					path:      appendStep(cur.path, step),
				})
				seq++
				continue
			}

			isGoal := symbol == goal
			burnCost := shared.FlightModeBurn.FuelCost(distance)
			cruiseCost := shared.FlightModeCruise.FuelCost(distance)

			type candidate struct {
				mode shared.FlightMode
				cost int
			}
			var viable []candidate

			if !preferCruise {
				if cur.fuel >= burnCost+fuelSafetyMargin {
					viable = append(viable, candidate{shared.FlightModeBurn, burnCost})
				} else if isGoal && cur.fuel >= burnCost {
					viable = append(viable, candidate{shared.FlightModeBurn, burnCost})
				}
			}

			if cur.fuel >= cruiseCost+fuelSafetyMargin {
				viable = append(viable, candidate{shared.FlightModeCruise, cruiseCost})
			} else if isGoal && cur.fuel >= cruiseCost {
				viable = append(viable, candidate{shared.FlightModeCruise, cruiseCost})
			}

			if len(viable) == 0 {
				driftCost := shared.FlightModeDrift.FuelCost(distance)
				if cur.fuel >= driftCost {
					viable = append(viable, candidate{shared.FlightModeDrift, driftCost})
				}
			}

			for _, c := range viable {
				travelTime := c.mode.TravelTime(distance, engineSpeed)
				if c.mode == shared.FlightModeDrift && !fuelEfficient {
					travelTime += driftPenaltySeconds
				}
				step := &routing.RouteStepData{
					Action:      routing.RouteActionTravel,
					Waypoint:    symbol,
					FuelCost:    c.cost,
					TimeSeconds: travelTime,
					Mode:        c.mode.Name(),
				}
				heap.Push(pq, &fuelSearchState{
					totalTime: cur.totalTime + travelTime,
					seq:       seq,
					waypoint:  symbol,
					fuel:      cur.fuel - c.cost,
					fuelUsed:  cur.fuelUsed + c.cost,
					distance:  cur.distance + distance,
					path:      appendStep(cur.path, step),
				})
				seq++
			}
		}
	}

	fuelStations := 0
	for _, wp := range graph {
		if wp.hasFuel {
			fuelStations++
		}
	}
	return nil, fmt.Errorf("routing: no fuel-feasible path from %s to %s (waypoints=%d fuel_stations=%d fuel=%d/%d)",
		start, goal, len(graph), fuelStations, currentFuel, fuelCapacity)
}

// neighborSymbols returns graph keys in a stable order so identical requests
// explore states identically regardless of Go's randomized map iteration.
func neighborSymbols(g map[string]*fuelWaypoint) []string {
	symbols := make([]string, 0, len(g))
	for s := range g {
		symbols = append(symbols, s)
	}
	for i := 1; i < len(symbols); i++ {
		for j := i; j > 0 && symbols[j-1] > symbols[j]; j-- {
			symbols[j-1], symbols[j] = symbols[j], symbols[j-1]
		}
	}
	return symbols
}

// noFuelPath handles fuel_capacity=0 ships (probe satellites): a single
// CRUISE leg with no fuel accounting, since they can never refuel or run out.
func noFuelPath(start, goal *fuelWaypoint, engineSpeed int) *routing.RouteResponse {
	distance := start.distanceTo(goal)
	isOrbital := start.isOrbitalOf(goal) || distance == 0

	var timeSeconds int
	if isOrbital {
		distance = 0
		timeSeconds = orbitalHopSeconds
	} else {
		timeSeconds = shared.FlightModeCruise.TravelTime(distance, engineSpeed)
	}

	step := &routing.RouteStepData{
		Action:      routing.RouteActionTravel,
		Waypoint:    goal.symbol,
		FuelCost:    0,
		TimeSeconds: timeSeconds,
		Mode:        shared.FlightModeCruise.Name(),
	}
	return &routing.RouteResponse{
		Steps:            []*routing.RouteStepData{step},
		TotalFuelCost:    0,
		TotalTimeSeconds: timeSeconds,
		TotalDistance:    distance,
	}
}
