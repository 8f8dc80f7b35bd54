package routing

import (
	"container/heap"
	"context"
	"fmt"
	"math"

	"github.com/acdtunes/fleetd/internal/domain/routing"
	"github.com/acdtunes/fleetd/internal/domain/shared"
	"github.com/acdtunes/fleetd/internal/domain/system"
)

// adjacency is an in-memory edge list keyed by waypoint symbol, built fresh
// per request from the caller-supplied waypoint set: every pair of waypoints
// is joined by an edge weighted with their Euclidean distance.
type adjacency map[string][]edge

type edge struct {
	to       string
	distance float64
}

func buildAdjacency(waypoints []*system.WaypointData) adjacency {
	g := make(adjacency, len(waypoints))
	for _, wp := range waypoints {
		g[wp.Symbol] = nil
	}
	for i, a := range waypoints {
		for j, b := range waypoints {
			if i == j {
				continue
			}
			d := euclidean(a.X, a.Y, b.X, b.Y)
			g[a.Symbol] = append(g[a.Symbol], edge{to: b.Symbol, distance: d})
		}
	}
	return g
}

func euclidean(x1, y1, x2, y2 float64) float64 {
	dx, dy := x2-x1, y2-y1
	return math.Sqrt(dx*dx + dy*dy)
}

// priority queue of (waypoint, distance) pairs for Dijkstra.

type pqItem struct {
	symbol string
	dist   float64
	index  int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index, pq[j].index = i, j
}
func (pq *priorityQueue) Push(x interface{}) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// dijkstra returns the shortest path (inclusive of start and goal) through g.
func dijkstra(ctx context.Context, g adjacency, start, goal string) ([]string, error) {
	if _, ok := g[start]; !ok {
		return nil, fmt.Errorf("routing: start waypoint %s not in graph", start)
	}
	if _, ok := g[goal]; !ok {
		return nil, fmt.Errorf("routing: goal waypoint %s not in graph", goal)
	}
	if start == goal {
		return []string{start}, nil
	}

	dist := map[string]float64{start: 0}
	prev := map[string]string{}
	visited := map[string]bool{}

	pq := &priorityQueue{{symbol: start, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("routing: dijkstra timed out: %w", err)
		}
		cur := heap.Pop(pq).(*pqItem)
		if visited[cur.symbol] {
			continue
		}
		visited[cur.symbol] = true

		if cur.symbol == goal {
			break
		}

		for _, e := range g[cur.symbol] {
			if visited[e.to] {
				continue
			}
			nd := dist[cur.symbol] + e.distance
			if existing, ok := dist[e.to]; !ok || nd < existing {
				dist[e.to] = nd
				prev[e.to] = cur.symbol
				heap.Push(pq, &pqItem{symbol: e.to, dist: nd})
			}
		}
	}

	if _, ok := dist[goal]; !ok {
		return nil, fmt.Errorf("routing: no path from %s to %s", start, goal)
	}

	path := []string{goal}
	for cur := goal; cur != start; {
		p, ok := prev[cur]
		if !ok {
			return nil, fmt.Errorf("routing: broken path reconstruction from %s to %s", start, goal)
		}
		path = append(path, p)
		cur = p
	}
	reverse(path)
	return path, nil
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func distanceBetween(ctx context.Context, g adjacency, from, to string) (float64, error) {
	path, err := dijkstra(ctx, g, from, to)
	if err != nil {
		return 0, err
	}
	return pathDistance(path, g), nil
}

func pathDistance(path []string, g adjacency) float64 {
	total := 0.0
	for i := 0; i+1 < len(path); i++ {
		total += edgeDistance(g, path[i], path[i+1])
	}
	return total
}

func edgeDistance(g adjacency, from, to string) float64 {
	for _, e := range g[from] {
		if e.to == to {
			return e.distance
		}
	}
	return 0
}

// legsForPath converts a waypoint path into routing steps using a single
// shared.FlightMode for every leg (BURN when speed matters most, CRUISE as
// the default, DRIFT when fuel_efficient is requested) — used by
// OptimizeTour/PartitionFleet, which order a visiting tour without tracking
// per-ship fuel state. PlanRoute itself uses findFuelConstrainedPath, which
// selects a mode per arc against actual remaining fuel.
func legsForPath(path []string, g adjacency, engineSpeed int, fuelEfficient, preferCruise bool) *routing.RouteResponse {
	mode := shared.FlightModeCruise
	switch {
	case fuelEfficient:
		mode = shared.FlightModeDrift
	case !preferCruise:
		mode = shared.FlightModeBurn
	}

	steps := make([]*routing.RouteStepData, 0, len(path)-1)
	totalFuel, totalTime := 0, 0
	totalDistance := 0.0

	for i := 0; i+1 < len(path); i++ {
		d := edgeDistance(g, path[i], path[i+1])
		fuelCost := mode.FuelCost(d)
		timeSeconds := mode.TravelTime(d, engineSpeed)

		steps = append(steps, &routing.RouteStepData{
			Action:      routing.RouteActionTravel,
			Waypoint:    path[i+1],
			FuelCost:    fuelCost,
			TimeSeconds: timeSeconds,
			Mode:        mode.Name(),
		})

		totalFuel += fuelCost
		totalTime += timeSeconds
		totalDistance += d
	}

	return &routing.RouteResponse{
		Steps:            steps,
		TotalFuelCost:    totalFuel,
		TotalTimeSeconds: totalTime,
		TotalDistance:    totalDistance,
	}
}

// nearestNeighborTour builds a first-solution visiting order over targets,
// starting from start, always stepping to the nearest unvisited target.
func nearestNeighborTour(ctx context.Context, g adjacency, start string, targets []string) ([]string, error) {
	remaining := make(map[string]bool, len(targets))
	for _, t := range targets {
		remaining[t] = true
	}

	order := make([]string, 0, len(targets))
	cur := start
	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("routing: tour construction timed out: %w", err)
		}
		best := ""
		bestDist := math.Inf(1)
		for t := range remaining {
			d, err := distanceBetween(ctx, g, cur, t)
			if err != nil {
				continue
			}
			if d < bestDist {
				bestDist = d
				best = t
			}
		}
		if best == "" {
			return nil, fmt.Errorf("routing: no reachable waypoint among remaining targets from %s", cur)
		}
		order = append(order, best)
		delete(remaining, best)
		cur = best
	}
	return order, nil
}

// twoOpt improves a visiting order by repeatedly reversing segments that
// shorten the total tour distance, until a full pass finds no improvement.
func twoOpt(ctx context.Context, g adjacency, order []string) []string {
	if len(order) < 4 {
		return order
	}

	improved := true
	for improved {
		if ctx.Err() != nil {
			return order
		}
		improved = false
		for i := 0; i < len(order)-2; i++ {
			for j := i + 2; j < len(order); j++ {
				if delta := twoOptDelta(g, order, i, j); delta < -1e-9 {
					reverseSegment(order, i+1, j)
					improved = true
				}
			}
		}
	}
	return order
}

func twoOptDelta(g adjacency, order []string, i, j int) float64 {
	a, b := order[i], order[i+1]
	c := order[j]
	var d string
	if j+1 < len(order) {
		d = order[j+1]
	} else {
		return 0 // no wraparound edge to break for an open tour
	}

	before := edgeDistance(g, a, b) + edgeDistance(g, c, d)
	after := edgeDistance(g, a, c) + edgeDistance(g, b, d)
	return after - before
}

func reverseSegment(order []string, i, j int) {
	for i < j {
		order[i], order[j] = order[j], order[i]
		i++
		j--
	}
}
