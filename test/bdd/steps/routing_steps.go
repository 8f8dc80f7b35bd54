package steps

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cucumber/godog"

	routingadapter "github.com/acdtunes/fleetd/internal/adapters/routing"
	"github.com/acdtunes/fleetd/internal/domain/routing"
	"github.com/acdtunes/fleetd/internal/domain/system"
)

type routingContext struct {
	engine       *routingadapter.Engine
	waypoints    map[string]*system.WaypointData
	currentFuel  int
	fuelCapacity int
	engineSpeed  int
	preferCruise bool
	response     *routing.RouteResponse
	err          error
}

func (rc *routingContext) reset() {
	rc.engine = routingadapter.NewEngine(routingadapter.Timeouts{})
	rc.waypoints = make(map[string]*system.WaypointData)
	rc.currentFuel = 0
	rc.fuelCapacity = 0
	rc.engineSpeed = 0
	rc.preferCruise = false
	rc.response = nil
	rc.err = nil
}

func (rc *routingContext) aSystemGraphWithWaypoints(table *godog.Table) error {
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		symbol := row.Cells[0].Value
		x, err := strconv.ParseFloat(row.Cells[1].Value, 64)
		if err != nil {
			return fmt.Errorf("parsing x for %s: %w", symbol, err)
		}
		y, err := strconv.ParseFloat(row.Cells[2].Value, 64)
		if err != nil {
			return fmt.Errorf("parsing y for %s: %w", symbol, err)
		}
		hasFuel := row.Cells[3].Value == "true"
		rc.waypoints[symbol] = &system.WaypointData{Symbol: symbol, X: x, Y: y, HasFuel: hasFuel}
	}
	return nil
}

func (rc *routingContext) areEachOthersOrbitals(a, b string) error {
	wa, ok := rc.waypoints[a]
	if !ok {
		return fmt.Errorf("waypoint %s not found", a)
	}
	wb, ok := rc.waypoints[b]
	if !ok {
		return fmt.Errorf("waypoint %s not found", b)
	}
	wa.Orbitals = append(wa.Orbitals, b)
	wb.Orbitals = append(wb.Orbitals, a)
	return nil
}

func (rc *routingContext) aShipWithFuelAndEngineSpeedPreferringCruise(current, capacity, engineSpeed int) error {
	rc.currentFuel = current
	rc.fuelCapacity = capacity
	rc.engineSpeed = engineSpeed
	rc.preferCruise = true
	return nil
}

func (rc *routingContext) theShipPlansARouteFromTo(start, goal string) error {
	waypoints := make([]*system.WaypointData, 0, len(rc.waypoints))
	for _, wp := range rc.waypoints {
		waypoints = append(waypoints, wp)
	}
	rc.response, rc.err = rc.engine.PlanRoute(context.Background(), &routing.RouteRequest{
		SystemSymbol:  "X1-TEST",
		StartWaypoint: start,
		GoalWaypoint:  goal,
		CurrentFuel:   rc.currentFuel,
		FuelCapacity:  rc.fuelCapacity,
		EngineSpeed:   rc.engineSpeed,
		Waypoints:     waypoints,
		PreferCruise:  rc.preferCruise,
	})
	return nil
}

func (rc *routingContext) theRouteStartsWithARefuelAt(waypoint string) error {
	if rc.err != nil {
		return fmt.Errorf("planning route failed: %w", rc.err)
	}
	if len(rc.response.Steps) == 0 {
		return fmt.Errorf("route has no steps")
	}
	first := rc.response.Steps[0]
	if first.Action != routing.RouteActionRefuel || first.Waypoint != waypoint {
		return fmt.Errorf("expected first step to be REFUEL@%s, got %s", waypoint, formatRoute(rc.response))
	}
	return nil
}

func (rc *routingContext) everyTravelStepUsesFlightMode(mode string) error {
	if rc.err != nil {
		return fmt.Errorf("planning route failed: %w", rc.err)
	}
	for _, step := range rc.response.Steps {
		if step.Action == routing.RouteActionTravel && step.Mode != mode {
			return fmt.Errorf("expected every travel step to use %s, found %s in %s", mode, step.Mode, formatRoute(rc.response))
		}
	}
	return nil
}

func (rc *routingContext) theRouteReachesWithATotalFuelCostOf(goal string, fuel int) error {
	if rc.err != nil {
		return fmt.Errorf("planning route failed: %w", rc.err)
	}
	if len(rc.response.Steps) == 0 {
		return fmt.Errorf("route has no steps")
	}
	last := rc.response.Steps[len(rc.response.Steps)-1]
	if last.Waypoint != goal {
		return fmt.Errorf("expected route to end at %s, got %s", goal, formatRoute(rc.response))
	}
	if rc.response.TotalFuelCost != fuel {
		return fmt.Errorf("expected total fuel cost %d, got %d", fuel, rc.response.TotalFuelCost)
	}
	return nil
}

func (rc *routingContext) theRouteCostsFuelAndSecond(fuel, seconds int) error {
	if rc.err != nil {
		return fmt.Errorf("planning route failed: %w", rc.err)
	}
	if rc.response.TotalFuelCost != fuel {
		return fmt.Errorf("expected %d total fuel cost, got %d", fuel, rc.response.TotalFuelCost)
	}
	if rc.response.TotalTimeSeconds != seconds {
		return fmt.Errorf("expected %d total seconds, got %d", seconds, rc.response.TotalTimeSeconds)
	}
	return nil
}

// formatRoute renders a plan as "REFUEL@A; TRAVEL->B CRUISE 30 fuel; ..." for
// failure messages.
func formatRoute(resp *routing.RouteResponse) string {
	parts := make([]string, 0, len(resp.Steps))
	for _, step := range resp.Steps {
		switch step.Action {
		case routing.RouteActionRefuel:
			parts = append(parts, fmt.Sprintf("REFUEL@%s", step.Waypoint))
		case routing.RouteActionTravel:
			parts = append(parts, fmt.Sprintf("TRAVEL->%s %s %d fuel", step.Waypoint, step.Mode, step.FuelCost))
		}
	}
	return strings.Join(parts, "; ")
}

func InitializeRoutingScenario(ctx *godog.ScenarioContext) {
	rc := &routingContext{}

	ctx.Before(func(goctx context.Context, sc *godog.Scenario) (context.Context, error) {
		rc.reset()
		return goctx, nil
	})

	ctx.Step(`^a system graph with waypoints:$`, rc.aSystemGraphWithWaypoints)
	ctx.Step(`^"([^"]*)" and "([^"]*)" are each other's orbitals$`, rc.areEachOthersOrbitals)
	ctx.Step(`^a ship with (\d+) of (\d+) fuel and engine speed (\d+) preferring cruise$`,
		rc.aShipWithFuelAndEngineSpeedPreferringCruise)
	ctx.Step(`^the ship plans a route from "([^"]*)" to "([^"]*)"$`, rc.theShipPlansARouteFromTo)
	ctx.Step(`^the route starts with a refuel at "([^"]*)"$`, rc.theRouteStartsWithARefuelAt)
	ctx.Step(`^every travel step uses flight mode "([^"]*)"$`, rc.everyTravelStepUsesFlightMode)
	ctx.Step(`^the route reaches "([^"]*)" with a total fuel cost of (\d+)$`, rc.theRouteReachesWithATotalFuelCostOf)
	ctx.Step(`^the route costs (\d+) fuel and (\d+) second$`, rc.theRouteCostsFuelAndSecond)
}
