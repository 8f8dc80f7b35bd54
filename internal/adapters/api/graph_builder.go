package api

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/acdtunes/fleetd/internal/domain/player"
	"github.com/acdtunes/fleetd/internal/domain/shared"
	"github.com/acdtunes/fleetd/internal/domain/system"
	"github.com/acdtunes/fleetd/internal/infrastructure/ports"
)

// GraphBuilder builds system navigation graphs from API data
type GraphBuilder struct {
	apiClient    ports.APIClient
	playerRepo   player.PlayerRepository
	waypointRepo system.WaypointRepository
}

func NewGraphBuilder(
	apiClient ports.APIClient,
	playerRepo player.PlayerRepository,
	waypointRepo system.WaypointRepository,
) system.IGraphBuilder {
	return &GraphBuilder{
		apiClient:    apiClient,
		playerRepo:   playerRepo,
		waypointRepo: waypointRepo,
	}
}

func euclideanDistance(x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	return math.Sqrt(dx*dx + dy*dy)
}

// BuildSystemGraph fetches all waypoints from API (paginated until an empty
// page) and builds a NavigationGraph, caching waypoint trait data in the
// waypoint repository along the way.
func (b *GraphBuilder) BuildSystemGraph(ctx context.Context, systemSymbol string, playerID int) (*system.NavigationGraph, error) {
	log.Printf("Building graph for system %s...", systemSymbol)

	p, err := b.playerRepo.FindByID(ctx, shared.MustNewPlayerID(playerID))
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	var allWaypoints []system.WaypointAPIData
	page := 1
	limit := 20

	for {
		result, err := b.apiClient.ListWaypoints(ctx, systemSymbol, p.Token, page, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch waypoints page %d: %w", page, err)
		}
		if len(result.Data) == 0 {
			break
		}
		allWaypoints = append(allWaypoints, result.Data...)
		page++
	}

	if len(allWaypoints) == 0 {
		return nil, fmt.Errorf("no waypoints found for system %s", systemSymbol)
	}

	graph := system.NewNavigationGraph(systemSymbol)
	waypointObjects := make([]*shared.Waypoint, 0, len(allWaypoints))

	for _, wp := range allWaypoints {
		orbitals := make([]string, 0, len(wp.Orbitals))
		for _, orbital := range wp.Orbitals {
			if symbol, ok := orbital["symbol"]; ok {
				orbitals = append(orbitals, symbol)
			}
		}

		traits := make([]string, 0, len(wp.Traits))
		for _, trait := range wp.Traits {
			if symbolRaw, ok := trait["symbol"]; ok {
				if symbolStr, ok := symbolRaw.(string); ok {
					traits = append(traits, symbolStr)
				}
			}
		}

		hasFuel := false
		for _, trait := range traits {
			if trait == "MARKETPLACE" || trait == "FUEL_STATION" {
				hasFuel = true
				break
			}
		}

		waypointObj, err := shared.NewWaypoint(wp.Symbol, wp.X, wp.Y)
		if err != nil {
			log.Printf("Warning: failed to create waypoint %s: %v", wp.Symbol, err)
			continue
		}
		waypointObj.SystemSymbol = systemSymbol
		waypointObj.Type = wp.Type
		waypointObj.Traits = traits
		waypointObj.HasFuel = hasFuel
		waypointObj.Orbitals = orbitals

		graph.AddWaypoint(waypointObj)
		waypointObjects = append(waypointObjects, waypointObj)
	}

	symbols := make([]string, 0, len(graph.Waypoints))
	for symbol := range graph.Waypoints {
		symbols = append(symbols, symbol)
	}

	for i, s1 := range symbols {
		wp1 := graph.Waypoints[s1]
		for _, s2 := range symbols[i+1:] {
			wp2 := graph.Waypoints[s2]

			isOrbital := wp1.IsOrbitalOf(wp2)
			distance := 0.0
			edgeType := system.EdgeTypeOrbital
			if !isOrbital {
				distance = math.Round(euclideanDistance(wp1.X, wp1.Y, wp2.X, wp2.Y)*100) / 100
				edgeType = system.EdgeTypeNormal
			}

			graph.AddEdge(s1, s2, distance, edgeType)
		}
	}

	for _, wp := range waypointObjects {
		if err := b.waypointRepo.Add(ctx, wp); err != nil {
			log.Printf("Warning: failed to cache waypoint %s: %v", wp.Symbol, err)
		}
	}

	fuelStations := len(graph.GetFuelStations())
	log.Printf("Graph built for %s: %d waypoints, %d edges, %d fuel stations",
		systemSymbol, graph.WaypointCount(), graph.EdgeCount(), fuelStations)

	return graph, nil
}
