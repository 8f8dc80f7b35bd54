package config

import "time"

// RoutingConfig holds timeout bounds for the in-process routing engine's
// pathfinding and tour/fleet optimization operations.
type RoutingConfig struct {
	Timeout RoutingTimeoutConfig `mapstructure:"timeout"`
}

// RoutingTimeoutConfig bounds each routing operation so a pathological
// waypoint graph can't stall a container indefinitely.
type RoutingTimeoutConfig struct {
	// Dijkstra pathfinding timeout
	Dijkstra time.Duration `mapstructure:"dijkstra" validate:"required"`

	// TSP (tour optimization) timeout
	TSP time.Duration `mapstructure:"tsp" validate:"required"`

	// VRP (fleet partitioning) timeout
	VRP time.Duration `mapstructure:"vrp" validate:"required"`
}
