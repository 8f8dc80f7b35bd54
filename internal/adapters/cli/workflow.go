package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/acdtunes/fleetd/internal/adapters/controlsocket"
	"github.com/acdtunes/fleetd/internal/domain/container"
	"github.com/acdtunes/fleetd/pkg/utils"
)

// NewWorkflowCommand groups the commands that create containers for each
// workload type the daemon knows how to run (§4.I container_type tags).
func NewWorkflowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Start a container running a fleet workload",
		Long: `Start a background container running one of the daemon's workloads.

Each subcommand maps to a container_type tag understood by the supervisor;
the container is created and the daemon takes it from there. Use
"fleetctl container logs <id>" and "fleetctl container get <id>" to follow
its progress.`,
	}

	cmd.AddCommand(newNavigateCommand())
	cmd.AddCommand(newDockCommand())
	cmd.AddCommand(newOrbitCommand())
	cmd.AddCommand(newRefuelCommand())
	cmd.AddCommand(newPurchaseShipCommand())
	cmd.AddCommand(newBatchPurchaseShipsCommand())
	cmd.AddCommand(newBatchContractCommand())
	cmd.AddCommand(newScoutMarketsCommand())
	cmd.AddCommand(newMarketLiquidityExperimentCommand())

	return cmd
}

func containerID(containerType container.ContainerType, ship string) string {
	return utils.GenerateContainerID(strings.ToLower(string(containerType)), ship)
}

func createContainer(pid int, containerType container.ContainerType, id string, config map[string]interface{}) (string, error) {
	client := newDaemonClient()
	params := controlsocket.CreateParams{
		ContainerID:   id,
		PlayerID:      pid,
		ContainerType: string(containerType),
		Config:        config,
	}

	var result controlsocket.CreateResult
	if err := client.Call(controlsocket.MethodContainerCreate, params, &result); err != nil {
		return "", err
	}
	return result.ContainerID, nil
}

func reportCreated(containerID string) {
	fmt.Printf("✓ Container started: %s\n", containerID)
	fmt.Println("  Use 'fleetctl container logs " + containerID + "' to follow progress")
}

func newNavigateCommand() *cobra.Command {
	var ship, destination string

	cmd := &cobra.Command{
		Use:   "navigate",
		Short: "Navigate a ship to a waypoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := resolvePlayerID()
			if err != nil {
				return err
			}
			id := containerID(container.ContainerTypeNavigateShip, ship)
			cid, err := createContainer(pid, container.ContainerTypeNavigateShip, id, map[string]interface{}{
				"ship_symbol": ship,
				"destination": destination,
			})
			if err != nil {
				return fmt.Errorf("failed to start navigation: %w", err)
			}
			reportCreated(cid)
			return nil
		},
	}
	cmd.Flags().StringVar(&ship, "ship", "", "Ship symbol to navigate (required)")
	cmd.Flags().StringVar(&destination, "destination", "", "Destination waypoint symbol (required)")
	cmd.MarkFlagRequired("ship")
	cmd.MarkFlagRequired("destination")
	return cmd
}

func newDockCommand() *cobra.Command {
	var ship string

	cmd := &cobra.Command{
		Use:   "dock",
		Short: "Dock a ship at its current waypoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := resolvePlayerID()
			if err != nil {
				return err
			}
			id := containerID(container.ContainerTypeDockShip, ship)
			cid, err := createContainer(pid, container.ContainerTypeDockShip, id, map[string]interface{}{
				"ship_symbol": ship,
			})
			if err != nil {
				return fmt.Errorf("failed to start dock: %w", err)
			}
			reportCreated(cid)
			return nil
		},
	}
	cmd.Flags().StringVar(&ship, "ship", "", "Ship symbol to dock (required)")
	cmd.MarkFlagRequired("ship")
	return cmd
}

func newOrbitCommand() *cobra.Command {
	var ship string

	cmd := &cobra.Command{
		Use:   "orbit",
		Short: "Put a ship into orbit at its current waypoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := resolvePlayerID()
			if err != nil {
				return err
			}
			id := containerID(container.ContainerTypeOrbitShip, ship)
			cid, err := createContainer(pid, container.ContainerTypeOrbitShip, id, map[string]interface{}{
				"ship_symbol": ship,
			})
			if err != nil {
				return fmt.Errorf("failed to start orbit: %w", err)
			}
			reportCreated(cid)
			return nil
		},
	}
	cmd.Flags().StringVar(&ship, "ship", "", "Ship symbol to put into orbit (required)")
	cmd.MarkFlagRequired("ship")
	return cmd
}

func newRefuelCommand() *cobra.Command {
	var ship string
	var units int

	cmd := &cobra.Command{
		Use:   "refuel",
		Short: "Refuel a ship at its current waypoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := resolvePlayerID()
			if err != nil {
				return err
			}
			cfg := map[string]interface{}{"ship_symbol": ship}
			if units > 0 {
				cfg["units"] = units
			}
			id := containerID(container.ContainerTypeRefuelShip, ship)
			cid, err := createContainer(pid, container.ContainerTypeRefuelShip, id, cfg)
			if err != nil {
				return fmt.Errorf("failed to start refuel: %w", err)
			}
			reportCreated(cid)
			return nil
		},
	}
	cmd.Flags().StringVar(&ship, "ship", "", "Ship symbol to refuel (required)")
	cmd.Flags().IntVar(&units, "units", 0, "Fuel units to buy (0 = fill the tank)")
	cmd.MarkFlagRequired("ship")
	return cmd
}

func newPurchaseShipCommand() *cobra.Command {
	var purchasingShip, shipType, shipyard string

	cmd := &cobra.Command{
		Use:   "purchase-ship",
		Short: "Purchase a single ship from a shipyard",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := resolvePlayerID()
			if err != nil {
				return err
			}
			cfg := map[string]interface{}{
				"purchasing_ship": purchasingShip,
				"ship_type":       shipType,
			}
			if shipyard != "" {
				cfg["shipyard"] = shipyard
			}
			id := containerID(container.ContainerTypePurchaseShip, purchasingShip)
			cid, err := createContainer(pid, container.ContainerTypePurchaseShip, id, cfg)
			if err != nil {
				return fmt.Errorf("failed to start ship purchase: %w", err)
			}
			reportCreated(cid)
			return nil
		},
	}
	cmd.Flags().StringVar(&purchasingShip, "purchasing-ship", "", "Ship whose location sets the shipyard (required)")
	cmd.Flags().StringVar(&shipType, "ship-type", "", "Ship type to purchase (required)")
	cmd.Flags().StringVar(&shipyard, "shipyard", "", "Shipyard waypoint symbol (defaults to the purchasing ship's location)")
	cmd.MarkFlagRequired("purchasing-ship")
	cmd.MarkFlagRequired("ship-type")
	return cmd
}

func newBatchPurchaseShipsCommand() *cobra.Command {
	var purchasingShip, shipType, shipyard string
	var quantity, maxBudget int

	cmd := &cobra.Command{
		Use:   "batch-purchase-ships",
		Short: "Purchase several ships of the same type in one container",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := resolvePlayerID()
			if err != nil {
				return err
			}
			cfg := map[string]interface{}{
				"purchasing_ship": purchasingShip,
				"ship_type":       shipType,
				"quantity":        quantity,
			}
			if shipyard != "" {
				cfg["shipyard"] = shipyard
			}
			if maxBudget > 0 {
				cfg["max_budget"] = maxBudget
			}
			id := containerID(container.ContainerTypeBatchPurchaseShips, purchasingShip)
			cid, err := createContainer(pid, container.ContainerTypeBatchPurchaseShips, id, cfg)
			if err != nil {
				return fmt.Errorf("failed to start batch ship purchase: %w", err)
			}
			reportCreated(cid)
			return nil
		},
	}
	cmd.Flags().StringVar(&purchasingShip, "purchasing-ship", "", "Ship whose location sets the shipyard (required)")
	cmd.Flags().StringVar(&shipType, "ship-type", "", "Ship type to purchase (required)")
	cmd.Flags().StringVar(&shipyard, "shipyard", "", "Shipyard waypoint symbol")
	cmd.Flags().IntVar(&quantity, "quantity", 1, "Number of ships to purchase")
	cmd.Flags().IntVar(&maxBudget, "max-budget", 0, "Stop purchasing once this many credits have been spent (0 = no limit)")
	cmd.MarkFlagRequired("purchasing-ship")
	cmd.MarkFlagRequired("ship-type")
	return cmd
}

func newBatchContractCommand() *cobra.Command {
	var ship string
	var iterations int

	cmd := &cobra.Command{
		Use:   "batch-contract",
		Short: "Repeatedly fulfill contracts with a ship",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := resolvePlayerID()
			if err != nil {
				return err
			}
			id := containerID(container.ContainerTypeBatchContract, ship)
			cid, err := createContainer(pid, container.ContainerTypeBatchContract, id, map[string]interface{}{
				"ship_symbol": ship,
				"iterations":  iterations,
			})
			if err != nil {
				return fmt.Errorf("failed to start batch contract: %w", err)
			}
			reportCreated(cid)
			return nil
		},
	}
	cmd.Flags().StringVar(&ship, "ship", "", "Ship symbol to run contracts with (required)")
	cmd.Flags().IntVar(&iterations, "iterations", 1, "Number of contract cycles to run")
	cmd.MarkFlagRequired("ship")
	return cmd
}

func newScoutMarketsCommand() *cobra.Command {
	var system, ships, markets string
	var iterations int
	var returnToStart bool

	cmd := &cobra.Command{
		Use:   "scout-markets",
		Short: "Tour a fleet of ships through a system's markets, refreshing prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := resolvePlayerID()
			if err != nil {
				return err
			}
			shipList := splitCSV(ships)
			if len(shipList) == 0 {
				return fmt.Errorf("--ships must list at least one ship symbol")
			}
			id := containerID(container.ContainerTypeScoutMarkets, shipList[0])
			cid, err := createContainer(pid, container.ContainerTypeScoutMarkets, id, map[string]interface{}{
				"system_symbol":   system,
				"ships":           toInterfaceSlice(shipList),
				"markets":         toInterfaceSlice(splitCSV(markets)),
				"iterations":      iterations,
				"return_to_start": returnToStart,
			})
			if err != nil {
				return fmt.Errorf("failed to start market scout: %w", err)
			}
			reportCreated(cid)
			return nil
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "System symbol to scout (required)")
	cmd.Flags().StringVar(&ships, "ships", "", "Comma-separated ship symbols (required)")
	cmd.Flags().StringVar(&markets, "markets", "", "Comma-separated waypoint symbols to visit (required)")
	cmd.Flags().IntVar(&iterations, "iterations", 1, "Number of tour iterations")
	cmd.Flags().BoolVar(&returnToStart, "return-to-start", false, "Return each ship to its starting waypoint after the tour")
	cmd.MarkFlagRequired("system")
	cmd.MarkFlagRequired("ships")
	cmd.MarkFlagRequired("markets")
	return cmd
}

func newMarketLiquidityExperimentCommand() *cobra.Command {
	var system, ships string
	var iterationsPerBatch int

	cmd := &cobra.Command{
		Use:   "market-liquidity-experiment",
		Short: "Run the adaptive trade-route discovery experiment",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := resolvePlayerID()
			if err != nil {
				return err
			}
			shipList := splitCSV(ships)
			if len(shipList) == 0 {
				return fmt.Errorf("--ships must list at least one ship symbol")
			}
			id := containerID(container.ContainerTypeMarketLiquidityExperiment, shipList[0])
			cfg := map[string]interface{}{
				"system_symbol": system,
				"ships":         toInterfaceSlice(shipList),
			}
			if iterationsPerBatch > 0 {
				cfg["iterations_per_batch"] = iterationsPerBatch
			}
			cid, err := createContainer(pid, container.ContainerTypeMarketLiquidityExperiment, id, cfg)
			if err != nil {
				return fmt.Errorf("failed to start market liquidity experiment: %w", err)
			}
			reportCreated(cid)
			return nil
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "System symbol to experiment in (required)")
	cmd.Flags().StringVar(&ships, "ships", "", "Comma-separated ship symbols (required)")
	cmd.Flags().IntVar(&iterationsPerBatch, "iterations-per-batch", 0, "Work queue pairs claimed per worker batch (0 = handler default)")
	cmd.MarkFlagRequired("system")
	cmd.MarkFlagRequired("ships")
	return cmd
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
