package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acdtunes/fleetd/internal/adapters/controlsocket"
)

// NewHealthCommand creates the health command
func NewHealthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check daemon health status",
		Long:  `Verify that the daemon is running and responsive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newDaemonClient()

			var result controlsocket.HealthResult
			if err := client.Call(controlsocket.MethodDaemonHealth, nil, &result); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			fmt.Println("✓ Daemon is healthy")
			fmt.Printf("  Status:            %s\n", result.Status)
			fmt.Printf("  Version:           %s\n", result.Version)
			fmt.Printf("  Active Containers: %d\n", result.ActiveContainers)

			return nil
		},
	}

	return cmd
}
