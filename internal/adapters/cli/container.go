package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acdtunes/fleetd/internal/adapters/controlsocket"
)

// NewContainerCommand creates the container command with subcommands
func NewContainerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "container",
		Short: "Manage background containers",
		Long:  `Manage background containers running workloads like navigation, scouting, and contract fulfillment.`,
	}

	cmd.AddCommand(newContainerListCommand())
	cmd.AddCommand(newContainerGetCommand())
	cmd.AddCommand(newContainerStopCommand())
	cmd.AddCommand(newContainerRemoveCommand())
	cmd.AddCommand(newContainerLogsCommand())

	return cmd
}

func newContainerListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all containers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newDaemonClient()

			var params controlsocket.ListParams
			if playerID > 0 {
				params.PlayerID = &playerID
			}

			var result controlsocket.ListResult
			if err := client.Call(controlsocket.MethodContainerList, params, &result); err != nil {
				return fmt.Errorf("failed to list containers: %w", err)
			}

			if len(result.Containers) == 0 {
				fmt.Println("No containers found")
				return nil
			}

			fmt.Printf("%-36s %-28s %-10s %-8s\n", "CONTAINER ID", "TYPE", "STATUS", "RESTARTS")
			fmt.Println("─────────────────────────────────────────────────────────────────────────────────")
			for _, c := range result.Containers {
				fmt.Printf("%-36s %-28s %-10s %-8d\n",
					truncate(c.ID, 36), c.Type, c.Status, c.RestartCount)
			}
			fmt.Printf("\nTotal: %d containers\n", len(result.Containers))

			return nil
		},
	}
	return cmd
}

func newContainerGetCommand() *cobra.Command {
	var logLimit int

	cmd := &cobra.Command{
		Use:   "get <container-id>",
		Short: "Get detailed container information",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := resolvePlayerID()
			if err != nil {
				return err
			}

			client := newDaemonClient()
			params := controlsocket.InspectParams{ContainerID: args[0], PlayerID: pid, LogLimit: logLimit}

			var result controlsocket.InspectResult
			if err := client.Call(controlsocket.MethodContainerInspect, params, &result); err != nil {
				return fmt.Errorf("failed to inspect container: %w", err)
			}

			fmt.Printf("Container: %s\n", result.ID)
			fmt.Println("══════════════════════════════════════════════")
			fmt.Printf("  Type:            %s\n", result.Type)
			fmt.Printf("  Status:          %s\n", result.Status)
			fmt.Printf("  Player ID:       %d\n", result.PlayerID)
			fmt.Printf("  Restart Policy:  %s\n", result.RestartPolicy)
			fmt.Printf("  Restart Count:   %d\n", result.RestartCount)
			if result.StartedAt != nil {
				fmt.Printf("  Started At:      %s\n", *result.StartedAt)
			}
			if result.StoppedAt != nil {
				fmt.Printf("  Stopped At:      %s\n", *result.StoppedAt)
			}
			if result.ExitCode != nil {
				fmt.Printf("  Exit Code:       %d\n", *result.ExitCode)
			}
			if result.ExitReason != "" {
				fmt.Printf("  Exit Reason:     %s\n", result.ExitReason)
			}
			if result.Config != "" {
				fmt.Printf("\nConfig:\n%s\n", result.Config)
			}

			if len(result.Logs) > 0 {
				fmt.Println("\nRecent logs:")
				for _, l := range result.Logs {
					fmt.Printf("[%s] [%s] %s\n", l.Timestamp, l.Level, l.Message)
				}
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&logLimit, "log-limit", 10, "Number of recent log lines to include")
	return cmd
}

func newContainerStopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop <container-id>",
		Short: "Stop a running container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := resolvePlayerID()
			if err != nil {
				return err
			}

			client := newDaemonClient()
			params := controlsocket.StopParams{ContainerID: args[0], PlayerID: pid}

			var result controlsocket.StopResult
			if err := client.Call(controlsocket.MethodContainerStop, params, &result); err != nil {
				return fmt.Errorf("failed to stop container: %w", err)
			}

			fmt.Printf("✓ Container stopped: %s\n", result.ContainerID)
			fmt.Printf("  Status: %s\n", result.Status)

			return nil
		},
	}
	return cmd
}

func newContainerRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <container-id>",
		Short: "Remove a stopped container's record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := resolvePlayerID()
			if err != nil {
				return err
			}

			client := newDaemonClient()
			params := controlsocket.RemoveParams{ContainerID: args[0], PlayerID: pid}

			var result controlsocket.RemoveResult
			if err := client.Call(controlsocket.MethodContainerRemove, params, &result); err != nil {
				return fmt.Errorf("failed to remove container: %w", err)
			}

			fmt.Printf("✓ Container removed: %s\n", result.ContainerID)
			return nil
		},
	}
	return cmd
}

func newContainerLogsCommand() *cobra.Command {
	var (
		limit int
		level string
	)

	cmd := &cobra.Command{
		Use:   "logs <container-id>",
		Short: "Get logs from a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := resolvePlayerID()
			if err != nil {
				return err
			}

			client := newDaemonClient()
			params := controlsocket.LogsParams{ContainerID: args[0], PlayerID: pid, Limit: limit}
			if level != "" {
				params.Level = &level
			}

			var result controlsocket.LogsResult
			if err := client.Call(controlsocket.MethodContainerLogs, params, &result); err != nil {
				return fmt.Errorf("failed to get logs: %w", err)
			}

			if len(result.Logs) == 0 {
				fmt.Println("No logs found for container:", args[0])
				return nil
			}

			for i := len(result.Logs) - 1; i >= 0; i-- {
				l := result.Logs[i]
				fmt.Printf("[%s] [%s] %s\n", l.Timestamp, l.Level, l.Message)
			}
			fmt.Printf("\nTotal: %d log entries\n", len(result.Logs))

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of log entries")
	cmd.Flags().StringVar(&level, "level", "", "Filter by log level (INFO, WARN, ERROR, DEBUG)")

	return cmd
}
