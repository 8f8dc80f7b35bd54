package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	socketPath  string
	playerID    int
	agentSymbol string
	verbose     bool
)

// NewRootCommand creates the root command for the CLI
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fleetctl",
		Short: "fleetctl - interact with the fleetd daemon",
		Long: `fleetctl talks to the fleetd daemon over its Unix control socket.

Examples:
  fleetctl workflow navigate --ship AGENT-1 --destination X1-GZ7-B1
  fleetctl workflow scout-markets --system X1-GZ7 --ships AGENT-1,AGENT-2 --markets X1-GZ7-A1,X1-GZ7-A2
  fleetctl container list
  fleetctl container logs <container-id>
  fleetctl health`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", getDefaultSocketPath(),
		"Path to the daemon's Unix control socket")
	rootCmd.PersistentFlags().IntVar(&playerID, "player-id", 0,
		"Player ID (alternative to --agent; defaults to the configured default player)")
	rootCmd.PersistentFlags().StringVar(&agentSymbol, "agent", "",
		"Agent symbol (alternative to --player-id)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose output")

	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewContainerCommand())
	rootCmd.AddCommand(NewHealthCommand())
	rootCmd.AddCommand(NewWorkflowCommand())

	return rootCmd
}

func getDefaultSocketPath() string {
	if path := os.Getenv("FLEETD_SOCKET"); path != "" {
		return path
	}
	return "/tmp/spacetraders-daemon.sock"
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
