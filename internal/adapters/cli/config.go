package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acdtunes/fleetd/internal/adapters/persistence"
	"github.com/acdtunes/fleetd/internal/domain/shared"
	"github.com/acdtunes/fleetd/internal/infrastructure/config"
	"github.com/acdtunes/fleetd/internal/infrastructure/database"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long: `Manage fleetd configuration settings.

Configuration is loaded from multiple sources with priority:
1. Environment variables (ST_* prefix)
2. Config file (config.yaml)
3. Default values

User preferences (default player) are stored in ~/.spacetraders/config.json`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetPlayerCommand())
	cmd.AddCommand(newConfigClearPlayerCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig("")
			if err != nil {
				fmt.Printf("Warning: failed to load config: %v\n", err)
				fmt.Println("Using default configuration.")
				cfg = config.LoadConfigOrDefault("")
			}

			userConfigHandler, err := config.NewUserConfigHandler()
			if err != nil {
				return fmt.Errorf("failed to create user config handler: %w", err)
			}

			userCfg, err := userConfigHandler.Load()
			if err != nil {
				fmt.Printf("Warning: failed to load user config: %v\n\n", err)
				userCfg = &config.UserConfig{}
			}

			fmt.Println("fleetd Configuration")
			fmt.Println("====================")

			fmt.Println("User Preferences:")
			fmt.Printf("  Config file:      %s\n", userConfigHandler.GetConfigPath())
			if userCfg.DefaultPlayerID != nil {
				fmt.Printf("  Default Player:   ID=%d\n", *userCfg.DefaultPlayerID)
			} else if userCfg.DefaultAgent != "" {
				fmt.Printf("  Default Player:   Agent=%s\n", userCfg.DefaultAgent)
			} else {
				fmt.Printf("  Default Player:   (not set)\n")
			}

			fmt.Println("\nDatabase:")
			fmt.Printf("  Type:             %s\n", cfg.Database.Type)
			fmt.Printf("  Max Connections:  %d\n", cfg.Database.Pool.MaxOpen)

			fmt.Println("\nSpaceTraders API:")
			fmt.Printf("  Base URL:         %s\n", cfg.API.BaseURL)
			fmt.Printf("  Timeout:          %s\n", cfg.API.Timeout)
			fmt.Printf("  Rate Limit:       %d req/s (burst: %d)\n",
				cfg.API.RateLimit.Requests, cfg.API.RateLimit.Burst)
			fmt.Printf("  Max Retries:      %d\n", cfg.API.Retry.MaxAttempts)

			fmt.Println("\nDaemon:")
			fmt.Printf("  Socket Path:      %s\n", cfg.Daemon.SocketPath)
			fmt.Printf("  Max Containers:   %d\n", cfg.Daemon.MaxContainers)
			fmt.Printf("  Health Interval:  %s\n", cfg.Daemon.HealthCheckInterval)

			fmt.Println("\nLogging:")
			fmt.Printf("  Level:            %s\n", cfg.Logging.Level)
			fmt.Printf("  Format:           %s\n", cfg.Logging.Format)
			fmt.Printf("  Output:           %s\n", cfg.Logging.Output)

			fmt.Println("\nMetrics:")
			fmt.Printf("  Enabled:          %t\n", cfg.Metrics.Enabled)
			if cfg.Metrics.Enabled {
				fmt.Printf("  Endpoint:         %s:%d%s\n", cfg.Metrics.Host, cfg.Metrics.Port, cfg.Metrics.Path)
			}

			return nil
		},
	}

	return cmd
}

func newConfigSetPlayerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-player",
		Short: "Set default player",
		Long: `Set the default player to use for commands.

Examples:
  fleetctl config set-player --player-id 1
  fleetctl config set-player --agent ENDURANCE`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if playerID == 0 && agentSymbol == "" {
				return fmt.Errorf("either --player-id or --agent flag is required")
			}

			userConfigHandler, err := config.NewUserConfigHandler()
			if err != nil {
				return fmt.Errorf("failed to create user config handler: %w", err)
			}

			cfg, err := config.LoadConfig("")
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := database.NewConnection(&cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}

			playerRepo := persistence.NewGormPlayerRepository(db)
			ctx := context.Background()

			var resolvedID int
			var resolvedAgent string

			if playerID > 0 {
				pid, err := shared.NewPlayerID(playerID)
				if err != nil {
					return fmt.Errorf("invalid player ID %d: %w", playerID, err)
				}
				p, err := playerRepo.FindByID(ctx, pid)
				if err != nil {
					return fmt.Errorf("player with ID %d not found", playerID)
				}
				resolvedID, resolvedAgent = p.ID, p.AgentSymbol

				if err := userConfigHandler.SetDefaultPlayer(playerID); err != nil {
					return fmt.Errorf("failed to set default player: %w", err)
				}
			} else {
				p, err := playerRepo.FindByAgentSymbol(ctx, agentSymbol)
				if err != nil {
					return fmt.Errorf("player with agent %q not found", agentSymbol)
				}
				resolvedID, resolvedAgent = p.ID, p.AgentSymbol

				if err := userConfigHandler.SetDefaultAgent(agentSymbol); err != nil {
					return fmt.Errorf("failed to set default agent: %w", err)
				}
				if err := userConfigHandler.SetDefaultPlayer(p.ID); err != nil {
					return fmt.Errorf("failed to set default player ID: %w", err)
				}
			}

			fmt.Println("✓ Default player set successfully")
			fmt.Printf("  Player ID:    %d\n", resolvedID)
			fmt.Printf("  Agent Symbol: %s\n", resolvedAgent)

			return nil
		},
	}

	return cmd
}

func newConfigClearPlayerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear-player",
		Short: "Clear default player setting",
		RunE: func(cmd *cobra.Command, args []string) error {
			userConfigHandler, err := config.NewUserConfigHandler()
			if err != nil {
				return fmt.Errorf("failed to create user config handler: %w", err)
			}

			if err := userConfigHandler.ClearDefaultPlayer(); err != nil {
				return fmt.Errorf("failed to clear default player: %w", err)
			}

			fmt.Println("✓ Default player cleared")
			return nil
		},
	}

	return cmd
}
