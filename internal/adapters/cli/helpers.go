package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/acdtunes/fleetd/internal/adapters/persistence"
	"github.com/acdtunes/fleetd/internal/infrastructure/config"
	"github.com/acdtunes/fleetd/internal/infrastructure/database"
)

// PlayerIdentifier holds player identification (either ID or agent symbol).
type PlayerIdentifier struct {
	PlayerID    int
	AgentSymbol string
}

// resolvePlayerIdentifier resolves player identification from flags or
// defaults. Priority: CLI flags (--player-id or --agent) > user config
// defaults. Returns an error only if no player can be identified.
func resolvePlayerIdentifier() (*PlayerIdentifier, error) {
	if playerID > 0 {
		return &PlayerIdentifier{PlayerID: playerID}, nil
	}
	if agentSymbol != "" {
		return &PlayerIdentifier{AgentSymbol: agentSymbol}, nil
	}

	handler, err := config.NewUserConfigHandler()
	if err != nil {
		return nil, fmt.Errorf("no player specified and failed to load user config: %w", err)
	}

	userCfg, err := handler.Load()
	if err != nil {
		return nil, fmt.Errorf("no player specified and failed to load user config: %w", err)
	}

	if userCfg.DefaultPlayerID != nil {
		return &PlayerIdentifier{PlayerID: *userCfg.DefaultPlayerID}, nil
	}
	if userCfg.DefaultAgent != "" {
		return &PlayerIdentifier{AgentSymbol: userCfg.DefaultAgent}, nil
	}

	return nil, fmt.Errorf("no player specified: use --player-id or --agent, or set a default with 'fleetctl config set-player'")
}

// resolvePlayerID resolves the caller's player ID as a bare int, looking it
// up in the database by agent symbol when only --agent was given. Control
// socket requests are keyed by numeric player ID, not agent symbol.
func resolvePlayerID() (int, error) {
	ident, err := resolvePlayerIdentifier()
	if err != nil {
		return 0, err
	}
	if ident.PlayerID > 0 {
		return ident.PlayerID, nil
	}

	cfg, err := config.LoadConfig("")
	if err != nil {
		return 0, fmt.Errorf("failed to load config: %w", err)
	}
	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to database: %w", err)
	}

	playerRepo := persistence.NewGormPlayerRepository(db)
	player, err := playerRepo.FindByAgentSymbol(context.Background(), ident.AgentSymbol)
	if err != nil {
		return 0, fmt.Errorf("player with agent %q not found: %w", ident.AgentSymbol, err)
	}
	return player.ID, nil
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
