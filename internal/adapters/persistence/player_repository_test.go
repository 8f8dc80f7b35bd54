package persistence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acdtunes/fleetd/internal/adapters/persistence"
	"github.com/acdtunes/fleetd/internal/domain/player"
	"github.com/acdtunes/fleetd/internal/domain/shared"
	"github.com/acdtunes/fleetd/test/helpers"
)

func TestPlayerRepository_AddAndFind(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormPlayerRepository(db)

	p := &player.Player{
		ID:          1,
		AgentSymbol: "TEST-AGENT",
		Token:       "test-token-123",
		Credits:     100000,
		Metadata: map[string]interface{}{
			"faction": "COSMIC",
		},
	}

	err := repo.Add(context.Background(), p)
	require.NoError(t, err)

	found, err := repo.FindByID(context.Background(), shared.MustNewPlayerID(1))
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)
	assert.Equal(t, p.AgentSymbol, found.AgentSymbol)
	assert.Equal(t, p.Token, found.Token)
	assert.NotNil(t, found.Metadata)
}

func TestPlayerRepository_FindByAgentSymbol(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormPlayerRepository(db)

	p := &player.Player{
		ID:          2,
		AgentSymbol: "AGENT-2",
		Token:       "token-456",
	}

	err := repo.Add(context.Background(), p)
	require.NoError(t, err)

	found, err := repo.FindByAgentSymbol(context.Background(), "AGENT-2")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)
	assert.Equal(t, p.AgentSymbol, found.AgentSymbol)
}

func TestPlayerRepository_NotFound(t *testing.T) {
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormPlayerRepository(db)

	_, err := repo.FindByID(context.Background(), shared.MustNewPlayerID(999))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "player not found")
}
