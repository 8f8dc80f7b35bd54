package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"

	"github.com/acdtunes/fleetd/internal/adapters/persistence"
	"github.com/acdtunes/fleetd/test/helpers"
)

type zombieSweepContext struct {
	repo       *persistence.ShipAssignmentRepositoryGORM
	shipSymbol string
	released   int
	err        error
}

func (zc *zombieSweepContext) reset() {
	if err := helpers.TruncateAllTables(); err != nil {
		panic(err)
	}
	zc.repo = persistence.NewShipAssignmentRepository(helpers.SharedTestDB)
	zc.shipSymbol = ""
	zc.released = 0
	zc.err = nil
}

func (zc *zombieSweepContext) aDatabaseWithAnActiveAssignmentForShipOnContainer(shipSymbol, containerID string) error {
	zc.shipSymbol = shipSymbol

	if err := helpers.SharedTestDB.Create(&persistence.PlayerModel{
		ID:          1,
		AgentSymbol: "TEST_AGENT",
		Token:       "token",
		CreatedAt:   time.Now(),
	}).Error; err != nil {
		return fmt.Errorf("seeding player: %w", err)
	}

	now := time.Now()
	model := &persistence.ShipAssignmentModel{
		ShipSymbol:  shipSymbol,
		PlayerID:    1,
		ContainerID: containerID,
		Status:      "active",
		AssignedAt:  &now,
	}
	// Insert directly into storage, bypassing the repository's own Assign
	// method, to model an assignment left over from a daemon process that
	// was killed without a clean shutdown.
	return helpers.SharedTestDB.Create(model).Error
}

func (zc *zombieSweepContext) theDaemonStartupSweepRuns() error {
	// Mirrors cmd/spacetraders-daemon/main.go's startup call.
	zc.released, zc.err = zc.repo.ReleaseAllActive(context.Background(), "daemon_restart")
	return zc.err
}

func (zc *zombieSweepContext) theAssignmentForShipIsReleasedWithReason(shipSymbol, reason string) error {
	if zc.err != nil {
		return fmt.Errorf("sweep failed: %w", zc.err)
	}
	if zc.released == 0 {
		return fmt.Errorf("expected at least one assignment to be released, got 0")
	}

	var model persistence.ShipAssignmentModel
	if err := helpers.SharedTestDB.Where("ship_symbol = ?", shipSymbol).First(&model).Error; err != nil {
		return fmt.Errorf("loading assignment for %s: %w", shipSymbol, err)
	}
	if model.Status != "released" {
		return fmt.Errorf("expected status released, got %s", model.Status)
	}
	if model.ReleaseReason != reason {
		return fmt.Errorf("expected release reason %q, got %q", reason, model.ReleaseReason)
	}
	if model.ReleasedAt == nil {
		return fmt.Errorf("expected released_at to be set")
	}

	active, err := zc.repo.ListActive(context.Background())
	if err != nil {
		return fmt.Errorf("listing active assignments: %w", err)
	}
	for _, a := range active {
		if a.ShipSymbol() == shipSymbol {
			return fmt.Errorf("expected %s to no longer be active", shipSymbol)
		}
	}
	return nil
}

func InitializeZombieSweepScenario(ctx *godog.ScenarioContext) {
	zc := &zombieSweepContext{}

	ctx.Before(func(goctx context.Context, sc *godog.Scenario) (context.Context, error) {
		zc.reset()
		return goctx, nil
	})

	ctx.Step(`^a database with an active assignment for ship "([^"]*)" on container "([^"]*)"$`,
		zc.aDatabaseWithAnActiveAssignmentForShipOnContainer)
	ctx.Step(`^the daemon startup sweep runs$`, zc.theDaemonStartupSweepRuns)
	ctx.Step(`^the assignment for ship "([^"]*)" is released with reason "([^"]*)"$`,
		zc.theAssignmentForShipIsReleasedWithReason)
}
