package steps

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"

	"github.com/acdtunes/fleetd/internal/domain/container"
	"github.com/acdtunes/fleetd/internal/domain/shared"
)

type shipAssignmentContext struct {
	manager *container.ShipAssignmentManager
	err     error
}

func (sac *shipAssignmentContext) reset() {
	sac.manager = container.NewShipAssignmentManager(shared.NewRealClock())
	sac.err = nil
}

func (sac *shipAssignmentContext) anAssignmentManager() error {
	return nil
}

func (sac *shipAssignmentContext) containerAssignsShip(containerID, shipSymbol string) error {
	_, sac.err = sac.manager.AssignShip(context.Background(), shipSymbol, 1, containerID)
	return nil
}

func (sac *shipAssignmentContext) theAssignmentSucceeds() error {
	if sac.err != nil {
		return fmt.Errorf("expected assignment to succeed, got error: %w", sac.err)
	}
	return nil
}

func (sac *shipAssignmentContext) theAssignmentFailsWith(message string) error {
	if sac.err == nil {
		return fmt.Errorf("expected assignment to fail with %q, but it succeeded", message)
	}
	if sac.err.Error() != message {
		return fmt.Errorf("expected error %q, got %q", message, sac.err.Error())
	}
	return nil
}

func (sac *shipAssignmentContext) containerReleasesShip(containerID, shipSymbol string) error {
	return sac.manager.ReleaseAssignment(shipSymbol, "released_by_"+containerID)
}

func InitializeShipAssignmentScenario(ctx *godog.ScenarioContext) {
	sac := &shipAssignmentContext{}

	ctx.Before(func(goctx context.Context, sc *godog.Scenario) (context.Context, error) {
		sac.reset()
		return goctx, nil
	})

	ctx.Step(`^an assignment manager$`, sac.anAssignmentManager)
	ctx.Step(`^container "([^"]*)" assigns ship "([^"]*)"$`, sac.containerAssignsShip)
	ctx.Step(`^the assignment succeeds$`, sac.theAssignmentSucceeds)
	ctx.Step(`^the assignment fails with "([^"]*)"$`, sac.theAssignmentFailsWith)
	ctx.Step(`^container "([^"]*)" releases ship "([^"]*)"$`, sac.containerReleasesShip)
}
