package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"

	"github.com/acdtunes/fleetd/internal/adapters/persistence"
	"github.com/acdtunes/fleetd/internal/domain/shared"
	"github.com/acdtunes/fleetd/test/helpers"
)

type logDedupContext struct {
	repo  *persistence.GormContainerLogRepository
	clock *shared.MockClock
	start time.Time
}

func (lc *logDedupContext) reset() {
	if err := helpers.TruncateAllTables(); err != nil {
		panic(err)
	}
	lc.repo = nil
	lc.clock = nil
}

func (lc *logDedupContext) aContainerLogRepositoryWithAFakeClockStartingAt(timestamp string) error {
	start, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return fmt.Errorf("parsing start time: %w", err)
	}
	lc.start = start
	lc.clock = shared.NewMockClock(start)
	lc.repo = persistence.NewGormContainerLogRepository(helpers.SharedTestDB, lc.clock)
	return nil
}

func (lc *logDedupContext) containerLogsAtOffsetSeconds(containerID, message string, offsetSeconds int) error {
	lc.clock.SetTime(lc.start.Add(time.Duration(offsetSeconds) * time.Second))
	return lc.repo.Log(context.Background(), containerID, 1, message, "INFO", nil)
}

func (lc *logDedupContext) exactlyLogRowsArePersistedForContainer(count int, containerID string) error {
	entries, err := lc.repo.GetLogs(context.Background(), containerID, 1, 100, nil, nil)
	if err != nil {
		return fmt.Errorf("fetching logs: %w", err)
	}
	if len(entries) != count {
		return fmt.Errorf("expected %d persisted log rows, got %d", count, len(entries))
	}
	return nil
}

func InitializeLogDedupScenario(ctx *godog.ScenarioContext) {
	lc := &logDedupContext{}

	ctx.Before(func(goctx context.Context, sc *godog.Scenario) (context.Context, error) {
		lc.reset()
		return goctx, nil
	})

	ctx.Step(`^a container log repository with a fake clock starting at "([^"]*)"$`,
		lc.aContainerLogRepositoryWithAFakeClockStartingAt)
	ctx.Step(`^container "([^"]*)" logs "([^"]*)" at offset (\d+) seconds?$`,
		lc.containerLogsAtOffsetSeconds)
	ctx.Step(`^exactly (\d+) log rows are persisted for container "([^"]*)"$`,
		lc.exactlyLogRowsArePersistedForContainer)
}
