package bdd

import (
	"os"
	"testing"

	"github.com/cucumber/godog"

	"github.com/acdtunes/fleetd/test/bdd/steps"
	"github.com/acdtunes/fleetd/test/helpers"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	steps.InitializeRoutingScenario(sc)
	steps.InitializeShipAssignmentScenario(sc)
	steps.InitializeZombieSweepScenario(sc)
	steps.InitializeWorkQueueScenario(sc)
	steps.InitializeLogDedupScenario(sc)
}

func TestMain(m *testing.M) {
	if err := helpers.InitializeSharedTestDB(); err != nil {
		panic("Failed to initialize shared test database: " + err.Error())
	}
	defer helpers.CloseSharedTestDB()

	os.Exit(m.Run())
}
