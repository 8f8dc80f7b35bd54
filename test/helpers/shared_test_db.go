package helpers

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/acdtunes/fleetd/internal/adapters/persistence"
)

// SharedTestDB is the singleton database instance used across the BDD suite.
var SharedTestDB *gorm.DB

// InitializeSharedTestDB creates and migrates the shared test database.
// Called once in TestMain before any scenario runs.
func InitializeSharedTestDB() error {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to open shared test database: %w", err)
	}

	err = db.AutoMigrate(
		&persistence.PlayerModel{},
		&persistence.WaypointModel{},
		&persistence.ShipModel{},
		&persistence.ContainerModel{},
		&persistence.ContainerLogModel{},
		&persistence.ShipAssignmentModel{},
		&persistence.SystemGraphModel{},
		&persistence.MarketData{},
		&persistence.ContractModel{},
		&persistence.ContractPurchaseHistoryModel{},
		&persistence.MarketPriceHistoryModel{},
		&persistence.WorkQueueEntryModel{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate shared test database: %w", err)
	}

	SharedTestDB = db
	return nil
}

// TruncateAllTables clears every table so scenarios don't leak state.
// Called before each scenario to ensure test isolation.
func TruncateAllTables() error {
	if SharedTestDB == nil {
		return fmt.Errorf("shared test database not initialized")
	}

	tables := []string{
		"experiment_work_queue",
		"ship_assignments",
		"container_logs",
		"containers",
		"ships",
		"system_graphs",
		"waypoints",
		"market_price_history",
		"contract_purchase_history",
		"market_data",
		"contracts",
		"players",
	}

	for _, table := range tables {
		// Ignore errors for tables that don't exist under every migration set.
		_ = SharedTestDB.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error
	}

	return nil
}

// CloseSharedTestDB closes the shared database connection.
// Called in TestMain after the suite finishes.
func CloseSharedTestDB() error {
	if SharedTestDB == nil {
		return nil
	}

	sqlDB, err := SharedTestDB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
