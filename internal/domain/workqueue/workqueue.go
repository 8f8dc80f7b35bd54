// Package workqueue models the distributed work queue used by
// market-liquidity-experiment runs: a coordinator bulk-enqueues PENDING
// trading pairs, and many worker containers race to claim and execute them.
package workqueue

import "time"

// Status is the lifecycle state of a queue entry.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusClaimed   Status = "CLAIMED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Pair is one buy/sell opportunity to execute: buy good_symbol at buy_market,
// sell it at sell_market.
type Pair struct {
	QueueID      int64
	RunID        string
	PlayerID     int
	PairID       string
	GoodSymbol   string
	BuyMarket    string
	SellMarket   string
	Status       Status
	ClaimedBy    string
	ClaimedAt    *time.Time
	CompletedAt  *time.Time
	Attempts     int
	ErrorMessage string
}

// QueueStatus aggregates entry counts for a run.
type QueueStatus struct {
	RunID     string
	Pending   int
	Claimed   int
	Completed int
	Failed    int
}

// ShipProgress is the count of pairs completed per claiming ship.
type ShipProgress map[string]int
