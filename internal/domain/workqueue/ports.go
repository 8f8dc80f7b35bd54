package workqueue

import "context"

// Repository is the work-queue's persistence port: bulk enqueue, atomic
// claim, and the two status aggregations.
type Repository interface {
	// Enqueue bulk-inserts pairs as PENDING in one statement.
	Enqueue(ctx context.Context, pairs []*Pair) error

	// ClaimNext selects the oldest PENDING pair for run (ORDER BY queue_id
	// ASC) and atomically transitions it to CLAIMED under ship's name,
	// incrementing attempts, in a transaction whose UPDATE only matches a row
	// still PENDING (retried on a lost race). Returns nil, nil if no PENDING
	// pair remains.
	ClaimNext(ctx context.Context, runID, shipSymbol string) (*Pair, error)

	// MarkComplete transitions a CLAIMED pair to COMPLETED.
	MarkComplete(ctx context.Context, queueID int64) error

	// MarkFailed transitions a CLAIMED pair to FAILED, recording the error.
	MarkFailed(ctx context.Context, queueID int64, errMessage string) error

	// QueueStatus aggregates entry counts by status for run.
	QueueStatus(ctx context.Context, runID string) (*QueueStatus, error)

	// ShipProgress counts COMPLETED pairs per claimed_by ship for run.
	ShipProgress(ctx context.Context, runID string) (ShipProgress, error)
}
