package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/acdtunes/fleetd/internal/domain/shared"
	"github.com/acdtunes/fleetd/internal/domain/workqueue"
)

// WorkQueueRepositoryGORM implements workqueue.Repository using GORM.
type WorkQueueRepositoryGORM struct {
	db    *gorm.DB
	clock shared.Clock
}

func NewWorkQueueRepository(db *gorm.DB, clock shared.Clock) *WorkQueueRepositoryGORM {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &WorkQueueRepositoryGORM{db: db, clock: clock}
}

// Enqueue bulk-inserts pairs as PENDING in one statement.
func (r *WorkQueueRepositoryGORM) Enqueue(ctx context.Context, pairs []*workqueue.Pair) error {
	if len(pairs) == 0 {
		return nil
	}
	models := make([]WorkQueueEntryModel, 0, len(pairs))
	for _, p := range pairs {
		models = append(models, WorkQueueEntryModel{
			RunID:      p.RunID,
			PlayerID:   p.PlayerID,
			PairID:     p.PairID,
			GoodSymbol: p.GoodSymbol,
			BuyMarket:  p.BuyMarket,
			SellMarket: p.SellMarket,
			Status:     string(workqueue.StatusPending),
		})
	}
	if err := r.db.WithContext(ctx).Create(&models).Error; err != nil {
		return fmt.Errorf("enqueuing work queue pairs: %w", err)
	}
	return nil
}

// ClaimNext selects the oldest PENDING pair for run and atomically marks it
// CLAIMED for shipSymbol. The select-then-conditional-update is retried
// in-process on a lost race (another worker claimed the same row between the
// SELECT and the UPDATE) so a transient collision never looks like "queue
// empty" to the caller; each individual attempt still runs as one
// transaction, which is what makes the UPDATE's WHERE status=PENDING clause
// race-proof across backends without relying on a non-portable locking hint.
func (r *WorkQueueRepositoryGORM) ClaimNext(ctx context.Context, runID, shipSymbol string) (*workqueue.Pair, error) {
	const maxAttempts = 10

	for attempt := 0; attempt < maxAttempts; attempt++ {
		claimed, contended, err := r.tryClaimOnce(ctx, runID, shipSymbol)
		if err != nil {
			return nil, err
		}
		if claimed != nil {
			return claimed, nil
		}
		if !contended {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("claiming next pair for run %s: exhausted retries under contention", runID)
}

// tryClaimOnce runs one select-then-update attempt. contended is true when a
// PENDING row existed but was claimed by a concurrent worker first, meaning
// the caller should retry rather than conclude the queue is empty.
func (r *WorkQueueRepositoryGORM) tryClaimOnce(ctx context.Context, runID, shipSymbol string) (claimed *workqueue.Pair, contended bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model WorkQueueEntryModel
		selErr := tx.Where("run_id = ? AND status = ?", runID, workqueue.StatusPending).
			Order("queue_id ASC").
			First(&model).Error
		if selErr == gorm.ErrRecordNotFound {
			return nil
		}
		if selErr != nil {
			return fmt.Errorf("selecting next pending pair: %w", selErr)
		}

		now := r.clock.Now()
		result := tx.Model(&WorkQueueEntryModel{}).
			Where("queue_id = ? AND status = ?", model.QueueID, workqueue.StatusPending).
			Updates(map[string]interface{}{
				"status":     string(workqueue.StatusClaimed),
				"claimed_by": shipSymbol,
				"claimed_at": now,
				"attempts":   model.Attempts + 1,
			})
		if result.Error != nil {
			return fmt.Errorf("claiming pair %d: %w", model.QueueID, result.Error)
		}
		if result.RowsAffected == 0 {
			contended = true
			return nil
		}

		model.Status = string(workqueue.StatusClaimed)
		model.ClaimedBy = shipSymbol
		model.ClaimedAt = &now
		model.Attempts++
		claimed = pairFromModel(&model)
		return nil
	})
	return claimed, contended, err
}

// MarkComplete transitions a CLAIMED pair to COMPLETED.
func (r *WorkQueueRepositoryGORM) MarkComplete(ctx context.Context, queueID int64) error {
	now := r.clock.Now()
	result := r.db.WithContext(ctx).Model(&WorkQueueEntryModel{}).
		Where("queue_id = ?", queueID).
		Updates(map[string]interface{}{
			"status":       string(workqueue.StatusCompleted),
			"completed_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("marking pair %d complete: %w", queueID, result.Error)
	}
	return nil
}

// MarkFailed transitions a CLAIMED pair to FAILED, recording the error.
func (r *WorkQueueRepositoryGORM) MarkFailed(ctx context.Context, queueID int64, errMessage string) error {
	result := r.db.WithContext(ctx).Model(&WorkQueueEntryModel{}).
		Where("queue_id = ?", queueID).
		Updates(map[string]interface{}{
			"status":        string(workqueue.StatusFailed),
			"error_message": errMessage,
		})
	if result.Error != nil {
		return fmt.Errorf("marking pair %d failed: %w", queueID, result.Error)
	}
	return nil
}

// QueueStatus aggregates entry counts by status for run.
func (r *WorkQueueRepositoryGORM) QueueStatus(ctx context.Context, runID string) (*workqueue.QueueStatus, error) {
	rows, err := r.db.WithContext(ctx).Model(&WorkQueueEntryModel{}).
		Select("status, count(*) as count").
		Where("run_id = ?", runID).
		Group("status").
		Rows()
	if err != nil {
		return nil, fmt.Errorf("aggregating queue status for run %s: %w", runID, err)
	}
	defer rows.Close()

	status := &workqueue.QueueStatus{RunID: runID}
	for rows.Next() {
		var s string
		var count int
		if err := rows.Scan(&s, &count); err != nil {
			return nil, fmt.Errorf("scanning queue status row: %w", err)
		}
		switch workqueue.Status(s) {
		case workqueue.StatusPending:
			status.Pending = count
		case workqueue.StatusClaimed:
			status.Claimed = count
		case workqueue.StatusCompleted:
			status.Completed = count
		case workqueue.StatusFailed:
			status.Failed = count
		}
	}
	return status, nil
}

// ShipProgress counts COMPLETED pairs per claimed_by ship for run.
func (r *WorkQueueRepositoryGORM) ShipProgress(ctx context.Context, runID string) (workqueue.ShipProgress, error) {
	rows, err := r.db.WithContext(ctx).Model(&WorkQueueEntryModel{}).
		Select("claimed_by, count(*) as count").
		Where("run_id = ? AND status = ?", runID, workqueue.StatusCompleted).
		Group("claimed_by").
		Rows()
	if err != nil {
		return nil, fmt.Errorf("aggregating ship progress for run %s: %w", runID, err)
	}
	defer rows.Close()

	progress := workqueue.ShipProgress{}
	for rows.Next() {
		var ship string
		var count int
		if err := rows.Scan(&ship, &count); err != nil {
			return nil, fmt.Errorf("scanning ship progress row: %w", err)
		}
		progress[ship] = count
	}
	return progress, nil
}

func pairFromModel(m *WorkQueueEntryModel) *workqueue.Pair {
	return &workqueue.Pair{
		QueueID:      m.QueueID,
		RunID:        m.RunID,
		PlayerID:     m.PlayerID,
		PairID:       m.PairID,
		GoodSymbol:   m.GoodSymbol,
		BuyMarket:    m.BuyMarket,
		SellMarket:   m.SellMarket,
		Status:       workqueue.Status(m.Status),
		ClaimedBy:    m.ClaimedBy,
		ClaimedAt:    m.ClaimedAt,
		CompletedAt:  m.CompletedAt,
		Attempts:     m.Attempts,
		ErrorMessage: m.ErrorMessage,
	}
}
