package steps

import (
	"context"
	"fmt"
	"sync"

	"github.com/cucumber/godog"

	"github.com/acdtunes/fleetd/internal/adapters/persistence"
	"github.com/acdtunes/fleetd/internal/domain/workqueue"
	"github.com/acdtunes/fleetd/test/helpers"
)

type completion struct {
	claimedBy string
	queueID   int64
}

type workQueueContext struct {
	repo         workqueue.Repository
	runID        string
	completions  []completion
	completionMu sync.Mutex
	err          error
}

func (wc *workQueueContext) reset() {
	if err := helpers.TruncateAllTables(); err != nil {
		panic(err)
	}
	wc.repo = persistence.NewWorkQueueRepository(helpers.SharedTestDB, nil)
	wc.runID = ""
	wc.completions = nil
	wc.err = nil
}

func (wc *workQueueContext) pairsEnqueuedForRun(count int, runID string) error {
	wc.runID = runID
	pairs := make([]*workqueue.Pair, 0, count)
	for i := 0; i < count; i++ {
		pairs = append(pairs, &workqueue.Pair{
			RunID:      runID,
			PlayerID:   1,
			PairID:     fmt.Sprintf("PAIR-%d", i),
			GoodSymbol: "FUEL",
			BuyMarket:  "X1-A1",
			SellMarket: "X1-A2",
		})
	}
	return wc.repo.Enqueue(context.Background(), pairs)
}

// workerContainersDrainTheQueueForRun has workerCount goroutines (simulating
// separate worker containers) race to claim and complete pairs off the same
// run until the queue is empty, recording every completion's (claimed_by,
// queue_id) so the assertion step can check for double-claims.
func (wc *workQueueContext) workerContainersDrainTheQueueForRun(workerCount int, runID string) error {
	ctx := context.Background()
	var wg sync.WaitGroup
	errCh := make(chan error, workerCount)

	for w := 0; w < workerCount; w++ {
		shipSymbol := fmt.Sprintf("SHIP-%d", w)
		wg.Add(1)
		go func(shipSymbol string) {
			defer wg.Done()
			for {
				pair, err := wc.repo.ClaimNext(ctx, runID, shipSymbol)
				if err != nil {
					errCh <- err
					return
				}
				if pair == nil {
					return
				}
				if err := wc.repo.MarkComplete(ctx, pair.QueueID); err != nil {
					errCh <- err
					return
				}
				wc.completionMu.Lock()
				wc.completions = append(wc.completions, completion{claimedBy: shipSymbol, queueID: pair.QueueID})
				wc.completionMu.Unlock()
			}
		}(shipSymbol)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			wc.err = err
		}
	}
	return wc.err
}

func (wc *workQueueContext) exactlyEntriesAreCompletedForRun(count int, runID string) error {
	status, err := wc.repo.QueueStatus(context.Background(), runID)
	if err != nil {
		return fmt.Errorf("fetching queue status: %w", err)
	}
	if status.Completed != count {
		return fmt.Errorf("expected %d completed entries, got %d (pending=%d claimed=%d failed=%d)",
			count, status.Completed, status.Pending, status.Claimed, status.Failed)
	}
	return nil
}

func (wc *workQueueContext) theShipProgressForRunSumsTo(runID string, total int) error {
	progress, err := wc.repo.ShipProgress(context.Background(), runID)
	if err != nil {
		return fmt.Errorf("fetching ship progress: %w", err)
	}
	sum := 0
	for _, count := range progress {
		sum += count
	}
	if sum != total {
		return fmt.Errorf("expected ship progress to sum to %d, got %d (%v)", total, sum, progress)
	}
	return nil
}

func (wc *workQueueContext) noTwoCompletionsShareTheSameClaimedByAndQueueID() error {
	seen := make(map[completion]bool, len(wc.completions))
	for _, c := range wc.completions {
		if seen[c] {
			return fmt.Errorf("duplicate completion for claimed_by=%s queue_id=%d", c.claimedBy, c.queueID)
		}
		seen[c] = true
	}
	return nil
}

func InitializeWorkQueueScenario(ctx *godog.ScenarioContext) {
	wc := &workQueueContext{}

	ctx.Before(func(goctx context.Context, sc *godog.Scenario) (context.Context, error) {
		wc.reset()
		return goctx, nil
	})

	ctx.Step(`^(\d+) pairs enqueued for run "([^"]*)"$`, wc.pairsEnqueuedForRun)
	ctx.Step(`^(\d+) worker containers drain the queue for run "([^"]*)"$`, wc.workerContainersDrainTheQueueForRun)
	ctx.Step(`^exactly (\d+) entries are COMPLETED for run "([^"]*)"$`, wc.exactlyEntriesAreCompletedForRun)
	ctx.Step(`^the ship progress for run "([^"]*)" sums to (\d+)$`, wc.theShipProgressForRunSumsTo)
	ctx.Step(`^no two completions share the same claimed_by and queue_id$`, wc.noTwoCompletionsShareTheSameClaimedByAndQueueID)
}
