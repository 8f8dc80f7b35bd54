// Package healthmonitor runs the daemon's 60s background loop: it counts
// live containers and sweeps stale ship assignments — ones whose
// container_id is no longer present in the supervisor's live container set
// — releasing them with reason "stale_cleanup", per spec.md §4.E/§4.F.
package healthmonitor

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/acdtunes/fleetd/internal/adapters/supervisor"
	"github.com/acdtunes/fleetd/internal/domain/container"
)

const sweepSchedule = "@every 60s"

// Monitor drives the periodic health/sweep loop.
type Monitor struct {
	supervisor     *supervisor.Supervisor
	assignmentRepo container.ShipAssignmentRepository
	logger         zerolog.Logger
	cron           *cron.Cron
}

func New(sup *supervisor.Supervisor, assignmentRepo container.ShipAssignmentRepository, logger zerolog.Logger) *Monitor {
	return &Monitor{
		supervisor:     sup,
		assignmentRepo: assignmentRepo,
		logger:         logger.With().Str("component", "health_monitor").Logger(),
		cron:           cron.New(),
	}
}

// Start schedules the sweep and returns immediately; the loop runs on its
// own goroutine until Stop is called.
func (m *Monitor) Start() error {
	_, err := m.cron.AddFunc(sweepSchedule, m.tick)
	if err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

// Stop cancels the schedule, waiting for any in-flight tick to finish.
func (m *Monitor) Stop() {
	<-m.cron.Stop().Done()
}

func (m *Monitor) tick() {
	live := m.supervisor.List()
	m.logger.Debug().Int("live_containers", len(live)).Msg("health check")
	if err := m.sweepStaleAssignments(context.Background(), live); err != nil {
		m.logger.Error().Err(err).Msg("stale assignment sweep failed")
	}
}

func (m *Monitor) sweepStaleAssignments(ctx context.Context, live []*container.Container) error {
	liveIDs := make(map[string]struct{}, len(live))
	for _, c := range live {
		liveIDs[c.ID()] = struct{}{}
	}

	active, err := m.assignmentRepo.ListActive(ctx)
	if err != nil {
		return err
	}

	for _, assignment := range active {
		if _, ok := liveIDs[assignment.ContainerID()]; ok {
			continue
		}
		if err := m.assignmentRepo.Release(ctx, assignment.ShipSymbol(), assignment.PlayerID(), "stale_cleanup"); err != nil {
			m.logger.Error().Err(err).Str("ship_symbol", assignment.ShipSymbol()).Msg("releasing stale assignment failed")
		}
	}
	return nil
}
