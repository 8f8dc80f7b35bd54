// Package supervisor runs workload handlers as background containers: one
// goroutine per container, with restart-policy-governed relaunch, persisted
// status/log history, and ship-assignment locking so two containers never
// drive the same ship at once. Grounded in the teacher's
// adapters/grpc/container_runner.go, generalized to the container entity's
// five-state model and four-policy restart enum instead of the teacher's
// binary restart toggle and richer iteration-tracking metadata.
package supervisor

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acdtunes/fleetd/internal/adapters/metrics"
	"github.com/acdtunes/fleetd/internal/adapters/persistence"
	"github.com/acdtunes/fleetd/internal/domain/container"
	"github.com/acdtunes/fleetd/internal/domain/shared"
)

// Work is the function a container drives. It is called once per attempt;
// the supervisor re-invokes it on restart per the container's restart policy.
type Work func(ctx context.Context) error

// Handle is a running container: the entity, its goroutine lifecycle, and
// its work function (re-invoked on restart).
type Handle struct {
	entity *container.Container
	work   Work

	mu         sync.RWMutex
	cancel     context.CancelFunc
	done       chan struct{}
	stopOnce   sync.Once
}

// Supervisor tracks and drives containers. It holds at most one Handle per
// container ID; Stop/List/Inspect operate against this in-memory table,
// backed by persisted status/log history for operator visibility.
type Supervisor struct {
	containerRepo      *persistence.ContainerRepositoryGORM
	logRepo            persistence.ContainerLogRepository
	shipAssignmentRepo container.ShipAssignmentRepository
	clock              shared.Clock

	mu         sync.RWMutex
	containers map[string]*Handle
}

// New builds a Supervisor. clock nil uses the real wall clock.
func New(
	containerRepo *persistence.ContainerRepositoryGORM,
	logRepo persistence.ContainerLogRepository,
	shipAssignmentRepo container.ShipAssignmentRepository,
	clock shared.Clock,
) *Supervisor {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &Supervisor{
		containerRepo:      containerRepo,
		logRepo:            logRepo,
		shipAssignmentRepo: shipAssignmentRepo,
		clock:              clock,
		containers:         make(map[string]*Handle),
	}
}

// Create starts a new container of the given type running work, returning
// the container entity once it has transitioned to RUNNING. If config
// carries a "ship_symbol" key, that ship is assigned to the container for
// the container's lifetime (released on completion, failure, or stop).
func (s *Supervisor) Create(
	ctx context.Context,
	id string,
	containerType container.ContainerType,
	commandType string,
	playerID int,
	restartPolicy container.RestartPolicy,
	config map[string]interface{},
	work Work,
) (*container.Container, error) {
	if id == "" {
		id = fmt.Sprintf("%s-%s", containerType, uuid.NewString()[:8])
	}
	entity := container.NewContainer(id, containerType, commandType, playerID, restartPolicy, config, s.clock)

	if err := entity.Start(); err != nil {
		return nil, fmt.Errorf("supervisor: starting container %s: %w", id, err)
	}

	// Ship assignment is attempted before the container row is persisted: a
	// failed assignment must fail container.create entirely, not leave a
	// container behind with no ship.
	if err := s.assignShip(ctx, entity); err != nil {
		return nil, fmt.Errorf("supervisor: assigning ship for container %s: %w", id, err)
	}

	if err := s.containerRepo.Add(ctx, entity, commandType); err != nil {
		s.releaseShip(ctx, entity, "create failed")
		return nil, fmt.Errorf("supervisor: persisting container %s: %w", id, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		entity: entity,
		work:   work,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.containers[id] = h
	s.mu.Unlock()

	s.log(entity, "INFO", "container started", nil)
	metrics.ContainersStarted.WithLabelValues(string(containerType)).Inc()
	go s.run(runCtx, h)

	return entity, nil
}

// Stop requests graceful shutdown of the named container and waits for it
// to exit, up to 10s.
func (s *Supervisor) Stop(ctx context.Context, id string, playerID int) error {
	s.mu.RLock()
	h, ok := s.containers[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("supervisor: unknown container %s", id)
	}

	h.mu.Lock()
	if err := h.entity.Stop(); err != nil {
		h.mu.Unlock()
		return err
	}
	h.mu.Unlock()

	h.stopOnce.Do(h.cancel)

	select {
	case <-h.done:
	case <-time.After(10 * time.Second):
		s.log(h.entity, "WARN", "container did not stop within timeout", nil)
	}

	h.mu.Lock()
	_ = h.entity.MarkStopped()
	h.mu.Unlock()

	now := time.Now()
	_ = s.containerRepo.UpdateStatus(ctx, id, playerID, container.ContainerStatusStopped, &now, nil, "stopped")
	s.releaseShip(ctx, h.entity, "stopped")

	return nil
}

// List returns every container entity currently tracked in memory.
func (s *Supervisor) List() []*container.Container {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*container.Container, 0, len(s.containers))
	for _, h := range s.containers {
		h.mu.RLock()
		out = append(out, h.entity)
		h.mu.RUnlock()
	}
	return out
}

// Inspect returns a single container's entity, if tracked.
func (s *Supervisor) Inspect(id string) (*container.Container, bool) {
	s.mu.RLock()
	h, ok := s.containers[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entity, true
}

func (s *Supervisor) run(ctx context.Context, h *Handle) {
	defer close(h.done)

	jitter := time.Duration(rand.Intn(2000)) * time.Millisecond
	select {
	case <-time.After(jitter):
	case <-ctx.Done():
		return
	}

	for {
		err := h.work(ctx)

		if ctx.Err() != nil {
			return
		}

		if err == nil {
			h.mu.Lock()
			_ = h.entity.Complete()
			h.mu.Unlock()
			s.log(h.entity, "INFO", "container completed", nil)
			s.persistTerminal(h.entity, false)
			s.releaseShip(context.Background(), h.entity, "completed")
			return
		}

		h.mu.Lock()
		_ = h.entity.Fail(err)
		canRestart := h.entity.CanRestart(true)
		h.mu.Unlock()

		s.log(h.entity, "ERROR", err.Error(), nil)

		if !canRestart {
			s.persistTerminal(h.entity, true)
			s.releaseShip(context.Background(), h.entity, "failed")
			return
		}

		backoff := h.entity.RestartBackoff()
		s.log(h.entity, "INFO", fmt.Sprintf("restarting after %s (attempt %d)", backoff, h.entity.RestartCount()+1), nil)
		metrics.ContainersRestarted.WithLabelValues(string(h.entity.Type())).Inc()

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		h.mu.Lock()
		_ = h.entity.ResetForRestart()
		_ = h.entity.Start()
		h.mu.Unlock()
	}
}

func (s *Supervisor) persistTerminal(entity *container.Container, failed bool) {
	now := time.Now()
	status := container.ContainerStatusStopped
	outcome := "completed"
	exitCode := 0
	if failed {
		status = container.ContainerStatusFailed
		outcome = "failed"
		exitCode = 1
	}
	metrics.ContainersTerminated.WithLabelValues(string(entity.Type()), outcome).Inc()
	_ = s.containerRepo.UpdateStatus(context.Background(), entity.ID(), entity.PlayerID(), status, &now, &exitCode, entity.ExitReason())
}

func (s *Supervisor) assignShip(ctx context.Context, entity *container.Container) error {
	shipSymbol, ok := entity.ConfigValue("ship_symbol")
	if !ok {
		return nil
	}
	symbol, ok := shipSymbol.(string)
	if !ok || symbol == "" {
		return nil
	}

	assignment := container.NewShipAssignment(symbol, entity.PlayerID(), entity.ID(), s.clock)
	return s.shipAssignmentRepo.Assign(ctx, assignment)
}

func (s *Supervisor) releaseShip(ctx context.Context, entity *container.Container, reason string) {
	if err := s.shipAssignmentRepo.ReleaseByContainer(ctx, entity.ID(), entity.PlayerID(), reason); err != nil {
		s.log(entity, "WARN", fmt.Sprintf("failed to release ship assignments: %v", err), nil)
	}
}

func (s *Supervisor) log(entity *container.Container, level, message string, metadata map[string]interface{}) {
	fmt.Printf("[%s] [%s] %s: %s\n", time.Now().Format(time.RFC3339), entity.ID(), level, message)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.logRepo.Log(ctx, entity.ID(), entity.PlayerID(), message, level, metadata)
	}()
}
