package container

import (
	"fmt"
	"time"

	"github.com/acdtunes/fleetd/internal/domain/shared"
)

// ContainerStatus represents the lifecycle state of a container.
type ContainerStatus string

const (
	ContainerStatusStarting ContainerStatus = "STARTING"
	ContainerStatusRunning  ContainerStatus = "RUNNING"
	ContainerStatusStopping ContainerStatus = "STOPPING"
	ContainerStatusStopped  ContainerStatus = "STOPPED"
	ContainerStatusFailed   ContainerStatus = "FAILED"
)

// ContainerType is the command_type tag of the workload a container runs.
type ContainerType string

const (
	ContainerTypeNavigateShip                 ContainerType = "NavigateShip"
	ContainerTypeDockShip                     ContainerType = "DockShip"
	ContainerTypeOrbitShip                    ContainerType = "OrbitShip"
	ContainerTypeRefuelShip                   ContainerType = "RefuelShip"
	ContainerTypePurchaseShip                 ContainerType = "PurchaseShip"
	ContainerTypeBatchPurchaseShips           ContainerType = "BatchPurchaseShips"
	ContainerTypeBatchContract                ContainerType = "BatchContract"
	ContainerTypeScoutMarkets                 ContainerType = "ScoutMarkets"
	ContainerTypeMarketLiquidityExperiment    ContainerType = "MarketLiquidityExperimentWorker"
)

// RestartPolicy governs whether the supervisor relaunches a container after it stops.
type RestartPolicy string

const (
	RestartPolicyNo             RestartPolicy = "NO"
	RestartPolicyOnFailure      RestartPolicy = "ON_FAILURE"
	RestartPolicyAlways         RestartPolicy = "ALWAYS"
	RestartPolicyUnlessStopped  RestartPolicy = "UNLESS_STOPPED"
)

const defaultMaxRestarts = 3

// Container is the unit of work orchestration the supervisor runs: each one
// drives a single workload handler in its own goroutine.
type Container struct {
	id            string
	containerType ContainerType
	commandType   string
	playerID      int

	lifecycle *shared.LifecycleStateMachine

	stopping bool

	restartPolicy RestartPolicy
	restartCount  int
	maxRestarts   int

	exitCode   *int
	exitReason string

	config map[string]interface{}

	clock shared.Clock
}

func NewContainer(
	id string,
	containerType ContainerType,
	commandType string,
	playerID int,
	restartPolicy RestartPolicy,
	config map[string]interface{},
	clock shared.Clock,
) *Container {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if restartPolicy == "" {
		restartPolicy = RestartPolicyNo
	}

	return &Container{
		id:            id,
		containerType: containerType,
		commandType:   commandType,
		playerID:      playerID,
		lifecycle:     shared.NewLifecycleStateMachine(clock),
		restartPolicy: restartPolicy,
		maxRestarts:   defaultMaxRestarts,
		config:        config,
		clock:         clock,
	}
}

// Getters

func (c *Container) ID() string                      { return c.id }
func (c *Container) Type() ContainerType              { return c.containerType }
func (c *Container) CommandType() string              { return c.commandType }
func (c *Container) PlayerID() int                    { return c.playerID }
func (c *Container) RestartPolicy() RestartPolicy      { return c.restartPolicy }
func (c *Container) RestartCount() int                { return c.restartCount }
func (c *Container) MaxRestarts() int                  { return c.maxRestarts }
func (c *Container) Config() map[string]interface{}    { return c.config }
func (c *Container) ExitCode() *int                    { return c.exitCode }
func (c *Container) ExitReason() string                { return c.exitReason }

func (c *Container) CreatedAt() time.Time  { return c.lifecycle.CreatedAt() }
func (c *Container) UpdatedAt() time.Time  { return c.lifecycle.UpdatedAt() }
func (c *Container) StartedAt() *time.Time { return c.lifecycle.StartedAt() }
func (c *Container) StoppedAt() *time.Time { return c.lifecycle.StoppedAt() }
func (c *Container) LastError() error      { return c.lifecycle.LastError() }

// Status maps the generic lifecycle states onto the five container states.
// PENDING is presented as STARTING; COMPLETED is presented as STOPPED with
// exit_code 0 (the daemon does not track a distinct "completed" state per
// its data model).
func (c *Container) Status() ContainerStatus {
	if c.stopping {
		return ContainerStatusStopping
	}

	switch c.lifecycle.Status() {
	case shared.LifecycleStatusPending:
		return ContainerStatusStarting
	case shared.LifecycleStatusRunning:
		return ContainerStatusRunning
	case shared.LifecycleStatusCompleted, shared.LifecycleStatusStopped:
		return ContainerStatusStopped
	case shared.LifecycleStatusFailed:
		return ContainerStatusFailed
	default:
		return ContainerStatusStarting
	}
}

func (c *Container) Start() error {
	status := c.Status()
	if status != ContainerStatusStarting && status != ContainerStatusStopped {
		return fmt.Errorf("cannot start container in %s state", status)
	}

	c.stopping = false
	return c.lifecycle.Start()
}

// Complete marks successful completion, recorded as STOPPED with exit_code 0.
func (c *Container) Complete() error {
	if c.Status() != ContainerStatusRunning {
		return fmt.Errorf("cannot complete container in %s state", c.Status())
	}

	c.stopping = false
	zero := 0
	c.exitCode = &zero
	c.exitReason = "completed"
	return c.lifecycle.Complete()
}

func (c *Container) Fail(err error) error {
	status := c.Status()
	if status == ContainerStatusStopped {
		return fmt.Errorf("cannot fail container in %s state", status)
	}

	c.stopping = false
	one := 1
	c.exitCode = &one
	if err != nil {
		c.exitReason = err.Error()
	}
	return c.lifecycle.Fail(err)
}

// Stop begins graceful shutdown (STOPPING) if running, or finalizes directly.
func (c *Container) Stop() error {
	status := c.Status()
	if status == ContainerStatusStopped {
		return fmt.Errorf("cannot stop container in %s state", status)
	}

	if status == ContainerStatusRunning {
		c.stopping = true
		c.lifecycle.UpdateTimestamp()
		return nil
	}

	c.stopping = false
	c.exitReason = "stopped"
	return c.lifecycle.Stop()
}

// MarkStopped finalizes a STOPPING container to STOPPED.
func (c *Container) MarkStopped() error {
	if c.Status() != ContainerStatusStopping {
		return fmt.Errorf("cannot mark stopped when not in stopping state")
	}

	c.stopping = false
	c.exitReason = "stopped"
	return c.lifecycle.Stop()
}

// CanRestart reports eligibility per restart policy. The caller supplies
// whether the prior exit was a failure or a clean stop, since ALWAYS and
// UNLESS_STOPPED distinguish between those.
func (c *Container) CanRestart(exitWasFailure bool) bool {
	switch c.restartPolicy {
	case RestartPolicyNo:
		return false
	case RestartPolicyOnFailure:
		return exitWasFailure && c.restartCount < c.maxRestarts
	case RestartPolicyAlways:
		return c.restartCount < c.maxRestarts
	case RestartPolicyUnlessStopped:
		return exitWasFailure && c.restartCount < c.maxRestarts
	default:
		return false
	}
}

// RestartBackoff returns the delay to wait before the next restart attempt.
func (c *Container) RestartBackoff() time.Duration {
	d := time.Duration(1<<uint(c.restartCount)) * time.Second
	if d > 60*time.Second {
		d = 60 * time.Second
	}
	return d
}

func (c *Container) IncrementRestartCount() {
	c.restartCount++
	c.lifecycle.UpdateTimestamp()
}

// ResetForRestart prepares the container for a fresh run after a restartable exit.
func (c *Container) ResetForRestart() error {
	c.stopping = false
	c.exitCode = nil
	c.exitReason = ""
	c.lifecycle.ResetForRestart()
	c.IncrementRestartCount()
	return nil
}

func (c *Container) UpdateConfig(updates map[string]interface{}) {
	if c.config == nil {
		c.config = make(map[string]interface{})
	}
	for k, v := range updates {
		c.config[k] = v
	}
	c.lifecycle.UpdateTimestamp()
}

func (c *Container) ConfigValue(key string) (interface{}, bool) {
	if c.config == nil {
		return nil, false
	}
	v, ok := c.config[key]
	return v, ok
}

func (c *Container) IsRunning() bool   { return c.Status() == ContainerStatusRunning }
func (c *Container) IsStopping() bool  { return c.stopping }
func (c *Container) IsFinished() bool {
	status := c.Status()
	return status == ContainerStatusStopped || status == ContainerStatusFailed
}

func (c *Container) RuntimeDuration() time.Duration {
	return c.lifecycle.RuntimeDuration()
}

func (c *Container) String() string {
	return fmt.Sprintf("Container[%s, type=%s, status=%s, restarts=%d]",
		c.id, c.containerType, c.Status(), c.restartCount)
}
