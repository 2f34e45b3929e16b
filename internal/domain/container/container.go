package container

import (
	"fmt"
	"time"

	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// ContainerStatus is the lifecycle state of a container as stored and
// reported to clients.
type ContainerStatus string

const (
	ContainerStatusStarting ContainerStatus = "STARTING"
	ContainerStatusRunning  ContainerStatus = "RUNNING"
	ContainerStatusStopped  ContainerStatus = "STOPPED"
	ContainerStatusFailed   ContainerStatus = "FAILED"
)

// IsTerminal reports whether the status admits no further transitions
func (s ContainerStatus) IsTerminal() bool {
	return s == ContainerStatusStopped || s == ContainerStatusFailed
}

// ContainerType categorises what a container runs. Command containers are
// the only concrete type today.
type ContainerType string

const (
	ContainerTypeCommand ContainerType = "command"
)

// RestartPolicy controls what happens to a container after it exits.
// Only "no" is honoured in full; the others are accepted and stored.
type RestartPolicy string

const (
	RestartPolicyNo        RestartPolicy = "no"
	RestartPolicyOnFailure RestartPolicy = "on_failure"
	RestartPolicyAlways    RestartPolicy = "always"
)

// Exit codes and reasons are part of the wire contract toward daemon clients.
const (
	ExitCodeCompleted       = 0
	ExitCodeFailed          = 1
	ExitCodeStopped         = 2
	ExitCodeInvalidConfig   = 3
	ExitCodeMissingResource = 4
)

const (
	ExitReasonCompleted       = "completed"
	ExitReasonFailed          = "failed"
	ExitReasonStopped         = "stopped"
	ExitReasonInvalidConfig   = "invalid_config"
	ExitReasonMissingResource = "missing_resource"
)

// maxExitReasonLen bounds the stored failure message
const maxExitReasonLen = 200

// IterationsInfinite makes a command container loop until cancelled
const IterationsInfinite = -1

// Container is a supervised long-running operation with a durable lifecycle
// record. The daemon runs each container in its own goroutine; the entity
// itself only tracks state.
//
// Invariant: once an exit code is recorded the status is terminal and
// stoppedAt is set. The exit setters drive the lifecycle transition and the
// exit bookkeeping in one step so the two cannot drift apart.
type Container struct {
	id            string
	containerType ContainerType
	playerID      int
	config        map[string]interface{}
	restartPolicy RestartPolicy

	lifecycle *shared.LifecycleStateMachine

	currentIteration int
	maxIterations    int // IterationsInfinite for unbounded

	restartCount int

	exitCode   *int
	exitReason string

	metadata map[string]interface{}

	clock shared.Clock
}

// NewContainer creates a container in STARTING state.
// If clock is nil, the real clock is used.
func NewContainer(
	id string,
	containerType ContainerType,
	playerID int,
	config map[string]interface{},
	restartPolicy RestartPolicy,
	maxIterations int,
	clock shared.Clock,
) *Container {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if restartPolicy == "" {
		restartPolicy = RestartPolicyNo
	}
	if config == nil {
		config = map[string]interface{}{}
	}

	return &Container{
		id:            id,
		containerType: containerType,
		playerID:      playerID,
		config:        config,
		restartPolicy: restartPolicy,
		lifecycle:     shared.NewLifecycleStateMachine(clock),
		maxIterations: maxIterations,
		metadata:      map[string]interface{}{},
		clock:         clock,
	}
}

// RecoverContainer reconstructs a container from its persisted record
func RecoverContainer(
	id string,
	containerType ContainerType,
	playerID int,
	config map[string]interface{},
	restartPolicy RestartPolicy,
	maxIterations int,
	status ContainerStatus,
	createdAt time.Time,
	startedAt, stoppedAt *time.Time,
	exitCode *int,
	exitReason string,
	restartCount int,
	clock shared.Clock,
) *Container {
	c := NewContainer(id, containerType, playerID, config, restartPolicy, maxIterations, clock)
	c.lifecycle.RecoverFromPersistence(
		shared.LifecycleStatus(status), createdAt, createdAt, startedAt, stoppedAt, nil,
	)
	c.exitCode = exitCode
	c.exitReason = exitReason
	c.restartCount = restartCount
	return c
}

func (c *Container) ID() string                       { return c.id }
func (c *Container) Type() ContainerType              { return c.containerType }
func (c *Container) PlayerID() int                    { return c.playerID }
func (c *Container) Config() map[string]interface{}   { return c.config }
func (c *Container) RestartPolicy() RestartPolicy     { return c.restartPolicy }
func (c *Container) CurrentIteration() int            { return c.currentIteration }
func (c *Container) MaxIterations() int               { return c.maxIterations }
func (c *Container) RestartCount() int                { return c.restartCount }
func (c *Container) Metadata() map[string]interface{} { return c.metadata }
func (c *Container) ExitReason() string               { return c.exitReason }

func (c *Container) CreatedAt() time.Time  { return c.lifecycle.CreatedAt() }
func (c *Container) UpdatedAt() time.Time  { return c.lifecycle.UpdatedAt() }
func (c *Container) StartedAt() *time.Time { return c.lifecycle.StartedAt() }
func (c *Container) StoppedAt() *time.Time { return c.lifecycle.StoppedAt() }
func (c *Container) LastError() error      { return c.lifecycle.LastError() }

// ExitCode returns the recorded exit code, or nil while the container lives
func (c *Container) ExitCode() *int {
	return c.exitCode
}

// Status maps the lifecycle state to the container status vocabulary
func (c *Container) Status() ContainerStatus {
	return ContainerStatus(c.lifecycle.Status())
}

// Start transitions STARTING → RUNNING
func (c *Container) Start() error {
	return c.lifecycle.Start()
}

// Complete records a clean exit: STOPPED, exit code 0, reason "completed"
func (c *Container) Complete() error {
	if err := c.lifecycle.Stop(); err != nil {
		return err
	}
	code := ExitCodeCompleted
	c.exitCode = &code
	c.exitReason = ExitReasonCompleted
	return nil
}

// MarkStopped records a user-initiated stop: STOPPED, exit code 2
func (c *Container) MarkStopped() error {
	if err := c.lifecycle.Stop(); err != nil {
		return err
	}
	code := ExitCodeStopped
	c.exitCode = &code
	c.exitReason = ExitReasonStopped
	return nil
}

// Fail records a failure with exit code 1 and the truncated error message
func (c *Container) Fail(err error) error {
	return c.FailWith(ExitCodeFailed, TruncateReason(err.Error()), err)
}

// FailWith records a failure with an explicit exit code and reason.
// Recovery uses it for invalid_config (3) and missing_resource (4).
func (c *Container) FailWith(code int, reason string, cause error) error {
	if cause == nil {
		cause = fmt.Errorf("%s", reason)
	}
	if err := c.lifecycle.Fail(cause); err != nil {
		return err
	}
	c.exitCode = &code
	c.exitReason = reason
	return nil
}

// IncrementIteration bumps the iteration counter for looping workloads
func (c *Container) IncrementIteration() {
	c.currentIteration++
	c.lifecycle.UpdateTimestamp()
}

// ShouldContinue reports whether another iteration should run
func (c *Container) ShouldContinue() bool {
	if c.maxIterations == IterationsInfinite {
		return true
	}
	return c.currentIteration < c.maxIterations
}

// CanRestart reports whether the restart policy allows another run after
// the given terminal status
func (c *Container) CanRestart() bool {
	switch c.restartPolicy {
	case RestartPolicyAlways:
		return true
	case RestartPolicyOnFailure:
		return c.Status() == ContainerStatusFailed
	default:
		return false
	}
}

// ResetForRestart clears terminal state so the container can run again
func (c *Container) ResetForRestart() {
	c.restartCount++
	c.currentIteration = 0
	c.exitCode = nil
	c.exitReason = ""
	c.lifecycle.ResetForRestart()
}

// UpdateMetadata records an operation-specific metadata value
func (c *Container) UpdateMetadata(key string, value interface{}) {
	c.metadata[key] = value
	c.lifecycle.UpdateTimestamp()
}

// RuntimeDuration returns how long the container has been (or was) running
func (c *Container) RuntimeDuration() time.Duration {
	return c.lifecycle.RuntimeDuration()
}

func (c *Container) String() string {
	return fmt.Sprintf("Container[%s, type=%s, status=%s, iteration=%d/%d, restarts=%d]",
		c.id, c.containerType, c.Status(), c.currentIteration, c.maxIterations, c.restartCount)
}

// TruncateReason bounds an exit reason to the stored length
func TruncateReason(reason string) string {
	if len(reason) <= maxExitReasonLen {
		return reason
	}
	return reason[:maxExitReasonLen]
}
