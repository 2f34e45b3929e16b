package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/mediator"
	"github.com/stellarforge/fleetd/internal/domain/container"
	"github.com/stellarforge/fleetd/internal/domain/shared"
	"github.com/stellarforge/fleetd/pkg/utils"
)

// DefaultMaxContainers caps concurrently live containers when the config
// does not say otherwise
const DefaultMaxContainers = 100

// Manager is the in-process registry of live containers. It creates them,
// supervises their runner goroutines, and keeps the in-memory view and the
// store in sync. It also implements common.ContainerLauncher so handlers
// running inside the daemon can spawn containers without dialing the
// daemon's own socket.
type Manager struct {
	store       container.ContainerRepository
	logs        container.ContainerLogRepository
	assignments container.ShipAssignmentRepository
	shipRepo    common.ShipRepository
	registry    *CommandRegistry
	sender      mediator.Sender
	clock       shared.Clock
	logger      *log.Logger
	metrics     lifecycleMetrics

	maxContainers int

	mu      sync.RWMutex
	runners map[string]*containerRunner
}

func NewManager(
	store container.ContainerRepository,
	logs container.ContainerLogRepository,
	assignments container.ShipAssignmentRepository,
	shipRepo common.ShipRepository,
	registry *CommandRegistry,
	sender mediator.Sender,
	clock shared.Clock,
	logger *log.Logger,
	maxContainers int,
) *Manager {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if maxContainers <= 0 {
		maxContainers = DefaultMaxContainers
	}
	return &Manager{
		store:         store,
		logs:          logs,
		assignments:   assignments,
		shipRepo:      shipRepo,
		registry:      registry,
		sender:        sender,
		clock:         clock,
		logger:        logger,
		maxContainers: maxContainers,
		runners:       map[string]*containerRunner{},
	}
}

// CreateContainer inserts the STARTING row, acquires the ship lock when the
// config names a ship, and spawns the supervisory goroutine. It returns as
// soon as the container is registered; the workload runs in the background.
func (m *Manager) CreateContainer(ctx context.Context, spec *common.ContainerSpec) (string, error) {
	if spec.CommandType == "" {
		return "", fmt.Errorf("command_type is required")
	}
	if !m.registry.Known(spec.CommandType) {
		return "", fmt.Errorf("unknown command type %q (known: %v)", spec.CommandType, m.registry.KnownTypes())
	}
	if spec.PlayerID <= 0 {
		return "", fmt.Errorf("player_id is required")
	}

	config := spec.Config
	if config == nil {
		config = map[string]interface{}{}
	}
	config["command_type"] = spec.CommandType

	containerID := spec.ContainerID
	if containerID == "" {
		containerID = m.generateID(spec.CommandType, config, spec.PlayerID)
	}

	command, err := m.registry.Build(spec.CommandType, config, containerID, spec.PlayerID)
	if err != nil {
		return "", fmt.Errorf("invalid config for %s: %w", spec.CommandType, err)
	}

	m.mu.Lock()
	if _, exists := m.runners[containerID]; exists {
		m.mu.Unlock()
		return "", fmt.Errorf("container %s already exists", containerID)
	}
	if m.liveCountLocked() >= m.maxContainers {
		m.mu.Unlock()
		return "", fmt.Errorf("container limit of %d reached", m.maxContainers)
	}
	m.mu.Unlock()

	maxIterations := spec.MaxIterations
	if maxIterations == 0 {
		maxIterations = 1
	}

	if err := m.acquireShip(ctx, config, containerID, spec.PlayerID, spec.CommandType); err != nil {
		return "", err
	}

	entity := container.NewContainer(
		containerID,
		container.ContainerTypeCommand,
		spec.PlayerID,
		config,
		container.RestartPolicy(spec.RestartPolicy),
		maxIterations,
		m.clock,
	)
	if err := m.store.Insert(ctx, entity); err != nil {
		releaseErr := m.assignments.ReleaseByContainer(ctx, containerID, container.ReleaseReasonFailed)
		if releaseErr != nil {
			m.logger.Error().Str("container_id", containerID).Err(releaseErr).Msg("failed to release ship after insert failure")
		}
		return "", fmt.Errorf("failed to persist container: %w", err)
	}

	m.launch(entity, command)

	m.logger.Info().
		Str("container_id", containerID).
		Str("command_type", spec.CommandType).
		Int("player_id", spec.PlayerID).
		Int("max_iterations", maxIterations).
		Msg("container created")
	return containerID, nil
}

// SetMetrics wires the container lifecycle collector. Call before the first
// CreateContainer; a manager without metrics records nothing.
func (m *Manager) SetMetrics(metrics lifecycleMetrics) {
	m.metrics = metrics
}

// StopContainer implements common.ContainerLauncher
func (m *Manager) StopContainer(ctx context.Context, containerID string, playerID int) error {
	return m.Stop(containerID)
}

// Stop signals cancellation and returns immediately; it never waits for
// the workload. Stopping an already-terminal container is a no-op.
func (m *Manager) Stop(containerID string) error {
	m.mu.RLock()
	runner, exists := m.runners[containerID]
	m.mu.RUnlock()

	if exists {
		runner.Stop()
		return nil
	}

	c, err := m.store.Get(context.Background(), containerID, 0)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("container not found: %s", containerID)
	}
	if c.Status().IsTerminal() {
		return nil
	}
	// A live row without a runner means the daemon restarted without
	// recovering it; close the record out directly.
	now := m.clock.Now()
	code := container.ExitCodeStopped
	return m.store.UpdateStatus(context.Background(), containerID, c.PlayerID(),
		container.ContainerStatusStopped, &now, &code, container.ExitReasonStopped)
}

// Get returns the live in-memory container, falling back to the store
func (m *Manager) Get(ctx context.Context, containerID string) (*container.Container, error) {
	m.mu.RLock()
	runner, exists := m.runners[containerID]
	m.mu.RUnlock()

	if exists {
		return runner.Container(), nil
	}
	c, err := m.store.Get(ctx, containerID, 0)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("container not found: %s", containerID)
	}
	return c, nil
}

// List returns the union of live and stored containers, deduplicated by
// id with the in-memory entity winning
func (m *Manager) List(ctx context.Context, playerID *int, status *container.ContainerStatus) ([]*container.Container, error) {
	stored, err := m.store.List(ctx, playerID, status)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	live := make(map[string]*container.Container, len(m.runners))
	for id, runner := range m.runners {
		live[id] = runner.Container()
	}
	m.mu.RUnlock()

	result := make([]*container.Container, 0, len(stored)+len(live))
	seen := map[string]bool{}
	for id, c := range live {
		if playerID != nil && c.PlayerID() != *playerID {
			continue
		}
		if status != nil && c.Status() != *status {
			continue
		}
		result = append(result, c)
		seen[id] = true
	}
	for _, c := range stored {
		if !seen[c.ID()] {
			result = append(result, c)
		}
	}
	return result, nil
}

// Remove deletes a terminal container's record and logs. Live containers
// are rejected; stop them first.
func (m *Manager) Remove(ctx context.Context, containerID string, playerID int) error {
	m.mu.RLock()
	runner, exists := m.runners[containerID]
	m.mu.RUnlock()

	if exists && !runner.Container().Status().IsTerminal() {
		return fmt.Errorf("container %s is %s; stop it before removing", containerID, runner.Container().Status())
	}

	c, err := m.store.Get(ctx, containerID, playerID)
	if err != nil {
		return err
	}
	if c == nil && !exists {
		return fmt.Errorf("container not found: %s", containerID)
	}
	if c != nil && !c.Status().IsTerminal() {
		return fmt.Errorf("container %s is %s; stop it before removing", containerID, c.Status())
	}

	if err := m.logs.DeleteByContainer(ctx, containerID); err != nil {
		return fmt.Errorf("failed to delete container logs: %w", err)
	}
	if c != nil {
		if err := m.store.Delete(ctx, containerID, playerID); err != nil {
			return err
		}
	}

	m.mu.Lock()
	delete(m.runners, containerID)
	m.mu.Unlock()
	return nil
}

// Logs reads a container's durable log lines
func (m *Manager) Logs(ctx context.Context, containerID string, filter container.LogFilter) ([]*container.ContainerLogEntry, error) {
	return m.logs.Read(ctx, containerID, filter)
}

// LiveContainerIDs reports the containers whose runner is still supervising
// a non-terminal entity. The health monitor sweeps ship assignments against
// this set.
func (m *Manager) LiveContainerIDs() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	live := make(map[string]bool, len(m.runners))
	for id, runner := range m.runners {
		if !runner.Container().Status().IsTerminal() {
			live[id] = true
		}
	}
	return live
}

// ActiveCount reports how many containers are currently RUNNING
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, runner := range m.runners {
		if runner.Container().Status() == container.ContainerStatusRunning {
			count++
		}
	}
	return count
}

// StopAll stops every live container and waits up to timeout for their
// goroutines to finish. Used for daemon shutdown only; client stops never
// wait.
func (m *Manager) StopAll(timeout time.Duration) {
	m.mu.RLock()
	runners := make([]*containerRunner, 0, len(m.runners))
	for _, runner := range m.runners {
		runners = append(runners, runner)
	}
	m.mu.RUnlock()

	for _, runner := range runners {
		runner.Stop()
	}

	done := make(chan struct{})
	go func() {
		for _, runner := range runners {
			<-runner.Done()
		}
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info().Int("count", len(runners)).Msg("all containers stopped")
	case <-time.After(timeout):
		m.logger.Warn().Msg("some containers did not finish cleanup within shutdown timeout")
	}
}

// launch registers a runner and starts its goroutine
func (m *Manager) launch(entity *container.Container, command mediator.Request) *containerRunner {
	runner := newContainerRunner(entity, command, m.sender, m.store, m.logs, m.assignments, m.clock, m.logger, m.metrics)

	m.mu.Lock()
	m.runners[entity.ID()] = runner
	m.mu.Unlock()

	go runner.Run()
	return runner
}

// acquireShip takes the ship lock for configs that name a ship. A lock
// already held by this container (pre-assigned by a deployer) is kept.
func (m *Manager) acquireShip(ctx context.Context, config map[string]interface{}, containerID string, playerID int, commandType string) error {
	shipSymbol := shipSymbolFromConfig(config)
	if shipSymbol == "" {
		return nil
	}

	info, err := m.assignments.GetInfo(ctx, shipSymbol, playerID)
	if err != nil {
		return fmt.Errorf("failed to query assignment for %s: %w", shipSymbol, err)
	}
	if info != nil && info.IsActive() {
		if info.ContainerID == containerID {
			return nil
		}
		return fmt.Errorf("ship %s is held by %s (%s)", shipSymbol, info.ContainerID, info.Operation)
	}

	acquired, err := m.assignments.Assign(ctx, shipSymbol, playerID, containerID, assignmentOperation(commandType))
	if err != nil {
		return fmt.Errorf("failed to assign ship %s: %w", shipSymbol, err)
	}
	if !acquired {
		return fmt.Errorf("ship %s was acquired by another operation", shipSymbol)
	}
	return nil
}

// liveCountLocked counts non-terminal runners. Callers hold m.mu.
func (m *Manager) liveCountLocked() int {
	count := 0
	for _, runner := range m.runners {
		if !runner.Container().Status().IsTerminal() {
			count++
		}
	}
	return count
}

func (m *Manager) generateID(commandType string, config map[string]interface{}, playerID int) string {
	if shipSymbol := shipSymbolFromConfig(config); shipSymbol != "" {
		return utils.GenerateContainerID(commandType, shipSymbol)
	}
	return utils.GenerateContainerID(commandType, fmt.Sprintf("P%d", playerID))
}
