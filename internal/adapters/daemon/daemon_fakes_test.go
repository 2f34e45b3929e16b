package daemon

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/phuslu/log"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/mediator"
	"github.com/stellarforge/fleetd/internal/domain/container"
	"github.com/stellarforge/fleetd/internal/domain/navigation"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// memContainerStore is an in-memory ContainerRepository with the same
// forward-only transition rules as the GORM implementation
type memContainerStore struct {
	mu   sync.Mutex
	rows map[string]*containerRow
}

type containerRow struct {
	id            string
	playerID      int
	containerType container.ContainerType
	config        map[string]interface{}
	restartPolicy container.RestartPolicy
	maxIterations int
	status        container.ContainerStatus
	createdAt     time.Time
	startedAt     *time.Time
	stoppedAt     *time.Time
	exitCode      *int
	exitReason    string
	restartCount  int
}

func newMemContainerStore() *memContainerStore {
	return &memContainerStore{rows: map[string]*containerRow{}}
}

func (s *memContainerStore) Insert(ctx context.Context, c *container.Container) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[c.ID()]; exists {
		return fmt.Errorf("container %s already exists", c.ID())
	}
	s.rows[c.ID()] = &containerRow{
		id:            c.ID(),
		playerID:      c.PlayerID(),
		containerType: c.Type(),
		config:        c.Config(),
		restartPolicy: c.RestartPolicy(),
		maxIterations: c.MaxIterations(),
		status:        c.Status(),
		createdAt:     c.CreatedAt(),
		startedAt:     c.StartedAt(),
		stoppedAt:     c.StoppedAt(),
		exitCode:      c.ExitCode(),
		exitReason:    c.ExitReason(),
		restartCount:  c.RestartCount(),
	}
	return nil
}

// seed inserts a raw row, bypassing entity construction. Tests use it to
// model rows left behind by a previous daemon process.
func (s *memContainerStore) seed(row *containerRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[row.id] = row
}

func (s *memContainerStore) UpdateStatus(ctx context.Context, containerID string, playerID int, status container.ContainerStatus, stoppedAt *time.Time, exitCode *int, exitReason string) error {
	if exitCode != nil && (!status.IsTerminal() || stoppedAt == nil) {
		return fmt.Errorf("exit code requires a terminal status and stop time")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.rows[containerID]
	if !exists {
		return fmt.Errorf("container %s not found", containerID)
	}
	if row.status.IsTerminal() {
		return fmt.Errorf("container %s is already terminal", containerID)
	}

	row.status = status
	if status == container.ContainerStatusRunning && row.startedAt == nil {
		now := time.Now().UTC()
		row.startedAt = &now
	}
	if stoppedAt != nil {
		row.stoppedAt = stoppedAt
		row.exitCode = exitCode
		row.exitReason = exitReason
	}
	return nil
}

func (s *memContainerStore) Get(ctx context.Context, containerID string, playerID int) (*container.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.rows[containerID]
	if !exists || (playerID > 0 && row.playerID != playerID) {
		return nil, nil
	}
	return row.toEntity(), nil
}

func (s *memContainerStore) List(ctx context.Context, playerID *int, status *container.ContainerStatus) ([]*container.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []*container.Container{}
	for _, row := range s.rows {
		if playerID != nil && row.playerID != *playerID {
			continue
		}
		if status != nil && row.status != *status {
			continue
		}
		result = append(result, row.toEntity())
	}
	return result, nil
}

func (s *memContainerStore) Delete(ctx context.Context, containerID string, playerID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.rows[containerID]
	if !exists {
		return fmt.Errorf("container %s not found", containerID)
	}
	if !row.status.IsTerminal() {
		return fmt.Errorf("container %s is not terminal", containerID)
	}
	delete(s.rows, containerID)
	return nil
}

// status returns the stored status, for assertions
func (s *memContainerStore) storedStatus(containerID string) (container.ContainerStatus, *int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.rows[containerID]
	if !exists {
		return "", nil
	}
	return row.status, row.exitCode
}

func (row *containerRow) toEntity() *container.Container {
	return container.RecoverContainer(
		row.id, row.containerType, row.playerID, row.config, row.restartPolicy,
		row.maxIterations, row.status, row.createdAt, row.startedAt, row.stoppedAt,
		row.exitCode, row.exitReason, row.restartCount, nil,
	)
}

// memLogStore is an in-memory ContainerLogRepository
type memLogStore struct {
	mu      sync.Mutex
	entries []*container.ContainerLogEntry
}

func (s *memLogStore) Append(ctx context.Context, containerID string, playerID int, level, message string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &container.ContainerLogEntry{
		ContainerID: containerID,
		PlayerID:    playerID,
		Timestamp:   ts,
		Level:       level,
		Message:     message,
	})
	return nil
}

func (s *memLogStore) Read(ctx context.Context, containerID string, filter container.LogFilter) ([]*container.ContainerLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []*container.ContainerLogEntry{}
	for _, entry := range s.entries {
		if entry.ContainerID != containerID {
			continue
		}
		if filter.Level != "" && entry.Level != filter.Level {
			continue
		}
		result = append(result, entry)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

func (s *memLogStore) DeleteByContainer(ctx context.Context, containerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, entry := range s.entries {
		if entry.ContainerID != containerID {
			kept = append(kept, entry)
		}
	}
	s.entries = kept
	return nil
}

// memAssignmentStore is an in-memory ShipAssignmentRepository
type memAssignmentStore struct {
	mu          sync.Mutex
	assignments map[string]*container.ShipAssignment
}

func newMemAssignmentStore() *memAssignmentStore {
	return &memAssignmentStore{assignments: map[string]*container.ShipAssignment{}}
}

func assignmentKey(playerID int, shipSymbol string) string {
	return fmt.Sprintf("%d/%s", playerID, shipSymbol)
}

func (s *memAssignmentStore) Assign(ctx context.Context, shipSymbol string, playerID int, containerID, operation string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assignmentKey(playerID, shipSymbol)
	if existing, ok := s.assignments[key]; ok && existing.IsActive() {
		return false, nil
	}
	assignment, err := container.NewShipAssignment(shipSymbol, playerID, containerID, operation, nil)
	if err != nil {
		return false, err
	}
	s.assignments[key] = assignment
	return true, nil
}

func (s *memAssignmentStore) Reassign(ctx context.Context, shipSymbol string, playerID int, oldContainerID, newContainerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	assignment, ok := s.assignments[assignmentKey(playerID, shipSymbol)]
	if !ok {
		return fmt.Errorf("no assignment for %s", shipSymbol)
	}
	return assignment.Reassign(oldContainerID, newContainerID, nil)
}

func (s *memAssignmentStore) Release(ctx context.Context, shipSymbol string, playerID int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if assignment, ok := s.assignments[assignmentKey(playerID, shipSymbol)]; ok {
		assignment.Release(reason, nil)
	}
	return nil
}

func (s *memAssignmentStore) CheckAvailable(ctx context.Context, shipSymbol string, playerID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assignment, ok := s.assignments[assignmentKey(playerID, shipSymbol)]
	return !ok || !assignment.IsActive(), nil
}

func (s *memAssignmentStore) GetInfo(ctx context.Context, shipSymbol string, playerID int) (*container.ShipAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assignment, ok := s.assignments[assignmentKey(playerID, shipSymbol)]
	if !ok {
		return nil, nil
	}
	copied := *assignment
	return &copied, nil
}

func (s *memAssignmentStore) ListActive(ctx context.Context) ([]*container.ShipAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []*container.ShipAssignment{}
	for _, assignment := range s.assignments {
		if assignment.IsActive() {
			copied := *assignment
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (s *memAssignmentStore) ReleaseByContainer(ctx context.Context, containerID string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, assignment := range s.assignments {
		if assignment.IsActive() && assignment.ContainerID == containerID {
			assignment.Release(reason, nil)
		}
	}
	return nil
}

func (s *memAssignmentStore) ReleaseAllActive(ctx context.Context, reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var released int64
	for _, assignment := range s.assignments {
		if assignment.IsActive() {
			assignment.Release(reason, nil)
			released++
		}
	}
	return released, nil
}

// fakeFleetRepo resolves ships from a fixed set; unknown symbols error
// like the API-backed repository does
type fakeFleetRepo struct {
	mu    sync.Mutex
	ships map[string]*navigation.Ship
}

func newFakeFleetRepo(symbols ...string) *fakeFleetRepo {
	repo := &fakeFleetRepo{ships: map[string]*navigation.Ship{}}
	for _, symbol := range symbols {
		repo.ships[symbol] = testShipNamed(symbol)
	}
	return repo
}

func testShipNamed(symbol string) *navigation.Ship {
	waypoint, _ := shared.NewWaypoint("X1-TEST-A1", 0, 0)
	fuel, _ := shared.NewFuel(400, 400)
	ship, _ := navigation.NewShip(symbol, 1, waypoint, fuel, 30, "FRAME_PROBE", "SATELLITE", navigation.NavStatusInOrbit, "CRUISE")
	return ship
}

func (r *fakeFleetRepo) FindBySymbol(ctx context.Context, symbol string, playerID int) (*navigation.Ship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ship, ok := r.ships[symbol]
	if !ok {
		return nil, fmt.Errorf("ship %s not found", symbol)
	}
	return ship, nil
}

func (r *fakeFleetRepo) FindAllByPlayer(ctx context.Context, playerID int) ([]*navigation.Ship, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := []*navigation.Ship{}
	for _, ship := range r.ships {
		result = append(result, ship)
	}
	return result, nil
}

func (r *fakeFleetRepo) Navigate(ctx context.Context, ship *navigation.Ship, destination *shared.Waypoint, playerID int) (*common.NavigationResult, error) {
	return &common.NavigationResult{}, nil
}

func (r *fakeFleetRepo) Dock(ctx context.Context, ship *navigation.Ship, playerID int) error {
	return nil
}

func (r *fakeFleetRepo) Orbit(ctx context.Context, ship *navigation.Ship, playerID int) error {
	return nil
}

func (r *fakeFleetRepo) Refuel(ctx context.Context, ship *navigation.Ship, playerID int, units *int) (*common.RefuelResult, error) {
	return &common.RefuelResult{}, nil
}

func (r *fakeFleetRepo) SetFlightMode(ctx context.Context, ship *navigation.Ship, playerID int, mode string) error {
	return nil
}

// scriptedSender routes every dispatch through a test-provided function
type scriptedSender struct {
	mu     sync.Mutex
	calls  []mediator.Request
	handle func(ctx context.Context, request mediator.Request) (mediator.Response, error)
}

func (s *scriptedSender) Send(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, request)
	s.mu.Unlock()
	return s.handle(ctx, request)
}

func (s *scriptedSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func testLogger() *log.Logger {
	return &log.Logger{Writer: &log.IOWriter{Writer: io.Discard}}
}

type managerFixture struct {
	manager     *Manager
	store       *memContainerStore
	logs        *memLogStore
	assignments *memAssignmentStore
	ships       *fakeFleetRepo
	sender      *scriptedSender
}

func newManagerFixture(shipSymbols ...string) *managerFixture {
	store := newMemContainerStore()
	logs := &memLogStore{}
	assignments := newMemAssignmentStore()
	ships := newFakeFleetRepo(shipSymbols...)
	sender := &scriptedSender{
		handle: func(ctx context.Context, request mediator.Request) (mediator.Response, error) {
			return struct{}{}, nil
		},
	}

	manager := NewManager(store, logs, assignments, ships, NewDefaultRegistry(), sender, nil, testLogger(), 0)
	return &managerFixture{
		manager:     manager,
		store:       store,
		logs:        logs,
		assignments: assignments,
		ships:       ships,
		sender:      sender,
	}
}
