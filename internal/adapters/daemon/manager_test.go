package daemon

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/mediator"
	"github.com/stellarforge/fleetd/internal/application/scouting"
	"github.com/stellarforge/fleetd/internal/application/ship"
	"github.com/stellarforge/fleetd/internal/domain/container"
	domaindaemon "github.com/stellarforge/fleetd/internal/domain/daemon"
)

func waitForStatus(t *testing.T, store *memContainerStore, containerID string, want container.ContainerStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		status, _ := store.storedStatus(containerID)
		return status == want
	}, 2*time.Second, 5*time.Millisecond, "container %s never reached %s", containerID, want)
}

func TestCreateContainerRunsToCompletion(t *testing.T) {
	f := newManagerFixture("SCOUT-1")
	f.sender.handle = func(ctx context.Context, request mediator.Request) (mediator.Response, error) {
		return &ship.NavigateRouteResponse{Status: "completed"}, nil
	}

	containerID, err := f.manager.CreateContainer(context.Background(), &common.ContainerSpec{
		PlayerID:    1,
		CommandType: "navigate_route",
		Config: map[string]interface{}{
			"ship_symbol": "SCOUT-1",
			"destination": "X1-TEST-B2",
		},
	})
	require.NoError(t, err)

	waitForStatus(t, f.store, containerID, container.ContainerStatusStopped)
	_, exitCode := f.store.storedStatus(containerID)
	require.NotNil(t, exitCode)
	assert.Equal(t, container.ExitCodeCompleted, *exitCode)

	// The ship lock is freed on the happy path with reason completed
	info, err := f.assignments.GetInfo(context.Background(), "SCOUT-1", 1)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.False(t, info.IsActive())
	assert.Equal(t, container.ReleaseReasonCompleted, info.ReleaseReason)
}

func TestCreateContainerRejectsUnknownCommandType(t *testing.T) {
	f := newManagerFixture()

	_, err := f.manager.CreateContainer(context.Background(), &common.ContainerSpec{
		PlayerID:    1,
		CommandType: "mine_asteroids",
		Config:      map[string]interface{}{"ship_symbol": "MINER-1"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command type")
}

func TestCreateContainerRejectsBusyShip(t *testing.T) {
	f := newManagerFixture("SCOUT-1")
	_, err := f.assignments.Assign(context.Background(), "SCOUT-1", 1, "other-container", "scout_tour")
	require.NoError(t, err)

	_, err = f.manager.CreateContainer(context.Background(), &common.ContainerSpec{
		PlayerID:    1,
		CommandType: "navigate_route",
		Config: map[string]interface{}{
			"ship_symbol": "SCOUT-1",
			"destination": "X1-TEST-B2",
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "held by other-container")
}

func TestCreateContainerKeepsPreAssignedShip(t *testing.T) {
	// A deployer assigns the ship to the new container id before creating
	// it; creation must not fight its own lock
	f := newManagerFixture("SCOUT-1")
	f.sender.handle = func(ctx context.Context, request mediator.Request) (mediator.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	acquired, err := f.assignments.Assign(context.Background(), "SCOUT-1", 1, "scout-tour-SCOUT-1-abc", "scout_tour")
	require.NoError(t, err)
	require.True(t, acquired)

	containerID, err := f.manager.CreateContainer(context.Background(), &common.ContainerSpec{
		ContainerID: "scout-tour-SCOUT-1-abc",
		PlayerID:    1,
		CommandType: "scout_tour",
		Config: map[string]interface{}{
			"ship_symbol": "SCOUT-1",
			"markets":     []interface{}{"X1-TEST-B2", "X1-TEST-C3"},
			"iterations":  float64(1),
		},
		MaxIterations: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "scout-tour-SCOUT-1-abc", containerID)

	info, err := f.assignments.GetInfo(context.Background(), "SCOUT-1", 1)
	require.NoError(t, err)
	assert.True(t, info.IsActive())
	assert.Equal(t, containerID, info.ContainerID)

	require.NoError(t, f.manager.Stop(containerID))
}

func TestStopDuringLongSleepReturnsWithinTwoSeconds(t *testing.T) {
	f := newManagerFixture("SCOUT-1")
	// The workload parks on a long cooperative wait; only cancellation
	// ends it
	f.sender.handle = func(ctx context.Context, request mediator.Request) (mediator.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	containerID, err := f.manager.CreateContainer(context.Background(), &common.ContainerSpec{
		PlayerID:    1,
		CommandType: "scout_tour",
		Config: map[string]interface{}{
			"ship_symbol": "SCOUT-1",
			"markets":     []interface{}{"X1-TEST-B2"},
			"iterations":  float64(-1),
		},
		MaxIterations: container.IterationsInfinite,
	})
	require.NoError(t, err)

	waitForStatus(t, f.store, containerID, container.ContainerStatusRunning)

	start := time.Now()
	require.NoError(t, f.manager.Stop(containerID))
	assert.Less(t, time.Since(start), 2*time.Second)

	// The stop is visible immediately in memory and store
	c, err := f.manager.Get(context.Background(), containerID)
	require.NoError(t, err)
	assert.Equal(t, container.ContainerStatusStopped, c.Status())
	status, exitCode := f.store.storedStatus(containerID)
	assert.Equal(t, container.ContainerStatusStopped, status)
	require.NotNil(t, exitCode)
	assert.Equal(t, container.ExitCodeStopped, *exitCode)

	// Cleanup runs in the background and frees the ship with reason stopped
	require.Eventually(t, func() bool {
		info, err := f.assignments.GetInfo(context.Background(), "SCOUT-1", 1)
		return err == nil && info != nil && !info.IsActive() && info.ReleaseReason == container.ReleaseReasonStopped
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStopIsIdempotent(t *testing.T) {
	f := newManagerFixture("SCOUT-1")
	f.sender.handle = func(ctx context.Context, request mediator.Request) (mediator.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	containerID, err := f.manager.CreateContainer(context.Background(), &common.ContainerSpec{
		PlayerID:    1,
		CommandType: "navigate_route",
		Config: map[string]interface{}{
			"ship_symbol": "SCOUT-1",
			"destination": "X1-TEST-B2",
		},
	})
	require.NoError(t, err)

	require.NoError(t, f.manager.Stop(containerID))
	require.NoError(t, f.manager.Stop(containerID))

	_, exitCode := f.store.storedStatus(containerID)
	require.NotNil(t, exitCode)
	assert.Equal(t, container.ExitCodeStopped, *exitCode)
}

func TestListMergesMemoryAndStore(t *testing.T) {
	f := newManagerFixture("SCOUT-1")
	f.sender.handle = func(ctx context.Context, request mediator.Request) (mediator.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	// A terminal row from a previous run lives only in the store
	stoppedAt := time.Now().UTC()
	code := container.ExitCodeCompleted
	f.store.seed(&containerRow{
		id:            "navigate-OLD-1-deadbeef",
		playerID:      1,
		containerType: container.ContainerTypeCommand,
		config:        map[string]interface{}{"command_type": "navigate_route"},
		maxIterations: 1,
		status:        container.ContainerStatusStopped,
		createdAt:     stoppedAt.Add(-time.Hour),
		stoppedAt:     &stoppedAt,
		exitCode:      &code,
		exitReason:    container.ExitReasonCompleted,
	})

	liveID, err := f.manager.CreateContainer(context.Background(), &common.ContainerSpec{
		PlayerID:    1,
		CommandType: "navigate_route",
		Config: map[string]interface{}{
			"ship_symbol": "SCOUT-1",
			"destination": "X1-TEST-B2",
		},
	})
	require.NoError(t, err)

	containers, err := f.manager.List(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, containers, 2)

	ids := map[string]container.ContainerStatus{}
	for _, c := range containers {
		ids[c.ID()] = c.Status()
	}
	assert.Equal(t, container.ContainerStatusStopped, ids["navigate-OLD-1-deadbeef"])
	assert.Contains(t, ids, liveID)

	running := container.ContainerStatusRunning
	containers, err = f.manager.List(context.Background(), nil, &running)
	require.NoError(t, err)
	for _, c := range containers {
		assert.Equal(t, running, c.Status())
	}

	require.NoError(t, f.manager.Stop(liveID))
}

func TestRemoveRejectsLiveContainer(t *testing.T) {
	f := newManagerFixture("SCOUT-1")
	f.sender.handle = func(ctx context.Context, request mediator.Request) (mediator.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	containerID, err := f.manager.CreateContainer(context.Background(), &common.ContainerSpec{
		PlayerID:    1,
		CommandType: "navigate_route",
		Config: map[string]interface{}{
			"ship_symbol": "SCOUT-1",
			"destination": "X1-TEST-B2",
		},
	})
	require.NoError(t, err)
	waitForStatus(t, f.store, containerID, container.ContainerStatusRunning)

	err = f.manager.Remove(context.Background(), containerID, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop it before removing")

	require.NoError(t, f.manager.Stop(containerID))
	require.NoError(t, f.manager.Remove(context.Background(), containerID, 1))

	_, err = f.manager.Get(context.Background(), containerID)
	require.Error(t, err)

	entries, err := f.logs.Read(context.Background(), containerID, container.LogFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunnerAdvancesIterationsFromWorkloadReport(t *testing.T) {
	f := newManagerFixture("SCOUT-1")
	f.sender.handle = func(ctx context.Context, request mediator.Request) (mediator.Response, error) {
		cmd := request.(*scouting.ScoutTourCommand)
		// The tour consumes its whole iteration budget in one dispatch
		return &scouting.ScoutTourResponse{Iterations: cmd.Iterations, MarketsVisited: cmd.Iterations}, nil
	}

	containerID, err := f.manager.CreateContainer(context.Background(), &common.ContainerSpec{
		PlayerID:    1,
		CommandType: "scout_tour",
		Config: map[string]interface{}{
			"ship_symbol": "SCOUT-1",
			"markets":     []interface{}{"X1-TEST-B2", "X1-TEST-C3"},
			"iterations":  float64(5),
		},
		MaxIterations: 5,
	})
	require.NoError(t, err)

	waitForStatus(t, f.store, containerID, container.ContainerStatusStopped)
	assert.Equal(t, 1, f.sender.callCount(), "one dispatch covers the whole budget")

	c, err := f.manager.Get(context.Background(), containerID)
	require.NoError(t, err)
	assert.Equal(t, 5, c.CurrentIteration())
	require.NotNil(t, c.ExitCode())
	assert.Equal(t, container.ExitCodeCompleted, *c.ExitCode())
}

func TestRunnerRestartsOnFailurePolicy(t *testing.T) {
	f := newManagerFixture("SCOUT-1")
	failures := 0
	f.sender.handle = func(ctx context.Context, request mediator.Request) (mediator.Response, error) {
		if failures == 0 {
			failures++
			return nil, fmt.Errorf("transient API fault")
		}
		return &ship.NavigateRouteResponse{Status: "completed"}, nil
	}

	containerID, err := f.manager.CreateContainer(context.Background(), &common.ContainerSpec{
		PlayerID:    1,
		CommandType: "navigate_route",
		Config: map[string]interface{}{
			"ship_symbol": "SCOUT-1",
			"destination": "X1-TEST-B2",
		},
		RestartPolicy: string(container.RestartPolicyOnFailure),
	})
	require.NoError(t, err)

	waitForStatus(t, f.store, containerID, container.ContainerStatusStopped)

	c, err := f.manager.Get(context.Background(), containerID)
	require.NoError(t, err)
	assert.Equal(t, 1, c.RestartCount())
	require.NotNil(t, c.ExitCode())
	assert.Equal(t, container.ExitCodeCompleted, *c.ExitCode())
}

func TestRunnerFailureWithoutRestartPolicy(t *testing.T) {
	f := newManagerFixture("SCOUT-1")
	f.sender.handle = func(ctx context.Context, request mediator.Request) (mediator.Response, error) {
		return nil, fmt.Errorf("destination unreachable with current fuel")
	}

	containerID, err := f.manager.CreateContainer(context.Background(), &common.ContainerSpec{
		PlayerID:    1,
		CommandType: "navigate_route",
		Config: map[string]interface{}{
			"ship_symbol": "SCOUT-1",
			"destination": "X1-TEST-B2",
		},
	})
	require.NoError(t, err)

	waitForStatus(t, f.store, containerID, container.ContainerStatusFailed)
	_, exitCode := f.store.storedStatus(containerID)
	require.NotNil(t, exitCode)
	assert.Equal(t, container.ExitCodeFailed, *exitCode)

	// Failure frees the ship with reason failed
	require.Eventually(t, func() bool {
		info, err := f.assignments.GetInfo(context.Background(), "SCOUT-1", 1)
		return err == nil && info != nil && !info.IsActive() && info.ReleaseReason == container.ReleaseReasonFailed
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRunnerPanicFailsOnlyThatContainer(t *testing.T) {
	f := newManagerFixture("SCOUT-1", "SCOUT-2")
	f.sender.handle = func(ctx context.Context, request mediator.Request) (mediator.Response, error) {
		if cmd, ok := request.(*ship.NavigateRouteCommand); ok && cmd.ShipSymbol == "SCOUT-1" {
			panic("nil waypoint in route step")
		}
		return &ship.NavigateRouteResponse{Status: "completed"}, nil
	}

	panicked, err := f.manager.CreateContainer(context.Background(), &common.ContainerSpec{
		PlayerID:    1,
		CommandType: "navigate_route",
		Config: map[string]interface{}{
			"ship_symbol": "SCOUT-1",
			"destination": "X1-TEST-B2",
		},
	})
	require.NoError(t, err)

	waitForStatus(t, f.store, panicked, container.ContainerStatusFailed)
	_, exitCode := f.store.storedStatus(panicked)
	require.NotNil(t, exitCode)
	assert.Equal(t, container.ExitCodeFailed, *exitCode)

	c, err := f.manager.Get(context.Background(), panicked)
	require.NoError(t, err)
	assert.Contains(t, c.ExitReason(), "panic")

	// The panicking workload still frees its ship
	require.Eventually(t, func() bool {
		info, err := f.assignments.GetInfo(context.Background(), "SCOUT-1", 1)
		return err == nil && info != nil && !info.IsActive() && info.ReleaseReason == container.ReleaseReasonFailed
	}, 2*time.Second, 5*time.Millisecond)

	// The manager keeps serving other containers
	healthy, err := f.manager.CreateContainer(context.Background(), &common.ContainerSpec{
		PlayerID:    1,
		CommandType: "navigate_route",
		Config: map[string]interface{}{
			"ship_symbol": "SCOUT-2",
			"destination": "X1-TEST-B2",
		},
	})
	require.NoError(t, err)
	waitForStatus(t, f.store, healthy, container.ContainerStatusStopped)
}

func TestHealthMonitorSweepsAgainstManagerLiveSet(t *testing.T) {
	f := newManagerFixture("SCOUT-1", "SCOUT-2")
	f.sender.handle = func(ctx context.Context, request mediator.Request) (mediator.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	liveID, err := f.manager.CreateContainer(context.Background(), &common.ContainerSpec{
		PlayerID:    1,
		CommandType: "navigate_route",
		Config: map[string]interface{}{
			"ship_symbol": "SCOUT-1",
			"destination": "X1-TEST-B2",
		},
	})
	require.NoError(t, err)
	waitForStatus(t, f.store, liveID, container.ContainerStatusRunning)

	// A lock left behind by a container no runner supervises
	acquired, err := f.assignments.Assign(context.Background(), "SCOUT-2", 1, "scout-tour-SCOUT-2-dead", "scout_tour")
	require.NoError(t, err)
	require.True(t, acquired)

	monitor := domaindaemon.NewHealthMonitor(time.Minute, f.manager, f.assignments, nil, nil)
	released, err := monitor.RunCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	leaked, err := f.assignments.GetInfo(context.Background(), "SCOUT-2", 1)
	require.NoError(t, err)
	assert.False(t, leaked.IsActive())
	assert.Equal(t, container.ReleaseReasonStale, leaked.ReleaseReason)

	held, err := f.assignments.GetInfo(context.Background(), "SCOUT-1", 1)
	require.NoError(t, err)
	assert.True(t, held.IsActive())
	assert.Equal(t, liveID, held.ContainerID)

	require.NoError(t, f.manager.Stop(liveID))
}

func TestCreateContainerEnforcesLimit(t *testing.T) {
	store := newMemContainerStore()
	manager := NewManager(store, &memLogStore{}, newMemAssignmentStore(), newFakeFleetRepo("SCOUT-1", "SCOUT-2"),
		NewDefaultRegistry(), &scriptedSender{handle: func(ctx context.Context, request mediator.Request) (mediator.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}, nil, testLogger(), 1)

	first, err := manager.CreateContainer(context.Background(), &common.ContainerSpec{
		PlayerID:    1,
		CommandType: "navigate_route",
		Config:      map[string]interface{}{"ship_symbol": "SCOUT-1", "destination": "X1-TEST-B2"},
	})
	require.NoError(t, err)

	_, err = manager.CreateContainer(context.Background(), &common.ContainerSpec{
		PlayerID:    1,
		CommandType: "navigate_route",
		Config:      map[string]interface{}{"ship_symbol": "SCOUT-2", "destination": "X1-TEST-B2"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "container limit")

	require.NoError(t, manager.Stop(first))
}
