package routing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarforge/fleetd/internal/domain/routing"
	"github.com/stellarforge/fleetd/internal/domain/shared"
	"github.com/stellarforge/fleetd/internal/domain/system"
)

func lineGraph() *system.SystemGraph {
	g := system.NewSystemGraph("X1-TEST")
	g.AddWaypoint(&shared.Waypoint{Symbol: "X1-TEST-A", X: 0, Y: 0, HasFuel: true})
	g.AddWaypoint(&shared.Waypoint{Symbol: "X1-TEST-B", X: 100, Y: 0})
	g.AddWaypoint(&shared.Waypoint{Symbol: "X1-TEST-GOAL", X: 200, Y: 0, HasFuel: true})
	return g
}

func TestPlanPath_RefuelsBeforeLongLeg(t *testing.T) {
	g := lineGraph()

	route, err := routing.PlanPath(g, "X1-TEST-A", "X1-TEST-GOAL", 60, 200, 30)
	require.NoError(t, err)
	require.NotNil(t, route)
	require.NotEmpty(t, route.Steps)

	// Starting fuel cannot cover the distance in CRUISE, so the route tops
	// up at the start station before departing
	first := route.Steps[0]
	assert.Equal(t, routing.RouteActionRefuel, first.Action)
	assert.Equal(t, "X1-TEST-A", first.Waypoint)
	assert.Equal(t, 140, first.Amount)

	for _, step := range route.Steps[1:] {
		assert.Equal(t, routing.RouteActionTravel, step.Action)
		assert.Equal(t, "CRUISE", step.Mode)
	}

	last := route.Steps[len(route.Steps)-1]
	assert.Equal(t, "X1-TEST-GOAL", last.Waypoint)
	assert.Equal(t, 200, route.TotalFuelCost)
	assert.Equal(t, 206, route.TotalTimeSeconds)
}

func TestPlanPath_OrbitalHopIsFree(t *testing.T) {
	g := system.NewSystemGraph("X1-TEST")
	g.AddWaypoint(&shared.Waypoint{
		Symbol: "X1-TEST-PLANET", X: 0, Y: 0,
		Orbitals: []string{"X1-TEST-STATION"},
	})
	g.AddWaypoint(&shared.Waypoint{Symbol: "X1-TEST-STATION", X: 0, Y: 0})

	route, err := routing.PlanPath(g, "X1-TEST-PLANET", "X1-TEST-STATION", 10, 100, 30)
	require.NoError(t, err)
	require.NotNil(t, route)
	require.Len(t, route.Steps, 1)

	step := route.Steps[0]
	assert.Equal(t, routing.RouteActionTravel, step.Action)
	assert.Equal(t, "X1-TEST-STATION", step.Waypoint)
	assert.Equal(t, 0.0, step.Distance)
	assert.Equal(t, 0, step.FuelCost)
	assert.Equal(t, 1, step.TimeSeconds)
	assert.Equal(t, "CRUISE", step.Mode)
}

func TestPlanPath_StartEqualsGoal(t *testing.T) {
	g := lineGraph()

	route, err := routing.PlanPath(g, "X1-TEST-A", "X1-TEST-A", 50, 100, 30)
	require.NoError(t, err)
	require.NotNil(t, route)
	assert.Empty(t, route.Steps)
	assert.Equal(t, 0, route.TotalFuelCost)
	assert.Equal(t, 0, route.TotalTimeSeconds)
	assert.Equal(t, 0.0, route.TotalDistance)
}

func TestPlanPath_NoFeasiblePathReturnsNil(t *testing.T) {
	g := system.NewSystemGraph("X1-TEST")
	g.AddWaypoint(&shared.Waypoint{Symbol: "X1-TEST-A", X: 0, Y: 0})
	g.AddWaypoint(&shared.Waypoint{Symbol: "X1-TEST-B", X: 1000, Y: 0})

	// Fuel below even the DRIFT cost of the only hop, no station to top up
	route, err := routing.PlanPath(g, "X1-TEST-A", "X1-TEST-B", 0, 100, 30)
	require.NoError(t, err)
	assert.Nil(t, route)
}

func TestPlanPath_DriftOnlyWhenNothingElseFits(t *testing.T) {
	g := system.NewSystemGraph("X1-TEST")
	g.AddWaypoint(&shared.Waypoint{Symbol: "X1-TEST-A", X: 0, Y: 0})
	g.AddWaypoint(&shared.Waypoint{Symbol: "X1-TEST-B", X: 100, Y: 0})

	// Not enough for CRUISE and nowhere to refuel: DRIFT is the last resort
	route, err := routing.PlanPath(g, "X1-TEST-A", "X1-TEST-B", 50, 100, 30)
	require.NoError(t, err)
	require.NotNil(t, route)
	require.Len(t, route.Steps, 1)
	assert.Equal(t, "DRIFT", route.Steps[0].Mode)

	// With CRUISE affordable the planner must never emit DRIFT
	route, err = routing.PlanPath(g, "X1-TEST-A", "X1-TEST-B", 150, 200, 30)
	require.NoError(t, err)
	require.NotNil(t, route)
	for _, step := range route.Steps {
		assert.NotEqual(t, "DRIFT", step.Mode)
	}
}

func TestPlanPath_UnknownWaypointErrors(t *testing.T) {
	g := lineGraph()

	_, err := routing.PlanPath(g, "X1-TEST-NOPE", "X1-TEST-GOAL", 50, 100, 30)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = routing.PlanPath(g, "X1-TEST-A", "X1-TEST-NOPE", 50, 100, 30)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPlanPath_RefuelOnlyAtFuelStations(t *testing.T) {
	g := lineGraph()

	route, err := routing.PlanPath(g, "X1-TEST-A", "X1-TEST-GOAL", 60, 200, 30)
	require.NoError(t, err)
	require.NotNil(t, route)

	for _, step := range route.Steps {
		if step.Action != routing.RouteActionRefuel {
			continue
		}
		wp, err := g.GetWaypoint(step.Waypoint)
		require.NoError(t, err)
		assert.True(t, wp.HasFuel, "refuel at %s which has no fuel", step.Waypoint)
	}
}
