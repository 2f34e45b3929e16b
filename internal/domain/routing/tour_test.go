package routing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarforge/fleetd/internal/domain/routing"
	"github.com/stellarforge/fleetd/internal/domain/shared"
	"github.com/stellarforge/fleetd/internal/domain/system"
)

const testBudget = time.Second

func tourGraph() *system.SystemGraph {
	g := system.NewSystemGraph("X1-TEST")
	g.AddWaypoint(&shared.Waypoint{Symbol: "X1-TEST-HOME", X: 0, Y: 0, HasFuel: true})
	g.AddWaypoint(&shared.Waypoint{Symbol: "X1-TEST-M1", X: 10, Y: 0, HasFuel: true})
	g.AddWaypoint(&shared.Waypoint{Symbol: "X1-TEST-M2", X: 20, Y: 0, HasFuel: true})
	g.AddWaypoint(&shared.Waypoint{Symbol: "X1-TEST-M3", X: 30, Y: 0, HasFuel: true})
	return g
}

func TestOptimizeTour_ClosedTourVisitsEachTargetOnce(t *testing.T) {
	g := tourGraph()

	tour, err := routing.OptimizeTour(g, "X1-TEST-HOME",
		[]string{"X1-TEST-M3", "X1-TEST-M1", "X1-TEST-M2"}, 100, 30, testBudget)
	require.NoError(t, err)

	require.Len(t, tour.VisitOrder, 5)
	assert.Equal(t, "X1-TEST-HOME", tour.VisitOrder[0])
	assert.Equal(t, "X1-TEST-HOME", tour.VisitOrder[len(tour.VisitOrder)-1])

	visited := map[string]int{}
	for _, symbol := range tour.VisitOrder[1 : len(tour.VisitOrder)-1] {
		visited[symbol]++
	}
	assert.Equal(t, map[string]int{
		"X1-TEST-M1": 1,
		"X1-TEST-M2": 1,
		"X1-TEST-M3": 1,
	}, visited)

	// Colinear markets: the optimal sweep is M1, M2, M3 and back
	assert.Equal(t, []string{"X1-TEST-HOME", "X1-TEST-M1", "X1-TEST-M2", "X1-TEST-M3", "X1-TEST-HOME"}, tour.VisitOrder)
	assert.Greater(t, tour.TotalTimeSeconds, 0)
	assert.NotEmpty(t, tour.CombinedRoute)
}

func TestOptimizeTour_ZeroTargetsIsTrivial(t *testing.T) {
	g := tourGraph()

	tour, err := routing.OptimizeTour(g, "X1-TEST-HOME", nil, 100, 30, testBudget)
	require.NoError(t, err)

	assert.Equal(t, []string{"X1-TEST-HOME"}, tour.VisitOrder)
	assert.Empty(t, tour.CombinedRoute)
	assert.Equal(t, 0, tour.TotalTimeSeconds)
}

func TestOptimizeTour_DropsDuplicatesAndStart(t *testing.T) {
	g := tourGraph()

	tour, err := routing.OptimizeTour(g, "X1-TEST-HOME",
		[]string{"X1-TEST-M1", "X1-TEST-M1", "X1-TEST-HOME"}, 100, 30, testBudget)
	require.NoError(t, err)

	assert.Equal(t, []string{"X1-TEST-HOME", "X1-TEST-M1", "X1-TEST-HOME"}, tour.VisitOrder)
}

func TestOptimizeTour_UnknownTargetErrors(t *testing.T) {
	g := tourGraph()

	_, err := routing.OptimizeTour(g, "X1-TEST-HOME", []string{"X1-TEST-NOPE"}, 100, 30, testBudget)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
