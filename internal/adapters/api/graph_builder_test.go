package api

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarforge/fleetd/internal/application/common"
)

type fakeWaypointLister struct {
	common.APIClient
	pages map[int][]common.WaypointAPIData
	total int
	calls int
}

func (f *fakeWaypointLister) ListWaypoints(ctx context.Context, systemSymbol, token string, page, limit int) (*common.WaypointsListResponse, error) {
	f.calls++
	return &common.WaypointsListResponse{
		Data: f.pages[page],
		Meta: common.PaginationMeta{Total: f.total, Page: page, Limit: limit},
	}, nil
}

type fakePlayerRepo struct{}

func (f *fakePlayerRepo) FindByID(ctx context.Context, playerID int) (*common.Player, error) {
	return &common.Player{ID: playerID, AgentSymbol: "AGENT", Token: "test-token"}, nil
}

func (f *fakePlayerRepo) FindByAgentSymbol(ctx context.Context, agentSymbol string) (*common.Player, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakePlayerRepo) Save(ctx context.Context, player *common.Player) error { return nil }

func (f *fakePlayerRepo) List(ctx context.Context) ([]*common.Player, error) { return nil, nil }

func waypointData(symbol string, x, y float64, traits []string, orbitals []string) common.WaypointAPIData {
	traitMaps := make([]map[string]interface{}, len(traits))
	for i, trait := range traits {
		traitMaps[i] = map[string]interface{}{"symbol": trait}
	}
	orbitalMaps := make([]map[string]string, len(orbitals))
	for i, orbital := range orbitals {
		orbitalMaps[i] = map[string]string{"symbol": orbital}
	}
	return common.WaypointAPIData{Symbol: symbol, Type: "PLANET", X: x, Y: y, Traits: traitMaps, Orbitals: orbitalMaps}
}

func TestGraphBuilder_FollowsPagination(t *testing.T) {
	page1 := make([]common.WaypointAPIData, 0, waypointPageLimit)
	for i := 0; i < waypointPageLimit; i++ {
		page1 = append(page1, waypointData(fmt.Sprintf("X1-TEST-A%d", i), float64(i), 0, nil, nil))
	}
	page2 := []common.WaypointAPIData{
		waypointData("X1-TEST-B1", 100, 100, []string{"MARKETPLACE"}, nil),
	}

	client := &fakeWaypointLister{pages: map[int][]common.WaypointAPIData{1: page1, 2: page2}, total: 21}
	builder := NewGraphBuilder(client, &fakePlayerRepo{})

	graph, err := builder.BuildSystemGraph(context.Background(), "X1-TEST", 1)
	require.NoError(t, err)
	assert.Equal(t, 21, graph.WaypointCount())
	assert.Equal(t, 2, client.calls)
}

func TestGraphBuilder_MarksFuelStations(t *testing.T) {
	client := &fakeWaypointLister{
		pages: map[int][]common.WaypointAPIData{1: {
			waypointData("X1-TEST-A1", 0, 0, []string{"MARKETPLACE"}, nil),
			waypointData("X1-TEST-A2", 10, 0, []string{"FUEL_STATION"}, nil),
			waypointData("X1-TEST-A3", 20, 0, []string{"VOLCANIC"}, nil),
		}},
		total: 3,
	}
	builder := NewGraphBuilder(client, &fakePlayerRepo{})

	graph, err := builder.BuildSystemGraph(context.Background(), "X1-TEST", 1)
	require.NoError(t, err)
	assert.Len(t, graph.FuelStations(), 2)

	wp, err := graph.GetWaypoint("X1-TEST-A3")
	require.NoError(t, err)
	assert.False(t, wp.HasFuel)
	assert.Equal(t, "X1-TEST", wp.SystemSymbol)
}

func TestGraphBuilder_OrbitalsZeroDistance(t *testing.T) {
	client := &fakeWaypointLister{
		pages: map[int][]common.WaypointAPIData{1: {
			waypointData("X1-TEST-A1", 5, 5, nil, []string{"X1-TEST-A1-MOON"}),
			waypointData("X1-TEST-A1-MOON", 5, 5, nil, nil),
		}},
		total: 2,
	}
	builder := NewGraphBuilder(client, &fakePlayerRepo{})

	graph, err := builder.BuildSystemGraph(context.Background(), "X1-TEST", 1)
	require.NoError(t, err)

	a1, err := graph.GetWaypoint("X1-TEST-A1")
	require.NoError(t, err)
	moon, err := graph.GetWaypoint("X1-TEST-A1-MOON")
	require.NoError(t, err)
	assert.Equal(t, 0.0, graph.TravelDistance(a1, moon))
}

func TestGraphBuilder_EmptySystemIsAnError(t *testing.T) {
	client := &fakeWaypointLister{pages: map[int][]common.WaypointAPIData{}, total: 0}
	builder := NewGraphBuilder(client, &fakePlayerRepo{})

	_, err := builder.BuildSystemGraph(context.Background(), "X1-EMPTY", 1)
	assert.Error(t, err)
}
