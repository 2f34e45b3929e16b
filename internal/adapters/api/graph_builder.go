package api

import (
	"context"
	"fmt"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/domain/shared"
	"github.com/stellarforge/fleetd/internal/domain/system"
)

const (
	waypointPageLimit = 20
	maxWaypointPages  = 50
)

// GraphBuilder assembles a system graph from paginated waypoint listings.
type GraphBuilder struct {
	apiClient  common.APIClient
	playerRepo common.PlayerRepository
}

var _ common.GraphBuilder = (*GraphBuilder)(nil)

func NewGraphBuilder(apiClient common.APIClient, playerRepo common.PlayerRepository) *GraphBuilder {
	return &GraphBuilder{apiClient: apiClient, playerRepo: playerRepo}
}

// BuildSystemGraph fetches every waypoint in the system and connects them
// with distance-weighted edges. Orbital pairs get zero-distance edges.
func (b *GraphBuilder) BuildSystemGraph(ctx context.Context, systemSymbol string, playerID int) (*system.SystemGraph, error) {
	player, err := b.playerRepo.FindByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	allWaypoints := []common.WaypointAPIData{}
	for page := 1; page <= maxWaypointPages; page++ {
		result, err := b.apiClient.ListWaypoints(ctx, systemSymbol, player.Token, page, waypointPageLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch waypoints page %d: %w", page, err)
		}
		if len(result.Data) == 0 {
			break
		}
		allWaypoints = append(allWaypoints, result.Data...)

		if len(allWaypoints) >= result.Meta.Total || len(result.Data) < waypointPageLimit {
			break
		}
	}

	if len(allWaypoints) == 0 {
		return nil, fmt.Errorf("no waypoints found for system %s", systemSymbol)
	}

	graph := system.NewSystemGraph(systemSymbol)
	for _, wp := range allWaypoints {
		graph.AddWaypoint(toWaypoint(systemSymbol, wp))
	}
	graph.BuildEdges()

	return graph, nil
}

func toWaypoint(systemSymbol string, wp common.WaypointAPIData) *shared.Waypoint {
	orbitals := []string{}
	for _, orbital := range wp.Orbitals {
		if symbol, ok := orbital["symbol"]; ok {
			orbitals = append(orbitals, symbol)
		}
	}

	traits := []string{}
	for _, trait := range wp.Traits {
		if symbol, ok := trait["symbol"].(string); ok {
			traits = append(traits, symbol)
		}
	}

	hasFuel := false
	for _, trait := range traits {
		if trait == "MARKETPLACE" || trait == "FUEL_STATION" {
			hasFuel = true
			break
		}
	}

	return &shared.Waypoint{
		Symbol:       wp.Symbol,
		X:            wp.X,
		Y:            wp.Y,
		SystemSymbol: systemSymbol,
		Type:         wp.Type,
		Traits:       traits,
		HasFuel:      hasFuel,
		Orbitals:     orbitals,
	}
}
