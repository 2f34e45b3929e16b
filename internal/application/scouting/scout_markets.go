package scouting

import (
	"context"
	"fmt"
	"sync"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/logging"
	"github.com/stellarforge/fleetd/internal/application/mediator"
	"github.com/stellarforge/fleetd/internal/domain/container"
	"github.com/stellarforge/fleetd/internal/domain/routing"
	"github.com/stellarforge/fleetd/pkg/utils"
)

// ScoutMarketsCommand deploys a fleet of scouts across a system's markets.
// Markets are partitioned across the requested ships and one scout-tour
// container is spawned per ship.
type ScoutMarketsCommand struct {
	PlayerID     int      `validate:"required,gt=0"`
	SystemSymbol string   `validate:"required"`
	ShipSymbols  []string `validate:"required,min=1"`
	Markets      []string `validate:"required,min=1"`
	Iterations   int

	// DeployerContainerID is the container running this command; ships it
	// holds are handed to the spawned tours without a release window.
	DeployerContainerID string
}

type ScoutMarketsResponse struct {
	ContainerIDs     []string
	Assignments      map[string][]string // ship symbol -> markets
	ReusedContainers []string
	SkippedShips     []string // ships busy with a different operation
}

// ScoutMarketsHandler partitions markets across ships and spawns tours.
// A process-wide lock serializes deployments so two overlapping commands
// cannot race for the same ships.
type ScoutMarketsHandler struct {
	shipRepo       common.ShipRepository
	graphProvider  common.SystemGraphProvider
	routingClient  routing.RoutingClient
	launcher       common.ContainerLauncher
	assignmentRepo container.ShipAssignmentRepository

	deployMu sync.Mutex
}

func NewScoutMarketsHandler(
	shipRepo common.ShipRepository,
	graphProvider common.SystemGraphProvider,
	routingClient routing.RoutingClient,
	launcher common.ContainerLauncher,
	assignmentRepo container.ShipAssignmentRepository,
) *ScoutMarketsHandler {
	return &ScoutMarketsHandler{
		shipRepo:       shipRepo,
		graphProvider:  graphProvider,
		routingClient:  routingClient,
		launcher:       launcher,
		assignmentRepo: assignmentRepo,
	}
}

func (h *ScoutMarketsHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*ScoutMarketsCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	h.deployMu.Lock()
	defer h.deployMu.Unlock()

	logger := logging.LoggerFromContext(ctx)
	response := &ScoutMarketsResponse{Assignments: map[string][]string{}}

	// Sort ships into reusable tours, busy ships, and free ships
	deployable := []string{}
	for _, shipSymbol := range cmd.ShipSymbols {
		info, err := h.assignmentRepo.GetInfo(ctx, shipSymbol, cmd.PlayerID)
		if err != nil {
			return nil, fmt.Errorf("failed to query assignment for %s: %w", shipSymbol, err)
		}

		switch {
		case info == nil || !info.IsActive():
			deployable = append(deployable, shipSymbol)
		case info.Operation == "scout_tour":
			logger.Log("INFO", "ship already runs a scout tour, reusing", map[string]interface{}{
				"ship_symbol":  shipSymbol,
				"container_id": info.ContainerID,
			})
			response.ContainerIDs = append(response.ContainerIDs, info.ContainerID)
			response.ReusedContainers = append(response.ReusedContainers, info.ContainerID)
			response.Assignments[shipSymbol] = []string{}
		case cmd.DeployerContainerID != "" && info.ContainerID == cmd.DeployerContainerID:
			// Held by this deployment itself; hand over to the new tour
			deployable = append(deployable, shipSymbol)
		default:
			logger.Log("WARNING", "ship busy with another operation, skipping", map[string]interface{}{
				"ship_symbol": shipSymbol,
				"operation":   info.Operation,
			})
			response.SkippedShips = append(response.SkippedShips, shipSymbol)
		}
	}

	if len(deployable) == 0 {
		return response, nil
	}

	assignments, err := h.partitionMarkets(ctx, cmd, deployable)
	if err != nil {
		return nil, err
	}

	for shipSymbol, markets := range assignments {
		if len(markets) == 0 {
			response.Assignments[shipSymbol] = []string{}
			continue
		}

		containerID, err := h.spawnTour(ctx, cmd, shipSymbol, markets)
		if err != nil {
			return nil, fmt.Errorf("failed to deploy %s: %w", shipSymbol, err)
		}
		response.ContainerIDs = append(response.ContainerIDs, containerID)
		response.Assignments[shipSymbol] = markets
	}
	return response, nil
}

// partitionMarkets assigns every market to exactly one ship. A single ship
// takes everything without consulting the solver.
func (h *ScoutMarketsHandler) partitionMarkets(ctx context.Context, cmd *ScoutMarketsCommand, ships []string) (map[string][]string, error) {
	if len(ships) == 1 {
		return map[string][]string{ships[0]: cmd.Markets}, nil
	}

	loaded, err := h.graphProvider.GetGraph(ctx, cmd.SystemSymbol, cmd.PlayerID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load system graph: %w", err)
	}

	shipConfigs := map[string]*routing.ShipConfig{}
	for _, shipSymbol := range ships {
		shipEntity, err := h.shipRepo.FindBySymbol(ctx, shipSymbol, cmd.PlayerID)
		if err != nil {
			return nil, fmt.Errorf("failed to load ship %s: %w", shipSymbol, err)
		}
		shipConfigs[shipSymbol] = &routing.ShipConfig{
			CurrentLocation: shipEntity.CurrentLocation().Symbol,
			FuelCapacity:    shipEntity.FuelCapacity(),
			EngineSpeed:     shipEntity.EngineSpeed(),
		}
	}

	vrpResponse, err := h.routingClient.PartitionFleet(ctx, &routing.VRPRequest{
		Graph:           loaded.Graph,
		MarketWaypoints: cmd.Markets,
		ShipConfigs:     shipConfigs,
	})
	if err != nil {
		return nil, fmt.Errorf("fleet partition failed: %w", err)
	}

	assignments := map[string][]string{}
	for shipSymbol, tour := range vrpResponse.Assignments {
		assignments[shipSymbol] = tour.Waypoints
	}
	return assignments, nil
}

// spawnTour acquires the ship for a new scout-tour container and launches
// it. Ships held by the deployer are reassigned so they never pass through
// idle during the handoff.
func (h *ScoutMarketsHandler) spawnTour(ctx context.Context, cmd *ScoutMarketsCommand, shipSymbol string, markets []string) (string, error) {
	containerID := utils.GenerateContainerID("scout-tour", shipSymbol)

	info, err := h.assignmentRepo.GetInfo(ctx, shipSymbol, cmd.PlayerID)
	if err != nil {
		return "", err
	}

	if info != nil && info.IsActive() && cmd.DeployerContainerID != "" && info.ContainerID == cmd.DeployerContainerID {
		if err := h.assignmentRepo.Reassign(ctx, shipSymbol, cmd.PlayerID, cmd.DeployerContainerID, containerID); err != nil {
			return "", fmt.Errorf("failed to hand over ship: %w", err)
		}
	} else {
		acquired, err := h.assignmentRepo.Assign(ctx, shipSymbol, cmd.PlayerID, containerID, "scout_tour")
		if err != nil {
			return "", err
		}
		if !acquired {
			return "", fmt.Errorf("ship %s was acquired by another operation", shipSymbol)
		}
	}

	_, err = h.launcher.CreateContainer(ctx, &common.ContainerSpec{
		ContainerID:   containerID,
		PlayerID:      cmd.PlayerID,
		CommandType:   "scout_tour",
		MaxIterations: cmd.Iterations,
		Config: map[string]interface{}{
			"command_type": "scout_tour",
			"ship_symbol":  shipSymbol,
			"markets":      markets,
			"iterations":   cmd.Iterations,
		},
	})
	if err != nil {
		releaseErr := h.assignmentRepo.Release(ctx, shipSymbol, cmd.PlayerID, container.ReleaseReasonFailed)
		if releaseErr != nil {
			return "", fmt.Errorf("container launch failed (%v) and release failed: %w", err, releaseErr)
		}
		return "", fmt.Errorf("failed to create scout-tour container: %w", err)
	}
	return containerID, nil
}
