package ship

import (
	"context"
	"fmt"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/logging"
	"github.com/stellarforge/fleetd/internal/application/mediator"
	"github.com/stellarforge/fleetd/internal/domain/routing"
)

// NavigateRouteHandler is the high-level navigation command: plan a
// fuel-feasible route through the system graph, then execute it leg by leg
// with automatic refuelling stops.
type NavigateRouteHandler struct {
	shipRepo      common.ShipRepository
	graphProvider common.SystemGraphProvider
	routingClient routing.RoutingClient
	executor      *RouteExecutor
}

func NewNavigateRouteHandler(
	shipRepo common.ShipRepository,
	graphProvider common.SystemGraphProvider,
	routingClient routing.RoutingClient,
	executor *RouteExecutor,
) *NavigateRouteHandler {
	return &NavigateRouteHandler{
		shipRepo:      shipRepo,
		graphProvider: graphProvider,
		routingClient: routingClient,
		executor:      executor,
	}
}

func (h *NavigateRouteHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*NavigateRouteCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}
	logger := logging.LoggerFromContext(ctx)

	ship, err := h.shipRepo.FindBySymbol(ctx, cmd.ShipSymbol, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("ship not found: %w", err)
	}

	// A ship mid-flight finishes its current leg before re-planning
	if ship.IsInTransit() {
		if err := h.executor.WaitForTransit(ctx, ship, cmd.PlayerID); err != nil {
			return nil, err
		}
	}

	if ship.CurrentLocation().Symbol == cmd.Destination {
		return &NavigateRouteResponse{
			Status:          "already_at_destination",
			CurrentLocation: cmd.Destination,
			FuelRemaining:   ship.Fuel().Current,
		}, nil
	}

	loaded, err := h.graphProvider.GetGraph(ctx, ship.SystemSymbol(), cmd.PlayerID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load system graph: %w", err)
	}
	graph := loaded.Graph
	if !graph.HasWaypoint(cmd.Destination) {
		return nil, fmt.Errorf("destination %s not in system %s", cmd.Destination, ship.SystemSymbol())
	}

	plan, err := h.routingClient.PlanRoute(ctx, &routing.RouteRequest{
		Graph:         graph,
		StartWaypoint: ship.CurrentLocation().Symbol,
		GoalWaypoint:  cmd.Destination,
		CurrentFuel:   ship.Fuel().Current,
		FuelCapacity:  ship.Fuel().Capacity,
		EngineSpeed:   ship.EngineSpeed(),
	})
	if err != nil {
		return nil, fmt.Errorf("route planning failed: %w", err)
	}
	if plan == nil {
		return nil, fmt.Errorf("no fuel-feasible route from %s to %s", ship.CurrentLocation().Symbol, cmd.Destination)
	}

	logger.Log("INFO", "route planned", map[string]interface{}{
		"ship_symbol":  cmd.ShipSymbol,
		"destination":  cmd.Destination,
		"steps":        len(plan.Steps),
		"fuel_cost":    plan.TotalFuelCost,
		"time_seconds": plan.TotalTimeSeconds,
	})

	executed, err := h.executor.ExecuteRoute(ctx, ship, graph, plan.Steps, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("route execution failed after %d steps: %w", executed, err)
	}

	return &NavigateRouteResponse{
		Status:           "completed",
		CurrentLocation:  ship.CurrentLocation().Symbol,
		FuelRemaining:    ship.Fuel().Current,
		StepsExecuted:    executed,
		TotalTimeSeconds: plan.TotalTimeSeconds,
	}, nil
}
