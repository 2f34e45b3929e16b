package steps

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
	"github.com/cucumber/messages/go/v21"

	"github.com/stellarforge/fleetd/internal/domain/routing"
	"github.com/stellarforge/fleetd/internal/domain/shared"
	"github.com/stellarforge/fleetd/internal/domain/system"
)

type routePlannerContext struct {
	graph  *system.SystemGraph
	engine *routing.Engine

	currentFuel  int
	fuelCapacity int
	engineSpeed  int

	route *routing.RouteResponse
	tour  *routing.TourResponse
	err   error
}

func (rpc *routePlannerContext) reset() {
	rpc.graph = nil
	rpc.engine = routing.NewEngine()
	rpc.currentFuel = 0
	rpc.fuelCapacity = 0
	rpc.engineSpeed = 0
	rpc.route = nil
	rpc.tour = nil
	rpc.err = nil
}

// ============================================================================
// Setup steps
// ============================================================================

func (rpc *routePlannerContext) aSystemGraphWithWaypoints(systemSymbol string, table *godog.Table) error {
	rpc.graph = system.NewSystemGraph(systemSymbol)

	for i, row := range table.Rows {
		if i == 0 {
			continue // header
		}

		x, err := strconv.ParseFloat(cellValue(table, row, "x"), 64)
		if err != nil {
			return fmt.Errorf("waypoint x: %w", err)
		}
		y, err := strconv.ParseFloat(cellValue(table, row, "y"), 64)
		if err != nil {
			return fmt.Errorf("waypoint y: %w", err)
		}

		waypoint, err := shared.NewWaypoint(cellValue(table, row, "symbol"), x, y)
		if err != nil {
			return err
		}
		waypoint.HasFuel = cellValue(table, row, "fuel") == "yes"
		rpc.graph.AddWaypoint(waypoint)
	}

	return nil
}

// cellValue reads a cell by header column name
func cellValue(table *godog.Table, row *messages.PickleTableRow, columnName string) string {
	for i, header := range table.Rows[0].Cells {
		if header.Value == columnName {
			return row.Cells[i].Value
		}
	}
	return ""
}

func (rpc *routePlannerContext) aShipWithFuelAndEngineSpeed(currentFuel, fuelCapacity, engineSpeed int) error {
	rpc.currentFuel = currentFuel
	rpc.fuelCapacity = fuelCapacity
	rpc.engineSpeed = engineSpeed
	return nil
}

// ============================================================================
// Planning steps
// ============================================================================

func (rpc *routePlannerContext) aRouteIsPlannedFromTo(start, goal string) error {
	rpc.route, rpc.err = rpc.engine.PlanRoute(context.Background(), &routing.RouteRequest{
		Graph:         rpc.graph,
		StartWaypoint: start,
		GoalWaypoint:  goal,
		CurrentFuel:   rpc.currentFuel,
		FuelCapacity:  rpc.fuelCapacity,
		EngineSpeed:   rpc.engineSpeed,
	})
	return nil
}

func (rpc *routePlannerContext) aTourIsOptimizedFromOverMarkets(start, markets string) error {
	rpc.tour, rpc.err = rpc.engine.OptimizeTour(context.Background(), &routing.TourRequest{
		Graph:         rpc.graph,
		StartWaypoint: start,
		Waypoints:     strings.Split(markets, ","),
		FuelCapacity:  rpc.fuelCapacity,
		EngineSpeed:   rpc.engineSpeed,
	})
	return nil
}

// ============================================================================
// Assertion steps
// ============================================================================

func (rpc *routePlannerContext) theRouteShouldHaveSteps(count int) error {
	if rpc.err != nil {
		return fmt.Errorf("planning failed: %w", rpc.err)
	}
	if rpc.route == nil {
		return fmt.Errorf("expected a route, got none")
	}
	if len(rpc.route.Steps) != count {
		return fmt.Errorf("expected %d steps, got %d: %v", count, len(rpc.route.Steps), describeSteps(rpc.route.Steps))
	}
	return nil
}

func (rpc *routePlannerContext) theRouteShouldEndAt(waypoint string) error {
	if rpc.err != nil {
		return fmt.Errorf("planning failed: %w", rpc.err)
	}
	if rpc.route == nil || len(rpc.route.Steps) == 0 {
		return fmt.Errorf("expected a non-empty route")
	}
	last := rpc.route.Steps[len(rpc.route.Steps)-1]
	if last.Waypoint != waypoint {
		return fmt.Errorf("expected the route to end at %s, got %s", waypoint, last.Waypoint)
	}
	return nil
}

func (rpc *routePlannerContext) everyTravelStepShouldUseMode(mode string) error {
	if rpc.route == nil {
		return fmt.Errorf("expected a route, got none")
	}
	for _, step := range rpc.route.Steps {
		if step.Action != routing.RouteActionTravel {
			continue
		}
		if step.Mode != mode {
			return fmt.Errorf("expected mode %s for the hop to %s, got %s", mode, step.Waypoint, step.Mode)
		}
	}
	return nil
}

func (rpc *routePlannerContext) theRouteShouldIncludeARefuelAt(waypoint string) error {
	if rpc.route == nil {
		return fmt.Errorf("expected a route, got none")
	}
	for _, step := range rpc.route.Steps {
		if step.Action == routing.RouteActionRefuel && step.Waypoint == waypoint {
			return nil
		}
	}
	return fmt.Errorf("no refuel at %s in %v", waypoint, describeSteps(rpc.route.Steps))
}

func (rpc *routePlannerContext) noFuelFeasibleRouteShouldExist() error {
	if rpc.err != nil {
		return fmt.Errorf("planning failed: %w", rpc.err)
	}
	if rpc.route != nil {
		return fmt.Errorf("expected no route, got %d steps", len(rpc.route.Steps))
	}
	return nil
}

func (rpc *routePlannerContext) theTourShouldVisitBefore(first, second string) error {
	if rpc.err != nil {
		return fmt.Errorf("tour failed: %w", rpc.err)
	}
	firstIdx, secondIdx := -1, -1
	for i, symbol := range rpc.tour.VisitOrder {
		if symbol == first && firstIdx == -1 {
			firstIdx = i
		}
		if symbol == second && secondIdx == -1 {
			secondIdx = i
		}
	}
	if firstIdx == -1 || secondIdx == -1 {
		return fmt.Errorf("tour %v is missing a requested market", rpc.tour.VisitOrder)
	}
	if firstIdx >= secondIdx {
		return fmt.Errorf("expected %s before %s in %v", first, second, rpc.tour.VisitOrder)
	}
	return nil
}

func (rpc *routePlannerContext) theTourShouldEndBackAt(waypoint string) error {
	if rpc.err != nil {
		return fmt.Errorf("tour failed: %w", rpc.err)
	}
	if len(rpc.tour.VisitOrder) == 0 {
		return fmt.Errorf("expected a non-empty visit order")
	}
	last := rpc.tour.VisitOrder[len(rpc.tour.VisitOrder)-1]
	if last != waypoint {
		return fmt.Errorf("expected the tour to close at %s, got %s", waypoint, last)
	}
	return nil
}

func describeSteps(steps []*routing.RouteStep) []string {
	described := make([]string, 0, len(steps))
	for _, step := range steps {
		described = append(described, fmt.Sprintf("%s %s", step.Action, step.Waypoint))
	}
	return described
}

// InitializeRoutePlannerScenario registers the route planning step
// definitions
func InitializeRoutePlannerScenario(ctx *godog.ScenarioContext) {
	rpc := &routePlannerContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		rpc.reset()
		return ctx, nil
	})

	// Setup steps
	ctx.Step(`^a system graph "([^"]*)" with waypoints:$`, rpc.aSystemGraphWithWaypoints)
	ctx.Step(`^a ship with (\d+) of (\d+) fuel and engine speed (\d+)$`,
		rpc.aShipWithFuelAndEngineSpeed)

	// Planning steps
	ctx.Step(`^a route is planned from "([^"]*)" to "([^"]*)"$`, rpc.aRouteIsPlannedFromTo)
	ctx.Step(`^a tour is optimized from "([^"]*)" over markets "([^"]*)"$`,
		rpc.aTourIsOptimizedFromOverMarkets)

	// Assertion steps
	ctx.Step(`^the route should have (\d+) steps$`, rpc.theRouteShouldHaveSteps)
	ctx.Step(`^the route should end at "([^"]*)"$`, rpc.theRouteShouldEndAt)
	ctx.Step(`^every travel step should use mode "([^"]*)"$`, rpc.everyTravelStepShouldUseMode)
	ctx.Step(`^the route should include a refuel at "([^"]*)"$`, rpc.theRouteShouldIncludeARefuelAt)
	ctx.Step(`^no fuel-feasible route should exist$`, rpc.noFuelFeasibleRouteShouldExist)
	ctx.Step(`^the tour should visit "([^"]*)" before "([^"]*)"$`, rpc.theTourShouldVisitBefore)
	ctx.Step(`^the tour should end back at "([^"]*)"$`, rpc.theTourShouldEndBackAt)
}
