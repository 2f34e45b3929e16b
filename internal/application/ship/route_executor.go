package ship

import (
	"context"
	"fmt"
	"time"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/logging"
	"github.com/stellarforge/fleetd/internal/domain/navigation"
	"github.com/stellarforge/fleetd/internal/domain/routing"
	"github.com/stellarforge/fleetd/internal/domain/shared"
	"github.com/stellarforge/fleetd/internal/domain/system"
)

// arrivalBuffer pads the server's arrival estimate so we do not poll a ship
// that is still a second out.
const arrivalBuffer = 3 * time.Second

// RouteExecutor walks a planned route step by step: orbit, set the planned
// flight mode, navigate, wait out the transit, and dock to refuel where the
// plan says to. Waits are cooperative; cancelling the context abandons the
// route between actions.
type RouteExecutor struct {
	shipRepo common.ShipRepository
	clock    shared.Clock
}

func NewRouteExecutor(shipRepo common.ShipRepository, clock shared.Clock) *RouteExecutor {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &RouteExecutor{shipRepo: shipRepo, clock: clock}
}

// ExecuteRoute runs every step and returns how many were executed.
func (e *RouteExecutor) ExecuteRoute(
	ctx context.Context,
	ship *navigation.Ship,
	graph *system.SystemGraph,
	steps []*routing.RouteStep,
	playerID int,
) (int, error) {
	logger := logging.LoggerFromContext(ctx)

	executed := 0
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return executed, err
		}

		switch step.Action {
		case routing.RouteActionRefuel:
			if err := e.executeRefuel(ctx, ship, playerID); err != nil {
				return executed, err
			}
		case routing.RouteActionTravel:
			if err := e.executeTravel(ctx, ship, graph, step, playerID); err != nil {
				return executed, err
			}
		default:
			return executed, fmt.Errorf("unknown route action %v", step.Action)
		}
		executed++

		logger.Log("INFO", "route step complete", map[string]interface{}{
			"ship_symbol": ship.ShipSymbol(),
			"action":      step.Action.String(),
			"waypoint":    step.Waypoint,
			"fuel":        ship.Fuel().Current,
		})
	}
	return executed, nil
}

// WaitForTransit blocks until an in-transit ship arrives, refreshing its
// state from the API afterwards. No-op for ships not in transit.
func (e *RouteExecutor) WaitForTransit(ctx context.Context, ship *navigation.Ship, playerID int) error {
	if !ship.IsInTransit() {
		return nil
	}

	remaining := ship.RemainingTransitTime(e.clock)
	logging.LoggerFromContext(ctx).Log("INFO", "waiting for in-flight transit to finish", map[string]interface{}{
		"ship_symbol":  ship.ShipSymbol(),
		"wait_seconds": int(remaining.Seconds()),
	})
	if err := e.waitOrCancel(ctx, remaining+arrivalBuffer); err != nil {
		return err
	}
	return e.syncAfterArrival(ctx, ship, playerID)
}

func (e *RouteExecutor) executeRefuel(ctx context.Context, ship *navigation.Ship, playerID int) error {
	if ship.IsInTransit() {
		if err := e.WaitForTransit(ctx, ship, playerID); err != nil {
			return err
		}
	}
	if !ship.IsDocked() {
		if err := e.shipRepo.Dock(ctx, ship, playerID); err != nil {
			return fmt.Errorf("failed to dock for refuel: %w", err)
		}
		if err := ship.Dock(); err != nil {
			return err
		}
	}
	if _, err := e.shipRepo.Refuel(ctx, ship, playerID, nil); err != nil {
		return fmt.Errorf("failed to refuel at %s: %w", ship.CurrentLocation().Symbol, err)
	}
	ship.Refuel()
	return nil
}

func (e *RouteExecutor) executeTravel(
	ctx context.Context,
	ship *navigation.Ship,
	graph *system.SystemGraph,
	step *routing.RouteStep,
	playerID int,
) error {
	if ship.CurrentLocation().Symbol == step.Waypoint {
		return nil
	}

	destination, err := graph.GetWaypoint(step.Waypoint)
	if err != nil {
		return fmt.Errorf("route step targets unknown waypoint: %w", err)
	}

	if ship.IsInTransit() {
		if err := e.WaitForTransit(ctx, ship, playerID); err != nil {
			return err
		}
	}
	if ship.IsDocked() {
		if err := e.shipRepo.Orbit(ctx, ship, playerID); err != nil {
			return fmt.Errorf("failed to orbit before departure: %w", err)
		}
		if err := ship.Depart(); err != nil {
			return err
		}
	}

	if step.Mode != "" && ship.FlightMode() != step.Mode {
		if err := e.shipRepo.SetFlightMode(ctx, ship, playerID, step.Mode); err != nil {
			return fmt.Errorf("failed to set flight mode %s: %w", step.Mode, err)
		}
		if err := ship.SetFlightMode(step.Mode); err != nil {
			return err
		}
	}

	result, err := e.shipRepo.Navigate(ctx, ship, destination, playerID)
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", step.Waypoint, err)
	}

	wait := time.Duration(result.ArrivalTime) * time.Second
	if result.ArrivalTimeStr != "" {
		if arrival, parseErr := time.Parse(time.RFC3339, result.ArrivalTimeStr); parseErr == nil {
			if until := arrival.Sub(e.clock.Now()); until > 0 {
				wait = until
			}
		}
	}
	if err := e.waitOrCancel(ctx, wait+arrivalBuffer); err != nil {
		return err
	}
	return e.syncAfterArrival(ctx, ship, playerID)
}

// syncAfterArrival reloads the ship and, if the server still reports it in
// transit past the estimate, marks the local entity arrived.
func (e *RouteExecutor) syncAfterArrival(ctx context.Context, ship *navigation.Ship, playerID int) error {
	fresh, err := e.shipRepo.FindBySymbol(ctx, ship.ShipSymbol(), playerID)
	if err != nil {
		return fmt.Errorf("failed to sync ship after arrival: %w", err)
	}
	*ship = *fresh

	if ship.IsInTransit() {
		if err := ship.Arrive(); err != nil {
			return fmt.Errorf("failed to mark ship arrived: %w", err)
		}
	}
	return nil
}

// waitOrCancel sleeps on the injected clock but aborts when the context is
// cancelled, so a stop request never waits out a long transit.
func (e *RouteExecutor) waitOrCancel(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	done := make(chan struct{})
	go func() {
		e.clock.Sleep(d)
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
