package scouting

import (
	"context"
	"fmt"
	"time"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/logging"
	"github.com/stellarforge/fleetd/internal/application/mediator"
	"github.com/stellarforge/fleetd/internal/application/ship"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// stationaryScanInterval is the wait between scans when a scout is parked
// at a single market.
const stationaryScanInterval = 60 * time.Second

// ScoutTourCommand sends one ship around a fixed set of markets, scanning
// each on arrival. Iterations of -1 runs until cancelled.
type ScoutTourCommand struct {
	PlayerID   int      `validate:"required,gt=0"`
	ShipSymbol string   `validate:"required"`
	Markets    []string `validate:"required,min=1"`
	Iterations int
}

type ScoutTourResponse struct {
	MarketsVisited int
	TourOrder      []string
	Iterations     int
}

// IterationsCompleted reports how many tour passes one dispatch covered,
// so a supervising container can advance its iteration counter in step
func (r *ScoutTourResponse) IterationsCompleted() int { return r.Iterations }

// ScoutTourHandler drives a scouting tour. The tour is rotated to start at
// the ship's current position so a restarted container resumes instead of
// backtracking; for a ship in transit the API already reports the
// destination as its location, which rotates the tour to where it will land.
type ScoutTourHandler struct {
	shipRepo common.ShipRepository
	sender   mediator.Sender
	scanner  *MarketScanner
	clock    shared.Clock
}

func NewScoutTourHandler(
	shipRepo common.ShipRepository,
	sender mediator.Sender,
	scanner *MarketScanner,
	clock shared.Clock,
) *ScoutTourHandler {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &ScoutTourHandler{
		shipRepo: shipRepo,
		sender:   sender,
		scanner:  scanner,
		clock:    clock,
	}
}

func (h *ScoutTourHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*ScoutTourCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	current, err := h.shipRepo.FindBySymbol(ctx, cmd.ShipSymbol, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find ship: %w", err)
	}

	tourOrder := rotateTourToStart(cmd.Markets, current.CurrentLocation().Symbol)
	response := &ScoutTourResponse{TourOrder: tourOrder}

	if len(tourOrder) == 1 {
		err = h.runStationaryScout(ctx, cmd, current.CurrentLocation().Symbol, tourOrder[0], response)
	} else {
		err = h.runMultiMarketTour(ctx, cmd, tourOrder, response)
	}
	return response, err
}

// runStationaryScout parks the ship at one market and rescans on an
// interval. The wait is cooperative; cancellation ends the tour cleanly.
func (h *ScoutTourHandler) runStationaryScout(
	ctx context.Context,
	cmd *ScoutTourCommand,
	currentWaypoint, marketWaypoint string,
	response *ScoutTourResponse,
) error {
	logger := logging.LoggerFromContext(ctx)

	if currentWaypoint != marketWaypoint {
		if err := h.visitMarket(ctx, cmd, marketWaypoint, response); err != nil {
			return err
		}
	} else {
		if err := h.scanner.ScanAndSaveMarket(ctx, cmd.PlayerID, marketWaypoint); err != nil {
			logger.Log("ERROR", "initial market scan failed", map[string]interface{}{
				"waypoint": marketWaypoint,
				"error":    err.Error(),
			})
		} else {
			response.MarketsVisited++
		}
	}
	response.Iterations++

	for iteration := 1; iteration < cmd.Iterations || cmd.Iterations == -1; iteration++ {
		if err := h.sleep(ctx, stationaryScanInterval); err != nil {
			logger.Log("INFO", "stationary scout cancelled", map[string]interface{}{
				"ship_symbol": cmd.ShipSymbol,
				"iterations":  response.Iterations,
			})
			return nil
		}

		if err := h.scanner.ScanAndSaveMarket(ctx, cmd.PlayerID, marketWaypoint); err != nil {
			logger.Log("ERROR", "market scan failed", map[string]interface{}{
				"waypoint":  marketWaypoint,
				"iteration": iteration + 1,
				"error":     err.Error(),
			})
		} else {
			response.MarketsVisited++
		}
		response.Iterations++
	}
	return nil
}

// runMultiMarketTour loops the markets in order, returning to the tour
// start after each full pass.
func (h *ScoutTourHandler) runMultiMarketTour(
	ctx context.Context,
	cmd *ScoutTourCommand,
	tourOrder []string,
	response *ScoutTourResponse,
) error {
	for iteration := 0; iteration < cmd.Iterations || cmd.Iterations == -1; iteration++ {
		for _, marketWaypoint := range tourOrder {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := h.visitMarket(ctx, cmd, marketWaypoint, response); err != nil {
				return err
			}
		}

		// Close the loop so the next pass starts where the first did
		if err := h.returnToStart(ctx, cmd, tourOrder[0]); err != nil {
			return err
		}
		response.Iterations++
	}
	return nil
}

// visitMarket navigates to the market, docks, and records the listing.
// Scan failures are logged and skipped so one broken market does not end
// the tour.
func (h *ScoutTourHandler) visitMarket(
	ctx context.Context,
	cmd *ScoutTourCommand,
	marketWaypoint string,
	response *ScoutTourResponse,
) error {
	logger := logging.LoggerFromContext(ctx)
	logger.Log("INFO", "navigating to market", map[string]interface{}{
		"ship_symbol": cmd.ShipSymbol,
		"destination": marketWaypoint,
	})

	if _, err := h.sender.Send(ctx, &ship.NavigateRouteCommand{
		ShipSymbol:  cmd.ShipSymbol,
		Destination: marketWaypoint,
		PlayerID:    cmd.PlayerID,
	}); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", marketWaypoint, err)
	}

	if _, err := h.sender.Send(ctx, &ship.DockShipCommand{
		ShipSymbol: cmd.ShipSymbol,
		PlayerID:   cmd.PlayerID,
	}); err != nil {
		return fmt.Errorf("failed to dock at %s: %w", marketWaypoint, err)
	}

	if err := h.scanner.ScanAndSaveMarket(ctx, cmd.PlayerID, marketWaypoint); err != nil {
		logger.Log("ERROR", "market scan failed", map[string]interface{}{
			"waypoint": marketWaypoint,
			"error":    err.Error(),
		})
	} else {
		response.MarketsVisited++
	}
	return nil
}

func (h *ScoutTourHandler) returnToStart(ctx context.Context, cmd *ScoutTourCommand, start string) error {
	if _, err := h.sender.Send(ctx, &ship.NavigateRouteCommand{
		ShipSymbol:  cmd.ShipSymbol,
		Destination: start,
		PlayerID:    cmd.PlayerID,
	}); err != nil {
		return fmt.Errorf("failed to return to tour start %s: %w", start, err)
	}
	return nil
}

func (h *ScoutTourHandler) sleep(ctx context.Context, d time.Duration) error {
	done := make(chan struct{})
	go func() {
		h.clock.Sleep(d)
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// rotateTourToStart rotates markets so the tour begins at currentPosition.
// Unchanged when the ship is not on the tour.
func rotateTourToStart(markets []string, currentPosition string) []string {
	startIndex := -1
	for i, waypoint := range markets {
		if waypoint == currentPosition {
			startIndex = i
			break
		}
	}
	if startIndex <= 0 {
		return markets
	}

	rotated := make([]string, len(markets))
	for i := range markets {
		rotated[i] = markets[(startIndex+i)%len(markets)]
	}
	return rotated
}
