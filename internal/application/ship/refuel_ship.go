package ship

import (
	"context"
	"fmt"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/logging"
	"github.com/stellarforge/fleetd/internal/application/mediator"
)

// RefuelShipHandler buys fuel at the ship's current waypoint, docking first
// when the ship is in orbit.
type RefuelShipHandler struct {
	shipRepo common.ShipRepository
}

func NewRefuelShipHandler(shipRepo common.ShipRepository) *RefuelShipHandler {
	return &RefuelShipHandler{shipRepo: shipRepo}
}

func (h *RefuelShipHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*RefuelShipCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	ship, err := h.shipRepo.FindBySymbol(ctx, cmd.ShipSymbol, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("ship not found: %w", err)
	}

	if ship.Fuel().IsFull() && cmd.Units == nil {
		return &RefuelShipResponse{
			FuelAdded:   0,
			CreditsCost: 0,
			FuelCurrent: ship.Fuel().Current,
		}, nil
	}

	if !ship.IsDocked() {
		if err := h.shipRepo.Dock(ctx, ship, cmd.PlayerID); err != nil {
			return nil, fmt.Errorf("failed to dock for refuel: %w", err)
		}
		if err := ship.Dock(); err != nil {
			return nil, err
		}
	}

	result, err := h.shipRepo.Refuel(ctx, ship, cmd.PlayerID, cmd.Units)
	if err != nil {
		return nil, fmt.Errorf("failed to refuel: %w", err)
	}

	logging.LoggerFromContext(ctx).Log("INFO", "ship refuelled", map[string]interface{}{
		"ship_symbol": cmd.ShipSymbol,
		"fuel_added":  result.FuelAdded,
		"credits":     result.CreditsCost,
	})

	// Refresh local fuel state to the server's answer
	fresh, err := h.shipRepo.FindBySymbol(ctx, cmd.ShipSymbol, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload ship after refuel: %w", err)
	}

	return &RefuelShipResponse{
		FuelAdded:   result.FuelAdded,
		CreditsCost: result.CreditsCost,
		FuelCurrent: fresh.Fuel().Current,
	}, nil
}
