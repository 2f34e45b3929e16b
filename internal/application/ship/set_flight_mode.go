package ship

import (
	"context"
	"fmt"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/mediator"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// SetFlightModeHandler changes a ship's flight mode. Setting the mode the
// ship already flies is a no-op that skips the API call.
type SetFlightModeHandler struct {
	shipRepo common.ShipRepository
}

func NewSetFlightModeHandler(shipRepo common.ShipRepository) *SetFlightModeHandler {
	return &SetFlightModeHandler{shipRepo: shipRepo}
}

func (h *SetFlightModeHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*SetFlightModeCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	if _, err := shared.ParseFlightMode(cmd.Mode); err != nil {
		return nil, err
	}

	ship, err := h.shipRepo.FindBySymbol(ctx, cmd.ShipSymbol, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("ship not found: %w", err)
	}

	if ship.FlightMode() == cmd.Mode {
		return &SetFlightModeResponse{Mode: cmd.Mode, Changed: false}, nil
	}

	if err := h.shipRepo.SetFlightMode(ctx, ship, cmd.PlayerID, cmd.Mode); err != nil {
		return nil, fmt.Errorf("failed to set flight mode: %w", err)
	}
	return &SetFlightModeResponse{Mode: cmd.Mode, Changed: true}, nil
}
