package ship

import (
	"context"
	"fmt"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/mediator"
)

// DockShipHandler docks a ship.
type DockShipHandler struct {
	shipRepo common.ShipRepository
}

func NewDockShipHandler(shipRepo common.ShipRepository) *DockShipHandler {
	return &DockShipHandler{shipRepo: shipRepo}
}

func (h *DockShipHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*DockShipCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	ship, err := h.shipRepo.FindBySymbol(ctx, cmd.ShipSymbol, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("ship not found: %w", err)
	}

	if ship.IsDocked() {
		return &DockShipResponse{Status: "already_docked"}, nil
	}

	if err := h.shipRepo.Dock(ctx, ship, cmd.PlayerID); err != nil {
		return nil, fmt.Errorf("failed to dock ship: %w", err)
	}
	if err := ship.Dock(); err != nil {
		return nil, err
	}
	return &DockShipResponse{Status: "docked"}, nil
}
