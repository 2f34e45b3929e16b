package ship

import (
	"context"
	"fmt"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/mediator"
)

// OrbitShipHandler moves a ship into orbit.
type OrbitShipHandler struct {
	shipRepo common.ShipRepository
}

func NewOrbitShipHandler(shipRepo common.ShipRepository) *OrbitShipHandler {
	return &OrbitShipHandler{shipRepo: shipRepo}
}

func (h *OrbitShipHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*OrbitShipCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	ship, err := h.shipRepo.FindBySymbol(ctx, cmd.ShipSymbol, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("ship not found: %w", err)
	}

	if !ship.IsDocked() && !ship.IsInTransit() {
		return &OrbitShipResponse{Status: "already_in_orbit"}, nil
	}

	if err := h.shipRepo.Orbit(ctx, ship, cmd.PlayerID); err != nil {
		return nil, fmt.Errorf("failed to orbit ship: %w", err)
	}
	if err := ship.Depart(); err != nil {
		return nil, err
	}
	return &OrbitShipResponse{Status: "in_orbit"}, nil
}
