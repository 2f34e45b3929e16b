package ship

import (
	"context"
	"fmt"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/mediator"
)

// GetShipHandler fetches one ship fresh from the API.
type GetShipHandler struct {
	shipRepo common.ShipRepository
}

func NewGetShipHandler(shipRepo common.ShipRepository) *GetShipHandler {
	return &GetShipHandler{shipRepo: shipRepo}
}

func (h *GetShipHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	query, ok := request.(*GetShipQuery)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	ship, err := h.shipRepo.FindBySymbol(ctx, query.ShipSymbol, query.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("ship not found: %w", err)
	}
	return &GetShipResponse{Ship: ship}, nil
}

// ListShipsHandler fetches the player's whole fleet.
type ListShipsHandler struct {
	shipRepo common.ShipRepository
}

func NewListShipsHandler(shipRepo common.ShipRepository) *ListShipsHandler {
	return &ListShipsHandler{shipRepo: shipRepo}
}

func (h *ListShipsHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	query, ok := request.(*ListShipsQuery)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	ships, err := h.shipRepo.FindAllByPlayer(ctx, query.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ships: %w", err)
	}
	return &ListShipsResponse{Ships: ships}, nil
}
