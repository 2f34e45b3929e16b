package shipyard

import (
	"context"
	"fmt"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/logging"
	"github.com/stellarforge/fleetd/internal/application/mediator"
	"github.com/stellarforge/fleetd/internal/domain/navigation"
)

// PurchaseShipCommand buys one ship of a type at a shipyard
type PurchaseShipCommand struct {
	ShipType         string `validate:"required"`
	ShipyardWaypoint string `validate:"required"`
	PlayerID         int    `validate:"required,gt=0"`
}

type PurchaseShipResponse struct {
	Ship          *navigation.Ship
	PurchasePrice int
}

// PurchaseShipHandler buys a ship and loads the new hull from the API
type PurchaseShipHandler struct {
	apiClient  common.APIClient
	shipRepo   common.ShipRepository
	playerRepo common.PlayerRepository
}

func NewPurchaseShipHandler(
	apiClient common.APIClient,
	shipRepo common.ShipRepository,
	playerRepo common.PlayerRepository,
) *PurchaseShipHandler {
	return &PurchaseShipHandler{
		apiClient:  apiClient,
		shipRepo:   shipRepo,
		playerRepo: playerRepo,
	}
}

func (h *PurchaseShipHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*PurchaseShipCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	player, err := h.playerRepo.FindByID(ctx, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}

	result, err := h.apiClient.PurchaseShip(ctx, cmd.ShipType, cmd.ShipyardWaypoint, player.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to purchase %s at %s: %w", cmd.ShipType, cmd.ShipyardWaypoint, err)
	}

	logging.LoggerFromContext(ctx).Log("INFO", "purchased ship", map[string]interface{}{
		"ship_symbol": result.ShipSymbol,
		"ship_type":   cmd.ShipType,
		"cost":        result.CreditsCost,
	})

	newShip, err := h.shipRepo.FindBySymbol(ctx, result.ShipSymbol, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("purchased %s but failed to load it: %w", result.ShipSymbol, err)
	}

	return &PurchaseShipResponse{Ship: newShip, PurchasePrice: result.CreditsCost}, nil
}
