package shipyard

import (
	"context"
	"fmt"
	"strings"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/logging"
	"github.com/stellarforge/fleetd/internal/application/mediator"
	"github.com/stellarforge/fleetd/internal/domain/navigation"
)

// BatchPurchaseShipsCommand buys up to Quantity ships of one type, capped by
// MaxBudget and by the agent's actual credits.
type BatchPurchaseShipsCommand struct {
	ShipType         string `validate:"required"`
	ShipyardWaypoint string `validate:"required"`
	Quantity         int    `validate:"required,gt=0"`
	MaxBudget        int    `validate:"required,gt=0"`
	PlayerID         int    `validate:"required,gt=0"`
}

type BatchPurchaseShipsResponse struct {
	PurchasedShips []*navigation.Ship
	TotalCost      int
}

// BatchPurchaseShipsHandler prices the listing once, derives how many hulls
// fit the budget, then buys them one at a time through the mediator. A
// failure mid-batch keeps the ships already bought.
type BatchPurchaseShipsHandler struct {
	sender     mediator.Sender
	apiClient  common.APIClient
	playerRepo common.PlayerRepository
}

func NewBatchPurchaseShipsHandler(
	sender mediator.Sender,
	apiClient common.APIClient,
	playerRepo common.PlayerRepository,
) *BatchPurchaseShipsHandler {
	return &BatchPurchaseShipsHandler{
		sender:     sender,
		apiClient:  apiClient,
		playerRepo: playerRepo,
	}
}

func (h *BatchPurchaseShipsHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*BatchPurchaseShipsCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	logger := logging.LoggerFromContext(ctx)

	player, err := h.playerRepo.FindByID(ctx, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}

	yard, err := h.apiClient.GetShipyard(ctx, systemOf(cmd.ShipyardWaypoint), cmd.ShipyardWaypoint, player.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to read shipyard %s: %w", cmd.ShipyardWaypoint, err)
	}
	listing, found := yard.FindListing(cmd.ShipType)
	if !found {
		return nil, fmt.Errorf("%s is not sold at %s", cmd.ShipType, cmd.ShipyardWaypoint)
	}

	agent, err := h.apiClient.GetAgent(ctx, player.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	affordable := min(cmd.Quantity, cmd.MaxBudget/listing.PurchasePrice, agent.Credits/listing.PurchasePrice)
	if affordable == 0 {
		return nil, fmt.Errorf("cannot afford any %s at %d credits (budget %d, credits %d)",
			cmd.ShipType, listing.PurchasePrice, cmd.MaxBudget, agent.Credits)
	}

	response := &BatchPurchaseShipsResponse{}
	for i := 0; i < affordable; i++ {
		if err := ctx.Err(); err != nil {
			return response, err
		}

		resp, err := h.sender.Send(ctx, &PurchaseShipCommand{
			ShipType:         cmd.ShipType,
			ShipyardWaypoint: cmd.ShipyardWaypoint,
			PlayerID:         cmd.PlayerID,
		})
		if err != nil {
			// Partial success still delivers ships
			if len(response.PurchasedShips) > 0 {
				logger.Log("WARNING", "batch purchase stopped early", map[string]interface{}{
					"purchased": len(response.PurchasedShips),
					"requested": cmd.Quantity,
					"error":     err.Error(),
				})
				return response, nil
			}
			return nil, fmt.Errorf("failed to purchase ship 1 of %d: %w", affordable, err)
		}

		purchase := resp.(*PurchaseShipResponse)
		response.PurchasedShips = append(response.PurchasedShips, purchase.Ship)
		response.TotalCost += purchase.PurchasePrice

		if response.TotalCost+listing.PurchasePrice > cmd.MaxBudget {
			break
		}
	}
	return response, nil
}

// systemOf derives "X1-ABC" from "X1-ABC-XYZ"
func systemOf(waypointSymbol string) string {
	parts := strings.Split(waypointSymbol, "-")
	if len(parts) < 3 {
		return waypointSymbol
	}
	return strings.Join(parts[:2], "-")
}
