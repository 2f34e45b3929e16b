package contract

import (
	"context"
	"fmt"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/mediator"
)

// DeliverContractHandler hands cargo from the ship's hold to the contract
type DeliverContractHandler struct {
	apiClient  common.APIClient
	playerRepo common.PlayerRepository
}

func NewDeliverContractHandler(apiClient common.APIClient, playerRepo common.PlayerRepository) *DeliverContractHandler {
	return &DeliverContractHandler{apiClient: apiClient, playerRepo: playerRepo}
}

func (h *DeliverContractHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*DeliverContractCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	player, err := h.playerRepo.FindByID(ctx, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}

	data, err := h.apiClient.DeliverContract(ctx, cmd.ContractID, cmd.ShipSymbol, cmd.TradeSymbol, cmd.Units, player.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to deliver %d %s: %w", cmd.Units, cmd.TradeSymbol, err)
	}

	updated, err := contractFromData(data, cmd.PlayerID)
	if err != nil {
		return nil, err
	}
	return &DeliverContractResponse{Contract: updated}, nil
}
