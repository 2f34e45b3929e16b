package contract

import (
	"context"
	"fmt"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/mediator"
)

// FulfillContractHandler closes out a contract whose deliveries are complete
type FulfillContractHandler struct {
	apiClient  common.APIClient
	playerRepo common.PlayerRepository
}

func NewFulfillContractHandler(apiClient common.APIClient, playerRepo common.PlayerRepository) *FulfillContractHandler {
	return &FulfillContractHandler{apiClient: apiClient, playerRepo: playerRepo}
}

func (h *FulfillContractHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*FulfillContractCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	player, err := h.playerRepo.FindByID(ctx, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}

	data, err := h.apiClient.FulfillContract(ctx, cmd.ContractID, player.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to fulfill contract %s: %w", cmd.ContractID, err)
	}

	fulfilled, err := contractFromData(data, cmd.PlayerID)
	if err != nil {
		return nil, err
	}
	return &FulfillContractResponse{Contract: fulfilled}, nil
}
