package contract

import (
	"context"
	"fmt"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/mediator"
)

// AcceptContractHandler accepts a negotiated contract
type AcceptContractHandler struct {
	apiClient  common.APIClient
	playerRepo common.PlayerRepository
}

func NewAcceptContractHandler(apiClient common.APIClient, playerRepo common.PlayerRepository) *AcceptContractHandler {
	return &AcceptContractHandler{apiClient: apiClient, playerRepo: playerRepo}
}

func (h *AcceptContractHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*AcceptContractCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	player, err := h.playerRepo.FindByID(ctx, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}

	data, err := h.apiClient.AcceptContract(ctx, cmd.ContractID, player.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to accept contract %s: %w", cmd.ContractID, err)
	}

	accepted, err := contractFromData(data, cmd.PlayerID)
	if err != nil {
		return nil, err
	}
	return &AcceptContractResponse{Contract: accepted}, nil
}
