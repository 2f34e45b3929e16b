package contract

import (
	"context"
	"fmt"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/logging"
	"github.com/stellarforge/fleetd/internal/application/mediator"
	"github.com/stellarforge/fleetd/internal/domain/contract"
)

// NegotiateContractHandler negotiates a contract with the ship's faction.
// The game allows one open contract per agent, so the handler first resumes
// any open contract it finds, and treats the server's "already open" error
// as a signal to fetch the existing one. Both paths make the workflow safe
// to restart mid-contract.
type NegotiateContractHandler struct {
	apiClient  common.APIClient
	shipRepo   common.ShipRepository
	playerRepo common.PlayerRepository
}

func NewNegotiateContractHandler(
	apiClient common.APIClient,
	shipRepo common.ShipRepository,
	playerRepo common.PlayerRepository,
) *NegotiateContractHandler {
	return &NegotiateContractHandler{
		apiClient:  apiClient,
		shipRepo:   shipRepo,
		playerRepo: playerRepo,
	}
}

func (h *NegotiateContractHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*NegotiateContractCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	player, err := h.playerRepo.FindByID(ctx, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}

	if existing, err := h.findOpenContract(ctx, player.Token, cmd.PlayerID); err != nil {
		return nil, err
	} else if existing != nil {
		logging.LoggerFromContext(ctx).Log("INFO", "resuming open contract", map[string]interface{}{
			"contract_id": existing.ContractID(),
		})
		return &NegotiateContractResponse{Contract: existing, WasNegotiated: false}, nil
	}

	ship, err := h.shipRepo.FindBySymbol(ctx, cmd.ShipSymbol, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find ship: %w", err)
	}

	// Negotiation requires a docked ship
	if !ship.IsDocked() {
		if err := h.shipRepo.Dock(ctx, ship, cmd.PlayerID); err != nil {
			return nil, fmt.Errorf("failed to dock for negotiation: %w", err)
		}
		if err := ship.Dock(); err != nil {
			return nil, err
		}
	}

	data, err := h.apiClient.NegotiateContract(ctx, cmd.ShipSymbol, player.Token)
	if err != nil {
		if common.ErrorAPICode(err) == codeContractAlreadyOpen {
			existing, findErr := h.findOpenContract(ctx, player.Token, cmd.PlayerID)
			if findErr != nil {
				return nil, findErr
			}
			if existing == nil {
				return nil, fmt.Errorf("server reports an open contract but none was found: %w", err)
			}
			return &NegotiateContractResponse{Contract: existing, WasNegotiated: false}, nil
		}
		return nil, fmt.Errorf("failed to negotiate contract: %w", err)
	}

	negotiated, err := contractFromData(data, cmd.PlayerID)
	if err != nil {
		return nil, err
	}
	return &NegotiateContractResponse{Contract: negotiated, WasNegotiated: true}, nil
}

// findOpenContract returns the agent's unfulfilled contract, if any
func (h *NegotiateContractHandler) findOpenContract(ctx context.Context, token string, playerID int) (*contract.Contract, error) {
	contracts, err := h.apiClient.ListContracts(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	for _, data := range contracts {
		if data.Fulfilled {
			continue
		}
		return contractFromData(data, playerID)
	}
	return nil, nil
}
