package contract

import (
	"context"
	"fmt"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/logging"
	"github.com/stellarforge/fleetd/internal/application/mediator"
)

// PurchaseCargoHandler buys goods at the ship's current market. Markets cap
// each transaction at their trade volume, so large purchases are split into
// as many transactions as needed.
type PurchaseCargoHandler struct {
	apiClient  common.APIClient
	shipRepo   common.ShipRepository
	playerRepo common.PlayerRepository
}

func NewPurchaseCargoHandler(
	apiClient common.APIClient,
	shipRepo common.ShipRepository,
	playerRepo common.PlayerRepository,
) *PurchaseCargoHandler {
	return &PurchaseCargoHandler{
		apiClient:  apiClient,
		shipRepo:   shipRepo,
		playerRepo: playerRepo,
	}
}

func (h *PurchaseCargoHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*PurchaseCargoCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	player, err := h.playerRepo.FindByID(ctx, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}

	ship, err := h.shipRepo.FindBySymbol(ctx, cmd.ShipSymbol, cmd.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find ship: %w", err)
	}

	tradeVolume, err := h.tradeVolumeAt(ctx, ship.SystemSymbol(), ship.CurrentLocation().Symbol, cmd.TradeSymbol, player.Token)
	if err != nil {
		return nil, err
	}

	logger := logging.LoggerFromContext(ctx)
	response := &PurchaseCargoResponse{}
	remaining := cmd.Units
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		units := min(remaining, tradeVolume)
		transaction, err := h.apiClient.PurchaseCargo(ctx, cmd.ShipSymbol, cmd.TradeSymbol, units, player.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to purchase %d %s: %w", units, cmd.TradeSymbol, err)
		}

		response.UnitsPurchased += transaction.Units
		response.TotalCost += transaction.TotalPrice
		response.Transactions++
		remaining -= transaction.Units

		logger.Log("INFO", "purchased cargo", map[string]interface{}{
			"ship_symbol":  cmd.ShipSymbol,
			"trade_symbol": cmd.TradeSymbol,
			"units":        transaction.Units,
			"total_price":  transaction.TotalPrice,
		})
	}
	return response, nil
}

// tradeVolumeAt reads the per-transaction cap for a good at the ship's
// current market
func (h *PurchaseCargoHandler) tradeVolumeAt(ctx context.Context, systemSymbol, waypointSymbol, tradeSymbol, token string) (int, error) {
	market, err := h.apiClient.GetMarket(ctx, systemSymbol, waypointSymbol, token)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch market %s: %w", waypointSymbol, err)
	}
	for _, good := range market.TradeGoods {
		if good.Symbol == tradeSymbol && good.TradeVolume > 0 {
			return good.TradeVolume, nil
		}
	}
	return 0, fmt.Errorf("%s is not sold at %s", tradeSymbol, waypointSymbol)
}
