package contract

import (
	"context"
	"fmt"
	"strings"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/mediator"
	"github.com/stellarforge/fleetd/internal/domain/contract"
)

// EvaluateContractProfitabilityHandler prices a contract against the market
// observations scouts have recorded. The math lives on the contract entity;
// this handler only gathers the cheapest prices per good.
type EvaluateContractProfitabilityHandler struct {
	marketRepo common.MarketRepository
}

func NewEvaluateContractProfitabilityHandler(marketRepo common.MarketRepository) *EvaluateContractProfitabilityHandler {
	return &EvaluateContractProfitabilityHandler{marketRepo: marketRepo}
}

func (h *EvaluateContractProfitabilityHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	query, ok := request.(*EvaluateContractProfitabilityQuery)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	prices := map[string]int{}
	cheapestWaypoint := ""
	maxUnitsPerPurchase := 0

	for _, delivery := range query.Contract.Terms().Deliveries {
		if delivery.Remaining() == 0 {
			continue
		}

		systemSymbol := extractSystem(delivery.DestinationSymbol)
		observations, err := h.marketRepo.ListBySystem(ctx, systemSymbol, query.PlayerID)
		if err != nil {
			return nil, fmt.Errorf("failed to read market observations: %w", err)
		}

		waypoint, price, volume := cheapestSeller(observations, delivery.TradeSymbol)
		if waypoint == "" {
			return nil, fmt.Errorf("no observed market sells %s in %s", delivery.TradeSymbol, systemSymbol)
		}

		prices[delivery.TradeSymbol] = price
		if cheapestWaypoint == "" {
			cheapestWaypoint = waypoint
			maxUnitsPerPurchase = volume
		}
	}

	evaluation, err := query.Contract.EvaluateProfitability(contract.ProfitabilityContext{
		MarketPrices:           prices,
		MaxUnitsPerPurchase:    maxUnitsPerPurchase,
		FuelCostPerTrip:        query.FuelCostPerTrip,
		CheapestMarketWaypoint: cheapestWaypoint,
	})
	if err != nil {
		return nil, err
	}

	return &ProfitabilityResult{
		IsProfitable:           evaluation.IsProfitable,
		NetProfit:              evaluation.NetProfit,
		TotalPayment:           evaluation.TotalPayment,
		PurchaseCost:           evaluation.PurchaseCost,
		PurchaseBatches:        evaluation.PurchaseBatches,
		CheapestMarketWaypoint: evaluation.CheapestMarketWaypoint,
		MaxUnitsPerPurchase:    maxUnitsPerPurchase,
		Reason:                 evaluation.Reason,
	}, nil
}

// cheapestSeller scans observations for the lowest buy price of a good
func cheapestSeller(observations []*common.MarketObservation, tradeSymbol string) (waypoint string, price, volume int) {
	for _, observation := range observations {
		for _, good := range observation.TradeGoods {
			if good.Symbol != tradeSymbol {
				continue
			}
			if waypoint == "" || good.PurchasePrice < price {
				waypoint = observation.WaypointSymbol
				price = good.PurchasePrice
				volume = good.TradeVolume
			}
		}
	}
	return waypoint, price, volume
}

// extractSystem derives "X1-ABC" from "X1-ABC-XYZ"
func extractSystem(waypointSymbol string) string {
	parts := strings.Split(waypointSymbol, "-")
	if len(parts) < 3 {
		return waypointSymbol
	}
	return strings.Join(parts[:2], "-")
}
