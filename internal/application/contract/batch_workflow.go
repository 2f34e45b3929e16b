package contract

import (
	"context"
	"fmt"

	"github.com/stellarforge/fleetd/internal/application/logging"
	"github.com/stellarforge/fleetd/internal/application/mediator"
	"github.com/stellarforge/fleetd/internal/application/ship"
	"github.com/stellarforge/fleetd/internal/domain/contract"
)

// BatchContractWorkflowHandler runs complete contract cycles. Every step is
// dispatched through the mediator so it picks up logging and validation like
// any other command. A failed iteration is counted and the loop moves on;
// only cancellation stops the batch early.
type BatchContractWorkflowHandler struct {
	sender mediator.Sender
}

func NewBatchContractWorkflowHandler(sender mediator.Sender) *BatchContractWorkflowHandler {
	return &BatchContractWorkflowHandler{sender: sender}
}

func (h *BatchContractWorkflowHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*BatchContractWorkflowCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}

	logger := logging.LoggerFromContext(ctx)
	result := &BatchContractWorkflowResponse{Errors: []string{}}

	for iteration := 0; iteration < cmd.Iterations || cmd.Iterations == -1; iteration++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if err := h.runIteration(ctx, cmd, result); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("iteration %d: %s", iteration+1, err.Error()))
			logger.Log("ERROR", "contract iteration failed", map[string]interface{}{
				"iteration": iteration + 1,
				"error":     err.Error(),
			})
		}
	}
	return result, nil
}

func (h *BatchContractWorkflowHandler) runIteration(
	ctx context.Context,
	cmd *BatchContractWorkflowCommand,
	result *BatchContractWorkflowResponse,
) error {
	logger := logging.LoggerFromContext(ctx)

	// Negotiate, or resume whatever contract is already open
	negotiateResp, err := h.sender.Send(ctx, &NegotiateContractCommand{
		ShipSymbol: cmd.ShipSymbol,
		PlayerID:   cmd.PlayerID,
	})
	if err != nil {
		return fmt.Errorf("negotiate: %w", err)
	}
	negotiated := negotiateResp.(*NegotiateContractResponse)
	current := negotiated.Contract
	if negotiated.WasNegotiated {
		result.Negotiated++
	}

	// Price it out. An unprofitable contract is accepted anyway: it is the
	// only one the agent can hold, and abandoning it costs more.
	profitResp, err := h.sender.Send(ctx, &EvaluateContractProfitabilityQuery{
		Contract: current,
		PlayerID: cmd.PlayerID,
	})
	if err != nil {
		return fmt.Errorf("evaluate profitability: %w", err)
	}
	profitability := profitResp.(*ProfitabilityResult)
	if !profitability.IsProfitable {
		logger.Log("WARNING", "contract unprofitable, accepting anyway", map[string]interface{}{
			"contract_id": current.ContractID(),
			"net_profit":  profitability.NetProfit,
			"reason":      profitability.Reason,
		})
	}

	if !current.Accepted() {
		acceptResp, err := h.sender.Send(ctx, &AcceptContractCommand{
			ContractID: current.ContractID(),
			PlayerID:   cmd.PlayerID,
		})
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		current = acceptResp.(*AcceptContractResponse).Contract
		result.Accepted++
	}

	purchaseSpend := 0
	for _, delivery := range current.Terms().Deliveries {
		if delivery.Remaining() == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		spend, updated, err := h.runDelivery(ctx, cmd, current, delivery, profitability.CheapestMarketWaypoint)
		if err != nil {
			return err
		}
		purchaseSpend += spend
		current = updated
	}

	if _, err := h.sender.Send(ctx, &FulfillContractCommand{
		ContractID: current.ContractID(),
		PlayerID:   cmd.PlayerID,
	}); err != nil {
		return fmt.Errorf("fulfill: %w", err)
	}
	result.Fulfilled++
	result.TotalProfit += current.TotalPayment() - purchaseSpend

	logger.Log("INFO", "contract fulfilled", map[string]interface{}{
		"contract_id": current.ContractID(),
		"payment":     current.TotalPayment(),
		"spend":       purchaseSpend,
	})
	return nil
}

// runDelivery buys the outstanding units at the cheapest market and hauls
// them to the delivery destination
func (h *BatchContractWorkflowHandler) runDelivery(
	ctx context.Context,
	cmd *BatchContractWorkflowCommand,
	current *contract.Contract,
	delivery contract.Delivery,
	marketWaypoint string,
) (int, *contract.Contract, error) {
	if err := h.goTo(ctx, cmd, marketWaypoint); err != nil {
		return 0, nil, fmt.Errorf("reach market %s: %w", marketWaypoint, err)
	}

	purchaseResp, err := h.sender.Send(ctx, &PurchaseCargoCommand{
		ShipSymbol:  cmd.ShipSymbol,
		TradeSymbol: delivery.TradeSymbol,
		Units:       delivery.Remaining(),
		PlayerID:    cmd.PlayerID,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("purchase %s: %w", delivery.TradeSymbol, err)
	}
	purchase := purchaseResp.(*PurchaseCargoResponse)

	if err := h.goTo(ctx, cmd, delivery.DestinationSymbol); err != nil {
		return 0, nil, fmt.Errorf("reach destination %s: %w", delivery.DestinationSymbol, err)
	}

	deliverResp, err := h.sender.Send(ctx, &DeliverContractCommand{
		ContractID:  current.ContractID(),
		ShipSymbol:  cmd.ShipSymbol,
		TradeSymbol: delivery.TradeSymbol,
		Units:       purchase.UnitsPurchased,
		PlayerID:    cmd.PlayerID,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("deliver %s: %w", delivery.TradeSymbol, err)
	}

	return purchase.TotalCost, deliverResp.(*DeliverContractResponse).Contract, nil
}

// goTo navigates the ship to a waypoint and docks it
func (h *BatchContractWorkflowHandler) goTo(ctx context.Context, cmd *BatchContractWorkflowCommand, destination string) error {
	if _, err := h.sender.Send(ctx, &ship.NavigateRouteCommand{
		ShipSymbol:  cmd.ShipSymbol,
		Destination: destination,
		PlayerID:    cmd.PlayerID,
	}); err != nil {
		return err
	}
	_, err := h.sender.Send(ctx, &ship.DockShipCommand{
		ShipSymbol: cmd.ShipSymbol,
		PlayerID:   cmd.PlayerID,
	})
	return err
}
