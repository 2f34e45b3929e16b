package contract

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/mediator"
	"github.com/stellarforge/fleetd/internal/application/ship"
	"github.com/stellarforge/fleetd/internal/domain/navigation"
)

// workflowEnv dispatches workflow steps to the real handlers over fakes, so
// the batch test exercises the same path the daemon wires up.
type workflowEnv struct {
	api       *fakeContractAPI
	negotiate *NegotiateContractHandler
	evaluate  *EvaluateContractProfitabilityHandler
	accept    *AcceptContractHandler
	purchase  *PurchaseCargoHandler
	deliver   *DeliverContractHandler
	fulfill   *FulfillContractHandler

	steps            []string
	navigateFailures int
}

func newWorkflowEnv(t *testing.T) *workflowEnv {
	t.Helper()
	api := &fakeContractAPI{
		market: &common.MarketData{
			WaypointSymbol: "X1-TEST-C3",
			TradeGoods: []common.TradeGoodData{
				{Symbol: "IRON_ORE", PurchasePrice: 500, TradeVolume: 20},
			},
		},
	}
	marketRepo := &stubMarketRepo{observations: []*common.MarketObservation{
		{
			WaypointSymbol: "X1-TEST-C3",
			TradeGoods:     []common.TradeGoodData{{Symbol: "IRON_ORE", PurchasePrice: 500, TradeVolume: 20}},
		},
	}}
	shipRepo := &stubShipRepo{ship: testShip(t, navigation.NavStatusDocked)}
	playerRepo := &stubPlayerRepo{}

	return &workflowEnv{
		api:       api,
		negotiate: NewNegotiateContractHandler(api, shipRepo, playerRepo),
		evaluate:  NewEvaluateContractProfitabilityHandler(marketRepo),
		accept:    NewAcceptContractHandler(api, playerRepo),
		purchase:  NewPurchaseCargoHandler(api, shipRepo, playerRepo),
		deliver:   NewDeliverContractHandler(api, playerRepo),
		fulfill:   NewFulfillContractHandler(api, playerRepo),
	}
}

func (e *workflowEnv) Send(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	switch r := request.(type) {
	case *NegotiateContractCommand:
		e.steps = append(e.steps, "negotiate")
		return e.negotiate.Handle(ctx, r)
	case *EvaluateContractProfitabilityQuery:
		e.steps = append(e.steps, "evaluate")
		return e.evaluate.Handle(ctx, r)
	case *AcceptContractCommand:
		e.steps = append(e.steps, "accept")
		return e.accept.Handle(ctx, r)
	case *PurchaseCargoCommand:
		e.steps = append(e.steps, "purchase")
		return e.purchase.Handle(ctx, r)
	case *DeliverContractCommand:
		e.steps = append(e.steps, "deliver")
		return e.deliver.Handle(ctx, r)
	case *FulfillContractCommand:
		e.steps = append(e.steps, "fulfill")
		return e.fulfill.Handle(ctx, r)
	case *ship.NavigateRouteCommand:
		e.steps = append(e.steps, "navigate:"+r.Destination)
		if e.navigateFailures > 0 {
			e.navigateFailures--
			return nil, fmt.Errorf("route planning failed")
		}
		return &ship.NavigateRouteResponse{Status: "arrived"}, nil
	case *ship.DockShipCommand:
		e.steps = append(e.steps, "dock")
		return &ship.DockShipResponse{Status: "docked"}, nil
	}
	return nil, fmt.Errorf("unexpected request %T", request)
}

func TestBatchWorkflowFulfillsContract(t *testing.T) {
	env := newWorkflowEnv(t)
	handler := NewBatchContractWorkflowHandler(env)

	resp, err := handler.Handle(context.Background(), &BatchContractWorkflowCommand{
		ShipSymbol: "HAULER-1",
		PlayerID:   1,
		Iterations: 1,
	})
	require.NoError(t, err)

	result := resp.(*BatchContractWorkflowResponse)
	assert.Equal(t, 1, result.Negotiated)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Fulfilled)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 50000-60*500, result.TotalProfit)

	assert.Equal(t, []string{
		"negotiate", "evaluate", "accept",
		"navigate:X1-TEST-C3", "dock", "purchase",
		"navigate:X1-TEST-H55", "dock", "deliver",
		"fulfill",
	}, env.steps)
	assert.Len(t, env.api.transactions, 3, "purchase split by trade volume")
}

func TestBatchWorkflowRetriesNextIterationAfterFailure(t *testing.T) {
	env := newWorkflowEnv(t)
	env.navigateFailures = 1
	handler := NewBatchContractWorkflowHandler(env)

	resp, err := handler.Handle(context.Background(), &BatchContractWorkflowCommand{
		ShipSymbol: "HAULER-1",
		PlayerID:   1,
		Iterations: 2,
	})
	require.NoError(t, err)

	result := resp.(*BatchContractWorkflowResponse)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "iteration 1")

	// The second iteration resumes the same contract and finishes it
	assert.Equal(t, 1, result.Negotiated)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Fulfilled)
	assert.Equal(t, 50000-60*500, result.TotalProfit)
}

func TestBatchWorkflowStopsOnCancellation(t *testing.T) {
	env := newWorkflowEnv(t)
	handler := NewBatchContractWorkflowHandler(env)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := handler.Handle(ctx, &BatchContractWorkflowCommand{
		ShipSymbol: "HAULER-1",
		PlayerID:   1,
		Iterations: -1,
	})
	assert.ErrorIs(t, err, context.Canceled)
	result := resp.(*BatchContractWorkflowResponse)
	assert.Zero(t, result.Fulfilled)
	assert.Empty(t, env.steps)
}
