package contract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarforge/fleetd/internal/domain/shared"
)

func testTerms() Terms {
	return Terms{
		Payment: Payment{OnAccepted: 10000, OnFulfilled: 40000},
		Deliveries: []Delivery{
			{TradeSymbol: "IRON_ORE", DestinationSymbol: "X1-TEST-H55", UnitsRequired: 60},
		},
	}
}

func newTestContract(t *testing.T) *Contract {
	t.Helper()
	c, err := NewContract("clt-1", 1, "COSMIC", "PROCUREMENT", testTerms())
	require.NoError(t, err)
	return c
}

func TestNewContractValidation(t *testing.T) {
	_, err := NewContract("", 1, "COSMIC", "PROCUREMENT", testTerms())
	assert.Error(t, err)

	_, err = NewContract("clt-1", 0, "COSMIC", "PROCUREMENT", testTerms())
	assert.Error(t, err)

	_, err = NewContract("clt-1", 1, "", "PROCUREMENT", testTerms())
	assert.Error(t, err)

	_, err = NewContract("clt-1", 1, "COSMIC", "PROCUREMENT", Terms{Payment: Payment{OnFulfilled: 100}})
	assert.Error(t, err, "a contract without deliveries is invalid")
}

func TestContractLifecycle(t *testing.T) {
	c := newTestContract(t)
	assert.False(t, c.Accepted())
	assert.True(t, c.IsOpen())
	assert.Equal(t, 50000, c.TotalPayment())

	require.NoError(t, c.Accept())
	assert.Error(t, c.Accept(), "double accept is rejected")

	require.NoError(t, c.DeliverCargo("IRON_ORE", 40))
	assert.False(t, c.CanFulfill())
	assert.Error(t, c.Fulfill(), "cannot fulfill with units outstanding")

	require.NoError(t, c.DeliverCargo("IRON_ORE", 20))
	assert.True(t, c.CanFulfill())
	require.NoError(t, c.Fulfill())
	assert.False(t, c.IsOpen())
}

func TestDeliverCargoRejectsOverAndUnknown(t *testing.T) {
	c := newTestContract(t)

	assert.Error(t, c.DeliverCargo("IRON_ORE", 10), "delivery before accept is rejected")

	require.NoError(t, c.Accept())
	assert.Error(t, c.DeliverCargo("IRON_ORE", 61), "over-delivery is rejected")
	assert.Error(t, c.DeliverCargo("COPPER_ORE", 5), "good not on the contract")
}

func TestIsExpired(t *testing.T) {
	deadline := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	terms := testTerms()
	terms.Deadline = &deadline
	c, err := NewContract("clt-1", 1, "COSMIC", "PROCUREMENT", terms)
	require.NoError(t, err)

	clock := shared.NewMockClock(deadline.Add(-time.Hour))
	assert.False(t, c.IsExpired(clock))

	clock.Advance(2 * time.Hour)
	assert.True(t, c.IsExpired(clock))

	assert.False(t, newTestContract(t).IsExpired(clock), "no deadline never expires")
}

func TestRestoreState(t *testing.T) {
	c := newTestContract(t)
	c.RestoreState(true, false)
	assert.True(t, c.Accepted())
	assert.False(t, c.Fulfilled())
	require.NoError(t, c.DeliverCargo("IRON_ORE", 60), "restored accepted contract takes deliveries")
}

func TestEvaluateProfitability(t *testing.T) {
	c := newTestContract(t)

	evaluation, err := c.EvaluateProfitability(ProfitabilityContext{
		MarketPrices:           map[string]int{"IRON_ORE": 500},
		MaxUnitsPerPurchase:    20,
		FuelCostPerTrip:        300,
		CheapestMarketWaypoint: "X1-TEST-B2",
	})
	require.NoError(t, err)

	assert.Equal(t, 50000, evaluation.TotalPayment)
	assert.Equal(t, 30000, evaluation.PurchaseCost)
	assert.Equal(t, 300, evaluation.FuelCost)
	assert.Equal(t, 3, evaluation.PurchaseBatches)
	assert.Equal(t, 19700, evaluation.NetProfit)
	assert.True(t, evaluation.IsProfitable)
	assert.Equal(t, "X1-TEST-B2", evaluation.CheapestMarketWaypoint)
}

func TestEvaluateProfitabilityToleratesSmallLoss(t *testing.T) {
	c := newTestContract(t)

	evaluation, err := c.EvaluateProfitability(ProfitabilityContext{
		MarketPrices: map[string]int{"IRON_ORE": 900}, // cost 54000 vs payment 50000
	})
	require.NoError(t, err)
	assert.Equal(t, -4000, evaluation.NetProfit)
	assert.True(t, evaluation.IsProfitable, "losses within the threshold are acceptable")

	evaluation, err = c.EvaluateProfitability(ProfitabilityContext{
		MarketPrices: map[string]int{"IRON_ORE": 2000},
	})
	require.NoError(t, err)
	assert.False(t, evaluation.IsProfitable)
}

func TestEvaluateProfitabilityRequiresPrices(t *testing.T) {
	c := newTestContract(t)
	_, err := c.EvaluateProfitability(ProfitabilityContext{MarketPrices: map[string]int{}})
	assert.Error(t, err)
}

func TestFulfilledDeliveriesAreFree(t *testing.T) {
	c := newTestContract(t)
	require.NoError(t, c.Accept())
	require.NoError(t, c.DeliverCargo("IRON_ORE", 60))

	evaluation, err := c.EvaluateProfitability(ProfitabilityContext{MarketPrices: map[string]int{}})
	require.NoError(t, err)
	assert.Zero(t, evaluation.PurchaseCost)
	assert.Zero(t, evaluation.PurchaseBatches)
	assert.Equal(t, 50000, evaluation.NetProfit)
}
