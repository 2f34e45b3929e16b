package contract

import "fmt"

// MinProfitThreshold is the lowest net profit a contract may have and still
// be considered worth running. Small losses are tolerated: an idle hauler
// earns nothing at all.
const MinProfitThreshold = -5000

// ProfitabilityContext carries the market snapshot the evaluation needs
type ProfitabilityContext struct {
	// MarketPrices maps trade symbol to the buy price at the cheapest market
	MarketPrices map[string]int
	// MaxUnitsPerPurchase is the market's trade volume cap per transaction
	MaxUnitsPerPurchase int
	// FuelCostPerTrip is the estimated fuel spend for one delivery round trip
	FuelCostPerTrip int
	// CheapestMarketWaypoint is where the goods should be bought
	CheapestMarketWaypoint string
}

// ProfitabilityEvaluation is the outcome of evaluating a contract against
// current market prices
type ProfitabilityEvaluation struct {
	IsProfitable           bool
	NetProfit              int
	TotalPayment           int
	PurchaseCost           int
	FuelCost               int
	PurchaseBatches        int
	CheapestMarketWaypoint string
	Reason                 string
}

// EvaluateProfitability prices out the remaining deliveries against the
// cheapest known markets. Returns an error when a required good has no
// known price.
func (c *Contract) EvaluateProfitability(pctx ProfitabilityContext) (*ProfitabilityEvaluation, error) {
	purchaseCost := 0
	totalUnits := 0
	for _, delivery := range c.terms.Deliveries {
		remaining := delivery.Remaining()
		if remaining == 0 {
			continue
		}
		price, ok := pctx.MarketPrices[delivery.TradeSymbol]
		if !ok {
			return nil, fmt.Errorf("no known market price for %s", delivery.TradeSymbol)
		}
		purchaseCost += price * remaining
		totalUnits += remaining
	}

	batches := 0
	if pctx.MaxUnitsPerPurchase > 0 && totalUnits > 0 {
		batches = (totalUnits + pctx.MaxUnitsPerPurchase - 1) / pctx.MaxUnitsPerPurchase
	}

	fuelCost := pctx.FuelCostPerTrip * len(c.openDeliveries())
	totalPayment := c.TotalPayment()
	netProfit := totalPayment - purchaseCost - fuelCost

	evaluation := &ProfitabilityEvaluation{
		IsProfitable:           netProfit >= MinProfitThreshold,
		NetProfit:              netProfit,
		TotalPayment:           totalPayment,
		PurchaseCost:           purchaseCost,
		FuelCost:               fuelCost,
		PurchaseBatches:        batches,
		CheapestMarketWaypoint: pctx.CheapestMarketWaypoint,
	}
	switch {
	case netProfit > 0:
		evaluation.Reason = "profitable"
	case netProfit >= MinProfitThreshold:
		evaluation.Reason = "acceptable small loss"
	default:
		evaluation.Reason = "loss exceeds acceptable threshold"
	}
	return evaluation, nil
}

func (c *Contract) openDeliveries() []Delivery {
	open := []Delivery{}
	for _, delivery := range c.terms.Deliveries {
		if delivery.Remaining() > 0 {
			open = append(open, delivery)
		}
	}
	return open
}
