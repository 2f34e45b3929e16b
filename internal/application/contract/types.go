package contract

import (
	"github.com/stellarforge/fleetd/internal/domain/contract"
)

// server error code returned when the agent already has an open contract
const codeContractAlreadyOpen = 4511

// NegotiateContractCommand negotiates a new contract, or resumes the one
// already open for the agent.
type NegotiateContractCommand struct {
	ShipSymbol string `validate:"required"`
	PlayerID   int    `validate:"required,gt=0"`
}

type NegotiateContractResponse struct {
	Contract *contract.Contract
	// WasNegotiated is false when an existing open contract was resumed
	WasNegotiated bool
}

type AcceptContractCommand struct {
	ContractID string `validate:"required"`
	PlayerID   int    `validate:"required,gt=0"`
}

type AcceptContractResponse struct {
	Contract *contract.Contract
}

type DeliverContractCommand struct {
	ContractID  string `validate:"required"`
	ShipSymbol  string `validate:"required"`
	TradeSymbol string `validate:"required"`
	Units       int    `validate:"required,gt=0"`
	PlayerID    int    `validate:"required,gt=0"`
}

type DeliverContractResponse struct {
	Contract *contract.Contract
}

type FulfillContractCommand struct {
	ContractID string `validate:"required"`
	PlayerID   int    `validate:"required,gt=0"`
}

type FulfillContractResponse struct {
	Contract *contract.Contract
}

// PurchaseCargoCommand buys units of a good at the ship's current market,
// splitting the purchase into transactions the market's trade volume allows.
type PurchaseCargoCommand struct {
	ShipSymbol  string `validate:"required"`
	TradeSymbol string `validate:"required"`
	Units       int    `validate:"required,gt=0"`
	PlayerID    int    `validate:"required,gt=0"`
}

type PurchaseCargoResponse struct {
	UnitsPurchased int
	TotalCost      int
	Transactions   int
}

// EvaluateContractProfitabilityQuery prices a contract's open deliveries
// against the cheapest observed markets.
type EvaluateContractProfitabilityQuery struct {
	Contract *contract.Contract `validate:"required"`
	PlayerID int                `validate:"required,gt=0"`
	// FuelCostPerTrip is an estimate; 0 prices fuel as free
	FuelCostPerTrip int
}

type ProfitabilityResult struct {
	IsProfitable           bool
	NetProfit              int
	TotalPayment           int
	PurchaseCost           int
	PurchaseBatches        int
	CheapestMarketWaypoint string
	MaxUnitsPerPurchase    int
	Reason                 string
}

// BatchContractWorkflowCommand runs full contract cycles on one ship:
// negotiate, evaluate, accept, buy, deliver, fulfill. Iterations of -1 runs
// until cancelled.
type BatchContractWorkflowCommand struct {
	ShipSymbol string `validate:"required"`
	PlayerID   int    `validate:"required,gt=0"`
	Iterations int
}

type BatchContractWorkflowResponse struct {
	Negotiated  int
	Accepted    int
	Fulfilled   int
	Failed      int
	TotalProfit int
	Errors      []string
}

// IterationsCompleted reports how many workflow iterations one dispatch
// covered; each iteration ends fulfilled or failed
func (r *BatchContractWorkflowResponse) IterationsCompleted() int {
	return r.Fulfilled + r.Failed
}
