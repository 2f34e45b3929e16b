package contract

import (
	"fmt"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/domain/contract"
)

// contractFromData rebuilds a domain contract from the API representation
func contractFromData(data *common.ContractData, playerID int) (*contract.Contract, error) {
	deliveries := make([]contract.Delivery, len(data.Terms))
	for i, term := range data.Terms {
		deliveries[i] = contract.Delivery{
			TradeSymbol:       term.TradeSymbol,
			DestinationSymbol: term.DestinationSymbol,
			UnitsRequired:     term.UnitsRequired,
			UnitsFulfilled:    term.UnitsFulfilled,
		}
	}

	entity, err := contract.NewContract(data.ID, playerID, data.FactionSymbol, data.Type, contract.Terms{
		Payment: contract.Payment{
			OnAccepted:  data.PaymentOnAccept,
			OnFulfilled: data.PaymentOnFulfill,
		},
		Deliveries:       deliveries,
		DeadlineToAccept: data.DeadlineToAccept,
		Deadline:         data.Deadline,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid contract %s from server: %w", data.ID, err)
	}

	entity.RestoreState(data.Accepted, data.Fulfilled)
	return entity, nil
}
