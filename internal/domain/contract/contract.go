package contract

import (
	"fmt"
	"time"

	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// Payment is the two-part contract reward
type Payment struct {
	OnAccepted  int
	OnFulfilled int
}

// Delivery is one good the contract requires at a destination
type Delivery struct {
	TradeSymbol       string
	DestinationSymbol string
	UnitsRequired     int
	UnitsFulfilled    int
}

// Remaining returns the units still owed for this delivery
func (d Delivery) Remaining() int {
	return d.UnitsRequired - d.UnitsFulfilled
}

// Terms are the negotiated conditions of a contract
type Terms struct {
	Payment          Payment
	Deliveries       []Delivery
	DeadlineToAccept *time.Time
	Deadline         *time.Time
}

// Contract is a delivery agreement with a faction. The game server is the
// source of truth; this entity mirrors server state so handlers can reason
// about progress between API calls.
type Contract struct {
	contractID    string
	playerID      int
	factionSymbol string
	contractType  string
	terms         Terms
	accepted      bool
	fulfilled     bool
}

func NewContract(contractID string, playerID int, factionSymbol, contractType string, terms Terms) (*Contract, error) {
	if contractID == "" {
		return nil, shared.NewValidationError("contract_id", "cannot be empty")
	}
	if playerID <= 0 {
		return nil, shared.NewValidationError("player_id", "must be positive")
	}
	if factionSymbol == "" {
		return nil, shared.NewValidationError("faction_symbol", "cannot be empty")
	}
	if len(terms.Deliveries) == 0 {
		return nil, shared.NewValidationError("deliveries", "contract must have at least one delivery")
	}

	return &Contract{
		contractID:    contractID,
		playerID:      playerID,
		factionSymbol: factionSymbol,
		contractType:  contractType,
		terms:         terms,
	}, nil
}

func (c *Contract) ContractID() string    { return c.contractID }
func (c *Contract) PlayerID() int         { return c.playerID }
func (c *Contract) FactionSymbol() string { return c.factionSymbol }
func (c *Contract) Type() string          { return c.contractType }
func (c *Contract) Terms() Terms          { return c.terms }
func (c *Contract) Accepted() bool        { return c.accepted }
func (c *Contract) Fulfilled() bool       { return c.fulfilled }

// IsOpen reports whether the contract still needs work
func (c *Contract) IsOpen() bool { return !c.fulfilled }

// TotalPayment is the full reward for completing the contract
func (c *Contract) TotalPayment() int {
	return c.terms.Payment.OnAccepted + c.terms.Payment.OnFulfilled
}

func (c *Contract) Accept() error {
	if c.fulfilled {
		return fmt.Errorf("contract %s already fulfilled", c.contractID)
	}
	if c.accepted {
		return fmt.Errorf("contract %s already accepted", c.contractID)
	}
	c.accepted = true
	return nil
}

// DeliverCargo records delivery progress for a trade good
func (c *Contract) DeliverCargo(tradeSymbol string, units int) error {
	if !c.accepted {
		return fmt.Errorf("contract %s not accepted", c.contractID)
	}

	for i := range c.terms.Deliveries {
		delivery := &c.terms.Deliveries[i]
		if delivery.TradeSymbol != tradeSymbol {
			continue
		}
		if delivery.UnitsFulfilled+units > delivery.UnitsRequired {
			return fmt.Errorf("delivering %d units of %s exceeds the %d still required",
				units, tradeSymbol, delivery.Remaining())
		}
		delivery.UnitsFulfilled += units
		return nil
	}
	return fmt.Errorf("%s is not part of contract %s", tradeSymbol, c.contractID)
}

// CanFulfill reports whether every delivery is complete
func (c *Contract) CanFulfill() bool {
	for _, delivery := range c.terms.Deliveries {
		if delivery.Remaining() > 0 {
			return false
		}
	}
	return true
}

func (c *Contract) Fulfill() error {
	if !c.accepted {
		return fmt.Errorf("contract %s not accepted", c.contractID)
	}
	if !c.CanFulfill() {
		return fmt.Errorf("contract %s has unfinished deliveries", c.contractID)
	}
	c.fulfilled = true
	return nil
}

// IsExpired reports whether the deadline has passed
func (c *Contract) IsExpired(clock shared.Clock) bool {
	if c.terms.Deadline == nil {
		return false
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return clock.Now().After(*c.terms.Deadline)
}

// RestoreState overwrites the accepted/fulfilled flags with what the game
// server reports. Used when rebuilding a contract from API data.
func (c *Contract) RestoreState(accepted, fulfilled bool) {
	c.accepted = accepted
	c.fulfilled = fulfilled
}

func (c *Contract) String() string {
	return fmt.Sprintf("Contract[%s, type=%s, accepted=%t, fulfilled=%t, deliveries=%d]",
		c.contractID, c.contractType, c.accepted, c.fulfilled, len(c.terms.Deliveries))
}
