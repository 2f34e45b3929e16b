package common

import (
	"context"
	"errors"
	"time"

	"github.com/stellarforge/fleetd/internal/domain/navigation"
	"github.com/stellarforge/fleetd/internal/domain/shared"
	"github.com/stellarforge/fleetd/internal/domain/system"
)

// ShipRepository abstracts ship state and ship actions. Reads reconstruct
// domain entities from the game API; actions push state changes back through
// it and return what the server decided.
type ShipRepository interface {
	// FindBySymbol retrieves a ship with its waypoint reconstructed
	FindBySymbol(ctx context.Context, symbol string, playerID int) (*navigation.Ship, error)

	// FindAllByPlayer retrieves all ships for a player
	FindAllByPlayer(ctx context.Context, playerID int) ([]*navigation.Ship, error)

	// Navigate sends the ship toward destination and returns the server's
	// arrival time and fuel spend
	Navigate(ctx context.Context, ship *navigation.Ship, destination *shared.Waypoint, playerID int) (*NavigationResult, error)

	// Dock docks the ship
	Dock(ctx context.Context, ship *navigation.Ship, playerID int) error

	// Orbit puts the ship in orbit
	Orbit(ctx context.Context, ship *navigation.Ship, playerID int) error

	// Refuel refuels the ship; nil units means fill the tank
	Refuel(ctx context.Context, ship *navigation.Ship, playerID int, units *int) (*RefuelResult, error)

	// SetFlightMode sets the ship's flight mode
	SetFlightMode(ctx context.Context, ship *navigation.Ship, playerID int, mode string) error
}

// Player is the stored identity and API token of one game agent
type Player struct {
	ID              int
	AgentSymbol     string
	Token           string
	Credits         int
	StartingFaction string
	Metadata        map[string]interface{}
}

// PlayerRepository defines player persistence operations
type PlayerRepository interface {
	FindByID(ctx context.Context, playerID int) (*Player, error)
	FindByAgentSymbol(ctx context.Context, agentSymbol string) (*Player, error)
	Save(ctx context.Context, player *Player) error
	List(ctx context.Context) ([]*Player, error)
}

// MarketObservation is one market snapshot recorded by a scout visit
type MarketObservation struct {
	WaypointSymbol string
	SystemSymbol   string
	PlayerID       int
	TradeGoods     []TradeGoodData
	ObservedAt     time.Time
}

// TradeGoodData is one good's listing at a market
type TradeGoodData struct {
	Symbol        string
	SupplyLevel   string
	ActivityLevel string
	PurchasePrice int
	SellPrice     int
	TradeVolume   int
}

// MarketRepository stores market observations collected by scouts
type MarketRepository interface {
	SaveObservation(ctx context.Context, observation *MarketObservation) error
	FindLatest(ctx context.Context, waypointSymbol string, playerID int) (*MarketObservation, error)
	ListBySystem(ctx context.Context, systemSymbol string, playerID int) ([]*MarketObservation, error)
}

// APIClient defines operations against the game server
type APIClient interface {
	// Ship operations
	GetShip(ctx context.Context, symbol, token string) (*ShipData, error)
	ListShips(ctx context.Context, token string) ([]*ShipData, error)
	NavigateShip(ctx context.Context, symbol, destination, token string) (*NavigationResult, error)
	OrbitShip(ctx context.Context, symbol, token string) error
	DockShip(ctx context.Context, symbol, token string) error
	RefuelShip(ctx context.Context, symbol, token string, units *int) (*RefuelResult, error)
	SetFlightMode(ctx context.Context, symbol, flightMode, token string) error
	PurchaseShip(ctx context.Context, shipType, waypointSymbol, token string) (*PurchaseResult, error)

	// Agent operations
	GetAgent(ctx context.Context, token string) (*AgentData, error)

	// Market and waypoint operations
	GetMarket(ctx context.Context, systemSymbol, waypointSymbol, token string) (*MarketData, error)
	GetShipyard(ctx context.Context, systemSymbol, waypointSymbol, token string) (*ShipyardData, error)
	ListWaypoints(ctx context.Context, systemSymbol, token string, page, limit int) (*WaypointsListResponse, error)

	// Contract operations
	ListContracts(ctx context.Context, token string) ([]*ContractData, error)
	NegotiateContract(ctx context.Context, shipSymbol, token string) (*ContractData, error)
	AcceptContract(ctx context.Context, contractID, token string) (*ContractData, error)
	DeliverContract(ctx context.Context, contractID, shipSymbol, tradeSymbol string, units int, token string) (*ContractData, error)
	FulfillContract(ctx context.Context, contractID, token string) (*ContractData, error)
	PurchaseCargo(ctx context.Context, shipSymbol, tradeSymbol string, units int, token string) (*CargoTransaction, error)
}

// APICoded is implemented by API client errors that carry the game server's
// numeric error code.
type APICoded interface {
	APICode() int
}

// ErrorAPICode extracts the server error code from err, or 0 when err does
// not carry one.
func ErrorAPICode(err error) int {
	var coded APICoded
	if errors.As(err, &coded) {
		return coded.APICode()
	}
	return 0
}

// ContainerSpec describes a workload container to launch
type ContainerSpec struct {
	ContainerID   string
	PlayerID      int
	CommandType   string
	Config        map[string]interface{}
	MaxIterations int
	RestartPolicy string
}

// ContainerLauncher spawns and stops workload containers. The daemon's
// manager implements it directly; handlers running inside the daemon use an
// in-process client rather than dialing the daemon's own socket.
type ContainerLauncher interface {
	CreateContainer(ctx context.Context, spec *ContainerSpec) (string, error)
	StopContainer(ctx context.Context, containerID string, playerID int) error
}

// SystemGraphRepository caches built system graphs
type SystemGraphRepository interface {
	Get(ctx context.Context, systemSymbol string) (map[string]interface{}, error)
	Save(ctx context.Context, systemSymbol string, graph map[string]interface{}) error
}

// GraphBuilder builds a system graph from the game API
type GraphBuilder interface {
	BuildSystemGraph(ctx context.Context, systemSymbol string, playerID int) (*system.SystemGraph, error)
}

// GraphLoadResult reports a loaded graph and where it came from
type GraphLoadResult struct {
	Graph   *system.SystemGraph
	Source  string // "database" or "api"
	Message string
}

// SystemGraphProvider loads system graphs, cache first, API on miss
type SystemGraphProvider interface {
	GetGraph(ctx context.Context, systemSymbol string, playerID int, forceRefresh bool) (*GraphLoadResult, error)
}

// DTOs for API operations

type ShipData struct {
	Symbol         string
	Location       string
	NavStatus      string
	FlightMode     string
	FuelCurrent    int
	FuelCapacity   int
	EngineSpeed    int
	FrameSymbol    string
	Role           string
	ArrivalTime    *time.Time
	CooldownExpiry *time.Time
}

type NavigationResult struct {
	Destination    string
	ArrivalTime    int    // seconds until arrival
	ArrivalTimeStr string // ISO8601 timestamp from the server
	FuelConsumed   int
}

type RefuelResult struct {
	FuelAdded   int
	CreditsCost int
}

type PurchaseResult struct {
	ShipSymbol  string
	CreditsCost int
}

type AgentData struct {
	AccountID       string
	Symbol          string
	Headquarters    string
	Credits         int
	StartingFaction string
}

type MarketData struct {
	WaypointSymbol string
	TradeGoods     []TradeGoodData
}

type ShipyardData struct {
	WaypointSymbol string
	Listings       []ShipListing
}

// FindListing returns the listing for a ship type, if the yard sells it
func (s *ShipyardData) FindListing(shipType string) (ShipListing, bool) {
	for _, listing := range s.Listings {
		if listing.Type == shipType {
			return listing, true
		}
	}
	return ShipListing{}, false
}

type ShipListing struct {
	Type          string
	Name          string
	PurchasePrice int
}

type WaypointAPIData struct {
	Symbol   string
	Type     string
	X        float64
	Y        float64
	Traits   []map[string]interface{}
	Orbitals []map[string]string
}

type WaypointsListResponse struct {
	Data []WaypointAPIData
	Meta PaginationMeta
}

type PaginationMeta struct {
	Total int
	Page  int
	Limit int
}

type ContractData struct {
	ID               string
	FactionSymbol    string
	Type             string
	Accepted         bool
	Fulfilled        bool
	DeadlineToAccept *time.Time
	Deadline         *time.Time
	PaymentOnAccept  int
	PaymentOnFulfill int
	Terms            []ContractDeliverable
}

type ContractDeliverable struct {
	TradeSymbol       string
	DestinationSymbol string
	UnitsRequired     int
	UnitsFulfilled    int
}

type CargoTransaction struct {
	ShipSymbol   string
	TradeSymbol  string
	Units        int
	PricePerUnit int
	TotalPrice   int
	AgentCredits int
}
