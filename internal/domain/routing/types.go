package routing

import (
	"context"

	"github.com/stellarforge/fleetd/internal/domain/system"
)

// RoutingClient answers the three fleet-routing questions: single-ship
// pathfinding with refuels, multi-stop tour ordering, and fleet partition.
// The in-process Engine is the only implementation today; the interface is
// kept so a remote solver could be swapped in.
type RoutingClient interface {
	PlanRoute(ctx context.Context, request *RouteRequest) (*RouteResponse, error)
	OptimizeTour(ctx context.Context, request *TourRequest) (*TourResponse, error)
	PartitionFleet(ctx context.Context, request *VRPRequest) (*VRPResponse, error)
}

// RouteRequest asks for a fuel-feasible path between two waypoints
type RouteRequest struct {
	Graph         *system.SystemGraph
	StartWaypoint string
	GoalWaypoint  string
	CurrentFuel   int
	FuelCapacity  int
	EngineSpeed   int
}

// RouteResponse is an ordered sequence of travel/refuel steps.
// A nil RouteResponse from the planner means no fuel-feasible path exists.
type RouteResponse struct {
	Steps            []*RouteStep
	TotalFuelCost    int
	TotalTimeSeconds int
	TotalDistance    float64
}

// RouteStep is a single action along a route
type RouteStep struct {
	Action      RouteAction
	Waypoint    string
	Distance    float64
	FuelCost    int
	TimeSeconds int
	Mode        string // flight mode for TRAVEL steps: "BURN", "CRUISE", or "DRIFT"
	Amount      int    // fuel units added for REFUEL steps
}

// RouteAction distinguishes travel from refuel steps
type RouteAction int

const (
	RouteActionTravel RouteAction = iota
	RouteActionRefuel
)

func (a RouteAction) String() string {
	if a == RouteActionRefuel {
		return "REFUEL"
	}
	return "TRAVEL"
}

// TourRequest asks for an optimal closed visiting order over a waypoint set
type TourRequest struct {
	Graph         *system.SystemGraph
	StartWaypoint string
	Waypoints     []string
	FuelCapacity  int
	EngineSpeed   int
}

// TourResponse is the ordered tour plus the concatenated per-leg routes
type TourResponse struct {
	VisitOrder       []string
	CombinedRoute    []*RouteStep
	TotalTimeSeconds int
}

// VRPRequest asks for a partition of markets across a fleet
type VRPRequest struct {
	Graph           *system.SystemGraph
	MarketWaypoints []string
	ShipConfigs     map[string]*ShipConfig
}

// ShipConfig describes one vehicle in a partition request
type ShipConfig struct {
	CurrentLocation string
	FuelCapacity    int
	EngineSpeed     int
}

// VRPResponse maps every requested ship to its tour; ships left idle get an
// entry with an empty waypoint list.
type VRPResponse struct {
	Assignments map[string]*ShipTour
}

// ShipTour is one ship's share of a fleet partition
type ShipTour struct {
	Waypoints        []string
	Route            []*RouteStep
	TotalTimeSeconds int
}
