package routing

import (
	"context"
	"time"
)

const (
	// DefaultTourBudget bounds a single TSP solve
	DefaultTourBudget = 5 * time.Second

	// DefaultVRPBudget bounds a single fleet-partition solve
	DefaultVRPBudget = 10 * time.Second

	// defaultMaxSolves bounds concurrent CPU-heavy solves so they cannot
	// starve the daemon's serving goroutines
	defaultMaxSolves = 2
)

// Engine is the in-process RoutingClient. Solves are pure functions over the
// request's graph snapshot; the engine adds wall-clock budgets and a
// concurrency bound.
type Engine struct {
	tourBudget time.Duration
	vrpBudget  time.Duration
	solveSlots chan struct{}
}

// NewEngine creates an engine with production budgets
func NewEngine() *Engine {
	return NewEngineWithBudgets(DefaultTourBudget, DefaultVRPBudget, defaultMaxSolves)
}

// NewEngineWithBudgets creates an engine with explicit solver budgets.
// Tests use short budgets (around one second).
func NewEngineWithBudgets(tourBudget, vrpBudget time.Duration, maxConcurrentSolves int) *Engine {
	if maxConcurrentSolves < 1 {
		maxConcurrentSolves = 1
	}
	return &Engine{
		tourBudget: tourBudget,
		vrpBudget:  vrpBudget,
		solveSlots: make(chan struct{}, maxConcurrentSolves),
	}
}

// PlanRoute finds a fuel-feasible path. A nil response with nil error means
// no such path exists.
func (e *Engine) PlanRoute(ctx context.Context, request *RouteRequest) (*RouteResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return PlanPath(
		request.Graph,
		request.StartWaypoint,
		request.GoalWaypoint,
		request.CurrentFuel,
		request.FuelCapacity,
		request.EngineSpeed,
	)
}

// OptimizeTour orders a closed tour over the requested waypoints
func (e *Engine) OptimizeTour(ctx context.Context, request *TourRequest) (*TourResponse, error) {
	if err := e.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer e.releaseSlot()

	return OptimizeTour(
		request.Graph,
		request.StartWaypoint,
		request.Waypoints,
		request.FuelCapacity,
		request.EngineSpeed,
		e.tourBudget,
	)
}

// PartitionFleet splits markets across ships minimising the makespan
func (e *Engine) PartitionFleet(ctx context.Context, request *VRPRequest) (*VRPResponse, error) {
	if err := e.acquireSlot(ctx); err != nil {
		return nil, err
	}
	defer e.releaseSlot()

	return PartitionFleet(
		request.Graph,
		request.MarketWaypoints,
		request.ShipConfigs,
		e.vrpBudget,
	)
}

func (e *Engine) acquireSlot(ctx context.Context) error {
	select {
	case e.solveSlots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) releaseSlot() {
	<-e.solveSlots
}
