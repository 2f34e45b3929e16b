package metrics

import (
	"context"
	"time"

	"github.com/stellarforge/fleetd/internal/domain/routing"
)

// InstrumentedRoutingClient wraps a RoutingClient and records solve duration
// and outcome per solver kind. A nil collector returns the client unwrapped.
func InstrumentedRoutingClient(inner routing.RoutingClient, collector *RoutingMetricsCollector) routing.RoutingClient {
	if collector == nil {
		return inner
	}
	return &instrumentedRoutingClient{inner: inner, collector: collector}
}

type instrumentedRoutingClient struct {
	inner     routing.RoutingClient
	collector *RoutingMetricsCollector
}

func (c *instrumentedRoutingClient) PlanRoute(ctx context.Context, request *routing.RouteRequest) (*routing.RouteResponse, error) {
	start := time.Now()
	response, err := c.inner.PlanRoute(ctx, request)
	c.collector.RecordSolve("route", time.Since(start).Seconds(), err == nil)
	return response, err
}

func (c *instrumentedRoutingClient) OptimizeTour(ctx context.Context, request *routing.TourRequest) (*routing.TourResponse, error) {
	start := time.Now()
	response, err := c.inner.OptimizeTour(ctx, request)
	c.collector.RecordSolve("tour", time.Since(start).Seconds(), err == nil)
	return response, err
}

func (c *instrumentedRoutingClient) PartitionFleet(ctx context.Context, request *routing.VRPRequest) (*routing.VRPResponse, error) {
	start := time.Now()
	response, err := c.inner.PartitionFleet(ctx, request)
	c.collector.RecordSolve("vrp", time.Since(start).Seconds(), err == nil)
	return response, err
}
