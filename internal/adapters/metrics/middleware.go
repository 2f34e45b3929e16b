package metrics

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/stellarforge/fleetd/internal/application/mediator"
)

// PrometheusMiddleware records duration and outcome of every dispatched
// command and query. A nil collector disables recording.
func PrometheusMiddleware(collector *CommandMetricsCollector) mediator.Middleware {
	return func(ctx context.Context, request mediator.Request, next mediator.HandlerFunc) (mediator.Response, error) {
		if collector == nil {
			return next(ctx, request)
		}

		commandName := extractCommandName(request)
		start := time.Now()
		response, err := next(ctx, request)
		collector.RecordCommandExecution(commandName, time.Since(start).Seconds(), err == nil)
		return response, err
	}
}

// extractCommandName turns "*commands.NavigateRouteCommand" into
// "NavigateRouteCommand".
func extractCommandName(request mediator.Request) string {
	if request == nil {
		return "UnknownCommand"
	}
	fullName := strings.TrimPrefix(reflect.TypeOf(request).String(), "*")
	parts := strings.Split(fullName, ".")
	return parts[len(parts)-1]
}
