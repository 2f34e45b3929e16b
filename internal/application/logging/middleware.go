package logging

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/phuslu/log"

	"github.com/stellarforge/fleetd/internal/application/mediator"
)

// RequestLoggingMiddleware logs every request passing through the mediator
// with its type, duration and outcome. Registered first so it observes the
// full chain, validation included.
func RequestLoggingMiddleware(logger *log.Logger) mediator.Middleware {
	return func(ctx context.Context, request mediator.Request, next mediator.HandlerFunc) (mediator.Response, error) {
		name := requestName(request)
		start := time.Now()

		response, err := next(ctx, request)
		elapsed := time.Since(start)

		if err != nil {
			logger.Warn().
				Str("request", name).
				Dur("duration", elapsed).
				Err(err).
				Msg("request failed")
			LoggerFromContext(ctx).Log("error", fmt.Sprintf("%s failed: %v", name, err), nil)
			return response, err
		}

		logger.Debug().
			Str("request", name).
			Dur("duration", elapsed).
			Msg("request handled")
		return response, nil
	}
}

func requestName(request mediator.Request) string {
	t := reflect.TypeOf(request)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
