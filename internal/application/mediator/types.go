package mediator

import (
	"context"
)

// Request represents a command or query
type Request interface{}

// Response represents the result of handling a request
type Response interface{}

// RequestHandler handles a specific request type
type RequestHandler interface {
	Handle(ctx context.Context, request Request) (Response, error)
}

// HandlerFunc is a function that handles a request
type HandlerFunc func(ctx context.Context, request Request) (Response, error)

// Handle implements RequestHandler so plain functions can be registered
func (f HandlerFunc) Handle(ctx context.Context, request Request) (Response, error) {
	return f(ctx, request)
}

// Middleware wraps handler execution with cross-cutting concerns
// Examples: authentication, logging, validation, metrics
type Middleware func(ctx context.Context, request Request, next HandlerFunc) (Response, error)

// Sender dispatches requests. Handlers that send follow-up commands depend
// on this instead of the concrete Mediator.
type Sender interface {
	Send(ctx context.Context, request Request) (Response, error)
}
