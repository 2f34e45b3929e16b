package auth

import (
	"context"
	"fmt"
	"reflect"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/mediator"
)

// Context keys for passing authentication data through context
type authContextKey int

const (
	playerTokenKey authContextKey = iota + 1000 // offset from logger keys
)

// WithPlayerToken injects a player API token into the context
func WithPlayerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, playerTokenKey, token)
}

// PlayerTokenFromContext extracts the player API token from context.
// Returns an error when no token was injected.
func PlayerTokenFromContext(ctx context.Context) (string, error) {
	token, ok := ctx.Value(playerTokenKey).(string)
	if !ok || token == "" {
		return "", fmt.Errorf("player token not found in context")
	}
	return token, nil
}

// PlayerTokenMiddleware resolves the player referenced by a request and
// injects that player's API token into the context. Requests expose a
// PlayerID int field or an AgentSymbol string field; requests with neither
// pass through untouched.
func PlayerTokenMiddleware(playerRepo common.PlayerRepository) mediator.Middleware {
	return func(ctx context.Context, request mediator.Request, next mediator.HandlerFunc) (mediator.Response, error) {
		playerID, agentSymbol := extractPlayerIdentifier(request)

		var player *common.Player
		var err error

		if playerID > 0 {
			player, err = playerRepo.FindByID(ctx, playerID)
			if err != nil {
				return nil, fmt.Errorf("failed to find player %d: %w", playerID, err)
			}
		} else if agentSymbol != "" {
			player, err = playerRepo.FindByAgentSymbol(ctx, agentSymbol)
			if err != nil {
				return nil, fmt.Errorf("failed to find player by agent symbol %s: %w", agentSymbol, err)
			}
		}

		if player != nil {
			ctx = WithPlayerToken(ctx, player.Token)
		}

		return next(ctx, request)
	}
}

// extractPlayerIdentifier pulls player identification off a request struct
// by field name
func extractPlayerIdentifier(request mediator.Request) (int, string) {
	var playerID int
	var agentSymbol string

	requestValue := reflect.ValueOf(request)
	if requestValue.Kind() == reflect.Ptr {
		if requestValue.IsNil() {
			return 0, ""
		}
		requestValue = requestValue.Elem()
	}
	if requestValue.Kind() != reflect.Struct {
		return 0, ""
	}

	if field := requestValue.FieldByName("PlayerID"); field.IsValid() && field.Kind() == reflect.Int {
		playerID = int(field.Int())
	}
	if field := requestValue.FieldByName("AgentSymbol"); field.IsValid() && field.Kind() == reflect.String {
		agentSymbol = field.String()
	}

	return playerID, agentSymbol
}
