package scouting

import (
	"context"
	"fmt"
	"strings"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/logging"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// MarketScanner fetches a market listing from the game API and persists it
// as an observation. Trade goods with prices are only visible while one of
// the player's ships is at the waypoint, so scanning happens right after a
// scout arrives.
type MarketScanner struct {
	apiClient  common.APIClient
	playerRepo common.PlayerRepository
	marketRepo common.MarketRepository
	clock      shared.Clock
}

func NewMarketScanner(
	apiClient common.APIClient,
	playerRepo common.PlayerRepository,
	marketRepo common.MarketRepository,
	clock shared.Clock,
) *MarketScanner {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &MarketScanner{
		apiClient:  apiClient,
		playerRepo: playerRepo,
		marketRepo: marketRepo,
		clock:      clock,
	}
}

// ScanAndSaveMarket records the market at waypointSymbol. A market with no
// visible trade goods is skipped, not an error.
func (s *MarketScanner) ScanAndSaveMarket(ctx context.Context, playerID int, waypointSymbol string) error {
	player, err := s.playerRepo.FindByID(ctx, playerID)
	if err != nil {
		return fmt.Errorf("failed to find player: %w", err)
	}

	systemSymbol := systemSymbolOf(waypointSymbol)
	market, err := s.apiClient.GetMarket(ctx, systemSymbol, waypointSymbol, player.Token)
	if err != nil {
		return fmt.Errorf("failed to fetch market %s: %w", waypointSymbol, err)
	}

	if len(market.TradeGoods) == 0 {
		logging.LoggerFromContext(ctx).Log("WARNING", "market has no visible trade goods", map[string]interface{}{
			"waypoint": waypointSymbol,
		})
		return nil
	}

	observation := &common.MarketObservation{
		WaypointSymbol: waypointSymbol,
		SystemSymbol:   systemSymbol,
		PlayerID:       playerID,
		TradeGoods:     market.TradeGoods,
		ObservedAt:     s.clock.Now(),
	}
	if err := s.marketRepo.SaveObservation(ctx, observation); err != nil {
		return fmt.Errorf("failed to save market observation: %w", err)
	}
	return nil
}

// systemSymbolOf derives "X1-ABC" from "X1-ABC-XYZ".
func systemSymbolOf(waypointSymbol string) string {
	parts := strings.Split(waypointSymbol, "-")
	if len(parts) < 3 {
		return waypointSymbol
	}
	return strings.Join(parts[:2], "-")
}
