package scouting

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/application/mediator"
	appship "github.com/stellarforge/fleetd/internal/application/ship"
	"github.com/stellarforge/fleetd/internal/domain/navigation"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// --- fakes shared by the scouting tests ---

type fakeScoutShipRepo struct {
	ships map[string]*navigation.Ship
}

func (r *fakeScoutShipRepo) FindBySymbol(ctx context.Context, symbol string, playerID int) (*navigation.Ship, error) {
	s, ok := r.ships[symbol]
	if !ok {
		return nil, fmt.Errorf("ship %s not found", symbol)
	}
	return s, nil
}

func (r *fakeScoutShipRepo) FindAllByPlayer(ctx context.Context, playerID int) ([]*navigation.Ship, error) {
	out := []*navigation.Ship{}
	for _, s := range r.ships {
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeScoutShipRepo) Navigate(ctx context.Context, ship *navigation.Ship, destination *shared.Waypoint, playerID int) (*common.NavigationResult, error) {
	return nil, fmt.Errorf("not used")
}

func (r *fakeScoutShipRepo) Dock(ctx context.Context, ship *navigation.Ship, playerID int) error {
	return nil
}

func (r *fakeScoutShipRepo) Orbit(ctx context.Context, ship *navigation.Ship, playerID int) error {
	return nil
}

func (r *fakeScoutShipRepo) Refuel(ctx context.Context, ship *navigation.Ship, playerID int, units *int) (*common.RefuelResult, error) {
	return &common.RefuelResult{}, nil
}

func (r *fakeScoutShipRepo) SetFlightMode(ctx context.Context, ship *navigation.Ship, playerID int, mode string) error {
	return nil
}

// recordingSender records every request sent through the mediator and
// answers with empty responses.
type recordingSender struct {
	mu       sync.Mutex
	requests []mediator.Request
}

func (s *recordingSender) Send(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, request)
	switch request.(type) {
	case *appship.NavigateRouteCommand:
		return &appship.NavigateRouteResponse{Status: "arrived"}, nil
	case *appship.DockShipCommand:
		return &appship.DockShipResponse{Status: "docked"}, nil
	}
	return nil, fmt.Errorf("unexpected request %T", request)
}

// describe flattens the recorded requests into readable steps
func (s *recordingSender) describe() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []string{}
	for _, req := range s.requests {
		switch r := req.(type) {
		case *appship.NavigateRouteCommand:
			out = append(out, "navigate:"+r.Destination)
		case *appship.DockShipCommand:
			out = append(out, "dock")
		}
	}
	return out
}

type fakeMarketAPI struct {
	common.APIClient
	markets map[string]*common.MarketData
	errors  map[string]error
	calls   int
}

func (a *fakeMarketAPI) GetMarket(ctx context.Context, systemSymbol, waypointSymbol, token string) (*common.MarketData, error) {
	a.calls++
	if err, ok := a.errors[waypointSymbol]; ok {
		return nil, err
	}
	if market, ok := a.markets[waypointSymbol]; ok {
		return market, nil
	}
	return &common.MarketData{WaypointSymbol: waypointSymbol}, nil
}

type fakeScoutPlayerRepo struct{}

func (r *fakeScoutPlayerRepo) FindByID(ctx context.Context, playerID int) (*common.Player, error) {
	return &common.Player{ID: playerID, AgentSymbol: "SCOUT-AGENT", Token: "test-token"}, nil
}

func (r *fakeScoutPlayerRepo) FindByAgentSymbol(ctx context.Context, agentSymbol string) (*common.Player, error) {
	return &common.Player{ID: 1, AgentSymbol: agentSymbol, Token: "test-token"}, nil
}

func (r *fakeScoutPlayerRepo) Save(ctx context.Context, player *common.Player) error { return nil }

func (r *fakeScoutPlayerRepo) List(ctx context.Context) ([]*common.Player, error) { return nil, nil }

type fakeMarketRepo struct {
	mu           sync.Mutex
	observations []*common.MarketObservation
}

func (r *fakeMarketRepo) SaveObservation(ctx context.Context, observation *common.MarketObservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observations = append(r.observations, observation)
	return nil
}

func (r *fakeMarketRepo) FindLatest(ctx context.Context, waypointSymbol string, playerID int) (*common.MarketObservation, error) {
	return nil, nil
}

func (r *fakeMarketRepo) ListBySystem(ctx context.Context, systemSymbol string, playerID int) ([]*common.MarketObservation, error) {
	return nil, nil
}

// blockingClock never finishes a sleep until released. It stands in for a
// scout parked mid-interval when the container is cancelled.
type blockingClock struct {
	release chan struct{}
}

func (c *blockingClock) Now() time.Time        { return time.Now() }
func (c *blockingClock) Sleep(d time.Duration) { <-c.release }

func shipAt(t *testing.T, symbol, waypointSymbol string) *navigation.Ship {
	t.Helper()
	waypoint, err := shared.NewWaypoint(waypointSymbol, 0, 0)
	require.NoError(t, err)
	fuel, err := shared.NewFuel(400, 400)
	require.NoError(t, err)
	ship, err := navigation.NewShip(symbol, 1, waypoint, fuel, 30, "FRAME_PROBE", "SATELLITE", navigation.NavStatusInOrbit, "CRUISE")
	require.NoError(t, err)
	return ship
}

func marketWithGoods(waypointSymbol string) *common.MarketData {
	return &common.MarketData{
		WaypointSymbol: waypointSymbol,
		TradeGoods: []common.TradeGoodData{
			{Symbol: "FUEL", SupplyLevel: "ABUNDANT", PurchasePrice: 72, SellPrice: 68, TradeVolume: 100},
		},
	}
}

func newTourFixture(t *testing.T, ship *navigation.Ship, markets map[string]*common.MarketData) (*ScoutTourHandler, *recordingSender, *fakeMarketRepo) {
	t.Helper()
	shipRepo := &fakeScoutShipRepo{ships: map[string]*navigation.Ship{ship.ShipSymbol(): ship}}
	sender := &recordingSender{}
	marketRepo := &fakeMarketRepo{}
	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	scanner := NewMarketScanner(&fakeMarketAPI{markets: markets}, &fakeScoutPlayerRepo{}, marketRepo, clock)
	handler := NewScoutTourHandler(shipRepo, sender, scanner, clock)
	return handler, sender, marketRepo
}

// --- tests ---

func TestRotateTourToStart(t *testing.T) {
	tests := []struct {
		name     string
		markets  []string
		position string
		want     []string
	}{
		{"ship mid tour", []string{"A", "B", "C", "D"}, "C", []string{"C", "D", "A", "B"}},
		{"ship at tour start", []string{"A", "B", "C"}, "A", []string{"A", "B", "C"}},
		{"ship off the tour", []string{"A", "B", "C"}, "Z", []string{"A", "B", "C"}},
		{"ship at last market", []string{"A", "B", "C"}, "C", []string{"C", "A", "B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rotateTourToStart(tt.markets, tt.position))
		})
	}
}

func TestScoutTourVisitsEachMarketAndReturnsToStart(t *testing.T) {
	ship := shipAt(t, "AGENT-SCOUT-1", "X1-TEST-HOME")
	markets := map[string]*common.MarketData{
		"X1-TEST-B2": marketWithGoods("X1-TEST-B2"),
		"X1-TEST-C3": marketWithGoods("X1-TEST-C3"),
	}
	handler, sender, marketRepo := newTourFixture(t, ship, markets)

	response, err := handler.Handle(context.Background(), &ScoutTourCommand{
		PlayerID:   1,
		ShipSymbol: "AGENT-SCOUT-1",
		Markets:    []string{"X1-TEST-B2", "X1-TEST-C3"},
		Iterations: 1,
	})
	require.NoError(t, err)

	tour := response.(*ScoutTourResponse)
	assert.Equal(t, 2, tour.MarketsVisited)
	assert.Equal(t, 1, tour.Iterations)
	assert.Equal(t, []string{
		"navigate:X1-TEST-B2", "dock",
		"navigate:X1-TEST-C3", "dock",
		"navigate:X1-TEST-B2",
	}, sender.describe())
	assert.Len(t, marketRepo.observations, 2)
}

func TestScoutTourRotatesToShipPosition(t *testing.T) {
	ship := shipAt(t, "AGENT-SCOUT-1", "X1-TEST-C3")
	markets := map[string]*common.MarketData{
		"X1-TEST-B2": marketWithGoods("X1-TEST-B2"),
		"X1-TEST-C3": marketWithGoods("X1-TEST-C3"),
		"X1-TEST-D4": marketWithGoods("X1-TEST-D4"),
	}
	handler, _, _ := newTourFixture(t, ship, markets)

	response, err := handler.Handle(context.Background(), &ScoutTourCommand{
		PlayerID:   1,
		ShipSymbol: "AGENT-SCOUT-1",
		Markets:    []string{"X1-TEST-B2", "X1-TEST-C3", "X1-TEST-D4"},
		Iterations: 1,
	})
	require.NoError(t, err)

	tour := response.(*ScoutTourResponse)
	assert.Equal(t, []string{"X1-TEST-C3", "X1-TEST-D4", "X1-TEST-B2"}, tour.TourOrder)
}

func TestScoutTourContinuesPastFailedScan(t *testing.T) {
	ship := shipAt(t, "AGENT-SCOUT-1", "X1-TEST-HOME")
	shipRepo := &fakeScoutShipRepo{ships: map[string]*navigation.Ship{"AGENT-SCOUT-1": ship}}
	sender := &recordingSender{}
	marketRepo := &fakeMarketRepo{}
	clock := shared.NewMockClock(time.Time{})
	api := &fakeMarketAPI{
		markets: map[string]*common.MarketData{"X1-TEST-C3": marketWithGoods("X1-TEST-C3")},
		errors:  map[string]error{"X1-TEST-B2": fmt.Errorf("market unreachable")},
	}
	scanner := NewMarketScanner(api, &fakeScoutPlayerRepo{}, marketRepo, clock)
	handler := NewScoutTourHandler(shipRepo, sender, scanner, clock)

	response, err := handler.Handle(context.Background(), &ScoutTourCommand{
		PlayerID:   1,
		ShipSymbol: "AGENT-SCOUT-1",
		Markets:    []string{"X1-TEST-B2", "X1-TEST-C3"},
		Iterations: 1,
	})
	require.NoError(t, err)

	tour := response.(*ScoutTourResponse)
	assert.Equal(t, 1, tour.MarketsVisited)
	assert.Len(t, marketRepo.observations, 1)
	assert.Equal(t, "X1-TEST-C3", marketRepo.observations[0].WaypointSymbol)
}

func TestStationaryScoutRescansOnInterval(t *testing.T) {
	ship := shipAt(t, "AGENT-SCOUT-1", "X1-TEST-B2")
	markets := map[string]*common.MarketData{"X1-TEST-B2": marketWithGoods("X1-TEST-B2")}
	handler, sender, marketRepo := newTourFixture(t, ship, markets)

	response, err := handler.Handle(context.Background(), &ScoutTourCommand{
		PlayerID:   1,
		ShipSymbol: "AGENT-SCOUT-1",
		Markets:    []string{"X1-TEST-B2"},
		Iterations: 3,
	})
	require.NoError(t, err)

	tour := response.(*ScoutTourResponse)
	assert.Equal(t, 3, tour.MarketsVisited)
	assert.Equal(t, 3, tour.Iterations)
	assert.Empty(t, sender.describe(), "ship already at the market, no navigation expected")
	assert.Len(t, marketRepo.observations, 3)
}

func TestStationaryScoutNavigatesToMarketFirst(t *testing.T) {
	ship := shipAt(t, "AGENT-SCOUT-1", "X1-TEST-HOME")
	markets := map[string]*common.MarketData{"X1-TEST-B2": marketWithGoods("X1-TEST-B2")}
	handler, sender, _ := newTourFixture(t, ship, markets)

	_, err := handler.Handle(context.Background(), &ScoutTourCommand{
		PlayerID:   1,
		ShipSymbol: "AGENT-SCOUT-1",
		Markets:    []string{"X1-TEST-B2"},
		Iterations: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"navigate:X1-TEST-B2", "dock"}, sender.describe())
}

func TestStationaryScoutStopsCleanlyOnCancellation(t *testing.T) {
	ship := shipAt(t, "AGENT-SCOUT-1", "X1-TEST-B2")
	shipRepo := &fakeScoutShipRepo{ships: map[string]*navigation.Ship{"AGENT-SCOUT-1": ship}}
	marketRepo := &fakeMarketRepo{}
	clock := &blockingClock{release: make(chan struct{})}
	defer close(clock.release)

	api := &fakeMarketAPI{markets: map[string]*common.MarketData{"X1-TEST-B2": marketWithGoods("X1-TEST-B2")}}
	scanner := NewMarketScanner(api, &fakeScoutPlayerRepo{}, marketRepo, clock)
	handler := NewScoutTourHandler(shipRepo, &recordingSender{}, scanner, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	response, err := handler.Handle(ctx, &ScoutTourCommand{
		PlayerID:   1,
		ShipSymbol: "AGENT-SCOUT-1",
		Markets:    []string{"X1-TEST-B2"},
		Iterations: -1,
	})
	require.NoError(t, err, "cancellation ends an endless tour without error")

	tour := response.(*ScoutTourResponse)
	assert.Equal(t, 1, tour.MarketsVisited, "only the initial scan before the first sleep")
}

func TestMultiMarketTourReturnsContextError(t *testing.T) {
	ship := shipAt(t, "AGENT-SCOUT-1", "X1-TEST-HOME")
	handler, _, _ := newTourFixture(t, ship, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := handler.Handle(ctx, &ScoutTourCommand{
		PlayerID:   1,
		ShipSymbol: "AGENT-SCOUT-1",
		Markets:    []string{"X1-TEST-B2", "X1-TEST-C3"},
		Iterations: 5,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMarketScannerSkipsEmptyMarkets(t *testing.T) {
	marketRepo := &fakeMarketRepo{}
	api := &fakeMarketAPI{markets: map[string]*common.MarketData{
		"X1-TEST-B2": {WaypointSymbol: "X1-TEST-B2"},
	}}
	scanner := NewMarketScanner(api, &fakeScoutPlayerRepo{}, marketRepo, shared.NewMockClock(time.Time{}))

	err := scanner.ScanAndSaveMarket(context.Background(), 1, "X1-TEST-B2")
	require.NoError(t, err)
	assert.Empty(t, marketRepo.observations)
}

func TestMarketScannerRecordsObservation(t *testing.T) {
	marketRepo := &fakeMarketRepo{}
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	api := &fakeMarketAPI{markets: map[string]*common.MarketData{
		"X1-TEST-B2": marketWithGoods("X1-TEST-B2"),
	}}
	scanner := NewMarketScanner(api, &fakeScoutPlayerRepo{}, marketRepo, shared.NewMockClock(start))

	err := scanner.ScanAndSaveMarket(context.Background(), 7, "X1-TEST-B2")
	require.NoError(t, err)

	require.Len(t, marketRepo.observations, 1)
	observation := marketRepo.observations[0]
	assert.Equal(t, "X1-TEST-B2", observation.WaypointSymbol)
	assert.Equal(t, "X1-TEST", observation.SystemSymbol)
	assert.Equal(t, 7, observation.PlayerID)
	assert.True(t, observation.ObservedAt.Equal(start))
	assert.Equal(t, "FUEL", observation.TradeGoods[0].Symbol)
}
