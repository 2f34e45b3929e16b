package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// MarketRepositoryGORM stores market observations collected by scouts, one
// row per (waypoint, good, player). A new observation overwrites the old row
// so queries always see the freshest prices.
type MarketRepositoryGORM struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewMarketRepository creates a GORM-based market repository
func NewMarketRepository(db *gorm.DB, clock shared.Clock) *MarketRepositoryGORM {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &MarketRepositoryGORM{db: db, clock: clock}
}

// SaveObservation upserts every good of one market snapshot
func (r *MarketRepositoryGORM) SaveObservation(ctx context.Context, observation *common.MarketObservation) error {
	if len(observation.TradeGoods) == 0 {
		return nil
	}

	observedAt := observation.ObservedAt
	if observedAt.IsZero() {
		observedAt = r.clock.Now()
	}

	models := make([]MarketGoodModel, 0, len(observation.TradeGoods))
	for _, good := range observation.TradeGoods {
		models = append(models, MarketGoodModel{
			WaypointSymbol: observation.WaypointSymbol,
			GoodSymbol:     good.Symbol,
			PlayerID:       observation.PlayerID,
			SystemSymbol:   observation.SystemSymbol,
			Supply:         good.SupplyLevel,
			Activity:       good.ActivityLevel,
			PurchasePrice:  good.PurchasePrice,
			SellPrice:      good.SellPrice,
			TradeVolume:    good.TradeVolume,
			LastUpdated:    observedAt,
		})
	}

	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "waypoint_symbol"}, {Name: "good_symbol"}, {Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"system_symbol", "supply", "activity", "purchase_price", "sell_price", "trade_volume", "last_updated",
		}),
	}).Create(&models).Error; err != nil {
		return fmt.Errorf("failed to save market observation: %w", err)
	}
	return nil
}

// FindLatest returns the most recent observation for a waypoint, (nil, nil)
// when the market has never been scouted
func (r *MarketRepositoryGORM) FindLatest(ctx context.Context, waypointSymbol string, playerID int) (*common.MarketObservation, error) {
	var models []MarketGoodModel

	err := r.db.WithContext(ctx).
		Where("waypoint_symbol = ? AND player_id = ?", waypointSymbol, playerID).
		Order("good_symbol").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find market observation: %w", err)
	}
	if len(models) == 0 {
		return nil, nil
	}

	return toObservation(waypointSymbol, playerID, models), nil
}

// ListBySystem returns the latest observation of every scouted market in a
// system
func (r *MarketRepositoryGORM) ListBySystem(ctx context.Context, systemSymbol string, playerID int) ([]*common.MarketObservation, error) {
	var models []MarketGoodModel

	err := r.db.WithContext(ctx).
		Where("system_symbol = ? AND player_id = ?", systemSymbol, playerID).
		Order("waypoint_symbol, good_symbol").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list market observations: %w", err)
	}

	byWaypoint := map[string][]MarketGoodModel{}
	order := []string{}
	for _, model := range models {
		if _, seen := byWaypoint[model.WaypointSymbol]; !seen {
			order = append(order, model.WaypointSymbol)
		}
		byWaypoint[model.WaypointSymbol] = append(byWaypoint[model.WaypointSymbol], model)
	}

	observations := make([]*common.MarketObservation, 0, len(order))
	for _, waypoint := range order {
		observations = append(observations, toObservation(waypoint, playerID, byWaypoint[waypoint]))
	}
	return observations, nil
}

func toObservation(waypointSymbol string, playerID int, models []MarketGoodModel) *common.MarketObservation {
	observation := &common.MarketObservation{
		WaypointSymbol: waypointSymbol,
		PlayerID:       playerID,
	}
	for _, model := range models {
		observation.SystemSymbol = model.SystemSymbol
		if model.LastUpdated.After(observation.ObservedAt) {
			observation.ObservedAt = model.LastUpdated
		}
		observation.TradeGoods = append(observation.TradeGoods, common.TradeGoodData{
			Symbol:        model.GoodSymbol,
			SupplyLevel:   model.Supply,
			ActivityLevel: model.Activity,
			PurchasePrice: model.PurchasePrice,
			SellPrice:     model.SellPrice,
			TradeVolume:   model.TradeVolume,
		})
	}
	return observation
}
