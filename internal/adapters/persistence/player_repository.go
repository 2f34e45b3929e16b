package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// PlayerRepositoryGORM implements player persistence using GORM
type PlayerRepositoryGORM struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewPlayerRepository creates a GORM-based player repository
func NewPlayerRepository(db *gorm.DB, clock shared.Clock) *PlayerRepositoryGORM {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &PlayerRepositoryGORM{db: db, clock: clock}
}

// FindByID retrieves a player by id
func (r *PlayerRepositoryGORM) FindByID(ctx context.Context, playerID int) (*common.Player, error) {
	var model PlayerModel

	err := r.db.WithContext(ctx).Where("id = ?", playerID).First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("player %d: %w", playerID, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}

	return toPlayer(&model), nil
}

// FindByAgentSymbol retrieves a player by agent symbol
func (r *PlayerRepositoryGORM) FindByAgentSymbol(ctx context.Context, agentSymbol string) (*common.Player, error) {
	var model PlayerModel

	err := r.db.WithContext(ctx).Where("agent_symbol = ?", agentSymbol).First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("agent %s: %w", agentSymbol, shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find player by agent symbol: %w", err)
	}

	return toPlayer(&model), nil
}

// Save creates or updates a player record
func (r *PlayerRepositoryGORM) Save(ctx context.Context, player *common.Player) error {
	metadataJSON := ""
	if len(player.Metadata) > 0 {
		data, err := json.Marshal(player.Metadata)
		if err != nil {
			return fmt.Errorf("failed to serialize player metadata: %w", err)
		}
		metadataJSON = string(data)
	}

	now := r.clock.Now()
	model := &PlayerModel{
		ID:          player.ID,
		AgentSymbol: player.AgentSymbol,
		Token:       player.Token,
		CreatedAt:   now,
		LastActive:  &now,
		Metadata:    metadataJSON,
	}

	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return fmt.Errorf("failed to save player: %w", err)
	}
	player.ID = model.ID
	return nil
}

// List retrieves every registered player
func (r *PlayerRepositoryGORM) List(ctx context.Context) ([]*common.Player, error) {
	var models []PlayerModel

	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}

	players := make([]*common.Player, 0, len(models))
	for i := range models {
		players = append(players, toPlayer(&models[i]))
	}
	return players, nil
}

func toPlayer(model *PlayerModel) *common.Player {
	metadata := map[string]interface{}{}
	if model.Metadata != "" {
		_ = json.Unmarshal([]byte(model.Metadata), &metadata)
	}
	return &common.Player{
		ID:          model.ID,
		AgentSymbol: model.AgentSymbol,
		Token:       model.Token,
		Metadata:    metadata,
	}
}
