package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SystemGraphRepositoryGORM caches built system graphs as JSON blobs.
// Building a graph costs a paginated API walk per system, so graphs are
// cached indefinitely and refreshed only on demand.
type SystemGraphRepositoryGORM struct {
	db *gorm.DB
}

// NewSystemGraphRepository creates a GORM-based system graph repository
func NewSystemGraphRepository(db *gorm.DB) *SystemGraphRepositoryGORM {
	return &SystemGraphRepositoryGORM{db: db}
}

// Get retrieves a cached graph, (nil, nil) on cache miss
func (r *SystemGraphRepositoryGORM) Get(ctx context.Context, systemSymbol string) (map[string]interface{}, error) {
	var model SystemGraphModel

	err := r.db.WithContext(ctx).Where("system_symbol = ?", systemSymbol).First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get system graph: %w", err)
	}

	var graph map[string]interface{}
	if err := json.Unmarshal([]byte(model.GraphData), &graph); err != nil {
		return nil, fmt.Errorf("failed to parse cached graph for %s: %w", systemSymbol, err)
	}
	return graph, nil
}

// Save upserts the cached graph for a system
func (r *SystemGraphRepositoryGORM) Save(ctx context.Context, systemSymbol string, graph map[string]interface{}) error {
	data, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("failed to serialize graph for %s: %w", systemSymbol, err)
	}

	model := &SystemGraphModel{
		SystemSymbol: systemSymbol,
		GraphData:    string(data),
	}

	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "system_symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"graph_data", "updated_at"}),
	}).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save system graph: %w", err)
	}
	return nil
}
