package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stellarforge/fleetd/internal/domain/container"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// ShipAssignmentRepositoryGORM implements the ship assignment registry on
// GORM. The (ship_symbol, player_id) primary key makes the active lock a
// single row; acquire and move run inside transactions so two containers can
// never hold the same ship.
type ShipAssignmentRepositoryGORM struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewShipAssignmentRepository creates a GORM-based ship assignment repository
func NewShipAssignmentRepository(db *gorm.DB, clock shared.Clock) *ShipAssignmentRepositoryGORM {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &ShipAssignmentRepositoryGORM{db: db, clock: clock}
}

// Assign acquires the ship for a container. Returns false without error when
// the ship is already actively held. The idle-or-absent check and the upsert
// run in one transaction.
func (r *ShipAssignmentRepositoryGORM) Assign(
	ctx context.Context,
	shipSymbol string,
	playerID int,
	containerID, operation string,
) (bool, error) {
	acquired := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing ShipAssignmentModel
		err := tx.Where("ship_symbol = ? AND player_id = ?", shipSymbol, playerID).
			First(&existing).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return fmt.Errorf("failed to check existing assignment: %w", err)
		}
		if err == nil && existing.Status == string(container.AssignmentStatusActive) {
			return nil // held by someone else, acquired stays false
		}

		now := r.clock.Now()
		model := &ShipAssignmentModel{
			ShipSymbol:  shipSymbol,
			PlayerID:    playerID,
			ContainerID: containerID,
			Operation:   operation,
			Status:      string(container.AssignmentStatusActive),
			AssignedAt:  &now,
		}

		// Upsert so ships with old idle rows can be re-acquired in place
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "ship_symbol"}, {Name: "player_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"container_id", "operation", "status", "assigned_at", "released_at", "release_reason",
			}),
		}).Create(model).Error; err != nil {
			return fmt.Errorf("failed to assign ship: %w", err)
		}

		acquired = true
		return nil
	})

	return acquired, err
}

// Reassign moves the assignment from oldContainerID to newContainerID,
// re-activating an idle row in place and clearing its release bookkeeping.
// Fails when the row names a different container, so a concurrent steal by
// another workload cannot be silently overwritten.
func (r *ShipAssignmentRepositoryGORM) Reassign(
	ctx context.Context,
	shipSymbol string,
	playerID int,
	oldContainerID, newContainerID string,
) error {
	now := r.clock.Now()

	result := r.db.WithContext(ctx).
		Model(&ShipAssignmentModel{}).
		Where("ship_symbol = ? AND player_id = ? AND container_id = ?",
			shipSymbol, playerID, oldContainerID).
		Updates(map[string]interface{}{
			"container_id":   newContainerID,
			"status":         string(container.AssignmentStatusActive),
			"assigned_at":    now,
			"released_at":    nil,
			"release_reason": "",
		})

	if result.Error != nil {
		return fmt.Errorf("failed to reassign ship: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("ship %s is not held by %s: %w", shipSymbol, oldContainerID, shared.ErrConflict)
	}
	return nil
}

// Release idles the assignment with a reason; releasing an absent or idle
// assignment is a no-op
func (r *ShipAssignmentRepositoryGORM) Release(ctx context.Context, shipSymbol string, playerID int, reason string) error {
	now := r.clock.Now()

	result := r.db.WithContext(ctx).
		Model(&ShipAssignmentModel{}).
		Where("ship_symbol = ? AND player_id = ? AND status = ?",
			shipSymbol, playerID, string(container.AssignmentStatusActive)).
		Updates(map[string]interface{}{
			"status":         string(container.AssignmentStatusIdle),
			"released_at":    now,
			"release_reason": reason,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to release ship assignment: %w", result.Error)
	}
	return nil
}

// CheckAvailable reports whether the ship has no active assignment
func (r *ShipAssignmentRepositoryGORM) CheckAvailable(ctx context.Context, shipSymbol string, playerID int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ShipAssignmentModel{}).
		Where("ship_symbol = ? AND player_id = ? AND status = ?",
			shipSymbol, playerID, string(container.AssignmentStatusActive)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check ship availability: %w", err)
	}
	return count == 0, nil
}

// GetInfo returns the assignment row, (nil, nil) when absent
func (r *ShipAssignmentRepositoryGORM) GetInfo(ctx context.Context, shipSymbol string, playerID int) (*container.ShipAssignment, error) {
	var model ShipAssignmentModel

	err := r.db.WithContext(ctx).
		Where("ship_symbol = ? AND player_id = ?", shipSymbol, playerID).
		First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ship assignment: %w", err)
	}

	return toAssignment(&model), nil
}

// ListActive returns every active assignment across all players
func (r *ShipAssignmentRepositoryGORM) ListActive(ctx context.Context) ([]*container.ShipAssignment, error) {
	var models []ShipAssignmentModel

	err := r.db.WithContext(ctx).
		Where("status = ?", string(container.AssignmentStatusActive)).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active assignments: %w", err)
	}

	assignments := make([]*container.ShipAssignment, 0, len(models))
	for i := range models {
		assignments = append(assignments, toAssignment(&models[i]))
	}
	return assignments, nil
}

// ReleaseByContainer idles every active assignment held by a container
func (r *ShipAssignmentRepositoryGORM) ReleaseByContainer(ctx context.Context, containerID string, reason string) error {
	now := r.clock.Now()

	result := r.db.WithContext(ctx).
		Model(&ShipAssignmentModel{}).
		Where("container_id = ? AND status = ?", containerID, string(container.AssignmentStatusActive)).
		Updates(map[string]interface{}{
			"status":         string(container.AssignmentStatusIdle),
			"released_at":    now,
			"release_reason": reason,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to release container assignments: %w", result.Error)
	}
	return nil
}

// ReleaseAllActive idles every active assignment, returning how many were
// released. Runs once at daemon startup before recovery.
func (r *ShipAssignmentRepositoryGORM) ReleaseAllActive(ctx context.Context, reason string) (int64, error) {
	now := r.clock.Now()

	result := r.db.WithContext(ctx).
		Model(&ShipAssignmentModel{}).
		Where("status = ?", string(container.AssignmentStatusActive)).
		Updates(map[string]interface{}{
			"status":         string(container.AssignmentStatusIdle),
			"released_at":    now,
			"release_reason": reason,
		})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to release active assignments: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func toAssignment(model *ShipAssignmentModel) *container.ShipAssignment {
	a := &container.ShipAssignment{
		ShipSymbol:    model.ShipSymbol,
		PlayerID:      model.PlayerID,
		ContainerID:   model.ContainerID,
		Operation:     model.Operation,
		Status:        container.AssignmentStatus(model.Status),
		ReleasedAt:    model.ReleasedAt,
		ReleaseReason: model.ReleaseReason,
	}
	if model.AssignedAt != nil {
		a.AssignedAt = *model.AssignedAt
	}
	return a
}
