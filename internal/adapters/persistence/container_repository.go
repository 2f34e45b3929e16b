package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/stellarforge/fleetd/internal/domain/container"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// ContainerRepositoryGORM implements container persistence using GORM
type ContainerRepositoryGORM struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewContainerRepository creates a GORM-based container repository
func NewContainerRepository(db *gorm.DB, clock shared.Clock) *ContainerRepositoryGORM {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &ContainerRepositoryGORM{db: db, clock: clock}
}

// Insert creates the container record
func (r *ContainerRepositoryGORM) Insert(ctx context.Context, c *container.Container) error {
	configJSON, err := json.Marshal(c.Config())
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	commandType, _ := c.Config()["command_type"].(string)

	model := &ContainerModel{
		ID:            c.ID(),
		PlayerID:      c.PlayerID(),
		ContainerType: string(c.Type()),
		CommandType:   commandType,
		Status:        string(c.Status()),
		RestartPolicy: string(c.RestartPolicy()),
		RestartCount:  c.RestartCount(),
		MaxIterations: c.MaxIterations(),
		Config:        string(configJSON),
		CreatedAt:     c.CreatedAt(),
		StartedAt:     c.StartedAt(),
		StoppedAt:     c.StoppedAt(),
		ExitCode:      c.ExitCode(),
		ExitReason:    c.ExitReason(),
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to insert container: %w", err)
	}
	return nil
}

// UpdateStatus advances a container's stored status. Transitions out of a
// terminal status are refused, and recording an exit code requires a
// terminal status with a stop timestamp.
func (r *ContainerRepositoryGORM) UpdateStatus(
	ctx context.Context,
	containerID string,
	playerID int,
	status container.ContainerStatus,
	stoppedAt *time.Time,
	exitCode *int,
	exitReason string,
) error {
	if exitCode != nil && (!status.IsTerminal() || stoppedAt == nil) {
		return fmt.Errorf("%w: exit code requires a terminal status and stop time", shared.ErrInvalidTransition)
	}

	updates := map[string]interface{}{
		"status": string(status),
	}
	if status == container.ContainerStatusRunning {
		now := r.clock.Now()
		updates["started_at"] = &now
	}
	if stoppedAt != nil {
		updates["stopped_at"] = stoppedAt
		updates["exit_code"] = exitCode
		updates["exit_reason"] = container.TruncateReason(exitReason)
	}

	result := r.db.WithContext(ctx).
		Model(&ContainerModel{}).
		Where("id = ? AND player_id = ? AND status NOT IN ?", containerID, playerID,
			[]string{string(container.ContainerStatusStopped), string(container.ContainerStatusFailed)}).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to update container status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		r.db.WithContext(ctx).Model(&ContainerModel{}).
			Where("id = ? AND player_id = ?", containerID, playerID).Count(&count)
		if count == 0 {
			return fmt.Errorf("container %s: %w", containerID, shared.ErrNotFound)
		}
		return fmt.Errorf("container %s is already terminal: %w", containerID, shared.ErrInvalidTransition)
	}
	return nil
}

// Get retrieves a container by id, (nil, nil) when unknown. A playerID of
// zero or less matches any player; container ids are globally unique.
func (r *ContainerRepositoryGORM) Get(ctx context.Context, containerID string, playerID int) (*container.Container, error) {
	var model ContainerModel

	query := r.db.WithContext(ctx).Where("id = ?", containerID)
	if playerID > 0 {
		query = query.Where("player_id = ?", playerID)
	}
	err := query.First(&model).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get container: %w", err)
	}

	return r.toEntity(&model)
}

// List retrieves containers, optionally filtered by player and status
func (r *ContainerRepositoryGORM) List(ctx context.Context, playerID *int, status *container.ContainerStatus) ([]*container.Container, error) {
	var models []*ContainerModel

	query := r.db.WithContext(ctx).Order("created_at")
	if playerID != nil {
		query = query.Where("player_id = ?", *playerID)
	}
	if status != nil {
		query = query.Where("status = ?", string(*status))
	}

	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	containers := make([]*container.Container, 0, len(models))
	for _, model := range models {
		c, err := r.toEntity(model)
		if err != nil {
			return nil, err
		}
		containers = append(containers, c)
	}
	return containers, nil
}

// Delete removes a container row. Live containers cannot be deleted.
func (r *ContainerRepositoryGORM) Delete(ctx context.Context, containerID string, playerID int) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND player_id = ? AND status IN ?", containerID, playerID,
			[]string{string(container.ContainerStatusStopped), string(container.ContainerStatusFailed)}).
		Delete(&ContainerModel{})

	if result.Error != nil {
		return fmt.Errorf("failed to delete container: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("container %s is not terminal or does not exist: %w", containerID, shared.ErrConflict)
	}
	return nil
}

func (r *ContainerRepositoryGORM) toEntity(model *ContainerModel) (*container.Container, error) {
	// A corrupt config row must not make the whole container unreadable;
	// recovery marks such containers FAILED with reason invalid_config when
	// it cannot rebuild their command.
	config := map[string]interface{}{}
	if model.Config != "" {
		if err := json.Unmarshal([]byte(model.Config), &config); err != nil {
			config = map[string]interface{}{}
		}
	}

	return container.RecoverContainer(
		model.ID,
		container.ContainerType(model.ContainerType),
		model.PlayerID,
		config,
		container.RestartPolicy(model.RestartPolicy),
		model.MaxIterations,
		container.ContainerStatus(model.Status),
		model.CreatedAt,
		model.StartedAt,
		model.StoppedAt,
		model.ExitCode,
		model.ExitReason,
		model.RestartCount,
		r.clock,
	), nil
}
