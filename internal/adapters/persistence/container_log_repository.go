package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/stellarforge/fleetd/internal/domain/container"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// ContainerLogRepositoryGORM stores per-container log lines with
// time-windowed deduplication. Looping workloads tend to emit the same line
// every iteration; identical messages within the window are dropped so the
// table does not fill with noise.
type ContainerLogRepositoryGORM struct {
	db    *gorm.DB
	clock shared.Clock

	dedupCache   map[string]time.Time // containerID|message -> last logged
	dedupMu      sync.Mutex
	dedupWindow  time.Duration
	dedupMaxSize int
}

// NewContainerLogRepository creates a container log repository
func NewContainerLogRepository(db *gorm.DB, clock shared.Clock) *ContainerLogRepositoryGORM {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &ContainerLogRepositoryGORM{
		db:           db,
		clock:        clock,
		dedupCache:   make(map[string]time.Time),
		dedupWindow:  60 * time.Second,
		dedupMaxSize: 10000,
	}
}

// Append writes a log line, skipping identical messages inside the
// deduplication window
func (r *ContainerLogRepositoryGORM) Append(ctx context.Context, containerID string, playerID int, level, message string, ts time.Time) error {
	now := r.clock.Now()
	cacheKey := containerID + "|" + message

	r.dedupMu.Lock()
	if lastLogged, exists := r.dedupCache[cacheKey]; exists {
		if now.Sub(lastLogged) < r.dedupWindow {
			r.dedupMu.Unlock()
			return nil
		}
	}
	if len(r.dedupCache) >= r.dedupMaxSize {
		r.cleanupDedupCache(now)
	}
	r.dedupCache[cacheKey] = now
	r.dedupMu.Unlock()

	if ts.IsZero() {
		ts = now
	}
	if level == "" {
		level = "INFO"
	}

	model := &ContainerLogModel{
		ContainerID: containerID,
		PlayerID:    playerID,
		Timestamp:   ts,
		Level:       level,
		Message:     message,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to append container log: %w", err)
	}
	return nil
}

// Read retrieves log lines for a container, oldest first
func (r *ContainerLogRepositoryGORM) Read(ctx context.Context, containerID string, filter container.LogFilter) ([]*container.ContainerLogEntry, error) {
	query := r.db.WithContext(ctx).
		Where("container_id = ?", containerID).
		Order("timestamp, id")

	if filter.Since != nil {
		query = query.Where("timestamp >= ?", *filter.Since)
	}
	if filter.Until != nil {
		query = query.Where("timestamp <= ?", *filter.Until)
	}
	if filter.Level != "" {
		query = query.Where("level = ?", filter.Level)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var models []ContainerLogModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to read container logs: %w", err)
	}

	entries := make([]*container.ContainerLogEntry, 0, len(models))
	for _, model := range models {
		entries = append(entries, &container.ContainerLogEntry{
			ContainerID: model.ContainerID,
			PlayerID:    model.PlayerID,
			Timestamp:   model.Timestamp,
			Level:       model.Level,
			Message:     model.Message,
		})
	}
	return entries, nil
}

// DeleteByContainer removes all log lines for a container
func (r *ContainerLogRepositoryGORM) DeleteByContainer(ctx context.Context, containerID string) error {
	if err := r.db.WithContext(ctx).
		Where("container_id = ?", containerID).
		Delete(&ContainerLogModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete container logs: %w", err)
	}
	return nil
}

// cleanupDedupCache drops entries outside the window; caller holds dedupMu
func (r *ContainerLogRepositoryGORM) cleanupDedupCache(now time.Time) {
	for key, lastLogged := range r.dedupCache {
		if now.Sub(lastLogged) >= r.dedupWindow {
			delete(r.dedupCache, key)
		}
	}
}
