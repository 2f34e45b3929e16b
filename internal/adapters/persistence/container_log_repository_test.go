package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarforge/fleetd/internal/adapters/persistence"
	"github.com/stellarforge/fleetd/internal/domain/container"
	"github.com/stellarforge/fleetd/internal/domain/shared"
	"github.com/stellarforge/fleetd/internal/infrastructure/database"
)

func newLogRepo(t *testing.T) (*persistence.ContainerLogRepositoryGORM, *shared.MockClock) {
	t.Helper()
	db, err := database.NewTestConnection()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	clock := shared.NewMockClock(time.Date(2026, 5, 3, 10, 0, 0, 0, time.UTC))
	return persistence.NewContainerLogRepository(db, clock), clock
}

func TestContainerLogs_AppendAndRead(t *testing.T) {
	repo, clock := newLogRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "c1", 1, "INFO", "tour started", clock.Now()))
	clock.Advance(time.Minute)
	require.NoError(t, repo.Append(ctx, "c1", 1, "ERROR", "navigation failed", clock.Now()))
	require.NoError(t, repo.Append(ctx, "c2", 1, "INFO", "other container", clock.Now()))

	entries, err := repo.Read(ctx, "c1", container.LogFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "tour started", entries[0].Message)
	assert.Equal(t, "navigation failed", entries[1].Message)
}

func TestContainerLogs_DeduplicatesWithinWindow(t *testing.T) {
	repo, clock := newLogRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "c1", 1, "INFO", "waiting for arrival", clock.Now()))

	// Same message 30s later is swallowed
	clock.Advance(30 * time.Second)
	require.NoError(t, repo.Append(ctx, "c1", 1, "INFO", "waiting for arrival", clock.Now()))

	entries, err := repo.Read(ctx, "c1", container.LogFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Past the window it logs again
	clock.Advance(61 * time.Second)
	require.NoError(t, repo.Append(ctx, "c1", 1, "INFO", "waiting for arrival", clock.Now()))

	entries, err = repo.Read(ctx, "c1", container.LogFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestContainerLogs_DedupIsPerContainer(t *testing.T) {
	repo, clock := newLogRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "c1", 1, "INFO", "same line", clock.Now()))
	require.NoError(t, repo.Append(ctx, "c2", 1, "INFO", "same line", clock.Now()))

	c1, _ := repo.Read(ctx, "c1", container.LogFilter{})
	c2, _ := repo.Read(ctx, "c2", container.LogFilter{})
	assert.Len(t, c1, 1)
	assert.Len(t, c2, 1)
}

func TestContainerLogs_Filtering(t *testing.T) {
	repo, clock := newLogRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "c1", 1, "INFO", "one", clock.Now()))
	clock.Advance(time.Minute)
	cutoff := clock.Now()
	require.NoError(t, repo.Append(ctx, "c1", 1, "ERROR", "two", clock.Now()))
	clock.Advance(time.Minute)
	require.NoError(t, repo.Append(ctx, "c1", 1, "INFO", "three", clock.Now()))

	errorsOnly, err := repo.Read(ctx, "c1", container.LogFilter{Level: "ERROR"})
	require.NoError(t, err)
	require.Len(t, errorsOnly, 1)
	assert.Equal(t, "two", errorsOnly[0].Message)

	since, err := repo.Read(ctx, "c1", container.LogFilter{Since: &cutoff})
	require.NoError(t, err)
	assert.Len(t, since, 2)

	limited, err := repo.Read(ctx, "c1", container.LogFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "one", limited[0].Message)
}

func TestContainerLogs_DeleteByContainer(t *testing.T) {
	repo, clock := newLogRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "c1", 1, "INFO", "line", clock.Now()))
	require.NoError(t, repo.DeleteByContainer(ctx, "c1"))

	entries, err := repo.Read(ctx, "c1", container.LogFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
