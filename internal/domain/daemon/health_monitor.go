package daemon

import (
	"context"
	"time"

	"github.com/stellarforge/fleetd/internal/domain/container"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// DefaultHealthCheckInterval is how often the monitor sweeps assignments
const DefaultHealthCheckInterval = 60 * time.Second

// HealthMetrics tracks what the monitor has cleaned up since startup
type HealthMetrics struct {
	ChecksRun           int
	StaleReleased       int
	LastCheckDurationMs int64
}

// LiveContainerSource reports the container IDs currently supervised by a
// live runner. The daemon's container manager is the implementation.
type LiveContainerSource interface {
	LiveContainerIDs() map[string]bool
}

// HealthMonitor periodically sweeps ship assignments and releases any whose
// container is no longer live in memory. A crashed runner goroutine or a
// missed release on an exit path would otherwise leave the ship locked
// forever; the stored status row cannot be trusted for this, because the
// terminal persist itself may be the write that failed.
type HealthMonitor struct {
	checkInterval time.Duration
	live          LiveContainerSource
	assignments   container.ShipAssignmentRepository
	lastCheckTime *time.Time
	metrics       HealthMetrics
	clock         shared.Clock
	logger        Logger
}

// Logger is the minimal logging surface the monitor needs
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// NewHealthMonitor creates a monitor; a zero interval gets the default
func NewHealthMonitor(
	checkInterval time.Duration,
	live LiveContainerSource,
	assignments container.ShipAssignmentRepository,
	clock shared.Clock,
	logger Logger,
) *HealthMonitor {
	if checkInterval <= 0 {
		checkInterval = DefaultHealthCheckInterval
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}

	return &HealthMonitor{
		checkInterval: checkInterval,
		live:          live,
		assignments:   assignments,
		clock:         clock,
		logger:        logger,
	}
}

func (hm *HealthMonitor) CheckInterval() time.Duration { return hm.checkInterval }
func (hm *HealthMonitor) LastCheckTime() *time.Time    { return hm.lastCheckTime }
func (hm *HealthMonitor) Metrics() HealthMetrics       { return hm.metrics }

// Run sweeps on the configured interval until the context is cancelled
func (hm *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(hm.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := hm.RunCheck(ctx); err != nil && hm.logger != nil {
				hm.logger.Warnf("health check failed: %v", err)
			}
		}
	}
}

// RunCheck performs one sweep and returns how many assignments it released
func (hm *HealthMonitor) RunCheck(ctx context.Context) (int, error) {
	start := hm.clock.Now()
	hm.lastCheckTime = &start

	released, err := hm.CleanStaleAssignments(ctx)

	hm.metrics.ChecksRun++
	hm.metrics.StaleReleased += released
	hm.metrics.LastCheckDurationMs = hm.clock.Now().Sub(start).Milliseconds()

	if released > 0 && hm.logger != nil {
		hm.logger.Infof("health monitor released %d stale ship assignment(s)", released)
	}
	return released, err
}

// CleanStaleAssignments releases every active assignment whose container ID
// is absent from the live in-memory set. Assignments held by live containers
// are left alone.
func (hm *HealthMonitor) CleanStaleAssignments(ctx context.Context) (int, error) {
	active, err := hm.assignments.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	liveIDs := hm.live.LiveContainerIDs()

	released := 0
	for _, assignment := range active {
		if liveIDs[assignment.ContainerID] {
			continue
		}

		if err := hm.assignments.Release(ctx, assignment.ShipSymbol, assignment.PlayerID, container.ReleaseReasonStale); err != nil {
			return released, err
		}
		released++
	}
	return released, nil
}
