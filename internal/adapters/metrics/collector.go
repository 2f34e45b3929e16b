package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "fleetd"
	subsystem = "daemon"
)

// Registry is the global Prometheus registry. Nil when metrics are disabled.
var Registry *prometheus.Registry

// InitRegistry initializes the registry. Call once at startup when metrics
// are enabled.
func InitRegistry() {
	Registry = prometheus.NewRegistry()
}

// IsEnabled reports whether metrics collection is on.
func IsEnabled() bool {
	return Registry != nil
}

// ContainerMetricsCollector records workload container lifecycle events.
type ContainerMetricsCollector struct {
	containersRunning  *prometheus.GaugeVec
	containerExits     *prometheus.CounterVec
	containerIteration *prometheus.CounterVec
	containerDuration  *prometheus.HistogramVec
}

func NewContainerMetricsCollector() *ContainerMetricsCollector {
	return &ContainerMetricsCollector{
		containersRunning: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "containers_running",
				Help:      "Number of currently running workload containers by command type",
			},
			[]string{"command_type"},
		),
		containerExits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "container_exits_total",
				Help:      "Total container exits by command type and exit code",
			},
			[]string{"command_type", "exit_code"},
		),
		containerIteration: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "container_iterations_total",
				Help:      "Total workload iterations completed by command type",
			},
			[]string{"command_type"},
		),
		containerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "container_duration_seconds",
				Help:      "Container lifetime from start to exit",
				Buckets:   []float64{1, 10, 60, 300, 900, 3600, 14400, 86400},
			},
			[]string{"command_type"},
		),
	}
}

// Register registers container metrics with the registry. A nil registry
// means metrics are disabled and registration is a no-op.
func (c *ContainerMetricsCollector) Register() error {
	if Registry == nil {
		return nil
	}
	for _, metric := range []prometheus.Collector{
		c.containersRunning,
		c.containerExits,
		c.containerIteration,
		c.containerDuration,
	} {
		if err := Registry.Register(metric); err != nil {
			return err
		}
	}
	return nil
}

func (c *ContainerMetricsCollector) ContainerStarted(commandType string) {
	c.containersRunning.WithLabelValues(commandType).Inc()
}

func (c *ContainerMetricsCollector) ContainerExited(commandType string, exitCode int, durationSeconds float64) {
	c.containersRunning.WithLabelValues(commandType).Dec()
	c.containerExits.WithLabelValues(commandType, strconv.Itoa(exitCode)).Inc()
	c.containerDuration.WithLabelValues(commandType).Observe(durationSeconds)
}

func (c *ContainerMetricsCollector) IterationCompleted(commandType string) {
	c.containerIteration.WithLabelValues(commandType).Inc()
}

// CommandMetricsCollector records mediator command and query execution.
type CommandMetricsCollector struct {
	commandDuration *prometheus.HistogramVec
	commandsTotal   *prometheus.CounterVec
}

func NewCommandMetricsCollector() *CommandMetricsCollector {
	return &CommandMetricsCollector{
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "command_duration_seconds",
				Help:      "Command execution duration distribution",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.0, 3.0, 5.0, 10.0, 30.0},
			},
			[]string{"command", "status"},
		),
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "commands_total",
				Help:      "Total number of commands executed by type and status",
			},
			[]string{"command", "status"},
		),
	}
}

func (c *CommandMetricsCollector) Register() error {
	if Registry == nil {
		return nil
	}
	for _, metric := range []prometheus.Collector{c.commandDuration, c.commandsTotal} {
		if err := Registry.Register(metric); err != nil {
			return err
		}
	}
	return nil
}

func (c *CommandMetricsCollector) RecordCommandExecution(commandName string, duration float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.commandDuration.WithLabelValues(commandName, status).Observe(duration)
	c.commandsTotal.WithLabelValues(commandName, status).Inc()
}

// RoutingMetricsCollector records route solver activity.
type RoutingMetricsCollector struct {
	solveDuration *prometheus.HistogramVec
	solvesTotal   *prometheus.CounterVec
}

func NewRoutingMetricsCollector() *RoutingMetricsCollector {
	return &RoutingMetricsCollector{
		solveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "route_solve_duration_seconds",
				Help:      "Route solver duration by solver kind",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
			},
			[]string{"solver"},
		),
		solvesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "route_solves_total",
				Help:      "Total route solves by solver kind and status",
			},
			[]string{"solver", "status"},
		),
	}
}

func (c *RoutingMetricsCollector) Register() error {
	if Registry == nil {
		return nil
	}
	for _, metric := range []prometheus.Collector{c.solveDuration, c.solvesTotal} {
		if err := Registry.Register(metric); err != nil {
			return err
		}
	}
	return nil
}

func (c *RoutingMetricsCollector) RecordSolve(solver string, duration float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.solveDuration.WithLabelValues(solver).Observe(duration)
	c.solvesTotal.WithLabelValues(solver, status).Inc()
}
