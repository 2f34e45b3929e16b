package config

import "time"

// RoutingConfig holds solver budgets for the in-process routing engine
type RoutingConfig struct {
	// Timeout settings per solver
	Timeout RoutingTimeoutConfig `mapstructure:"timeout"`

	// Maximum tour/partition solves running at once
	MaxConcurrentSolves int `mapstructure:"max_concurrent_solves" validate:"min=1"`
}

// RoutingTimeoutConfig holds per-solver wall-clock budgets
type RoutingTimeoutConfig struct {
	// Tour optimization budget
	Tour time.Duration `mapstructure:"tour" validate:"required"`

	// Fleet partitioning budget
	VRP time.Duration `mapstructure:"vrp" validate:"required"`
}
