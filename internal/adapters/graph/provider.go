package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/phuslu/log"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/domain/system"
)

// Provider loads system graphs cache first. Memory, then database, then a
// full rebuild from the API. Built graphs are written back to the database
// so later daemon runs skip the API walk entirely.
type Provider struct {
	graphRepo    common.SystemGraphRepository
	graphBuilder common.GraphBuilder
	logger       *log.Logger

	mu     sync.Mutex
	memory map[string]*system.SystemGraph
}

var _ common.SystemGraphProvider = (*Provider)(nil)

func NewProvider(graphRepo common.SystemGraphRepository, graphBuilder common.GraphBuilder, logger *log.Logger) *Provider {
	return &Provider{
		graphRepo:    graphRepo,
		graphBuilder: graphBuilder,
		logger:       logger,
		memory:       map[string]*system.SystemGraph{},
	}
}

// GetGraph returns the system graph, reporting where it came from.
// forceRefresh skips both caches and rebuilds from the API.
func (p *Provider) GetGraph(ctx context.Context, systemSymbol string, playerID int, forceRefresh bool) (*common.GraphLoadResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !forceRefresh {
		if graph, ok := p.memory[systemSymbol]; ok {
			return &common.GraphLoadResult{
				Graph:   graph,
				Source:  "database",
				Message: fmt.Sprintf("graph for %s already loaded", systemSymbol),
			}, nil
		}

		graph, err := p.loadFromDatabase(ctx, systemSymbol)
		if err != nil {
			p.logger.Warn().Err(err).Str("system", systemSymbol).Msg("graph cache read failed, rebuilding from API")
		} else if graph != nil {
			p.memory[systemSymbol] = graph
			return &common.GraphLoadResult{
				Graph:   graph,
				Source:  "database",
				Message: fmt.Sprintf("loaded graph for %s from database cache", systemSymbol),
			}, nil
		}
	}

	graph, err := p.buildFromAPI(ctx, systemSymbol, playerID)
	if err != nil {
		return nil, err
	}
	p.memory[systemSymbol] = graph

	return &common.GraphLoadResult{
		Graph:   graph,
		Source:  "api",
		Message: fmt.Sprintf("built graph for %s from API", systemSymbol),
	}, nil
}

func (p *Provider) loadFromDatabase(ctx context.Context, systemSymbol string) (*system.SystemGraph, error) {
	cached, err := p.graphRepo.Get(ctx, systemSymbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	if cached == nil {
		return nil, nil
	}

	graph, err := system.FromCacheFormat(cached)
	if err != nil {
		return nil, fmt.Errorf("corrupt cached graph for %s: %w", systemSymbol, err)
	}
	return graph, nil
}

func (p *Provider) buildFromAPI(ctx context.Context, systemSymbol string, playerID int) (*system.SystemGraph, error) {
	p.logger.Info().Str("system", systemSymbol).Msg("building system graph from API")

	graph, err := p.graphBuilder.BuildSystemGraph(ctx, systemSymbol, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph for %s: %w", systemSymbol, err)
	}

	// Cache write failure is logged, not fatal
	if err := p.graphRepo.Save(ctx, systemSymbol, graph.ToCacheFormat()); err != nil {
		p.logger.Warn().Err(err).Str("system", systemSymbol).Msg("failed to cache system graph")
	} else {
		p.logger.Info().
			Str("system", systemSymbol).
			Int("waypoints", graph.WaypointCount()).
			Int("edges", graph.EdgeCount()).
			Msg("system graph cached")
	}
	return graph, nil
}
