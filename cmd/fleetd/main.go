package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/stellarforge/fleetd/internal/adapters/api"
	"github.com/stellarforge/fleetd/internal/adapters/cli"
	"github.com/stellarforge/fleetd/internal/adapters/daemon"
	"github.com/stellarforge/fleetd/internal/adapters/graph"
	"github.com/stellarforge/fleetd/internal/adapters/metrics"
	"github.com/stellarforge/fleetd/internal/adapters/persistence"
	"github.com/stellarforge/fleetd/internal/application/auth"
	"github.com/stellarforge/fleetd/internal/application/contract"
	"github.com/stellarforge/fleetd/internal/application/logging"
	"github.com/stellarforge/fleetd/internal/application/mediator"
	"github.com/stellarforge/fleetd/internal/application/scouting"
	"github.com/stellarforge/fleetd/internal/application/ship"
	"github.com/stellarforge/fleetd/internal/application/shipyard"
	"github.com/stellarforge/fleetd/internal/application/validation"
	domaindaemon "github.com/stellarforge/fleetd/internal/domain/daemon"
	"github.com/stellarforge/fleetd/internal/domain/routing"
	"github.com/stellarforge/fleetd/internal/infrastructure/config"
	"github.com/stellarforge/fleetd/internal/infrastructure/database"
	infralogging "github.com/stellarforge/fleetd/internal/infrastructure/logging"
	"github.com/stellarforge/fleetd/internal/infrastructure/pidfile"
)

func main() {
	rootCmd := cli.NewRootCommand()
	rootCmd.AddCommand(newServeCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newServeCommand() *cobra.Command {
	var (
		configPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the fleet orchestration daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			return serve(cfg, force)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file")
	cmd.Flags().BoolVar(&force, "force", false, "Take over a stale PID file from a dead daemon")
	return cmd
}

func serve(cfg *config.Config, force bool) error {
	logger := infralogging.New(&cfg.Logging)

	pf := pidfile.New(cfg.Daemon.PIDFile)
	if err := pf.Acquire(force); err != nil {
		return err
	}
	defer func() {
		if err := pf.Release(); err != nil {
			logger.Warn().Err(err).Msg("failed to release pid file")
		}
	}()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info().Str("type", cfg.Database.Type).Msg("database connected")

	// Repositories
	playerRepo := persistence.NewPlayerRepository(db, nil)
	marketRepo := persistence.NewMarketRepository(db, nil)
	containerRepo := persistence.NewContainerRepository(db, nil)
	containerLogRepo := persistence.NewContainerLogRepository(db, nil)
	assignmentRepo := persistence.NewShipAssignmentRepository(db, nil)
	graphRepo := persistence.NewSystemGraphRepository(db)

	// Game API access and the graph/ship adapters built on it
	apiClient := api.NewClientWithConfig(cfg.API.BaseURL, cfg.API.Retry.MaxAttempts, cfg.API.Retry.BackoffBase, nil)
	graphBuilder := api.NewGraphBuilder(apiClient, playerRepo)
	graphProvider := graph.NewProvider(graphRepo, graphBuilder, logger)
	shipRepo := api.NewShipRepository(apiClient, playerRepo, graphProvider, nil)

	// In-process route solver
	var routingClient routing.RoutingClient = routing.NewEngineWithBudgets(
		cfg.Routing.Timeout.Tour, cfg.Routing.Timeout.VRP, cfg.Routing.MaxConcurrentSolves)

	// Metrics are optional; collectors register only when enabled
	var (
		commandMetrics   *metrics.CommandMetricsCollector
		containerMetrics *metrics.ContainerMetricsCollector
		metricsServer    *metrics.Server
	)
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		commandMetrics = metrics.NewCommandMetricsCollector()
		containerMetrics = metrics.NewContainerMetricsCollector()
		routingMetrics := metrics.NewRoutingMetricsCollector()
		for _, c := range []interface{ Register() error }{commandMetrics, containerMetrics, routingMetrics} {
			if err := c.Register(); err != nil {
				return fmt.Errorf("failed to register metrics: %w", err)
			}
		}
		routingClient = metrics.InstrumentedRoutingClient(routingClient, routingMetrics)
		metricsServer = metrics.NewServer(&cfg.Metrics)
	}

	// Mediator with the middleware chain every dispatch passes through
	med := mediator.NewMediator()
	med.RegisterMiddleware(logging.RequestLoggingMiddleware(logger))
	med.RegisterMiddleware(auth.PlayerTokenMiddleware(playerRepo))
	med.RegisterMiddleware(validation.Middleware())
	med.RegisterMiddleware(metrics.PrometheusMiddleware(commandMetrics))

	if err := registerHandlers(med, handlerDeps{
		shipRepo:      shipRepo,
		playerRepo:    playerRepo,
		marketRepo:    marketRepo,
		apiClient:     apiClient,
		graphProvider: graphProvider,
		routingClient: routingClient,
	}); err != nil {
		return err
	}

	// Container manager and its command registry
	registry := daemon.NewDefaultRegistry()
	manager := daemon.NewManager(containerRepo, containerLogRepo, assignmentRepo, shipRepo,
		registry, med, nil, logger, cfg.Daemon.MaxContainers)
	if containerMetrics != nil {
		manager.SetMetrics(containerMetrics)
	}

	// scout_markets spawns tour containers through the manager, so its
	// handler registers once the manager exists
	scoutMarketsHandler := scouting.NewScoutMarketsHandler(shipRepo, graphProvider, routingClient, manager, assignmentRepo)
	if err := mediator.RegisterHandler[*scouting.ScoutMarketsCommand](med, scoutMarketsHandler); err != nil {
		return fmt.Errorf("failed to register ScoutMarkets handler: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Replay the container table before accepting the first request
	if err := manager.Recover(ctx); err != nil {
		return fmt.Errorf("recovery failed: %w", err)
	}

	// Background sweep for assignments leaked by crashed containers,
	// checked against the manager's live in-memory set
	monitor := domaindaemon.NewHealthMonitor(cfg.Daemon.HealthCheckInterval,
		manager, assignmentRepo, nil, monitorLogger{logger})
	go monitor.Run(ctx)

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		defer metricsServer.Shutdown(context.Background())
		logger.Info().Int("port", cfg.Metrics.Port).Msg("metrics server started")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Daemon.SocketPath), 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	server, err := daemon.NewServer(cfg.Daemon.SocketPath, manager, med, registry, logger, cfg.Daemon.ShutdownTimeout)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	return server.Serve()
}

type handlerDeps struct {
	shipRepo      *api.ShipRepository
	playerRepo    *persistence.PlayerRepositoryGORM
	marketRepo    *persistence.MarketRepositoryGORM
	apiClient     *api.Client
	graphProvider *graph.Provider
	routingClient routing.RoutingClient
}

func registerHandlers(med mediator.Mediator, deps handlerDeps) error {
	executor := ship.NewRouteExecutor(deps.shipRepo, nil)
	scanner := scouting.NewMarketScanner(deps.apiClient, deps.playerRepo, deps.marketRepo, nil)

	if err := mediator.RegisterHandler[*ship.OrbitShipCommand](med, ship.NewOrbitShipHandler(deps.shipRepo)); err != nil {
		return fmt.Errorf("failed to register OrbitShip handler: %w", err)
	}
	if err := mediator.RegisterHandler[*ship.DockShipCommand](med, ship.NewDockShipHandler(deps.shipRepo)); err != nil {
		return fmt.Errorf("failed to register DockShip handler: %w", err)
	}
	if err := mediator.RegisterHandler[*ship.RefuelShipCommand](med, ship.NewRefuelShipHandler(deps.shipRepo)); err != nil {
		return fmt.Errorf("failed to register RefuelShip handler: %w", err)
	}
	if err := mediator.RegisterHandler[*ship.SetFlightModeCommand](med, ship.NewSetFlightModeHandler(deps.shipRepo)); err != nil {
		return fmt.Errorf("failed to register SetFlightMode handler: %w", err)
	}
	if err := mediator.RegisterHandler[*ship.NavigateRouteCommand](med,
		ship.NewNavigateRouteHandler(deps.shipRepo, deps.graphProvider, deps.routingClient, executor)); err != nil {
		return fmt.Errorf("failed to register NavigateRoute handler: %w", err)
	}
	if err := mediator.RegisterHandler[*ship.GetShipQuery](med, ship.NewGetShipHandler(deps.shipRepo)); err != nil {
		return fmt.Errorf("failed to register GetShip handler: %w", err)
	}
	if err := mediator.RegisterHandler[*ship.ListShipsQuery](med, ship.NewListShipsHandler(deps.shipRepo)); err != nil {
		return fmt.Errorf("failed to register ListShips handler: %w", err)
	}

	if err := mediator.RegisterHandler[*scouting.ScoutTourCommand](med,
		scouting.NewScoutTourHandler(deps.shipRepo, med, scanner, nil)); err != nil {
		return fmt.Errorf("failed to register ScoutTour handler: %w", err)
	}

	if err := mediator.RegisterHandler[*contract.NegotiateContractCommand](med,
		contract.NewNegotiateContractHandler(deps.apiClient, deps.shipRepo, deps.playerRepo)); err != nil {
		return fmt.Errorf("failed to register NegotiateContract handler: %w", err)
	}
	if err := mediator.RegisterHandler[*contract.AcceptContractCommand](med,
		contract.NewAcceptContractHandler(deps.apiClient, deps.playerRepo)); err != nil {
		return fmt.Errorf("failed to register AcceptContract handler: %w", err)
	}
	if err := mediator.RegisterHandler[*contract.DeliverContractCommand](med,
		contract.NewDeliverContractHandler(deps.apiClient, deps.playerRepo)); err != nil {
		return fmt.Errorf("failed to register DeliverContract handler: %w", err)
	}
	if err := mediator.RegisterHandler[*contract.FulfillContractCommand](med,
		contract.NewFulfillContractHandler(deps.apiClient, deps.playerRepo)); err != nil {
		return fmt.Errorf("failed to register FulfillContract handler: %w", err)
	}
	if err := mediator.RegisterHandler[*contract.PurchaseCargoCommand](med,
		contract.NewPurchaseCargoHandler(deps.apiClient, deps.shipRepo, deps.playerRepo)); err != nil {
		return fmt.Errorf("failed to register PurchaseCargo handler: %w", err)
	}
	if err := mediator.RegisterHandler[*contract.EvaluateContractProfitabilityQuery](med,
		contract.NewEvaluateContractProfitabilityHandler(deps.marketRepo)); err != nil {
		return fmt.Errorf("failed to register EvaluateContractProfitability handler: %w", err)
	}
	if err := mediator.RegisterHandler[*contract.BatchContractWorkflowCommand](med,
		contract.NewBatchContractWorkflowHandler(med)); err != nil {
		return fmt.Errorf("failed to register BatchContractWorkflow handler: %w", err)
	}

	if err := mediator.RegisterHandler[*shipyard.PurchaseShipCommand](med,
		shipyard.NewPurchaseShipHandler(deps.apiClient, deps.shipRepo, deps.playerRepo)); err != nil {
		return fmt.Errorf("failed to register PurchaseShip handler: %w", err)
	}
	if err := mediator.RegisterHandler[*shipyard.BatchPurchaseShipsCommand](med,
		shipyard.NewBatchPurchaseShipsHandler(med, deps.apiClient, deps.playerRepo)); err != nil {
		return fmt.Errorf("failed to register BatchPurchaseShips handler: %w", err)
	}

	return nil
}

// monitorLogger adapts the daemon logger to the health monitor's interface
type monitorLogger struct {
	logger *log.Logger
}

func (l monitorLogger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

func (l monitorLogger) Warnf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}
