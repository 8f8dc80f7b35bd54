package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/acdtunes/fleetd/internal/adapters/api"
	"github.com/acdtunes/fleetd/internal/adapters/controlsocket"
	"github.com/acdtunes/fleetd/internal/adapters/graph"
	"github.com/acdtunes/fleetd/internal/adapters/healthmonitor"
	"github.com/acdtunes/fleetd/internal/adapters/persistence"
	stroutingadapter "github.com/acdtunes/fleetd/internal/adapters/routing"
	"github.com/acdtunes/fleetd/internal/adapters/supervisor"
	"github.com/acdtunes/fleetd/internal/application/workload"
	"github.com/acdtunes/fleetd/internal/domain/navigation"
	domainrouting "github.com/acdtunes/fleetd/internal/domain/routing"
	"github.com/acdtunes/fleetd/internal/domain/shared"
	"github.com/acdtunes/fleetd/internal/infrastructure/config"
	"github.com/acdtunes/fleetd/internal/infrastructure/database"
	"github.com/acdtunes/fleetd/internal/infrastructure/pidfile"
)

func main() {
	forceFlag := flag.Bool("force", false, "Kill any existing daemon and start a new one")
	flag.Parse()

	fmt.Println("SpaceTraders Daemon v0.1.0")
	fmt.Println("==========================")

	fmt.Println("Loading configuration...")
	cfg := config.MustLoadConfig("")

	fmt.Printf("Acquiring PID file lock: %s\n", cfg.Daemon.PIDFile)
	pf := pidfile.New(cfg.Daemon.PIDFile)

	if err := pf.Acquire(); err != nil {
		if *forceFlag {
			fmt.Println("Force mode enabled - attempting to kill existing daemon...")
			if killErr := pf.KillExisting(); killErr != nil {
				log.Fatalf("Failed to kill existing daemon: %v", killErr)
			}
			fmt.Println("Existing daemon killed")

			if err := pf.Acquire(); err != nil {
				log.Fatalf("Failed to acquire PID file lock after killing existing daemon: %v", err)
			}
		} else {
			log.Fatalf("Failed to acquire PID file lock: %v\nUse --force to kill the existing daemon", err)
		}
	}

	defer func() {
		if err := pf.Release(); err != nil {
			log.Printf("Warning: failed to release PID file: %v", err)
		}
	}()
	fmt.Println("PID file lock acquired")

	if err := run(cfg); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(cfg *config.Config) error {
	logger := newLogger(cfg.Logging)

	fmt.Printf("Connecting to %s database...\n", cfg.Database.Type)
	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	fmt.Println("Database connected and migrated")

	waypointConverter := api.NewWaypointConverter()

	playerRepo := persistence.NewGormPlayerRepository(db)
	waypointRepo := persistence.NewGormWaypointRepository(db)
	systemGraphRepo := persistence.NewGormSystemGraphRepository(db, waypointConverter)
	containerLogRepo := persistence.NewGormContainerLogRepository(db, nil)
	containerRepo := persistence.NewContainerRepository(db)
	marketRepo := persistence.NewMarketRepository(db)
	marketPriceHistoryRepo := persistence.NewGormMarketPriceHistoryRepository(db)
	shipAssignmentRepo := persistence.NewShipAssignmentRepository(db)
	contractRepo := persistence.NewGormContractRepository(db)
	workQueueRepo := persistence.NewWorkQueueRepository(db, nil)
	fmt.Println("Repositories initialized")

	apiClient := api.NewSpaceTradersClient()
	fmt.Println("API client initialized")

	graphBuilder := api.NewGraphBuilder(apiClient, playerRepo, waypointRepo)
	graphService := graph.NewGraphService(systemGraphRepo, waypointRepo, graphBuilder)
	fmt.Println("Graph service initialized")

	shipRepo := navigation.ShipRepository(api.NewShipRepository(apiClient, playerRepo, waypointRepo, graphService, db, nil))
	fmt.Println("Ship repository initialized")

	var routingClient domainrouting.RoutingClient = stroutingadapter.NewEngine(stroutingadapter.Timeouts{
		Dijkstra: cfg.Routing.Timeout.Dijkstra,
		TSP:      cfg.Routing.Timeout.TSP,
		VRP:      cfg.Routing.Timeout.VRP,
	})
	fmt.Println("Routing engine initialized (in-process heuristic solver)")

	sup := supervisor.New(containerRepo, containerLogRepo, shipAssignmentRepo, nil)
	fmt.Println("Supervisor initialized")

	handlers := &workload.Handlers{
		ShipRepo:          shipRepo,
		PlayerRepo:        playerRepo,
		ContractRepo:      contractRepo,
		MarketRepo:        marketRepo,
		MarketHistoryRepo: marketPriceHistoryRepo,
		WaypointRepo:      waypointRepo,
		WaypointProvider:  graphService,
		GraphProvider:     graphService,
		RoutingClient:     routingClient,
		APIClient:         apiClient,
		WorkQueue:         workQueueRepo,
		Supervisor:        sup,
		Clock:             shared.NewRealClock(),
		Logger:            logger,
	}
	factory := workload.NewFactory(handlers)
	fmt.Println("Workload handlers wired")

	// Zombie sweep: every assignment left "active" from a previous run is
	// now orphaned, since no container from that run survived the restart.
	if released, err := shipAssignmentRepo.ReleaseAllActive(context.Background(), "daemon_restart"); err != nil {
		return fmt.Errorf("failed to sweep zombie assignments: %w", err)
	} else if released > 0 {
		fmt.Printf("Released %d zombie ship assignment(s) from a previous run\n", released)
	}

	socketPath := cfg.Daemon.SocketPath
	fmt.Printf("Starting control socket on: %s\n", socketPath)
	server, err := controlsocket.NewServer(socketPath, sup, factory, containerRepo, containerLogRepo, shipRepo, logger)
	if err != nil {
		return fmt.Errorf("failed to create control server: %w", err)
	}

	monitor := healthmonitor.New(sup, shipAssignmentRepo, logger)
	if err := monitor.Start(); err != nil {
		return fmt.Errorf("failed to start health monitor: %w", err)
	}
	defer monitor.Stop()
	fmt.Println("Health monitor started (60s sweep interval)")

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port), Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server stopped unexpectedly")
			}
		}()
		fmt.Printf("Metrics server listening on %s%s\n", metricsServer.Addr, cfg.Metrics.Path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ctx)
	}()

	fmt.Println("\n✓ Daemon is ready to accept connections")
	fmt.Println("Press Ctrl+C to stop")

	select {
	case <-ctx.Done():
		fmt.Println("\nShutdown signal received, draining connections...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Daemon.ShutdownTimeout)
		defer cancel()
		server.Shutdown()
		if metricsServer != nil {
			_ = metricsServer.Shutdown(shutdownCtx)
		}
		<-serveErr
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("control server error: %w", err)
		}
	}

	fmt.Println("\nDaemon stopped")
	return nil
}

// newLogger builds the daemon's zerolog.Logger from cfg.Logging: json or
// console (human-readable) writer, output to stdout/stderr/file, and level
// parsed from the configured name.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	var out *os.File
	switch cfg.Output {
	case "stderr":
		out = os.Stderr
	case "file":
		f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("Warning: failed to open log file %s, falling back to stdout: %v", cfg.FilePath, err)
			out = os.Stdout
		} else {
			out = f
		}
	default:
		out = os.Stdout
	}

	var writer interface{ Write([]byte) (int, error) } = out
	if cfg.Format == "text" {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logCtx := zerolog.New(writer).With().Timestamp()
	if cfg.IncludeCaller {
		logCtx = logCtx.Caller()
	}
	return logCtx.Logger().Level(level)
}
