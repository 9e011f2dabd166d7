/*
main.go - Application entry point

PURPOSE:
  Starts the HR leave service: loads configuration, opens the SQLite
  store, wires the core services and serves the HTTP API.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Build the zap logger from LOG_LEVEL
  3. Open and migrate the SQLite store
  4. Wire registry, ledger, workflow, conflicts, manager, accrual
  5. Optionally seed leave types and this year's holidays
  6. Start the accrual scheduler and HTTP server
  7. Shut down gracefully on SIGINT/SIGTERM

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides HR_PORT)
  -db      SQLite database path (overrides HR_DB_PATH)
           Use ":memory:" for in-memory database
  -seed    Create the standard leave types and national holidays

EXAMPLES:
  ./server -db="./data/hr.db" -seed
  HR_TIMEZONE=Asia/Manila LOG_LEVEL=debug ./server -port=3000

SEE ALSO:
  - config/config.go: Environment keys
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
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

	"github.com/Kirachon/Monitoring-Tool-sub000/api"
	"github.com/Kirachon/Monitoring-Tool-sub000/config"
	"github.com/Kirachon/Monitoring-Tool-sub000/core"
	"github.com/Kirachon/Monitoring-Tool-sub000/leave"
	"github.com/Kirachon/Monitoring-Tool-sub000/store/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	seed := flag.Bool("seed", false, "create standard leave types and holidays")
	flag.Parse()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	store, err := sqlite.Open(*dbPath, sqlite.Options{BusyTimeout: cfg.BusyTimeout})
	if err != nil {
		logger.Fatal("failed to initialize database", zap.String("path", *dbPath), zap.Error(err))
	}
	defer store.Close()

	svc := wire(store, cfg, logger)

	if *seed {
		if err := seedDefaults(context.Background(), store, svc.Registry, cfg, logger); err != nil {
			logger.Fatal("seeding failed", zap.Error(err))
		}
	}

	handler := api.NewHandler(store, svc, logger)
	handler.Location = cfg.Location
	router := api.NewRouter(handler, cfg.CORSOrigins)

	scheduler := api.NewAccrualScheduler(store, svc.Accrual, logger)
	scheduler.Enabled = cfg.AccrualEnabled
	scheduler.CheckInterval = cfg.AccrualCheckInterval
	scheduler.Location = cfg.Location
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: api.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.Int("port", *port), zap.String("db", *dbPath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func wire(store *sqlite.Store, cfg *config.Config, logger *zap.Logger) api.Services {
	registry := core.NewLeaveTypeRegistry(store, logger)
	ledger := core.NewBalanceLedger(store, store, logger)
	workflow := core.NewWorkflowEngine(store, store, store, logger)
	conflicts := core.NewConflictDetector(store, store, cfg.ConflictThreshold)

	manager := core.NewRequestManager(core.ManagerDeps{
		Store:     store,
		Ledger:    ledger,
		Registry:  registry,
		Workflow:  workflow,
		Conflicts: conflicts,
		Calendar:  core.NewWorkdayCalendar(store),
		Directory: store,
		Audit:     store,
	}, core.ManagerConfig{
		CancellationCutoffDays: &cfg.CancelCutoffDays,
		Location:               cfg.Location,
	}, logger)

	return api.Services{
		Manager:   manager,
		Ledger:    ledger,
		Registry:  registry,
		Workflow:  workflow,
		Accrual:   core.NewAccrualEngine(ledger, registry, store, logger),
		Conflicts: conflicts,
	}
}

func seedDefaults(ctx context.Context, store *sqlite.Store, registry *core.LeaveTypeRegistry, cfg *config.Config, logger *zap.Logger) error {
	created, err := leave.SeedLeaveTypes(ctx, registry)
	if err != nil {
		return fmt.Errorf("seed leave types: %w", err)
	}
	year := time.Now().In(cfg.Location).Year()
	for _, h := range leave.PhilippineHolidays(year) {
		if err := store.SaveHoliday(ctx, h); err != nil {
			return fmt.Errorf("seed holiday %s: %w", h.ID, err)
		}
	}
	logger.Info("seeded defaults", zap.Int("leave_types", len(created)), zap.Int("year", year))
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
