package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/ekaya-inc/lakeprofiler/pkg/config"
	"github.com/ekaya-inc/lakeprofiler/pkg/database"
	"github.com/ekaya-inc/lakeprofiler/pkg/lakehouse"
	"github.com/ekaya-inc/lakeprofiler/pkg/logging"
	"github.com/ekaya-inc/lakeprofiler/pkg/profiling"
	"github.com/ekaya-inc/lakeprofiler/pkg/report"
	"github.com/ekaya-inc/lakeprofiler/pkg/repositories"
	"github.com/ekaya-inc/lakeprofiler/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("lakeprofiler starting",
		zap.String("version", cfg.Version),
		zap.String("environment", cfg.Env),
		zap.String("lakehouse_host", cfg.Lakehouse.Host),
		zap.String("warehouse_id", cfg.Lakehouse.WarehouseID),
		zap.Int("tables", len(cfg.Profiling.Tables)),
		zap.Bool("persistence", cfg.Database.Enabled))

	if err := run(cfg, logger); err != nil {
		logger.Error("run failed", zap.String("error", logging.SanitizeError(err)))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := lakehouse.NewClient(lakehouse.ClientConfig{
		Host:         cfg.Lakehouse.Host,
		Token:        cfg.Lakehouse.Token,
		ClientID:     cfg.Lakehouse.ClientID,
		ClientSecret: cfg.Lakehouse.ClientSecret,
		Timeout:      cfg.Lakehouse.Timeout(),
	}, logger)
	if err != nil {
		return err
	}

	rep := report.NewWithCapacity(cfg.Profiling.TimeoutListCapacity, cfg.Profiling.ErrorSampleCapacity)
	profiler := profiling.NewProfiler(client, client, client, rep, cfg.Lakehouse.WarehouseID, logger)

	var store repositories.ProfileRepository
	if cfg.Database.Enabled {
		db, err := connectStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		store = repositories.NewProfileRepository(db)
	}

	runService := services.NewProfileRunService(services.RunConfig{
		Tables:         cfg.Profiling.Tables,
		MaxWaitSecs:    cfg.Profiling.MaxWaitSecs,
		CallAnalyze:    cfg.Profiling.CallAnalyze,
		IncludeColumns: cfg.Profiling.IncludeColumns,
		MaxConcurrent:  cfg.Profiling.MaxConcurrentTables,
		StartWarehouse: cfg.Profiling.StartWarehouse,
	}, profiler, store, rep, logger)

	_, err = runService.Run(ctx)
	return err
}

// connectStore opens the profile store and applies pending migrations.
func connectStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	// A profiler container pointing at a database on the host needs the
	// Docker-internal host alias.
	dbCfg := cfg.Database
	dbCfg.Host = config.ResolveHostForDocker(dbCfg.Host)

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            dbCfg.ConnectionString(),
		MaxConnections: dbCfg.MaxConnections,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(dbCfg.ConnectionString(), logger); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// runMigrations applies pending schema migrations. golang-migrate works over
// database/sql, so it gets its own short-lived handle.
func runMigrations(connStr string, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open sql connection: %w", err)
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, "migrations", logger)
}
