package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/edvin/sqlsandbox/internal/api"
	"github.com/edvin/sqlsandbox/internal/config"
	"github.com/edvin/sqlsandbox/internal/core"
	"github.com/edvin/sqlsandbox/internal/db"
	"github.com/edvin/sqlsandbox/internal/logging"
	"github.com/edvin/sqlsandbox/internal/metrics"
	"github.com/edvin/sqlsandbox/internal/sandbox"
)

const auditBuffer = 1024

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("sandbox-api"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Msg("running database migrations")
		if err := db.RunMigrations(cfg.CoreDatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	corePool, err := db.NewCorePool(ctx, cfg.CoreDatabaseURL, cfg.CoreMaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to core database")
	}
	defer corePool.Close()
	metrics.RegisterPgxPoolMetrics(prometheus.DefaultRegisterer, "core", corePool)

	driver, err := db.NewDriver(cfg.SandboxDatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure sandbox driver")
	}

	repo := core.NewRepository(corePool)
	auditLog := core.NewQueryAuditLog(corePool, logger, auditBuffer)
	defer auditLog.Close()

	sb := sandbox.New(repo, driver, logger, sandbox.Options{
		MaintenanceDatabase: cfg.MaintenanceDatabase,
		CopyTTL:             cfg.CopyTTL,
		ReadTimeout:         cfg.ReadTimeout,
		ManipulationTimeout: cfg.ManipulationTimeout,
		ImportTimeout:       cfg.ImportTimeout,
	}, auditLog)

	checks := map[string]api.ReadinessCheck{
		"core_db": repo.Ping,
		"sandbox_server": func(ctx context.Context) error {
			conn, err := driver.Connect(ctx, cfg.MaintenanceDatabase)
			if err != nil {
				return err
			}
			return conn.Close(ctx)
		},
	}
	srv := api.NewServer(logger, sb, checks, cfg)

	// WriteTimeout leaves room for script imports.
	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.ImportTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting sandbox API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// In-flight imports may run for ImportTimeout; let them finish before the
	// deferred audit log Close.
	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ImportTimeout+10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown did not complete")
	}
}
