// Command sentinel runs the always-on incident-detection process: it polls
// the configured services for anomalies, deduplicates against open
// incidents, and persists newly-detected incidents in DETECTED status.
//
// It deliberately does nothing else: hypothesis generation and action
// execution live in cmd/sentinel-worker, a separate, horizontally
// scalable process that claims DETECTED incidents off the datastore. That
// split keeps this process's dependency footprint small (no LLM
// credentials, no cluster credentials) since it's the one piece every
// other piece depends on staying up.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/sentinelops/sentinel/internal/config"
	"github.com/sentinelops/sentinel/internal/database"
	"github.com/sentinelops/sentinel/internal/logging"
	"github.com/sentinelops/sentinel/pkg/cache"
	"github.com/sentinelops/sentinel/pkg/detector"
	"github.com/sentinelops/sentinel/pkg/incident"
	"github.com/sentinelops/sentinel/pkg/metrics"
	"github.com/sentinelops/sentinel/pkg/monitor"
	"github.com/sentinelops/sentinel/pkg/observability"
	"github.com/sentinelops/sentinel/pkg/store"
)

func main() {
	configPath := envOr("SENTINEL_CONFIG", "config/config.yaml")

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	session, err := store.Open(cfg.Datastore.DSN, logger)
	if err != nil {
		logger.Fatal("open datastore", zap.Error(err))
	}
	defer session.Close()
	session.DB.SetMaxOpenConns(cfg.Datastore.MaxOpenConns)
	session.DB.SetConnMaxLifetime(cfg.Datastore.ConnMaxLifetime)

	if err := database.Migrate(session.DB.DB); err != nil {
		logger.Fatal("apply schema migrations", zap.Error(err))
	}

	cacheClient := cache.New(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
	defer cacheClient.Close()

	metricsClient := metrics.New(cfg.Monitor.MetricsBackendURL)
	det := detector.New(detector.DefaultSigmaThreshold, logger)
	dedupGuard := monitor.NewDedupGuard(cacheClient, logger)
	dedup := incident.New(session)

	mon := monitor.New(cfg.Monitor.Services, cfg.Monitor.Queries, metricsClient, det, dedupGuard, dedup, logger)
	mon.Concurrency = cfg.Monitor.Concurrency
	mon.PollInterval = cfg.Monitor.PollInterval
	mon.DedupWindow = cfg.Monitor.DedupWindow
	mon.Lookback = cfg.Monitor.Lookback
	mon.MinConfidence = cfg.Monitor.MinConfidence

	obsServer := observability.NewServer(cfg.Server.MetricsPort, logger)
	obsServer.StartAsync()

	ctx, cancel := context.WithCancel(context.Background())
	go mon.Run(ctx)

	logger.Info("sentinel started",
		zap.Strings("services", cfg.Monitor.Services),
		zap.Duration("poll_interval", mon.PollInterval),
		zap.String("metrics_port", cfg.Server.MetricsPort),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := obsServer.Stop(shutdownCtx); err != nil {
		logger.Error("observability server shutdown", zap.Error(err))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
