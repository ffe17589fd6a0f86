package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/slog"

	"syncpoint/internal/app/server/api"
	"syncpoint/internal/app/server/config"
	"syncpoint/internal/audit"
	syncdomain "syncpoint/internal/domain/sync"
	"syncpoint/internal/infrastructure/storage/postgres"
	"syncpoint/internal/infrastructure/storage/sqlite"
	"syncpoint/internal/metrics"
	"syncpoint/internal/remote"
	"syncpoint/internal/utils/logger"
)

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	storage, err := postgres.New(cfg)
	if err != nil {
		log.Error("failed to init postgres storage", "error", err)
		os.Exit(1)
	}
	defer storage.Close()

	local, err := sqlite.New(cfg.DB.LocalStorePath)
	if err != nil {
		log.Error("failed to init local store", "error", err)
		os.Exit(1)
	}
	defer local.Close()

	repo := postgres.NewSyncRepository(storage, log)
	upstream := remote.NewClient(cfg.Server.UpstreamAddress, log)

	registry := prometheus.NewRegistry()

	defaultStrategy := syncdomain.DefaultStrategy()
	if cfg.Sync.DefaultBatchSize > 0 {
		defaultStrategy.BatchSize = cfg.Sync.DefaultBatchSize
	}
	strategies := syncdomain.NewStrategyRegistry(defaultStrategy)

	engine := syncdomain.NewEngine(repo, local, upstream, strategies, log, &syncdomain.EngineConfig{
		SessionTTL: time.Duration(cfg.Sync.SessionTTLMinutes) * time.Minute,
		Audit:      audit.NewLog(log),
		Metrics:    metrics.New(registry),
	})

	mux := api.New(engine, upstream, registry, log)
	srv := &http.Server{
		Addr:    cfg.Server.RunAddress,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepLoop(ctx, engine, cfg, log)

	go func() {
		log.Info("server listening", "address", cfg.Server.RunAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// sweepLoop periodically expires sessions whose inactivity window has
// elapsed and drops their checkpoints.
func sweepLoop(ctx context.Context, engine *syncdomain.Engine, cfg *config.Config, log *slog.Logger) {
	interval := time.Duration(cfg.Sync.SweepIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := engine.Checkpoints().Sweep(ctx); err != nil {
				log.Error("session sweep failed", "error", err)
			}
		}
	}
}
