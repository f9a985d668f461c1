package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/wildfire-tracker/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/wildfire-tracker/internal/adapter/kafka"
	"github.com/couchcryptid/wildfire-tracker/internal/adapter/landcover"
	"github.com/couchcryptid/wildfire-tracker/internal/adapter/sqlite"
	"github.com/couchcryptid/wildfire-tracker/internal/config"
	"github.com/couchcryptid/wildfire-tracker/internal/domain"
	"github.com/couchcryptid/wildfire-tracker/internal/observability"
	"github.com/couchcryptid/wildfire-tracker/internal/pipeline"
	"github.com/couchcryptid/wildfire-tracker/internal/tracker"
)

func main() {
	// A missing .env is fine; the environment may be set by the orchestrator.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	db, err := sqlite.Open(cfg.SQLitePath, logger)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("database close error", "error", err)
		}
	}()
	stepLog := sqlite.NewStepLog(db)

	env := domain.Env{
		Params: cfg.TrackingParams(),
		Remaps: sqlite.NewRemapStore(db),
	}

	// Land-cover classification is feature-flagged via LANDCOVER_ENABLED / LANDCOVER_URL.
	if cfg.LandcoverEnabled {
		client := landcover.NewClient(cfg.LandcoverURL, cfg.LandcoverTimeout, metrics, logger)
		env.Classifier = landcover.NewClassifier(landcover.NewCachedLooker(client, cfg.LandcoverCacheSize, metrics))
		metrics.LandcoverEnabled.Set(1)
		logger.Info("land cover classification enabled", "url", cfg.LandcoverURL, "cache_size", cfg.LandcoverCacheSize, "timeout", cfg.LandcoverTimeout)
	} else {
		logger.Info("land cover classification disabled")
	}

	tr, err := tracker.New(env, metrics, logger)
	if err != nil {
		logger.Error("failed to create tracker", "error", err)
		os.Exit(1)
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	// The step log goes first so a step is recorded locally before it is published.
	loader := pipeline.FanOut{stepLog, writer}
	p := pipeline.New(reader, pipeline.NewTransformer(tr), loader, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, tr, stepLog, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start tracking pipeline.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
