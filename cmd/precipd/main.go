package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/precip-render-service/internal/adapter/datasource"
	"github.com/couchcryptid/precip-render-service/internal/adapter/httpadapter"
	"github.com/couchcryptid/precip-render-service/internal/config"
	"github.com/couchcryptid/precip-render-service/internal/observability"
	"github.com/couchcryptid/precip-render-service/internal/pipeline"
	"github.com/couchcryptid/precip-render-service/internal/prefetch"
)

// maxRetryInterval caps the doubling backoff between source retries.
const maxRetryInterval = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	source, err := newSource(cfg, logger)
	if err != nil {
		logger.Error("failed to create data source", "error", err)
		os.Exit(1)
	}
	source = datasource.NewResilientSource(source,
		datasource.BackoffConfig{
			MaxRetries:      cfg.FetchMaxRetries,
			InitialInterval: cfg.FetchRetryInterval,
			MaxInterval:     maxRetryInterval,
		},
		datasource.BreakerConfig{
			MaxFailures: uint32(cfg.BreakerMaxFailures), //nolint:gosec // validated >= 1
			OpenTimeout: cfg.BreakerOpenTimeout,
		},
		logger,
	)

	fetcher := datasource.NewFetcher(source, cfg.DataVariable, metrics, logger)
	store := pipeline.NewDataStore(fetcher, pipeline.StoreOptions{
		GridCacheSize: cfg.GridCacheSize,
		Concurrency:   cfg.FetchConcurrency,
	}, logger, metrics)
	aggregator := pipeline.NewAggregator(store, logger, metrics)
	renderer := pipeline.NewRenderer(aggregator, cfg.RenderCacheSize, logger, metrics)
	inspector := pipeline.NewInspector(store, cfg.FetchConcurrency, logger)

	api := httpadapter.NewAPI(store, aggregator, renderer, inspector, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, api, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start frame prefetch (feature-flagged via PREFETCH_ENABLED).
	var prefetcher *prefetch.Prefetcher
	if cfg.PrefetchEnabled {
		prefetcher = prefetch.New(prefetch.Config{
			Modes:       cfg.PrefetchModes,
			Interval:    cfg.PrefetchInterval,
			Concurrency: cfg.FetchConcurrency,
		}, store, renderer, logger, metrics)
		if err := prefetcher.Start(); err != nil {
			logger.Error("prefetch start error", "error", err)
		}
	} else {
		logger.Info("frame prefetch disabled")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if prefetcher != nil {
		prefetcher.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

func newSource(cfg *config.Config, logger *slog.Logger) (datasource.Source, error) {
	switch cfg.DataSource {
	case config.SourceHTTP:
		logger.Info("using http data source", "base_url", cfg.DataBaseURL)
		return datasource.NewHTTPSource(cfg.DataBaseURL, cfg.FetchTimeout, logger), nil
	case config.SourceS3:
		logger.Info("using s3 data source", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket, "prefix", cfg.S3Prefix)
		return datasource.NewS3Source(datasource.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			UseSSL:    cfg.S3UseSSL,
		})
	case config.SourceDir:
		logger.Info("using directory data source", "dir", cfg.DataDir)
		return datasource.NewDirSource(cfg.DataDir), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.DataSource)
	}
}
