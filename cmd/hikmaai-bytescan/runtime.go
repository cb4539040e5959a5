// ABOUTME: Shared wiring of storage, engine, service, and optional remote backends
// ABOUTME: Used by the daemon and by direct CLI commands against the local catalog

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/config"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/engine"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/feeds"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/gcs"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/observability"
	internalredis "github.com/hikmaai-io/hikmaai-bytescan/internal/redis"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/resilience"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/service"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/storage"
)

// runtimeOptions selects which remote backends are connected.
type runtimeOptions struct {
	// Redis connects the distributed file locker and event stream when configured.
	Redis bool

	// FeedRetry governs feed source loads. The zero value tries once.
	FeedRetry feeds.RetryConfig
}

// appRuntime holds every long-lived component of one process.
type appRuntime struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *storage.Store
	catalog *storage.Catalog
	files   *storage.FileStore
	cache   *storage.ReportCache
	engine  *engine.Engine
	service *service.Service

	locker     *internalredis.FileLocker
	gcs        *gcs.Client
	downloader *feeds.Downloader
	feedRetry  feeds.RetryConfig

	closers []func() error
}

func newLogger(cfg *config.Config) *slog.Logger {
	return observability.NewLogger(observability.LoggingConfig{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "hikmaai-bytescan",
		Version:     version,
	}, os.Stderr)
}

// openRuntime opens the store and builds the service. Close must be called.
func openRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts runtimeOptions) (_ *appRuntime, err error) {
	rt := &appRuntime{cfg: cfg, logger: logger, feedRetry: opts.FeedRetry}
	if rt.feedRetry.MaxAttempts == 0 {
		rt.feedRetry.MaxAttempts = 1
	}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	rt.store, err = storage.NewStore(storage.StoreConfig{Path: cfg.DataDir})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	rt.closers = append(rt.closers, rt.store.Close)

	rt.catalog, err = storage.NewCatalog(rt.store)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	rt.closers = append(rt.closers, rt.catalog.Close)
	rt.files = storage.NewFileStore(rt.store)

	mode, ok := engine.ParseMatchMode(cfg.Engine.Mode)
	if !ok {
		return nil, fmt.Errorf("unknown engine mode %q", cfg.Engine.Mode)
	}
	rt.engine = engine.NewEngine(engine.EngineConfig{
		Concurrency: cfg.Engine.Concurrency,
		Logger:      logger,
	})

	svcCfg := service.Config{
		Engine:     rt.engine,
		Files:      rt.files,
		Signatures: rt.catalog,
		Metrics:    observability.NewScanMetrics(),
		Audit:      observability.NewAuditLogger(logger),
		Logger:     logger,
		Mode:       mode,
	}

	if cfg.Cache.Enabled {
		cache, err := storage.NewReportCache(rt.store, cfg.Cache.TTL, storage.BloomConfig{
			ExpectedItems:     cfg.Cache.ExpectedItems,
			FalsePositiveRate: cfg.Cache.FalsePositiveRate,
		})
		if err != nil {
			return nil, fmt.Errorf("opening report cache: %w", err)
		}
		rt.cache = cache
		svcCfg.Cache = cache
	}

	if opts.Redis && cfg.Redis.Addr != "" {
		if err := rt.connectRedis(ctx, &svcCfg); err != nil {
			return nil, err
		}
	}

	if cfg.GCS.Bucket != "" {
		rt.gcs, err = gcs.NewClient(ctx, gcs.Config{
			Bucket:          cfg.GCS.Bucket,
			AllowedPrefix:   cfg.GCS.AllowedPrefix,
			CredentialsFile: cfg.GCS.CredentialsFile,
			EmulatorHost:    cfg.GCS.EmulatorHost,
			MaxSize:         cfg.HTTP.MaxUploadSize,
		})
		if err != nil {
			return nil, fmt.Errorf("creating gcs client: %w", err)
		}
		rt.closers = append(rt.closers, rt.gcs.Close)
	}

	rt.downloader = feeds.NewDownloader(&feeds.DownloaderConfig{
		Timeout:   cfg.Feeds.Timeout,
		UserAgent: "hikmaai-bytescan/" + version,
		MaxSize:   cfg.Feeds.MaxSize,
	})
	if rt.gcs != nil {
		rt.downloader.WithObjectFetcher(rt.gcs)
	}

	rt.service, err = service.New(svcCfg)
	if err != nil {
		return nil, fmt.Errorf("creating service: %w", err)
	}

	return rt, nil
}

func (rt *appRuntime) connectRedis(ctx context.Context, svcCfg *service.Config) error {
	cfg := rt.cfg.Redis

	client, err := internalredis.NewClient(ctx, internalredis.Config{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Prefix:   cfg.Prefix,
	})
	if err != nil {
		return fmt.Errorf("creating redis client: %w", err)
	}
	rt.closers = append(rt.closers, client.Close)

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "redis-lock",
		MaxFailures:  cfg.BreakerMaxFailures,
		ResetTimeout: cfg.BreakerResetTimeout,
		OnStateChange: func(name string, from, to resilience.State) {
			rt.logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	rt.locker = internalredis.NewFileLocker(client, breaker, internalredis.LockConfig{
		TTL:  cfg.LockTTL,
		Wait: cfg.LockWait,
	})
	svcCfg.Locker = rt.locker

	if cfg.EventStream != "" {
		svcCfg.Events = internalredis.NewEventPublisher(client, cfg.EventStream, cfg.EventStreamLen)
	}

	rt.logger.Info("redis connected",
		slog.String("addr", cfg.Addr),
		slog.String("lock_prefix", cfg.Prefix),
		slog.Bool("events", cfg.EventStream != ""),
	)
	return nil
}

// importSource loads one feed source and stores its signatures.
func (rt *appRuntime) importSource(ctx context.Context, source, format string) (*service.ImportResult, error) {
	var data []byte
	err := feeds.Retry(ctx, rt.feedRetry, func(ctx context.Context) error {
		var err error
		data, err = rt.downloader.Load(ctx, source)
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %w", feeds.ErrPermanent, err)
		}
		if err != nil {
			rt.logger.Warn("feed load failed",
				slog.String("source", observability.RedactURL(source)),
				slog.String("error", err.Error()),
			)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", source, err)
	}

	feed, err := feeds.ForFormat(format, path.Base(source))
	if err != nil {
		return nil, err
	}

	parsed, err := feed.Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", source, err)
	}

	return rt.service.ImportSignatures(ctx, source, parsed)
}

// Close releases components in reverse order of creation.
func (rt *appRuntime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
