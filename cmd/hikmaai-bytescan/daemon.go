// ABOUTME: Daemon command for running hikmaai-bytescan as a service
// ABOUTME: Serves the HTTP API, optional NATS workers, and periodic feed imports

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/api"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/config"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/feeds"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/observability"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/queue"
)

func newDaemonCmd() *cobra.Command {
	var (
		httpAddr string
		natsURL  string
		redis    string
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the scanning daemon",
		Long: `Start the ByteScan daemon. It serves the HTTP API for file upload,
scanning, and signature administration.

Optional backends are enabled through the config file or flags:
  --nats-url    answer scan requests from a NATS queue group
  --redis-addr  hold per-file scan locks in Redis and publish scan events

Signature feeds listed under feeds.sources are imported at startup and on
every feeds.update_interval.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if httpAddr != "" {
				cfg.HTTP.Addr = httpAddr
			}
			if natsURL != "" {
				cfg.NATS.URL = natsURL
			}
			if redis != "" {
				cfg.Redis.Addr = redis
			}
			return runDaemon(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides http.addr)")
	cmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL (overrides nats.url)")
	cmd.Flags().StringVar(&redis, "redis-addr", "", "Redis address (overrides redis.addr)")

	return cmd
}

func runDaemon(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting hikmaai-bytescan daemon",
		slog.String("version", version),
		slog.String("data_dir", cfg.DataDir),
		slog.String("http_addr", cfg.HTTP.Addr),
		slog.String("mode", cfg.Engine.Mode),
	)

	tp, err := observability.NewTracerProvider(ctx, observability.TracingConfig{
		Enabled:       cfg.Tracing.Enabled,
		ServiceName:   "hikmaai-bytescan",
		Version:       version,
		Endpoint:      cfg.Tracing.Endpoint,
		Insecure:      cfg.Tracing.Insecure,
		SamplingRatio: cfg.Tracing.SamplingRatio,
	})
	if err != nil {
		return fmt.Errorf("creating tracer provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown error", slog.String("error", err.Error()))
		}
	}()

	rt, err := openRuntime(ctx, cfg, logger, runtimeOptions{Redis: true, FeedRetry: feeds.DefaultRetryConfig()})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("close error", slog.String("error", err.Error()))
		}
	}()
	logger.Info("store opened", slog.Bool("tracing", tp.IsEnabled()))

	handlerCfg := api.HandlerConfig{
		Service:     rt.service,
		Engine:      rt.engine,
		Store:       rt.store,
		MaxFileSize: cfg.HTTP.MaxUploadSize,
		Logger:      logger,
	}
	if rt.locker != nil {
		handlerCfg.Breaker = rt.locker
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewServerHandler(api.NewHandler(handlerCfg)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", slog.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var natsClient *queue.Client
	if cfg.NATS.URL != "" {
		natsCfg := queue.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.Subject = cfg.NATS.Subject
		natsCfg.QueueGroup = cfg.NATS.Queue

		natsClient = queue.NewClient(natsCfg, queue.NewHandler(rt.service), logger)
		if err := natsClient.Connect(ctx); err != nil {
			logger.Error("NATS unavailable, continuing with HTTP only", slog.String("error", err.Error()))
			natsClient = nil
		} else if err := natsClient.Subscribe(ctx); err != nil {
			logger.Error("NATS subscribe failed", slog.String("error", err.Error()))
		}
	}

	if len(cfg.Feeds.Sources) > 0 {
		go runFeedsWorker(ctx, rt, logger)
	}

	logger.Info("daemon ready, waiting for requests")

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		logger.Error("HTTP server error", slog.String("error", err.Error()))
		cancel()
	}

	logger.Info("shutting down daemon")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", slog.String("error", err.Error()))
	}
	if natsClient != nil {
		if err := natsClient.Close(); err != nil {
			logger.Warn("NATS close error", slog.String("error", err.Error()))
		}
	}

	logger.Info("daemon stopped")
	return nil
}

// runFeedsWorker imports the configured feeds at startup and on every interval.
func runFeedsWorker(ctx context.Context, rt *appRuntime, logger *slog.Logger) {
	interval := rt.cfg.Feeds.UpdateInterval
	logger.Info("starting feeds worker",
		slog.Duration("interval", interval),
		slog.Int("sources", len(rt.cfg.Feeds.Sources)),
	)

	updateFeeds(ctx, rt, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("feeds worker stopped")
			return
		case <-ticker.C:
			updateFeeds(ctx, rt, logger)
		}
	}
}

// updateFeeds imports every source; one failing source does not stop the rest.
func updateFeeds(ctx context.Context, rt *appRuntime, logger *slog.Logger) {
	for _, source := range rt.cfg.Feeds.Sources {
		if ctx.Err() != nil {
			return
		}

		result, err := rt.importSource(ctx, source, rt.cfg.Feeds.Format)
		if err != nil {
			logger.Error("feed update failed",
				slog.String("source", observability.RedactURL(source)),
				slog.String("error", err.Error()),
			)
			continue
		}

		logger.Info("feed update complete",
			slog.String("source", observability.RedactURL(source)),
			slog.Int("imported", result.Imported),
			slog.Int("skipped", result.Skipped),
		)
	}
}
