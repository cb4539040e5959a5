// ABOUTME: Scan engine running the rolling hash pipeline over one content buffer
// ABOUTME: Builds the index, fans window groups out to workers, aggregates the report

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/observability"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

// EngineConfig holds configuration for the scan engine.
type EngineConfig struct {
	// Concurrency bounds how many window groups are scanned in parallel.
	// Zero uses GOMAXPROCS.
	Concurrency int

	// Logger for configuration defects and verification failures.
	Logger *slog.Logger
}

// ScanOptions controls a single scan invocation.
type ScanOptions struct {
	// FileID is copied into the report.
	FileID string

	// Mode selects first-occurrence (default) or all-occurrence reporting.
	Mode MatchMode
}

// EngineStats contains statistics about the engine.
type EngineStats struct {
	Scans        int64
	BytesScanned int64
	HashHits     int64
	Collisions   int64
	Verified     int64
	Failures     int64
	Defects      int64
}

type engineCounters struct {
	scans        atomic.Int64
	bytesScanned atomic.Int64
	hashHits     atomic.Int64
	collisions   atomic.Int64
	verified     atomic.Int64
	failures     atomic.Int64
	defects      atomic.Int64
}

// Engine matches signature snapshots against content.
// It holds no per-scan state and is safe for concurrent use.
type Engine struct {
	params HashParams
	config EngineConfig
	logger *slog.Logger
	stats  engineCounters
}

// NewEngine creates a new scan engine with the given configuration.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.GOMAXPROCS(0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		params: DefaultHashParams(),
		config: cfg,
		logger: logger,
	}
}

// Scan matches sigs against content and returns the report in snapshot order.
// The snapshot and content must not be modified during the call.
func (e *Engine) Scan(ctx context.Context, content []byte, sigs []*types.Signature, opts ScanOptions) (*types.ScanReport, error) {
	ctx, span := observability.StartSpan(ctx, "engine.scan",
		trace.WithAttributes(
			attribute.Int("content.size", len(content)),
			attribute.Int("signatures", len(sigs)),
			attribute.String("mode", opts.Mode.String()),
		),
	)
	defer span.End()

	start := time.Now()
	e.stats.scans.Add(1)
	e.stats.bytesScanned.Add(int64(len(content)))

	idx := BuildIndex(e.params, sigs)

	defective := make(map[int]bool, len(idx.Defects()))
	for _, d := range idx.Defects() {
		defective[d.Position] = true
		e.stats.defects.Add(1)
		errCtx := observability.NewErrorContext(observability.CodeSignatureConfig, observability.CategoryPermanent, "index_build").
			WithError(d.Err).
			WithDetails(map[string]any{"signature_id": d.SignatureID, "threat_name": d.ThreatName})
		observability.LogWithContext(ctx, e.logger, slog.LevelWarn, "signature excluded from scan",
			slog.Any("defect", errCtx),
		)
	}

	outcomes := make([]Outcome, idx.Len())
	scanner := &MatchScanner{
		params:   e.params,
		verifier: &MatchVerifier{stats: &e.stats},
		mode:     opts.Mode,
		stats:    &e.stats,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)
	for _, group := range idx.Groups() {
		group := group
		g.Go(func() error {
			_, gspan := observability.StartSpan(gctx, "engine.group",
				trace.WithAttributes(
					attribute.Int("window", group.Window),
					attribute.Int("signatures", group.Size()),
				),
			)
			defer gspan.End()
			return scanner.scanGroup(gctx, content, group, outcomes)
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("scanning content: %w", err)
	}

	for pos, out := range outcomes {
		if out.Err == nil {
			continue
		}
		e.stats.failures.Add(1)
		errCtx := observability.NewErrorContext(observability.CodeVerifyFailed, observability.CategoryPermanent, "verify").
			WithError(out.Err).
			WithDetails(map[string]any{"signature_id": sigs[pos].ID})
		observability.LogWithContext(ctx, e.logger, slog.LevelWarn, "signature verification failed",
			slog.Any("failure", errCtx),
		)
	}

	agg := &ResultAggregator{mode: opts.Mode}
	records := agg.aggregate(sigs, outcomes, defective)
	report := types.NewScanReport(opts.FileID, records, len(content)).
		WithFingerprint(Fingerprint(sigs))

	span.SetAttributes(attribute.Int("matched", report.MatchedCount()))
	observability.LogWithContext(ctx, e.logger, slog.LevelDebug, "content scanned",
		slog.String("file_id", opts.FileID),
		slog.Int("bytes", len(content)),
		slog.Int("groups", len(idx.Groups())),
		slog.Int("matched", report.MatchedCount()),
		slog.Duration("duration", time.Since(start)),
	)

	return report, nil
}

// Stats returns statistics about the engine.
func (e *Engine) Stats() EngineStats {
	return EngineStats{
		Scans:        e.stats.scans.Load(),
		BytesScanned: e.stats.bytesScanned.Load(),
		HashHits:     e.stats.hashHits.Load(),
		Collisions:   e.stats.collisions.Load(),
		Verified:     e.stats.verified.Load(),
		Failures:     e.stats.failures.Load(),
		Defects:      e.stats.defects.Load(),
	}
}
