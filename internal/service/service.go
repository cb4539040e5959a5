// ABOUTME: Scan orchestration: lock, fetch, snapshot, scan, persist, publish
// ABOUTME: Also fronts file and signature administration so every surface shares audit and metrics

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/engine"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/observability"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/storage"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

// Sentinel errors. The not-found errors alias the storage ones so errors.Is
// works whichever layer the caller holds.
var (
	ErrFileNotFound      = storage.ErrFileNotFound
	ErrSignatureNotFound = storage.ErrSignatureNotFound
	ErrPersistFailed     = errors.New("persisting scan result failed")
	ErrLockFailed        = errors.New("file lock not acquired")
)

// FileRepository stores files and their scan state.
type FileRepository interface {
	Put(ctx context.Context, file *types.File, content []byte) error
	Get(ctx context.Context, id string) (*types.File, error)
	GetContent(ctx context.Context, id string) ([]byte, error)
	List(ctx context.Context) ([]*types.File, error)
	Delete(ctx context.Context, id string) error
	PersistScanResult(ctx context.Context, id string, report *types.ScanReport) error
}

// SignatureRepository is the signature catalog.
type SignatureRepository interface {
	ActiveSignatures(ctx context.Context, id string) ([]*types.Signature, error)
	Put(ctx context.Context, sig *types.Signature) error
	Get(ctx context.Context, id string) (*types.Signature, error)
	SetStatus(ctx context.Context, id string, status types.SignatureStatus) (*types.Signature, error)
	List(ctx context.Context, status types.SignatureStatus) ([]*types.Signature, error)
	History(ctx context.Context, id string) ([]storage.SignatureVersion, error)
	DiffSince(ctx context.Context, since time.Time) ([]*types.Signature, error)
}

// ReportCache short-circuits rescans of identical content against an identical catalog.
type ReportCache interface {
	Get(ctx context.Context, key string) (*types.ScanReport, bool, error)
	Put(ctx context.Context, key string, report *types.ScanReport) error
}

// EventPublisher announces completed scans.
type EventPublisher interface {
	PublishScan(ctx context.Context, report *types.ScanReport, persisted bool) (string, error)
}

// Config wires the service's collaborators. Engine, Files, and Signatures are required.
type Config struct {
	Engine     *engine.Engine
	Files      FileRepository
	Signatures SignatureRepository

	// Locker defaults to a LocalLocker.
	Locker Locker

	// Optional collaborators.
	Cache   ReportCache
	Events  EventPublisher
	Metrics *observability.ScanMetrics
	Audit   *observability.AuditLogger
	Logger  *slog.Logger

	Mode engine.MatchMode
}

// ScanOutcome is the result of Scan. Report is set whenever scanning ran,
// even when persisting it failed.
type ScanOutcome struct {
	Report     *types.ScanReport
	Persisted  bool
	PersistErr error
	Cached     bool
}

// Service runs scans against stored files.
type Service struct {
	engine     *engine.Engine
	files      FileRepository
	signatures SignatureRepository
	locker     Locker
	cache      ReportCache
	events     EventPublisher
	metrics    *observability.ScanMetrics
	audit      *observability.AuditLogger
	logger     *observability.ContextLogger
	mode       engine.MatchMode
}

// New creates a scan service.
func New(cfg Config) (*Service, error) {
	if cfg.Engine == nil || cfg.Files == nil || cfg.Signatures == nil {
		return nil, errors.New("engine, files, and signatures are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	locker := cfg.Locker
	if locker == nil {
		locker = NewLocalLocker()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NewScanMetrics()
	}
	audit := cfg.Audit
	if audit == nil {
		audit = observability.NewAuditLogger(logger)
	}

	return &Service{
		engine:     cfg.Engine,
		files:      cfg.Files,
		signatures: cfg.Signatures,
		locker:     locker,
		cache:      cfg.Cache,
		events:     cfg.Events,
		metrics:    metrics,
		audit:      audit,
		logger:     observability.NewContextLogger(logger).With(slog.String("component", "scan_service")),
		mode:       cfg.Mode,
	}, nil
}

// Metrics returns the service's metrics collector.
func (s *Service) Metrics() *observability.ScanMetrics {
	return s.metrics
}

// Scan scans a stored file against the active catalog, or against a single
// signature when signatureID is set, and persists the result on the file.
//
// Scans of the same file are serialized. Once content and snapshot are
// loaded, scanning and persisting run to completion even if ctx ends, so a
// file never carries a result from a half-finished scan.
func (s *Service) Scan(ctx context.Context, fileID, signatureID string) (*ScanOutcome, error) {
	ctx, span := observability.StartSpan(ctx, "scan.file",
		trace.WithAttributes(
			attribute.String("file.id", fileID),
			attribute.String("signature.id", signatureID),
		),
	)
	defer span.End()

	done := s.metrics.ScanStarted()
	defer done()
	start := time.Now()

	outcome, err := s.scan(ctx, fileID, signatureID)
	if err != nil && (outcome == nil || outcome.Report == nil) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordFailure("file", time.Since(start))
		s.audit.LogScanFailure(ctx, fileID, err.Error())
		return nil, err
	}

	report := outcome.Report
	s.metrics.RecordScan("file", time.Since(start), report.BytesScanned, report.MatchedCount(), outcome.Persisted)
	s.audit.LogScan(ctx, fileID, len(report.Records), report.MatchedCount(), outcome.Persisted)
	span.SetAttributes(
		attribute.Int("matched", report.MatchedCount()),
		attribute.Bool("persisted", outcome.Persisted),
		attribute.Bool("cached", outcome.Cached),
	)

	if s.events != nil {
		if _, perr := s.events.PublishScan(context.WithoutCancel(ctx), report, outcome.Persisted); perr != nil {
			s.logger.Warn(ctx, "publishing scan event failed",
				slog.String("file_id", fileID),
				slog.String("error", perr.Error()),
			)
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return outcome, err
}

func (s *Service) scan(ctx context.Context, fileID, signatureID string) (*ScanOutcome, error) {
	release, err := s.locker.Lock(ctx, fileID)
	if err != nil {
		errCtx := observability.NewErrorContext(observability.CodeLockFailed, observability.CategoryTransient, "lock").
			WithError(err).
			WithDetails(map[string]any{"file_id": fileID})
		s.logger.Warn(ctx, "file lock not acquired", slog.Any("error_context", errCtx))
		return nil, fmt.Errorf("%w: file %s: %w", ErrLockFailed, fileID, err)
	}
	defer release()

	file, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("loading file %s: %w", fileID, err)
	}
	content, err := s.files.GetContent(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("loading content of file %s: %w", fileID, err)
	}

	sigs, err := s.signatures.ActiveSignatures(ctx, signatureID)
	if err != nil {
		return nil, fmt.Errorf("loading signatures: %w", err)
	}

	work := context.WithoutCancel(ctx)
	outcome := &ScanOutcome{}

	key := storage.ReportKey(file.SHA256, engine.Fingerprint(sigs), s.mode.String())
	if cached := s.cachedReport(work, key); cached != nil {
		outcome.Report = cached.WithFileID(fileID)
		outcome.Cached = true
	} else {
		report, err := s.engine.Scan(work, content, sigs, engine.ScanOptions{FileID: fileID, Mode: s.mode})
		if err != nil {
			return nil, fmt.Errorf("scanning file %s: %w", fileID, err)
		}
		outcome.Report = report
		s.storeReport(work, key, report)
	}

	if err := s.files.PersistScanResult(work, fileID, outcome.Report); err != nil {
		errCtx := observability.NewErrorContext(observability.CodePersistFailed, observability.CategoryTransient, "persist").
			WithError(err).
			WithDetails(map[string]any{"file_id": fileID})
		s.logger.Error(ctx, "scan result not persisted", slog.Any("error_context", errCtx))
		outcome.PersistErr = err
		return outcome, fmt.Errorf("%w: file %s: %w", ErrPersistFailed, fileID, err)
	}
	outcome.Persisted = true

	return outcome, nil
}

func (s *Service) cachedReport(ctx context.Context, key string) *types.ScanReport {
	if s.cache == nil {
		return nil
	}
	report, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn(ctx, "report cache read failed", slog.String("error", err.Error()))
		return nil
	}
	s.metrics.RecordCache(found)
	if !found {
		return nil
	}
	return report
}

func (s *Service) storeReport(ctx context.Context, key string, report *types.ScanReport) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(ctx, key, report); err != nil {
		s.logger.Warn(ctx, "report cache write failed", slog.String("error", err.Error()))
	}
}

// ScanContent scans bytes that are not stored. Nothing is locked or persisted.
func (s *Service) ScanContent(ctx context.Context, content []byte, signatureID string) (*types.ScanReport, error) {
	ctx, span := observability.StartSpan(ctx, "scan.content",
		trace.WithAttributes(attribute.Int("content.size", len(content))),
	)
	defer span.End()

	done := s.metrics.ScanStarted()
	defer done()
	start := time.Now()

	sigs, err := s.signatures.ActiveSignatures(ctx, signatureID)
	if err != nil {
		s.metrics.RecordFailure("content", time.Since(start))
		return nil, fmt.Errorf("loading signatures: %w", err)
	}

	report, err := s.engine.Scan(ctx, content, sigs, engine.ScanOptions{Mode: s.mode})
	if err != nil {
		span.RecordError(err)
		s.metrics.RecordFailure("content", time.Since(start))
		return nil, err
	}

	// Ad-hoc scans have nothing to persist, so they never count as persist failures.
	s.metrics.RecordScan("content", time.Since(start), len(content), report.MatchedCount(), true)
	return report, nil
}
