// ABOUTME: File and signature administration shared by the HTTP API, NATS, and CLI
// ABOUTME: Each mutation emits an audit event

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/feeds"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/observability"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/storage"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

// AddFile stores content under a new file ID.
func (s *Service) AddFile(ctx context.Context, name string, content []byte) (*types.File, error) {
	file := types.NewFile(name, content)
	if err := s.files.Put(ctx, file, content); err != nil {
		return nil, fmt.Errorf("storing file: %w", err)
	}
	s.audit.LogFileUpload(ctx, file.ID, file.SHA256, file.Size)
	return file, nil
}

// GetFile returns file metadata and its last scan result.
func (s *Service) GetFile(ctx context.Context, id string) (*types.File, error) {
	return s.files.Get(ctx, id)
}

// ListFiles returns metadata for every stored file.
func (s *Service) ListFiles(ctx context.Context) ([]*types.File, error) {
	return s.files.List(ctx)
}

// DeleteFile removes a file and its content. The file lock is held so an
// in-flight scan cannot persist onto a deleted file.
func (s *Service) DeleteFile(ctx context.Context, id string) error {
	release, err := s.locker.Lock(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: file %s: %w", ErrLockFailed, id, err)
	}
	defer release()

	if err := s.files.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.LogFileDelete(ctx, id)
	return nil
}

// AddSignature creates or replaces a catalog signature.
func (s *Service) AddSignature(ctx context.Context, sig *types.Signature) error {
	action := observability.ActionCreate
	if sig.ID != "" {
		if _, err := s.signatures.Get(ctx, sig.ID); err == nil {
			action = observability.ActionUpdate
		}
	}
	if err := s.signatures.Put(ctx, sig); err != nil {
		return err
	}
	s.audit.LogSignatureChange(ctx, action, sig.ID, string(sig.Status))
	return nil
}

// GetSignature returns one catalog signature.
func (s *Service) GetSignature(ctx context.Context, id string) (*types.Signature, error) {
	return s.signatures.Get(ctx, id)
}

// ListSignatures returns catalog signatures in catalog order, filtered by
// status unless status is empty.
func (s *Service) ListSignatures(ctx context.Context, status types.SignatureStatus) ([]*types.Signature, error) {
	return s.signatures.List(ctx, status)
}

// SignatureHistory returns every recorded version of a signature, oldest first.
func (s *Service) SignatureHistory(ctx context.Context, id string) ([]storage.SignatureVersion, error) {
	return s.signatures.History(ctx, id)
}

// SignaturesChangedSince returns signatures of any status updated after since.
func (s *Service) SignaturesChangedSince(ctx context.Context, since time.Time) ([]*types.Signature, error) {
	return s.signatures.DiffSince(ctx, since)
}

// SetSignatureStatus moves a signature through its lifecycle.
func (s *Service) SetSignatureStatus(ctx context.Context, id string, status types.SignatureStatus) (*types.Signature, error) {
	sig, err := s.signatures.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	action := observability.ActionUpdate
	if status == types.SignatureStatusDeleted {
		action = observability.ActionDelete
	}
	s.audit.LogSignatureChange(ctx, action, id, string(status))
	return sig, nil
}

// ImportResult summarizes a feed import.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []error
}

// ImportSignatures stores every parsed signature. Rows the feed rejected and
// signatures the catalog refuses are counted as skipped.
func (s *Service) ImportSignatures(ctx context.Context, source string, feed *feeds.FeedResult) (*ImportResult, error) {
	result := &ImportResult{Skipped: len(feed.Errors)}
	for _, rowErr := range feed.Errors {
		result.Errors = append(result.Errors, rowErr)
	}

	for _, sig := range feed.Signatures {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.signatures.Put(ctx, sig); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Errorf("signature %s: %w", sig.ID, err))
			continue
		}
		result.Imported++
	}

	s.audit.LogSignatureImport(ctx, source, result.Imported, result.Skipped)
	return result, nil
}
