// ABOUTME: Turns scan requests into service calls and service results into replies
// ABOUTME: Transport independent so it can be tested without a NATS server

package queue

import (
	"context"
	"time"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/observability"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/service"
)

// Scanner scans stored files.
type Scanner interface {
	Scan(ctx context.Context, fileID, signatureID string) (*service.ScanOutcome, error)
}

// Handler processes scan requests.
type Handler struct {
	scanner Scanner
}

// NewHandler creates a new message handler.
func NewHandler(scanner Scanner) *Handler {
	return &Handler{scanner: scanner}
}

// ProcessRequest processes a single scan request and returns the response.
func (h *Handler) ProcessRequest(ctx context.Context, req ScanRequest) ScanResponse {
	start := time.Now()
	resp := ScanResponse{
		RequestID: req.RequestID,
		FileID:    req.FileID,
	}

	if req.FileID == "" {
		resp.Status = StatusError
		resp.Error = "file_id is required"
		resp.ErrorCode = observability.CodeInvalidRequest
		resp.ScannedAt = time.Now().UTC()
		return resp
	}

	outcome, err := h.scanner.Scan(ctx, req.FileID, req.SignatureID)
	resp.ScanTimeMs = float64(time.Since(start).Microseconds()) / 1000

	if outcome != nil && outcome.Report != nil {
		report := outcome.Report
		resp.Records = report.Records
		resp.Persisted = outcome.Persisted
		resp.ScannedAt = report.ScannedAt
		resp.Status = StatusClean
		if report.Infected() {
			resp.Status = StatusInfected
		}
	} else {
		resp.Status = StatusError
		resp.ScannedAt = time.Now().UTC()
	}

	if err != nil {
		resp.Error = err.Error()
		resp.ErrorCode = service.ErrorCode(err)
	}

	return resp
}

// ProcessBatch processes every file in order. Cancellation stops the batch;
// remaining files are reported as errors.
func (h *Handler) ProcessBatch(ctx context.Context, req BatchScanRequest) BatchScanResponse {
	start := time.Now()
	resp := BatchScanResponse{
		RequestID: req.RequestID,
		Results:   make([]ScanResponse, 0, len(req.FileIDs)),
	}

	for _, fileID := range req.FileIDs {
		if err := ctx.Err(); err != nil {
			resp.Results = append(resp.Results, ScanResponse{
				RequestID: req.RequestID,
				FileID:    fileID,
				Status:    StatusError,
				Error:     err.Error(),
				ErrorCode: service.ErrorCode(err),
				ScannedAt: time.Now().UTC(),
			})
			continue
		}

		resp.Results = append(resp.Results, h.ProcessRequest(ctx, ScanRequest{
			FileID:      fileID,
			SignatureID: req.SignatureID,
			RequestID:   req.RequestID,
		}))
	}

	resp.TotalTimeMs = float64(time.Since(start).Microseconds()) / 1000
	return resp
}
