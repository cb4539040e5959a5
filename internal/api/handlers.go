// ABOUTME: HTTP handlers for hikmaai-bytescan API endpoints
// ABOUTME: File upload and scanning, signature administration, health, and metrics

package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/engine"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/observability"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/resilience"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/service"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/storage"
	"github.com/hikmaai-io/hikmaai-bytescan/internal/types"
)

// StatsProvider reports storage statistics for health checks.
type StatsProvider interface {
	Stats() (*storage.StoreStats, error)
}

// BreakerReporter exposes a circuit breaker, such as the Redis lock's.
type BreakerReporter interface {
	BreakerState() resilience.State
	BreakerStatistics() resilience.Statistics
}

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	engine      *engine.Engine
	store       StatsProvider
	breaker     BreakerReporter
	maxFileSize int64
	logger      *slog.Logger
}

// HandlerConfig holds configuration for API handlers.
type HandlerConfig struct {
	Service     *service.Service
	Engine      *engine.Engine
	Store       StatsProvider
	Breaker     BreakerReporter
	MaxFileSize int64
	Logger      *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 100 * 1024 * 1024 // 100MB default
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		service:     cfg.Service,
		engine:      cfg.Engine,
		store:       cfg.Store,
		breaker:     cfg.Breaker,
		maxFileSize: cfg.MaxFileSize,
		logger:      cfg.Logger,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/files", h.HandleUploadFile)
	mux.HandleFunc("GET /api/v1/files", h.HandleListFiles)
	mux.HandleFunc("GET /api/v1/files/{id}", h.HandleGetFile)
	mux.HandleFunc("DELETE /api/v1/files/{id}", h.HandleDeleteFile)
	mux.HandleFunc("POST /api/v1/files/{id}/scan", h.HandleScanFile)
	mux.HandleFunc("POST /api/v1/scan", h.HandleScanContent)

	mux.HandleFunc("POST /api/v1/signatures", h.HandleCreateSignature)
	mux.HandleFunc("GET /api/v1/signatures", h.HandleListSignatures)
	mux.HandleFunc("GET /api/v1/signatures/{id}", h.HandleGetSignature)
	mux.HandleFunc("PATCH /api/v1/signatures/{id}/status", h.HandleSetSignatureStatus)
	mux.HandleFunc("GET /api/v1/signatures/{id}/history", h.HandleSignatureHistory)

	mux.HandleFunc("GET /api/v1/health", h.HandleHealth)
	mux.HandleFunc("GET /api/v1/metrics", h.HandleMetrics)
}

// ScanResponse is the body returned by scan endpoints.
type ScanResponse struct {
	FileID             string              `json:"file_id,omitempty"`
	Status             string              `json:"status"`
	Records            []types.MatchRecord `json:"records"`
	Persisted          bool                `json:"persisted"`
	Cached             bool                `json:"cached,omitempty"`
	CatalogFingerprint string              `json:"catalog_fingerprint"`
	ScannedAt          time.Time           `json:"scanned_at"`
	Error              string              `json:"error,omitempty"`
	ErrorCode          string              `json:"error_code,omitempty"`
}

func scanResponse(report *types.ScanReport) ScanResponse {
	status := "clean"
	if report.Infected() {
		status = "infected"
	}
	return ScanResponse{
		FileID:             report.FileID,
		Status:             status,
		Records:            report.Records,
		CatalogFingerprint: report.CatalogFingerprint,
		ScannedAt:          report.ScannedAt,
	}
}

// readUpload reads the multipart "file" field within the size limit.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)

	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		return "", nil, fmt.Errorf("parsing form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("reading file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("reading file: %w", err)
	}
	return header.Filename, content, nil
}

// HandleUploadFile stores an uploaded file.
// POST /api/v1/files
func (h *Handler) HandleUploadFile(w http.ResponseWriter, r *http.Request) {
	name, content, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, err := h.service.AddFile(r.Context(), name, content)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/files/"+file.ID)
	writeJSON(w, http.StatusCreated, file)
}

// HandleListFiles lists stored files without content.
// GET /api/v1/files
func (h *Handler) HandleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.service.ListFiles(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if files == nil {
		files = []*types.File{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files, "count": len(files)})
}

// HandleGetFile returns file metadata and its last scan result.
// GET /api/v1/files/{id}
func (h *Handler) HandleGetFile(w http.ResponseWriter, r *http.Request) {
	file, err := h.service.GetFile(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, file)
}

// HandleDeleteFile removes a file.
// DELETE /api/v1/files/{id}
func (h *Handler) HandleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteFile(r.Context(), r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleScanFile scans a stored file and persists the result.
// POST /api/v1/files/{id}/scan[?signature_id=]
// A report whose persistence failed is returned with status 500 and persisted=false.
func (h *Handler) HandleScanFile(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.service.Scan(r.Context(), r.PathValue("id"), r.URL.Query().Get("signature_id"))
	if outcome == nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := scanResponse(outcome.Report)
	resp.Persisted = outcome.Persisted
	resp.Cached = outcome.Cached

	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		resp.ErrorCode = service.ErrorCode(err)
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

// HandleScanContent scans an uploaded file without storing anything.
// POST /api/v1/scan[?signature_id=]
func (h *Handler) HandleScanContent(w http.ResponseWriter, r *http.Request) {
	_, content, err := h.readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.service.ScanContent(r.Context(), content, r.URL.Query().Get("signature_id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scanResponse(report))
}

// SignatureRequest is the body of POST /api/v1/signatures. Byte fields are hex.
// Either Pattern (split at AnchorLength) or Anchor with the remainder fields is required.
type SignatureRequest struct {
	ID              string `json:"id,omitempty"`
	ThreatName      string `json:"threat_name"`
	Pattern         string `json:"pattern,omitempty"`
	AnchorLength    int    `json:"anchor_length,omitempty"`
	Anchor          string `json:"anchor,omitempty"`
	RemainderLength int    `json:"remainder_length,omitempty"`
	RemainderDigest string `json:"remainder_digest,omitempty"`
	FileType        string `json:"file_type,omitempty"`
	OffsetStart     *int   `json:"offset_start,omitempty"`
	OffsetEnd       *int   `json:"offset_end,omitempty"`
	Status          string `json:"status,omitempty"`
}

// Signature validates the request and builds the catalog signature.
func (req SignatureRequest) Signature() (*types.Signature, error) {
	if req.ThreatName == "" {
		return nil, types.ErrMissingThreatName
	}

	var sig *types.Signature
	if req.Pattern != "" {
		pattern, err := hex.DecodeString(req.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern: %w", err)
		}
		anchorLen := req.AnchorLength
		if anchorLen == 0 {
			anchorLen = min(8, len(pattern))
		}
		if sig, err = types.NewSignature(req.ThreatName, pattern, anchorLen); err != nil {
			return nil, err
		}
	} else {
		anchor, err := hex.DecodeString(req.Anchor)
		if err != nil {
			return nil, fmt.Errorf("anchor: %w", err)
		}
		if _, err := types.ParseDigest(req.RemainderDigest); err != nil {
			return nil, fmt.Errorf("remainder_digest: %w", err)
		}
		sig = &types.Signature{
			ID:              uuid.New().String(),
			ThreatName:      req.ThreatName,
			Anchor:          anchor,
			RemainderLength: req.RemainderLength,
			RemainderDigest: strings.ToLower(req.RemainderDigest),
			Status:          types.SignatureStatusActual,
		}
	}

	if req.ID != "" {
		sig.ID = req.ID
	}
	sig.FileType = req.FileType
	sig.WithOffsets(req.OffsetStart, req.OffsetEnd)
	if req.Status != "" {
		status, err := types.ParseSignatureStatus(req.Status)
		if err != nil {
			return nil, err
		}
		sig.Status = status
	}

	if err := sig.Validate(); err != nil {
		return nil, err
	}
	return sig, nil
}

// HandleCreateSignature creates or replaces a signature.
// POST /api/v1/signatures
func (h *Handler) HandleCreateSignature(w http.ResponseWriter, r *http.Request) {
	var req SignatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	sig, err := req.Signature()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("validation error: %v", err))
		return
	}

	if err := h.service.AddSignature(r.Context(), sig); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/signatures/"+sig.ID)
	writeJSON(w, http.StatusCreated, sig)
}

// HandleListSignatures lists signatures in catalog order.
// GET /api/v1/signatures[?status=][&since=RFC3339]
func (h *Handler) HandleListSignatures(w http.ResponseWriter, r *http.Request) {
	var (
		sigs []*types.Signature
		err  error
	)

	if since := r.URL.Query().Get("since"); since != "" {
		ts, perr := time.Parse(time.RFC3339, since)
		if perr != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid since: %v", perr))
			return
		}
		sigs, err = h.service.SignaturesChangedSince(r.Context(), ts)
	} else {
		var status types.SignatureStatus
		if s := r.URL.Query().Get("status"); s != "" {
			if status, err = types.ParseSignatureStatus(s); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		sigs, err = h.service.ListSignatures(r.Context(), status)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if sigs == nil {
		sigs = []*types.Signature{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"signatures": sigs, "count": len(sigs)})
}

// HandleGetSignature returns one signature.
// GET /api/v1/signatures/{id}
func (h *Handler) HandleGetSignature(w http.ResponseWriter, r *http.Request) {
	sig, err := h.service.GetSignature(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

// HandleSetSignatureStatus changes a signature's lifecycle status.
// PATCH /api/v1/signatures/{id}/status
func (h *Handler) HandleSetSignatureStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	status, err := types.ParseSignatureStatus(body.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sig, err := h.service.SetSignatureStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

// HandleSignatureHistory returns every version of a signature.
// GET /api/v1/signatures/{id}/history
func (h *Handler) HandleSignatureHistory(w http.ResponseWriter, r *http.Request) {
	versions, err := h.service.SignatureHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

// HandleHealth handles health check requests.
// GET /api/v1/health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := make(map[string]any)

	if h.store != nil {
		stats, err := h.store.Stats()
		if err != nil {
			status = "degraded"
			checks["store"] = fmt.Sprintf("error: %v", err)
		} else {
			checks["store"] = fmt.Sprintf("ok (signatures: %d, files: %d)", stats.SignatureCount, stats.FileCount)
		}
	}

	if h.breaker != nil {
		state := h.breaker.BreakerState()
		if state == resilience.StateOpen {
			status = "degraded"
		}
		checks["redis_lock"] = state.String()
	}

	if h.engine != nil {
		stats := h.engine.Stats()
		checks["engine"] = fmt.Sprintf("ok (scans: %d, defects: %d)", stats.Scans, stats.Defects)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

// HandleMetrics returns scan counters and latency percentiles.
// GET /api/v1/metrics
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := h.service.Metrics()
	body := map[string]any{
		"scans":     metrics.Snapshot(),
		"latencies": metrics.Latencies(),
	}
	if h.engine != nil {
		body["engine"] = h.engine.Stats()
	}
	if h.breaker != nil {
		body["redis_lock"] = h.breaker.BreakerStatistics()
	}
	writeJSON(w, http.StatusOK, body)
}

// writeServiceError maps service errors onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrFileNotFound), errors.Is(err, service.ErrSignatureNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrLockFailed):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		observability.LogWithContext(r.Context(), h.logger, slog.LevelError, "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, status, map[string]string{
		"error":      err.Error(),
		"error_code": service.ErrorCode(err),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":      message,
		"error_code": observability.CodeInvalidRequest,
	})
}
