// ABOUTME: Structured error context with stable codes for scan pipeline failures
// ABOUTME: Implements error and slog.LogValuer so failures log as one group

package observability

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// Error categories.
const (
	CategoryTransient = "transient"
	CategoryPermanent = "permanent"
	CategoryUserError = "user_error"
)

// Error codes emitted by the scan pipeline.
const (
	CodeFileNotFound      = "FILE_NOT_FOUND"
	CodeSignatureNotFound = "SIGNATURE_NOT_FOUND"
	CodeSignatureConfig   = "SIGNATURE_CONFIG"
	CodeVerifyFailed      = "VERIFY_FAILED"
	CodePersistFailed     = "PERSIST_FAILED"
	CodeLockFailed        = "LOCK_FAILED"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeInternal          = "INTERNAL"
)

// ErrorContext attaches a code, category, and operation to an error.
type ErrorContext struct {
	Code       string `json:"code"`
	Category   string `json:"category"`
	Operation  string `json:"operation"`
	StackTrace string `json:"stack_trace,omitempty"`
	Details    any    `json:"details,omitempty"`
	Err        error  `json:"-"`
}

// NewErrorContext creates an error context.
func NewErrorContext(code, category, operation string) *ErrorContext {
	return &ErrorContext{
		Code:      code,
		Category:  category,
		Operation: operation,
	}
}

// WithStack captures the caller's stack, skipping runtime frames.
func (e *ErrorContext) WithStack() *ErrorContext {
	var pcs [32]uintptr
	n := runtime.Callers(2, pcs[:])

	var sb strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			fmt.Fprintf(&sb, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	e.StackTrace = sb.String()
	return e
}

// WithDetails attaches extra context.
func (e *ErrorContext) WithDetails(details any) *ErrorContext {
	e.Details = details
	return e
}

// WithError attaches the underlying error.
func (e *ErrorContext) WithError(err error) *ErrorContext {
	e.Err = err
	return e
}

// IsRetryable reports whether the failure is transient.
func (e *ErrorContext) IsRetryable() bool {
	return e.Category == CategoryTransient
}

// Error implements the error interface.
func (e *ErrorContext) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Operation, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Operation)
}

// Unwrap returns the underlying error.
func (e *ErrorContext) Unwrap() error {
	return e.Err
}

// LogValue implements slog.LogValuer.
func (e *ErrorContext) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("code", e.Code),
		slog.String("category", e.Category),
		slog.String("operation", e.Operation),
		slog.Bool("is_retryable", e.IsRetryable()),
	}
	if e.StackTrace != "" {
		attrs = append(attrs, slog.String("stack_trace", e.StackTrace))
	}
	if e.Details != nil {
		attrs = append(attrs, slog.Any("details", e.Details))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}
