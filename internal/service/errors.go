// ABOUTME: Maps service errors to stable error codes for transport replies
// ABOUTME: Shared by the HTTP API and the NATS handler

package service

import (
	"errors"

	"github.com/hikmaai-io/hikmaai-bytescan/internal/observability"
)

// ErrorCode returns the observability code for err.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFileNotFound):
		return observability.CodeFileNotFound
	case errors.Is(err, ErrSignatureNotFound):
		return observability.CodeSignatureNotFound
	case errors.Is(err, ErrPersistFailed):
		return observability.CodePersistFailed
	case errors.Is(err, ErrLockFailed):
		return observability.CodeLockFailed
	default:
		return observability.CodeInternal
	}
}
