// ABOUTME: Correlation IDs carried through HTTP requests and NATS messages
// ABOUTME: Accepted from the caller when present, generated otherwise

package observability

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// CorrelationIDHeader is the header carrying the ID on HTTP and NATS.
const CorrelationIDHeader = "X-Correlation-ID"

type correlationIDKey struct{}

// CorrelationID identifies one logical request across components.
type CorrelationID string

// String returns the ID.
func (c CorrelationID) String() string {
	return string(c)
}

// NewCorrelationID generates a random ID.
func NewCorrelationID() CorrelationID {
	return CorrelationID(uuid.New().String())
}

// WithCorrelationID attaches id to ctx.
func WithCorrelationID(ctx context.Context, id CorrelationID) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// FromContext returns the ID in ctx, or "".
func FromContext(ctx context.Context) CorrelationID {
	id, _ := ctx.Value(correlationIDKey{}).(CorrelationID)
	return id
}

// EnsureCorrelationID returns ctx carrying candidate, a freshly generated ID
// when candidate is empty, or the ID already present in ctx.
func EnsureCorrelationID(ctx context.Context, candidate string) (context.Context, CorrelationID) {
	if candidate != "" {
		id := CorrelationID(candidate)
		return WithCorrelationID(ctx, id), id
	}
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := NewCorrelationID()
	return WithCorrelationID(ctx, id), id
}

// CorrelationMiddleware propagates X-Correlation-ID into the request context
// and echoes it on the response.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, id := EnsureCorrelationID(r.Context(), r.Header.Get(CorrelationIDHeader))
		w.Header().Set(CorrelationIDHeader, id.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
