// Package trace carries correlation identifiers from a caller's context onto
// outbound REST requests: an X-Request-ID style header and W3C trace context.
package trace

import (
	"context"
	nethttp "net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// contextKey is the type for context keys to avoid collisions
type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	traceParentKey contextKey = "traceparent"

	// HeaderXRequestID is the default header name for request correlation
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = "traceparent"
)

// WithRequestID stores a request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// NewRequestID generates a random request ID.
func NewRequestID() string {
	return uuid.NewString()
}

// EnsureRequestID returns the context's request ID or a freshly generated one.
func EnsureRequestID(ctx context.Context) string {
	if id, ok := RequestIDFromContext(ctx); ok {
		return id
	}
	return NewRequestID()
}

// WithTraceParent stores an explicit traceparent value, used when no
// OpenTelemetry span is active in the context.
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return context.WithValue(ctx, traceParentKey, traceParent)
}

// ParentFromContext returns an explicit traceparent stored in ctx, if any.
func ParentFromContext(ctx context.Context) (string, bool) {
	if tp, ok := ctx.Value(traceParentKey).(string); ok && tp != "" {
		return tp, true
	}
	return "", false
}

// Inject writes correlation headers into h. The request ID header is only
// set when absent so callers can pin their own value. Trace context comes
// from the global OpenTelemetry propagator, falling back to an explicit
// traceparent stored with WithTraceParent.
func Inject(ctx context.Context, h nethttp.Header, requestIDHeader string) {
	if requestIDHeader != "" && h.Get(requestIDHeader) == "" {
		h.Set(requestIDHeader, EnsureRequestID(ctx))
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))

	if h.Get(HeaderTraceParent) == "" {
		if tp, ok := ParentFromContext(ctx); ok {
			h.Set(HeaderTraceParent, tp)
		}
	}
}
