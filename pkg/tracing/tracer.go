package tracing

import "context"

// contextKey is used for storing the trace ID in context.Context
type contextKey int

const (
	traceIDKey contextKey = iota
)

// WithTraceID returns a copy of ctx carrying id.
// Only the request middleware should call this; handlers read with FromContext.
func WithTraceID(ctx context.Context, id TraceID) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// FromContext extracts the trace ID from ctx.
func FromContext(ctx context.Context) (TraceID, bool) {
	id, ok := ctx.Value(traceIDKey).(TraceID)
	return id, ok
}
