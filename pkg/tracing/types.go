package tracing

import (
	"fmt"

	"github.com/google/uuid"
)

// HeaderTraceID is the response header carrying the request's trace ID.
const HeaderTraceID = "X-Trace-ID"

// TraceID correlates one inbound request across logs, headers and metrics.
// 128-bit random UUID (version 4) in canonical string form.
type TraceID string

// NewTraceID generates a new random trace ID.
// Returns an error if the random source fails.
func NewTraceID() (TraceID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate trace ID: %w", err)
	}
	return TraceID(id.String()), nil
}

// ParseTraceID validates s as a trace ID, such as an X-Trace-ID header
// read back by a client.
func ParseTraceID(s string) (TraceID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid trace ID %q: %w", s, err)
	}
	return TraceID(id.String()), nil
}

// String returns the trace ID as a string.
func (id TraceID) String() string {
	return string(id)
}
