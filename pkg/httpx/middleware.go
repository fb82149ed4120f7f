package httpx

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nicktill/obsdemo/pkg/tracing"
)

// MessageRequestCompleted is the message of every terminal request record.
const MessageRequestCompleted = "request completed"

// Recorder receives one measurement per completed request.
// *metrics.Metrics implements it.
type Recorder interface {
	ObserveRequest(method, route string, status int, seconds float64)
}

// Sink receives the terminal record of every completed request.
// Publish must not block.
type Sink interface {
	Publish(rec Record)
}

// RouteResolver returns the matched route template for r, if any.
type RouteResolver func(r *http.Request) (string, bool)

// MuxRoutes resolves route labels from a gorilla/mux router, so
// /fibonacci/recursive/30 is labelled /fibonacci/recursive/{n}.
func MuxRoutes(router *mux.Router) RouteResolver {
	return func(r *http.Request) (string, bool) {
		var match mux.RouteMatch
		if !router.Match(r, &match) || match.MatchErr != nil || match.Route == nil {
			return "", false
		}
		tpl, err := match.Route.GetPathTemplate()
		if err != nil {
			return "", false
		}
		return tpl, true
	}
}

// Record is the terminal record of one request. Its JSON form matches the
// structured log line.
type Record struct {
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	TraceID   tracing.TraceID `json:"trace_id"`
	Method    string          `json:"method"`
	Path      string          `json:"path"`
	Route     string          `json:"route"`
	Status    int             `json:"status"`
	Duration  float64         `json:"duration"`
	Error     string          `json:"error,omitempty"`
}

// Observation is the per-request observation context. It is created when
// the request enters the middleware and finalized exactly once when the
// handler chain returns.
type Observation struct {
	TraceID tracing.TraceID
	Start   time.Time
	Method  string
	Path    string

	mu       sync.Mutex
	failure  string
	finished sync.Once
}

// fail attaches a failure description to the terminal record.
func (o *Observation) fail(msg string) {
	o.mu.Lock()
	o.failure = msg
	o.mu.Unlock()
}

func (o *Observation) failureMessage() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failure
}

type observationKey struct{}

func observationFrom(ctx context.Context) (*Observation, bool) {
	obs, ok := ctx.Value(observationKey{}).(*Observation)
	return obs, ok
}

// Observer instruments requests with a trace ID, metrics and one
// structured log line each.
type Observer struct {
	recorder Recorder
	logger   *zap.Logger
	routes   RouteResolver
	sinks    []Sink
	skip     map[string]bool
	now      func() time.Time
}

// NewObserver creates an observer recording into recorder and logging to
// logger. Either may be nil.
func NewObserver(recorder Recorder, logger *zap.Logger) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{
		recorder: recorder,
		logger:   logger,
		skip:     make(map[string]bool),
		now:      time.Now,
	}
}

// WithRoutes sets how route labels are resolved. Without a resolver every
// request is labelled with its raw URL path.
func (o *Observer) WithRoutes(routes RouteResolver) *Observer {
	o.routes = routes
	return o
}

// WithSink adds a receiver for terminal records.
func (o *Observer) WithSink(sink Sink) *Observer {
	o.sinks = append(o.sinks, sink)
	return o
}

// SkipMetrics excludes the given route labels from the recorder. Requests
// to them are still traced and logged. Used for /metrics so scraping does
// not change what it reports.
func (o *Observer) SkipMetrics(routes ...string) *Observer {
	for _, route := range routes {
		o.skip[route] = true
	}
	return o
}

// Middleware wraps next with request observation.
//
// Usage:
//
//	router := mux.NewRouter()
//	observer := httpx.NewObserver(metrics, logger).WithRoutes(httpx.MuxRoutes(router))
//	http.ListenAndServe(":3000", observer.Middleware(router))
func (o *Observer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		obs, r := o.Start(w, r)
		rw := newResponseWriter(w)

		defer func() { o.Finish(obs, r, rw.statusCode) }()

		next.ServeHTTP(rw, r)
	})
}

// Start opens the observation for r: it generates the trace ID, starts
// the clock, sets the X-Trace-ID response header and threads both into
// the returned request's context.
func (o *Observer) Start(w http.ResponseWriter, r *http.Request) (*Observation, *http.Request) {
	obs := &Observation{
		Start:  o.now(),
		Method: r.Method,
		Path:   r.URL.RequestURI(),
	}

	ctx := r.Context()
	traceID, err := tracing.NewTraceID()
	if err != nil {
		// Serve the request untraced rather than fail it
		o.logger.Warn("failed to generate trace ID", zap.Error(err))
	} else {
		obs.TraceID = traceID
		w.Header().Set(tracing.HeaderTraceID, traceID.String())
		ctx = tracing.WithTraceID(ctx, traceID)
	}
	ctx = context.WithValue(ctx, observationKey{}, obs)

	return obs, r.WithContext(ctx)
}

// Finish closes the observation. Only the first call for a given
// observation has any effect. Recording is best-effort: a failure while
// updating metrics or sinks is logged and never reaches the caller.
func (o *Observer) Finish(obs *Observation, r *http.Request, status int) {
	obs.finished.Do(func() {
		rec := Record{
			Timestamp: o.now(),
			Message:   MessageRequestCompleted,
			TraceID:   obs.TraceID,
			Method:    obs.Method,
			Path:      obs.Path,
			Route:     o.resolveRoute(r),
			Status:    status,
			Error:     obs.failureMessage(),
		}
		rec.Duration = rec.Timestamp.Sub(obs.Start).Seconds()
		if rec.Duration < 0 {
			rec.Duration = 0
		}
		rec.Level = "info"
		if status >= http.StatusBadRequest {
			rec.Level = "error"
		}

		o.record(rec)
		o.log(rec)
		o.publish(rec)
	})
}

func (o *Observer) resolveRoute(r *http.Request) string {
	if o.routes != nil {
		if route, ok := o.routes(r); ok {
			return route
		}
	}
	return r.URL.Path
}

func (o *Observer) record(rec Record) {
	if o.recorder == nil || o.skip[rec.Route] {
		return
	}
	defer o.recoverTo("metrics", rec.TraceID)
	o.recorder.ObserveRequest(rec.Method, rec.Route, rec.Status, rec.Duration)
}

func (o *Observer) publish(rec Record) {
	for _, sink := range o.sinks {
		func() {
			defer o.recoverTo("sink", rec.TraceID)
			sink.Publish(rec)
		}()
	}
}

func (o *Observer) log(rec Record) {
	fields := []zap.Field{
		zap.String("trace_id", rec.TraceID.String()),
		zap.String("method", rec.Method),
		zap.String("path", rec.Path),
		zap.Int("status", rec.Status),
		zap.Float64("duration", rec.Duration),
	}
	if rec.Error != "" {
		fields = append(fields, zap.String("error", rec.Error))
	}

	if rec.Level == "error" {
		o.logger.Error(rec.Message, fields...)
	} else {
		o.logger.Info(rec.Message, fields...)
	}
}

func (o *Observer) recoverTo(stage string, traceID tracing.TraceID) {
	if p := recover(); p != nil {
		o.logger.Warn("request observation failed",
			zap.String("stage", stage),
			zap.String("trace_id", traceID.String()),
			zap.String("panic", fmt.Sprint(p)),
		)
	}
}
