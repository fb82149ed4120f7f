package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/nicktill/obsdemo/pkg/config"
	"github.com/nicktill/obsdemo/pkg/httpx"
	"github.com/nicktill/obsdemo/pkg/live"
	"github.com/nicktill/obsdemo/pkg/metrics"
)

// MetricsRoute is observed and logged but never counted in the request
// metrics, so scraping leaves what it reports unchanged.
const MetricsRoute = "/metrics"

// Deps are the process-scoped collaborators shared by all requests.
type Deps struct {
	Metrics *metrics.Metrics
	Hub     *live.Hub
	Logger  *zap.Logger
}

// SetupRoutes configures all HTTP routes for the server.
func SetupRoutes(router *mux.Router, deps Deps) {
	router.NotFoundHandler = http.HandlerFunc(handleNotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)

	router.HandleFunc("/", handleRoot).Methods(http.MethodGet)
	router.HandleFunc("/hello", handleHello).Methods(http.MethodGet)
	router.HandleFunc("/error", handleError).Methods(http.MethodGet)

	router.HandleFunc("/fibonacci/recursive/{n}", recursiveRoute).Methods(http.MethodGet)
	router.HandleFunc("/fibonacci/iterative/{n}", iterativeRoute).Methods(http.MethodGet)

	router.HandleFunc("/health", handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/stats", handleStats(deps.Metrics)).Methods(http.MethodGet)
	router.Handle(MetricsRoute, deps.Metrics.Handler()).Methods(http.MethodGet)

	if deps.Hub != nil {
		router.HandleFunc("/ws", deps.Hub.HandleWebSocket).Methods(http.MethodGet)
	}
}

// NewHandler builds the full request pipeline: observation outermost,
// then panic recovery, then routing.
func NewHandler(deps Deps) http.Handler {
	router := mux.NewRouter()
	SetupRoutes(router, deps)

	observer := httpx.NewObserver(deps.Metrics, deps.Logger).
		WithRoutes(httpx.MuxRoutes(router)).
		SkipMetrics(MetricsRoute)
	if deps.Hub != nil {
		observer.WithSink(deps.Hub)
	}

	return observer.Middleware(httpx.Recover(router))
}

// NewServer creates the HTTP server for cfg.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}
}
