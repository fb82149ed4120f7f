package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/nicktill/obsdemo/pkg/config"
	"github.com/nicktill/obsdemo/pkg/fibonacci"
	"github.com/nicktill/obsdemo/pkg/httpx"
	"github.com/nicktill/obsdemo/pkg/metrics"
	"github.com/nicktill/obsdemo/pkg/tracing"
)

var startTime = time.Now()

// errOutOfRange is returned when n exceeds the route's bound
var errOutOfRange = errors.New("n is out of range")

// GreetingResponse is the body of GET /.
type GreetingResponse struct {
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// FibonacciResponse is the body of the fibonacci routes.
type FibonacciResponse struct {
	N      int    `json:"n"`
	Result uint64 `json:"result"`
	Method string `json:"method"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// StatsResponse reports label cardinality of the request metrics.
type StatsResponse struct {
	Series metrics.SeriesStats `json:"series"`
	Uptime string              `json:"uptime"`
}

// handleRoot greets the caller and echoes the request's trace ID.
func handleRoot(w http.ResponseWriter, r *http.Request) {
	resp := GreetingResponse{Message: "Hello from " + config.ServiceName + "!"}
	if id, ok := tracing.FromContext(r.Context()); ok {
		resp.TraceID = id.String()
	}
	httpx.RespondJSON(w, http.StatusOK, resp)
}

func handleHello(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, GreetingResponse{Message: "Hello World 👋"})
}

// handleError always fails, for exercising error metrics and logs.
func handleError(w http.ResponseWriter, r *http.Request) {
	httpx.RespondErrorString(w, http.StatusInternalServerError, "simulated failure")
}

// handleFibonacci serves one fibonacci implementation for /{n} with n in [0, maxN].
func handleFibonacci(method string, maxN int, compute func(int) (uint64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := parseN(mux.Vars(r)["n"], maxN)
		if err != nil {
			httpx.RespondError(w, http.StatusBadRequest, err)
			return
		}

		result, err := compute(n)
		if err != nil {
			if errors.Is(err, fibonacci.ErrNegative) || errors.Is(err, fibonacci.ErrTooLarge) {
				httpx.RespondError(w, http.StatusBadRequest, err)
				return
			}
			httpx.RespondError(w, http.StatusInternalServerError, err)
			return
		}

		httpx.RespondJSON(w, http.StatusOK, FibonacciResponse{N: n, Result: result, Method: method})
	}
}

func parseN(raw string, maxN int) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("n must be an integer, got %q", raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: got %d", fibonacci.ErrNegative, n)
	}
	if n > maxN {
		return 0, fmt.Errorf("%w: must be at most %d, got %d", errOutOfRange, maxN, n)
	}
	return n, nil
}

// handleHealth returns service health status.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, HealthResponse{
		Status: "healthy",
		Uptime: time.Since(startTime).Round(time.Second).String(),
	})
}

// handleStats returns request metric cardinality.
func handleStats(m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondJSON(w, http.StatusOK, StatsResponse{
			Series: m.SeriesStats(),
			Uptime: time.Since(startTime).Round(time.Second).String(),
		})
	}
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	httpx.RespondErrorString(w, http.StatusNotFound, "no route for "+r.URL.Path)
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httpx.RespondErrorString(w, http.StatusMethodNotAllowed, r.Method+" is not allowed on "+r.URL.Path)
}

// recursiveRoute and iterativeRoute pair a fibonacci implementation with its bound.
var (
	recursiveRoute = handleFibonacci("recursive", config.MaxRecursiveN, fibonacci.Recursive)
	iterativeRoute = handleFibonacci("iterative", config.MaxIterativeN, fibonacci.Iterative)
)
