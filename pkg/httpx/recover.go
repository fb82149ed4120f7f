package httpx

import (
	"fmt"
	"net/http"
)

// Recover turns a handler panic into a 500 JSON response. Placed inside
// Observer.Middleware, the panic is recorded on the request's terminal log
// line instead of crashing the connection.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler {
				panic(p)
			}

			if obs, ok := observationFrom(r.Context()); ok {
				obs.fail(fmt.Sprintf("panic: %v", p))
			}

			if rw, ok := w.(*responseWriter); ok && rw.wroteHeader {
				// Too late for a status line; the client sees a truncated body
				return
			}
			RespondErrorString(w, http.StatusInternalServerError, "internal server error")
		}()

		next.ServeHTTP(w, r)
	})
}
