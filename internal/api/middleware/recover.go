package middleware

import (
	"errors"
	"net/http"

	"github.com/ayo6706/retail-ledger/internal/api/problem"
	"github.com/ayo6706/retail-ledger/internal/observability"
	"go.uber.org/zap"
)

// RecoverMiddleware turns a handler panic into a 500 problem response. If the
// handler already started the response only the log entry and metric remain.
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func RecoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tw := &startTracker{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				route := routePattern(r)
				observability.IncrementHTTPPanic(route)
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("route", route),
					zap.String("trace_id", TraceIDFromContext(r.Context())),
					zap.Bool("response_started", tw.started),
					zap.Stack("stack"),
				)
				if tw.started {
					return
				}
				problem.Write(w, r, http.StatusInternalServerError, problem.Type("internal-server-error"), "", "unexpected server error")
			}()
			next.ServeHTTP(tw, r)
		})
	}
}

type startTracker struct {
	http.ResponseWriter
	started bool
}

func (st *startTracker) WriteHeader(code int) {
	st.started = true
	st.ResponseWriter.WriteHeader(code)
}

func (st *startTracker) Write(b []byte) (int, error) {
	st.started = true
	return st.ResponseWriter.Write(b)
}
