// Package middleware provides composable HTTP middleware constructors that
// follow the standard func(http.Handler) http.Handler pattern. Everything
// here fronts the admin/status API; the client TCP data path the dispatcher
// serves never passes through an http.Handler at all.
package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"
)

// adminRequestIDPrefix distinguishes admin request IDs from the dispatcher's
// own per-session log lines ("client"/"backend" keyed) when both streams are
// aggregated together, so an operator grepping logs can tell at a glance
// which subsystem a given ID belongs to.
const adminRequestIDPrefix = "adm-"

// responseRecorder wraps http.ResponseWriter to capture the status code and
// number of bytes written by the downstream handler.
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.status = code
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	n, err := rr.ResponseWriter.Write(b)
	rr.bytes += n
	return n, err
}

// PoolSize reports the current number of registered backends. The admin
// server supplies a closure over *pool.Pool's Snapshot; it is expressed as
// a func to keep this package free of an internal/pool import.
type PoolSize func() int

// Logger returns a middleware that emits one structured JSON log line per
// admin API request, including method, path, status, response size,
// latency, and the backend count at the time the request was handled — the
// last field lets an operator correlate a backend add/remove call with the
// pool size it produced, straight from the log line. It also generates a
// unique X-Request-Id header that is set on the request passed to the
// wrapped handler and returned in the response for end-to-end tracing.
func Logger(poolSize PoolSize) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := newRequestID()

			r.Header.Set("X-Request-Id", reqID)
			w.Header().Set("X-Request-Id", reqID)

			rr := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rr, r)

			slog.Info("admin request",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"status", rr.status,
				"bytes", rr.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
				"backend_count", poolSize(),
			)
		})
	}
}

func newRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return adminRequestIDPrefix + hex.EncodeToString(b)
}
