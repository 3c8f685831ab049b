// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/Joshypeace/PharmaStore/internal/core"
	"github.com/Joshypeace/PharmaStore/internal/logging"
)

// Logger writes one structured entry per request, tagged with chi's
// request id. Authenticated requests also carry the actor id.
//
// Log fields: method, path, status, duration_ms, ip, user_agent, actor_id.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		rec := &requestActor{}
		r = r.WithContext(context.WithValue(r.Context(), actorSlotKey{}, rec))

		next.ServeHTTP(ww, r)

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", extractHost(r.RemoteAddr),
			"user_agent", r.UserAgent(),
		}
		if rec.id != 0 {
			args = append(args, "actor_id", rec.id)
		}

		logger := logging.FromContext(r.Context())
		switch {
		case ww.status >= http.StatusInternalServerError:
			logger.Error("request", args...)
		case ww.status >= http.StatusBadRequest:
			logger.Warn("request", args...)
		default:
			logger.Info("request", args...)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap provides access to the underlying ResponseWriter for middleware
// that need to inspect it (e.g., http.Flusher for SSE).
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Actors are attached to the context below Logger, so the handler chain
// reports them back through a slot Logger owns.
type actorSlotKey struct{}

type requestActor struct{ id int64 }

// RecordActor notes the authenticated actor for the access log entry.
func RecordActor(r *http.Request, a core.Actor) {
	if rec, ok := r.Context().Value(actorSlotKey{}).(*requestActor); ok {
		rec.id = a.ID
	}
}

func extractHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
