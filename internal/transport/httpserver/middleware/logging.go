package middleware

import (
	"net/http"
	"time"

	"family-tree-go/pkg/logger"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger stores a logger tagged with the request id in the request
// context and writes one structured line per request.
func RequestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			reqLog := log.With("request_id", chimw.GetReqID(r.Context()))

			next.ServeHTTP(ww, r.WithContext(logger.IntoContext(r.Context(), reqLog)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(started).Milliseconds(),
			}
			if status >= http.StatusInternalServerError {
				reqLog.Warn("http: request failed", args...)
				return
			}
			reqLog.Debug("http: request", args...)
		})
	}
}
