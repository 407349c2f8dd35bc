package middleware

import (
	"net/http"
	"time"

	"tinylink/pkg/logging"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const RequestIDHeader = "X-Request-ID"

// CorrelationID takes the request id from X-Request-ID or mints one, stores
// it for the logger and echoes it back.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.ContextWithCorrelationID(r.Context(), r.Header.Get(RequestIDHeader))
		w.Header().Set(RequestIDHeader, logging.GetCorrelationID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessLog writes one record per request. The path is logged, the client
// address is not.
func AccessLog(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
