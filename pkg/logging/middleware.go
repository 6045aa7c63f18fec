package logging

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Middleware attaches a request-scoped entry (request_id, method, path) to the
// request context and logs one line per completed request.
func Middleware(base *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entry := base.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
			})
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r.WithContext(WithContext(r.Context(), entry)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := logrus.Fields{
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes":       ww.BytesWritten(),
			}
			switch {
			case status >= 500:
				entry.WithFields(fields).Error("request failed")
			case status >= 400:
				entry.WithFields(fields).Warn("request rejected")
			default:
				entry.WithFields(fields).Info("request complete")
			}
		})
	}
}
