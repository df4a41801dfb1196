package middleware

import (
	"net/http"
	"time"

	"github.com/evyataryagoni/geocoder/internal/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// LoggingMiddleware attaches a request-scoped logger to the context and logs
// one line per completed request. Server errors log at error level and
// client errors at warn.
func LoggingMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqLog := log.WithRequest(middleware.GetReqID(r.Context()), ClientIP(r))
			r = r.WithContext(reqLog.WithContext(r.Context()))

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			event := reqLog.Info()
			switch {
			case status >= http.StatusInternalServerError:
				event = reqLog.Error()
			case status >= http.StatusBadRequest:
				event = reqLog.Warn()
			}

			event.
				Str("session_id", ww.Header().Get(SessionHeader)).
				Str("method", r.Method).
				Str("route", routePattern(r)).
				Str("q", r.URL.Query().Get("q")).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("Request completed")
		})
	}
}
