package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// RequestLogging logs one line per request through the request-scoped logger
// set by CorrelationID, falling back to logger.
func RequestLogging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(rw, r)

			reqLogger := &logger
			if ctxLogger := zerolog.Ctx(r.Context()); ctxLogger.GetLevel() != zerolog.Disabled {
				reqLogger = ctxLogger
			}

			status := rw.code()
			event := reqLogger.Info()
			if status >= 500 {
				event = reqLogger.Error()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", rw.bytes).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
