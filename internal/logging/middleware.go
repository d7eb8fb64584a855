package logging

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

const REQUEST_ID_HEADER = "X-Request-ID"

// Longest caller-provided request id that is accepted as is
const maxRequestIDLength = 128

func requestID(r *http.Request) string {
	if id := r.Header.Get(REQUEST_ID_HEADER); id != "" && len(id) <= maxRequestIDLength {
		return id
	}
	return uuid.NewString()
}

// Give each request a logger tagged with a correlation id, echoed back in X-Request-ID
func NewRequestLoggerMiddleware(logger *slog.Logger) func(next http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			correlationID := requestID(r)
			w.Header().Set(REQUEST_ID_HEADER, correlationID)

			userAgent := r.UserAgent()
			if userAgent == "" {
				userAgent = "<missing>"
			}

			requestLogger := logger.With(
				slog.String("correlationID", correlationID),
				slog.String("methodPath", r.Method+" "+r.URL.Path),
				slog.String("userAgent", userAgent),
			)

			next(w, r.WithContext(AddToContext(r.Context(), requestLogger)))
		}
	}
}
