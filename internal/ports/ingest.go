package ports

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/matchsync/matchsync/internal/app"
	"github.com/matchsync/matchsync/internal/domain"
	"github.com/matchsync/matchsync/internal/logging"
	"github.com/matchsync/matchsync/internal/ratelimiting"
	"github.com/matchsync/matchsync/internal/reporting"
)

const MAX_TRIGGER_WINDOW = 7 * 24 * time.Hour

type runSummaryResponse struct {
	app.RunSummary
	Error string `json:"error,omitempty"`
}

type ingestResponse struct {
	Success bool                `json:"success"`
	Summary *runSummaryResponse `json:"summary,omitempty"`
	Cause   string              `json:"cause,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, resp ingestResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"cause":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}

// Manually trigger one ingestion run for the trailing window given by the "window" query
// parameter (a Go duration), defaulting to defaultWindow
func MakeIngestHandler(
	ingestRecent app.IngestRecent,
	defaultWindow time.Duration,
	ipRateLimiter ratelimiting.RequestRateLimiter,
	rootLogger *slog.Logger,
	sentryMiddleware Middleware,
) http.HandlerFunc {
	onLimitExceeded := func(w http.ResponseWriter, r *http.Request) {
		recordTrigger(r.Context(), triggerRejected)
		writeJSON(w, http.StatusTooManyRequests, ingestResponse{Cause: "rate limit exceeded"})
	}

	middleware := ComposeMiddlewares(
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("ingest"),
		buildMetricsMiddleware("ingest"),
		NewRateLimitMiddleware(ipRateLimiter, onLimitExceeded),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		window := defaultWindow
		if rawWindow := r.URL.Query().Get("window"); rawWindow != "" {
			parsed, err := time.ParseDuration(rawWindow)
			if err != nil || parsed <= 0 || parsed > MAX_TRIGGER_WINDOW {
				logger.InfoContext(ctx, "Invalid window", "window", rawWindow)
				recordTrigger(ctx, triggerInvalid)
				writeJSON(w, http.StatusBadRequest, ingestResponse{
					Cause: fmt.Sprintf("invalid window, expected a positive duration up to %s", MAX_TRIGGER_WINDOW),
				})
				return
			}
			window = parsed
		}

		ctx = reporting.AddExtrasToContext(ctx, map[string]string{
			"window": window.String(),
		})

		summary, err := ingestRecent(ctx, window)
		if err != nil {
			// NOTE: IngestRecent implementations handle their own error reporting
			logger.ErrorContext(ctx, "Triggered ingestion failed", "error", err.Error())
			recordTrigger(ctx, triggerFailed)
			writeJSON(w, http.StatusInternalServerError, ingestResponse{Cause: "internal server error"})
			return
		}

		resp := &runSummaryResponse{RunSummary: summary}
		outcome := triggerOK
		if summary.Err != nil {
			outcome = triggerDegraded
			resp.Error = "upstream failure"
			if errors.Is(summary.Err, domain.ErrTemporarilyUnavailable) {
				resp.Error = "upstream temporarily unavailable"
			}
		}

		recordTrigger(ctx, outcome)
		writeJSON(w, http.StatusOK, ingestResponse{Success: true, Summary: resp})
	}

	return middleware(handler)
}
