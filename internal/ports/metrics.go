package ports

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcomes of a manually triggered ingestion
const (
	triggerOK       = "ok"
	triggerDegraded = "degraded"
	triggerFailed   = "failed"
	triggerRejected = "rate_limited"
	triggerInvalid  = "invalid_window"
)

type portsMetricsCollection struct {
	requests        metric.Int64Counter
	requestDuration metric.Float64Histogram
	triggers        metric.Int64Counter
}

var metrics portsMetricsCollection

func init() {
	meter := otel.Meter("matchsync/ports")

	requests, err := meter.Int64Counter(
		"ports/requests",
		metric.WithDescription("Requests served, by port and status class"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create requests metric: %w", err))
	}

	requestDuration, err := meter.Float64Histogram(
		"ports/request_duration_seconds",
		metric.WithDescription("Time to serve a request, including any ingestion run it triggered"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create request duration metric: %w", err))
	}

	triggers, err := meter.Int64Counter(
		"ports/ingest/triggers",
		metric.WithDescription("Manually triggered ingestions, by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create triggers metric: %w", err))
	}

	metrics = portsMetricsCollection{
		requests:        requests,
		requestDuration: requestDuration,
		triggers:        triggers,
	}
}

func recordTrigger(ctx context.Context, outcome string) {
	metrics.triggers.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// "2xx", "4xx", ...
func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}

func buildMetricsMiddleware(port string) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next(recorder, r)

			attributes := metric.WithAttributes(
				attribute.String("port", port),
				attribute.String("method", r.Method),
				attribute.String("status_class", statusClass(recorder.status)),
			)
			metrics.requests.Add(r.Context(), 1, attributes)
			metrics.requestDuration.Record(r.Context(), time.Since(start).Seconds(), attributes)
		}
	}
}
