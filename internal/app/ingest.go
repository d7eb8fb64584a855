package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/matchsync/matchsync/internal/domain"
	"github.com/matchsync/matchsync/internal/logging"
	"github.com/matchsync/matchsync/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type RunSummary struct {
	RunID       string      `json:"runID"`
	WindowStart time.Time   `json:"windowStart"`
	WindowEnd   time.Time   `json:"windowEnd"`
	Fetched     int         `json:"fetched"`
	Invalid     int         `json:"invalid"`
	Merge       MergeResult `json:"merge"`
	// The upstream failed mid-run and only the records fetched before that were persisted
	Degraded bool `json:"degraded"`
	// The upstream error when degraded
	Err error `json:"-"`
}

type NormalizeRecord func(raw json.RawMessage) (domain.Match, []domain.MatchPlayer, error)

// Run the pipeline once for the given window.
//
// Upstream failures make the run degraded but are not returned as errors. Persistence failures
// and cancellation are.
type IngestWindow func(ctx context.Context, windowStart, windowEnd time.Time) (RunSummary, error)

// Ingest the window of the given length ending now
type IngestRecent func(ctx context.Context, window time.Duration) (RunSummary, error)

const maxReportedRecordLength = 2000

// Cut s to at most maxBytes without splitting a rune
func truncateUTF8(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func normalizeAll(ctx context.Context, normalize NormalizeRecord, records []json.RawMessage) ([]domain.MatchWithPlayers, int) {
	logger := logging.FromContext(ctx)

	matches := make([]domain.MatchWithPlayers, 0, len(records))
	invalid := 0
	for i, raw := range records {
		match, players, err := normalize(raw)
		if err != nil {
			invalid++
			ingestMetrics.invalidRecords.Add(ctx, 1)

			record := truncateUTF8(string(raw), maxReportedRecordLength)
			logger.WarnContext(ctx, "Skipping invalid record", "error", err.Error(), "index", i)
			reporting.Report(ctx, err, map[string]string{
				"index":  strconv.Itoa(i),
				"record": record,
			})
			continue
		}

		matches = append(matches, domain.MatchWithPlayers{
			Match:   match,
			Players: players,
		})
	}

	return matches, invalid
}

func BuildIngestWindow(
	fetchAll FetchAll,
	normalize NormalizeRecord,
	merge MergeMatches,
	nowFunc func() time.Time,
) IngestWindow {
	// Scheduled and manually triggered runs never overlap
	var runMutex sync.Mutex

	return func(ctx context.Context, windowStart, windowEnd time.Time) (RunSummary, error) {
		runMutex.Lock()
		defer runMutex.Unlock()

		runID := uuid.NewString()
		ctx = logging.AddRunToContext(ctx, runID, windowStart, windowEnd)
		ctx = reporting.NewRunContext(ctx, runID, nowFunc())
		logger := logging.FromContext(ctx)

		summary := RunSummary{
			RunID:       runID,
			WindowStart: windowStart,
			WindowEnd:   windowEnd,
		}

		if !windowStart.Before(windowEnd) {
			err := fmt.Errorf("window start %s is not before window end %s", windowStart, windowEnd)
			logger.ErrorContext(ctx, "Invalid ingestion window", "error", err.Error())
			return summary, err
		}

		logger.InfoContext(ctx, "Starting ingestion run")

		records, err := fetchAll(ctx, windowStart, windowEnd)
		summary.Fetched = len(records)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.WarnContext(ctx, "Ingestion run cancelled", "error", err.Error(), "fetched", len(records))
				return summary, fmt.Errorf("ingestion run cancelled: %w", err)
			}
			logger.WarnContext(ctx, "Ingestion run degraded", "error", err.Error(), "fetched", len(records))
			summary.Degraded = true
			summary.Err = err
		}

		matches, invalid := normalizeAll(ctx, normalize, records)
		summary.Invalid = invalid

		result, err := merge(ctx, matches)
		if err != nil {
			return summary, err
		}
		summary.Merge = result

		status := "ok"
		if summary.Degraded {
			status = "degraded"
		}
		ingestMetrics.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
		logger.InfoContext(
			ctx,
			"Finished ingestion run",
			"fetched", summary.Fetched,
			"invalid", summary.Invalid,
			"degraded", summary.Degraded,
			"matchesInserted", result.MatchesInserted,
		)

		return summary, nil
	}
}

func BuildIngestRecent(ingestWindow IngestWindow, nowFunc func() time.Time) IngestRecent {
	return func(ctx context.Context, window time.Duration) (RunSummary, error) {
		if window <= 0 {
			return RunSummary{}, fmt.Errorf("window must be positive, got %s", window)
		}
		end := nowFunc().UTC()
		return ingestWindow(ctx, end.Add(-window), end)
	}
}

type ingestMetricsCollection struct {
	runs           metric.Int64Counter
	invalidRecords metric.Int64Counter
}

var ingestMetrics ingestMetricsCollection

func init() {
	meter := otel.Meter("matchsync/app")

	runs, err := meter.Int64Counter(
		"app/ingest/runs",
		metric.WithDescription("Completed ingestion runs by status"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create runs metric: %w", err))
	}

	invalidRecords, err := meter.Int64Counter(
		"app/ingest/invalid_records",
		metric.WithDescription("Records skipped because they failed validation"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create invalid records metric: %w", err))
	}

	ingestMetrics = ingestMetricsCollection{
		runs:           runs,
		invalidRecords: invalidRecords,
	}
}
