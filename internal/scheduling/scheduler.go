package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/matchsync/matchsync/internal/app"
	"github.com/matchsync/matchsync/internal/logging"
)

// Run one ingestion of the trailing window. Failures are logged, the next tick tries again.
func runOnce(ctx context.Context, ingestRecent app.IngestRecent, window time.Duration) {
	logger := logging.FromContext(ctx)

	summary, err := ingestRecent(ctx, window)
	if err != nil {
		// NOTE: IngestRecent implementations handle their own error reporting
		logger.ErrorContext(ctx, "Scheduled ingestion failed", "error", err.Error(), "runID", summary.RunID)
		return
	}

	if summary.Degraded {
		logger.WarnContext(ctx, "Scheduled ingestion degraded", "runID", summary.RunID, "error", summary.Err.Error())
		return
	}

	logger.InfoContext(ctx, "Scheduled ingestion completed", "runID", summary.RunID, "fetched", summary.Fetched)
}

// Start ingesting the trailing window every interval, beginning immediately.
//
// Runs never overlap: a tick that fires while a run is in progress is rescheduled.
// Call Shutdown on the returned scheduler to stop.
func StartIngestion(
	ctx context.Context,
	ingestRecent app.IngestRecent,
	interval time.Duration,
	window time.Duration,
) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			runOnce(ctx, ingestRecent, window)
		}),
		gocron.WithName("ingest-recent"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("failed to create ingestion job: %w", err)
	}

	scheduler.Start()
	logging.FromContext(ctx).InfoContext(ctx, "Started ingestion scheduler", "interval", interval.String(), "window", window.String())

	return scheduler, nil
}
