package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/matchsync/matchsync/internal/adapters/gameprovider"
	"github.com/matchsync/matchsync/internal/domain"
	"github.com/matchsync/matchsync/internal/logging"
	"github.com/matchsync/matchsync/internal/ratelimiting"
)

const API_CALL_CATEGORY = "api_call"

type RateGovernor interface {
	Acquire(ctx context.Context, category string) error
}

// Fetch every record in the window, in upstream order.
//
// On a fatal upstream outcome the records gathered so far are returned together with the error.
type FetchAll func(ctx context.Context, windowStart, windowEnd time.Time) ([]json.RawMessage, error)

// Acquire from the governor, waiting out and retrying stalls
func acquire(ctx context.Context, governor RateGovernor, afterFunc func(time.Duration) <-chan time.Time) error {
	logger := logging.FromContext(ctx)

	for {
		err := governor.Acquire(ctx, API_CALL_CATEGORY)
		if err == nil {
			return nil
		}

		var delayErr *ratelimiting.DelayExceededError
		if !errors.As(err, &delayErr) {
			return err
		}

		logger.WarnContext(
			ctx,
			"Rate limit delay exceeded, retrying",
			"category", delayErr.Category,
			"wait", delayErr.Wait.String(),
			"maxDelay", delayErr.MaxDelay.String(),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-afterFunc(delayErr.Wait):
		}
	}
}

func BuildFetchAll(
	fetcher gameprovider.PageFetcher,
	governor RateGovernor,
	pageSize int,
	afterFunc func(time.Duration) <-chan time.Time,
) FetchAll {
	if pageSize < 1 {
		panic(fmt.Sprintf("page size must be positive, got %d", pageSize))
	}

	return func(ctx context.Context, windowStart, windowEnd time.Time) ([]json.RawMessage, error) {
		logger := logging.FromContext(ctx)

		records := []json.RawMessage{}
		offset := 0
		for {
			if err := acquire(ctx, governor, afterFunc); err != nil {
				return records, fmt.Errorf("failed to acquire rate limit: %w", err)
			}

			page, err := fetcher.FetchPage(ctx, windowStart, windowEnd, offset, pageSize)
			if err != nil {
				// NOTE: PageFetcher implementations handle their own error reporting
				logArgs := []any{"error", err.Error(), "offset", offset, "fetched", len(records)}
				var statusErr *domain.UpstreamStatusError
				if errors.As(err, &statusErr) {
					logArgs = append(logArgs, "status", statusErr.StatusCode, "body", statusErr.Body)
				}
				logger.ErrorContext(ctx, "Failed to fetch page", logArgs...)
				return records, fmt.Errorf("failed to fetch page at offset %d: %w", offset, err)
			}

			records = append(records, page.Records...)
			logger.InfoContext(ctx, "Fetched page", "offset", offset, "records", len(page.Records))

			if len(page.Records) < pageSize {
				return records, nil
			}
			offset += pageSize
		}
	}
}
