package gameprovider_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/matchsync/matchsync/internal/adapters/gameprovider"
	"github.com/matchsync/matchsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	calls int
	err   error
}

func (f *countingFetcher) FetchPage(ctx context.Context, windowStart, windowEnd time.Time, offset, pageSize int) (gameprovider.PageResult, error) {
	f.calls++
	return gameprovider.PageResult{}, f.err
}

func TestCircuitBreakerFetcher(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	now := time.Now()

	t.Run("opens after consecutive failures", func(t *testing.T) {
		t.Parallel()

		inner := &countingFetcher{err: assert.AnError}
		fetcher := gameprovider.NewCircuitBreakerFetcher(inner, time.Hour, logger)

		for range gameprovider.CONSECUTIVE_FAILURES_TO_TRIP {
			_, err := fetcher.FetchPage(ctx, now, now, 0, 50)
			require.ErrorIs(t, err, assert.AnError)
		}
		require.Equal(t, gameprovider.CONSECUTIVE_FAILURES_TO_TRIP, inner.calls)

		_, err := fetcher.FetchPage(ctx, now, now, 0, 50)
		require.ErrorIs(t, err, domain.ErrTemporarilyUnavailable)
		require.Equal(t, gameprovider.CONSECUTIVE_FAILURES_TO_TRIP, inner.calls, "open circuit must not call upstream")
	})

	t.Run("cancellation does not count as failure", func(t *testing.T) {
		t.Parallel()

		inner := &countingFetcher{err: context.Canceled}
		fetcher := gameprovider.NewCircuitBreakerFetcher(inner, time.Hour, logger)

		for range 2 * gameprovider.CONSECUTIVE_FAILURES_TO_TRIP {
			_, err := fetcher.FetchPage(ctx, now, now, 0, 50)
			require.ErrorIs(t, err, context.Canceled)
		}
		require.Equal(t, 2*gameprovider.CONSECUTIVE_FAILURES_TO_TRIP, inner.calls)
	})

	t.Run("success passes through", func(t *testing.T) {
		t.Parallel()

		inner := &countingFetcher{}
		fetcher := gameprovider.NewCircuitBreakerFetcher(inner, time.Hour, logger)

		_, err := fetcher.FetchPage(ctx, now, now, 0, 50)
		require.NoError(t, err)
		require.Equal(t, 1, inner.calls)
	})
}
