package gameprovider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/matchsync/matchsync/internal/domain"
	gobreaker "github.com/sony/gobreaker/v2"
)

const CONSECUTIVE_FAILURES_TO_TRIP = 5

// Rejects page fetches for a while after repeated fatal upstream outcomes, so scheduled runs
// against a broken upstream fail fast instead of hammering it.
type circuitBreakerFetcher struct {
	fetcher PageFetcher
	cb      *gobreaker.CircuitBreaker[PageResult]
}

func NewCircuitBreakerFetcher(fetcher PageFetcher, openTimeout time.Duration, logger *slog.Logger) PageFetcher {
	cb := gobreaker.NewCircuitBreaker[PageResult](gobreaker.Settings{
		Name:        "legion-api",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= CONSECUTIVE_FAILURES_TO_TRIP
		},
		IsSuccessful: func(err error) bool {
			// Our own cancellation says nothing about upstream health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	return &circuitBreakerFetcher{
		fetcher: fetcher,
		cb:      cb,
	}
}

func (c *circuitBreakerFetcher) FetchPage(ctx context.Context, windowStart, windowEnd time.Time, offset, pageSize int) (PageResult, error) {
	page, err := c.cb.Execute(func() (PageResult, error) {
		return c.fetcher.FetchPage(ctx, windowStart, windowEnd, offset, pageSize)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return PageResult{}, fmt.Errorf("upstream circuit open: %w (%w)", err, domain.ErrTemporarilyUnavailable)
	}
	return page, err
}
