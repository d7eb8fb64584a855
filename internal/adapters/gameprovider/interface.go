package gameprovider

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// One upstream page, records still in their raw form
type PageResult struct {
	Records []json.RawMessage

	// Only present when upstream wrapped the records in an envelope. Not used for termination.
	HasMore *bool
}

type PageFetcher interface {
	// Returns an error wrapping domain.ErrUpstreamStatus for non-200 responses and
	// domain.ErrMalformedPayload when the body is not a sequence of records.
	// Both are fatal for the current run.
	FetchPage(ctx context.Context, windowStart, windowEnd time.Time, offset, pageSize int) (PageResult, error)
}
