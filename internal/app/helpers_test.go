package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/matchsync/matchsync/internal/adapters/gameprovider"
)

var windowStart = time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
var windowEnd = windowStart.Add(time.Hour)

func makeRecord(i int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"_id":"m%d","date":"2024-05-01T12:%02d:00Z","queueType":"Normal","playerCount":2,"humanCount":2,"gameLength":600,`+
			`"playersData":[{"playerId":"p%d","playerName":"Player %d","playerSlot":1,"legion":"Mech","gameResult":"won"},`+
			`{"playerId":"shared","playerName":"Shared","playerSlot":2,"legion":"Grove","gameResult":"lost"}]}`,
		i, i%60, i, i,
	))
}

func makeRecords(from, to int) []json.RawMessage {
	records := make([]json.RawMessage, 0, to-from)
	for i := from; i < to; i++ {
		records = append(records, makeRecord(i))
	}
	return records
}

type fetchCall struct {
	offset   int
	pageSize int
}

// Serves a fixed record list in pages, optionally failing at a given offset
type mockedPageFetcher struct {
	records  []json.RawMessage
	hasMore  *bool
	failAt   int
	failWith error

	calls []fetchCall
	lock  sync.Mutex
}

func newMockedPageFetcher(records []json.RawMessage) *mockedPageFetcher {
	return &mockedPageFetcher{
		records: records,
		failAt:  -1,
	}
}

func (m *mockedPageFetcher) FetchPage(ctx context.Context, start, end time.Time, offset, pageSize int) (gameprovider.PageResult, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.calls = append(m.calls, fetchCall{offset: offset, pageSize: pageSize})

	if m.failAt >= 0 && offset >= m.failAt {
		return gameprovider.PageResult{}, m.failWith
	}

	from := min(offset, len(m.records))
	to := min(offset+pageSize, len(m.records))
	return gameprovider.PageResult{
		Records: m.records[from:to],
		HasMore: m.hasMore,
	}, nil
}

func (m *mockedPageFetcher) offsets() []int {
	m.lock.Lock()
	defer m.lock.Unlock()

	offsets := make([]int, 0, len(m.calls))
	for _, call := range m.calls {
		offsets = append(offsets, call.offset)
	}
	return offsets
}

type noopGovernor struct{}

func (noopGovernor) Acquire(ctx context.Context, category string) error {
	return nil
}

// Clock where waiting for a duration instantly moves time forward by that duration
type autoAdvancingTime struct {
	currentTime time.Time
	waits       []time.Duration
	lock        sync.Mutex
}

func newAutoAdvancingTime(start time.Time) *autoAdvancingTime {
	return &autoAdvancingTime{currentTime: start}
}

func (m *autoAdvancingTime) Now() time.Time {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.currentTime
}

func (m *autoAdvancingTime) After(d time.Duration) <-chan time.Time {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.currentTime = m.currentTime.Add(d)
	m.waits = append(m.waits, d)

	ch := make(chan time.Time, 1)
	ch <- m.currentTime
	return ch
}

func panicAfter(d time.Duration) <-chan time.Time {
	panic("should not wait")
}
