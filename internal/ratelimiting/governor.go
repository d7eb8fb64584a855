package ratelimiting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matchsync/matchsync/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var ErrDelayExceeded = errors.New("rate limit delay exceeded")

// Returned by Acquire when admission would require waiting longer than the max delay.
// No tokens are consumed.
type DelayExceededError struct {
	Category string
	Wait     time.Duration
	MaxDelay time.Duration
}

func (e *DelayExceededError) Error() string {
	return fmt.Sprintf("%s: %s needs %s (max %s)", ErrDelayExceeded.Error(), e.Category, e.Wait, e.MaxDelay)
}

func (e *DelayExceededError) Unwrap() error {
	return ErrDelayExceeded
}

type State int

const (
	StateReady State = iota
	StateWaiting
	StateStalled
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateWaiting:
		return "waiting"
	case StateStalled:
		return "stalled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Budget struct {
	Limit  int
	Window time.Duration
}

// Gate for outbound calls. A call is admitted only when both the steady and the burst
// budget have room, and admission consumes one token from each.
type Governor struct {
	steady   *slidingWindow
	burst    *slidingWindow
	maxDelay time.Duration

	nowFunc   func() time.Time
	afterFunc func(time.Duration) <-chan time.Time

	state State
	mutex sync.Mutex
}

func NewGovernor(
	steady Budget,
	burst Budget,
	maxDelay time.Duration,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) *Governor {
	return &Governor{
		steady:   newSlidingWindow(steady.Limit, steady.Window),
		burst:    newSlidingWindow(burst.Limit, burst.Window),
		maxDelay: maxDelay,

		nowFunc:   nowFunc,
		afterFunc: afterFunc,

		state: StateReady,
		mutex: sync.Mutex{},
	}
}

func NewGovernorFromConfig(conf config.Config, nowFunc func() time.Time, afterFunc func(time.Duration) <-chan time.Time) *Governor {
	return NewGovernor(
		Budget{Limit: conf.SteadyLimit(), Window: conf.SteadyWindow()},
		Budget{Limit: conf.BurstLimit(), Window: conf.BurstWindow()},
		conf.MaxDelay(),
		nowFunc,
		afterFunc,
	)
}

func (g *Governor) State() State {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.state
}

// Block until both budgets admit one more call tagged with category.
//
// Waits of up to the max delay are slept through. Longer waits return a *DelayExceededError
// so the caller can log and retry.
func (g *Governor) Acquire(ctx context.Context, category string) error {
	attributes := metric.WithAttributes(attribute.String("category", category))

	for {
		wait, admitted := g.tryAdmit()
		if admitted {
			governorMetrics.admitted.Add(ctx, 1, attributes)
			return nil
		}

		if wait > g.maxDelay {
			g.setState(StateStalled)
			governorMetrics.stalled.Add(ctx, 1, attributes)
			return &DelayExceededError{
				Category: category,
				Wait:     wait,
				MaxDelay: g.maxDelay,
			}
		}

		g.setState(StateWaiting)
		select {
		case <-ctx.Done():
			g.setState(StateReady)
			return ctx.Err()
		case <-g.afterFunc(wait):
		}
	}
}

func (g *Governor) tryAdmit() (time.Duration, bool) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	now := g.nowFunc()
	wait := max(g.steady.waitFor(now), g.burst.waitFor(now))
	if wait > 0 {
		return wait, false
	}

	g.steady.record(now)
	g.burst.record(now)
	g.state = StateReady
	return 0, true
}

func (g *Governor) setState(state State) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.state = state
}

type governorMetricsCollection struct {
	admitted metric.Int64Counter
	stalled  metric.Int64Counter
}

var governorMetrics governorMetricsCollection

func init() {
	meter := otel.Meter("matchsync/ratelimiting")

	admitted, err := meter.Int64Counter(
		"ratelimiting/governor/admitted",
		metric.WithDescription("Calls admitted by the rate governor"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create admitted metric: %w", err))
	}

	stalled, err := meter.Int64Counter(
		"ratelimiting/governor/stalled",
		metric.WithDescription("Acquisitions that would have exceeded the max delay"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create stalled metric: %w", err))
	}

	governorMetrics = governorMetricsCollection{
		admitted: admitted,
		stalled:  stalled,
	}
}
