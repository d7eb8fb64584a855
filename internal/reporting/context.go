package reporting

import (
	"context"
	"maps"
	"time"

	"github.com/getsentry/sentry-go"
)

type metaContextKey struct{}

// Attached to every report made with the context.
//
// startedAt is when the run or request began, runID is empty outside ingestion runs.
type reportMeta struct {
	runID     string
	startedAt time.Time
	tags      map[string]string
	extras    map[string]string
}

func metaFromContext(ctx context.Context) reportMeta {
	meta, ok := ctx.Value(metaContextKey{}).(reportMeta)
	if !ok {
		return reportMeta{
			tags:   map[string]string{},
			extras: map[string]string{},
		}
	}

	meta.tags = maps.Clone(meta.tags)
	meta.extras = maps.Clone(meta.extras)
	return meta
}

// Store an updated copy of the meta, leaving the parent context untouched
func withMeta(ctx context.Context, update func(meta *reportMeta)) context.Context {
	meta := metaFromContext(ctx)
	update(&meta)
	return context.WithValue(ctx, metaContextKey{}, meta)
}

func AddExtrasToContext(ctx context.Context, extras map[string]string) context.Context {
	return withMeta(ctx, func(meta *reportMeta) {
		maps.Copy(meta.extras, extras)
	})
}

func AddTagsToContext(ctx context.Context, tags map[string]string) context.Context {
	return withMeta(ctx, func(meta *reportMeta) {
		maps.Copy(meta.tags, tags)
	})
}

func (m reportMeta) applyTo(scope *sentry.Scope, now time.Time) {
	scope.SetTags(m.tags)
	if m.runID != "" {
		scope.SetTag("runID", m.runID)
	}

	for key, value := range m.extras {
		scope.SetExtra(key, value)
	}
	if !m.startedAt.IsZero() {
		scope.SetExtra("secondsSinceStart", now.Sub(m.startedAt).Seconds())
	}
}
