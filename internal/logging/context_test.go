package logging_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/matchsync/matchsync/internal/logging"
	"github.com/stretchr/testify/require"
)

// Decode every JSON log line written to buf, without the time field
func readEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	entries := []map[string]any{}
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		require.Contains(t, entry, "time")
		delete(entry, "time")
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	t.Run("stored logger", func(t *testing.T) {
		t.Parallel()

		logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
		ctx := logging.AddToContext(t.Context(), logger)
		require.Same(t, logger, logging.FromContext(ctx))
	})

	t.Run("fallback is shared", func(t *testing.T) {
		t.Parallel()

		first := logging.FromContext(t.Context())
		require.NotNil(t, first)
		require.Same(t, first, logging.FromContext(t.Context()))
	})
}

func TestAddMetaToContext(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	root := slog.New(slog.NewJSONHandler(buf, nil)).With("component", "app")
	ctx := logging.AddToContext(t.Context(), root)

	withPage := logging.AddMetaToContext(ctx, slog.Int("offset", 50), "pageSize", 50)
	overridden := logging.AddMetaToContext(withPage, slog.Int("offset", 100))

	logging.FromContext(ctx).Info("root")
	logging.FromContext(withPage).Info("page")
	logging.FromContext(overridden).Info("next page")

	require.Equal(t, []map[string]any{
		{"level": "INFO", "msg": "root", "component": "app"},
		{"level": "INFO", "msg": "page", "component": "app", "offset": float64(50), "pageSize": float64(50)},
		{"level": "INFO", "msg": "next page", "component": "app", "offset": float64(100), "pageSize": float64(50)},
	}, readEntries(t, buf))
}

func TestAddRunToContext(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	ctx := logging.AddToContext(t.Context(), slog.New(slog.NewJSONHandler(buf, nil)))

	// Bounds are logged in UTC whatever zone they come in
	cet := time.FixedZone("CET", 60*60)
	windowEnd := time.Date(2024, time.May, 1, 14, 0, 0, 0, cet)
	ctx = logging.AddRunToContext(ctx, "run-1", windowEnd.Add(-time.Hour), windowEnd)

	logging.FromContext(ctx).Warn("degraded")
	require.Equal(t, []map[string]any{{
		"level":       "WARN",
		"msg":         "degraded",
		"runID":       "run-1",
		"windowStart": "2024-05-01T12:00:00Z",
		"windowEnd":   "2024-05-01T13:00:00Z",
	}}, readEntries(t, buf))
}
