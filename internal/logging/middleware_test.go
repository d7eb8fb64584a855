package logging_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/matchsync/matchsync/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestRequestLoggerMiddleware(t *testing.T) {
	t.Parallel()

	serve := func(t *testing.T, r *http.Request) (map[string]any, *httptest.ResponseRecorder) {
		t.Helper()

		buf := &bytes.Buffer{}
		middleware := logging.NewRequestLoggerMiddleware(slog.New(slog.NewJSONHandler(buf, nil)))

		w := httptest.NewRecorder()
		middleware(func(w http.ResponseWriter, r *http.Request) {
			logging.FromContext(r.Context()).Info("handled")
		})(w, r)

		entries := readEntries(t, buf)
		require.Len(t, entries, 1)
		return entries[0], w
	}

	t.Run("generated correlation id", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodPost, "http://example.com/v1/ingest?window=1h", nil)
		r.Header.Set("User-Agent", "cron/1.0")

		entry, w := serve(t, r)

		correlationID, ok := entry["correlationID"].(string)
		require.True(t, ok)
		_, err := uuid.Parse(correlationID)
		require.NoError(t, err)
		require.Equal(t, correlationID, w.Header().Get(logging.REQUEST_ID_HEADER))

		delete(entry, "correlationID")
		require.Equal(t, map[string]any{
			"level":      "INFO",
			"msg":        "handled",
			"methodPath": "POST /v1/ingest",
			"userAgent":  "cron/1.0",
		}, entry)
	})

	t.Run("caller request id is kept", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "http://example.com/healthz", nil)
		r.Header.Set(logging.REQUEST_ID_HEADER, "deploy-check-42")

		entry, w := serve(t, r)
		require.Equal(t, "deploy-check-42", entry["correlationID"])
		require.Equal(t, "deploy-check-42", w.Header().Get(logging.REQUEST_ID_HEADER))
		require.Equal(t, "<missing>", entry["userAgent"])
	})

	t.Run("oversized request id is replaced", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "http://example.com/healthz", nil)
		r.Header.Set(logging.REQUEST_ID_HEADER, strings.Repeat("a", 500))

		entry, _ := serve(t, r)
		_, err := uuid.Parse(entry["correlationID"].(string))
		require.NoError(t, err)
	})
}
