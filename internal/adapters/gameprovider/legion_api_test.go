package gameprovider

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/matchsync/matchsync/internal/config"
	"github.com/matchsync/matchsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const apiKey = "key"

var expectedHeaders = http.Header{
	// NOTE: go's http.Header automatically camelcases the keys
	"User-Agent": {"matchsync/0.1.0 (+https://github.com/matchsync/matchsync)"},
	"X-Api-Key":  {apiKey},
}

type mockedHttpClient struct {
	t           *testing.T
	expectedURL string
	response    *http.Response
	statusCode  int
	body        string
	requestErr  error
}

func (m *mockedHttpClient) Do(req *http.Request) (*http.Response, error) {
	require.Equal(m.t, m.expectedURL, req.URL.String())
	require.True(m.t, reflect.DeepEqual(expectedHeaders, req.Header), "Expected %v, got %v", expectedHeaders, req.Header)

	if m.response != nil {
		return m.response, m.requestErr
	}
	if m.requestErr != nil {
		return nil, m.requestErr
	}

	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

type cantRead struct{}

func (c cantRead) Read(p []byte) (n int, err error) {
	return 0, assert.AnError
}

func (c cantRead) Close() error {
	return nil
}

func newMockedHttpClient(t *testing.T, expectedURL string, statusCode int, body string, err error) *mockedHttpClient {
	return &mockedHttpClient{
		t:           t,
		expectedURL: expectedURL,
		statusCode:  statusCode,
		body:        body,
		requestErr:  err,
	}
}

func TestFetchPage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now()
	nowFunc := func() time.Time {
		return now
	}

	windowStart := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	windowEnd := windowStart.Add(time.Hour)

	const pageURL = "https://example.com/games?dateAfter=2024-05-01T12%3A00%3A00Z&dateBefore=2024-05-01T13%3A00%3A00Z&limit=50&offset=100"

	newAPI := func(t *testing.T, httpClient HttpClient, opts ...config.Option) PageFetcher {
		t.Helper()
		opts = append([]config.Option{config.WithAPIURL("https://example.com/games")}, opts...)
		api, err := NewLegionAPI(httpClient, config.NewDevelopmentConfig(apiKey, opts...), nowFunc)
		require.NoError(t, err)
		return api
	}

	t.Run("bare array", func(t *testing.T) {
		t.Parallel()

		httpClient := newMockedHttpClient(t, pageURL, 200, `[{"_id":"a"},{"_id":"b"},{"_id":"c"}]`, nil)

		page, err := newAPI(t, httpClient).FetchPage(ctx, windowStart, windowEnd, 100, 50)
		require.NoError(t, err)
		require.Len(t, page.Records, 3)
		require.Nil(t, page.HasMore)
		require.JSONEq(t, `{"_id":"b"}`, string(page.Records[1]))
	})

	t.Run("games envelope", func(t *testing.T) {
		t.Parallel()

		httpClient := newMockedHttpClient(t, pageURL, 200, `{"games":[{"_id":"a"},{"_id":"b"},{"_id":"c"}],"has_more":true}`, nil)

		page, err := newAPI(t, httpClient).FetchPage(ctx, windowStart, windowEnd, 100, 50)
		require.NoError(t, err)
		require.Len(t, page.Records, 3)
		require.NotNil(t, page.HasMore)
		require.True(t, *page.HasMore)
	})

	t.Run("window is converted to utc", func(t *testing.T) {
		t.Parallel()

		oslo := time.FixedZone("CEST", 2*60*60)
		httpClient := newMockedHttpClient(t, pageURL, 200, `[]`, nil)

		page, err := newAPI(t, httpClient).FetchPage(ctx, windowStart.In(oslo), windowEnd.In(oslo), 100, 50)
		require.NoError(t, err)
		require.Empty(t, page.Records)
	})

	t.Run("spaced date format and details", func(t *testing.T) {
		t.Parallel()

		httpClient := newMockedHttpClient(
			t,
			"https://example.com/games?dateAfter=2024-05-01+12%3A00%3A00&dateBefore=2024-05-01+13%3A00%3A00&includeDetails=true&limit=10&offset=0",
			200,
			`[]`,
			nil,
		)

		api := newAPI(t, httpClient, config.WithDateFormat(config.DateFormatSpaced), config.WithIncludeDetails(true))
		_, err := api.FetchPage(ctx, windowStart, windowEnd, 0, 10)
		require.NoError(t, err)
	})

	t.Run("non-200 status", func(t *testing.T) {
		t.Parallel()

		for _, statusCode := range []int{400, 403, 429, 500, 503} {
			httpClient := newMockedHttpClient(t, pageURL, statusCode, `{"message":"nope"}`, nil)

			_, err := newAPI(t, httpClient).FetchPage(ctx, windowStart, windowEnd, 100, 50)
			require.ErrorIs(t, err, domain.ErrUpstreamStatus)

			var statusErr *domain.UpstreamStatusError
			require.ErrorAs(t, err, &statusErr)
			require.Equal(t, statusCode, statusErr.StatusCode)
			require.Equal(t, `{"message":"nope"}`, statusErr.Body)
		}
	})

	t.Run("malformed payloads", func(t *testing.T) {
		t.Parallel()

		for _, body := range []string{``, `null`, `"games"`, `{"matches":[]}`, `[{"_id":"a"}`, `<html></html>`} {
			httpClient := newMockedHttpClient(t, pageURL, 200, body, nil)

			_, err := newAPI(t, httpClient).FetchPage(ctx, windowStart, windowEnd, 100, 50)
			require.ErrorIs(t, err, domain.ErrMalformedPayload, "body: %q", body)
		}
	})

	t.Run("request error", func(t *testing.T) {
		t.Parallel()

		httpClient := newMockedHttpClient(t, pageURL, 0, "", assert.AnError)

		_, err := newAPI(t, httpClient).FetchPage(ctx, windowStart, windowEnd, 100, 50)
		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("body read error", func(t *testing.T) {
		t.Parallel()

		httpClient := &mockedHttpClient{
			t:           t,
			expectedURL: pageURL,
			response: &http.Response{
				StatusCode: 200,
				Body:       cantRead{},
			},
		}

		_, err := newAPI(t, httpClient).FetchPage(ctx, windowStart, windowEnd, 100, 50)
		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("invalid api url", func(t *testing.T) {
		t.Parallel()

		_, err := NewLegionAPI(http.DefaultClient, config.NewDevelopmentConfig(apiKey, config.WithAPIURL("://missing-scheme")), nowFunc)
		require.Error(t, err)
	})
}
