package gameprovider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/matchsync/matchsync/internal/config"
	"github.com/matchsync/matchsync/internal/constants"
	"github.com/matchsync/matchsync/internal/domain"
	"github.com/matchsync/matchsync/internal/logging"
	"github.com/matchsync/matchsync/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const API_KEY_HEADER = "x-api-key"

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type legionAPI struct {
	httpClient     HttpClient
	apiURL         string
	apiKey         string
	dateLayout     string
	includeDetails bool
	nowFunc        func() time.Time

	metrics legionAPIMetricsCollection
}

func NewLegionAPI(httpClient HttpClient, conf config.Config, nowFunc func() time.Time) (PageFetcher, error) {
	if _, err := url.Parse(conf.APIURL()); err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}

	meter := otel.Meter("gameprovider/legion_api")
	metrics, err := setupLegionAPIMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &legionAPI{
		httpClient:     httpClient,
		apiURL:         conf.APIURL(),
		apiKey:         conf.APIKey(),
		dateLayout:     conf.DateFormat().Layout(),
		includeDetails: conf.IncludeDetails(),
		nowFunc:        nowFunc,

		metrics: metrics,
	}, nil
}

func (l *legionAPI) pageURL(windowStart, windowEnd time.Time, offset, pageSize int) (string, error) {
	u, err := url.Parse(l.apiURL)
	if err != nil {
		return "", err
	}

	query := u.Query()
	query.Set("dateAfter", windowStart.UTC().Format(l.dateLayout))
	query.Set("dateBefore", windowEnd.UTC().Format(l.dateLayout))
	query.Set("limit", strconv.Itoa(pageSize))
	query.Set("offset", strconv.Itoa(offset))
	if l.includeDetails {
		query.Set("includeDetails", "true")
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}

func (l *legionAPI) FetchPage(ctx context.Context, windowStart, windowEnd time.Time, offset, pageSize int) (PageResult, error) {
	logger := logging.FromContext(ctx)

	pageURL, err := l.pageURL(windowStart, windowEnd, offset, pageSize)
	if err != nil {
		err := fmt.Errorf("failed to build page url: %w", err)
		reporting.Report(ctx, err)
		return PageResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		err := fmt.Errorf("failed to create request: %w", err)
		reporting.Report(ctx, err)
		return PageResult{}, err
	}

	req.Header.Set("User-Agent", constants.USER_AGENT)
	req.Header.Set(API_KEY_HEADER, l.apiKey)

	start := l.nowFunc()
	resp, err := l.httpClient.Do(req)
	if err != nil {
		err := fmt.Errorf("failed to send request: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"offset": strconv.Itoa(offset),
		})
		return PageResult{}, err
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err := fmt.Errorf("failed to read response body: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"offset": strconv.Itoa(offset),
		})
		return PageResult{}, err
	}

	logger.InfoContext(
		ctx,
		"legion request completed",
		"url", pageURL,
		"status", resp.StatusCode,
		"contentLength", len(data),
		"duration", l.nowFunc().Sub(start).String(),
	)
	l.metrics.responseCount.Add(ctx, 1, metric.WithAttributes(attribute.Int("status", resp.StatusCode)))

	if resp.StatusCode != http.StatusOK {
		err := &domain.UpstreamStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
		reporting.Report(ctx, err, map[string]string{
			"offset":     strconv.Itoa(offset),
			"statusCode": strconv.Itoa(resp.StatusCode),
			"data":       string(data),
		})
		return PageResult{}, err
	}

	page, err := DecodePage(data)
	if err != nil {
		reporting.Report(ctx, err, map[string]string{
			"offset": strconv.Itoa(offset),
			"data":   string(data),
		})
		return PageResult{}, err
	}

	l.metrics.recordCount.Add(ctx, int64(len(page.Records)))

	return page, nil
}

type legionAPIMetricsCollection struct {
	responseCount metric.Int64Counter
	recordCount   metric.Int64Counter
}

func setupLegionAPIMetrics(meter metric.Meter) (legionAPIMetricsCollection, error) {
	responseCount, err := meter.Int64Counter("gameprovider/legion_api/responses")
	if err != nil {
		return legionAPIMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	recordCount, err := meter.Int64Counter("gameprovider/legion_api/records")
	if err != nil {
		return legionAPIMetricsCollection{}, fmt.Errorf("failed to create metric: %w", err)
	}

	return legionAPIMetricsCollection{
		responseCount: responseCount,
		recordCount:   recordCount,
	}, nil
}
