package reporting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/matchsync/matchsync/internal/config"
	"github.com/matchsync/matchsync/internal/logging"
)

var hostRx = regexp.MustCompile(`\[:{0,2}([0-9a-f]{0,4}:?){1,8}\]:\d+`)
var queryRx = regexp.MustCompile(`\?[^"\s]*`)

// Strip the parts of an error message that vary between runs (window bounds, offsets, hosts)
// so that Sentry groups the same failure together
func sanitizeError(err string) string {
	err = hostRx.ReplaceAllString(err, "<host>")
	err = queryRx.ReplaceAllString(err, "?<query>")
	return err
}

func Report(ctx context.Context, err error, extras ...map[string]string) {
	hub := sentry.GetHubFromContext(ctx)
	logger := logging.FromContext(ctx)
	if hub == nil {
		logger.WarnContext(ctx, "Failed to get Sentry hub from context", "error", err, "extras", extras)
		return
	}

	logger.ErrorContext(
		ctx,
		"Reporting error to Sentry",
		slog.Any("error", err),
		slog.Any("extras", extras),
	)

	hub.WithScope(func(scope *sentry.Scope) {
		metaFromContext(ctx).applyTo(scope, time.Now())

		for _, extra := range extras {
			for key, value := range extra {
				scope.SetExtra(key, value)
			}
		}

		if err == nil {
			err = errors.New("No error provided")
		}

		scope.SetFingerprint([]string{"{{ default }}", sanitizeError(err.Error())})
		hub.CaptureException(err)
	})
}

// Give an ingestion run its own Sentry hub and tag reports with the run id
func NewRunContext(ctx context.Context, runID string, startedAt time.Time) context.Context {
	ctx = sentry.SetHubOnContext(ctx, sentry.CurrentHub().Clone())
	return withMeta(ctx, func(meta *reportMeta) {
		meta.runID = runID
		meta.startedAt = startedAt
	})
}

func NewAddMetaMiddleware(port string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			userAgent := r.UserAgent()
			if userAgent == "" {
				userAgent = "<missing>"
			}

			ctx = withMeta(ctx, func(meta *reportMeta) {
				meta.tags["port"] = port
				meta.tags["userAgent"] = userAgent
				meta.tags["methodPath"] = fmt.Sprintf("%s %s", r.Method, r.URL.Path)
				meta.startedAt = time.Now()
			})

			next(w, r.WithContext(ctx))
		}
	}
}

type Sentry struct {
	Middleware func(http.HandlerFunc) http.HandlerFunc
	Flush      func()
}

func InitSentry(sentryDSN string, environment string) (Sentry, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              sentryDSN,
		Environment:      environment,
		EnableTracing:    true,
		TracesSampleRate: 1.0 / 100.0,
	})
	if err != nil {
		return Sentry{}, err
	}

	sentryHandler := sentryhttp.New(sentryhttp.Options{})

	// Wrap sentry middleware in a http.HandlerFunc
	middleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			sentryHandler.HandleFunc(next).ServeHTTP(w, r)
		}
	}

	return Sentry{
		Middleware: middleware,
		Flush: func() {
			sentry.Flush(5 * time.Second)
		},
	}, nil
}

func NewSentryOrMock(conf config.Config) (Sentry, error) {
	if conf.SentryDSN() != "" {
		environment := "staging"
		if conf.IsProduction() {
			environment = "production"
		} else if conf.IsDevelopment() {
			environment = "development"
		}
		return InitSentry(conf.SentryDSN(), environment)
	}

	if conf.IsDevelopment() {
		return Sentry{
			Middleware: func(next http.HandlerFunc) http.HandlerFunc {
				return next
			},
			Flush: func() {},
		}, nil
	}

	return Sentry{}, fmt.Errorf("Missing Sentry DSN in non-development environment")
}
