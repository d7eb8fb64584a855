package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/matchsync/matchsync/internal/adapters/database"
	"github.com/matchsync/matchsync/internal/adapters/gameprovider"
	"github.com/matchsync/matchsync/internal/adapters/matchrepository"
	"github.com/matchsync/matchsync/internal/app"
	"github.com/matchsync/matchsync/internal/config"
	"github.com/matchsync/matchsync/internal/logging"
	"github.com/matchsync/matchsync/internal/ratelimiting"
	"github.com/matchsync/matchsync/internal/reporting"
)

type window struct {
	start time.Time
	end   time.Time
}

// Resolve the window from either -start/-end or -window (trailing, ending now)
func parseWindow(rawStart, rawEnd string, trailing time.Duration, now time.Time) (window, error) {
	if rawStart == "" && rawEnd == "" {
		if trailing <= 0 {
			return window{}, fmt.Errorf("-window must be positive, got %s", trailing)
		}
		end := now.UTC()
		return window{start: end.Add(-trailing), end: end}, nil
	}

	if rawStart == "" || rawEnd == "" {
		return window{}, fmt.Errorf("-start and -end must be given together")
	}

	start, err := time.Parse(time.RFC3339, rawStart)
	if err != nil {
		return window{}, fmt.Errorf("invalid -start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, rawEnd)
	if err != nil {
		return window{}, fmt.Errorf("invalid -end: %w", err)
	}
	if !start.Before(end) {
		return window{}, fmt.Errorf("-start must be before -end")
	}

	return window{start: start.UTC(), end: end.UTC()}, nil
}

type summaryOutput struct {
	app.RunSummary
	Error string `json:"error,omitempty"`
}

func main() {
	rawStart := flag.String("start", "", "window start (RFC3339)")
	rawEnd := flag.String("end", "", "window end (RFC3339)")
	trailing := flag.Duration("window", time.Hour, "trailing window ending now, used when -start/-end are not given")
	dryRun := flag.Bool("dry-run", false, "fetch and merge into an in-memory store instead of the database")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("component", "ingest-window")

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	w, err := parseWindow(*rawStart, *rawEnd, *trailing, time.Now())
	if err != nil {
		flag.Usage()
		fail("Invalid window", "error", err.Error())
	}

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file loaded", "error", err.Error())
	}

	conf, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.AddToContext(ctx, logger)

	sentry, err := reporting.NewSentryOrMock(conf)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer sentry.Flush()

	var repo matchrepository.MatchRepository
	if *dryRun {
		repo = matchrepository.NewInMemory()
	} else {
		db, err := database.NewPostgresDatabaseFromConfig(ctx, conf)
		if err != nil {
			fail("Failed to initialize database", "error", err.Error())
		}
		defer db.Close()

		schemaName := database.GetSchemaName(!conf.IsProduction())
		_, err = database.NewMigrator(db, logger.With("component", "migrator")).Migrate(ctx, schemaName)
		if err != nil {
			fail("Failed to migrate database", "error", err.Error())
		}
		repo = matchrepository.NewPostgres(db, schemaName)
	}

	legionAPI, err := gameprovider.NewLegionAPI(&http.Client{Timeout: 30 * time.Second}, conf, time.Now)
	if err != nil {
		fail("Failed to initialize Legion API", "error", err.Error())
	}

	ingestWindow := app.BuildIngestWindow(
		app.BuildFetchAll(legionAPI, ratelimiting.NewGovernorFromConfig(conf, time.Now, time.After), conf.PageSize(), time.After),
		gameprovider.Normalize,
		app.BuildMergeMatches(repo),
		time.Now,
	)

	summary, err := ingestWindow(ctx, w.start, w.end)
	if err != nil {
		sentry.Flush()
		fail("Ingestion failed", "error", err.Error())
	}

	output := summaryOutput{RunSummary: summary}
	if summary.Err != nil {
		output.Error = summary.Err.Error()
	}
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fail("Failed to marshal summary", "error", err.Error())
	}
	fmt.Println(string(data))
}
