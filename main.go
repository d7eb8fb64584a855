package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/matchsync/matchsync/internal/adapters/database"
	"github.com/matchsync/matchsync/internal/adapters/gameprovider"
	"github.com/matchsync/matchsync/internal/adapters/matchrepository"
	"github.com/matchsync/matchsync/internal/app"
	"github.com/matchsync/matchsync/internal/config"
	"github.com/matchsync/matchsync/internal/constants"
	"github.com/matchsync/matchsync/internal/logging"
	"github.com/matchsync/matchsync/internal/ports"
	"github.com/matchsync/matchsync/internal/ratelimiting"
	"github.com/matchsync/matchsync/internal/reporting"
	"github.com/matchsync/matchsync/internal/scheduling"
	"github.com/matchsync/matchsync/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const SERVICE_NAME = "matchsync"

// How long the upstream circuit stays open before a trial request is let through
const CIRCUIT_OPEN_TIMEOUT = 2 * time.Minute

func main() {
	instanceID := uuid.New().String()
	logger := slog.New(logging.NewTracingLogHandler(slog.NewJSONHandler(os.Stdout, nil))).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file loaded", "error", err.Error())
	}

	conf, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger.Info("Loaded config", "config", conf.NonSensitiveString())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.AddToContext(ctx, logger)

	if conf.OTelEnabled() {
		shutdownOTel, err := telemetry.SetupOTelSDK(ctx, telemetry.ServiceInfo{
			Name:       SERVICE_NAME,
			Version:    constants.VERSION,
			InstanceID: instanceID,
		})
		if err != nil {
			fail("Failed to set up OpenTelemetry", "error", err.Error())
		}
		defer func() {
			if err := shutdownOTel(context.Background()); err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	sentry, err := reporting.NewSentryOrMock(conf)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer sentry.Flush()
	logger.Info("Initialized Sentry")

	logger.Info("Initializing database connection")
	db, err := database.NewPostgresDatabaseFromConfig(ctx, conf)
	if err != nil {
		fail("Failed to initialize database", "error", err.Error())
	}
	defer db.Close()

	schemaName := database.GetSchemaName(!conf.IsProduction())
	schemaVersion, err := database.NewMigrator(db, logger.With("component", "migrator")).Migrate(ctx, schemaName)
	if err != nil {
		fail("Failed to migrate database", "error", err.Error())
	}
	repo := matchrepository.NewPostgres(db, schemaName)
	logger.Info("Initialized MatchRepository", "schema", schemaName, "schemaVersion", schemaVersion)

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	legionAPI, err := gameprovider.NewLegionAPI(httpClient, conf, time.Now)
	if err != nil {
		fail("Failed to initialize Legion API", "error", err.Error())
	}
	fetcher := gameprovider.NewCircuitBreakerFetcher(legionAPI, CIRCUIT_OPEN_TIMEOUT, logger.With("component", "circuitbreaker"))
	governor := ratelimiting.NewGovernorFromConfig(conf, time.Now, time.After)

	ingestWindow := app.BuildIngestWindow(
		app.BuildFetchAll(fetcher, governor, conf.PageSize(), time.After),
		gameprovider.Normalize,
		app.BuildMergeMatches(repo),
		time.Now,
	)
	ingestRecent := app.BuildIngestRecent(ingestWindow, time.Now)

	scheduler, err := scheduling.StartIngestion(ctx, ingestRecent, conf.IngestInterval(), conf.IngestWindow())
	if err != nil {
		fail("Failed to start scheduler", "error", err.Error())
	}

	ipLimiter, stopIPLimiter := ratelimiting.NewKeyedTokenBucket(
		ratelimiting.RefillPerSecond(1.0/60.0),
		ratelimiting.BurstSize(5),
		time.Now,
	)
	defer stopIPLimiter()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", ports.MakeHealthzHandler())
	mux.HandleFunc(
		"POST /v1/ingest",
		ports.MakeIngestHandler(
			ingestRecent,
			conf.IngestWindow(),
			ratelimiting.NewRequestRateLimiter(ipLimiter, ratelimiting.IPKeyFunc),
			logger.With("port", "ingest"),
			sentry.Middleware,
		),
	)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", conf.Port()),
		Handler: otelhttp.NewHandler(mux, SERVICE_NAME),
		BaseContext: func(net.Listener) context.Context {
			// Let in-flight requests finish during shutdown
			return context.WithoutCancel(ctx)
		},
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()
	logger.Info("Init complete", "port", conf.Port())

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err.Error())
		}
	}

	if err := scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shut down scheduler", "error", err.Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down server", "error", err.Error())
	}
	logger.Info("Server shutdown")
}
