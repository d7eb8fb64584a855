package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

// How window bounds are rendered in the upstream query string
type DateFormat string

const (
	// 2024-01-01T12:00:00Z
	DateFormatRFC3339 DateFormat = "rfc3339"
	// 2024-01-01 12:00:00
	DateFormatSpaced DateFormat = "spaced"
)

func (f DateFormat) Layout() string {
	if f == DateFormatSpaced {
		return "2006-01-02 15:04:05"
	}
	return time.RFC3339
}

const DEFAULT_API_URL = "https://apiv2.legiontd2.com/games"

type Config struct {
	env environment

	apiKey         string
	apiURL         string
	pageSize       int
	dateFormat     DateFormat
	includeDetails bool

	ingestInterval time.Duration
	ingestWindow   time.Duration

	steadyLimit  int
	steadyWindow time.Duration
	burstLimit   int
	burstWindow  time.Duration
	maxDelay     time.Duration

	dbConnectionString string
	sentryDSN          string
	port               string
	otelEnabled        bool
}

func (c *Config) APIKey() string {
	return c.apiKey
}

func (c *Config) APIURL() string {
	return c.apiURL
}

// Maximum number of records requested per upstream call
func (c *Config) PageSize() int {
	return c.pageSize
}

func (c *Config) DateFormat() DateFormat {
	return c.dateFormat
}

func (c *Config) IncludeDetails() bool {
	return c.includeDetails
}

func (c *Config) IngestInterval() time.Duration {
	return c.ingestInterval
}

func (c *Config) IngestWindow() time.Duration {
	return c.ingestWindow
}

func (c *Config) SteadyLimit() int {
	return c.steadyLimit
}

func (c *Config) SteadyWindow() time.Duration {
	return c.steadyWindow
}

func (c *Config) BurstLimit() int {
	return c.burstLimit
}

func (c *Config) BurstWindow() time.Duration {
	return c.burstWindow
}

// Longest the rate governor blocks before reporting a stall
func (c *Config) MaxDelay() time.Duration {
	return c.maxDelay
}

func (c *Config) DBConnectionString() string {
	return c.dbConnectionString
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) OTelEnabled() bool {
	return c.otelEnabled
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, apiURL: %s, pageSize: %d, dateFormat: %s, includeDetails: %t, interval: %s, window: %s, steady: %d/%s, burst: %d/%s, maxDelay: %s, port: %s, otel: %t, ...}",
		string(c.env),
		c.apiURL,
		c.pageSize,
		string(c.dateFormat),
		c.includeDetails,
		c.ingestInterval,
		c.ingestWindow,
		c.steadyLimit,
		c.steadyWindow,
		c.burstLimit,
		c.burstWindow,
		c.maxDelay,
		c.port,
		c.otelEnabled,
	)
}

type Option func(*Config)

// Override the upstream URL, e.g. to point at a test server
func WithAPIURL(apiURL string) Option {
	return func(c *Config) {
		c.apiURL = apiURL
	}
}

func WithPageSize(pageSize int) Option {
	return func(c *Config) {
		c.pageSize = pageSize
	}
}

func WithDateFormat(dateFormat DateFormat) Option {
	return func(c *Config) {
		c.dateFormat = dateFormat
	}
}

func WithIncludeDetails(includeDetails bool) Option {
	return func(c *Config) {
		c.includeDetails = includeDetails
	}
}

func WithDBConnectionString(connectionString string) Option {
	return func(c *Config) {
		c.dbConnectionString = connectionString
	}
}

// Report the production environment, for exercising environment-dependent fallbacks
func WithProduction() Option {
	return func(c *Config) {
		c.env = production
	}
}

func WithRates(steadyLimit int, steadyWindow time.Duration, burstLimit int, burstWindow time.Duration, maxDelay time.Duration) Option {
	return func(c *Config) {
		c.steadyLimit = steadyLimit
		c.steadyWindow = steadyWindow
		c.burstLimit = burstLimit
		c.burstWindow = burstWindow
		c.maxDelay = maxDelay
	}
}

// Build a development config directly. Used by tests and tools that don't read the environment.
func NewDevelopmentConfig(apiKey string, opts ...Option) Config {
	c := Config{
		env:            development,
		apiKey:         apiKey,
		apiURL:         DEFAULT_API_URL,
		pageSize:       50,
		dateFormat:     DateFormatRFC3339,
		ingestInterval: time.Hour,
		ingestWindow:   time.Hour,
		steadyLimit:    5,
		steadyWindow:   time.Second,
		burstLimit:     100,
		burstWindow:    time.Minute,
		maxDelay:       200 * time.Millisecond,
		port:           "8080",
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}
	invalidValue := func(key, value string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, value)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("MATCHSYNC_ENVIRONMENT")
	if !ok {
		return missingKey("MATCHSYNC_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return invalidValue("MATCHSYNC_ENVIRONMENT", rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	// Ingestion can't do anything without a key, so it is required in every environment
	apiKey := os.Getenv("LEGION_API_KEY")
	if apiKey == "" {
		return missingKey("LEGION_API_KEY")
	}

	apiURL := os.Getenv("LEGION_API_URL")
	if apiURL == "" {
		apiURL = DEFAULT_API_URL
	}

	var dateFormat DateFormat
	switch rawFormat := os.Getenv("LEGION_DATE_FORMAT"); rawFormat {
	case "", string(DateFormatRFC3339):
		dateFormat = DateFormatRFC3339
	case string(DateFormatSpaced):
		dateFormat = DateFormatSpaced
	default:
		return invalidValue("LEGION_DATE_FORMAT", rawFormat)
	}

	ints := map[string]int{
		"LEGION_PAGE_SIZE":  50,
		"RATE_STEADY_LIMIT": 5,
		"RATE_BURST_LIMIT":  100,
	}
	for key := range ints {
		raw := os.Getenv(key)
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 {
			return invalidValue(key, raw)
		}
		ints[key] = value
	}

	durations := map[string]time.Duration{
		"INGEST_INTERVAL":    time.Hour,
		"INGEST_WINDOW":      time.Hour,
		"RATE_STEADY_WINDOW": time.Second,
		"RATE_BURST_WINDOW":  time.Minute,
		"RATE_MAX_DELAY":     200 * time.Millisecond,
	}
	for key := range durations {
		raw := os.Getenv(key)
		if raw == "" {
			continue
		}
		value, err := time.ParseDuration(raw)
		if err != nil || value <= 0 {
			return invalidValue(key, raw)
		}
		durations[key] = value
	}

	bools := map[string]bool{
		"LEGION_INCLUDE_DETAILS": false,
		"OTEL_ENABLED":           false,
	}
	for key := range bools {
		raw := os.Getenv(key)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return invalidValue(key, raw)
		}
		bools[key] = value
	}

	dbConnectionString := os.Getenv("DB_CONNECTION_STRING")
	sentryDSN := os.Getenv("SENTRY_DSN")

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if env == production || env == staging {
		if dbConnectionString == "" {
			return missingKey("DB_CONNECTION_STRING")
		}
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
	}

	return Config{
		env: env,

		apiKey:         apiKey,
		apiURL:         apiURL,
		pageSize:       ints["LEGION_PAGE_SIZE"],
		dateFormat:     dateFormat,
		includeDetails: bools["LEGION_INCLUDE_DETAILS"],

		ingestInterval: durations["INGEST_INTERVAL"],
		ingestWindow:   durations["INGEST_WINDOW"],

		steadyLimit:  ints["RATE_STEADY_LIMIT"],
		steadyWindow: durations["RATE_STEADY_WINDOW"],
		burstLimit:   ints["RATE_BURST_LIMIT"],
		burstWindow:  durations["RATE_BURST_WINDOW"],
		maxDelay:     durations["RATE_MAX_DELAY"],

		dbConnectionString: dbConnectionString,
		sentryDSN:          sentryDSN,
		port:               port,
		otelEnabled:        bools["OTEL_ENABLED"],
	}, nil
}
