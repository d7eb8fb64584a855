package config_test

import (
	"testing"
	"time"

	"github.com/matchsync/matchsync/internal/config"
	"github.com/stretchr/testify/require"
)

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

var requiredOutsideDevelopment = []string{"DB_CONNECTION_STRING", "SENTRY_DSN"}

func TestGetConfig(t *testing.T) {
	requireEnv := func(t *testing.T, env environment, conf config.Config) {
		t.Helper()
		require.Equal(t, env == production, conf.IsProduction())
		require.Equal(t, env == staging, conf.IsStaging())
		require.Equal(t, env == development, conf.IsDevelopment())
	}

	t.Run("ensure base environment is clean", func(t *testing.T) {
		t.Run("environment is missing", func(t *testing.T) {
			// MATCHSYNC_ENVIRONMENT is required, so this should fail
			_, err := config.ConfigFromEnv()
			require.ErrorIs(t, err, config.ErrMissingRequiredValue)
		})

		t.Run("api key is missing", func(t *testing.T) {
			t.Setenv("MATCHSYNC_ENVIRONMENT", "development")

			_, err := config.ConfigFromEnv()
			require.ErrorIs(t, err, config.ErrMissingRequiredValue)
			require.ErrorContains(t, err, "LEGION_API_KEY")
		})

		t.Run("development defaults", func(t *testing.T) {
			t.Setenv("MATCHSYNC_ENVIRONMENT", "development")
			t.Setenv("LEGION_API_KEY", "key")

			conf, err := config.ConfigFromEnv()
			require.NoError(t, err)
			requireEnv(t, development, conf)

			require.Equal(t, "key", conf.APIKey())
			require.Equal(t, config.DEFAULT_API_URL, conf.APIURL())
			require.Equal(t, 50, conf.PageSize())
			require.Equal(t, config.DateFormatRFC3339, conf.DateFormat())
			require.False(t, conf.IncludeDetails())
			require.Equal(t, time.Hour, conf.IngestInterval())
			require.Equal(t, time.Hour, conf.IngestWindow())
			require.Equal(t, 5, conf.SteadyLimit())
			require.Equal(t, time.Second, conf.SteadyWindow())
			require.Equal(t, 100, conf.BurstLimit())
			require.Equal(t, time.Minute, conf.BurstWindow())
			require.Equal(t, 200*time.Millisecond, conf.MaxDelay())
			require.Equal(t, "", conf.DBConnectionString())
			require.Equal(t, "", conf.SentryDSN())
			require.Equal(t, "8080", conf.Port())
			require.False(t, conf.OTelEnabled())
		})
	})

	t.Run("values are read correctly", func(t *testing.T) {
		t.Setenv("LEGION_API_KEY", "my-key")
		t.Setenv("LEGION_API_URL", "http://localhost:1234/games")
		t.Setenv("LEGION_PAGE_SIZE", "25")
		t.Setenv("LEGION_DATE_FORMAT", "spaced")
		t.Setenv("LEGION_INCLUDE_DETAILS", "true")
		t.Setenv("INGEST_INTERVAL", "30m")
		t.Setenv("INGEST_WINDOW", "2h")
		t.Setenv("RATE_STEADY_LIMIT", "3")
		t.Setenv("RATE_STEADY_WINDOW", "2s")
		t.Setenv("RATE_BURST_LIMIT", "60")
		t.Setenv("RATE_BURST_WINDOW", "5m")
		t.Setenv("RATE_MAX_DELAY", "1s")
		t.Setenv("DB_CONNECTION_STRING", "DB_CONNECTION_STRING")
		t.Setenv("SENTRY_DSN", "SENTRY_DSN")
		t.Setenv("PORT", "9000")
		t.Setenv("OTEL_ENABLED", "1")

		for _, env := range []environment{production, staging, development} {
			t.Run(string(env), func(t *testing.T) {
				t.Setenv("MATCHSYNC_ENVIRONMENT", string(env))

				conf, err := config.ConfigFromEnv()
				require.NoError(t, err)
				requireEnv(t, env, conf)

				require.Equal(t, "my-key", conf.APIKey())
				require.Equal(t, "http://localhost:1234/games", conf.APIURL())
				require.Equal(t, 25, conf.PageSize())
				require.Equal(t, config.DateFormatSpaced, conf.DateFormat())
				require.True(t, conf.IncludeDetails())
				require.Equal(t, 30*time.Minute, conf.IngestInterval())
				require.Equal(t, 2*time.Hour, conf.IngestWindow())
				require.Equal(t, 3, conf.SteadyLimit())
				require.Equal(t, 2*time.Second, conf.SteadyWindow())
				require.Equal(t, 60, conf.BurstLimit())
				require.Equal(t, 5*time.Minute, conf.BurstWindow())
				require.Equal(t, time.Second, conf.MaxDelay())
				require.Equal(t, "DB_CONNECTION_STRING", conf.DBConnectionString())
				require.Equal(t, "SENTRY_DSN", conf.SentryDSN())
				require.Equal(t, "9000", conf.Port())
				require.True(t, conf.OTelEnabled())
			})
		}
	})

	t.Run("production and staging fail when missing variables", func(t *testing.T) {
		t.Setenv("LEGION_API_KEY", "key")
		for _, variable := range requiredOutsideDevelopment {
			t.Setenv(variable, "placeholder_value")
		}

		for _, env := range []environment{production, staging} {
			t.Run(string(env), func(t *testing.T) {
				t.Setenv("MATCHSYNC_ENVIRONMENT", string(env))

				for _, variable := range requiredOutsideDevelopment {
					t.Run(variable, func(t *testing.T) {
						t.Setenv(variable, "")

						_, err := config.ConfigFromEnv()
						require.ErrorIs(t, err, config.ErrMissingRequiredValue)
					})
				}
			})
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Setenv("LEGION_API_KEY", "key")

		t.Run("environment", func(t *testing.T) {
			for _, env := range []string{"", "invalid", "my-env"} {
				t.Run(env, func(t *testing.T) {
					t.Setenv("MATCHSYNC_ENVIRONMENT", env)
					_, err := config.ConfigFromEnv()
					require.ErrorIs(t, err, config.ErrInvalidValue)
				})
			}
		})

		cases := []struct {
			key   string
			value string
		}{
			{"LEGION_DATE_FORMAT", "unix"},
			{"LEGION_PAGE_SIZE", "0"},
			{"LEGION_PAGE_SIZE", "fifty"},
			{"RATE_STEADY_LIMIT", "-1"},
			{"RATE_BURST_WINDOW", "a minute"},
			{"RATE_MAX_DELAY", "0s"},
			{"INGEST_INTERVAL", "-1h"},
			{"OTEL_ENABLED", "maybe"},
		}
		for _, c := range cases {
			t.Run(c.key+"="+c.value, func(t *testing.T) {
				t.Setenv("MATCHSYNC_ENVIRONMENT", "development")
				t.Setenv(c.key, c.value)

				_, err := config.ConfigFromEnv()
				require.ErrorIs(t, err, config.ErrInvalidValue)
			})
		}
	})
}

func TestDateFormatLayout(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, time.March, 5, 7, 8, 9, 0, time.UTC)
	require.Equal(t, "2024-03-05T07:08:09Z", at.Format(config.DateFormatRFC3339.Layout()))
	require.Equal(t, "2024-03-05 07:08:09", at.Format(config.DateFormatSpaced.Layout()))
}
