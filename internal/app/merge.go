package app

import (
	"context"
	"fmt"

	"github.com/matchsync/matchsync/internal/adapters/matchrepository"
	"github.com/matchsync/matchsync/internal/domain"
	"github.com/matchsync/matchsync/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type MergeResult struct {
	MatchesInserted int `json:"matchesInserted"`
	MatchesSkipped  int `json:"matchesSkipped"`
	PlayersInserted int `json:"playersInserted"`
	PlayersSkipped  int `json:"playersSkipped"`
	LinksInserted   int `json:"linksInserted"`
	LinksSkipped    int `json:"linksSkipped"`
}

// Persist a batch of matches in one transaction without overwriting anything already stored.
// Any persistence error aborts and rolls back the whole batch.
type MergeMatches func(ctx context.Context, matches []domain.MatchWithPlayers) (MergeResult, error)

func mergeMatch(ctx context.Context, tx matchrepository.Tx, entry domain.MatchWithPlayers, result *MergeResult) error {
	match := entry.Match

	exists, err := tx.MatchExists(ctx, match.MatchID)
	if err != nil {
		return fmt.Errorf("failed to look up match %s: %w", match.MatchID, err)
	}
	inserted := false
	if !exists {
		inserted, err = tx.InsertMatch(ctx, match)
		if err != nil {
			return fmt.Errorf("failed to insert match %s: %w", match.MatchID, err)
		}
	}
	if inserted {
		result.MatchesInserted++
	} else {
		result.MatchesSkipped++
	}

	for _, player := range entry.Players {
		exists, err := tx.PlayerExists(ctx, player.PlayerID)
		if err != nil {
			return fmt.Errorf("failed to look up player %s: %w", player.PlayerID, err)
		}
		inserted := false
		if !exists {
			inserted, err = tx.InsertPlayer(ctx, domain.Player{
				PlayerID:   player.PlayerID,
				PlayerName: player.PlayerName,
			})
			if err != nil {
				return fmt.Errorf("failed to insert player %s: %w", player.PlayerID, err)
			}
		}
		if inserted {
			result.PlayersInserted++
		} else {
			result.PlayersSkipped++
		}

		linked, err := tx.IsLinked(ctx, player.PlayerID, match.MatchID)
		if err != nil {
			return fmt.Errorf("failed to look up link %s/%s: %w", player.PlayerID, match.MatchID, err)
		}
		inserted = false
		if !linked {
			inserted, err = tx.Link(ctx, match.MatchID, player)
			if err != nil {
				return fmt.Errorf("failed to link %s/%s: %w", player.PlayerID, match.MatchID, err)
			}
		}
		if inserted {
			result.LinksInserted++
		} else {
			result.LinksSkipped++
		}
	}

	return nil
}

func BuildMergeMatches(repo matchrepository.MatchRepository) MergeMatches {
	return func(ctx context.Context, matches []domain.MatchWithPlayers) (MergeResult, error) {
		logger := logging.FromContext(ctx)

		var result MergeResult
		err := repo.InTransaction(ctx, func(ctx context.Context, tx matchrepository.Tx) error {
			for _, entry := range matches {
				if err := mergeMatch(ctx, tx, entry, &result); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			// NOTE: MatchRepository implementations handle their own error reporting
			logger.ErrorContext(ctx, "Failed to merge matches", "error", err.Error(), "matches", len(matches))
			return MergeResult{}, fmt.Errorf("failed to merge matches: %w", err)
		}

		mergeMetrics.record(ctx, result)
		logger.InfoContext(
			ctx,
			"Merged matches",
			"matchesInserted", result.MatchesInserted,
			"matchesSkipped", result.MatchesSkipped,
			"playersInserted", result.PlayersInserted,
			"playersSkipped", result.PlayersSkipped,
			"linksInserted", result.LinksInserted,
			"linksSkipped", result.LinksSkipped,
		)

		return result, nil
	}
}

type mergeMetricsCollection struct {
	rows metric.Int64Counter
}

func (m mergeMetricsCollection) record(ctx context.Context, result MergeResult) {
	add := func(table, outcome string, count int) {
		m.rows.Add(ctx, int64(count), metric.WithAttributes(
			attribute.String("table", table),
			attribute.String("outcome", outcome),
		))
	}
	add("matches", "inserted", result.MatchesInserted)
	add("matches", "skipped", result.MatchesSkipped)
	add("players", "inserted", result.PlayersInserted)
	add("players", "skipped", result.PlayersSkipped)
	add("match_players", "inserted", result.LinksInserted)
	add("match_players", "skipped", result.LinksSkipped)
}

var mergeMetrics mergeMetricsCollection

func init() {
	meter := otel.Meter("matchsync/app")

	rows, err := meter.Int64Counter(
		"app/merge/rows",
		metric.WithDescription("Rows considered by the merger, by table and outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create merge metric: %w", err))
	}

	mergeMetrics = mergeMetricsCollection{
		rows: rows,
	}
}
