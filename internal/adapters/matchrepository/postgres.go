package matchrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/matchsync/matchsync/internal/domain"
	"github.com/matchsync/matchsync/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Postgres struct {
	db     *sqlx.DB
	schema string

	tracer trace.Tracer
}

func NewPostgres(db *sqlx.DB, schema string) *Postgres {
	tracer := otel.Tracer("matchsync/matchrepository/postgres")

	return &Postgres{
		db:     db,
		schema: schema,

		tracer: tracer,
	}
}

type dbMatch struct {
	MatchID     string    `db:"match_id"`
	Date        time.Time `db:"date"`
	QueueType   string    `db:"queue_type"`
	PlayerCount int       `db:"player_count"`
	HumanCount  int       `db:"human_count"`
	GameLength  int       `db:"game_length"`
}

type dbPlayer struct {
	PlayerID   string `db:"player_id"`
	PlayerName string `db:"player_name"`
}

type dbMatchPlayer struct {
	PlayerID          string  `db:"player_id"`
	PlayerName        string  `db:"player_name"`
	PlayerSlot        int     `db:"player_slot"`
	Legion            string  `db:"legion"`
	GameResult        string  `db:"game_result"`
	OverallElo        float64 `db:"overall_elo"`
	QueueElo          float64 `db:"queue_elo"`
	PartySize         int     `db:"party_size"`
	Workers           float64 `db:"workers"`
	LegionSpecificElo float64 `db:"legion_specific_elo"`
}

func (p *Postgres) InTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.InTransaction")
	defer span.End()

	txx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		err := fmt.Errorf("failed to start transaction: %w", err)
		reporting.Report(ctx, err)
		return err
	}
	defer txx.Rollback()

	_, err = txx.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", pq.QuoteIdentifier(p.schema)))
	if err != nil {
		err := fmt.Errorf("failed to set search path: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"schema": p.schema,
		})
		return err
	}

	err = fn(ctx, &postgresTx{txx: txx, tracer: p.tracer})
	if err != nil {
		return err
	}

	err = txx.Commit()
	if err != nil {
		err := fmt.Errorf("failed to commit transaction: %w", err)
		reporting.Report(ctx, err)
		return err
	}

	return nil
}

func (p *Postgres) GetMatch(ctx context.Context, matchID string) (domain.Match, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.GetMatch")
	defer span.End()

	var entry dbMatch
	err := p.db.GetContext(ctx, &entry, fmt.Sprintf(`SELECT
		match_id, date, queue_type, player_count, human_count, game_length
		FROM %s.matches
		WHERE match_id = $1`,
		pq.QuoteIdentifier(p.schema),
	),
		matchID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Match{}, domain.ErrMatchNotFound
		}
		err := fmt.Errorf("failed to select match: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"matchID": matchID,
		})
		return domain.Match{}, err
	}

	return domain.Match{
		MatchID:     entry.MatchID,
		Date:        entry.Date.UTC(),
		QueueType:   entry.QueueType,
		PlayerCount: entry.PlayerCount,
		HumanCount:  entry.HumanCount,
		GameLength:  entry.GameLength,
	}, nil
}

func (p *Postgres) GetPlayer(ctx context.Context, playerID string) (domain.Player, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.GetPlayer")
	defer span.End()

	var entry dbPlayer
	err := p.db.GetContext(ctx, &entry, fmt.Sprintf(`SELECT
		player_id, player_name
		FROM %s.players
		WHERE player_id = $1`,
		pq.QuoteIdentifier(p.schema),
	),
		playerID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Player{}, domain.ErrPlayerNotFound
		}
		err := fmt.Errorf("failed to select player: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"playerID": playerID,
		})
		return domain.Player{}, err
	}

	return domain.Player{
		PlayerID:   entry.PlayerID,
		PlayerName: entry.PlayerName,
	}, nil
}

func (p *Postgres) GetMatchPlayers(ctx context.Context, matchID string) ([]domain.MatchPlayer, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.GetMatchPlayers")
	defer span.End()

	var entries []dbMatchPlayer
	err := p.db.SelectContext(ctx, &entries, fmt.Sprintf(`SELECT
		mp.player_id, p.player_name, mp.player_slot, mp.legion, mp.game_result,
		mp.overall_elo, mp.queue_elo, mp.party_size, mp.workers, mp.legion_specific_elo
		FROM %[1]s.match_players mp
		JOIN %[1]s.players p ON p.player_id = mp.player_id
		WHERE mp.match_id = $1
		ORDER BY mp.player_slot ASC, mp.player_id ASC`,
		pq.QuoteIdentifier(p.schema),
	),
		matchID,
	)
	if err != nil {
		err := fmt.Errorf("failed to select match players: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"matchID": matchID,
		})
		return nil, err
	}

	players := make([]domain.MatchPlayer, 0, len(entries))
	for _, entry := range entries {
		players = append(players, domain.MatchPlayer(entry))
	}

	return players, nil
}

type postgresTx struct {
	txx *sqlx.Tx

	tracer trace.Tracer
}

func (t *postgresTx) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var exists bool
	if err := t.txx.GetContext(ctx, &exists, query, args...); err != nil {
		return false, err
	}
	return exists, nil
}

// Run an insert that is a no-op on conflict and report whether a row was written
func (t *postgresTx) insert(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := t.txx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (t *postgresTx) MatchExists(ctx context.Context, matchID string) (bool, error) {
	ctx, span := t.tracer.Start(ctx, "Postgres.MatchExists")
	defer span.End()

	exists, err := t.exists(ctx, "SELECT EXISTS(SELECT 1 FROM matches WHERE match_id = $1)", matchID)
	if err != nil {
		err := fmt.Errorf("failed to look up match: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"matchID": matchID,
		})
		return false, err
	}
	return exists, nil
}

func (t *postgresTx) InsertMatch(ctx context.Context, match domain.Match) (bool, error) {
	ctx, span := t.tracer.Start(ctx, "Postgres.InsertMatch")
	defer span.End()

	inserted, err := t.insert(
		ctx,
		`INSERT INTO matches
		(match_id, date, queue_type, player_count, human_count, game_length)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (match_id) DO NOTHING`,
		match.MatchID,
		match.Date,
		match.QueueType,
		match.PlayerCount,
		match.HumanCount,
		match.GameLength,
	)
	if err != nil {
		err := fmt.Errorf("failed to insert match: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"matchID": match.MatchID,
			"date":    match.Date.Format(time.RFC3339),
		})
		return false, err
	}
	return inserted, nil
}

func (t *postgresTx) PlayerExists(ctx context.Context, playerID string) (bool, error) {
	ctx, span := t.tracer.Start(ctx, "Postgres.PlayerExists")
	defer span.End()

	exists, err := t.exists(ctx, "SELECT EXISTS(SELECT 1 FROM players WHERE player_id = $1)", playerID)
	if err != nil {
		err := fmt.Errorf("failed to look up player: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"playerID": playerID,
		})
		return false, err
	}
	return exists, nil
}

func (t *postgresTx) InsertPlayer(ctx context.Context, player domain.Player) (bool, error) {
	ctx, span := t.tracer.Start(ctx, "Postgres.InsertPlayer")
	defer span.End()

	inserted, err := t.insert(
		ctx,
		`INSERT INTO players
		(player_id, player_name)
		VALUES ($1, $2)
		ON CONFLICT (player_id) DO NOTHING`,
		player.PlayerID,
		player.PlayerName,
	)
	if err != nil {
		err := fmt.Errorf("failed to insert player: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"playerID":   player.PlayerID,
			"playerName": player.PlayerName,
		})
		return false, err
	}
	return inserted, nil
}

func (t *postgresTx) IsLinked(ctx context.Context, playerID, matchID string) (bool, error) {
	ctx, span := t.tracer.Start(ctx, "Postgres.IsLinked")
	defer span.End()

	exists, err := t.exists(
		ctx,
		"SELECT EXISTS(SELECT 1 FROM match_players WHERE player_id = $1 AND match_id = $2)",
		playerID,
		matchID,
	)
	if err != nil {
		err := fmt.Errorf("failed to look up match player: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"playerID": playerID,
			"matchID":  matchID,
		})
		return false, err
	}
	return exists, nil
}

func (t *postgresTx) Link(ctx context.Context, matchID string, player domain.MatchPlayer) (bool, error) {
	ctx, span := t.tracer.Start(ctx, "Postgres.Link")
	defer span.End()

	inserted, err := t.insert(
		ctx,
		`INSERT INTO match_players
		(player_id, match_id, player_slot, legion, game_result, overall_elo, queue_elo, party_size, workers, legion_specific_elo)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (player_id, match_id) DO NOTHING`,
		player.PlayerID,
		matchID,
		player.PlayerSlot,
		player.Legion,
		player.GameResult,
		player.OverallElo,
		player.QueueElo,
		player.PartySize,
		player.Workers,
		player.LegionSpecificElo,
	)
	if err != nil {
		err := fmt.Errorf("failed to link player to match: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"playerID": player.PlayerID,
			"matchID":  matchID,
		})
		return false, err
	}
	return inserted, nil
}
