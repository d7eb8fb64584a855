package gameprovider

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/matchsync/matchsync/internal/domain"
)

type legionAPIMatch struct {
	// The match id has been named differently across API versions
	ID           *string `json:"_id,omitempty"`
	MatchID      *string `json:"match_id,omitempty"`
	MatchIDCamel *string `json:"matchId,omitempty"`

	Date        *string `json:"date,omitempty"`
	QueueType   *string `json:"queueType,omitempty"`
	PlayerCount *int    `json:"playerCount,omitempty"`
	HumanCount  *int    `json:"humanCount,omitempty"`
	GameLength  *int    `json:"gameLength,omitempty"`

	// Same for the participant list
	PlayersData *[]legionAPIPlayer `json:"playersData,omitempty"`
	Players     *[]legionAPIPlayer `json:"players,omitempty"`
	PlayerData  *[]legionAPIPlayer `json:"player_data,omitempty"`
}

type legionAPIPlayer struct {
	PlayerID      *string `json:"playerId,omitempty"`
	PlayerIDSnake *string `json:"player_id,omitempty"`
	PlayerName    *string `json:"playerName,omitempty"`

	PlayerSlot        *int     `json:"playerSlot,omitempty"`
	Legion            *string  `json:"legion,omitempty"`
	GameResult        *string  `json:"gameResult,omitempty"`
	OverallElo        *float64 `json:"overallElo,omitempty"`
	ClassicElo        *float64 `json:"classicElo,omitempty"`
	QueueElo          *float64 `json:"queueElo,omitempty"`
	PartySize         *int     `json:"partySize,omitempty"`
	Workers           *float64 `json:"workers,omitempty"`
	LegionSpecificElo *float64 `json:"legionSpecificElo,omitempty"`
}

// Layouts observed for the match date, tried in order. Zoneless layouts are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", raw)
}

func firstNonEmpty(values ...*string) string {
	for _, value := range values {
		if value != nil && *value != "" {
			return *value
		}
	}
	return ""
}

func firstPresent[T any](values ...*T) *T {
	for _, value := range values {
		if value != nil {
			return value
		}
	}
	return nil
}

func valueOr[T any](value *T, fallback T) T {
	if value == nil {
		return fallback
	}
	return *value
}

func missingField(field string) error {
	return fmt.Errorf("%w: missing required field %s", domain.ErrValidation, field)
}

// Map one raw upstream record to a match and its players.
//
// Returns an error wrapping domain.ErrValidation when a required field is missing or the
// record can't be decoded.
func Normalize(raw json.RawMessage) (domain.Match, []domain.MatchPlayer, error) {
	var apiMatch legionAPIMatch
	if err := json.Unmarshal(raw, &apiMatch); err != nil {
		return domain.Match{}, nil, fmt.Errorf("%w: failed to decode record: %w", domain.ErrValidation, err)
	}

	matchID := firstNonEmpty(apiMatch.ID, apiMatch.MatchID, apiMatch.MatchIDCamel)
	if matchID == "" {
		return domain.Match{}, nil, missingField("match id (_id, match_id, matchId)")
	}

	if apiMatch.Date == nil || *apiMatch.Date == "" {
		return domain.Match{}, nil, missingField("date")
	}
	date, err := parseDate(*apiMatch.Date)
	if err != nil {
		return domain.Match{}, nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	if apiMatch.QueueType == nil || *apiMatch.QueueType == "" {
		return domain.Match{}, nil, missingField("queueType")
	}
	if apiMatch.PlayerCount == nil {
		return domain.Match{}, nil, missingField("playerCount")
	}
	if apiMatch.GameLength == nil {
		return domain.Match{}, nil, missingField("gameLength")
	}

	match := domain.Match{
		MatchID:     matchID,
		Date:        date,
		QueueType:   *apiMatch.QueueType,
		PlayerCount: *apiMatch.PlayerCount,
		HumanCount:  valueOr(apiMatch.HumanCount, 0),
		GameLength:  *apiMatch.GameLength,
	}

	apiPlayers := firstPresent(apiMatch.PlayersData, apiMatch.Players, apiMatch.PlayerData)
	if apiPlayers == nil {
		return match, []domain.MatchPlayer{}, nil
	}

	players := make([]domain.MatchPlayer, 0, len(*apiPlayers))
	for i, apiPlayer := range *apiPlayers {
		playerID := firstNonEmpty(apiPlayer.PlayerID, apiPlayer.PlayerIDSnake)
		if playerID == "" {
			return domain.Match{}, nil, missingField(fmt.Sprintf("playerId of player %d", i))
		}

		playerName := firstNonEmpty(apiPlayer.PlayerName)
		if playerName == "" {
			playerName = domain.UnknownPlayerName
		}

		players = append(players, domain.MatchPlayer{
			PlayerID:   playerID,
			PlayerName: playerName,

			PlayerSlot:        valueOr(apiPlayer.PlayerSlot, domain.UnknownSlot),
			Legion:            valueOr(apiPlayer.Legion, ""),
			GameResult:        valueOr(apiPlayer.GameResult, ""),
			OverallElo:        valueOr(apiPlayer.OverallElo, 0.0),
			QueueElo:          valueOr(firstPresent(apiPlayer.ClassicElo, apiPlayer.QueueElo), 0.0),
			PartySize:         valueOr(apiPlayer.PartySize, 0),
			Workers:           valueOr(apiPlayer.Workers, 0.0),
			LegionSpecificElo: valueOr(apiPlayer.LegionSpecificElo, 0.0),
		})
	}

	return match, players, nil
}
