package domaintest

import (
	"slices"
	"time"

	"github.com/matchsync/matchsync/internal/domain"
)

type matchBuilder struct {
	entry *domain.MatchWithPlayers
}

func (mb *matchBuilder) WithDate(date time.Time) *matchBuilder {
	mb.entry.Match.Date = date
	return mb
}

func (mb *matchBuilder) WithQueueType(queueType string) *matchBuilder {
	mb.entry.Match.QueueType = queueType
	return mb
}

func (mb *matchBuilder) WithGameLength(seconds int) *matchBuilder {
	mb.entry.Match.GameLength = seconds
	return mb
}

// Set the participants, and the player counts to match
func (mb *matchBuilder) WithPlayers(players ...domain.MatchPlayer) *matchBuilder {
	mb.entry.Players = players
	mb.entry.Match.PlayerCount = len(players)
	mb.entry.Match.HumanCount = len(players)
	return mb
}

func (mb *matchBuilder) Build() domain.Match {
	return mb.entry.Match
}

func (mb *matchBuilder) BuildWithPlayers() domain.MatchWithPlayers {
	// Copy the players, so further mutations to the builder don't affect the returned entry
	return domain.MatchWithPlayers{
		Match:   mb.entry.Match,
		Players: slices.Clone(mb.entry.Players),
	}
}

func NewMatchBuilder(matchID string) *matchBuilder {
	return &matchBuilder{
		entry: &domain.MatchWithPlayers{
			Match: domain.Match{
				MatchID:     matchID,
				Date:        time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC),
				QueueType:   "Normal",
				PlayerCount: 2,
				HumanCount:  2,
				GameLength:  900,
			},
			Players: []domain.MatchPlayer{},
		},
	}
}

type matchPlayerBuilder struct {
	player *domain.MatchPlayer
}

func (pb *matchPlayerBuilder) WithLegion(legion string) *matchPlayerBuilder {
	pb.player.Legion = legion
	return pb
}

func (pb *matchPlayerBuilder) WithGameResult(result string) *matchPlayerBuilder {
	pb.player.GameResult = result
	return pb
}

func (pb *matchPlayerBuilder) WithOverallElo(elo float64) *matchPlayerBuilder {
	pb.player.OverallElo = elo
	return pb
}

func (pb *matchPlayerBuilder) Build() domain.MatchPlayer {
	return *pb.player
}

func NewMatchPlayerBuilder(playerID, playerName string, slot int) *matchPlayerBuilder {
	return &matchPlayerBuilder{
		player: &domain.MatchPlayer{
			PlayerID:          playerID,
			PlayerName:        playerName,
			PlayerSlot:        slot,
			Legion:            "Mech",
			GameResult:        "won",
			OverallElo:        2000.5,
			QueueElo:          1900,
			PartySize:         1,
			Workers:           11.5,
			LegionSpecificElo: 1850,
		},
	}
}
