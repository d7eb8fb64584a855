package domain

import (
	"time"
)

// Placeholder stored when upstream omits a player's display name
const UnknownPlayerName = "Unknown"

// Sentinel slot for players whose slot upstream did not report
const UnknownSlot = -1

type Match struct {
	// Canonical external identifier, resolved from whichever id field upstream used
	MatchID string

	Date        time.Time
	QueueType   string
	PlayerCount int
	HumanCount  int
	// Seconds
	GameLength int
}

// A player's participation in a single match
type MatchPlayer struct {
	PlayerID   string
	PlayerName string

	PlayerSlot        int
	Legion            string
	GameResult        string
	OverallElo        float64
	QueueElo          float64
	PartySize         int
	Workers           float64
	LegionSpecificElo float64
}

type MatchWithPlayers struct {
	Match   Match
	Players []MatchPlayer
}
