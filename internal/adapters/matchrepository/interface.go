package matchrepository

import (
	"context"

	"github.com/matchsync/matchsync/internal/domain"
)

type MatchRepository interface {
	// Run fn in a single transaction. Committed when fn returns nil, rolled back otherwise.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetMatch(ctx context.Context, matchID string) (domain.Match, error)
	GetPlayer(ctx context.Context, playerID string) (domain.Player, error)
	// Participants of a match ordered by slot, with the player's stored name
	GetMatchPlayers(ctx context.Context, matchID string) ([]domain.MatchPlayer, error)
}

// Operations available inside a transaction.
//
// The Insert*/Link methods never overwrite existing rows. They report whether a row was
// created, so a concurrent writer winning the race shows up as false rather than an error.
type Tx interface {
	MatchExists(ctx context.Context, matchID string) (bool, error)
	InsertMatch(ctx context.Context, match domain.Match) (bool, error)

	PlayerExists(ctx context.Context, playerID string) (bool, error)
	InsertPlayer(ctx context.Context, player domain.Player) (bool, error)

	IsLinked(ctx context.Context, playerID, matchID string) (bool, error)
	Link(ctx context.Context, matchID string, player domain.MatchPlayer) (bool, error)
}
