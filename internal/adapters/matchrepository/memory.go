package matchrepository

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/matchsync/matchsync/internal/domain"
)

type linkKey struct {
	playerID string
	matchID  string
}

type memoryState struct {
	matches map[string]domain.Match
	players map[string]domain.Player
	links   map[linkKey]domain.MatchPlayer
}

func (s memoryState) clone() memoryState {
	return memoryState{
		matches: maps.Clone(s.matches),
		players: maps.Clone(s.players),
		links:   maps.Clone(s.links),
	}
}

// In-memory store used in development without a database, and in tests
type InMemory struct {
	lock  sync.Mutex
	state memoryState
}

func NewInMemory() *InMemory {
	return &InMemory{
		state: memoryState{
			matches: make(map[string]domain.Match),
			players: make(map[string]domain.Player),
			links:   make(map[linkKey]domain.MatchPlayer),
		},
	}
}

// Transactions are serialized and work on a copy that replaces the state on commit
func (m *InMemory) InTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	tx := &memoryTx{state: m.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.state = tx.state
	return nil
}

func (m *InMemory) GetMatch(ctx context.Context, matchID string) (domain.Match, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	match, ok := m.state.matches[matchID]
	if !ok {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	return match, nil
}

func (m *InMemory) GetPlayer(ctx context.Context, playerID string) (domain.Player, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	player, ok := m.state.players[playerID]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return player, nil
}

func (m *InMemory) GetMatchPlayers(ctx context.Context, matchID string) ([]domain.MatchPlayer, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	players := []domain.MatchPlayer{}
	for key, link := range m.state.links {
		if key.matchID != matchID {
			continue
		}
		link.PlayerName = m.state.players[key.playerID].PlayerName
		players = append(players, link)
	}

	slices.SortFunc(players, func(a, b domain.MatchPlayer) int {
		return cmp.Or(cmp.Compare(a.PlayerSlot, b.PlayerSlot), cmp.Compare(a.PlayerID, b.PlayerID))
	})

	return players, nil
}

// Counts of stored rows
func (m *InMemory) Size() (matches, players, links int) {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.state.matches), len(m.state.players), len(m.state.links)
}

type memoryTx struct {
	state memoryState
}

func (t *memoryTx) MatchExists(ctx context.Context, matchID string) (bool, error) {
	_, ok := t.state.matches[matchID]
	return ok, nil
}

func (t *memoryTx) InsertMatch(ctx context.Context, match domain.Match) (bool, error) {
	if _, ok := t.state.matches[match.MatchID]; ok {
		return false, nil
	}
	t.state.matches[match.MatchID] = match
	return true, nil
}

func (t *memoryTx) PlayerExists(ctx context.Context, playerID string) (bool, error) {
	_, ok := t.state.players[playerID]
	return ok, nil
}

func (t *memoryTx) InsertPlayer(ctx context.Context, player domain.Player) (bool, error) {
	if _, ok := t.state.players[player.PlayerID]; ok {
		return false, nil
	}
	t.state.players[player.PlayerID] = player
	return true, nil
}

func (t *memoryTx) IsLinked(ctx context.Context, playerID, matchID string) (bool, error) {
	_, ok := t.state.links[linkKey{playerID: playerID, matchID: matchID}]
	return ok, nil
}

func (t *memoryTx) Link(ctx context.Context, matchID string, player domain.MatchPlayer) (bool, error) {
	key := linkKey{playerID: player.PlayerID, matchID: matchID}
	if _, ok := t.state.links[key]; ok {
		return false, nil
	}
	t.state.links[key] = player
	return true, nil
}
