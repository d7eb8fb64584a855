package domain

// A player identity, unique by PlayerID across the store.
//
// The name is the one seen on first sighting and is never refreshed.
type Player struct {
	PlayerID   string
	PlayerName string
}
