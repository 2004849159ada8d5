package ports

import (
	"context"
	"errors"

	"pontinhos/internal/domain"
)

var (
	// ErrConflict is returned by Transact when a concurrent writer committed first.
	// Callers re-read and retry; the store never retries on its own.
	ErrConflict = errors.New("store: concurrent modification")
	// ErrNotFound is returned when a room has no stored state.
	ErrNotFound = errors.New("store: room not found")
)

// EntityKind names one of the independently observable parts of a room.
type EntityKind string

const (
	EntitySession EntityKind = "session"
	EntityHand    EntityKind = "hand"
	EntityMelds   EntityKind = "melds"
	EntityDeck    EntityKind = "deck"
)

// EntityKinds lists every kind in a stable order.
var EntityKinds = []EntityKind{EntitySession, EntityHand, EntityMelds, EntityDeck}

// Change describes a committed write to one entity. PlayerID is set for hand changes.
type Change struct {
	RoomID   string
	Kind     EntityKind
	PlayerID string
	Revision int64
}

// ChangeFunc receives committed changes. It must not block.
type ChangeFunc func(Change)

// SessionStore is the persistence and notification collaborator of the game core.
type SessionStore interface {
	ReadSession(ctx context.Context, roomID string) (*domain.GameSession, error)
	ReadHand(ctx context.Context, roomID, playerID string) ([]domain.Card, error)
	ReadMelds(ctx context.Context, roomID string) ([]domain.Meld, error)
	ReadDeckState(ctx context.Context, roomID string) (domain.DeckState, error)

	// Create stores the initial state of a room. It fails with ErrConflict if the room exists.
	Create(ctx context.Context, state *domain.RoomState) error

	// Transact runs fn against a consistent snapshot of the room and commits every change fn
	// made to it atomically. If fn returns an error nothing is written. If another writer
	// committed in between, nothing is written and ErrConflict is returned.
	Transact(ctx context.Context, roomID string, fn func(*domain.RoomState) error) error

	// Subscribe registers cb for committed changes of kind in roomID and returns a cancel func.
	Subscribe(roomID string, kind EntityKind, cb ChangeFunc) (cancel func())
}

// Diff lists the entity changes between two snapshots of a room. The session is always
// reported because every commit bumps its revision.
func Diff(before, after *domain.RoomState) []Change {
	roomID := after.Session.RoomID
	rev := after.Session.Revision
	changes := []Change{{RoomID: roomID, Kind: EntitySession, Revision: rev}}

	players := make(map[string]struct{}, len(after.Hands))
	for id := range after.Hands {
		players[id] = struct{}{}
	}
	if before != nil {
		for id := range before.Hands {
			players[id] = struct{}{}
		}
	}
	for id := range players {
		var prev []domain.Card
		if before != nil {
			prev = before.Hands[id]
		}
		if !sameSequence(prev, after.Hands[id]) {
			changes = append(changes, Change{RoomID: roomID, Kind: EntityHand, PlayerID: id, Revision: rev})
		}
	}

	if before == nil || !sameMelds(before.Melds, after.Melds) {
		changes = append(changes, Change{RoomID: roomID, Kind: EntityMelds, Revision: rev})
	}
	if before == nil || !sameSequence(before.Deck.Stock, after.Deck.Stock) ||
		!sameSequence(before.Deck.Discard, after.Deck.Discard) {
		changes = append(changes, Change{RoomID: roomID, Kind: EntityDeck, Revision: rev})
	}
	return changes
}

func sameSequence(a, b []domain.Card) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameMelds(a, b []domain.Meld) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Kind != b[i].Kind || a[i].Owner != b[i].Owner ||
			!sameSequence(a[i].Cards, b[i].Cards) {
			return false
		}
	}
	return true
}
