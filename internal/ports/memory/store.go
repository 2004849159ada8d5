// Package memory provides an in-process SessionStore with optimistic concurrency.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pontinhos/internal/domain"
	"pontinhos/internal/ports"
)

// Store keeps room state in memory. Transact runs fn outside the lock against a private
// snapshot and commits only if no other transaction committed to the room in between.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*domain.RoomState
	hub   *ports.Hub
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*domain.RoomState),
		hub:   ports.NewHub(),
	}
}

func (s *Store) snapshot(roomID string) (*domain.RoomState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", roomID, ports.ErrNotFound)
	}
	return st.Clone(), nil
}

func (s *Store) ReadSession(_ context.Context, roomID string) (*domain.GameSession, error) {
	st, err := s.snapshot(roomID)
	if err != nil {
		return nil, err
	}
	return st.Session, nil
}

func (s *Store) ReadHand(_ context.Context, roomID, playerID string) ([]domain.Card, error) {
	st, err := s.snapshot(roomID)
	if err != nil {
		return nil, err
	}
	return st.Hands[playerID], nil
}

func (s *Store) ReadMelds(_ context.Context, roomID string) ([]domain.Meld, error) {
	st, err := s.snapshot(roomID)
	if err != nil {
		return nil, err
	}
	return st.Melds, nil
}

func (s *Store) ReadDeckState(_ context.Context, roomID string) (domain.DeckState, error) {
	st, err := s.snapshot(roomID)
	if err != nil {
		return domain.DeckState{}, err
	}
	return st.Deck, nil
}

func (s *Store) Create(_ context.Context, state *domain.RoomState) error {
	roomID := state.Session.RoomID
	s.mu.Lock()
	if _, exists := s.rooms[roomID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("room %s already exists: %w", roomID, ports.ErrConflict)
	}
	created := state.Clone()
	created.Session.Revision = 1
	s.rooms[roomID] = created
	s.mu.Unlock()

	s.hub.Publish(ports.Diff(nil, created))
	return nil
}

func (s *Store) Transact(ctx context.Context, roomID string, fn func(*domain.RoomState) error) error {
	before, err := s.snapshot(roomID)
	if err != nil {
		return err
	}
	working := before.Clone()
	if err := fn(working); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	current, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("room %s: %w", roomID, ports.ErrNotFound)
	}
	if current.Session.Revision != before.Session.Revision {
		s.mu.Unlock()
		return fmt.Errorf("room %s at revision %d: %w", roomID, before.Session.Revision, ports.ErrConflict)
	}
	working.Session.Revision = before.Session.Revision + 1
	s.rooms[roomID] = working.Clone()
	s.mu.Unlock()

	s.hub.Publish(ports.Diff(before, working))
	return nil
}

func (s *Store) Subscribe(roomID string, kind ports.EntityKind, cb ports.ChangeFunc) func() {
	return s.hub.Subscribe(roomID, kind, cb)
}

// PausedRooms lists rooms whose knock window opened before startedBefore.
func (s *Store) PausedRooms(_ context.Context, startedBefore time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id, st := range s.rooms {
		if p := st.Session.Pause; p != nil && p.StartedAt.Before(startedBefore) {
			out = append(out, id)
		}
	}
	return out, nil
}

// Rooms returns the ids of every stored room.
func (s *Store) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		out = append(out, id)
	}
	return out
}

var (
	_ ports.SessionStore    = (*Store)(nil)
	_ ports.PausedRoomIndex = (*Store)(nil)
)
