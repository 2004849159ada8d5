package memory

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"pontinhos/internal/domain"
	"pontinhos/internal/ports"
)

func newDealtStore(t *testing.T) *Store {
	t.Helper()
	st := domain.NewRoomState("r1", []string{"a", "b"}, domain.DefaultRules())
	if err := st.DealRound("a", rand.New(rand.NewSource(3))); err != nil {
		t.Fatalf("DealRound: %v", err)
	}
	s := NewStore()
	if err := s.Create(context.Background(), st); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func TestCreateTwiceConflicts(t *testing.T) {
	s := newDealtStore(t)
	err := s.Create(context.Background(), domain.NewRoomState("r1", []string{"a"}, domain.DefaultRules()))
	if !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("Create() err = %v, want ErrConflict", err)
	}
}

func TestReadMissingRoom(t *testing.T) {
	s := NewStore()
	if _, err := s.ReadSession(context.Background(), "nope"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("ReadSession() err = %v, want ErrNotFound", err)
	}
}

func TestTransactCommitsAndBumpsRevision(t *testing.T) {
	s := newDealtStore(t)
	ctx := context.Background()

	err := s.Transact(ctx, "r1", func(st *domain.RoomState) error {
		c, _ := st.PopStock()
		st.Hands["a"] = append(st.Hands["a"], c)
		return nil
	})
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}
	sess, _ := s.ReadSession(ctx, "r1")
	if sess.Revision != 2 {
		t.Fatalf("revision = %d, want 2", sess.Revision)
	}
	hand, _ := s.ReadHand(ctx, "r1", "a")
	if len(hand) != domain.DefaultHandSize+1 {
		t.Fatalf("hand size = %d", len(hand))
	}
}

func TestTransactErrorWritesNothing(t *testing.T) {
	s := newDealtStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Transact(ctx, "r1", func(st *domain.RoomState) error {
		st.Hands["a"] = nil
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transact() err = %v, want boom", err)
	}
	hand, _ := s.ReadHand(ctx, "r1", "a")
	if len(hand) != domain.DefaultHandSize {
		t.Fatalf("hand was modified by an aborted transaction: %v", hand)
	}
}

func TestTransactDetectsLostRace(t *testing.T) {
	s := newDealtStore(t)
	ctx := context.Background()

	err := s.Transact(ctx, "r1", func(st *domain.RoomState) error {
		// a competing writer commits while this transaction is in flight
		if err := s.Transact(ctx, "r1", func(inner *domain.RoomState) error {
			inner.Session.LastAction = "inner"
			return nil
		}); err != nil {
			t.Fatalf("inner Transact: %v", err)
		}
		st.Session.LastAction = "outer"
		return nil
	})
	if !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("Transact() err = %v, want ErrConflict", err)
	}
	sess, _ := s.ReadSession(ctx, "r1")
	if sess.LastAction != "inner" {
		t.Fatalf("LastAction = %q, want inner", sess.LastAction)
	}
}

func TestSubscribeReceivesOnlyChangedKinds(t *testing.T) {
	s := newDealtStore(t)
	ctx := context.Background()

	got := map[ports.EntityKind]int{}
	var cancels []func()
	for _, kind := range ports.EntityKinds {
		cancels = append(cancels, s.Subscribe("r1", kind, func(ch ports.Change) { got[ch.Kind]++ }))
	}

	if err := s.Transact(ctx, "r1", func(st *domain.RoomState) error {
		st.Session.LastAction = "noop"
		return nil
	}); err != nil {
		t.Fatalf("Transact: %v", err)
	}
	if got[ports.EntitySession] != 1 || got[ports.EntityDeck] != 0 || got[ports.EntityHand] != 0 {
		t.Fatalf("session-only write notified %v", got)
	}

	if err := s.Transact(ctx, "r1", func(st *domain.RoomState) error {
		c, _ := st.PopStock()
		st.Hands["b"] = append(st.Hands["b"], c)
		return nil
	}); err != nil {
		t.Fatalf("Transact: %v", err)
	}
	if got[ports.EntityDeck] != 1 || got[ports.EntityHand] != 1 || got[ports.EntityMelds] != 0 {
		t.Fatalf("draw notified %v", got)
	}

	for _, cancel := range cancels {
		cancel()
		cancel()
	}
	if n := s.hub.Subscribers("r1"); n != 0 {
		t.Fatalf("subscribers after cancel = %d", n)
	}
}

func TestPausedRooms(t *testing.T) {
	s := newDealtStore(t)
	ctx := context.Background()
	started := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if err := s.Transact(ctx, "r1", func(st *domain.RoomState) error {
		st.Session.Pause = &domain.Knock{PlayerID: "b", StartedAt: started}
		return nil
	}); err != nil {
		t.Fatalf("Transact: %v", err)
	}

	rooms, _ := s.PausedRooms(ctx, started)
	if len(rooms) != 0 {
		t.Fatalf("window opened at the cutoff must not be listed: %v", rooms)
	}
	rooms, _ = s.PausedRooms(ctx, started.Add(time.Second))
	if len(rooms) != 1 || rooms[0] != "r1" {
		t.Fatalf("PausedRooms() = %v", rooms)
	}
}
