package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pontinhos/internal/domain"
	"pontinhos/internal/ports"
	"pontinhos/internal/ports/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingLedger struct {
	mu      sync.Mutex
	records []ports.RoundRecord
}

func (l *recordingLedger) RecordRound(_ context.Context, rec ports.RoundRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

func (l *recordingLedger) ListRounds(_ context.Context, roomID string) ([]ports.RoundRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ports.RoundRecord
	for _, r := range l.records {
		if r.RoomID == roomID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fixture struct {
	svc    *Service
	store  *memory.Store
	clock  *fakeClock
	ledger *recordingLedger
}

func newFixture(t *testing.T, players ...string) *fixture {
	t.Helper()
	f := &fixture{store: memory.NewStore(), clock: newFakeClock(), ledger: &recordingLedger{}}
	n := 0
	f.svc = NewService(f.store,
		WithClock(f.clock),
		WithLedger(f.ledger),
		WithRand(rand.New(rand.NewSource(42))),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("m%d", n) }),
	)
	if len(players) > 0 {
		_, err := f.svc.StartRound(context.Background(), "r1", players)
		require.NoError(t, err)
	}
	return f
}

func cards(t *testing.T, s string) []domain.Card {
	t.Helper()
	out, err := domain.ParseCards(s)
	require.NoError(t, err)
	return out
}

func card(t *testing.T, s string) domain.Card {
	t.Helper()
	c, err := domain.ParseCard(s)
	require.NoError(t, err)
	return c
}

// rig replaces the table of room r1: the listed hands, the discard pile (last card on top)
// and everything else in the stock. setup may adjust the session afterwards.
func (f *fixture) rig(t *testing.T, hands map[string]string, discard string, setup func(*domain.GameSession)) {
	t.Helper()
	err := f.store.Transact(context.Background(), "r1", func(st *domain.RoomState) error {
		stock := domain.BuildDoubleDeck()
		take := func(cs []domain.Card) {
			for _, c := range cs {
				require.True(t, domain.ContainsAll(stock, []domain.Card{c}), "rig uses %s more than twice", c)
				stock = domain.RemoveCards(stock, []domain.Card{c})
			}
		}
		st.Hands = make(map[string][]domain.Card, len(hands))
		for id, h := range hands {
			cs := cards(t, h)
			take(cs)
			st.Hands[id] = cs
		}
		pile := cards(t, discard)
		take(pile)
		st.Deck = domain.DeckState{Stock: stock, Discard: pile}
		st.Melds = nil
		st.SyncDiscardTop()
		if setup != nil {
			setup(st.Session)
		}
		return st.CheckConservation()
	})
	require.NoError(t, err)
}

func (f *fixture) room(t *testing.T) *domain.RoomState {
	t.Helper()
	ctx := context.Background()
	sess, err := f.store.ReadSession(ctx, "r1")
	require.NoError(t, err)
	melds, err := f.store.ReadMelds(ctx, "r1")
	require.NoError(t, err)
	deck, err := f.store.ReadDeckState(ctx, "r1")
	require.NoError(t, err)
	st := &domain.RoomState{Session: sess, Hands: map[string][]domain.Card{}, Melds: melds, Deck: deck}
	for _, id := range sess.PlayerOrder {
		h, err := f.store.ReadHand(ctx, "r1", id)
		require.NoError(t, err)
		st.Hands[id] = h
	}
	return st
}

func afterFirstPass(turn int, drawn bool) func(*domain.GameSession) {
	return func(s *domain.GameSession) {
		s.FirstPassComplete = true
		s.TurnIndex = turn
		s.SetHasDrawn(drawn)
	}
}

func hasEvent(events []Event, kind EventKind) bool {
	for _, ev := range events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}
