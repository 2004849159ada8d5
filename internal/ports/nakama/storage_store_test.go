package nakama

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/proto"

	"pontinhos/internal/app"
	"pontinhos/internal/domain"
	"pontinhos/internal/ports"
)

// fakeStorage mimics Nakama storage versioning: "*" writes only new objects, any other
// non-empty version must match the stored one, and a rejected write aborts the whole update.
type fakeStorage struct {
	mu      sync.Mutex
	seq     int
	objects map[string]*api.StorageObject
	updates int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string]*api.StorageObject)}
}

func storageKey(collection, key, userID string) string {
	return collection + "/" + userID + "/" + key
}

func (f *fakeStorage) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*api.StorageObject
	for _, r := range reads {
		if o, ok := f.objects[storageKey(r.Collection, r.Key, r.UserID)]; ok {
			out = append(out, proto.Clone(o).(*api.StorageObject))
		}
	}
	return out, nil
}

func (f *fakeStorage) MultiUpdate(ctx context.Context, accountUpdates []*runtime.AccountUpdate, storageWrites []*runtime.StorageWrite, storageDeletes []*runtime.StorageDelete, walletUpdates []*runtime.WalletUpdate, updateLedger bool) ([]*api.StorageObjectAck, []*runtime.WalletUpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, w := range storageWrites {
		if !f.versionMatches(storageKey(w.Collection, w.Key, w.UserID), w.Version) {
			return nil, nil, runtime.ErrStorageRejectedVersion
		}
	}
	for _, d := range storageDeletes {
		if !f.versionMatches(storageKey(d.Collection, d.Key, d.UserID), d.Version) {
			return nil, nil, runtime.ErrStorageRejectedVersion
		}
	}

	f.updates++
	acks := make([]*api.StorageObjectAck, 0, len(storageWrites))
	for _, w := range storageWrites {
		f.seq++
		version := fmt.Sprintf("v%d", f.seq)
		f.objects[storageKey(w.Collection, w.Key, w.UserID)] = &api.StorageObject{
			Collection: w.Collection,
			Key:        w.Key,
			UserId:     w.UserID,
			Value:      w.Value,
			Version:    version,
		}
		acks = append(acks, &api.StorageObjectAck{Collection: w.Collection, Key: w.Key, Version: version, UserId: w.UserID})
	}
	for _, d := range storageDeletes {
		delete(f.objects, storageKey(d.Collection, d.Key, d.UserID))
	}
	return acks, nil, nil
}

func (f *fakeStorage) versionMatches(key, version string) bool {
	existing, ok := f.objects[key]
	switch version {
	case "":
		return true
	case "*":
		return !ok
	default:
		return ok && existing.Version == version
	}
}

func (f *fakeStorage) has(collection, key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[storageKey(collection, key, "")]
	return ok
}

func newStorageRoom(t *testing.T, nk storageModule) *NakamaStorageStore {
	t.Helper()
	st := domain.NewRoomState("r1", []string{"a", "b"}, domain.DefaultRules())
	if err := st.DealRound("a", rand.New(rand.NewSource(5))); err != nil {
		t.Fatalf("DealRound: %v", err)
	}
	s := NewNakamaStorageStore(nk, noopLogger{})
	if err := s.Create(context.Background(), st); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func TestStorageStoreRoundTrip(t *testing.T) {
	s := newStorageRoom(t, newFakeStorage())
	ctx := context.Background()

	sess, err := s.ReadSession(ctx, "r1")
	if err != nil {
		t.Fatalf("ReadSession: %v", err)
	}
	if sess.Revision != 1 || sess.Status != domain.StatusPlaying {
		t.Fatalf("session = rev %d status %s", sess.Revision, sess.Status)
	}
	hand, err := s.ReadHand(ctx, "r1", "b")
	if err != nil || len(hand) != domain.DefaultHandSize {
		t.Fatalf("ReadHand() = %v, %v", hand, err)
	}
	deck, err := s.ReadDeckState(ctx, "r1")
	if err != nil {
		t.Fatalf("ReadDeckState: %v", err)
	}
	if len(deck.Discard) != 1 || sess.DiscardTop == nil || *sess.DiscardTop != deck.Discard[0] {
		t.Fatalf("discard pile %v does not match top %v", deck.Discard, sess.DiscardTop)
	}
	melds, err := s.ReadMelds(ctx, "r1")
	if err != nil || len(melds) != 0 {
		t.Fatalf("ReadMelds() = %v, %v", melds, err)
	}
}

func TestStorageStoreCreateTwiceConflicts(t *testing.T) {
	nk := newFakeStorage()
	s := newStorageRoom(t, nk)
	err := s.Create(context.Background(), domain.NewRoomState("r1", []string{"a"}, domain.DefaultRules()))
	if !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("Create() err = %v, want ErrConflict", err)
	}
}

func TestStorageStoreReadMissingRoom(t *testing.T) {
	s := NewNakamaStorageStore(newFakeStorage(), noopLogger{})
	if _, err := s.ReadSession(context.Background(), "nope"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("ReadSession() err = %v, want ErrNotFound", err)
	}
	err := s.Transact(context.Background(), "nope", func(*domain.RoomState) error { return nil })
	if !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("Transact() err = %v, want ErrNotFound", err)
	}
}

func TestStorageStoreTransactCommits(t *testing.T) {
	s := newStorageRoom(t, newFakeStorage())
	ctx := context.Background()

	var notified []ports.EntityKind
	cancel := s.Subscribe("r1", ports.EntityHand, func(ch ports.Change) { notified = append(notified, ch.Kind) })
	defer cancel()

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
	if len(notified) != 1 {
		t.Fatalf("hand subscribers notified %d times, want 1", len(notified))
	}
}

func TestStorageStoreErrorWritesNothing(t *testing.T) {
	nk := newFakeStorage()
	s := newStorageRoom(t, nk)
	before := nk.updates
	boom := errors.New("boom")

	err := s.Transact(context.Background(), "r1", func(st *domain.RoomState) error {
		st.Hands["a"] = nil
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transact() err = %v, want boom", err)
	}
	if nk.updates != before {
		t.Fatalf("aborted transaction issued %d storage updates", nk.updates-before)
	}
}

func TestStorageStoreDetectsLostRace(t *testing.T) {
	s := newStorageRoom(t, newFakeStorage())
	ctx := context.Background()

	err := s.Transact(ctx, "r1", func(st *domain.RoomState) error {
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

// interleavedStorage runs between once, right before the read numbered at.
type interleavedStorage struct {
	*fakeStorage
	calls   int
	at      int
	between func()
}

func (s *interleavedStorage) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	s.calls++
	if s.calls == s.at && s.between != nil {
		between := s.between
		s.between = nil
		between()
	}
	return s.fakeStorage.StorageRead(ctx, reads)
}

func TestStorageStoreCommitBetweenReadsIsConflict(t *testing.T) {
	nk := &interleavedStorage{fakeStorage: newFakeStorage()}
	s := newStorageRoom(t, nk)
	ctx := context.Background()

	// b takes the discard after the session was read but before the deck and hands are
	nk.at = nk.calls + 2
	nk.between = func() {
		err := s.Transact(ctx, "r1", func(st *domain.RoomState) error {
			c, _ := st.PopDiscard()
			st.Hands["b"] = append(st.Hands["b"], c)
			return nil
		})
		if err != nil {
			t.Fatalf("interleaved Transact: %v", err)
		}
	}

	svc := app.NewService(s)
	_, err := svc.DrawFromStock(ctx, "r1", "a")
	if !errors.Is(err, app.ErrTransientConflict) {
		t.Fatalf("DrawFromStock() err = %v, want ErrTransientConflict", err)
	}
	if errors.Is(err, app.ErrInvariantViolation) {
		t.Fatalf("lost race reported as invariant violation: %v", err)
	}
	if nk.between != nil {
		t.Fatal("interleaved commit never ran")
	}

	hand, _ := s.ReadHand(ctx, "r1", "a")
	if len(hand) != domain.DefaultHandSize {
		t.Fatalf("hand size of a = %d after a lost race", len(hand))
	}
	if _, err := svc.DrawFromStock(ctx, "r1", "a"); err != nil {
		t.Fatalf("retry on fresh state: %v", err)
	}
}

func TestStorageStoreDeletesDroppedHands(t *testing.T) {
	nk := newFakeStorage()
	s := newStorageRoom(t, nk)

	err := s.Transact(context.Background(), "r1", func(st *domain.RoomState) error {
		st.Deck.Stock = append(st.Deck.Stock, st.Hands["b"]...)
		delete(st.Hands, "b")
		return nil
	})
	if err != nil {
		t.Fatalf("Transact: %v", err)
	}
	if nk.has(roomCollection, handObjectKey("r1", "b")) {
		t.Fatal("hand object of b still stored")
	}
	if !nk.has(roomCollection, handObjectKey("r1", "a")) {
		t.Fatal("hand object of a was removed")
	}
}

func TestNakamaRoundLedger(t *testing.T) {
	ledger := NewNakamaRoundLedger(newFakeStorage())
	ctx := context.Background()
	ended := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

	// more rounds than one read batch, recorded out of order
	const rounds = ledgerReadBatch + 3
	for round := rounds; round >= 1; round-- {
		rec := ports.RoundRecord{
			RoundResult: domain.RoundResult{
				RoomID: "r1", Round: round, WentOut: "a", Winner: "a",
				Scenario: domain.ScenarioNormal.String(),
				Points:   map[string]int{"a": 0, "b": round},
				Scores:   map[string]int{"a": 0, "b": round},
			},
			EndedAt: ended.Add(time.Duration(round) * time.Minute),
		}
		if err := ledger.RecordRound(ctx, rec); err != nil {
			t.Fatalf("RecordRound(%d): %v", round, err)
		}
	}

	dup := ports.RoundRecord{RoundResult: domain.RoundResult{RoomID: "r1", Round: 1, Winner: "b"}}
	if err := ledger.RecordRound(ctx, dup); err != nil {
		t.Fatalf("recording a round twice: %v", err)
	}

	got, err := ledger.ListRounds(ctx, "r1")
	if err != nil {
		t.Fatalf("ListRounds: %v", err)
	}
	if len(got) != rounds {
		t.Fatalf("ListRounds() returned %d rounds, want %d", len(got), rounds)
	}
	for i, r := range got {
		if r.Round != i+1 {
			t.Fatalf("rounds out of order at %d: %d", i, r.Round)
		}
	}
	if got[0].Winner != "a" {
		t.Fatalf("duplicate record overwrote round 1: winner %q", got[0].Winner)
	}
	if !got[4].EndedAt.Equal(ended.Add(5 * time.Minute)) {
		t.Fatalf("EndedAt = %v", got[4].EndedAt)
	}

	empty, err := ledger.ListRounds(ctx, "other")
	if err != nil || len(empty) != 0 {
		t.Fatalf("ListRounds(other) = %v, %v", empty, err)
	}
}
