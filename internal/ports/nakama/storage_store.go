package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"

	"pontinhos/internal/domain"
	"pontinhos/internal/ports"
)

const (
	roomCollection  = "pontinhos_rooms"
	roundCollection = "pontinhos_rounds"
)

// storageModule is the part of runtime.NakamaModule the storage adapters use.
type storageModule interface {
	StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error)
	MultiUpdate(ctx context.Context, accountUpdates []*runtime.AccountUpdate, storageWrites []*runtime.StorageWrite, storageDeletes []*runtime.StorageDelete, walletUpdates []*runtime.WalletUpdate, updateLedger bool) ([]*api.StorageObjectAck, []*runtime.WalletUpdateResult, error)
}

func sessionObjectKey(roomID string) string { return roomID + ":session" }
func meldsObjectKey(roomID string) string   { return roomID + ":melds" }
func deckObjectKey(roomID string) string    { return roomID + ":deck" }
func handObjectKey(roomID, playerID string) string {
	return roomID + ":hand:" + playerID
}

// NakamaStorageStore keeps rooms as system-owned storage objects. Every commit rewrites the
// session object conditioned on the version it read, so a concurrent commit makes the whole
// MultiUpdate fail with runtime.ErrStorageRejectedVersion.
type NakamaStorageStore struct {
	nk     storageModule
	logger runtime.Logger
	hub    *ports.Hub
}

// NewNakamaStorageStore creates a store over nk.
func NewNakamaStorageStore(nk storageModule, logger runtime.Logger) *NakamaStorageStore {
	return &NakamaStorageStore{nk: nk, logger: logger, hub: ports.NewHub()}
}

// roomObjects is a room as read from storage, with the version of every object.
type roomObjects struct {
	state    *domain.RoomState
	versions map[string]string
}

func (s *NakamaStorageStore) readObjects(ctx context.Context, keys []string) (map[string]*api.StorageObject, error) {
	reads := make([]*runtime.StorageRead, 0, len(keys))
	for _, k := range keys {
		reads = append(reads, &runtime.StorageRead{Collection: roomCollection, Key: k})
	}
	objects, err := s.nk.StorageRead(ctx, reads)
	if err != nil {
		return nil, fmt.Errorf("storage read: %w", err)
	}
	out := make(map[string]*api.StorageObject, len(objects))
	for _, o := range objects {
		out[o.Key] = o
	}
	return out, nil
}

func (s *NakamaStorageStore) load(ctx context.Context, roomID string) (*roomObjects, error) {
	objs, err := s.readObjects(ctx, []string{sessionObjectKey(roomID)})
	if err != nil {
		return nil, err
	}
	sessObj, ok := objs[sessionObjectKey(roomID)]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", roomID, ports.ErrNotFound)
	}
	sess := &domain.GameSession{}
	if err := json.Unmarshal([]byte(sessObj.Value), sess); err != nil {
		return nil, fmt.Errorf("decode session of room %s: %w", roomID, err)
	}

	keys := []string{meldsObjectKey(roomID), deckObjectKey(roomID)}
	for _, id := range sess.Seats {
		keys = append(keys, handObjectKey(roomID, id))
	}
	objs, err = s.readObjects(ctx, keys)
	if err != nil {
		return nil, err
	}

	r := &roomObjects{
		state:    &domain.RoomState{Session: sess, Hands: make(map[string][]domain.Card)},
		versions: map[string]string{sessionObjectKey(roomID): sessObj.Version},
	}
	if o, ok := objs[meldsObjectKey(roomID)]; ok {
		r.versions[o.Key] = o.Version
		if err := json.Unmarshal([]byte(o.Value), &r.state.Melds); err != nil {
			return nil, fmt.Errorf("decode melds of room %s: %w", roomID, err)
		}
	}
	if o, ok := objs[deckObjectKey(roomID)]; ok {
		r.versions[o.Key] = o.Version
		if err := json.Unmarshal([]byte(o.Value), &r.state.Deck); err != nil {
			return nil, fmt.Errorf("decode deck of room %s: %w", roomID, err)
		}
	}
	for _, id := range sess.Seats {
		o, ok := objs[handObjectKey(roomID, id)]
		if !ok {
			continue
		}
		r.versions[o.Key] = o.Version
		var hand []domain.Card
		if err := json.Unmarshal([]byte(o.Value), &hand); err != nil {
			return nil, fmt.Errorf("decode hand %s of room %s: %w", id, roomID, err)
		}
		r.state.Hands[id] = hand
	}
	return r, nil
}

func (s *NakamaStorageStore) ReadSession(ctx context.Context, roomID string) (*domain.GameSession, error) {
	r, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return r.state.Session, nil
}

func (s *NakamaStorageStore) ReadHand(ctx context.Context, roomID, playerID string) ([]domain.Card, error) {
	r, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return r.state.Hands[playerID], nil
}

func (s *NakamaStorageStore) ReadMelds(ctx context.Context, roomID string) ([]domain.Meld, error) {
	r, err := s.load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return r.state.Melds, nil
}

func (s *NakamaStorageStore) ReadDeckState(ctx context.Context, roomID string) (domain.DeckState, error) {
	r, err := s.load(ctx, roomID)
	if err != nil {
		return domain.DeckState{}, err
	}
	return r.state.Deck, nil
}

func (s *NakamaStorageStore) Create(ctx context.Context, state *domain.RoomState) error {
	created := state.Clone()
	created.Session.Revision = 1
	changes := ports.Diff(nil, created)
	// "*" only writes objects that do not exist yet
	versions := map[string]string{}
	for _, key := range objectKeys(created, changes) {
		versions[key] = "*"
	}
	if err := s.commit(ctx, created, changes, versions); err != nil {
		return err
	}
	s.hub.Publish(changes)
	return nil
}

func (s *NakamaStorageStore) Transact(ctx context.Context, roomID string, fn func(*domain.RoomState) error) error {
	before, err := s.load(ctx, roomID)
	if err != nil {
		return err
	}
	working := before.state.Clone()
	if err := fn(working); err != nil {
		// the objects were read in two batches; a commit in between leaves a mixed snapshot
		if s.sessionMoved(ctx, roomID, before.versions[sessionObjectKey(roomID)]) {
			return fmt.Errorf("room %s changed while reading: %w", roomID, ports.ErrConflict)
		}
		return err
	}
	working.Session.Revision = before.state.Session.Revision + 1
	changes := ports.Diff(before.state, working)
	versions := make(map[string]string, len(changes))
	for _, key := range objectKeys(working, changes) {
		if v, ok := before.versions[key]; ok {
			versions[key] = v
		} else {
			versions[key] = "*"
		}
	}
	if err := s.commit(ctx, working, changes, versions); err != nil {
		return err
	}
	s.hub.Publish(changes)
	return nil
}

// sessionMoved reports whether the session object no longer has version.
func (s *NakamaStorageStore) sessionMoved(ctx context.Context, roomID, version string) bool {
	objs, err := s.readObjects(ctx, []string{sessionObjectKey(roomID)})
	if err != nil {
		return false
	}
	o, ok := objs[sessionObjectKey(roomID)]
	return !ok || o.Version != version
}

func objectKeys(st *domain.RoomState, changes []ports.Change) []string {
	roomID := st.Session.RoomID
	keys := make([]string, 0, len(changes))
	for _, ch := range changes {
		switch ch.Kind {
		case ports.EntitySession:
			keys = append(keys, sessionObjectKey(roomID))
		case ports.EntityHand:
			keys = append(keys, handObjectKey(roomID, ch.PlayerID))
		case ports.EntityMelds:
			keys = append(keys, meldsObjectKey(roomID))
		case ports.EntityDeck:
			keys = append(keys, deckObjectKey(roomID))
		}
	}
	return keys
}

func (s *NakamaStorageStore) commit(ctx context.Context, st *domain.RoomState, changes []ports.Change, versions map[string]string) error {
	roomID := st.Session.RoomID
	var (
		writes  []*runtime.StorageWrite
		deletes []*runtime.StorageDelete
	)
	for i, ch := range changes {
		key := objectKeys(st, changes[i:i+1])[0]
		var value any
		switch ch.Kind {
		case ports.EntitySession:
			value = st.Session
		case ports.EntityMelds:
			value = st.Melds
		case ports.EntityDeck:
			value = st.Deck
		case ports.EntityHand:
			hand, ok := st.Hands[ch.PlayerID]
			if !ok {
				if v := versions[key]; v != "*" {
					deletes = append(deletes, &runtime.StorageDelete{Collection: roomCollection, Key: key, Version: v})
				}
				continue
			}
			value = hand
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s of room %s: %w", ch.Kind, roomID, err)
		}
		writes = append(writes, &runtime.StorageWrite{
			Collection:      roomCollection,
			Key:             key,
			Value:           string(raw),
			Version:         versions[key],
			PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		})
	}

	if _, _, err := s.nk.MultiUpdate(ctx, nil, writes, deletes, nil, false); err != nil {
		if errors.Is(err, runtime.ErrStorageRejectedVersion) {
			return fmt.Errorf("room %s: %w", roomID, ports.ErrConflict)
		}
		return fmt.Errorf("storage update of room %s: %w", roomID, err)
	}
	return nil
}

func (s *NakamaStorageStore) Subscribe(roomID string, kind ports.EntityKind, cb ports.ChangeFunc) func() {
	return s.hub.Subscribe(roomID, kind, cb)
}

var _ ports.SessionStore = (*NakamaStorageStore)(nil)
