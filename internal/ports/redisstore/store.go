// Package redisstore stores rooms in Redis. Transactions WATCH the session key, which every commit
// rewrites, so it serves as the room's concurrency token.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pontinhos/internal/domain"
	"pontinhos/internal/ports"
)

const (
	keyPrefix = "pontinhos"
	// pausedKey is a sorted set of room ids scored by knock start in unix milliseconds.
	pausedKey = keyPrefix + ":paused"
)

func sessionKey(roomID string) string { return fmt.Sprintf("%s:room:%s:session", keyPrefix, roomID) }
func handsKey(roomID string) string   { return fmt.Sprintf("%s:room:%s:hands", keyPrefix, roomID) }
func meldsKey(roomID string) string   { return fmt.Sprintf("%s:room:%s:melds", keyPrefix, roomID) }
func deckKey(roomID string) string    { return fmt.Sprintf("%s:room:%s:deck", keyPrefix, roomID) }
func changesChannel(roomID string) string {
	return fmt.Sprintf("%s:room:%s:changes", keyPrefix, roomID)
}

// Store implements ports.SessionStore over a Redis client.
type Store struct {
	client *redis.Client
	logger ports.Logger
	hub    *ports.Hub

	mu        sync.Mutex
	listeners map[string]*redis.PubSub
}

// NewStore wraps an existing client. The caller owns the client.
func NewStore(client *redis.Client, logger ports.Logger) *Store {
	if logger == nil {
		logger = ports.NopLogger{}
	}
	return &Store{
		client:    client,
		logger:    logger,
		hub:       ports.NewHub(),
		listeners: make(map[string]*redis.PubSub),
	}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int, logger ports.Logger) (*Store, error) {
	cli := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pingCtx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewStore(cli, logger), nil
}

// Close stops every pub/sub listener and closes the client.
func (s *Store) Close() error {
	s.mu.Lock()
	for roomID, ps := range s.listeners {
		_ = ps.Close()
		delete(s.listeners, roomID)
	}
	s.mu.Unlock()
	return s.client.Close()
}

func (s *Store) ReadSession(ctx context.Context, roomID string) (*domain.GameSession, error) {
	var sess domain.GameSession
	if err := getJSON(ctx, s.client, sessionKey(roomID), &sess); err != nil {
		return nil, notFound(roomID, err)
	}
	return &sess, nil
}

func (s *Store) ReadHand(ctx context.Context, roomID, playerID string) ([]domain.Card, error) {
	if _, err := s.ReadSession(ctx, roomID); err != nil {
		return nil, err
	}
	raw, err := s.client.HGet(ctx, handsKey(roomID), playerID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read hand %s/%s: %w", roomID, playerID, err)
	}
	var hand []domain.Card
	if err := json.Unmarshal(raw, &hand); err != nil {
		return nil, fmt.Errorf("decode hand %s/%s: %w", roomID, playerID, err)
	}
	return hand, nil
}

func (s *Store) ReadMelds(ctx context.Context, roomID string) ([]domain.Meld, error) {
	var melds []domain.Meld
	if err := getJSON(ctx, s.client, meldsKey(roomID), &melds); err != nil {
		return nil, notFound(roomID, err)
	}
	return melds, nil
}

func (s *Store) ReadDeckState(ctx context.Context, roomID string) (domain.DeckState, error) {
	var deck domain.DeckState
	if err := getJSON(ctx, s.client, deckKey(roomID), &deck); err != nil {
		return domain.DeckState{}, notFound(roomID, err)
	}
	return deck, nil
}

func (s *Store) Create(ctx context.Context, state *domain.RoomState) error {
	roomID := state.Session.RoomID
	created := state.Clone()
	created.Session.Revision = 1

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, sessionKey(roomID)).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("room %s already exists: %w", roomID, ports.ErrConflict)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return writeChanges(ctx, pipe, created, ports.Diff(nil, created))
		})
		return err
	}, sessionKey(roomID))
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("room %s created concurrently: %w", roomID, ports.ErrConflict)
	}
	if err != nil {
		return err
	}
	s.publish(ctx, ports.Diff(nil, created))
	return nil
}

func (s *Store) Transact(ctx context.Context, roomID string, fn func(*domain.RoomState) error) error {
	var changes []ports.Change
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		before, err := load(ctx, tx, roomID)
		if err != nil {
			return err
		}
		working := before.Clone()
		if err := fn(working); err != nil {
			// load issues one command per key; a commit in between leaves a mixed snapshot
			if sessionMoved(ctx, tx, roomID, before.Session.Revision) {
				return fmt.Errorf("room %s changed while reading: %w", roomID, ports.ErrConflict)
			}
			return err
		}
		working.Session.Revision = before.Session.Revision + 1
		changes = ports.Diff(before, working)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return writeChanges(ctx, pipe, working, changes)
		})
		return err
	}, sessionKey(roomID))
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("room %s: %w", roomID, ports.ErrConflict)
	}
	if err != nil {
		return err
	}
	s.publish(ctx, changes)
	return nil
}

// Subscribe registers cb locally and makes sure a Redis listener for the room is running, so
// commits from other processes are delivered too.
func (s *Store) Subscribe(roomID string, kind ports.EntityKind, cb ports.ChangeFunc) func() {
	cancel := s.hub.Subscribe(roomID, kind, cb)
	if err := s.listen(roomID); err != nil {
		s.logger.Error("redis subscribe %s failed: %v", roomID, err)
	}
	return func() {
		cancel()
		if s.hub.Subscribers(roomID) == 0 {
			s.unlisten(roomID)
		}
	}
}

func (s *Store) listen(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listeners[roomID]; ok {
		return nil
	}
	ctx := context.Background()
	ps := s.client.Subscribe(ctx, changesChannel(roomID))
	// wait for the confirmation so no commit after Subscribe returns is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return err
	}
	s.listeners[roomID] = ps
	go s.forward(ps)
	return nil
}

func (s *Store) unlisten(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ps, ok := s.listeners[roomID]; ok {
		_ = ps.Close()
		delete(s.listeners, roomID)
	}
}

func (s *Store) forward(ps *redis.PubSub) {
	for msg := range ps.Channel() {
		var ch ports.Change
		if err := json.Unmarshal([]byte(msg.Payload), &ch); err != nil {
			s.logger.Warn("dropping malformed change on %s: %v", msg.Channel, err)
			continue
		}
		s.hub.Publish([]ports.Change{ch})
	}
}

func (s *Store) publish(ctx context.Context, changes []ports.Change) {
	pipe := s.client.Pipeline()
	for _, ch := range changes {
		payload, err := json.Marshal(ch)
		if err != nil {
			continue
		}
		pipe.Publish(ctx, changesChannel(ch.RoomID), payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("publish changes failed: %v", err)
	}
}

// PausedRooms lists rooms whose knock window opened at or before startedBefore, to
// millisecond precision. Callers re-check the deadline before acting.
func (s *Store) PausedRooms(ctx context.Context, startedBefore time.Time) ([]string, error) {
	rooms, err := s.client.ZRangeByScore(ctx, pausedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(startedBefore.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list paused rooms: %w", err)
	}
	return rooms, nil
}

func load(ctx context.Context, tx *redis.Tx, roomID string) (*domain.RoomState, error) {
	st := &domain.RoomState{Session: &domain.GameSession{}}
	if err := getJSON(ctx, tx, sessionKey(roomID), st.Session); err != nil {
		return nil, notFound(roomID, err)
	}
	if err := getJSON(ctx, tx, meldsKey(roomID), &st.Melds); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	if err := getJSON(ctx, tx, deckKey(roomID), &st.Deck); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	raw, err := tx.HGetAll(ctx, handsKey(roomID)).Result()
	if err != nil {
		return nil, err
	}
	st.Hands = make(map[string][]domain.Card, len(raw))
	for id, v := range raw {
		var hand []domain.Card
		if err := json.Unmarshal([]byte(v), &hand); err != nil {
			return nil, fmt.Errorf("decode hand %s/%s: %w", roomID, id, err)
		}
		st.Hands[id] = hand
	}
	return st, nil
}

// sessionMoved reports whether the stored session is no longer at revision.
func sessionMoved(ctx context.Context, c redis.Cmdable, roomID string, revision int64) bool {
	var sess domain.GameSession
	if err := getJSON(ctx, c, sessionKey(roomID), &sess); err != nil {
		return errors.Is(err, redis.Nil)
	}
	return sess.Revision != revision
}

// writeChanges queues the writes for every changed entity.
func writeChanges(ctx context.Context, pipe redis.Pipeliner, st *domain.RoomState, changes []ports.Change) error {
	roomID := st.Session.RoomID
	for _, ch := range changes {
		var err error
		switch ch.Kind {
		case ports.EntitySession:
			err = setJSON(ctx, pipe, sessionKey(roomID), st.Session)
			if p := st.Session.Pause; p != nil {
				pipe.ZAdd(ctx, pausedKey, redis.Z{Score: float64(p.StartedAt.UnixMilli()), Member: roomID})
			} else {
				pipe.ZRem(ctx, pausedKey, roomID)
			}
		case ports.EntityHand:
			hand, ok := st.Hands[ch.PlayerID]
			if !ok {
				pipe.HDel(ctx, handsKey(roomID), ch.PlayerID)
				continue
			}
			var raw []byte
			if raw, err = json.Marshal(hand); err == nil {
				pipe.HSet(ctx, handsKey(roomID), ch.PlayerID, raw)
			}
		case ports.EntityMelds:
			err = setJSON(ctx, pipe, meldsKey(roomID), st.Melds)
		case ports.EntityDeck:
			err = setJSON(ctx, pipe, deckKey(roomID), st.Deck)
		}
		if err != nil {
			return fmt.Errorf("encode %s of room %s: %w", ch.Kind, roomID, err)
		}
	}
	return nil
}

func getJSON(ctx context.Context, c redis.Cmdable, key string, v any) error {
	raw, err := c.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func setJSON(ctx context.Context, c redis.Cmdable, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, 0).Err()
}

func notFound(roomID string, err error) error {
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("room %s: %w", roomID, ports.ErrNotFound)
	}
	return fmt.Errorf("room %s: %w", roomID, err)
}

var (
	_ ports.SessionStore    = (*Store)(nil)
	_ ports.PausedRoomIndex = (*Store)(nil)
)
