package ports

import "sync"

// Hub fans committed changes out to in-process subscribers, keyed by room and entity kind.
// Callbacks run on the publishing goroutine after the store released its locks.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	// roomID -> kind -> subscription id -> callback
	rooms map[string]map[EntityKind]map[uint64]ChangeFunc
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[EntityKind]map[uint64]ChangeFunc)}
}

// Subscribe registers cb and returns a func that removes it. Cancel is safe to call twice.
func (h *Hub) Subscribe(roomID string, kind EntityKind, cb ChangeFunc) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[EntityKind]map[uint64]ChangeFunc)
	}
	if h.rooms[roomID][kind] == nil {
		h.rooms[roomID][kind] = make(map[uint64]ChangeFunc)
	}
	h.rooms[roomID][kind][id] = cb

	var once sync.Once
	return func() {
		once.Do(func() { h.unsubscribe(roomID, kind, id) })
	}
}

func (h *Hub) unsubscribe(roomID string, kind EntityKind, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	kinds, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(kinds[kind], id)
	if len(kinds[kind]) == 0 {
		delete(kinds, kind)
	}
	// Clean up empty rooms
	if len(kinds) == 0 {
		delete(h.rooms, roomID)
	}
}

// Publish delivers every change to the subscribers of its room and kind.
func (h *Hub) Publish(changes []Change) {
	for _, ch := range changes {
		h.mu.RLock()
		subs := make([]ChangeFunc, 0, len(h.rooms[ch.RoomID][ch.Kind]))
		for _, cb := range h.rooms[ch.RoomID][ch.Kind] {
			subs = append(subs, cb)
		}
		h.mu.RUnlock()

		for _, cb := range subs {
			cb(ch)
		}
	}
}

// Subscribers returns the number of live subscriptions for a room.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.rooms[roomID] {
		n += len(subs)
	}
	return n
}
