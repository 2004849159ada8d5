package domain

import (
	"fmt"
	"math/rand"
)

// Meld is a laid-down group of cards. Cards are only ever appended.
type Meld struct {
	ID    string   `json:"id"`
	Kind  MeldKind `json:"kind"`
	Cards []Card   `json:"cards"`
	Owner string   `json:"owner"`
}

// DeckState holds the shared piles. The last element of each slice is its top.
type DeckState struct {
	Stock   []Card `json:"stock"`
	Discard []Card `json:"discard"`
}

// RoomState is everything a transition may read or write for a single room.
type RoomState struct {
	Session *GameSession      `json:"session"`
	Hands   map[string][]Card `json:"hands"`
	Melds   []Meld            `json:"melds"`
	Deck    DeckState         `json:"deck"`
}

// NewRoomState creates an empty lobby room.
func NewRoomState(roomID string, seats []string, rules Rules) *RoomState {
	return &RoomState{
		Session: NewGameSession(roomID, seats, rules),
		Hands:   make(map[string][]Card),
	}
}

// Clone returns a deep copy.
func (r *RoomState) Clone() *RoomState {
	cp := &RoomState{
		Session: r.Session.Clone(),
		Hands:   make(map[string][]Card, len(r.Hands)),
		Deck: DeckState{
			Stock:   CloneCards(r.Deck.Stock),
			Discard: CloneCards(r.Deck.Discard),
		},
	}
	for id, h := range r.Hands {
		cp.Hands[id] = CloneCards(h)
	}
	if r.Melds != nil {
		cp.Melds = make([]Meld, len(r.Melds))
		for i, m := range r.Melds {
			m.Cards = CloneCards(m.Cards)
			cp.Melds[i] = m
		}
	}
	return cp
}

// MeldByID returns a pointer into Melds, or nil.
func (r *RoomState) MeldByID(id string) *Meld {
	for i := range r.Melds {
		if r.Melds[i].ID == id {
			return &r.Melds[i]
		}
	}
	return nil
}

// PushDiscard places card on top of the discard pile.
func (r *RoomState) PushDiscard(card Card) {
	r.Deck.Discard = append(r.Deck.Discard, card)
	r.SyncDiscardTop()
}

// PopDiscard removes and returns the discard top.
func (r *RoomState) PopDiscard() (Card, bool) {
	n := len(r.Deck.Discard)
	if n == 0 {
		return Card{}, false
	}
	top := r.Deck.Discard[n-1]
	r.Deck.Discard = r.Deck.Discard[:n-1]
	r.SyncDiscardTop()
	return top, true
}

// PopStock removes and returns the top of the stock.
func (r *RoomState) PopStock() (Card, bool) {
	n := len(r.Deck.Stock)
	if n == 0 {
		return Card{}, false
	}
	top := r.Deck.Stock[n-1]
	r.Deck.Stock = r.Deck.Stock[:n-1]
	return top, true
}

// SyncDiscardTop copies the visible discard top into the session.
func (r *RoomState) SyncDiscardTop() {
	n := len(r.Deck.Discard)
	if n == 0 {
		r.Session.DiscardTop = nil
		return
	}
	top := r.Deck.Discard[n-1]
	r.Session.DiscardTop = &top
}

// AllCards returns every card in the room across piles, hands and melds.
func (r *RoomState) AllCards() []Card {
	out := make([]Card, 0, DoubleDeckSize)
	out = append(out, r.Deck.Stock...)
	out = append(out, r.Deck.Discard...)
	for _, h := range r.Hands {
		out = append(out, h...)
	}
	for _, m := range r.Melds {
		out = append(out, m.Cards...)
	}
	return out
}

// CheckConservation verifies that stock, discard, hands and melds together hold exactly the
// double deck and that the session's discard top matches the pile. A lobby room with no
// cards dealt is trivially conserved.
func (r *RoomState) CheckConservation() error {
	all := r.AllCards()
	if r.Session.Status == StatusLobby && len(all) == 0 {
		return nil
	}
	if len(all) != DoubleDeckSize {
		return fmt.Errorf("room %s holds %d cards, want %d", r.Session.RoomID, len(all), DoubleDeckSize)
	}
	counts := CountCards(all)
	for _, c := range NewDeck() {
		if counts[c] != 2 {
			return fmt.Errorf("room %s holds %d copies of %s, want 2", r.Session.RoomID, counts[c], c)
		}
	}
	n := len(r.Deck.Discard)
	switch {
	case n == 0 && r.Session.DiscardTop != nil:
		return fmt.Errorf("room %s: discard top %s set on an empty pile", r.Session.RoomID, r.Session.DiscardTop)
	case n > 0 && (r.Session.DiscardTop == nil || *r.Session.DiscardTop != r.Deck.Discard[n-1]):
		return fmt.Errorf("room %s: discard top out of sync with pile", r.Session.RoomID)
	}
	return nil
}

// NextStarter returns the standing player seated after the previous starter.
func (s *GameSession) NextStarter() string {
	standing := s.Standing()
	if len(standing) == 0 {
		return ""
	}
	if s.Starter == "" {
		return standing[0]
	}
	prev := -1
	for i, id := range s.Seats {
		if id == s.Starter {
			prev = i
			break
		}
	}
	for step := 1; step <= len(s.Seats); step++ {
		id := s.Seats[(prev+step+len(s.Seats))%len(s.Seats)]
		if p := s.Players[id]; p != nil && !p.Eliminated {
			return id
		}
	}
	return standing[0]
}

// DealRound resets the table for a new round: shuffled double deck, HandSize cards to every
// standing player, one card flipped to the discard pile. The starter is placed first in
// PlayerOrder so FirstPassComplete flips when the turn returns to them. Scores are kept.
func (r *RoomState) DealRound(starter string, rng *rand.Rand) error {
	s := r.Session
	standing := s.Standing()
	if len(standing) < s.Rules.MinPlayers {
		return ruleErrorf("need at least %d players, have %d", s.Rules.MinPlayers, len(standing))
	}
	if len(standing) > s.Rules.MaxPlayers {
		return ruleErrorf("at most %d players may play, have %d", s.Rules.MaxPlayers, len(standing))
	}
	if len(standing)*s.Rules.HandSize+1 > DoubleDeckSize {
		return ruleErrorf("hand size %d is too large for %d players", s.Rules.HandSize, len(standing))
	}

	start := 0
	for i, id := range standing {
		if id == starter {
			start = i
			break
		}
	}
	order := make([]string, 0, len(standing))
	for i := range standing {
		order = append(order, standing[(start+i)%len(standing)])
	}

	deck := Shuffle(BuildDoubleDeck(), rng)
	r.Hands = make(map[string][]Card, len(order))
	for _, id := range order {
		hand := make([]Card, s.Rules.HandSize)
		copy(hand, deck[len(deck)-s.Rules.HandSize:])
		deck = deck[:len(deck)-s.Rules.HandSize]
		r.Hands[id] = hand
	}
	flip := deck[len(deck)-1]
	r.Deck = DeckState{Stock: deck[:len(deck)-1], Discard: []Card{flip}}
	r.Melds = nil

	s.Round++
	s.PlayerOrder = order
	s.Starter = order[0]
	s.TurnIndex = 0
	s.FirstPassComplete = false
	s.Pause = nil
	s.WentOut = ""
	s.Winner = ""
	s.Status = StatusPlaying
	for _, p := range s.Players {
		p.HasDrawnThisTurn = false
	}
	s.HasDrawn = false
	r.SyncDiscardTop()
	s.LastAction = fmt.Sprintf("round %d dealt, %s starts", s.Round, s.Starter)
	return nil
}
