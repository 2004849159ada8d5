package bot

import (
	"pontinhos/internal/app"
	"pontinhos/internal/domain"
)

// Memory remembers which cards opponents took from the discard pile this round, so a bot can
// avoid feeding them.
type Memory struct {
	self  string
	taken map[string][]domain.Card
}

// NewMemory initializes a fresh memory for self.
func NewMemory(self string) *Memory {
	return &Memory{self: self, taken: make(map[string][]domain.Card)}
}

// Reset clears the memory for a new round.
func (m *Memory) Reset() {
	m.taken = make(map[string][]domain.Card)
}

// Observe updates the memory from a game event.
func (m *Memory) Observe(ev app.Event) {
	switch p := ev.Payload.(type) {
	case app.RoundStartedPayload:
		m.Reset()
	case app.CardDrawnPayload:
		if p.Card != nil && p.PlayerID != m.self {
			m.taken[p.PlayerID] = append(m.taken[p.PlayerID], *p.Card)
		}
	case app.KnockStartedPayload:
		if p.PlayerID != m.self {
			m.taken[p.PlayerID] = append(m.taken[p.PlayerID], p.Card)
		}
	case app.KnockRolledBackPayload:
		if cards := m.taken[p.PlayerID]; len(cards) > 0 {
			m.taken[p.PlayerID] = domain.RemoveCards(cards, []domain.Card{p.Card})
		}
	}
}

// Feeds reports whether discarding card would likely help an opponent: it shares a rank with,
// or sits next to in the same suit, a card some opponent picked up.
func (m *Memory) Feeds(card domain.Card) bool {
	for _, cards := range m.taken {
		for _, c := range cards {
			if c.Rank == card.Rank {
				return true
			}
			if c.Suit == card.Suit && (c.Rank == card.Rank+1 || c.Rank+1 == card.Rank) {
				return true
			}
		}
	}
	return false
}

// Taken returns the cards playerID picked up this round.
func (m *Memory) Taken(playerID string) []domain.Card {
	return m.taken[playerID]
}
