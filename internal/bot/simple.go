package bot

import (
	"pontinhos/internal/app"
	"pontinhos/internal/domain"
)

// SimpleBot plays a greedy game: it takes the discard when it completes a meld, goes out as
// soon as the solver allows, lays melds while keeping a card to discard and dumps the
// heaviest loose card. With Knock set it also knocks out of turn when the discard lets it go
// out.
type SimpleBot struct {
	Knock  bool
	memory *Memory
}

// NewSimpleBot creates a SimpleBot that remembers opponents' pickups for self.
func NewSimpleBot(self string, knock bool) *SimpleBot {
	return &SimpleBot{Knock: knock, memory: NewMemory(self)}
}

func (b *SimpleBot) OnEvent(event app.Event) {
	if b.memory != nil {
		b.memory.Observe(event)
	}
}

func (b *SimpleBot) CalculateMove(v *app.View, self string) (Move, error) {
	if v == nil || v.Status != domain.StatusPlaying {
		return Move{Kind: ActionNone}, nil
	}
	if v.PausedBy != "" {
		if v.PausedBy == self {
			return Move{Kind: ActionKnockGoOut}, nil
		}
		return Move{Kind: ActionNone}, nil
	}
	if v.ActivePlayer != self {
		return b.offTurn(v), nil
	}
	if v.Phase == domain.PhaseAwaitingDraw {
		return b.draw(v), nil
	}
	return b.act(v), nil
}

func (b *SimpleBot) offTurn(v *app.View) Move {
	if !b.Knock || !v.FirstPassComplete || v.DiscardTop == nil || len(v.Hand) >= v.Rules.MaxHandSize {
		return Move{Kind: ActionNone}
	}
	if _, err := domain.CanGoOutWithScenarios(v.Hand, v.DiscardTop, true); err != nil {
		return Move{Kind: ActionNone}
	}
	return Move{Kind: ActionKnock}
}

func (b *SimpleBot) draw(v *app.View) Move {
	if v.StockCount == 0 {
		return Move{Kind: ActionDrawDiscard}
	}
	if v.DiscardTop != nil && completesMeld(v.Hand, *v.DiscardTop) {
		return Move{Kind: ActionDrawDiscard}
	}
	return Move{Kind: ActionDrawStock}
}

func (b *SimpleBot) act(v *app.View) Move {
	hand := v.Hand
	if v.FirstPassComplete {
		if _, err := domain.CanGoOutWithScenarios(hand, v.DiscardTop, false); err == nil {
			return Move{Kind: ActionGoOut}
		}
		melds, rest := domain.DecomposeGreedy(hand)
		if len(melds) > 0 && len(rest) > 0 {
			groups := make([][]domain.Card, 0, len(melds))
			for _, m := range melds {
				groups = append(groups, m.Cards)
			}
			return Move{Kind: ActionLayMelds, Melds: groups}
		}
		if v.Rules.AllowLayoff && len(hand) > 1 {
			for _, c := range hand {
				for _, m := range v.Melds {
					if domain.CanAddCardToMeld(c, m) {
						return Move{Kind: ActionLayoff, Card: c, MeldID: m.ID}
					}
				}
			}
		}
	}
	return Move{Kind: ActionDiscard, Card: b.pickDiscard(hand)}
}

// pickDiscard chooses the highest-point card outside the greedy melds, preferring cards that
// do not feed an opponent. Ties go to the card held last.
func (b *SimpleBot) pickDiscard(hand []domain.Card) domain.Card {
	_, loose := domain.DecomposeGreedy(hand)
	if len(loose) == 0 {
		loose = hand
	}
	best, bestScore := loose[0], -1
	for _, c := range loose {
		score := domain.CardPoints(c) * 2
		if b.memory == nil || !b.memory.Feeds(c) {
			score += 100
		}
		if score >= bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// completesMeld reports whether card forms a new meld with cards from hand.
func completesMeld(hand []domain.Card, card domain.Card) bool {
	merged := append(domain.CloneCards(hand), card)
	for _, m := range domain.FindAllMelds(merged) {
		if domain.CountOf(m.Cards, card) > 0 && !domain.ContainsAll(hand, m.Cards) {
			return true
		}
	}
	return false
}
