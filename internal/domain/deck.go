package domain

import (
	"math/rand"
	"sort"
)

// DoubleDeckSize is the number of cards in play each round.
const DoubleDeckSize = 104

// NewDeck returns a sorted 52-card deck.
func NewDeck() []Card {
	deck := make([]Card, 0, 52)
	for _, s := range Suits {
		for r := RankAce; r <= RankKing; r++ {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}
	return deck
}

// BuildDoubleDeck returns two standard decks concatenated (104 cards).
func BuildDoubleDeck() []Card {
	deck := make([]Card, 0, DoubleDeckSize)
	deck = append(deck, NewDeck()...)
	return append(deck, NewDeck()...)
}

// Shuffle returns a Fisher-Yates shuffled copy of the given deck.
func Shuffle(deck []Card, rng *rand.Rand) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// SortHand orders cards by suit, then ace-low rank.
func SortHand(cards []Card) {
	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].Suit != cards[j].Suit {
			return cards[i].Suit < cards[j].Suit
		}
		return cards[i].Rank < cards[j].Rank
	})
}
