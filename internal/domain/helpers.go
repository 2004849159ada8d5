package domain

// CountCards returns the multiplicity of every card.
func CountCards(cards []Card) map[Card]int {
	counts := make(map[Card]int, len(cards))
	for _, c := range cards {
		counts[c]++
	}
	return counts
}

// CountOf returns how many copies of card appear in cards.
func CountOf(cards []Card, card Card) int {
	n := 0
	for _, c := range cards {
		if c == card {
			n++
		}
	}
	return n
}

// ContainsAll reports whether hand holds every card of sub, respecting duplicates.
func ContainsAll(hand []Card, sub []Card) bool {
	counts := CountCards(hand)
	for _, c := range sub {
		if counts[c] == 0 {
			return false
		}
		counts[c]--
	}
	return true
}

// RemoveCards removes one copy of each card in toRemove and returns the updated hand.
// Cards not present are ignored; callers check ContainsAll first.
func RemoveCards(hand []Card, toRemove []Card) []Card {
	if len(toRemove) == 0 || len(hand) == 0 {
		return append([]Card(nil), hand...)
	}

	removeCounts := CountCards(toRemove)
	updated := make([]Card, 0, len(hand))
	for _, card := range hand {
		if count, ok := removeCounts[card]; ok && count > 0 {
			removeCounts[card] = count - 1
			continue
		}
		updated = append(updated, card)
	}

	return updated
}

// SameMultiset reports whether a and b hold the same cards with the same multiplicities.
func SameMultiset(a, b []Card) bool {
	if len(a) != len(b) {
		return false
	}
	counts := CountCards(a)
	for _, c := range b {
		if counts[c] == 0 {
			return false
		}
		counts[c]--
	}
	return true
}

// CloneCards copies a card slice; nil stays nil.
func CloneCards(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	return append(make([]Card, 0, len(cards)), cards...)
}
