package domain

import (
	"sort"
	"strings"
)

// MeldKind represents the type of a card combination.
type MeldKind int

const (
	MeldInvalid MeldKind = iota
	MeldSequence
	MeldSet
)

func (k MeldKind) String() string {
	switch k {
	case MeldSequence:
		return "sequence"
	case MeldSet:
		return "set"
	default:
		return "invalid"
	}
}

// MarshalText encodes the kind by name.
func (k MeldKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *MeldKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "sequence":
		*k = MeldSequence
	case "set":
		*k = MeldSet
	default:
		*k = MeldInvalid
	}
	return nil
}

// MinMeldSize is the smallest legal meld.
const MinMeldSize = 3

// MeldCandidate is a group of cards that forms a meld but has not been laid down.
type MeldCandidate struct {
	Kind  MeldKind
	Cards []Card
}

func (m MeldCandidate) key() string {
	cards := CloneCards(m.Cards)
	SortHand(cards)
	return m.Kind.String() + ":" + FormatCards(cards)
}

// IsValidSequence reports whether cards form a same-suit run of at least three consecutive
// ranks. The ace counts either below the two or above the king, never both.
func IsValidSequence(cards []Card) bool {
	if len(cards) < MinMeldSize {
		return false
	}
	suit := cards[0].Suit
	hasAce := false
	for _, c := range cards {
		if c.Suit != suit {
			return false
		}
		if c.Rank == RankAce {
			hasAce = true
		}
	}
	if consecutive(rankValues(cards, false)) {
		return true
	}
	return hasAce && consecutive(rankValues(cards, true))
}

// IsValidSet reports whether cards are at least three of the same rank. Suits may repeat.
func IsValidSet(cards []Card) bool {
	return len(cards) >= MinMeldSize && allSameRank(cards)
}

// ClassifyMeld returns the kind of meld the cards form; sequences take priority.
func ClassifyMeld(cards []Card) MeldKind {
	if IsValidSequence(cards) {
		return MeldSequence
	}
	if IsValidSet(cards) {
		return MeldSet
	}
	return MeldInvalid
}

// CanAddCardToMeld reports whether card can be laid off onto meld without breaking it.
// Sequences only grow at either end; sets accept any suit of the same rank.
func CanAddCardToMeld(card Card, meld Meld) bool {
	return canExtend(meld.Kind, meld.Cards, card)
}

func canExtend(kind MeldKind, cards []Card, card Card) bool {
	if len(cards) == 0 {
		return false
	}
	switch kind {
	case MeldSequence:
		extended := append(CloneCards(cards), card)
		return IsValidSequence(extended)
	case MeldSet:
		return card.Rank == cards[0].Rank
	default:
		return false
	}
}

// FindExpandableMeld looks for a base meld of three cards inside candidates onto which every
// remaining candidate can be appended one at a time. It returns the expanded meld.
func FindExpandableMeld(candidates []Card) (MeldCandidate, bool) {
	if len(candidates) < MinMeldSize {
		return MeldCandidate{}, false
	}
	if kind := ClassifyMeld(candidates); kind != MeldInvalid {
		return MeldCandidate{Kind: kind, Cards: CloneCards(candidates)}, true
	}

	sorted := CloneCards(candidates)
	SortHand(sorted)
	n := len(sorted)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				base := []Card{sorted[i], sorted[j], sorted[k]}
				kind := ClassifyMeld(base)
				if kind == MeldInvalid {
					continue
				}
				rest := make([]Card, 0, n-3)
				for idx, c := range sorted {
					if idx != i && idx != j && idx != k {
						rest = append(rest, c)
					}
				}
				if expanded, ok := expandMeld(kind, base, rest); ok {
					return MeldCandidate{Kind: kind, Cards: expanded}, true
				}
			}
		}
	}
	return MeldCandidate{}, false
}

// expandMeld appends rest onto base one card at a time, retrying until no card fits.
func expandMeld(kind MeldKind, base, rest []Card) ([]Card, bool) {
	meld := CloneCards(base)
	pending := CloneCards(rest)
	for len(pending) > 0 {
		progressed := false
		for idx, c := range pending {
			if canExtend(kind, meld, c) {
				meld = append(meld, c)
				pending = append(pending[:idx], pending[idx+1:]...)
				progressed = true
				break
			}
		}
		if !progressed {
			return nil, false
		}
	}
	return meld, true
}

// FindAllMelds enumerates every run window of three or more cards per suit and every
// same-rank group of three or more (plus its leave-one-out variants).
func FindAllMelds(cards []Card) []MeldCandidate {
	var out []MeldCandidate
	seen := make(map[string]bool)
	add := func(m MeldCandidate) {
		k := m.key()
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, m)
	}

	bySuit := make(map[Suit]map[int]bool)
	for _, c := range cards {
		if bySuit[c.Suit] == nil {
			bySuit[c.Suit] = make(map[int]bool)
		}
		bySuit[c.Suit][RankOrder(c.Rank)] = true
		if c.Rank == RankAce {
			bySuit[c.Suit][AceHigh] = true
		}
	}
	for _, suit := range Suits {
		present := bySuit[suit]
		if len(present) == 0 {
			continue
		}
		values := make([]int, 0, len(present))
		for v := range present {
			values = append(values, v)
		}
		sort.Ints(values)
		for _, run := range splitRuns(values) {
			for start := 0; start < len(run); start++ {
				for end := start + MinMeldSize; end <= len(run); end++ {
					window := run[start:end]
					if window[0] == 1 && window[len(window)-1] == AceHigh {
						continue
					}
					seq := make([]Card, len(window))
					for i, v := range window {
						seq[i] = Card{Rank: rankFromValue(v), Suit: suit}
					}
					add(MeldCandidate{Kind: MeldSequence, Cards: seq})
				}
			}
		}
	}

	byRank := make(map[Rank][]Card)
	for _, c := range cards {
		byRank[c.Rank] = append(byRank[c.Rank], c)
	}
	for r := RankAce; r <= RankKing; r++ {
		group := byRank[r]
		if len(group) < MinMeldSize {
			continue
		}
		add(MeldCandidate{Kind: MeldSet, Cards: CloneCards(group)})
		if len(group) > MinMeldSize {
			for skip := range group {
				variant := make([]Card, 0, len(group)-1)
				for i, c := range group {
					if i != skip {
						variant = append(variant, c)
					}
				}
				add(MeldCandidate{Kind: MeldSet, Cards: variant})
			}
		}
	}
	return out
}

// ValidateMultipleMelds checks that every proposed meld is valid and that, together, they use
// only cards from selected without reusing any physical card.
func ValidateMultipleMelds(selected []Card, proposed [][]Card) error {
	if len(proposed) == 0 {
		return ruleErrorf("no melds proposed")
	}
	available := CountCards(selected)
	for i, meld := range proposed {
		if ClassifyMeld(meld) == MeldInvalid {
			return ruleErrorf("meld %d (%s) is neither a sequence nor a set", i+1, FormatCards(meld))
		}
		for _, c := range meld {
			if available[c] == 0 {
				return ruleErrorf("card %s is not available for meld %d", c, i+1)
			}
			available[c]--
		}
	}
	return nil
}

// DecomposeGreedy covers cards with disjoint melds, longest candidates first, then lays any
// leftover card onto a chosen meld when it fits. It returns the melds and the uncovered cards.
//
// This is a heuristic: it can miss a cover that exists for adversarial hands.
func DecomposeGreedy(cards []Card) ([]MeldCandidate, []Card) {
	candidates := FindAllMelds(cards)
	sort.SliceStable(candidates, func(i, j int) bool {
		if len(candidates[i].Cards) != len(candidates[j].Cards) {
			return len(candidates[i].Cards) > len(candidates[j].Cards)
		}
		if candidates[i].Kind != candidates[j].Kind {
			return candidates[i].Kind == MeldSequence
		}
		return strings.Compare(candidates[i].key(), candidates[j].key()) < 0
	})

	remaining := CountCards(cards)
	var chosen []MeldCandidate
	for _, cand := range candidates {
		need := CountCards(cand.Cards)
		fits := true
		for c, n := range need {
			if remaining[c] < n {
				fits = false
				break
			}
		}
		if !fits {
			continue
		}
		for c, n := range need {
			remaining[c] -= n
		}
		chosen = append(chosen, MeldCandidate{Kind: cand.Kind, Cards: CloneCards(cand.Cards)})
	}

	var leftover []Card
	for _, c := range cards {
		if remaining[c] > 0 {
			leftover = append(leftover, c)
			remaining[c]--
		}
	}

	for progressed := true; progressed && len(leftover) > 0; {
		progressed = false
		for idx, c := range leftover {
			for m := range chosen {
				if canExtend(chosen[m].Kind, chosen[m].Cards, c) {
					chosen[m].Cards = append(chosen[m].Cards, c)
					leftover = append(leftover[:idx], leftover[idx+1:]...)
					progressed = true
					break
				}
			}
			if progressed {
				break
			}
		}
	}
	return chosen, leftover
}

// CoverExactly returns melds covering every card, or false when the greedy cover leaves any.
func CoverExactly(cards []Card) ([]MeldCandidate, bool) {
	if len(cards) < MinMeldSize {
		return nil, false
	}
	melds, leftover := DecomposeGreedy(cards)
	if len(leftover) > 0 || len(melds) == 0 {
		return nil, false
	}
	return melds, true
}

func allSameRank(cards []Card) bool {
	if len(cards) == 0 {
		return false
	}
	r := cards[0].Rank
	for _, c := range cards {
		if c.Rank != r {
			return false
		}
	}
	return true
}

func rankValues(cards []Card, aceHigh bool) []int {
	values := make([]int, len(cards))
	for i, c := range cards {
		v := RankOrder(c.Rank)
		if aceHigh && c.Rank == RankAce {
			v = AceHigh
		}
		values[i] = v
	}
	sort.Ints(values)
	return values
}

// consecutive reports whether sorted values step by exactly one; duplicates fail.
func consecutive(values []int) bool {
	for i := 1; i < len(values); i++ {
		if values[i] != values[i-1]+1 {
			return false
		}
	}
	return true
}

func splitRuns(values []int) [][]int {
	var runs [][]int
	start := 0
	for i := 1; i <= len(values); i++ {
		if i == len(values) || values[i] != values[i-1]+1 {
			runs = append(runs, values[start:i])
			start = i
		}
	}
	return runs
}

func rankFromValue(v int) Rank {
	if v == AceHigh {
		return RankAce
	}
	return Rank(v)
}
