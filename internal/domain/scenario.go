package domain

// ScenarioKind tags how a go-out is achieved.
type ScenarioKind int

const (
	// ScenarioNormal lays melds covering all but one card, which is discarded.
	ScenarioNormal ScenarioKind = iota + 1
	// ScenarioPairWithTop completes a set with two hand cards and the discard top; nothing is discarded.
	ScenarioPairWithTop
	// ScenarioPairWithTopAndDiscard completes a set with two of three hand cards and the
	// discard top; the third card becomes the new discard.
	ScenarioPairWithTopAndDiscard
	// ScenarioAllIn lays melds covering the whole hand with no discard.
	ScenarioAllIn
	// ScenarioPickupDiscard is the off-turn path: the picked discard top must end inside a meld.
	ScenarioPickupDiscard
)

var scenarioNames = map[ScenarioKind]string{
	ScenarioNormal:                "normal",
	ScenarioPairWithTop:           "scenario1",
	ScenarioPairWithTopAndDiscard: "scenario2",
	ScenarioAllIn:                 "all_in",
	ScenarioPickupDiscard:         "pickup_discard",
}

func (k ScenarioKind) String() string {
	if name, ok := scenarioNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the scenario by name.
func (k ScenarioKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a scenario name.
func (k *ScenarioKind) UnmarshalText(text []byte) error {
	for kind, name := range scenarioNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return ruleErrorf("unknown scenario %q", string(text))
}

// GoOutScenario is a concrete plan for emptying a hand.
type GoOutScenario struct {
	Kind  ScenarioKind
	Melds []MeldCandidate
	// Discard is the card left on the discard pile, nil when nothing is discarded.
	Discard *Card
	// UsesDiscardTop is set when the visible discard top is part of Melds.
	UsesDiscardTop bool
}

// MeldCards flattens every card laid by the scenario.
func (s GoOutScenario) MeldCards() []Card {
	var out []Card
	for _, m := range s.Melds {
		out = append(out, m.Cards...)
	}
	return out
}

// CanGoOutWithScenarios looks for a legal way to empty hand. On turn the order is
// Scenario1, Scenario2, Normal then AllIn. Off turn it is Scenario1, Scenario2 then
// PickupDiscard, where discardTop is the card being picked up and is not part of hand.
// The inputs are never modified.
func CanGoOutWithScenarios(hand []Card, discardTop *Card, offTurn bool) (GoOutScenario, error) {
	if len(hand) == 0 {
		return GoOutScenario{}, ruleErrorf("hand is empty")
	}

	if sc, ok := pairWithTop(hand, discardTop); ok {
		return sc, nil
	}
	if sc, ok := pairWithTopAndDiscard(hand, discardTop); ok {
		return sc, nil
	}

	if offTurn {
		if discardTop == nil {
			return GoOutScenario{}, ruleErrorf("no discard to pick up")
		}
		merged := append(CloneCards(hand), *discardTop)
		if sc, ok := normalGoOut(merged, discardTop); ok {
			sc.Kind = ScenarioPickupDiscard
			sc.UsesDiscardTop = true
			return sc, nil
		}
		if melds, ok := CoverExactly(merged); ok && meldsContain(melds, *discardTop) {
			return GoOutScenario{Kind: ScenarioPickupDiscard, Melds: melds, UsesDiscardTop: true}, nil
		}
		return GoOutScenario{}, ruleErrorf("%s cannot be used in melds that cover the hand", discardTop)
	}

	if sc, ok := normalGoOut(hand, nil); ok {
		return sc, nil
	}
	if melds, ok := CoverExactly(hand); ok {
		return GoOutScenario{Kind: ScenarioAllIn, Melds: melds}, nil
	}
	return GoOutScenario{}, ruleErrorf("hand cannot be fully covered by melds")
}

func pairWithTop(hand []Card, top *Card) (GoOutScenario, bool) {
	if top == nil || len(hand) != 2 {
		return GoOutScenario{}, false
	}
	if hand[0].Rank != top.Rank || hand[1].Rank != top.Rank {
		return GoOutScenario{}, false
	}
	return GoOutScenario{
		Kind:           ScenarioPairWithTop,
		Melds:          []MeldCandidate{{Kind: MeldSet, Cards: []Card{hand[0], hand[1], *top}}},
		UsesDiscardTop: true,
	}, true
}

func pairWithTopAndDiscard(hand []Card, top *Card) (GoOutScenario, bool) {
	if top == nil || len(hand) != 3 {
		return GoOutScenario{}, false
	}
	for i := 0; i < 3; i++ {
		for j := i + 1; j < 3; j++ {
			if hand[i].Rank != top.Rank || hand[j].Rank != top.Rank {
				continue
			}
			discard := hand[3-i-j]
			return GoOutScenario{
				Kind:           ScenarioPairWithTopAndDiscard,
				Melds:          []MeldCandidate{{Kind: MeldSet, Cards: []Card{hand[i], hand[j], *top}}},
				Discard:        &discard,
				UsesDiscardTop: true,
			}, true
		}
	}
	return GoOutScenario{}, false
}

// normalGoOut tries every distinct discard choice in hand order and accepts the first whose
// remainder is covered. When required is set it must appear inside the melds.
func normalGoOut(hand []Card, required *Card) (GoOutScenario, bool) {
	tried := make(map[Card]bool, len(hand))
	for _, discard := range hand {
		if tried[discard] {
			continue
		}
		tried[discard] = true
		rest := RemoveCards(hand, []Card{discard})
		melds, ok := CoverExactly(rest)
		if !ok {
			continue
		}
		if required != nil && !meldsContain(melds, *required) {
			continue
		}
		d := discard
		return GoOutScenario{Kind: ScenarioNormal, Melds: melds, Discard: &d}, true
	}
	return GoOutScenario{}, false
}

func meldsContain(melds []MeldCandidate, card Card) bool {
	for _, m := range melds {
		if CountOf(m.Cards, card) > 0 {
			return true
		}
	}
	return false
}

// ValidateGoOut checks a player-proposed go-out: every meld valid and melds plus the optional
// discard use exactly the cards of hand.
func ValidateGoOut(hand []Card, melds [][]Card, discard *Card) (GoOutScenario, error) {
	if len(melds) == 0 {
		return GoOutScenario{}, ruleErrorf("a go-out needs at least one meld")
	}
	used := make([]Card, 0, len(hand))
	out := GoOutScenario{Kind: ScenarioAllIn}
	for i, cards := range melds {
		kind := ClassifyMeld(cards)
		if kind == MeldInvalid {
			return GoOutScenario{}, ruleErrorf("meld %d (%s) is neither a sequence nor a set", i+1, FormatCards(cards))
		}
		out.Melds = append(out.Melds, MeldCandidate{Kind: kind, Cards: CloneCards(cards)})
		used = append(used, cards...)
	}
	if discard != nil {
		d := *discard
		out.Discard = &d
		out.Kind = ScenarioNormal
		used = append(used, d)
	}
	if !SameMultiset(hand, used) {
		return GoOutScenario{}, ruleErrorf("melds and discard must use exactly the cards in hand")
	}
	return out, nil
}

// ValidateGoOutWithTop checks a player-proposed go-out that takes the discard top into a
// single set: two hand cards and the top with nothing discarded, or three hand cards where
// the odd one is discarded.
func ValidateGoOutWithTop(hand []Card, top Card, melds [][]Card, discard *Card) (GoOutScenario, error) {
	sc, err := ValidateGoOut(append(CloneCards(hand), top), melds, discard)
	if err != nil {
		return GoOutScenario{}, err
	}
	if len(sc.Melds) != 1 || sc.Melds[0].Kind != MeldSet || CountOf(sc.Melds[0].Cards, top) == 0 {
		return GoOutScenario{}, ruleErrorf("the discard top %s must complete a single set", top)
	}
	switch {
	case len(hand) == 2 && discard == nil:
		sc.Kind = ScenarioPairWithTop
	case len(hand) == 3 && discard != nil:
		sc.Kind = ScenarioPairWithTopAndDiscard
	default:
		return GoOutScenario{}, ruleErrorf("going out with the discard top needs two cards, or three with one discarded")
	}
	sc.UsesDiscardTop = true
	return sc, nil
}
