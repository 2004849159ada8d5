package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario1PairWithDiscardTop(t *testing.T) {
	hand := mustCards(t, "4S 4H")
	top := mustCard(t, "4D")

	sc, err := CanGoOutWithScenarios(hand, &top, false)
	require.NoError(t, err)
	assert.Equal(t, ScenarioPairWithTop, sc.Kind)
	assert.Nil(t, sc.Discard)
	assert.True(t, sc.UsesDiscardTop)
	require.Len(t, sc.Melds, 1)
	assert.True(t, SameMultiset(sc.Melds[0].Cards, mustCards(t, "4S 4H 4D")))
	assert.True(t, SameMultiset(RemoveCards(append(CloneCards(hand), top), sc.MeldCards()), nil))
	assert.Equal(t, "4S 4H", FormatCards(hand), "input must not be modified")
}

func TestScenario2DiscardsTheOddCard(t *testing.T) {
	hand := mustCards(t, "KD 4S 4H")
	top := mustCard(t, "4C")

	sc, err := CanGoOutWithScenarios(hand, &top, false)
	require.NoError(t, err)
	assert.Equal(t, ScenarioPairWithTopAndDiscard, sc.Kind)
	require.NotNil(t, sc.Discard)
	assert.Equal(t, mustCard(t, "KD"), *sc.Discard)
	assert.True(t, SameMultiset(sc.MeldCards(), mustCards(t, "4S 4H 4C")))
}

func TestNormalGoOutLeavesOneDiscard(t *testing.T) {
	hand := mustCards(t, "4S 5S 6S 9H 9D 9C KD")
	sc, err := CanGoOutWithScenarios(hand, nil, false)
	require.NoError(t, err)
	assert.Equal(t, ScenarioNormal, sc.Kind)
	require.NotNil(t, sc.Discard)
	assert.Equal(t, mustCard(t, "KD"), *sc.Discard)
	assert.True(t, SameMultiset(append(sc.MeldCards(), *sc.Discard), hand))
}

func TestAllInWhenNoDiscardChoiceWorks(t *testing.T) {
	// every single removal breaks a three-card meld, but the whole hand is covered
	hand := mustCards(t, "4S 5S 6S 9H 9D 9C")
	sc, err := CanGoOutWithScenarios(hand, nil, false)
	require.NoError(t, err)
	assert.Equal(t, ScenarioAllIn, sc.Kind)
	assert.Nil(t, sc.Discard)
	assert.True(t, SameMultiset(sc.MeldCards(), hand))
}

func TestNoScenario(t *testing.T) {
	top := mustCard(t, "2C")
	_, err := CanGoOutWithScenarios(mustCards(t, "4S 7H 9D KC"), &top, false)
	require.Error(t, err)
	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.NotEmpty(t, ruleErr.Reason)
}

func TestPickupDiscardMustUseTheTop(t *testing.T) {
	t.Run("top completes a run", func(t *testing.T) {
		hand := mustCards(t, "5S 6S 9H 9D 9C KD")
		top := mustCard(t, "7S")
		sc, err := CanGoOutWithScenarios(hand, &top, true)
		require.NoError(t, err)
		assert.Equal(t, ScenarioPickupDiscard, sc.Kind)
		assert.True(t, sc.UsesDiscardTop)
		assert.Positive(t, CountOf(sc.MeldCards(), top))
		require.NotNil(t, sc.Discard)
		assert.Equal(t, mustCard(t, "KD"), *sc.Discard)
	})

	t.Run("top would only be discarded back", func(t *testing.T) {
		hand := mustCards(t, "5S 6S 7S 9H 9D 9C")
		top := mustCard(t, "KD")
		_, err := CanGoOutWithScenarios(hand, &top, true)
		require.Error(t, err)
	})

	t.Run("no discard top", func(t *testing.T) {
		_, err := CanGoOutWithScenarios(mustCards(t, "5S 6S 7S KD"), nil, true)
		require.Error(t, err)
	})
}

func TestValidateGoOut(t *testing.T) {
	hand := mustCards(t, "4S 5S 6S 9H 9D 9C KD")
	kd := mustCard(t, "KD")

	sc, err := ValidateGoOut(hand, [][]Card{mustCards(t, "4S 5S 6S"), mustCards(t, "9H 9D 9C")}, &kd)
	require.NoError(t, err)
	assert.Equal(t, ScenarioNormal, sc.Kind)

	_, err = ValidateGoOut(hand, [][]Card{mustCards(t, "4S 5S 6S"), mustCards(t, "9H 9D 9C")}, nil)
	require.Error(t, err, "KD left in hand")

	_, err = ValidateGoOut(hand, [][]Card{mustCards(t, "4S 5S 9C")}, &kd)
	require.Error(t, err)
}

func TestValidateGoOutWithTop(t *testing.T) {
	top := mustCard(t, "4D")
	kd := mustCard(t, "KD")
	tests := []struct {
		name    string
		hand    string
		melds   []string
		discard *Card
		want    ScenarioKind
		wantErr bool
	}{
		{name: "pair with top", hand: "4S 4H", melds: []string{"4S 4H 4D"}, want: ScenarioPairWithTop},
		{name: "pair with top and discard", hand: "4S 4H KD", melds: []string{"4S 4H 4D"}, discard: &kd, want: ScenarioPairWithTopAndDiscard},
		{name: "top left out of the set", hand: "4S 4H 4C", melds: []string{"4S 4H 4C"}, discard: &top, wantErr: true},
		{name: "odd card kept", hand: "4S 4H KD", melds: []string{"4S 4H 4D"}, wantErr: true},
		{name: "sequence is not a set", hand: "2D 3D", melds: []string{"2D 3D 4D"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var melds [][]Card
			for _, m := range tt.melds {
				melds = append(melds, mustCards(t, m))
			}
			sc, err := ValidateGoOutWithTop(mustCards(t, tt.hand), top, melds, tt.discard)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sc.Kind)
			assert.True(t, sc.UsesDiscardTop)
		})
	}
}
