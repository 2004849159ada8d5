package domain

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dealtRoom(t *testing.T, seats ...string) *RoomState {
	t.Helper()
	r := NewRoomState("room-1", seats, DefaultRules())
	require.NoError(t, r.DealRound(r.Session.NextStarter(), rand.New(rand.NewSource(1))))
	return r
}

func TestDealRound(t *testing.T) {
	r := dealtRoom(t, "a", "b", "c")
	s := r.Session

	assert.Equal(t, StatusPlaying, s.Status)
	assert.Equal(t, 1, s.Round)
	assert.Equal(t, []string{"a", "b", "c"}, s.PlayerOrder)
	for _, id := range s.PlayerOrder {
		assert.Len(t, r.Hands[id], DefaultHandSize)
	}
	require.Len(t, r.Deck.Discard, 1)
	require.NotNil(t, s.DiscardTop)
	assert.Equal(t, r.Deck.Discard[0], *s.DiscardTop)
	assert.Len(t, r.Deck.Stock, DoubleDeckSize-3*DefaultHandSize-1)
	require.NoError(t, r.CheckConservation())
}

func TestNextRoundRotatesStarterAndSkipsEliminated(t *testing.T) {
	r := dealtRoom(t, "a", "b", "c")
	r.Session.Players["b"].Eliminated = true

	starter := r.Session.NextStarter()
	assert.Equal(t, "c", starter)
	require.NoError(t, r.DealRound(starter, rand.New(rand.NewSource(2))))
	assert.Equal(t, []string{"c", "a"}, r.Session.PlayerOrder)
	assert.Equal(t, 2, r.Session.Round)
	assert.NotContains(t, r.Hands, "b")
	require.NoError(t, r.CheckConservation())
}

func TestDealRoundNeedsPlayers(t *testing.T) {
	r := NewRoomState("room-1", []string{"solo"}, DefaultRules())
	err := r.DealRound("solo", rand.New(rand.NewSource(1)))
	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
}

func TestTurnRotationFlipsFirstPass(t *testing.T) {
	r := dealtRoom(t, "a", "b", "c")
	s := r.Session
	for i := 1; i <= 3; i++ {
		assert.False(t, s.FirstPassComplete, "before discard %d", i)
		s.AdvanceTurn()
		assert.Equal(t, i%3, s.TurnIndex)
	}
	assert.True(t, s.FirstPassComplete)
	s.AdvanceTurn()
	assert.True(t, s.FirstPassComplete, "flag is one-way")
}

func TestCheckConservationDetectsLossAndDuplication(t *testing.T) {
	r := dealtRoom(t, "a", "b")

	lost := r.Clone()
	lost.Hands["a"] = lost.Hands["a"][1:]
	assert.Error(t, lost.CheckConservation())

	dup := r.Clone()
	for _, c := range dup.Hands["b"] {
		if c != dup.Hands["a"][0] {
			dup.Hands["a"][0] = c
			break
		}
	}
	assert.Error(t, dup.CheckConservation())

	desync := r.Clone()
	desync.Session.DiscardTop = nil
	assert.Error(t, desync.CheckConservation())

	assert.NoError(t, r.CheckConservation(), "clones must not alias the original")
}

func TestCloneIsDeep(t *testing.T) {
	r := dealtRoom(t, "a", "b")
	r.Melds = []Meld{{ID: "m1", Kind: MeldSet, Cards: mustCards(t, "7S 7H 7D"), Owner: "a"}}
	r.Session.Pause = &Knock{PlayerID: "b", HandBefore: mustCards(t, "2C"), MeldSizesBefore: map[string]int{"m1": 3}}

	cp := r.Clone()
	cp.Melds[0].Cards[0] = mustCard(t, "KS")
	cp.Session.Players["a"].Score = 50
	cp.Session.Pause.MeldSizesBefore["m1"] = 9
	cp.Hands["a"][0] = mustCard(t, "KS")

	assert.Equal(t, mustCard(t, "7S"), r.Melds[0].Cards[0])
	assert.Equal(t, 0, r.Session.Players["a"].Score)
	assert.Equal(t, 3, r.Session.Pause.MeldSizesBefore["m1"])
}
