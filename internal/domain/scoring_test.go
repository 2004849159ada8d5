package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardPoints(t *testing.T) {
	assert.Equal(t, 1, CardPoints(C(RankAce, Spades)))
	assert.Equal(t, 7, CardPoints(C(RankSeven, Hearts)))
	assert.Equal(t, 10, CardPoints(C(RankTen, Clubs)))
	assert.Equal(t, 10, CardPoints(C(RankKing, Diamonds)))
	assert.Equal(t, 20, HandPoints(mustCards(t, "AS QH 9D")))
}

func TestDetermineWinner(t *testing.T) {
	order := []string{"a", "b", "c"}
	tests := []struct {
		name   string
		out    string
		scores map[string]int
		want   string
	}{
		{name: "went out below threshold", out: "b", scores: map[string]int{"a": 10, "b": 50, "c": 0}, want: "b"},
		{name: "went out at threshold reassigns to lowest eligible", out: "a", scores: map[string]int{"a": 100, "b": 40, "c": 30}, want: "c"},
		{name: "tie goes to earlier player", out: "a", scores: map[string]int{"a": 120, "b": 30, "c": 30}, want: "b"},
		{name: "nobody eligible picks lowest overall", out: "a", scores: map[string]int{"a": 130, "b": 110, "c": 105}, want: "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineWinner(tt.out, order, tt.scores, 100))
		})
	}
}

func TestSettleRound(t *testing.T) {
	r := NewRoomState("room", []string{"a", "b", "c"}, DefaultRules())
	r.Session.Status = StatusPlaying
	r.Session.PlayerOrder = []string{"a", "b", "c"}
	r.Session.Players["b"].Score = 95
	r.Hands = map[string][]Card{
		"a": nil,
		"b": mustCards(t, "KS 2H"),
		"c": mustCards(t, "3D"),
	}

	res := SettleRound(r, "a", ScenarioNormal)
	assert.Equal(t, "a", res.Winner)
	assert.Equal(t, map[string]int{"a": 0, "b": 12, "c": 3}, res.Points)
	assert.Equal(t, 107, r.Session.Players["b"].Score)
	assert.True(t, r.Session.Players["b"].Eliminated)
	assert.False(t, res.Finished)
	assert.Equal(t, StatusRoundEnd, r.Session.Status)

	r.Session.Status = StatusPlaying
	r.Session.PlayerOrder = []string{"a", "c"}
	r.Hands = map[string][]Card{"a": mustCards(t, "KS KH KD KC TS TH TD TC KS KH"), "c": nil}
	res = SettleRound(r, "c", ScenarioAllIn)
	require.True(t, res.Finished)
	assert.Equal(t, StatusFinished, r.Session.Status)
	assert.Equal(t, 100, res.Scores["a"])
}
