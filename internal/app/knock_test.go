package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pontinhos/internal/domain"
)

var knockHands = map[string]string{
	"a": "2C 3C 5D KH 8H 8S 4D 6C JC",
	"b": "5S 6S 9H 9D 9C KD",
	"c": "AS AD 2S 3S 4C 5C 7D 8D 9S",
}

func TestKnockGoOutEndsRound(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()
	f.rig(t, knockHands, "TD 7S", afterFirstPass(0, false))

	events, err := f.svc.PauseAndPickupDiscard(ctx, "r1", "b")
	require.NoError(t, err)
	started := events[0].Payload.(KnockStartedPayload)
	assert.Equal(t, card(t, "7S"), started.Card)
	assert.Equal(t, f.clock.Now().Add(domain.DefaultKnockTimeout), started.Deadline)

	events, err = f.svc.KnockGoOut(ctx, "r1", "b", nil)
	require.NoError(t, err)
	require.True(t, hasEvent(events, EventRoundEnded))

	st := f.room(t)
	assert.Nil(t, st.Session.Pause)
	assert.Equal(t, "b", st.Session.Winner)
	assert.Equal(t, card(t, "KD"), *st.Session.DiscardTop)
	assert.Equal(t, 56, st.Session.Players["a"].Score)
	require.NoError(t, st.CheckConservation())
	require.Len(t, f.ledger.records, 1)
	assert.Equal(t, domain.ScenarioPickupDiscard.String(), f.ledger.records[0].Scenario)
}

func TestKnockWindowIsExclusive(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()
	f.rig(t, knockHands, "TD 7S", afterFirstPass(0, false))

	_, err := f.svc.PauseAndPickupDiscard(ctx, "r1", "a")
	assert.ErrorIs(t, err, ErrKnockOnOwnTurn)

	_, err = f.svc.PauseAndPickupDiscard(ctx, "r1", "b")
	require.NoError(t, err)

	_, err = f.svc.PauseAndPickupDiscard(ctx, "r1", "c")
	assert.ErrorIs(t, err, ErrAlreadyPaused)
	_, err = f.svc.DrawFromStock(ctx, "r1", "a")
	assert.ErrorIs(t, err, ErrRoomPaused)
	_, err = f.svc.GoOut(ctx, "r1", "a", nil)
	assert.ErrorIs(t, err, ErrRoomPaused)
	_, err = f.svc.LayDownMelds(ctx, "r1", "c", [][]domain.Card{cards(t, "AS 2S 3S")})
	assert.ErrorIs(t, err, ErrRoomPaused)
	_, err = f.svc.DrawFromStock(ctx, "r1", "b")
	assert.ErrorIs(t, err, ErrNotAllowedInWindow)
	_, err = f.svc.Discard(ctx, "r1", "b", card(t, "KD"))
	assert.ErrorIs(t, err, ErrNotAllowedInWindow)
	_, err = f.svc.GiveUpKnock(ctx, "r1", "c")
	assert.ErrorIs(t, err, ErrNotKnocker)
	_, err = f.svc.KnockGoOut(ctx, "r1", "c", nil)
	assert.ErrorIs(t, err, ErrNotKnocker)
}

func TestKnockBeforeFirstPassRejected(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	_, err := f.svc.PauseAndPickupDiscard(context.Background(), "r1", "b")
	assert.ErrorIs(t, err, ErrFirstPassPending)
}

func TestFailedKnockKeepsWindowThenGiveUpRollsBack(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()
	hands := map[string]string{"a": knockHands["a"], "b": "5S 6S 9H 9D KC KD", "c": knockHands["c"]}
	f.rig(t, hands, "TD 2H", afterFirstPass(0, true))
	before := f.room(t)

	_, err := f.svc.PauseAndPickupDiscard(ctx, "r1", "b")
	require.NoError(t, err)

	_, err = f.svc.KnockGoOut(ctx, "r1", "b", nil)
	require.True(t, IsIllegalMove(err))
	assert.Equal(t, "b", f.room(t).Session.PausedBy(), "a failed attempt does not close the window")

	events, err := f.svc.GiveUpKnock(ctx, "r1", "b")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventKnockRolled, events[0].Kind)

	after := f.room(t)
	assert.Nil(t, after.Session.Pause)
	assert.Equal(t, before.Hands["b"], after.Hands["b"])
	assert.Equal(t, before.Deck, after.Deck)
	assert.Equal(t, before.Session.TurnIndex, after.Session.TurnIndex)
	assert.True(t, after.Session.HasDrawn, "the active player's turn state is untouched")
	assert.Contains(t, after.Session.LastAction, "b returned 2H")

	_, err = f.svc.GiveUpKnock(ctx, "r1", "b")
	assert.ErrorIs(t, err, ErrNotPaused)
	_, err = f.svc.Discard(ctx, "r1", "a", card(t, "KH"))
	require.NoError(t, err)
}

func TestKnockExpiryIsIdempotent(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()
	f.rig(t, knockHands, "TD 7S", afterFirstPass(0, true))
	before := f.room(t)

	_, err := f.svc.PauseAndPickupDiscard(ctx, "r1", "b")
	require.NoError(t, err)
	_, err = f.svc.LayDownMelds(ctx, "r1", "b", [][]domain.Card{cards(t, "9H 9D 9C")})
	require.NoError(t, err)

	f.clock.Advance(domain.DefaultKnockTimeout - time.Second)
	events, err := f.svc.ExpireKnock(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, events, "window still open")

	f.clock.Advance(time.Second)
	events, err = f.svc.ExpireKnock(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventKnockExpired, events[0].Kind)
	rev := f.room(t).Session.Revision

	events, err = f.svc.ExpireKnock(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, events)

	after := f.room(t)
	assert.Equal(t, rev, after.Session.Revision, "second expiry writes nothing")
	assert.Nil(t, after.Session.Pause)
	assert.Empty(t, after.Melds)
	assert.Equal(t, before.Hands["b"], after.Hands["b"])
	assert.Equal(t, before.Deck.Discard, after.Deck.Discard)
	require.NoError(t, after.CheckConservation())
}

func TestLazyExpiryRevertsWindowMeldsAndLayoffs(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()
	hands := map[string]string{
		"a": "4C 5C 6C 2D 3H 8H 8S JC QC",
		"b": "7C 9H 9D 9C KD 2S",
		"c": knockHands["c"],
	}
	f.rig(t, hands, "TD QS", afterFirstPass(0, true))

	_, err := f.svc.LayDownMelds(ctx, "r1", "a", [][]domain.Card{cards(t, "4C 5C 6C")})
	require.NoError(t, err)
	_, err = f.svc.PauseAndPickupDiscard(ctx, "r1", "b")
	require.NoError(t, err)
	_, err = f.svc.LayoffCard(ctx, "r1", "b", "m1", card(t, "7C"))
	require.NoError(t, err)
	_, err = f.svc.LayDownMelds(ctx, "r1", "b", [][]domain.Card{cards(t, "9H 9D 9C")})
	require.NoError(t, err)

	f.clock.Advance(domain.DefaultKnockTimeout)
	events, err := f.svc.Discard(ctx, "r1", "a", card(t, "2D"))
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, EventKnockExpired, events[0].Kind, "expiry is applied before the action")

	st := f.room(t)
	require.Len(t, st.Melds, 1)
	assert.Equal(t, cards(t, "4C 5C 6C"), st.Melds[0].Cards)
	assert.Equal(t, cards(t, "7C 9H 9D 9C KD 2S"), st.Hands["b"])
	assert.Equal(t, cards(t, "TD QS 2D"), st.Deck.Discard)
	assert.Equal(t, 1, st.Session.TurnIndex)
	require.NoError(t, st.CheckConservation())
}

func TestLazyExpiryCommitsEvenWhenActionIsRejected(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()
	f.rig(t, knockHands, "TD 7S", afterFirstPass(0, false))

	_, err := f.svc.PauseAndPickupDiscard(ctx, "r1", "b")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	events, err := f.svc.DrawFromStock(ctx, "r1", "c")
	assert.ErrorIs(t, err, ErrNotYourTurn)
	require.Len(t, events, 1)
	assert.Equal(t, EventKnockExpired, events[0].Kind)
	assert.Nil(t, f.room(t).Session.Pause)

	_, err = f.svc.KnockGoOut(ctx, "r1", "b", nil)
	assert.ErrorIs(t, err, ErrNotPaused)
}

func TestViewExpiresStaleWindow(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()
	f.rig(t, knockHands, "TD 7S", afterFirstPass(0, false))
	_, err := f.svc.PauseAndPickupDiscard(ctx, "r1", "b")
	require.NoError(t, err)

	v, err := f.svc.View(ctx, "r1", "b")
	require.NoError(t, err)
	assert.Equal(t, "b", v.PausedBy)
	require.NotNil(t, v.KnockDeadline)

	f.clock.Advance(domain.DefaultKnockTimeout)
	v, err = f.svc.View(ctx, "r1", "b")
	require.NoError(t, err)
	assert.Empty(t, v.PausedBy)
	assert.Len(t, v.Hand, 6)
}

func TestKnockGoOutWithProposalMustUsePickedCard(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()
	hands := map[string]string{"a": knockHands["a"], "b": "5S 6S 7S 9H 9D 9C", "c": knockHands["c"]}
	f.rig(t, hands, "TD KD", afterFirstPass(0, false))

	_, err := f.svc.PauseAndPickupDiscard(ctx, "r1", "b")
	require.NoError(t, err)

	kd := card(t, "KD")
	_, err = f.svc.KnockGoOut(ctx, "r1", "b", &GoOutProposal{
		Melds:   [][]domain.Card{cards(t, "5S 6S 7S"), cards(t, "9H 9D 9C")},
		Discard: &kd,
	})
	assert.ErrorIs(t, err, ErrPickedCardUnused)
	assert.Equal(t, "b", f.room(t).Session.PausedBy())
}

func TestKnockGoOutAfterLayingPickedCardInWindow(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()
	hands := map[string]string{"a": knockHands["a"], "b": "5S 6S 9H 9D 9C KD", "c": knockHands["c"]}
	f.rig(t, hands, "TD 7S", afterFirstPass(0, false))

	_, err := f.svc.PauseAndPickupDiscard(ctx, "r1", "b")
	require.NoError(t, err)
	_, err = f.svc.LayDownMelds(ctx, "r1", "b", [][]domain.Card{cards(t, "5S 6S 7S"), cards(t, "9H 9D 9C")})
	require.NoError(t, err)

	events, err := f.svc.KnockGoOut(ctx, "r1", "b", nil)
	require.NoError(t, err)
	assert.True(t, hasEvent(events, EventRoundEnded))
	st := f.room(t)
	assert.Equal(t, "b", st.Session.Winner)
	assert.Equal(t, card(t, "KD"), *st.Session.DiscardTop)
}

func TestReaperSweep(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	ctx := context.Background()
	f.rig(t, knockHands, "TD 7S", afterFirstPass(0, false))
	_, err := f.svc.PauseAndPickupDiscard(ctx, "r1", "b")
	require.NoError(t, err)

	reaper := NewReaper(f.svc, f.store, domain.DefaultKnockTimeout, 0)
	n, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(domain.DefaultKnockTimeout)
	n, err = reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
