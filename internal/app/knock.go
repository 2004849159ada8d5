package app

import (
	"context"
	"fmt"
	"time"

	"pontinhos/internal/domain"
)

// PauseAndPickupDiscard opens a knock window for a player who is not on turn: the discard
// top moves into their hand and every other action in the room is blocked until they go out,
// give up, or the window expires.
func (s *Service) PauseAndPickupDiscard(ctx context.Context, roomID, playerID string) ([]Event, error) {
	return s.mutate(ctx, roomID, "knock", func(st *domain.RoomState, now time.Time) ([]Event, error) {
		sess := st.Session
		if err := requirePlaying(sess); err != nil {
			return nil, err
		}
		if !sess.InRound(playerID) {
			return nil, ErrNotInRound
		}
		if sess.IsPaused() {
			return nil, ErrAlreadyPaused
		}
		if sess.ActivePlayer() == playerID {
			return nil, ErrKnockOnOwnTurn
		}
		if !sess.FirstPassComplete {
			return nil, ErrFirstPassPending
		}
		hand := st.Hands[playerID]
		if len(hand) >= sess.Rules.MaxHandSize {
			return nil, ErrHandFull
		}
		picked, ok := st.PopDiscard()
		if !ok {
			return nil, ErrEmptyDiscard
		}

		sizes := make(map[string]int, len(st.Melds))
		for _, m := range st.Melds {
			sizes[m.ID] = len(m.Cards)
		}
		knock := &domain.Knock{
			PlayerID:        playerID,
			StartedAt:       now,
			Picked:          picked,
			HandBefore:      domain.CloneCards(hand),
			MeldSizesBefore: sizes,
		}
		sess.Pause = knock
		st.Hands[playerID] = append(domain.CloneCards(hand), picked)
		sess.LastAction = fmt.Sprintf("%s knocked and picked up %s", playerID, picked)
		s.logger.Info("room %s paused by %s", roomID, playerID)

		return []Event{{
			Kind: EventKnockStarted,
			Payload: KnockStartedPayload{
				PlayerID: playerID,
				Card:     picked,
				Deadline: knock.Deadline(sess.Rules.KnockTimeout),
			},
		}}, nil
	})
}

// KnockGoOut attempts to end the round from inside the caller's knock window. The picked-up
// card must end up in a meld. A rejected attempt leaves the window open for another try.
func (s *Service) KnockGoOut(ctx context.Context, roomID, playerID string, proposal *GoOutProposal) ([]Event, error) {
	return s.mutate(ctx, roomID, "knock go out", func(st *domain.RoomState, _ time.Time) ([]Event, error) {
		knock, err := requireKnocker(st.Session, playerID)
		if err != nil {
			return nil, err
		}
		hand := st.Hands[playerID]
		pickedLaid := domain.CountOf(hand, knock.Picked) <= domain.CountOf(knock.HandBefore, knock.Picked)

		sc, err := solveKnock(hand, knock.Picked, pickedLaid, proposal)
		if err != nil {
			return nil, err
		}
		sc.Kind = domain.ScenarioPickupDiscard
		return s.applyGoOut(st, playerID, sc, false)
	})
}

func solveKnock(hand []domain.Card, picked domain.Card, pickedLaid bool, proposal *GoOutProposal) (domain.GoOutScenario, error) {
	// Everything else is already on the table; the last card is discarded.
	if pickedLaid && len(hand) == 1 && (proposal == nil || len(proposal.Melds) == 0) {
		if proposal != nil && proposal.Discard != nil && *proposal.Discard != hand[0] {
			return domain.GoOutScenario{}, ErrCardNotInHand
		}
		last := hand[0]
		return domain.GoOutScenario{Discard: &last}, nil
	}

	if proposal != nil {
		sc, err := domain.ValidateGoOut(hand, proposal.Melds, proposal.Discard)
		if err != nil {
			return domain.GoOutScenario{}, err
		}
		if !pickedLaid && domain.CountOf(sc.MeldCards(), picked) == 0 {
			return domain.GoOutScenario{}, ErrPickedCardUnused
		}
		return sc, nil
	}

	if pickedLaid {
		return domain.CanGoOutWithScenarios(hand, nil, false)
	}
	rest := domain.RemoveCards(hand, []domain.Card{picked})
	return domain.CanGoOutWithScenarios(rest, &picked, true)
}

// GiveUpKnock closes the caller's knock window and rolls it back.
func (s *Service) GiveUpKnock(ctx context.Context, roomID, playerID string) ([]Event, error) {
	return s.mutate(ctx, roomID, "give up knock", func(st *domain.RoomState, _ time.Time) ([]Event, error) {
		if _, err := requireKnocker(st.Session, playerID); err != nil {
			return nil, err
		}
		return rollbackKnock(st, rollbackGaveUp), nil
	})
}

// ExpireKnock rolls back the room's knock window if its deadline has passed. Calling it when
// no window is open, or before the deadline, changes nothing.
func (s *Service) ExpireKnock(ctx context.Context, roomID string) ([]Event, error) {
	return s.mutate(ctx, roomID, "expire knock", func(*domain.RoomState, time.Time) ([]Event, error) {
		return nil, errNoChange
	})
}

func requireKnocker(sess *domain.GameSession, playerID string) (*domain.Knock, error) {
	if err := requirePlaying(sess); err != nil {
		return nil, err
	}
	if sess.Pause == nil {
		return nil, ErrNotPaused
	}
	if sess.Pause.PlayerID != playerID {
		return nil, ErrNotKnocker
	}
	return sess.Pause, nil
}

func (s *Service) expireIfDue(st *domain.RoomState, now time.Time) []Event {
	sess := st.Session
	if sess.Status != domain.StatusPlaying || sess.Pause == nil {
		return nil
	}
	if !sess.Pause.Expired(now, sess.Rules.KnockTimeout) {
		return nil
	}
	s.logger.Info("room %s knock by %s expired", sess.RoomID, sess.Pause.PlayerID)
	return rollbackKnock(st, rollbackExpired)
}

// rollbackKnock restores the room to the moment before the pickup: the knocker's hand, the
// melds on the table and the picked card on top of the discard pile. Turn state is untouched.
// An unpaused room is left as is.
func rollbackKnock(st *domain.RoomState, reason string) []Event {
	knock := st.Session.Pause
	if knock == nil {
		return nil
	}

	st.Hands[knock.PlayerID] = domain.CloneCards(knock.HandBefore)
	kept := st.Melds[:0]
	for _, m := range st.Melds {
		n, ok := knock.MeldSizesBefore[m.ID]
		if !ok {
			continue
		}
		if len(m.Cards) > n {
			m.Cards = m.Cards[:n]
		}
		kept = append(kept, m)
	}
	if len(kept) == 0 {
		kept = nil
	}
	st.Melds = kept
	st.PushDiscard(knock.Picked)
	st.Session.Pause = nil
	st.Session.LastAction = fmt.Sprintf("%s returned %s to the discard pile", knock.PlayerID, knock.Picked)

	kind := EventKnockRolled
	if reason == rollbackExpired {
		kind = EventKnockExpired
	}
	return []Event{{
		Kind:    kind,
		Payload: KnockRolledBackPayload{PlayerID: knock.PlayerID, Card: knock.Picked, Reason: reason},
	}}
}
