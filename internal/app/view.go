package app

import (
	"context"
	"time"

	"pontinhos/internal/domain"
)

// SeatView is what every player may see about a seat.
type SeatView struct {
	ID         string `json:"id"`
	Score      int    `json:"score"`
	HandSize   int    `json:"handSize"`
	Eliminated bool   `json:"eliminated"`
	InRound    bool   `json:"inRound"`
}

// View is a player's picture of a room: public table state plus their own hand.
type View struct {
	RoomID            string           `json:"roomId"`
	Status            domain.Status    `json:"status"`
	Round             int              `json:"round"`
	TurnIndex         int              `json:"turnIndex"`
	ActivePlayer      string           `json:"activePlayer,omitempty"`
	Phase             domain.TurnPhase `json:"phase"`
	FirstPassComplete bool             `json:"firstPassComplete"`
	DiscardTop        *domain.Card     `json:"discardTop,omitempty"`
	StockCount        int              `json:"stockCount"`
	DiscardCount      int              `json:"discardCount"`
	Seats             []SeatView       `json:"seats"`
	Melds             []domain.Meld    `json:"melds"`
	Hand              []domain.Card    `json:"hand,omitempty"`
	PausedBy          string           `json:"pausedBy,omitempty"`
	KnockDeadline     *time.Time       `json:"knockDeadline,omitempty"`
	LastAction        string           `json:"lastAction"`
	Winner            string           `json:"winner,omitempty"`
	Rules             domain.Rules     `json:"rules"`
	Revision          int64            `json:"revision"`
}

// View reads the room as seen by viewerID. An empty viewer gets no hand. A knock window
// found past its deadline is expired before the room is read.
func (s *Service) View(ctx context.Context, roomID, viewerID string) (*View, error) {
	var (
		view *View
		err  error
	)
	for attempt := 0; attempt < maxReadAttempts; attempt++ {
		var stale bool
		view, stale, err = s.readView(ctx, roomID, viewerID, attempt < maxReadAttempts-1)
		if err != nil {
			return nil, err
		}
		if !stale {
			return view, nil
		}
	}
	return view, nil
}

func (s *Service) readView(ctx context.Context, roomID, viewerID string, expire bool) (*View, bool, error) {
	sess, err := s.store.ReadSession(ctx, roomID)
	if err != nil {
		return nil, false, err
	}
	if expire && sess.Pause != nil && sess.Status == domain.StatusPlaying && sess.Pause.Expired(s.clock.Now(), sess.Rules.KnockTimeout) {
		if _, err := s.ExpireKnock(ctx, roomID); err != nil {
			s.logger.Debug("lazy expiry on read of room %s: %v", roomID, err)
		}
		return nil, true, nil
	}

	melds, err := s.store.ReadMelds(ctx, roomID)
	if err != nil {
		return nil, false, err
	}
	deck, err := s.store.ReadDeckState(ctx, roomID)
	if err != nil {
		return nil, false, err
	}

	v := &View{
		RoomID:            sess.RoomID,
		Status:            sess.Status,
		Round:             sess.Round,
		TurnIndex:         sess.TurnIndex,
		ActivePlayer:      sess.ActivePlayer(),
		Phase:             sess.Phase(),
		FirstPassComplete: sess.FirstPassComplete,
		DiscardTop:        sess.DiscardTop,
		StockCount:        len(deck.Stock),
		DiscardCount:      len(deck.Discard),
		Melds:             melds,
		PausedBy:          sess.PausedBy(),
		LastAction:        sess.LastAction,
		Winner:            sess.Winner,
		Rules:             sess.Rules,
		Revision:          sess.Revision,
	}
	if sess.Pause != nil {
		deadline := sess.Pause.Deadline(sess.Rules.KnockTimeout)
		v.KnockDeadline = &deadline
	}
	for _, id := range sess.Seats {
		p := sess.Players[id]
		seat := SeatView{ID: id, Score: p.Score, Eliminated: p.Eliminated, InRound: sess.InRound(id)}
		if seat.InRound {
			hand, err := s.store.ReadHand(ctx, roomID, id)
			if err != nil {
				return nil, false, err
			}
			seat.HandSize = len(hand)
			if id == viewerID {
				v.Hand = hand
			}
		}
		v.Seats = append(v.Seats, seat)
	}

	check, err := s.store.ReadSession(ctx, roomID)
	if err != nil {
		return nil, false, err
	}
	return v, check.Revision != sess.Revision, nil
}
