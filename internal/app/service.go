package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"pontinhos/internal/domain"
	"pontinhos/internal/ports"
)

// Service runs the turn state machine and the out-of-turn knock protocol. Every operation is
// one Transact call on the store; the service holds no room state of its own.
type Service struct {
	store  ports.SessionStore
	clock  ports.Clock
	ledger ports.RoundLedger
	logger ports.Logger
	rules  domain.Rules

	rngMu sync.Mutex
	rng   *rand.Rand
	newID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock used for knock windows.
func WithClock(c ports.Clock) Option { return func(s *Service) { s.clock = c } }

// WithLedger records settled rounds.
func WithLedger(l ports.RoundLedger) Option { return func(s *Service) { s.ledger = l } }

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option { return func(s *Service) { s.logger = l } }

// WithRand sets the shuffle source.
func WithRand(rng *rand.Rand) Option { return func(s *Service) { s.rng = rng } }

// WithRules sets the rules given to new rooms.
func WithRules(r domain.Rules) Option { return func(s *Service) { s.rules = r.WithDefaults() } }

// WithIDGenerator overrides meld id generation.
func WithIDGenerator(fn func() string) Option { return func(s *Service) { s.newID = fn } }

// NewService constructs a Service over store. Without options it uses the system clock,
// default rules, a time-seeded rng and discards logs.
func NewService(store ports.SessionStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		clock:  ports.SystemClock{},
		logger: ports.NopLogger{},
		rules:  domain.DefaultRules(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() ports.SessionStore { return s.store }

// Rules returns the rules given to new rooms.
func (s *Service) Rules() domain.Rules { return s.rules }

// GoOutProposal is a player-chosen way to go out. A nil proposal lets the solver decide.
type GoOutProposal struct {
	Melds   [][]domain.Card `json:"melds"`
	Discard *domain.Card    `json:"discard,omitempty"`
}

// errNoChange aborts a transaction that has nothing to write.
var errNoChange = errors.New("no change")

type transition func(st *domain.RoomState, now time.Time) ([]Event, error)

// mutate runs fn inside one store transaction. A due knock expiry is applied first and is
// committed even when fn is rejected as an illegal move; in that case the expiry events are
// returned together with the error.
func (s *Service) mutate(ctx context.Context, roomID, op string, fn transition) ([]Event, error) {
	now := s.clock.Now()
	var (
		events []Event
		opErr  error
	)
	err := s.store.Transact(ctx, roomID, func(st *domain.RoomState) error {
		events, opErr = nil, nil
		expired := s.expireIfDue(st, now)

		working := st.Clone()
		evs, err := fn(working, now)
		err = fromRule(err)
		switch {
		case err == nil:
			events = append(expired, evs...)
		case IsIllegalMove(err) || errors.Is(err, errNoChange):
			if IsIllegalMove(err) {
				opErr = err
			}
			if len(expired) == 0 {
				return errNoChange
			}
			events = expired
			working = st
		default:
			return err
		}

		if err := working.CheckConservation(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvariantViolation, op, err)
		}
		if working != st {
			*st = *working
		}
		return nil
	})
	switch {
	case errors.Is(err, errNoChange):
		return nil, opErr
	case errors.Is(err, ports.ErrConflict):
		// the store reports a snapshot that moved under fn as a conflict, even when fn saw
		// broken conservation in it
		s.logger.Debug("%s on room %s lost a race: %v", op, roomID, err)
		return nil, fmt.Errorf("%w: %s on room %s: %w", ErrTransientConflict, op, roomID, err)
	case errors.Is(err, ErrInvariantViolation):
		s.logger.Error("%s on room %s: %v", op, roomID, err)
		return nil, err
	case err != nil:
		return nil, err
	}
	s.afterCommit(ctx, events, now)
	return events, opErr
}

func (s *Service) afterCommit(ctx context.Context, events []Event, now time.Time) {
	for _, ev := range events {
		ended, ok := ev.Payload.(RoundEndedPayload)
		if !ok {
			continue
		}
		s.logger.Info("room %s round %d won by %s", ended.Result.RoomID, ended.Result.Round, ended.Result.Winner)
		if s.ledger == nil {
			continue
		}
		rec := ports.RoundRecord{RoundResult: ended.Result, EndedAt: now}
		if err := s.ledger.RecordRound(ctx, rec); err != nil {
			s.logger.Warn("failed to record round %d of room %s: %v", ended.Result.Round, ended.Result.RoomID, err)
		}
	}
}

func (s *Service) deal(st *domain.RoomState) error {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return st.DealRound(st.Session.NextStarter(), s.rng)
}

// StartRound creates a room for playerIDs (in seating order) and deals the first round.
func (s *Service) StartRound(ctx context.Context, roomID string, playerIDs []string) ([]Event, error) {
	seen := make(map[string]bool, len(playerIDs))
	for _, id := range playerIDs {
		if id == "" || seen[id] {
			return nil, illegal(fmt.Sprintf("invalid or duplicate player id %q", id))
		}
		seen[id] = true
	}

	st := domain.NewRoomState(roomID, playerIDs, s.rules)
	if err := s.deal(st); err != nil {
		return nil, fromRule(err)
	}
	if err := st.CheckConservation(); err != nil {
		s.logger.Error("deal for room %s broke card conservation: %v", roomID, err)
		return nil, fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}
	if err := s.store.Create(ctx, st); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			return nil, ErrRoomExists
		}
		return nil, fmt.Errorf("failed to create room %s: %w", roomID, err)
	}
	s.logger.Info("room %s started with %d players", roomID, len(playerIDs))
	return dealtEvents(st), nil
}

// StartNextRound deals a new round after a round ended. Scores carry over and eliminated
// players sit out.
func (s *Service) StartNextRound(ctx context.Context, roomID string) ([]Event, error) {
	return s.mutate(ctx, roomID, "next round", func(st *domain.RoomState, _ time.Time) ([]Event, error) {
		switch st.Session.Status {
		case domain.StatusRoundEnd:
		case domain.StatusFinished:
			return nil, ErrGameFinished
		case domain.StatusPlaying:
			return nil, ErrRoundNotOver
		default:
			return nil, ErrNotPlaying
		}
		if err := s.deal(st); err != nil {
			return nil, err
		}
		return dealtEvents(st), nil
	})
}

func dealtEvents(st *domain.RoomState) []Event {
	sess := st.Session
	events := []Event{{
		Kind: EventRoundStarted,
		Payload: RoundStartedPayload{
			Round:       sess.Round,
			PlayerOrder: append([]string(nil), sess.PlayerOrder...),
			DiscardTop:  sess.DiscardTop,
		},
	}}
	for _, id := range sess.PlayerOrder {
		events = append(events, Event{
			Kind:       EventHandDealt,
			Payload:    HandDealtPayload{PlayerID: id, Hand: domain.CloneCards(st.Hands[id])},
			Recipients: []string{id},
		})
	}
	return append(events, turnEvent(sess))
}

func turnEvent(sess *domain.GameSession) Event {
	return Event{
		Kind: EventTurnChanged,
		Payload: TurnChangedPayload{
			PlayerID:          sess.ActivePlayer(),
			TurnIndex:         sess.TurnIndex,
			FirstPassComplete: sess.FirstPassComplete,
		},
	}
}

func requirePlaying(sess *domain.GameSession) error {
	switch sess.Status {
	case domain.StatusPlaying:
		return nil
	case domain.StatusFinished:
		return ErrGameFinished
	default:
		return ErrNotPlaying
	}
}

// requireTurn guards draw and discard: the active player outside any knock window.
func requireTurn(sess *domain.GameSession, playerID string) error {
	if err := requirePlaying(sess); err != nil {
		return err
	}
	if !sess.InRound(playerID) {
		return ErrNotInRound
	}
	if sess.IsPaused() {
		if sess.PausedBy() == playerID {
			return ErrNotAllowedInWindow
		}
		return ErrRoomPaused
	}
	if sess.ActivePlayer() != playerID {
		return ErrNotYourTurn
	}
	return nil
}

// requireMeldActor guards lay-down and layoff: the knocker during their window, otherwise
// the active player after drawing.
func requireMeldActor(sess *domain.GameSession, playerID string) (inWindow bool, err error) {
	if err := requirePlaying(sess); err != nil {
		return false, err
	}
	if !sess.InRound(playerID) {
		return false, ErrNotInRound
	}
	if sess.IsPaused() {
		if sess.PausedBy() != playerID {
			return false, ErrRoomPaused
		}
		return true, nil
	}
	if sess.ActivePlayer() != playerID {
		return false, ErrNotYourTurn
	}
	if !sess.HasDrawn {
		return false, ErrMustDrawFirst
	}
	return false, nil
}

// DrawFromStock moves the top of the stock into the active player's hand.
func (s *Service) DrawFromStock(ctx context.Context, roomID, playerID string) ([]Event, error) {
	return s.mutate(ctx, roomID, "draw stock", func(st *domain.RoomState, _ time.Time) ([]Event, error) {
		if err := s.checkDraw(st, playerID); err != nil {
			return nil, err
		}
		card, ok := st.PopStock()
		if !ok {
			return nil, ErrEmptyStock
		}
		st.Hands[playerID] = append(st.Hands[playerID], card)
		st.Session.SetHasDrawn(true)
		st.Session.LastAction = playerID + " drew from the stock"
		return []Event{{
			Kind:    EventCardDrawn,
			Payload: CardDrawnPayload{PlayerID: playerID, Source: DrawSourceStock},
		}}, nil
	})
}

// DrawFromDiscard moves the discard top into the active player's hand.
func (s *Service) DrawFromDiscard(ctx context.Context, roomID, playerID string) ([]Event, error) {
	return s.mutate(ctx, roomID, "draw discard", func(st *domain.RoomState, _ time.Time) ([]Event, error) {
		if err := s.checkDraw(st, playerID); err != nil {
			return nil, err
		}
		card, ok := st.PopDiscard()
		if !ok {
			return nil, ErrEmptyDiscard
		}
		st.Hands[playerID] = append(st.Hands[playerID], card)
		st.Session.SetHasDrawn(true)
		st.Session.LastAction = fmt.Sprintf("%s took %s from the discard pile", playerID, card)
		return []Event{{
			Kind:    EventCardDrawn,
			Payload: CardDrawnPayload{PlayerID: playerID, Source: DrawSourceDiscard, Card: &card},
		}}, nil
	})
}

func (s *Service) checkDraw(st *domain.RoomState, playerID string) error {
	sess := st.Session
	if err := requireTurn(sess, playerID); err != nil {
		return err
	}
	if sess.HasDrawn {
		return ErrAlreadyDrawn
	}
	if len(st.Hands[playerID]) >= sess.Rules.MaxHandSize {
		return ErrHandFull
	}
	return nil
}

// Discard ends the active player's turn by putting card on the discard pile. Discarding the
// last card ends the round.
func (s *Service) Discard(ctx context.Context, roomID, playerID string, card domain.Card) ([]Event, error) {
	return s.mutate(ctx, roomID, "discard", func(st *domain.RoomState, _ time.Time) ([]Event, error) {
		sess := st.Session
		if err := requireTurn(sess, playerID); err != nil {
			return nil, err
		}
		if !sess.HasDrawn {
			return nil, ErrMustDrawFirst
		}
		hand := st.Hands[playerID]
		if domain.CountOf(hand, card) == 0 {
			return nil, ErrCardNotInHand
		}
		st.Hands[playerID] = domain.RemoveCards(hand, []domain.Card{card})
		st.PushDiscard(card)
		sess.LastAction = fmt.Sprintf("%s discarded %s", playerID, card)

		events := []Event{{Kind: EventCardDiscarded, Payload: CardDiscardedPayload{PlayerID: playerID, Card: card}}}
		if len(st.Hands[playerID]) == 0 {
			return append(events, s.endRound(st, playerID, domain.ScenarioNormal)...), nil
		}
		sess.AdvanceTurn()
		return append(events, turnEvent(sess)), nil
	})
}

// LayDownMelds lays new melds from the player's hand. A single selection that is not itself
// a meld is accepted when it expands from a base meld or splits into several melds.
func (s *Service) LayDownMelds(ctx context.Context, roomID, playerID string, proposed [][]domain.Card) ([]Event, error) {
	return s.mutate(ctx, roomID, "lay melds", func(st *domain.RoomState, _ time.Time) ([]Event, error) {
		sess := st.Session
		inWindow, err := requireMeldActor(sess, playerID)
		if err != nil {
			return nil, err
		}
		if !sess.FirstPassComplete {
			return nil, ErrFirstPassPending
		}
		hand := st.Hands[playerID]
		groups, err := resolveMelds(hand, proposed)
		if err != nil {
			return nil, err
		}

		var used []domain.Card
		for _, g := range groups {
			used = append(used, g.Cards...)
		}
		st.Hands[playerID] = domain.RemoveCards(hand, used)
		laid := s.layMelds(st, playerID, groups)
		sess.LastAction = fmt.Sprintf("%s laid %d meld(s)", playerID, len(laid))

		events := []Event{{Kind: EventMeldsLaid, Payload: MeldsLaidPayload{PlayerID: playerID, Melds: laid}}}
		if len(st.Hands[playerID]) == 0 {
			scenario := domain.ScenarioAllIn
			if inWindow {
				scenario = domain.ScenarioPickupDiscard
			}
			events = append(events, s.endRound(st, playerID, scenario)...)
		}
		return events, nil
	})
}

func resolveMelds(hand []domain.Card, proposed [][]domain.Card) ([]domain.MeldCandidate, error) {
	if len(proposed) == 0 {
		return nil, illegal("select cards to meld")
	}
	var all []domain.Card
	for _, p := range proposed {
		all = append(all, p...)
	}
	if !domain.ContainsAll(hand, all) {
		return nil, ErrCardNotInHand
	}

	if len(proposed) == 1 {
		cards := proposed[0]
		if kind := domain.ClassifyMeld(cards); kind != domain.MeldInvalid {
			return []domain.MeldCandidate{{Kind: kind, Cards: domain.CloneCards(cards)}}, nil
		}
		if m, ok := domain.FindExpandableMeld(cards); ok {
			return []domain.MeldCandidate{m}, nil
		}
		if melds, ok := domain.CoverExactly(cards); ok {
			return melds, nil
		}
		return nil, illegal(fmt.Sprintf("%s do not form melds", domain.FormatCards(cards)))
	}

	if err := domain.ValidateMultipleMelds(hand, proposed); err != nil {
		return nil, fromRule(err)
	}
	groups := make([]domain.MeldCandidate, len(proposed))
	for i, p := range proposed {
		groups[i] = domain.MeldCandidate{Kind: domain.ClassifyMeld(p), Cards: domain.CloneCards(p)}
	}
	return groups, nil
}

func (s *Service) layMelds(st *domain.RoomState, owner string, groups []domain.MeldCandidate) []domain.Meld {
	laid := make([]domain.Meld, 0, len(groups))
	for _, g := range groups {
		m := domain.Meld{ID: s.newID(), Kind: g.Kind, Cards: domain.CloneCards(g.Cards), Owner: owner}
		st.Melds = append(st.Melds, m)
		laid = append(laid, m)
	}
	return laid
}

// LayoffCard adds card from the player's hand to an existing meld.
func (s *Service) LayoffCard(ctx context.Context, roomID, playerID, meldID string, card domain.Card) ([]Event, error) {
	return s.mutate(ctx, roomID, "layoff", func(st *domain.RoomState, _ time.Time) ([]Event, error) {
		sess := st.Session
		if !sess.Rules.AllowLayoff {
			return nil, ErrLayoffDisabled
		}
		inWindow, err := requireMeldActor(sess, playerID)
		if err != nil {
			return nil, err
		}
		meld := st.MeldByID(meldID)
		if meld == nil {
			return nil, ErrUnknownMeld
		}
		hand := st.Hands[playerID]
		if domain.CountOf(hand, card) == 0 {
			return nil, ErrCardNotInHand
		}
		if !domain.CanAddCardToMeld(card, *meld) {
			return nil, ErrInvalidLayoff
		}
		meld.Cards = append(meld.Cards, card)
		st.Hands[playerID] = domain.RemoveCards(hand, []domain.Card{card})
		sess.LastAction = fmt.Sprintf("%s laid %s off onto a meld", playerID, card)

		events := []Event{{Kind: EventCardLaidOff, Payload: CardLaidOffPayload{PlayerID: playerID, MeldID: meldID, Card: card}}}
		if len(st.Hands[playerID]) == 0 {
			scenario := domain.ScenarioAllIn
			if inWindow {
				scenario = domain.ScenarioPickupDiscard
			}
			events = append(events, s.endRound(st, playerID, scenario)...)
		}
		return events, nil
	})
}

// GoOut empties the active player's hand in one step and ends the round. With a nil
// proposal the solver picks the scenario. A proposal covers the hand, or the hand plus the
// discard top when the top completes a set of two or three hand cards.
func (s *Service) GoOut(ctx context.Context, roomID, playerID string, proposal *GoOutProposal) ([]Event, error) {
	return s.mutate(ctx, roomID, "go out", func(st *domain.RoomState, _ time.Time) ([]Event, error) {
		sess := st.Session
		if err := requireTurn(sess, playerID); err != nil {
			if errors.Is(err, ErrNotAllowedInWindow) {
				return nil, illegal("use knock go out during your knock window")
			}
			return nil, err
		}
		if !sess.HasDrawn {
			return nil, ErrMustDrawFirst
		}
		if !sess.FirstPassComplete {
			return nil, ErrFirstPassPending
		}

		hand := st.Hands[playerID]
		var (
			sc  domain.GoOutScenario
			err error
		)
		if proposal == nil {
			sc, err = domain.CanGoOutWithScenarios(hand, sess.DiscardTop, false)
		} else {
			sc, err = domain.ValidateGoOut(hand, proposal.Melds, proposal.Discard)
			if err != nil && sess.DiscardTop != nil {
				if withTop, topErr := domain.ValidateGoOutWithTop(hand, *sess.DiscardTop, proposal.Melds, proposal.Discard); topErr == nil {
					sc, err = withTop, nil
				}
			}
		}
		if err != nil {
			return nil, err
		}
		return s.applyGoOut(st, playerID, sc, sc.UsesDiscardTop)
	})
}

// applyGoOut lays the scenario's melds, discards if required and ends the round. When
// takeTop is set the discard top is moved from the pile first.
func (s *Service) applyGoOut(st *domain.RoomState, playerID string, sc domain.GoOutScenario, takeTop bool) ([]Event, error) {
	hand := domain.CloneCards(st.Hands[playerID])
	if takeTop {
		top, ok := st.PopDiscard()
		if !ok {
			return nil, ErrEmptyDiscard
		}
		hand = append(hand, top)
	}
	meldCards := sc.MeldCards()
	if !domain.ContainsAll(hand, meldCards) {
		return nil, fmt.Errorf("%w: go-out melds %s not held by %s", ErrInvariantViolation, domain.FormatCards(meldCards), playerID)
	}
	hand = domain.RemoveCards(hand, meldCards)
	var events []Event
	if len(sc.Melds) > 0 {
		laid := s.layMelds(st, playerID, sc.Melds)
		events = append(events, Event{Kind: EventMeldsLaid, Payload: MeldsLaidPayload{PlayerID: playerID, Melds: laid}})
	}

	if sc.Discard != nil {
		hand = domain.RemoveCards(hand, []domain.Card{*sc.Discard})
		st.PushDiscard(*sc.Discard)
		events = append(events, Event{Kind: EventCardDiscarded, Payload: CardDiscardedPayload{PlayerID: playerID, Card: *sc.Discard}})
	}
	if len(hand) != 0 {
		return nil, fmt.Errorf("%w: %s still holds %s after going out", ErrInvariantViolation, playerID, domain.FormatCards(hand))
	}
	st.Hands[playerID] = hand
	st.Session.LastAction = fmt.Sprintf("%s went out (%s)", playerID, sc.Kind)
	return append(events, s.endRound(st, playerID, sc.Kind)...), nil
}

func (s *Service) endRound(st *domain.RoomState, wentOut string, scenario domain.ScenarioKind) []Event {
	res := domain.SettleRound(st, wentOut, scenario)
	events := []Event{
		{Kind: EventWentOut, Payload: WentOutPayload{PlayerID: wentOut, Scenario: scenario}},
		{Kind: EventRoundEnded, Payload: RoundEndedPayload{Result: res}},
	}
	if res.Finished {
		events = append(events, Event{
			Kind:    EventGameFinished,
			Payload: GameFinishedPayload{Scores: res.Scores, Winner: gameWinner(st.Session)},
		})
	}
	return events
}

// gameWinner is the last player standing, or the lowest scorer when everyone was eliminated.
func gameWinner(sess *domain.GameSession) string {
	if standing := sess.Standing(); len(standing) == 1 {
		return standing[0]
	}
	best := ""
	for _, id := range sess.Seats {
		if best == "" || sess.Players[id].Score < sess.Players[best].Score {
			best = id
		}
	}
	return best
}
