package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"pontinhos/internal/app"
	"pontinhos/internal/bot"
	"pontinhos/internal/config"
	"pontinhos/internal/domain"
)

const maxSeats = domain.DefaultMaxPlayers

var (
	errBadPayload    = errors.New("bad payload")
	errUnknownOpCode = errors.New("unknown opcode")
	errNoGame        = errors.New("no game in progress")
)

// MatchState holds the runtime state of one Nakama match. The game itself lives in the
// session store under RoomID; the match only tracks seating, presences and bots.
type MatchState struct {
	MatchID string `json:"match_id"`
	// Game counts the games played in this match; each one is a separate room.
	Game          int                         `json:"game"`
	RoomID        string                      `json:"room_id"`
	Status        domain.Status               `json:"status"`
	Seats         [maxSeats]string            `json:"seats"`      // user IDs, empty string means the seat is free
	OwnerSeat     int                         `json:"owner_seat"` // seat index of the connected human who may start games
	Tick          int64                       `json:"tick"`
	KnockDeadline time.Time                   `json:"knock_deadline"`
	Presences     map[string]runtime.Presence `json:"-"`
	App           *app.Service                `json:"-"`
	Roster        *bot.Roster                 `json:"-"`

	BotsEnabled          bool  `json:"bots_enabled"`
	BotAutoFillTicks     int64 `json:"bot_auto_fill_ticks"`
	BotActionTicks       int64 `json:"bot_action_ticks"`
	BotWaitUntil         int64 `json:"bot_wait_until"`
	LastSinglePlayerTick int64 `json:"last_single_player_tick"`
	// Bots are roster bots seated in the lobby.
	Bots map[string]*bot.Agent `json:"-"`
	// Takeovers play for humans who left during a game until they rejoin.
	Takeovers map[string]*bot.Agent `json:"-"`

	now func() time.Time
}

func newMatchState(matchID string, svc *app.Service, roster *bot.Roster) *MatchState {
	if roster == nil {
		roster = bot.NewRoster(nil)
	}
	return &MatchState{
		MatchID:          matchID,
		Status:           domain.StatusLobby,
		OwnerSeat:        -1,
		Presences:        make(map[string]runtime.Presence),
		App:              svc,
		Roster:           roster,
		BotsEnabled:      true,
		BotAutoFillTicks: durationTicks(config.DefaultBotAutoFillDelay),
		BotActionTicks:   durationTicks(config.DefaultBotActionDelay),
		Bots:             make(map[string]*bot.Agent),
		Takeovers:        make(map[string]*bot.Agent),
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func durationTicks(d time.Duration) int64 {
	n := int64(d * tickRate / time.Second)
	if n < 1 {
		return 1
	}
	return n
}

func (ms *MatchState) GetOpenSeatsCount() int {
	count := 0
	for _, seat := range ms.Seats {
		if seat == "" {
			count++
		}
	}
	return count
}

func (ms *MatchState) GetOccupiedSeatCount() int {
	return len(ms.SeatedPlayers())
}

// SeatedPlayers returns the occupied seats in seat order.
func (ms *MatchState) SeatedPlayers() []string {
	var out []string
	for _, seat := range ms.Seats {
		if seat != "" {
			out = append(out, seat)
		}
	}
	return out
}

func (ms *MatchState) GetHumanPlayerCount() int {
	count := 0
	for _, seat := range ms.Seats {
		if seat != "" && !ms.isBot(seat) {
			count++
		}
	}
	return count
}

func (ms *MatchState) isBot(userID string) bool {
	_, ok := ms.Bots[userID]
	return ok
}

func (ms *MatchState) seatOf(userID string) int {
	for i, seat := range ms.Seats {
		if seat != "" && seat == userID {
			return i
		}
	}
	return -1
}

// inProgress reports whether a game is being played, including between rounds.
func (ms *MatchState) inProgress() bool {
	return ms.Status == domain.StatusPlaying || ms.Status == domain.StatusRoundEnd
}

// findFirstConnectedSeat returns the first seat whose occupant is a connected human, or -1.
func (ms *MatchState) findFirstConnectedSeat() int {
	for i, seat := range ms.Seats {
		if _, ok := ms.Presences[seat]; ok && seat != "" && !ms.isBot(seat) {
			return i
		}
	}
	return -1
}

// agents returns every agent that may act, in seat order.
func (ms *MatchState) agents() []*bot.Agent {
	var out []*bot.Agent
	for _, seat := range ms.Seats {
		if a, ok := ms.Bots[seat]; ok {
			out = append(out, a)
		} else if a, ok := ms.Takeovers[seat]; ok {
			out = append(out, a)
		}
	}
	return out
}

func (ms *MatchState) displayName(userID string) string {
	if p, ok := ms.Presences[userID]; ok && p.GetUsername() != "" {
		return p.GetUsername()
	}
	if a, ok := ms.Bots[userID]; ok && a.Name != "" {
		return a.Name
	}
	if id, ok := ms.Roster.Lookup(userID); ok && id.DisplayName != "" {
		return id.DisplayName
	}
	return userID
}

type matchHandler struct {
	roster *bot.Roster
	cfg    *config.GameConfig
}

func newMatchHandler(roster *bot.Roster, cfg *config.GameConfig) *matchHandler {
	return &matchHandler{roster: roster, cfg: cfg}
}

// MatchInit is called when the match is created.
func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	matchID, _ := ctx.Value(runtime.RUNTIME_CTX_MATCH_ID).(string)
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)

	rules := config.ApplyEnv(mh.cfg.Rules(), env)
	svc := app.NewService(
		NewNakamaStorageStore(nk, logger),
		app.WithRules(rules),
		app.WithLedger(NewNakamaRoundLedger(nk)),
		app.WithLogger(logger),
	)

	state := newMatchState(matchID, svc, mh.roster)
	state.BotsEnabled = config.BotsEnabled(env)
	state.BotAutoFillTicks = durationTicks(config.BotAutoFillDelayFromEnv(env, mh.cfg.BotAutoFillDelay()))
	state.BotActionTicks = durationTicks(mh.cfg.BotActionDelay())

	label, err := matchLabel(state)
	if err != nil {
		logger.Error("MatchInit: Failed to marshal label: %v", err)
		return nil, 0, ""
	}
	logger.Debug("MatchInit: match %s ready, knock timeout %s, bots %t", matchID, rules.KnockTimeout, state.BotsEnabled)
	return state, tickRate, label
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state, false, "state not found"
	}
	allowed, reason := matchState.canJoin(presence.GetUserId())
	return matchState, allowed, reason
}

// canJoin reports whether userID may join, with the rejection reason.
func (ms *MatchState) canJoin(userID string) (bool, string) {
	if ms.seatOf(userID) >= 0 {
		return true, ""
	}
	if ms.inProgress() {
		return false, "Game in progress"
	}
	if ms.GetOpenSeatsCount() > 0 {
		return true, ""
	}
	for _, seat := range ms.Seats {
		if ms.isBot(seat) {
			return true, ""
		}
	}
	return false, "Match full"
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		userID := p.GetUserId()
		matchState.Presences[userID] = p

		if matchState.seatOf(userID) >= 0 {
			if _, ok := matchState.Takeovers[userID]; ok {
				delete(matchState.Takeovers, userID)
				logger.Info("MatchJoin: %s rejoined and takes their seat back", userID)
			}
			continue
		}
		if !matchState.assignSeat(userID, logger) {
			logger.Warn("MatchJoin: User %s joined but no seat (empty or bot) was available.", userID)
		}
	}

	if matchState.findFirstConnectedSeat() != matchState.OwnerSeat {
		matchState.OwnerSeat = matchState.findFirstConnectedSeat()
		logger.Debug("MatchJoin: Owner set to seat %d.", matchState.OwnerSeat)
	}

	mh.updateLabel(matchState, dispatcher, logger)
	mh.broadcastSnapshots(ctx, matchState, dispatcher, logger)
	return matchState
}

// assignSeat seats userID in the first free seat, or in place of a lobby bot.
func (ms *MatchState) assignSeat(userID string, logger runtime.Logger) bool {
	for i, seat := range ms.Seats {
		if seat == "" {
			ms.Seats[i] = userID
			return true
		}
	}
	if ms.inProgress() {
		return false
	}
	for i, seat := range ms.Seats {
		if ms.isBot(seat) {
			logger.Info("MatchJoin: Replacing bot %s with human %s in seat %d", seat, userID, i)
			delete(ms.Bots, seat)
			ms.Seats[i] = userID
			return true
		}
	}
	return false
}

// MatchLeave is called when one or more players leave the match. A player leaving during a
// game keeps their seat and a bot plays for them.
func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		userID := p.GetUserId()
		delete(matchState.Presences, userID)

		seat := matchState.seatOf(userID)
		if seat < 0 {
			continue
		}
		if matchState.inProgress() {
			matchState.Takeovers[userID] = &bot.Agent{ID: userID, Name: p.GetUsername(), Strategy: bot.NewSimpleBot(userID, false)}
			logger.Info("MatchLeave: %s left during game %d, a bot plays seat %d", userID, matchState.Game, seat)
			continue
		}
		matchState.Seats[seat] = ""
		logger.Debug("MatchLeave: User %s left, seat %d freed.", userID, seat)
	}

	matchState.OwnerSeat = matchState.findFirstConnectedSeat()
	if len(matchState.Presences) == 0 {
		logger.Info("MatchLeave: Terminating match with no humans.")
		return nil
	}

	mh.updateLabel(matchState, dispatcher, logger)
	mh.broadcastSnapshots(ctx, matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	matchState.Tick = tick

	for _, msg := range messages {
		mh.handleMessage(ctx, matchState, dispatcher, logger, msg)
	}

	mh.expireKnock(ctx, matchState, dispatcher, logger)

	if matchState.BotsEnabled {
		mh.processBots(ctx, matchState, dispatcher, logger)
	}

	return matchState
}

// expireKnock rolls back a knock window once its deadline passed without an action.
func (mh *matchHandler) expireKnock(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	if state.KnockDeadline.IsZero() || state.now().Before(state.KnockDeadline) {
		return
	}
	events, err := state.App.ExpireKnock(ctx, state.RoomID)
	if err != nil {
		logger.Warn("expireKnock: room %s: %v", state.RoomID, err)
		return
	}
	state.KnockDeadline = time.Time{}
	mh.dispatchEvents(ctx, state, dispatcher, logger, events)
}

func (mh *matchHandler) handleMessage(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	senderID := msg.GetUserId()
	var (
		events []app.Event
		err    error
	)
	switch msg.GetOpCode() {
	case domain.OpCodeStartGame:
		events, err = mh.startGame(ctx, state, senderID, logger)
	default:
		events, err = applyAction(ctx, state, senderID, msg.GetOpCode(), msg.GetData())
	}
	// a rejected action can still carry a committed knock expiry
	mh.dispatchEvents(ctx, state, dispatcher, logger, events)
	if err != nil {
		mh.reportError(state, dispatcher, logger, senderID, msg.GetOpCode(), err)
	}
}

// startGame deals the first round of a new game among the seated players.
func (mh *matchHandler) startGame(ctx context.Context, state *MatchState, senderID string, logger runtime.Logger) ([]app.Event, error) {
	senderSeat := state.seatOf(senderID)
	logger.Info("StartGame: Request received from %s (seat=%d, owner_seat=%d, occupied=%d)", senderID, senderSeat, state.OwnerSeat, state.GetOccupiedSeatCount())

	if senderSeat < 0 || senderSeat != state.OwnerSeat {
		return nil, errNotOwner
	}
	if state.inProgress() {
		return nil, fmt.Errorf("%w: a game is already running", errBadPayload)
	}

	roomID := fmt.Sprintf("%s#%d", state.MatchID, state.Game+1)
	events, err := state.App.StartRound(ctx, roomID, state.SeatedPlayers())
	if err != nil {
		return nil, err
	}
	state.Game++
	state.RoomID = roomID
	state.KnockDeadline = time.Time{}
	logger.Info("StartGame: Game %d started in room %s with %d players.", state.Game, roomID, state.GetOccupiedSeatCount())
	return events, nil
}

var (
	errNotOwner  = errors.New("only the match owner may start a game")
	errNotSeated = errors.New("only seated players may do that")
)

// applyAction performs the in-game action encoded by opCode for senderID.
func applyAction(ctx context.Context, state *MatchState, senderID string, opCode int64, data []byte) ([]app.Event, error) {
	if state.RoomID == "" {
		return nil, errNoGame
	}
	svc, roomID := state.App, state.RoomID
	switch opCode {
	case domain.OpCodeDrawStock:
		return svc.DrawFromStock(ctx, roomID, senderID)
	case domain.OpCodeDrawDiscard:
		return svc.DrawFromDiscard(ctx, roomID, senderID)
	case domain.OpCodeDiscard:
		var req DiscardRequest
		if err := decodePayload(data, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadPayload, err)
		}
		return svc.Discard(ctx, roomID, senderID, req.Card)
	case domain.OpCodeLayMelds:
		var req LayMeldsRequest
		if err := decodePayload(data, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadPayload, err)
		}
		return svc.LayDownMelds(ctx, roomID, senderID, req.Melds)
	case domain.OpCodeLayoff:
		var req LayoffRequest
		if err := decodePayload(data, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadPayload, err)
		}
		return svc.LayoffCard(ctx, roomID, senderID, req.MeldID, req.Card)
	case domain.OpCodeGoOut:
		proposal, err := decodeProposal(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadPayload, err)
		}
		return svc.GoOut(ctx, roomID, senderID, proposal)
	case domain.OpCodeKnock:
		return svc.PauseAndPickupDiscard(ctx, roomID, senderID)
	case domain.OpCodeKnockGoOut:
		proposal, err := decodeProposal(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadPayload, err)
		}
		return svc.KnockGoOut(ctx, roomID, senderID, proposal)
	case domain.OpCodeGiveUpKnock:
		return svc.GiveUpKnock(ctx, roomID, senderID)
	case domain.OpCodeRequestNewRound:
		if state.seatOf(senderID) < 0 {
			return nil, errNotSeated
		}
		return svc.StartNextRound(ctx, roomID)
	default:
		return nil, fmt.Errorf("%w %d", errUnknownOpCode, opCode)
	}
}

// reportError maps err to an error code and sends it to the sender only.
func (mh *matchHandler) reportError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, opCode int64, err error) {
	code, message := errCodeInternal, app.ReasonOf(err)
	switch {
	case errors.Is(err, errBadPayload), errors.Is(err, errUnknownOpCode), errors.Is(err, errNoGame):
		code, message = errCodeBadRequest, err.Error()
	case errors.Is(err, errNotOwner), errors.Is(err, errNotSeated):
		code, message = errCodeForbidden, err.Error()
	case app.IsIllegalMove(err):
		code = errCodeBadRequest
	case errors.Is(err, app.ErrTransientConflict):
		code = errCodeConflict
	}
	if code == errCodeInternal {
		logger.Error("opcode %d from %s failed: %v", opCode, userID, err)
	} else {
		logger.Debug("opcode %d from %s rejected: %v", opCode, userID, err)
	}
	mh.sendError(state, dispatcher, logger, userID, code, message)
}

func (mh *matchHandler) processBots(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	// 1. Auto-fill the lobby with bots if only one human is waiting
	if !state.inProgress() {
		if state.GetHumanPlayerCount() != 1 {
			state.LastSinglePlayerTick = 0
			return
		}
		if state.LastSinglePlayerTick == 0 {
			state.LastSinglePlayerTick = state.Tick
			logger.Debug("processBots: Single player detected, starting auto-fill timer.")
			return
		}
		if state.Tick-state.LastSinglePlayerTick < state.BotAutoFillTicks {
			return
		}
		state.LastSinglePlayerTick = 0
		if mh.fillSeatsWithBots(state, logger) {
			mh.updateLabel(state, dispatcher, logger)
			mh.broadcastSnapshots(ctx, state, dispatcher, logger)
		}
		return
	}

	// 2. Let bots act in-game, one action per delay period
	if state.Status != domain.StatusPlaying || state.Tick < state.BotWaitUntil {
		return
	}
	state.BotWaitUntil = state.Tick + state.BotActionTicks
	for _, agent := range state.agents() {
		move, events, err := agent.Step(ctx, state.App, state.RoomID)
		if err != nil {
			logger.Debug("processBots: bot %s could not play %s: %v", agent.ID, move.Kind, err)
			if len(events) > 0 {
				mh.dispatchEvents(ctx, state, dispatcher, logger, events)
				return
			}
			continue
		}
		if move.Kind == bot.ActionNone {
			continue
		}
		logger.Debug("processBots: bot %s played %s", agent.ID, move.Kind)
		mh.dispatchEvents(ctx, state, dispatcher, logger, events)
		return
	}
}

// fillSeatsWithBots seats roster bots in every free seat.
func (mh *matchHandler) fillSeatsWithBots(state *MatchState, logger runtime.Logger) bool {
	added := false
	next := 0
	for i, seat := range state.Seats {
		if seat != "" {
			continue
		}
		var (
			identity bot.BotIdentity
			found    bool
		)
		for attempts := state.Roster.Size() + maxSeats; attempts > 0 && !found; attempts-- {
			identity = state.Roster.Identity(next)
			next++
			found = state.seatOf(identity.UserID) < 0
		}
		if !found {
			logger.Warn("processBots: no free bot identity for seat %d", i)
			continue
		}
		agent, err := bot.NewAgent(identity)
		if err != nil {
			logger.Error("Failed to create bot agent for %s: %v", identity.UserID, err)
			continue
		}
		state.Seats[i] = identity.UserID
		state.Bots[identity.UserID] = agent
		logger.Info("processBots: Added bot %s (%s) to seat %d", identity.DisplayName, identity.UserID, i)
		added = true
	}
	return added
}

// dispatchEvents tracks match-level effects of events, feeds bots and sends the events
// followed by fresh snapshots.
func (mh *matchHandler) dispatchEvents(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, events []app.Event) {
	if len(events) == 0 {
		return
	}
	prevStatus := state.Status
	for _, ev := range events {
		state.observe(ev)
		for _, agent := range state.agents() {
			if isRecipient(ev, agent.ID) {
				agent.OnGameEvent(ev)
			}
		}
		mh.broadcastEvent(state, dispatcher, logger, ev)
	}
	if state.Status != prevStatus {
		mh.updateLabel(state, dispatcher, logger)
	}
	mh.broadcastSnapshots(ctx, state, dispatcher, logger)
}

func (ms *MatchState) observe(ev app.Event) {
	switch p := ev.Payload.(type) {
	case app.RoundStartedPayload:
		ms.Status = domain.StatusPlaying
		ms.KnockDeadline = time.Time{}
	case app.KnockStartedPayload:
		ms.KnockDeadline = p.Deadline
	case app.KnockRolledBackPayload, app.WentOutPayload:
		ms.KnockDeadline = time.Time{}
	case app.RoundEndedPayload:
		ms.KnockDeadline = time.Time{}
		ms.Status = domain.StatusRoundEnd
		if p.Result.Finished {
			ms.Status = domain.StatusFinished
		}
	case app.GameFinishedPayload:
		ms.Status = domain.StatusFinished
	}
	if ms.Status == domain.StatusFinished {
		// a finished game frees the seats of players who left
		for id := range ms.Takeovers {
			if seat := ms.seatOf(id); seat >= 0 {
				ms.Seats[seat] = ""
			}
			delete(ms.Takeovers, id)
		}
	}
}

func isRecipient(ev app.Event, userID string) bool {
	if len(ev.Recipients) == 0 {
		return true
	}
	for _, id := range ev.Recipients {
		if id == userID {
			return true
		}
	}
	return false
}

// broadcastEvent sends an app event to its recipients, or to everyone when it has none.
func (mh *matchHandler) broadcastEvent(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, ev app.Event) {
	bytes, err := json.Marshal(ev)
	if err != nil {
		logger.Error("Failed to marshal event %v: %v", ev.Kind, err)
		return
	}

	var recipients []runtime.Presence
	if len(ev.Recipients) > 0 {
		for _, uid := range ev.Recipients {
			if p, ok := state.Presences[uid]; ok {
				recipients = append(recipients, p)
			}
		}
		// targeted events for bots or absent players must not leak to everyone else
		if len(recipients) == 0 {
			return
		}
	}

	dispatcher.BroadcastMessage(domain.OpCodeGameEvent, bytes, recipients, nil, true)
}

// broadcastSnapshots sends every connected player their own view of the match.
func (mh *matchHandler) broadcastSnapshots(ctx context.Context, state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	names := make([]string, len(state.Seats))
	for i, seat := range state.Seats {
		if seat != "" {
			names[i] = state.displayName(seat)
		}
	}
	for userID, presence := range state.Presences {
		snapshot := SnapshotMessage{
			Seats:     state.Seats[:],
			OwnerSeat: state.OwnerSeat,
			Names:     names,
			Game:      state.Game,
			Tick:      state.Tick,
		}
		if state.RoomID != "" {
			view, err := state.App.View(ctx, state.RoomID, userID)
			if err != nil {
				logger.Warn("broadcastSnapshots: view of room %s for %s: %v", state.RoomID, userID, err)
			} else {
				snapshot.View = view
			}
		}
		bytes, err := json.Marshal(snapshot)
		if err != nil {
			logger.Error("Failed to marshal snapshot: %v", err)
			continue
		}
		dispatcher.BroadcastMessage(domain.OpCodeStateSnapshot, bytes, []runtime.Presence{presence}, nil, true)
	}
}

// sendError sends an ErrorMessage to a specific user.
func (mh *matchHandler) sendError(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string, code int, message string) {
	bytes, err := json.Marshal(ErrorMessage{Code: code, Message: message})
	if err != nil {
		logger.Error("Failed to marshal error message: %v", err)
		return
	}

	presence, ok := state.Presences[userID]
	if !ok {
		logger.Warn("Cannot send error to %s: Presence not found", userID)
		return
	}

	dispatcher.BroadcastMessage(domain.OpCodeGameError, bytes, []runtime.Presence{presence}, nil, true)
}

// matchLabel renders the label used by quick match to find open lobbies.
func matchLabel(state *MatchState) (string, error) {
	phase := string(state.Status)
	if phase == "" {
		phase = string(domain.StatusLobby)
	}
	label, err := structpb.NewStruct(map[string]interface{}{
		labelKeyOpen:    !state.inProgress() && state.GetOpenSeatsCount() > 0,
		labelKeyGame:    GameLabel,
		labelKeyPhase:   phase,
		labelKeyPlayers: state.GetOccupiedSeatCount(),
	})
	if err != nil {
		return "", err
	}
	b, err := protojson.Marshal(label)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := matchLabel(state)
	if err != nil {
		logger.Error("UpdateLabel: Failed to marshal: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
	}
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	logger.Debug("MatchTerminate: Match terminating in %d seconds", graceSeconds)
	return state
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}
