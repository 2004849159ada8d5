package domain

import "time"

// Status represents the lifecycle stage of a room.
type Status string

const (
	// StatusLobby is the pre-game state where players can join.
	StatusLobby Status = "lobby"
	// StatusPlaying is the state while a round is in progress.
	StatusPlaying Status = "playing"
	// StatusRoundEnd is the state after a player went out and before the next deal.
	StatusRoundEnd Status = "round_end"
	// StatusFinished is the terminal state once at most one player is below the elimination score.
	StatusFinished Status = "finished"
)

// TurnPhase is derived from the has-drawn flag of the active player.
type TurnPhase string

const (
	PhaseAwaitingDraw   TurnPhase = "awaiting_draw"
	PhaseAwaitingAction TurnPhase = "awaiting_action"
)

// Player holds the cross-round state of a participant.
type Player struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
	// HasDrawnThisTurn mirrors GameSession.HasDrawn for the active player only.
	HasDrawnThisTurn bool `json:"hasDrawnThisTurn"`
	// Deprecated: IsBlocked is kept for stored state compatibility and carries no rule.
	IsBlocked  bool `json:"isBlocked,omitempty"`
	Eliminated bool `json:"eliminated"`
}

// Knock is an open out-of-turn window. A nil *Knock means the room is not paused.
type Knock struct {
	PlayerID  string    `json:"playerId"`
	StartedAt time.Time `json:"startedAt"`
	Picked    Card      `json:"picked"`
	// HandBefore is the knocker's hand before the pickup.
	HandBefore []Card `json:"handBefore"`
	// MeldSizesBefore records the card count of every meld on the table when the window opened.
	MeldSizesBefore map[string]int `json:"meldSizesBefore"`
}

// Deadline returns the instant at which the window expires.
func (k *Knock) Deadline(timeout time.Duration) time.Time {
	return k.StartedAt.Add(timeout)
}

// Expired reports whether the window is past its deadline at now.
func (k *Knock) Expired(now time.Time, timeout time.Duration) bool {
	return !now.Before(k.Deadline(timeout))
}

func (k *Knock) clone() *Knock {
	if k == nil {
		return nil
	}
	cp := *k
	cp.HandBefore = CloneCards(k.HandBefore)
	cp.MeldSizesBefore = make(map[string]int, len(k.MeldSizesBefore))
	for id, n := range k.MeldSizesBefore {
		cp.MeldSizesBefore[id] = n
	}
	return &cp
}

// GameSession is the authoritative per-room turn state.
type GameSession struct {
	RoomID string `json:"roomId"`
	// Seats lists every player who joined, in seating order.
	Seats []string `json:"seats"`
	// PlayerOrder lists the players dealt into the current round, starter first.
	PlayerOrder       []string           `json:"playerOrder"`
	TurnIndex         int                `json:"turnIndex"`
	Round             int                `json:"round"`
	DiscardTop        *Card              `json:"discardTop,omitempty"`
	Pause             *Knock             `json:"pause,omitempty"`
	FirstPassComplete bool               `json:"firstPassComplete"`
	HasDrawn          bool               `json:"hasDrawn"`
	LastAction        string             `json:"lastAction"`
	Status            Status             `json:"status"`
	Starter           string             `json:"starter,omitempty"`
	WentOut           string             `json:"wentOut,omitempty"`
	Winner            string             `json:"winner,omitempty"`
	Players           map[string]*Player `json:"players"`
	Rules             Rules              `json:"rules"`
	Revision          int64              `json:"revision"`
}

// NewGameSession creates a lobby session for the given seats.
func NewGameSession(roomID string, seats []string, rules Rules) *GameSession {
	s := &GameSession{
		RoomID:  roomID,
		Seats:   append([]string(nil), seats...),
		Status:  StatusLobby,
		Players: make(map[string]*Player, len(seats)),
		Rules:   rules.WithDefaults(),
	}
	for _, id := range seats {
		s.Players[id] = &Player{ID: id}
	}
	return s
}

// ActivePlayer returns the player whose turn it is, or "" outside of a round.
func (s *GameSession) ActivePlayer() string {
	if s.Status != StatusPlaying || len(s.PlayerOrder) == 0 {
		return ""
	}
	return s.PlayerOrder[s.TurnIndex%len(s.PlayerOrder)]
}

// Phase returns the turn phase of the active player.
func (s *GameSession) Phase() TurnPhase {
	if s.HasDrawn {
		return PhaseAwaitingAction
	}
	return PhaseAwaitingDraw
}

// IsPaused reports whether a knock window is open.
func (s *GameSession) IsPaused() bool { return s.Pause != nil }

// PausedBy returns the knocker, or "" when unpaused.
func (s *GameSession) PausedBy() string {
	if s.Pause == nil {
		return ""
	}
	return s.Pause.PlayerID
}

// InRound reports whether playerID was dealt into the current round.
func (s *GameSession) InRound(playerID string) bool {
	for _, id := range s.PlayerOrder {
		if id == playerID {
			return true
		}
	}
	return false
}

// SetHasDrawn updates the turn flag and its per-player mirror.
func (s *GameSession) SetHasDrawn(v bool) {
	s.HasDrawn = v
	if p := s.Players[s.ActivePlayer()]; p != nil {
		p.HasDrawnThisTurn = v
	}
}

// AdvanceTurn passes the turn to the next player and flips FirstPassComplete when the
// rotation returns to the starter for the first time.
func (s *GameSession) AdvanceTurn() {
	s.SetHasDrawn(false)
	s.TurnIndex = (s.TurnIndex + 1) % len(s.PlayerOrder)
	if s.TurnIndex == 0 {
		s.FirstPassComplete = true
	}
}

// Standing returns the seated players still below the elimination score.
func (s *GameSession) Standing() []string {
	var out []string
	for _, id := range s.Seats {
		if p := s.Players[id]; p != nil && !p.Eliminated {
			out = append(out, id)
		}
	}
	return out
}

// Scores returns a copy of the cumulative scores.
func (s *GameSession) Scores() map[string]int {
	out := make(map[string]int, len(s.Players))
	for id, p := range s.Players {
		out[id] = p.Score
	}
	return out
}

// Clone returns a deep copy.
func (s *GameSession) Clone() *GameSession {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Seats = append([]string(nil), s.Seats...)
	cp.PlayerOrder = append([]string(nil), s.PlayerOrder...)
	if s.DiscardTop != nil {
		top := *s.DiscardTop
		cp.DiscardTop = &top
	}
	cp.Pause = s.Pause.clone()
	cp.Players = make(map[string]*Player, len(s.Players))
	for id, p := range s.Players {
		pp := *p
		cp.Players[id] = &pp
	}
	return &cp
}
