package app

import (
	"time"

	"pontinhos/internal/domain"
)

// EventKind identifies emitted events for dispatch.
type EventKind string

const (
	EventRoundStarted  EventKind = "round_started"
	EventHandDealt     EventKind = "hand_dealt"
	EventCardDrawn     EventKind = "card_drawn"
	EventCardDiscarded EventKind = "card_discarded"
	EventMeldsLaid     EventKind = "melds_laid"
	EventCardLaidOff   EventKind = "card_laid_off"
	EventTurnChanged   EventKind = "turn_changed"
	EventWentOut       EventKind = "went_out"
	EventRoundEnded    EventKind = "round_ended"
	EventKnockStarted  EventKind = "knock_started"
	EventKnockRolled   EventKind = "knock_rolled_back"
	EventKnockExpired  EventKind = "knock_expired"
	EventGameFinished  EventKind = "game_finished"
)

// Event is an app event with optional targeted recipients.
type Event struct {
	Kind       EventKind `json:"kind"`
	Payload    any       `json:"payload"`
	Recipients []string  `json:"-"` // user IDs; empty means broadcast
}

type RoundStartedPayload struct {
	Round       int          `json:"round"`
	PlayerOrder []string     `json:"playerOrder"`
	DiscardTop  *domain.Card `json:"discardTop,omitempty"`
}

type HandDealtPayload struct {
	PlayerID string        `json:"playerId"`
	Hand     []domain.Card `json:"hand"`
}

// CardDrawnPayload carries the card only when it came from the face-up discard pile.
type CardDrawnPayload struct {
	PlayerID string       `json:"playerId"`
	Source   string       `json:"source"`
	Card     *domain.Card `json:"card,omitempty"`
}

type CardDiscardedPayload struct {
	PlayerID string      `json:"playerId"`
	Card     domain.Card `json:"card"`
}

type MeldsLaidPayload struct {
	PlayerID string        `json:"playerId"`
	Melds    []domain.Meld `json:"melds"`
}

type CardLaidOffPayload struct {
	PlayerID string      `json:"playerId"`
	MeldID   string      `json:"meldId"`
	Card     domain.Card `json:"card"`
}

type TurnChangedPayload struct {
	PlayerID          string `json:"playerId"`
	TurnIndex         int    `json:"turnIndex"`
	FirstPassComplete bool   `json:"firstPassComplete"`
}

type WentOutPayload struct {
	PlayerID string              `json:"playerId"`
	Scenario domain.ScenarioKind `json:"scenario"`
}

type RoundEndedPayload struct {
	Result domain.RoundResult `json:"result"`
}

type KnockStartedPayload struct {
	PlayerID string      `json:"playerId"`
	Card     domain.Card `json:"card"`
	Deadline time.Time   `json:"deadline"`
}

type KnockRolledBackPayload struct {
	PlayerID string      `json:"playerId"`
	Card     domain.Card `json:"card"`
	Reason   string      `json:"reason"`
}

type GameFinishedPayload struct {
	Scores map[string]int `json:"scores"`
	Winner string         `json:"winner"`
}
