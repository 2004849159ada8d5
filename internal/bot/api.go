package bot

import (
	"pontinhos/internal/app"
	"pontinhos/internal/domain"
)

// ActionKind is the kind of move a bot wants to make.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionDrawStock
	ActionDrawDiscard
	ActionLayMelds
	ActionLayoff
	ActionDiscard
	ActionGoOut
	ActionKnock
	ActionKnockGoOut
	ActionGiveUpKnock
)

var actionNames = [...]string{
	ActionNone:        "none",
	ActionDrawStock:   "draw_stock",
	ActionDrawDiscard: "draw_discard",
	ActionLayMelds:    "lay_melds",
	ActionLayoff:      "layoff",
	ActionDiscard:     "discard",
	ActionGoOut:       "go_out",
	ActionKnock:       "knock",
	ActionKnockGoOut:  "knock_go_out",
	ActionGiveUpKnock: "give_up_knock",
}

func (k ActionKind) String() string {
	if int(k) < len(actionNames) {
		return actionNames[k]
	}
	return "unknown"
}

// Move represents the decision made by the AI.
type Move struct {
	Kind   ActionKind
	Card   domain.Card
	MeldID string
	Melds  [][]domain.Card
}

// Brain is the interface that all bot strategies must implement.
type Brain interface {
	// CalculateMove picks the next move for self from its view of the room.
	CalculateMove(view *app.View, self string) (Move, error)
	OnEvent(event app.Event)
}
